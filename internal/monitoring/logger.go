// Package monitoring holds the diagnostic logger shared by the binning
// engine and its surfaces.
package monitoring

import (
	"log"
	"time"
)

// Logf is the package-level diagnostic logger. It defaults to log.Printf but
// may be replaced by SetLogger; tests mute it with SetLogger(nil).
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil installs a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// Timed logs how long a stage took when the returned func is called:
//
//	defer monitoring.Timed("import")()
func Timed(stage string) func() {
	start := time.Now()
	return func() {
		Logf("[%s] done in %v", stage, time.Since(start).Round(time.Microsecond))
	}
}
