package binning

import (
	"fmt"
	"math"
)

const (
	DefaultMinBins = 64
	DefaultMaxBins = 4096
	DefaultBinStep = 1.03
)

// maxCandidates bounds the evaluated grid; the evidence search is brute
// force, so its cost is linear in the grid size.
const maxCandidates = 10000

// GenerateCandidates returns the geometric grid round(minBins·step^t) for
// t = 0, 1, … while the value stays within maxBins, without duplicates.
func GenerateCandidates(minBins, maxBins int, step float64) ([]int, error) {
	if minBins < 2 {
		return nil, fmt.Errorf("min bins must be at least 2, got %d", minBins)
	}
	if minBins > maxBins {
		return nil, fmt.Errorf("min bins %d exceeds max bins %d", minBins, maxBins)
	}
	if !(step > 1) || math.IsInf(step, 0) {
		return nil, fmt.Errorf("bin step must be greater than 1, got %v", step)
	}

	var out []int
	for t := 0; ; t++ {
		m := int(math.Round(float64(minBins) * math.Pow(step, float64(t))))
		if m > maxBins {
			break
		}
		if len(out) == 0 || out[len(out)-1] != m {
			out = append(out, m)
		}
		if len(out) > maxCandidates || t > maxCandidates*100 {
			return nil, fmt.Errorf("candidate grid %d..%d step %v exceeds %d entries", minBins, maxBins, step, maxCandidates)
		}
	}
	return out, nil
}
