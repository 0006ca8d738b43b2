package binning

import (
	"errors"
	"fmt"
)

// ErrEmptyDataset matches any EmptyDatasetError with errors.Is.
var ErrEmptyDataset = errors.New("empty dataset")

// EmptyDatasetError is returned when no valid observation is left to bin.
// Skipped counts the rows rejected by the transform before that point.
type EmptyDatasetError struct {
	Stage   string
	Skipped int
}

func (e *EmptyDatasetError) Error() string {
	if e.Skipped > 0 {
		return fmt.Sprintf("%s: empty dataset (%d observations skipped)", e.Stage, e.Skipped)
	}
	return fmt.Sprintf("%s: empty dataset", e.Stage)
}

func (e *EmptyDatasetError) Is(target error) bool {
	return target == ErrEmptyDataset
}
