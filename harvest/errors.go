package harvest

import (
	"errors"
	"fmt"
)

// ErrHarvestIncomplete means a ceiling stopped the scroll loop before the
// feed stopped growing.
var ErrHarvestIncomplete = errors.New("harvest: incomplete")

// IncompleteError carries the partial result of a harvest that hit a ceiling.
type IncompleteError struct {
	// Reason names the ceiling that was reached.
	Reason string
	Result *Result
}

func (e *IncompleteError) Error() string {
	if e.Result == nil {
		return "harvest: incomplete: " + e.Reason
	}
	return fmt.Sprintf("harvest: incomplete after %d scrolls: %s", e.Result.PagesScrolled, e.Reason)
}

func (e *IncompleteError) Is(target error) bool { return target == ErrHarvestIncomplete }
