package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrSessionTerminated means the session can no longer be driven: the
	// run was interrupted or the browser went away.
	ErrSessionTerminated = errors.New("browser: session terminated")
	// ErrElementTimeout means a wait ran out before the selector matched.
	ErrElementTimeout = errors.New("browser: timed out waiting for element")
)

// TransientUIError reports a failure caused by the page changing under an
// action, such as a node detached by a re-render. Retrying the single action
// is safe.
type TransientUIError struct {
	Op       string
	Selector string
	Err      error
}

func (e *TransientUIError) Error() string {
	if e.Selector == "" {
		return fmt.Sprintf("browser: transient failure in %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("browser: transient failure in %s %q: %v", e.Op, e.Selector, e.Err)
}

func (e *TransientUIError) Unwrap() error { return e.Err }

// IsTransient reports whether err is, or wraps, a TransientUIError.
func IsTransient(err error) bool {
	var t *TransientUIError
	return errors.As(err, &t)
}

// Messages the DevTools protocol returns when a node disappears between
// lookup and use.
var staleMarkers = []string{
	"could not find node with given id",
	"no node with given id found",
	"node is detached from document",
	"node with given id does not belong to the document",
	"cannot find context with specified id",
	"execution context was destroyed",
	"node does not have a layout object",
}

func isStale(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, m := range staleMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}

// classify maps a raw driver error onto the package taxonomy. caller is the
// context the action was issued under, session the context owning the tab.
func classify(caller, session context.Context, op, sel string, err error) error {
	if err == nil {
		return nil
	}
	if caller.Err() != nil || session.Err() != nil {
		return fmt.Errorf("%w: %s: %v", ErrSessionTerminated, op, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s %q", ErrElementTimeout, op, sel)
	}
	if isStale(err) {
		return &TransientUIError{Op: op, Selector: sel, Err: err}
	}
	if sel == "" {
		return fmt.Errorf("browser: %s: %w", op, err)
	}
	return fmt.Errorf("browser: %s %q: %w", op, sel, err)
}
