package browser

import (
	"errors"
	"fmt"
)

// ErrNoPageAvailable is returned by Launch when the browser came up without
// a single page target to attach to. The session is closed before the error
// is returned.
var ErrNoPageAvailable = errors.New("no page available in browser session")

// NavigationError reports a failed or timed-out navigation. It is propagated
// as-is; retrying is the caller's decision.
type NavigationError struct {
	URL    string
	Reason string
	Err    error
}

func (e *NavigationError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("navigating to %s: %s", e.URL, e.Reason)
	}
	return fmt.Sprintf("navigating to %s: %v", e.URL, e.Err)
}

func (e *NavigationError) Unwrap() error { return e.Err }
