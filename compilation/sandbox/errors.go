package sandbox

import (
	"errors"
	"fmt"
)

// ErrUnexpectedAttemptFailure is matched (errors.Is) by every AttemptFailureError.
var ErrUnexpectedAttemptFailure = errors.New("unexpected attempt failure")

// AttemptFailureError describes a pass which failed for a reason other than compiler diagnostics: the sandbox could
// not be prepared, the backend returned an error, or the backend panicked.
type AttemptFailureError struct {
	// Pass is the pass which failed.
	Pass int

	// Err is the underlying fault.
	Err error
}

// Error returns the error message string, implementing the `error` interface.
func (e *AttemptFailureError) Error() string {
	return fmt.Sprintf("pass %d failed unexpectedly: %v", e.Pass, e.Err)
}

// Unwrap returns the underlying fault.
func (e *AttemptFailureError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrUnexpectedAttemptFailure.
func (e *AttemptFailureError) Is(target error) bool {
	return target == ErrUnexpectedAttemptFailure
}
