package escalate

import (
	"context"
	"errors"
	"fmt"
)

// CancelledError marks a failure as cooperative cancellation: the task was
// asked to stop and did, which is the designed way for a task to terminate
// early. Cancellation failures never reach global handlers or the worker
// fallback during escalation.
//
// Create one via [Cancelled] or [Cancelledf].
type CancelledError struct {
	// Cause is the optional reason for the cancellation. May be nil.
	Cause error
}

func (e *CancelledError) Error() string {
	if e.Cause == nil {
		return "task cancelled"
	}
	return fmt.Sprintf("task cancelled: %v", e.Cause)
}

// Unwrap returns the cancellation cause, if any.
func (e *CancelledError) Unwrap() error { return e.Cause }

// Cancelled wraps cause as a cancellation failure. A nil cause is valid
// and denotes cancellation with no particular reason.
func Cancelled(cause error) *CancelledError {
	return &CancelledError{Cause: cause}
}

// Cancelledf formats a cancellation reason in the manner of [fmt.Errorf].
func Cancelledf(format string, args ...any) *CancelledError {
	return &CancelledError{Cause: fmt.Errorf(format, args...)}
}

// IsCancellation reports whether err (or any error in its chain) denotes
// cooperative cancellation: a [*CancelledError], [context.Canceled], or
// [context.DeadlineExceeded].
//
// Escalation uses this as the single classification point between the two
// failure variants — everything that is not a cancellation is uncaught.
func IsCancellation(err error) bool {
	if err == nil {
		return false
	}
	var ce *CancelledError
	return errors.As(err, &ce) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}
