package spawn

import "errors"

// Sentinel errors for the spawn package.
var (
	// ErrAborted is reported when the cancellation handle fired before the
	// child could be launched.
	ErrAborted = errors.New("execution aborted before launch")

	// ErrPanic wraps a panic recovered by the failure boundary.
	ErrPanic = errors.New("execution panicked")

	// ErrAlreadyFulfilled is logged when a second completion is attempted on
	// the same context. The first result always wins.
	ErrAlreadyFulfilled = errors.New("execution already fulfilled")

	// ErrSchedulerClosed is returned by a closed SerialScheduler.
	ErrSchedulerClosed = errors.New("scheduler closed")
)
