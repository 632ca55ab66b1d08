package ocr

import (
	"errors"
	"fmt"
	"time"
)

// ErrPoolTerminated is returned for tasks still queued when the pool shuts down
var ErrPoolTerminated = errors.New("ocr: pool terminated")

// InvalidImageError indicates the submitted payload was not a recognizable
// image input. No engine instance is consumed for invalid input.
type InvalidImageError struct {
	Reason string
}

// Error implements the error interface
func (e *InvalidImageError) Error() string {
	return "ocr: invalid image: " + e.Reason
}

// TimeoutError indicates recognition did not finish within the task timeout.
// The engine instance is still returned to the pool once the engine notices
// the cancellation.
type TimeoutError struct {
	Timeout time.Duration
}

// Error implements the error interface
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("ocr: recognition timed out after %s", e.Timeout)
}

// PoolInitializationError indicates that no engine instance could be created.
// Partial initialization (some engines failing) is tolerated and logged; this
// error is surfaced only when zero engines are available.
type PoolInitializationError struct {
	Attempted int
	Err       error
}

// Error implements the error interface
func (e *PoolInitializationError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("ocr: pool initialization failed, 0 of %d engines available", e.Attempted)
	}
	return fmt.Sprintf("ocr: pool initialization failed, 0 of %d engines available: %v", e.Attempted, e.Err)
}

// Unwrap returns the underlying error
func (e *PoolInitializationError) Unwrap() error {
	return e.Err
}
