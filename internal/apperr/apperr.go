// Package apperr defines the error taxonomy shared by all services.
//
// Validation and authorization errors are raised before any I/O; remote I/O
// errors carry the underlying store failure and are never retried
// automatically. Cancelled is not a failure: it means a confirmation step was
// aborted and no mutation was attempted.
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when an entity or path does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyPending is returned when a request of the same kind is
	// already pending on the entity.
	ErrAlreadyPending = errors.New("a request of this kind is already pending")

	// ErrAlreadyApproved is returned when an approver is already present on
	// a pending request. Callers treat it as informational, not a failure.
	ErrAlreadyApproved = errors.New("already approved")

	// ErrNotAuthorized is returned when the actor is not permitted to
	// perform the operation (non-member, non-owner, not in approver set).
	ErrNotAuthorized = errors.New("not authorized")

	// ErrCancelled marks a user-aborted confirmation step. No mutation has
	// happened when this is returned and no error toast should be shown.
	ErrCancelled = errors.New("cancelled by user")
)

// ValidationError reports malformed input (mobile, name, amount, login code).
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Msg
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Msg)
}

// Validation builds a ValidationError for the given field.
func Validation(field, msg string) error {
	return &ValidationError{Field: field, Msg: msg}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// RemoteIOError wraps a failure talking to the backing document store.
type RemoteIOError struct {
	Op   string
	Path string
	Err  error
}

func (e *RemoteIOError) Error() string {
	return fmt.Sprintf("remote %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *RemoteIOError) Unwrap() error { return e.Err }

// RemoteIO wraps err as a RemoteIOError for the given operation and path.
// Returns nil if err is nil.
func RemoteIO(op, path string, err error) error {
	if err == nil {
		return nil
	}
	return &RemoteIOError{Op: op, Path: path, Err: err}
}

// IsRemoteIO reports whether err is a RemoteIOError.
func IsRemoteIO(err error) bool {
	var re *RemoteIOError
	return errors.As(err, &re)
}

// NotFound builds a wrapped ErrNotFound naming the missing entity.
func NotFound(what string) error {
	return fmt.Errorf("%s: %w", what, ErrNotFound)
}

// NotAuthorized builds a wrapped ErrNotAuthorized with a reason.
func NotAuthorized(reason string) error {
	return fmt.Errorf("%s: %w", reason, ErrNotAuthorized)
}
