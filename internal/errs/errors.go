// Package errs defines the error taxonomy shared by the progress core.
package errs

import (
	"errors"
	"fmt"
)

// ErrInvalidArgument indicates malformed caller input (an unknown review
// response, an empty answer, a bad block ordering).
type ErrInvalidArgument struct {
	Field string
	Err   error
}

func (e *ErrInvalidArgument) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid argument: %v", e.Err)
	}
	return fmt.Sprintf("invalid argument %s: %v", e.Field, e.Err)
}

func (e *ErrInvalidArgument) Unwrap() error { return e.Err }

// ErrPreconditionFailed indicates an operation that is not allowed in the
// entity's current state. No mutation has been committed when it is returned.
type ErrPreconditionFailed struct {
	Reason string
}

func (e *ErrPreconditionFailed) Error() string {
	return "precondition failed: " + e.Reason
}

// ErrNotFound indicates a referenced entity does not exist.
type ErrNotFound struct {
	Entity string
	ID     string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s %q not found", e.Entity, e.ID)
}

// ErrConflict indicates a concurrent write was detected through a version
// mismatch.
type ErrConflict struct {
	Entity  string
	ID      string
	Version int64
}

func (e *ErrConflict) Error() string {
	return fmt.Sprintf("conflicting write on %s %q (version %d)", e.Entity, e.ID, e.Version)
}

// InvalidArgument builds an ErrInvalidArgument with a formatted message.
func InvalidArgument(field, format string, args ...any) error {
	return &ErrInvalidArgument{Field: field, Err: fmt.Errorf(format, args...)}
}

// PreconditionFailed builds an ErrPreconditionFailed with a formatted reason.
func PreconditionFailed(format string, args ...any) error {
	return &ErrPreconditionFailed{Reason: fmt.Sprintf(format, args...)}
}

// NotFound builds an ErrNotFound.
func NotFound(entity, id string) error {
	return &ErrNotFound{Entity: entity, ID: id}
}

// Conflict builds an ErrConflict.
func Conflict(entity, id string, version int64) error {
	return &ErrConflict{Entity: entity, ID: id, Version: version}
}

func IsInvalidArgument(err error) bool {
	var e *ErrInvalidArgument
	return errors.As(err, &e)
}

func IsPreconditionFailed(err error) bool {
	var e *ErrPreconditionFailed
	return errors.As(err, &e)
}

func IsNotFound(err error) bool {
	var e *ErrNotFound
	return errors.As(err, &e)
}

func IsConflict(err error) bool {
	var e *ErrConflict
	return errors.As(err, &e)
}
