package oauthstore

import (
	"errors"
	"fmt"
)

// Error kinds. Every store operation that fails wraps exactly one of these
// (or returns a *BackendError), so callers can branch with errors.Is:
// protocol-level rejections (NotFound, InvalidArgument, Conflict, Replay)
// versus authorization failures and hard backend faults.
var (
	ErrNotFound        = errors.New("not found")
	ErrForbidden       = errors.New("forbidden")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrConflict        = errors.New("conflict")
	ErrReplay          = errors.New("replay or timestamp skew")
)

// Errorf wraps an error kind with a formatted message.
func Errorf(kind error, format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, kind)...)
}

// BackendError reports a failure of the underlying storage driver. Stmt is
// the statement text (with placeholders, never bound argument values, so
// caller-supplied secrets cannot leak into logs).
type BackendError struct {
	Stmt string
	Err  error
}

func (e *BackendError) Error() string {
	if e.Stmt == "" {
		return fmt.Sprintf("backend: %v", e.Err)
	}
	return fmt.Sprintf("backend: %v (statement: %s)", e.Err, e.Stmt)
}

func (e *BackendError) Unwrap() error { return e.Err }
