package docstore

import (
	"context"
	"errors"
	"fmt"
)

// Error implements repositories.RepositoryError for document store failures.
type Error struct {
	Op          string
	Err         error
	NotFound    bool
	Conflict    bool
	Unavailable bool
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// IsNotFound reports whether the document or key is missing.
func (e *Error) IsNotFound() bool { return e != nil && e.NotFound }

// IsConflict reports whether a concurrent writer won.
func (e *Error) IsConflict() bool { return e != nil && e.Conflict }

// IsUnavailable reports whether the store could not be reached.
func (e *Error) IsUnavailable() bool { return e != nil && e.Unavailable }

// Unavailable wraps err as a transient store outage. Context errors pass through.
func Unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &Error{Op: op, Err: err, Unavailable: true}
}

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var classified interface{ IsUnavailable() bool }
	if errors.As(err, &classified) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &Error{Op: op, Err: err}
}
