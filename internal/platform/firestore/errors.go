package firestore

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Kind groups gRPC status codes into the categories the document store cares about.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindNotFound
	KindConflict
	KindUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// KindOf classifies err by its gRPC status code.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	switch status.Code(err) {
	case codes.NotFound:
		return KindNotFound
	case codes.AlreadyExists, codes.FailedPrecondition, codes.Aborted:
		return KindConflict
	case codes.Unavailable, codes.ResourceExhausted, codes.Internal, codes.DeadlineExceeded:
		return KindUnavailable
	default:
		return KindUnknown
	}
}

// Error is a classified Firestore failure. It satisfies repositories.RepositoryError.
type Error struct {
	Op   string
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return "firestore " + e.Op + " (" + e.Kind.String() + "): " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) IsNotFound() bool    { return e.Kind == KindNotFound }
func (e *Error) IsConflict() bool    { return e.Kind == KindConflict }
func (e *Error) IsUnavailable() bool { return e.Kind == KindUnavailable }

// WrapError attaches op and a Kind to err. Context errors, including a gRPC Canceled status,
// come back as the plain context error so callers can tell a timeout from an outage.
func WrapError(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case status.Code(err) == codes.Canceled:
		return context.Canceled
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return &Error{Op: op, Kind: KindOf(err), Err: err}
}

// IsNotFound reports whether err is a missing document.
func IsNotFound(err error) bool {
	return err != nil && KindOf(err) == KindNotFound
}
