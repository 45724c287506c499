package assistant

import (
	"errors"
	"fmt"
)

// Kind classifies why an analysis failed.
type Kind string

const (
	// KindValidation means the request itself could not be accepted.
	KindValidation Kind = "validation"
	// KindAttachment means the uploaded file could not be read.
	KindAttachment Kind = "attachment"
	// KindGeneration means the model call failed or returned nothing usable.
	KindGeneration Kind = "generation"
)

// Error is returned by every failing step of an analysis.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError wraps err with a kind and an operation label.
func NewError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf reports the Kind of err, or "" when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
