package dto

import (
	"errors"
	"fmt"
)

// Kind classifies failures surfaced to users
type Kind string

const (
	// KindConfiguration covers missing selections and unknown step types.
	// Callers render these as inline guidance.
	KindConfiguration Kind = "configuration"
	// KindIntegrity covers references the graph cannot satisfy
	KindIntegrity Kind = "integrity"
	// KindIO covers store and network failures
	KindIO Kind = "io"
	// KindParse covers malformed import payloads
	KindParse Kind = "parse"
)

// AppError is the error type returned across use-case boundaries
type AppError struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

// NewError wraps err with a kind and the operation that failed
func NewError(kind Kind, op string, err error) *AppError {
	return &AppError{Kind: kind, Op: op, Err: err}
}

// Errorf builds an AppError with a formatted message
func Errorf(kind Kind, op string, err error, format string, args ...interface{}) *AppError {
	return &AppError{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...), Err: err}
}

func (e *AppError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	} else if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	if e.Op == "" {
		return msg
	}
	return e.Op + ": " + msg
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of the first AppError in err's chain, or ""
func KindOf(err error) Kind {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return ""
}

// UserMessage returns the text shown to users: the message and the
// underlying error string, without the operation name.
func UserMessage(err error) string {
	var ae *AppError
	if !errors.As(err, &ae) {
		return err.Error()
	}
	switch {
	case ae.Message != "" && ae.Err != nil:
		return ae.Message + ": " + ae.Err.Error()
	case ae.Message != "":
		return ae.Message
	case ae.Err != nil:
		return ae.Err.Error()
	}
	return string(ae.Kind) + " error"
}
