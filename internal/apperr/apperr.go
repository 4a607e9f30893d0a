// Package apperr defines the error taxonomy shared by the content pipeline.
// Domain outcomes (not found, conflict, validation) are values of *Error with a
// Kind and optional Details that let a caller self-correct. Infrastructure
// failures wrap the underlying cause.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error.
type Kind string

const (
	KindContextNotFound       Kind = "context_not_found"
	KindTrackTypeMismatch     Kind = "track_type_mismatch"
	KindPeriodOutOfRange      Kind = "period_out_of_range"
	KindCapacityExceeded      Kind = "capacity_exceeded"
	KindConflict              Kind = "conflict"
	KindTopicValidationFailed Kind = "topic_validation_failed"
	KindItemNotFound          Kind = "item_not_found"
	KindInvalidInput          Kind = "invalid_input"
	KindInfrastructure        Kind = "infrastructure"
)

// Error is a classified pipeline error.
type Error struct {
	Kind    Kind
	Message string
	Details any
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	switch {
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	case e.Message != "":
		return e.Message
	case e.Err != nil:
		return e.Err.Error()
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// New returns an error of the given kind.
func New(kind Kind, message string, details any) *Error {
	return &Error{Kind: kind, Message: message, Details: details}
}

// Newf returns an error of the given kind with a formatted message and no details.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Infrastructure wraps a collaborator failure. A nil err returns nil.
func Infrastructure(op string, err error) error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return err
	}
	return &Error{Kind: KindInfrastructure, Message: op, Err: err}
}

// KindOf reports the Kind of err. Unclassified errors are infrastructure failures.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindInfrastructure
}

// Is reports whether err is classified as kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// DetailsOf returns the details attached to err, if any.
func DetailsOf(err error) any {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Details
	}
	return nil
}
