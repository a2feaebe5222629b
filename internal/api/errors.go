package api

import (
	"fmt"
	"strings"

	"github.com/picklr-io/tether/internal/marshal"
)

// Error is a transport-class failure: the request could not be made, or
// the API answered with an unexpected status.
type Error struct {
	Method     string
	Path       string
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s %s: %v", e.Method, e.Path, e.Err)
	}
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.StatusCode, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// FieldError is one entry of a validation failure response.
type FieldError struct {
	Field   string
	Message string
}

// ValidationError is returned when the API rejects a resource's content.
type ValidationError struct {
	Message string
	Errors  []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return e.Message
	}
	msgs := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		msgs[i] = fe.Field + ": " + fe.Message
	}
	return strings.Join(msgs, "\n")
}

// DataErrors converts the rejected fields into field-scoped data errors.
func (e *ValidationError) DataErrors() marshal.DataErrors {
	if len(e.Errors) == 0 {
		return marshal.DataErrors{{Field: "(resource)", Message: e.Message}}
	}
	out := make(marshal.DataErrors, len(e.Errors))
	for i, fe := range e.Errors {
		field := fe.Field
		if field == "" {
			field = "(resource)"
		}
		out[i] = &marshal.DataError{Field: field, Message: fe.Message}
	}
	return out
}

func (e *ValidationError) Unwrap() error {
	return e.DataErrors()
}
