package marshal

import (
	"errors"
	"fmt"
	"strings"
)

// ErrPathCollision is returned when two extracted fields resolve to the same file.
var ErrPathCollision = errors.New("extraction path collision")

// SyntaxError reports a descriptor or JSON-typed file that is not parseable.
type SyntaxError struct {
	File    string
	Line    int
	Column  int
	Message string
}

func (e *SyntaxError) Error() string {
	loc := e.File
	if loc == "" {
		loc = "<input>"
	}
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d:%d: %s", loc, e.Line, e.Column, e.Message)
	}
	return fmt.Sprintf("%s: %s", loc, e.Message)
}

// PathSafetyError reports an extraction marker that resolves outside the
// resource directory.
type PathSafetyError struct {
	Path string
}

func (e *PathSafetyError) Error() string {
	return fmt.Sprintf("path %q resolves outside the resource directory", e.Path)
}

// DataError is a problem scoped to a single field of a resource.
type DataError struct {
	// Field is the field path in dot/bracket notation.
	Field   string
	Message string
	Err     error
}

func (e *DataError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *DataError) Unwrap() error {
	return e.Err
}

// DataErrors is every field error collected from one resource.
type DataErrors []*DataError

func (d DataErrors) Error() string {
	msgs := make([]string, len(d))
	for i, e := range d {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "\n")
}

func (d DataErrors) Unwrap() []error {
	errs := make([]error, len(d))
	for i, e := range d {
		errs[i] = e
	}
	return errs
}

// ResourceError attributes a set of syntax or data errors to one resource.
type ResourceError struct {
	Kind string
	Ref  string
	Errs []error
}

func (e *ResourceError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %q: %d error(s)", e.Kind, e.Ref, len(e.Errs))
	for _, err := range e.Errs {
		for _, line := range strings.Split(err.Error(), "\n") {
			b.WriteString("\n  - ")
			b.WriteString(line)
		}
	}
	return b.String()
}

func (e *ResourceError) Unwrap() []error {
	return e.Errs
}

// NewResourceError wraps err for the given resource. DataErrors are
// flattened so each field error is reported individually.
func NewResourceError(kind, ref string, err error) *ResourceError {
	var derrs DataErrors
	if errors.As(err, &derrs) {
		return &ResourceError{Kind: kind, Ref: ref, Errs: derrs.Unwrap()}
	}
	return &ResourceError{Kind: kind, Ref: ref, Errs: []error{err}}
}

// IsValidationClass reports whether err is a per-resource syntax or data
// problem, as opposed to a transport or I/O failure.
func IsValidationClass(err error) bool {
	var (
		re *ResourceError
		se *SyntaxError
		de *DataError
		ds DataErrors
	)
	return errors.As(err, &re) || errors.As(err, &se) || errors.As(err, &de) || errors.As(err, &ds)
}
