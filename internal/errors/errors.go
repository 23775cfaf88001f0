// Package errors holds the error marks shared by the billing core and the
// service shell. Callers import it as ierr and test marks with Is.
package errors

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

var (
	ErrValidation        = errors.New("validation error")
	ErrNotFound          = errors.New("not found")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrDatabase          = errors.New("database error")
)

// ErrorBuilder accumulates hints on an error before it is marked.
type ErrorBuilder struct {
	err error
}

// NewError starts a builder from a plain message.
func NewError(msg string) *ErrorBuilder {
	return &ErrorBuilder{err: errors.New(msg)}
}

// WithError starts a builder wrapping an existing error.
func WithError(err error) *ErrorBuilder {
	return &ErrorBuilder{err: err}
}

// WithHint attaches a user-facing hint.
func (b *ErrorBuilder) WithHint(hint string) *ErrorBuilder {
	b.err = errors.WithHint(b.err, hint)
	return b
}

// WithHintf attaches a formatted user-facing hint.
func (b *ErrorBuilder) WithHintf(format string, args ...interface{}) *ErrorBuilder {
	return b.WithHint(fmt.Sprintf(format, args...))
}

// Mark tags the error with one of the package marks and returns it.
func (b *ErrorBuilder) Mark(mark error) error {
	return errors.Mark(b.err, mark)
}

// Is reports whether err carries the given mark or wraps target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// Hint returns the first hint attached to err, or the empty string.
func Hint(err error) string {
	hints := errors.GetAllHints(err)
	if len(hints) == 0 {
		return ""
	}
	return hints[0]
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
