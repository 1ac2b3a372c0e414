// Package errors provides the error taxonomy shared by every SonicMatch
// package. It is a drop-in for the standard library errors package.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Category groups errors by the subsystem that produced them.
type Category string

const (
	CategoryAudio         Category = "audio-processing"
	CategoryValidation    Category = "validation"
	CategoryDatabase      Category = "database"
	CategoryFileIO        Category = "file-io"
	CategoryConfiguration Category = "configuration"
	CategoryNotFound      Category = "not-found"
	CategoryGeneric       Category = "generic"
)

// Categorized is implemented by errors that know their own category.
type Categorized interface {
	error
	Category() Category
}

var (
	// ErrNotFound is returned by storage lookups that match nothing.
	ErrNotFound = &categorized{msg: "not found", cat: CategoryNotFound}
)

type categorized struct {
	msg string
	cat Category
}

func (e *categorized) Error() string { return e.msg }
func (e *categorized) Category() Category { return e.cat }

// ExtractionError reports audio that could not be turned into a feature
// bundle: unreadable, undecodable, empty, too short, or silent.
type ExtractionError struct {
	Source string
	Reason string
	Err    error
}

func NewExtractionError(source, reason string, err error) *ExtractionError {
	return &ExtractionError{Source: source, Reason: reason, Err: err}
}

func (e *ExtractionError) Error() string {
	msg := "extraction failed"
	if e.Source != "" {
		msg += " for " + e.Source
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ExtractionError) Unwrap() error { return e.Err }
func (e *ExtractionError) Category() Category { return CategoryAudio }

// InvalidBundleError reports a feature bundle with a missing field, a
// wrong-length vector, or a non-finite value.
type InvalidBundleError struct {
	Field  string
	Reason string
}

func NewInvalidBundleError(field, format string, args ...any) *InvalidBundleError {
	return &InvalidBundleError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

func (e *InvalidBundleError) Error() string {
	if e.Field == "" {
		return "invalid feature bundle: " + e.Reason
	}
	return fmt.Sprintf("invalid feature bundle: %s: %s", e.Field, e.Reason)
}

func (e *InvalidBundleError) Category() Category { return CategoryValidation }

// Wrap attaches a category to err. A nil err stays nil.
func Wrap(err error, cat Category, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return &wrapped{msg: fmt.Sprintf(format, args...), cat: cat, err: err}
}

type wrapped struct {
	msg string
	cat Category
	err error
}

func (w *wrapped) Error() string { return w.msg + ": " + w.err.Error() }
func (w *wrapped) Unwrap() error { return w.err }
func (w *wrapped) Category() Category { return w.cat }

// CategoryOf returns the category of the outermost categorized error in
// the chain, or CategoryGeneric.
func CategoryOf(err error) Category {
	var c Categorized
	if stderrors.As(err, &c) {
		return c.Category()
	}
	return CategoryGeneric
}

// IsCategory reports whether err carries the given category.
func IsCategory(err error, cat Category) bool {
	return err != nil && CategoryOf(err) == cat
}

// IsExtraction reports whether err is or wraps an ExtractionError.
func IsExtraction(err error) bool {
	var e *ExtractionError
	return stderrors.As(err, &e)
}

// IsInvalidBundle reports whether err is or wraps an InvalidBundleError.
func IsInvalidBundle(err error) bool {
	var e *InvalidBundleError
	return stderrors.As(err, &e)
}

func New(text string) error { return stderrors.New(text) }
func Is(err, target error) bool { return stderrors.Is(err, target) }
func As(err error, target any) bool { return stderrors.As(err, target) }
func Unwrap(err error) error { return stderrors.Unwrap(err) }
func Join(errs ...error) error { return stderrors.Join(errs...) }
func Errorf(format string, a ...any) error { return fmt.Errorf(format, a...) }
