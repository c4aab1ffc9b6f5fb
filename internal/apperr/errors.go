// Package apperr classifies the errors surfaced to API callers on top of
// go-errors categories and maps each kind to its HTTP status.
package apperr

import (
	"errors"

	goerrors "github.com/goliatone/go-errors"
)

// Kind is the go-errors category an API error is reported under.
type Kind = goerrors.Category

const (
	Internal        Kind = goerrors.CategoryInternal
	Unauthenticated Kind = goerrors.CategoryAuth
	Forbidden       Kind = goerrors.CategoryAuthz
	NotFound        Kind = goerrors.CategoryNotFound
	InvalidArgument Kind = goerrors.CategoryBadInput
	Conflict        Kind = goerrors.CategoryConflict
	Validation      Kind = goerrors.CategoryValidation
)

type (
	Error       = goerrors.Error
	FieldError  = goerrors.FieldError
	FieldErrors = goerrors.ValidationErrors
)

// HTTPStatus maps a kind to the response status the API uses for it.
func HTTPStatus(kind Kind) int {
	switch kind {
	case Unauthenticated:
		return goerrors.CodeUnauthorized
	case Forbidden:
		return goerrors.CodeForbidden
	case NotFound:
		return goerrors.CodeNotFound
	case InvalidArgument, Validation:
		return goerrors.CodeBadRequest
	case Conflict:
		return goerrors.CodeConflict
	}
	return goerrors.CodeInternal
}

func New(kind Kind, msg string) *Error {
	return goerrors.New(msg, kind).WithCode(HTTPStatus(kind))
}

// Wrap classifies err under kind. The cause stays reachable through errors.Is/As.
// A cause that is already classified is reported under the new kind, keeping
// its field errors.
func Wrap(kind Kind, err error, msg string) *Error {
	var prev *Error
	switch {
	case err == nil:
		return New(kind, msg)
	case errors.As(err, &prev):
		e := New(kind, msg)
		e.Source = err
		e.ValidationErrors = append(e.ValidationErrors, prev.ValidationErrors...)
		return e
	}
	return goerrors.Wrap(err, kind, msg).WithCode(HTTPStatus(kind))
}

// WithFields attaches per-field failures to e.
func WithFields(e *Error, fields ...FieldError) *Error {
	e.ValidationErrors = append(e.ValidationErrors, fields...)
	return e
}

// WithDetails attaches detail messages that belong to no single field.
func WithDetails(e *Error, details ...string) *Error {
	for _, d := range details {
		e.ValidationErrors = append(e.ValidationErrors, FieldError{Message: d})
	}
	return e
}

// Details returns the detail messages of the first classified error in err's
// chain.
func Details(err error) []string {
	var e *Error
	if !errors.As(err, &e) || len(e.ValidationErrors) == 0 {
		return nil
	}
	out := make([]string, 0, len(e.ValidationErrors))
	for _, fe := range e.ValidationErrors {
		out = append(out, fe.Message)
	}
	return out
}

// KindOf reports the category of the first classified error in err's chain,
// Internal otherwise.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Category
	}
	return Internal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Convenience constructors for the common kinds.

func Unauthenticatedf(msg string) *Error { return New(Unauthenticated, msg) }
func Forbiddenf(msg string) *Error       { return New(Forbidden, msg) }
func NotFoundf(msg string) *Error        { return New(NotFound, msg) }
func Invalidf(msg string) *Error         { return New(InvalidArgument, msg) }
func Conflictf(msg string) *Error        { return New(Conflict, msg) }
