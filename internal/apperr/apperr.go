// Package apperr defines the error taxonomy shared by the training driver and
// the serving endpoint.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error by how it is handled at the boundary.
type Kind string

const (
	// KindInput marks a rejected request or an unusable dataset.
	KindInput Kind = "input"
	// KindDataQuality marks row-level problems. They are counted, not returned.
	KindDataQuality Kind = "data_quality"
	// KindArtifactMismatch marks vocabulary/label/model artifacts that disagree.
	KindArtifactMismatch Kind = "artifact_mismatch"
	// KindInternal is everything else.
	KindInternal Kind = "internal"
)

// Error is an error carrying a Kind.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// HTTPStatus maps the kind to a response status.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindInput:
		return http.StatusBadRequest
	case KindDataQuality:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// Input creates an InputError.
func Input(format string, args ...any) *Error {
	return &Error{Kind: KindInput, Message: fmt.Sprintf(format, args...)}
}

// ArtifactMismatch creates an ArtifactMismatchError.
func ArtifactMismatch(format string, args ...any) *Error {
	return &Error{Kind: KindArtifactMismatch, Message: fmt.Sprintf(format, args...)}
}

// Internal wraps cause as an internal error.
func Internal(cause error, message string) *Error {
	return &Error{Kind: KindInternal, Message: message, Cause: cause}
}

// KindOf reports the Kind of err, or KindInternal when err carries none.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	var appErr *Error
	return errors.As(err, &appErr) && appErr.Kind == kind
}

// HTTPStatus returns the status for err, defaulting to 500.
func HTTPStatus(err error) int {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.HTTPStatus()
	}
	return http.StatusInternalServerError
}
