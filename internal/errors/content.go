package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ContentLoadFailure is raised when a module's markdown cannot be retrieved,
// either because the transport failed or because the source answered with a
// non-success status.
type ContentLoadFailure struct {
	Path   string
	Status int
	Cause  error
}

// Error reports the status when there is one, otherwise the transport error.
func (e *ContentLoadFailure) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("HTTP error! status: %d", e.Status)
	}
	if e.Cause != nil {
		return e.Cause.Error()
	}
	return fmt.Sprintf("failed to load %s", e.Path)
}

// Unwrap returns the underlying cause error.
func (e *ContentLoadFailure) Unwrap() error {
	return e.Cause
}

// NewStatusFailure creates a failure for a non-success status.
func NewStatusFailure(path string, status int) *ContentLoadFailure {
	return &ContentLoadFailure{Path: path, Status: status}
}

// NewTransportFailure creates a failure for a retrieval that never produced
// a status.
func NewTransportFailure(path string, cause error) *ContentLoadFailure {
	return &ContentLoadFailure{Path: path, Cause: cause}
}

// IsNotFound reports whether err is a content failure with a 404 status.
func IsNotFound(err error) bool {
	var cf *ContentLoadFailure
	if errors.As(err, &cf) {
		return cf.Status == http.StatusNotFound
	}
	return false
}

// StatusOf returns the status carried by a content failure, or zero.
func StatusOf(err error) int {
	var cf *ContentLoadFailure
	if errors.As(err, &cf) {
		return cf.Status
	}
	return 0
}
