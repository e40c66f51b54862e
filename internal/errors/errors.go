package errors

import (
	"errors"
	"fmt"
)

// APIError represents any failure talking to the OSV API.
type APIError struct {
	Message string
	Err     error
}

// Error implements the error interface
func (e *APIError) Error() string {
	return e.Message
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// NewAPIError builds an APIError whose message is prefixed with the cause.
func NewAPIError(err error, format string, args ...any) *APIError {
	return &APIError{Message: fmt.Sprintf(format, args...), Err: err}
}

// DataSourceError is returned when brew emits output that cannot be decoded.
type DataSourceError struct {
	Source string
	Err    error
}

func (e *DataSourceError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("invalid output from %s", e.Source)
	}
	return e.Err.Error()
}

func (e *DataSourceError) Unwrap() error {
	return e.Err
}

// DomainError covers host package manager and manifest failures.
type DomainError struct {
	Message string
}

func (e *DomainError) Error() string {
	return e.Message
}

// NewDomainError formats a DomainError.
func NewDomainError(format string, args ...any) *DomainError {
	return &DomainError{Message: fmt.Sprintf(format, args...)}
}

// UserMessage renders err the way it is shown on the error stream.
func UserMessage(err error) string {
	var apiErr *APIError
	var dataErr *DataSourceError
	var domainErr *DomainError

	switch {
	case errors.As(err, &apiErr):
		return "Error querying OSV: " + apiErr.Error()
	case errors.As(err, &dataErr):
		return "Error parsing brew output: " + dataErr.Error()
	case errors.As(err, &domainErr):
		return "Error: " + domainErr.Error()
	default:
		return "Error: " + err.Error()
	}
}
