package api

import (
	"errors"
	"fmt"
)

// NotFoundError reports a resource that does not exist, carrying the
// resource type and name for precise error reporting.
type NotFoundError struct {
	// ResourceType categorizes the resource that was not found
	// (e.g., "provider").
	ResourceType string

	// ResourceName is the identifier that failed to resolve.
	ResourceName string

	// Message overrides the default format when set.
	Message string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("%s %s not found", e.ResourceType, e.ResourceName)
}

// IsNotFound reports whether err is or wraps a NotFoundError.
func IsNotFound(err error) bool {
	var notFoundErr *NotFoundError
	return errors.As(err, &notFoundErr)
}

// NewNotFoundError creates a NotFoundError for the given resource.
func NewNotFoundError(resourceType, resourceName string) *NotFoundError {
	return &NotFoundError{
		ResourceType: resourceType,
		ResourceName: resourceName,
	}
}

// NewProviderNotFoundError creates a provider not found error.
func NewProviderNotFoundError(name string) *NotFoundError {
	return NewNotFoundError("provider", name)
}

// ErrAuthHandlerNotRegistered indicates the auth handler has not been
// registered yet. Commands resolve handlers lazily, so hitting this means
// startup wiring was skipped.
var ErrAuthHandlerNotRegistered = errors.New("auth handler not registered")
