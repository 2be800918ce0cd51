package config

import (
	"fmt"
	"sort"
	"strings"
)

// ProviderNotFoundError indicates a provider id that no configuration entry
// matches. It carries the known ids so callers can render a useful hint.
type ProviderNotFoundError struct {
	ID    string
	Known []string
}

// Error implements the error interface.
func (e *ProviderNotFoundError) Error() string {
	if len(e.Known) == 0 {
		return fmt.Sprintf("provider %q is not configured (no providers defined)", e.ID)
	}
	known := append([]string(nil), e.Known...)
	sort.Strings(known)
	return fmt.Sprintf("provider %q is not configured (known: %s)", e.ID, strings.Join(known, ", "))
}

// NewProviderNotFoundError creates a ProviderNotFoundError.
func NewProviderNotFoundError(id string, known []string) *ProviderNotFoundError {
	return &ProviderNotFoundError{ID: id, Known: known}
}
