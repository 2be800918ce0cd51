package api

import (
	"context"
	"sync"
	"time"
)

var (
	// authHandler stores the registered AuthHandler implementation.
	authHandler AuthHandler

	// handlerMutex protects handler registration and access.
	handlerMutex sync.RWMutex
)

// AuthHandler is the authentication surface consumed by CLI commands and the
// token broker. The oauth package registers the canonical implementation;
// tests register fakes.
//
// Provider arguments are provider ids as configured (for example
// "anthropic"). Operations that can touch the network take a context.
type AuthHandler interface {
	// Login runs the full interactive authorization flow for the provider:
	// prepare the authorization URL, open the browser, wait for the
	// callback, exchange the code, persist the tokens.
	Login(ctx context.Context, provider string) error

	// Logout clears the provider's stored tokens. Idempotent.
	Logout(provider string) error

	// Refresh forces a token refresh for the provider.
	Refresh(ctx context.Context, provider string) error

	// AccessToken returns an access token believed to be currently usable,
	// refreshing first when the stored one is about to expire.
	AccessToken(ctx context.Context, provider string) (string, error)

	// Status reports the reconciled authentication state of every
	// configured provider, in configuration order.
	Status(ctx context.Context) []ProviderAuthStatus

	// StatusFor reports the reconciled authentication state of one
	// provider.
	StatusFor(ctx context.Context, provider string) (ProviderAuthStatus, error)

	// WhoAmI reports the linked account identity, resolving it from the
	// provider's userinfo endpoint when it is not stored yet.
	WhoAmI(ctx context.Context, provider string) (ProviderAuthStatus, error)

	// Watch streams state changes for one provider, or for all providers
	// when provider is empty. Delivery is latest-value: a slow consumer
	// sees the newest state, not every intermediate one. The cancel func
	// releases the subscription.
	Watch(provider string) (<-chan ProviderAuthStatus, func())

	// Providers lists the configured providers.
	Providers() []ProviderSummary

	// Close releases the handler's resources.
	Close() error
}

// ProviderAuthStatus is the authentication state of one provider as exposed
// over the API boundary.
type ProviderAuthStatus struct {
	// Provider is the configured provider id.
	Provider string `json:"provider"`

	// DisplayName is the human-facing provider name.
	DisplayName string `json:"displayName,omitempty"`

	// AuthType is the provider's configured authentication type.
	AuthType string `json:"authType"`

	// State is the authentication state name: "unauthenticated",
	// "authenticating", "authenticated" or "error".
	State string `json:"state"`

	// Email is the linked account's email, when known.
	Email string `json:"email,omitempty"`

	// ProjectID is the project the linked account is scoped to, when known.
	ProjectID string `json:"projectId,omitempty"`

	// ExpiresAt is when the current access token expires. Zero when no
	// expiry is recorded.
	ExpiresAt time.Time `json:"expiresAt"`

	// HasRefreshToken indicates the provider can be refreshed without a
	// new sign-in.
	HasRefreshToken bool `json:"hasRefreshToken"`

	// Error is non-empty when the last flow attempt failed.
	Error string `json:"error,omitempty"`
}

// Authenticated reports whether the provider holds a usable link.
func (s ProviderAuthStatus) Authenticated() bool {
	return s.State == "authenticated"
}

// ProviderSummary identifies one configured provider.
type ProviderSummary struct {
	// ID is the configured provider id.
	ID string `json:"id"`

	// DisplayName is the human-facing provider name.
	DisplayName string `json:"displayName"`

	// AuthType is the provider's authentication type.
	AuthType string `json:"authType"`
}

// RegisterAuthHandler registers the auth handler implementation. Only one
// handler is registered at a time; a subsequent registration replaces the
// previous one. Safe for concurrent use.
func RegisterAuthHandler(h AuthHandler) {
	handlerMutex.Lock()
	defer handlerMutex.Unlock()
	authHandler = h
}

// GetAuthHandler returns the registered auth handler, or nil when none has
// been registered yet. Callers should check for nil, or use
// AuthHandlerOrError. Safe for concurrent use.
func GetAuthHandler() AuthHandler {
	handlerMutex.RLock()
	defer handlerMutex.RUnlock()
	return authHandler
}

// AuthHandlerOrError returns the registered auth handler, or
// ErrAuthHandlerNotRegistered when none is available.
func AuthHandlerOrError() (AuthHandler, error) {
	if h := GetAuthHandler(); h != nil {
		return h, nil
	}
	return nil, ErrAuthHandlerNotRegistered
}
