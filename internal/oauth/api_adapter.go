package oauth

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"

	"signet/internal/api"
	"signet/internal/config"
	"signet/internal/credstore"
	"signet/pkg/logging"
)

// ProviderRegistry is the provider lookup surface the adapter needs.
// *config.Registry satisfies it; tests substitute a fixture.
type ProviderRegistry interface {
	ProviderSource
	List() []*config.ProviderConfig
}

// Adapter implements api.AuthHandler by wrapping the Manager. This follows
// the service locator pattern where packages communicate through interfaces
// defined in the api package: cmd/ and the token broker program against
// api.AuthHandler and never import this package's types directly.
type Adapter struct {
	manager  *Manager
	registry ProviderRegistry
	creds    credstore.Store

	// out receives the sign-in URL and progress lines during Login.
	out io.Writer

	// noBrowser prints the authorization URL instead of launching a
	// browser. Used on headless hosts and for --no-browser.
	noBrowser bool

	// openBrowser is swapped out in tests.
	openBrowser func(url string) error
}

// AdapterOption customizes an Adapter.
type AdapterOption func(*Adapter)

// WithLoginOutput directs Login's user-facing lines to w instead of stdout.
func WithLoginOutput(w io.Writer) AdapterOption {
	return func(a *Adapter) {
		a.out = w
	}
}

// WithNoBrowser prints the authorization URL instead of opening a browser.
func WithNoBrowser(noBrowser bool) AdapterOption {
	return func(a *Adapter) {
		a.noBrowser = noBrowser
	}
}

// NewAdapter creates an API adapter over the manager, provider registry and
// credential store.
func NewAdapter(manager *Manager, registry ProviderRegistry, creds credstore.Store, opts ...AdapterOption) *Adapter {
	a := &Adapter{
		manager:     manager,
		registry:    registry,
		creds:       creds,
		out:         os.Stdout,
		openBrowser: OpenBrowser,
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// Register registers this adapter with the API layer.
func (a *Adapter) Register() {
	api.RegisterAuthHandler(a)
}

// Login runs the full interactive authorization flow for one provider:
// prepare the authorization URL, stand up the loopback listener, send the
// user to the browser, wait for the redirect, and complete the exchange.
//
// The callback listener binds the provider's configured callback port, so
// the redirect URI it serves is the one the authorization request carried.
// If the listener cannot bind, the pending session is left to expire with
// its TTL.
func (a *Adapter) Login(ctx context.Context, provider string) error {
	flowID := uuid.NewString()
	logging.Info("OAuth", "Starting sign-in for provider %s (flow=%s)", provider, logging.TruncateSessionID(flowID))

	req, err := a.manager.BuildAuthorizationURL(ctx, provider, "")
	if err != nil {
		return err
	}

	p, err := a.registry.Get(provider)
	if err != nil {
		return err
	}

	server := NewCallbackServer(p.OAuth.CallbackPort)
	if _, err := server.Start(ctx); err != nil {
		return err
	}
	defer server.Stop()

	if a.noBrowser {
		fmt.Fprintf(a.out, "Open this URL in your browser to sign in to %s:\n\n  %s\n\n", p.Name(), req.URL)
	} else {
		fmt.Fprintf(a.out, "Opening your browser to sign in to %s...\n", p.Name())
		if err := a.openBrowser(req.URL); err != nil {
			logging.Warn("OAuth", "Could not open a browser for provider %s: %v", provider, err)
			fmt.Fprintf(a.out, "Could not open a browser. Open this URL yourself:\n\n  %s\n\n", req.URL)
		}
	}

	result, err := server.WaitForCallback(ctx)
	if err != nil {
		return err
	}

	token, err := a.manager.HandleCallback(ctx, result.RawURL)
	if err != nil {
		return err
	}

	logging.Info("OAuth", "Sign-in finished for provider %s (flow=%s, email=%s)",
		provider, logging.TruncateSessionID(flowID), logging.RedactEmail(token.Email))

	return nil
}

// Logout clears the provider's stored tokens. Idempotent.
func (a *Adapter) Logout(provider string) error {
	return a.manager.Logout(provider)
}

// Refresh forces a token refresh for the provider.
func (a *Adapter) Refresh(ctx context.Context, provider string) error {
	_, err := a.manager.RefreshTokens(ctx, provider)
	return err
}

// AccessToken returns an access token believed to be currently usable.
func (a *Adapter) AccessToken(ctx context.Context, provider string) (string, error) {
	return a.manager.GetValidAccessToken(ctx, provider)
}

// Status reports the reconciled state of every configured provider, in
// configuration order.
func (a *Adapter) Status(ctx context.Context) []api.ProviderAuthStatus {
	providers := a.registry.List()
	out := make([]api.ProviderAuthStatus, 0, len(providers))
	for _, p := range providers {
		out = append(out, a.statusFor(ctx, p))
	}
	return out
}

// StatusFor reports the reconciled state of one provider.
func (a *Adapter) StatusFor(ctx context.Context, provider string) (api.ProviderAuthStatus, error) {
	p, err := a.registry.Get(provider)
	if err != nil {
		return api.ProviderAuthStatus{}, api.NewProviderNotFoundError(provider)
	}
	return a.statusFor(ctx, p), nil
}

// WhoAmI reports the linked account identity, resolving it from the
// provider's userinfo endpoint when the stored record has none. An
// unauthenticated provider comes back with its plain status and no error;
// the caller decides how loudly to complain.
func (a *Adapter) WhoAmI(ctx context.Context, provider string) (api.ProviderAuthStatus, error) {
	status, err := a.StatusFor(ctx, provider)
	if err != nil {
		return api.ProviderAuthStatus{}, err
	}
	if !status.Authenticated() || status.Email != "" {
		return status, nil
	}

	email, err := a.manager.ResolveIdentity(ctx, provider)
	if err != nil {
		return status, err
	}
	status.Email = email
	return status, nil
}

// Watch streams state changes for one provider, or all providers when
// provider is empty. Delivery is latest-value, matching the manager's
// watcher semantics: a slow consumer sees the newest state, not a backlog.
func (a *Adapter) Watch(provider string) (<-chan api.ProviderAuthStatus, func()) {
	src, cancel := a.manager.Watch(provider)
	out := make(chan api.ProviderAuthStatus, 1)

	go func() {
		defer close(out)
		for status := range src {
			p, err := a.registry.Get(status.Provider)
			if err != nil {
				continue
			}
			sendLatest(out, a.toAPIStatus(p, status))
		}
	}()

	return out, cancel
}

// sendLatest puts status into a capacity-one channel, dropping a stale
// undelivered value if one is sitting there.
func sendLatest(ch chan api.ProviderAuthStatus, status api.ProviderAuthStatus) {
	for {
		select {
		case ch <- status:
			return
		default:
			select {
			case <-ch:
			default:
			}
		}
	}
}

// Providers lists the configured providers in configuration order.
func (a *Adapter) Providers() []api.ProviderSummary {
	providers := a.registry.List()
	out := make([]api.ProviderSummary, 0, len(providers))
	for _, p := range providers {
		out = append(out, api.ProviderSummary{
			ID:          p.ID,
			DisplayName: p.Name(),
			AuthType:    string(p.AuthType),
		})
	}
	return out
}

// Close stops the manager.
func (a *Adapter) Close() error {
	a.manager.Close()
	return nil
}

// statusFor reconciles one provider's state and converts it to the API DTO.
func (a *Adapter) statusFor(ctx context.Context, p *config.ProviderConfig) api.ProviderAuthStatus {
	return a.toAPIStatus(p, a.manager.GetAuthState(ctx, p.ID))
}

// toAPIStatus converts a tracked status to the API DTO, filling the fields
// only the registry and credential store know.
func (a *Adapter) toAPIStatus(p *config.ProviderConfig, status AuthStatus) api.ProviderAuthStatus {
	out := api.ProviderAuthStatus{
		Provider:    p.ID,
		DisplayName: p.Name(),
		AuthType:    string(p.AuthType),
		State:       status.State.String(),
		Email:       status.Email,
		ProjectID:   status.ProjectID,
		ExpiresAt:   status.ExpiresAt,
		Error:       status.LastError,
	}
	if refreshToken, err := a.creds.GetRefreshToken(p.ID); err == nil && refreshToken != "" {
		out.HasRefreshToken = true
	}
	return out
}

// Ensure Adapter implements api.AuthHandler.
var _ api.AuthHandler = (*Adapter)(nil)
