package oauth

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"signet/internal/config"
	"signet/internal/credstore"
	"signet/pkg/logging"
	pkgoauth "signet/pkg/oauth"
)

// ProviderSource resolves provider configuration by id. *config.Registry
// satisfies it; tests substitute a fixture.
type ProviderSource interface {
	Get(id string) (*config.ProviderConfig, error)
}

// AuthRequest is a prepared authorization redirect. The caller owns opening
// URL in a browser; State ties the eventual callback to the pending session.
type AuthRequest struct {
	Provider  string
	ProjectID string
	URL       string
	State     string
}

// Manager drives the authorization-code lifecycle for every configured
// provider: it prepares authorization requests, completes callbacks,
// refreshes tokens, and answers "am I signed in". It owns the pending
// session registry and the auth state tracker; tokens live in the
// credential store.
type Manager struct {
	providers ProviderSource
	creds     credstore.Store
	sessions  *SessionStore
	tokens    *TokenClient
	discovery *pkgoauth.Client
	tracker   *stateTracker

	// refreshMu serializes refresh grants across ALL providers. Providers
	// that rotate refresh tokens invalidate the old one on use, so two
	// racing refreshes can strand the account; refreshes are rare enough
	// that one in flight system-wide costs nothing.
	refreshMu sync.Mutex
}

// ManagerOption customizes a Manager.
type ManagerOption func(*Manager)

// WithHTTPClient routes token grants and endpoint discovery through
// httpClient.
func WithHTTPClient(httpClient *http.Client) ManagerOption {
	return func(m *Manager) {
		m.tokens = NewTokenClient(httpClient)
		m.discovery = pkgoauth.NewClient(pkgoauth.WithHTTPClient(httpClient))
	}
}

// WithDiscoveryClient replaces the metadata discovery client.
func WithDiscoveryClient(client *pkgoauth.Client) ManagerOption {
	return func(m *Manager) {
		m.discovery = client
	}
}

// NewManager creates a manager backed by the given provider source and
// credential store. Call Close when done to stop the session sweeper.
func NewManager(providers ProviderSource, creds credstore.Store, opts ...ManagerOption) *Manager {
	m := &Manager{
		providers: providers,
		creds:     creds,
		sessions:  NewSessionStore(),
		tokens:    NewTokenClient(nil),
		discovery: pkgoauth.NewClient(),
		tracker:   newStateTracker(),
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// BuildAuthorizationURL prepares a sign-in attempt for the provider: a fresh
// PKCE verifier and state nonce are recorded as a pending session, the
// provider moves to Authenticating, and the returned URL is ready for the
// browser. The only network call that can happen here is issuer discovery
// for providers configured without explicit endpoints.
func (m *Manager) BuildAuthorizationURL(ctx context.Context, providerID, projectID string) (*AuthRequest, error) {
	p, err := m.resolveOAuthProvider(providerID)
	if err != nil {
		return nil, err
	}

	eps, err := m.resolveEndpoints(ctx, p)
	if err != nil {
		return nil, err
	}

	session, err := m.sessions.Create(providerID, projectID)
	if err != nil {
		return nil, fmt.Errorf("creating session for %s: %w", providerID, err)
	}

	m.tracker.set(AuthStatus{Provider: providerID, State: StateAuthenticating})

	verifier := session.CodeVerifier.Value()
	pkce := &pkgoauth.PKCEChallenge{
		CodeVerifier:        verifier,
		CodeChallenge:       pkgoauth.ChallengeFromVerifier(verifier),
		CodeChallengeMethod: "S256",
	}

	authURL, err := pkgoauth.AuthorizeURL(eps.authorization, p.OAuth.ClientID, p.OAuth.RedirectURI(),
		p.OAuth.Scopes, session.State, pkce, p.OAuth.ExtraAuthParams)
	if err != nil {
		return nil, fmt.Errorf("building authorization URL for %s: %w", providerID, err)
	}

	logging.Info("OAuth", "Prepared authorization request for provider %s (state=%s)",
		providerID, logging.TruncateSessionID(session.State))

	return &AuthRequest{
		Provider:  providerID,
		ProjectID: projectID,
		URL:       authURL,
		State:     session.State,
	}, nil
}

// HandleCallback completes the browser round-trip. rawURL is the full
// redirect the authorization server sent to the loopback listener.
//
// The error parameter is inspected before the code/state presence check:
// a denial carries state but no code, and must surface as UserCancelled,
// not as a malformed callback. Whatever the outcome, the pending session
// matching the state is spent.
func (m *Manager) HandleCallback(ctx context.Context, rawURL string) (*pkgoauth.Token, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, wrapFlowError("", KindInvalidCallback, err, "unparseable callback URL")
	}
	query := u.Query()

	if errCode := query.Get("error"); errCode != "" {
		return nil, m.handleCallbackError(query.Get("state"), errCode, query.Get("error_description"))
	}

	code := query.Get("code")
	state := query.Get("state")
	if code == "" || state == "" {
		return nil, newFlowError("", KindInvalidCallback, "callback is missing the code or state parameter")
	}

	session, err := m.sessions.Consume(state)
	if err != nil {
		return nil, err
	}

	p, err := m.providers.Get(session.Provider)
	if err != nil {
		return nil, wrapFlowError(session.Provider, KindUnsupportedProvider, err, "provider no longer configured")
	}

	eps, err := m.resolveEndpoints(ctx, p)
	if err != nil {
		m.setError(session.Provider, err)
		return nil, err
	}

	token, err := m.tokens.ExchangeCode(ctx, p, eps.token, code, session.CodeVerifier.Value(), p.OAuth.RedirectURI())
	if err != nil {
		m.setError(session.Provider, err)
		return nil, err
	}

	return m.completeLink(ctx, p, eps, session, token)
}

// handleCallbackError maps an RFC 6749 error document to the flow taxonomy.
// The session, if one matches, is discarded either way.
func (m *Manager) handleCallbackError(state, errCode, errDescription string) error {
	var provider string
	if session, err := m.sessions.Consume(state); err == nil {
		provider = session.Provider
	}

	if errCode == "access_denied" {
		if provider != "" {
			m.tracker.set(AuthStatus{Provider: provider, State: StateUnauthenticated})
		}
		logging.Info("OAuth", "User declined authorization for provider %s", provider)
		return newFlowError(provider, KindUserCancelled, "user declined authorization")
	}

	reason := errDescription
	if reason == "" {
		reason = errCode
	}
	err := newFlowError(provider, KindTokenExchangeFailed, "authorization server returned %q", reason)
	if provider != "" {
		m.setError(provider, err)
	}
	return err
}

// completeLink persists the token set and resolves the linked identity.
// Tokens are stored before the userinfo lookup so a profile hiccup never
// loses a successful exchange.
func (m *Manager) completeLink(ctx context.Context, p *config.ProviderConfig, eps endpointSet, session *PendingSession, token *pkgoauth.Token) (*pkgoauth.Token, error) {
	if token.ProjectID == "" {
		token.ProjectID = session.ProjectID
	}
	if token.Email == "" && token.IDToken != "" {
		if claims, err := parseIDTokenClaims(token.IDToken); err == nil {
			token.Email = claims.Email
		}
	}

	if err := m.persistToken(session.Provider, token); err != nil {
		m.setError(session.Provider, err)
		return nil, err
	}

	if token.Email == "" && eps.userinfo != "" {
		info, err := m.tokens.FetchUserInfo(ctx, p, eps.userinfo, token.AccessToken)
		if err != nil {
			m.setError(session.Provider, err)
			return nil, err
		}
		token.Email = info.ResolvedEmail()
		if token.Email != "" {
			if err := m.creds.SetEmail(session.Provider, token.Email); err != nil {
				return nil, fmt.Errorf("storing email for %s: %w", session.Provider, err)
			}
		}
	}

	m.tracker.set(AuthStatus{
		Provider:  session.Provider,
		State:     StateAuthenticated,
		Email:     token.Email,
		ProjectID: token.ProjectID,
		ExpiresAt: token.ExpiresAt,
	})

	logging.Info("OAuth", "Provider %s linked (email=%s)", session.Provider, token.Email)

	return token, nil
}

// RefreshTokens redeems the stored refresh token for a fresh access token.
// At most one refresh HTTP call is in flight at a time across all providers;
// the stored refresh token is re-read under the lock because the previous
// holder may have rotated it.
//
// A missing refresh token or a rejected grant is terminal (RefreshFailed):
// the caller must run the full authorization flow again. Transport failures
// surface as NetworkError and are worth retrying. Stored tokens are never
// cleared on failure.
func (m *Manager) RefreshTokens(ctx context.Context, providerID string) (*pkgoauth.Token, error) {
	p, err := m.resolveOAuthProvider(providerID)
	if err != nil {
		return nil, err
	}

	m.refreshMu.Lock()
	defer m.refreshMu.Unlock()

	refreshToken, err := m.creds.GetRefreshToken(providerID)
	if err != nil {
		return nil, fmt.Errorf("reading refresh token for %s: %w", providerID, err)
	}
	if refreshToken == "" {
		return nil, newFlowError(providerID, KindRefreshFailed, "no refresh token stored")
	}

	eps, err := m.resolveEndpoints(ctx, p)
	if err != nil {
		return nil, err
	}

	token, err := m.tokens.Refresh(ctx, p, eps.token, refreshToken)
	if err != nil {
		m.setError(providerID, err)
		return nil, err
	}

	if token.RefreshToken == "" {
		token.RefreshToken = refreshToken
	}

	if err := m.persistToken(providerID, token); err != nil {
		return nil, err
	}

	stored, err := m.creds.Get(providerID)
	if err != nil || stored == nil {
		stored = &credstore.Credentials{}
	}
	m.tracker.set(AuthStatus{
		Provider:  providerID,
		State:     StateAuthenticated,
		Email:     stored.Email,
		ProjectID: stored.ProjectID,
		ExpiresAt: token.ExpiresAt,
	})

	logging.Debug("OAuth", "Refreshed tokens for provider %s", providerID)

	return token, nil
}

// GetValidAccessToken returns an access token believed to be usable right
// now. A token with no recorded expiry, or expiring more than a minute out,
// is returned as-is. Otherwise a refresh is attempted; if the refresh fails
// the stored token is returned anyway rather than nothing, on the theory
// that the downstream call should be the one to fail if the token is truly
// dead.
func (m *Manager) GetValidAccessToken(ctx context.Context, providerID string) (string, error) {
	if _, err := m.resolveOAuthProvider(providerID); err != nil {
		return "", err
	}

	creds, err := m.creds.Get(providerID)
	if err != nil {
		return "", fmt.Errorf("reading credentials for %s: %w", providerID, err)
	}
	if creds == nil || creds.AccessToken == "" {
		return "", newFlowError(providerID, KindRefreshFailed, "not authenticated")
	}

	if creds.HasValidAccessToken() {
		return creds.AccessToken, nil
	}

	token, err := m.RefreshTokens(ctx, providerID)
	if err != nil {
		logging.Warn("OAuth", "Refresh failed for provider %s, returning the stored access token: %v", providerID, err)
		return creds.AccessToken, nil
	}

	return token.AccessToken, nil
}

// GetAuthState reconciles the tracked state with what the credential store
// actually holds: valid tokens win, a refresh token is worth one refresh
// attempt, anything else is Unauthenticated. Non-OAuth providers are always
// Unauthenticated and never tracked.
func (m *Manager) GetAuthState(ctx context.Context, providerID string) AuthStatus {
	p, err := m.providers.Get(providerID)
	if err != nil || !p.UsesOAuth() {
		return AuthStatus{Provider: providerID, State: StateUnauthenticated}
	}

	if m.creds.HasValidTokens(providerID) {
		if creds, err := m.creds.Get(providerID); err == nil && creds != nil {
			status := AuthStatus{
				Provider:  providerID,
				State:     StateAuthenticated,
				Email:     creds.Email,
				ProjectID: creds.ProjectID,
				ExpiresAt: creds.ExpiresAt,
			}
			m.tracker.set(status)
			return status
		}
	}

	if refreshToken, err := m.creds.GetRefreshToken(providerID); err == nil && refreshToken != "" {
		if token, err := m.RefreshTokens(ctx, providerID); err == nil {
			status := AuthStatus{
				Provider:  providerID,
				State:     StateAuthenticated,
				ExpiresAt: token.ExpiresAt,
			}
			if creds, err := m.creds.Get(providerID); err == nil && creds != nil {
				status.Email = creds.Email
				status.ProjectID = creds.ProjectID
			}
			m.tracker.set(status)
			return status
		}
	}

	status := AuthStatus{Provider: providerID, State: StateUnauthenticated}
	m.tracker.set(status)
	return status
}

// ResolveIdentity returns the linked account email for the provider. The
// stored record wins; when it has no email the provider's userinfo endpoint
// is queried with a valid access token and the result is persisted.
func (m *Manager) ResolveIdentity(ctx context.Context, providerID string) (string, error) {
	p, err := m.resolveOAuthProvider(providerID)
	if err != nil {
		return "", err
	}

	if email, err := m.creds.GetEmail(providerID); err == nil && email != "" {
		return email, nil
	}

	accessToken, err := m.GetValidAccessToken(ctx, providerID)
	if err != nil {
		return "", err
	}

	eps, err := m.resolveEndpoints(ctx, p)
	if err != nil {
		return "", err
	}
	if eps.userinfo == "" {
		return "", newFlowError(providerID, KindUserInfoFailed, "provider has no userinfo endpoint")
	}

	info, err := m.tokens.FetchUserInfo(ctx, p, eps.userinfo, accessToken)
	if err != nil {
		return "", err
	}
	email := info.ResolvedEmail()
	if email == "" {
		return "", newFlowError(providerID, KindUserInfoFailed, "userinfo response carries no identity fields")
	}

	if err := m.creds.SetEmail(providerID, email); err != nil {
		return "", fmt.Errorf("storing email for %s: %w", providerID, err)
	}

	logging.Debug("OAuth", "Resolved identity for provider %s (email=%s)", providerID, logging.RedactEmail(email))

	return email, nil
}

// Logout clears the provider's stored tokens and resets its state.
// Logging out a provider that was never linked succeeds.
func (m *Manager) Logout(providerID string) error {
	if _, err := m.providers.Get(providerID); err != nil {
		return wrapFlowError(providerID, KindUnsupportedProvider, err, "cannot log out")
	}

	if err := m.creds.ClearOAuthTokens(providerID); err != nil {
		return fmt.Errorf("clearing credentials for %s: %w", providerID, err)
	}

	m.tracker.set(AuthStatus{Provider: providerID, State: StateUnauthenticated})
	logging.Info("OAuth", "Logged out provider %s", providerID)

	return nil
}

// Status returns the tracked state for one provider.
func (m *Manager) Status(providerID string) (AuthStatus, bool) {
	return m.tracker.get(providerID)
}

// StatusSnapshot returns the tracked state of every provider seen so far,
// sorted by provider id.
func (m *Manager) StatusSnapshot() []AuthStatus {
	return m.tracker.snapshot()
}

// Watch subscribes to state changes for a provider, or for all providers
// when providerID is empty. See stateTracker.watch for delivery semantics.
func (m *Manager) Watch(providerID string) (<-chan AuthStatus, func()) {
	return m.tracker.watch(providerID)
}

// PendingSessions reports how many authorization attempts are in flight.
func (m *Manager) PendingSessions() int {
	return m.sessions.Len()
}

// Close stops the session sweeper and closes all watchers.
func (m *Manager) Close() {
	m.sessions.Stop()
	m.tracker.closeAll()
	logging.Info("OAuth", "OAuth manager stopped")
}

// persistToken writes the token set through the credential store. Identity
// fields left empty by a refresh response survive via the store's merge.
func (m *Manager) persistToken(providerID string, token *pkgoauth.Token) error {
	err := m.creds.SetTokens(providerID, credstore.Credentials{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    token.ExpiresAt,
		Email:        token.Email,
		ProjectID:    token.ProjectID,
	})
	if err != nil {
		return fmt.Errorf("persisting credentials for %s: %w", providerID, err)
	}
	return nil
}

// resolveOAuthProvider fetches the provider config and rejects ids that are
// unknown or not OAuth-capable.
func (m *Manager) resolveOAuthProvider(providerID string) (*config.ProviderConfig, error) {
	p, err := m.providers.Get(providerID)
	if err != nil {
		return nil, wrapFlowError(providerID, KindUnsupportedProvider, err, "unknown provider")
	}
	if !p.UsesOAuth() {
		return nil, newFlowError(providerID, KindUnsupportedProvider,
			"provider %s does not use OAuth (auth type %s)", providerID, p.AuthType)
	}
	return p, nil
}

func (m *Manager) setError(providerID string, err error) {
	m.tracker.set(AuthStatus{Provider: providerID, State: StateError, LastError: err.Error()})
}
