package oauth

import (
	"strings"
	"time"

	"golang.org/x/oauth2"
)

const (
	// DefaultExpiryMargin pads expiry checks so a token about to lapse is
	// treated as already expired. Covers clock skew between this machine
	// and the provider plus the latency of the request carrying the token.
	DefaultExpiryMargin = 30 * time.Second

	// TokenRefreshThreshold marks tokens as "expiring soon" in status
	// output. A token inside the threshold still authenticates; the next
	// resolution refreshes it.
	TokenRefreshThreshold = 5 * time.Minute

	// DefaultCredentialDir is where linked provider credentials are
	// persisted, relative to the user's home directory.
	DefaultCredentialDir = ".config/signet/credentials"
)

// Token is a provider token set together with the identity it was granted
// for. It round-trips through the credential store as JSON.
type Token struct {
	// AccessToken authenticates requests to the provider.
	AccessToken string `json:"access_token"`

	// TokenType is the scheme the access token is presented with,
	// normally "Bearer".
	TokenType string `json:"token_type,omitempty"`

	// RefreshToken redeems new access tokens without a browser round
	// trip. Providers may omit it, including on refresh responses.
	RefreshToken string `json:"refresh_token,omitempty"`

	// ExpiresIn is the lifetime in seconds reported by the token
	// endpoint. Only meaningful at receipt; ExpiresAt is the durable form.
	ExpiresIn int `json:"expires_in,omitempty"`

	// ExpiresAt is the absolute expiry instant derived from ExpiresIn.
	// A zero value means the token never expires.
	ExpiresAt time.Time `json:"expires_at,omitempty"`

	// Scope holds the granted scopes, space separated.
	Scope string `json:"scope,omitempty"`

	// Email is the account the provider linked this token to, when the
	// grant response carried an identity.
	Email string `json:"email,omitempty"`

	// ProjectID is the provider-side project or organization the token is
	// bound to, when the provider reports one.
	ProjectID string `json:"project_id,omitempty"`

	// IDToken is the OIDC ID token, when the provider issued one.
	IDToken string `json:"id_token,omitempty"`
}

// IsExpired reports whether the token is expired or lapses within
// DefaultExpiryMargin.
func (t *Token) IsExpired() bool {
	return t.IsExpiredWithMargin(DefaultExpiryMargin)
}

// IsExpiredWithMargin reports whether the token is expired or lapses within
// the given margin. Tokens without an expiry never expire.
func (t *Token) IsExpiredWithMargin(margin time.Duration) bool {
	if t.ExpiresAt.IsZero() {
		return false
	}
	return time.Now().Add(margin).After(t.ExpiresAt)
}

// SetExpiresAtFromExpiresIn pins the relative expires_in of a token response
// to an absolute instant. Call it once, when the response arrives; an
// ExpiresAt already set is left alone.
func (t *Token) SetExpiresAtFromExpiresIn() {
	if t.ExpiresIn > 0 && t.ExpiresAt.IsZero() {
		t.ExpiresAt = time.Now().Add(time.Duration(t.ExpiresIn) * time.Second)
	}
}

// Scopes splits the space separated Scope string into individual scopes.
func (t *Token) Scopes() []string {
	if t.Scope == "" {
		return nil
	}
	return strings.Fields(t.Scope)
}

// ToOAuth2Token bridges to golang.org/x/oauth2 for code that consumes its
// Token type. The ID token travels in the extras, matching where the oauth2
// package itself surfaces it.
func (t *Token) ToOAuth2Token() *oauth2.Token {
	token := &oauth2.Token{
		AccessToken:  t.AccessToken,
		TokenType:    t.TokenType,
		RefreshToken: t.RefreshToken,
		Expiry:       t.ExpiresAt,
	}

	if t.IDToken != "" {
		token = token.WithExtra(map[string]interface{}{
			"id_token": t.IDToken,
		})
	}

	return token
}

// UserInfo carries the identity claims read from a provider's userinfo
// endpoint or from ID token claims. Only the claims shown in status output
// are parsed.
type UserInfo struct {
	// Subject is the provider's stable user identifier (the sub claim).
	Subject string `json:"sub"`
	// Email is the signed-in account's email address.
	Email string `json:"email"`
	// PreferredUsername stands in for the email with providers that put
	// the login identifier there instead.
	PreferredUsername string `json:"preferred_username"`
}

// ResolvedEmail picks the best identity string available in the claims.
func (u *UserInfo) ResolvedEmail() string {
	if u.Email != "" {
		return u.Email
	}
	return u.PreferredUsername
}

// PKCEChallenge is a Proof Key for Code Exchange pair. The challenge goes
// out with the authorization request; the verifier stays local until the
// token exchange proves both came from the same client.
type PKCEChallenge struct {
	// CodeVerifier is the random secret. It leaves the process only once,
	// in the token exchange request body.
	CodeVerifier string

	// CodeChallenge is the base64url-encoded SHA-256 digest of the
	// verifier, sent with the authorization request.
	CodeChallenge string

	// CodeChallengeMethod is always "S256". The plain method is not
	// offered.
	CodeChallengeMethod string
}
