package config

import (
	"fmt"

	pkgoauth "signet/pkg/oauth"
)

// AuthType defines how a provider authenticates.
type AuthType string

const (
	// AuthTypeOAuth authenticates through the browser-based authorization
	// code flow with PKCE.
	AuthTypeOAuth AuthType = "oauth"
	// AuthTypeAPIKey authenticates with a static key pasted by the user.
	AuthTypeAPIKey AuthType = "api_key"
	// AuthTypeNone disables authentication for the provider.
	AuthTypeNone AuthType = "none"
)

// Config is the top-level configuration structure for signet.
type Config struct {
	// Providers lists the AI providers accounts can be linked to.
	Providers []ProviderConfig `yaml:"providers"`

	// Broker configures the local token broker endpoint.
	Broker BrokerConfig `yaml:"broker,omitempty"`

	// CredentialDir overrides where credentials are persisted.
	// Default: ~/.config/signet/credentials
	CredentialDir string `yaml:"credentialDir,omitempty"`
}

// ProviderConfig describes one AI provider.
type ProviderConfig struct {
	ID          string   `yaml:"id"`                    // Stable identifier, used as credential key (e.g. "anthropic")
	DisplayName string   `yaml:"displayName,omitempty"` // Human-readable name for CLI output
	AuthType    AuthType `yaml:"authType"`              // oauth, api_key, or none

	// OAuth holds the flow endpoints and client settings. Required when
	// AuthType is oauth, ignored otherwise.
	OAuth *OAuthProviderConfig `yaml:"oauth,omitempty"`
}

// OAuthProviderConfig holds the authorization code flow settings for one
// provider.
type OAuthProviderConfig struct {
	ClientID string `yaml:"clientID"`

	// ClientSecret is optional. Public clients leave it empty; the token
	// request then carries an empty client_secret field.
	ClientSecret string `yaml:"clientSecret,omitempty"`

	// Issuer enables metadata discovery. When set and the explicit
	// endpoints below are empty, they are resolved from the issuer's
	// authorization server metadata.
	Issuer string `yaml:"issuer,omitempty"`

	AuthorizationEndpoint string `yaml:"authorizationEndpoint,omitempty"`
	TokenEndpoint         string `yaml:"tokenEndpoint,omitempty"`

	// UserInfoEndpoint is queried after authentication to resolve the
	// account email. Optional: without it the email comes from the token
	// response or the id_token claims.
	UserInfoEndpoint string `yaml:"userInfoEndpoint,omitempty"`

	// CallbackPort is the loopback port the redirect listener binds.
	// Default: 41717.
	CallbackPort int `yaml:"callbackPort,omitempty"`

	Scopes []string `yaml:"scopes,omitempty"`

	// ExtraAuthParams are appended to the authorization URL verbatim
	// (e.g. audience, prompt).
	ExtraAuthParams map[string]string `yaml:"extraAuthParams,omitempty"`
}

// Name returns the display name, falling back to the id.
func (p *ProviderConfig) Name() string {
	if p.DisplayName != "" {
		return p.DisplayName
	}
	return p.ID
}

// UsesOAuth reports whether the provider authenticates through the
// authorization code flow.
func (p *ProviderConfig) UsesOAuth() bool {
	return p.AuthType == AuthTypeOAuth
}

// RedirectURI returns the loopback redirect for the provider's callback
// port.
func (p *OAuthProviderConfig) RedirectURI() string {
	port := p.CallbackPort
	if port == 0 {
		port = DefaultCallbackPort
	}
	return fmt.Sprintf("http://127.0.0.1:%d%s", port, DefaultCallbackPath)
}

// NormalizedIssuer returns the issuer without a trailing slash.
func (p *OAuthProviderConfig) NormalizedIssuer() string {
	return pkgoauth.NormalizeIssuer(p.Issuer)
}

// BrokerConfig configures the local token broker endpoint served by
// `signet serve`.
type BrokerConfig struct {
	// Addr is the listen address. Default: 127.0.0.1:7767. Only loopback
	// addresses are accepted.
	Addr string `yaml:"addr,omitempty"`

	// Enabled gates the broker; the serve command refuses to start when
	// false.
	Enabled bool `yaml:"enabled,omitempty"`
}
