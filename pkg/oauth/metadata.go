package oauth

import (
	"slices"
	"strings"
)

// NormalizeIssuer strips the trailing slash from an issuer URL so discovery
// and caching treat "https://idp.example.com" and "https://idp.example.com/"
// as the same server.
func NormalizeIssuer(issuer string) string {
	return strings.TrimSuffix(issuer, "/")
}

// Metadata is the authorization server metadata document defined by
// RFC 8414, reduced to the fields the account linking flow reads. The same
// shape parses an OpenID Connect discovery document.
type Metadata struct {
	// Issuer is the authorization server's issuer identifier.
	Issuer string `json:"issuer"`

	// AuthorizationEndpoint is where the browser is sent to sign in.
	AuthorizationEndpoint string `json:"authorization_endpoint"`

	// TokenEndpoint is where codes and refresh tokens are redeemed.
	TokenEndpoint string `json:"token_endpoint"`

	// UserinfoEndpoint resolves the account identity (OIDC). Optional.
	UserinfoEndpoint string `json:"userinfo_endpoint,omitempty"`

	// ScopesSupported lists the OAuth 2.0 scope values supported.
	ScopesSupported []string `json:"scopes_supported,omitempty"`

	// ResponseTypesSupported lists the response_type values supported.
	ResponseTypesSupported []string `json:"response_types_supported,omitempty"`

	// GrantTypesSupported lists the grant types supported.
	GrantTypesSupported []string `json:"grant_types_supported,omitempty"`

	// CodeChallengeMethodsSupported lists the PKCE code challenge methods.
	CodeChallengeMethodsSupported []string `json:"code_challenge_methods_supported,omitempty"`
}

// SupportsPKCE reports whether the server advertises the S256 challenge
// method. A server that lists no methods at all is assumed to accept S256,
// which OAuth 2.1 requires anyway.
func (m *Metadata) SupportsPKCE() bool {
	if len(m.CodeChallengeMethodsSupported) == 0 {
		return true
	}
	return slices.Contains(m.CodeChallengeMethodsSupported, "S256")
}
