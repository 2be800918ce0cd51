// Package oauth provides the OAuth 2.0 protocol primitives shared by the
// signet core and by applications that embed it.
//
// This package contains the pure, storage-free pieces of the authorization
// code flow: PKCE generation (RFC 7636, S256 only), state nonce generation,
// authorization URL construction, token and server-metadata types.
// Orchestration, session tracking, and persistence live in internal/oauth
// and internal/credstore.
//
// # What lives here
//
//   - PKCEChallenge: verifier/challenge pair generation (RFC 7636)
//   - GenerateState: anti-CSRF state nonce
//   - AuthorizeURL: authorization request URL construction
//   - Token: a token set with expiry arithmetic
//   - Metadata: the RFC 8414 / OIDC discovery document and its Client
//
// # Example
//
//	import "signet/pkg/oauth"
//
//	pkce, err := oauth.GeneratePKCE()
//	state, err := oauth.GenerateState()
//	url, err := oauth.AuthorizeURL(endpoint, clientID, redirectURI, scopes, state, pkce, nil)
//
// The weaker "plain" PKCE transform is intentionally not implemented.
package oauth
