// Package oauth implements the OAuth 2.0 authorization-code-with-PKCE
// lifecycle that links local AI provider accounts to signet.
//
// The package owns everything between "the user typed `signet auth login`"
// and "a token set is stored": preparing the authorization URL, receiving
// the browser redirect on a loopback listener, exchanging the code,
// refreshing tokens, and answering status questions. Persisted credentials
// live in the credstore package; provider settings come from the config
// package.
//
// # Anatomy of a sign-in
//
// One sign-in is a round-trip through the user's browser:
//
//  1. Manager.BuildAuthorizationURL records a pending session (PKCE
//     verifier + state nonce) and returns the authorization URL
//  2. CallbackServer binds 127.0.0.1 on the provider's callback port and
//     waits for the redirect
//  3. The browser opens, the user signs in, the provider redirects to the
//     loopback listener with code and state
//  4. Manager.HandleCallback spends the pending session, exchanges the
//     code at the token endpoint, persists the token set, and resolves
//     the account identity
//
// The Adapter wires the Manager into the api.AuthHandler interface so the
// CLI commands and the token broker never depend on this package's types.
//
// # Principal types
//
//   - SessionStore: single-use registry of pending authorization attempts,
//     keyed by state nonce, swept on a TTL
//   - TokenClient: token endpoint grants (authorization_code,
//     refresh_token) and the userinfo lookup
//   - CallbackServer: single-shot loopback listener for the redirect
//   - Manager: coordinates the lifecycle and tracks per-provider state
//   - Adapter: exposes the Manager as api.AuthHandler
//
// # Security properties
//
// The flow follows the OAuth 2.0 native-app profile: PKCE with the S256
// challenge method (the plain method is never offered), a 32-byte random
// state nonce checked on every callback, and a loopback-only redirect URI.
// Sessions are strictly single use; a replayed or unknown state is
// rejected as InvalidState. Expired sessions are rejected with the same
// kind, whether the sweeper got to them first or not.
//
// Tokens never appear in log output. State nonces are logged as an
// 8-character prefix, account emails likewise, and RedactedToken guards
// token material against accidental fmt printing.
//
// Refresh grants are serialized process-wide: providers that rotate
// refresh tokens invalidate the old one on use, so concurrent refreshes
// could strand the stored credentials.
package oauth
