// Package broker serves stored provider tokens to other tools on the
// machine over a loopback-only HTTP endpoint.
//
// `signet serve` runs this service so that local clients (editors, agents,
// scripts) can fetch a currently-valid access token with one GET instead of
// implementing the OAuth flow themselves:
//
//	GET /healthz              liveness probe
//	GET /v1/providers         configured provider summaries
//	GET /v1/token/{provider}  access token, refreshed if necessary
//
// The token endpoint answers 404 for providers that are not configured and
// 401 with the flow taxonomy kind for providers that are configured but not
// authenticated, so callers can tell a typo from a missing sign-in.
//
// Binding follows the OAuth native-app loopback exception: non-loopback
// addresses are refused unless remote serving is explicitly allowed and TLS
// is configured, because the responses carry bearer tokens.
package broker
