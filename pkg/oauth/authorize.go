package oauth

import (
	"fmt"
	"net/url"
	"strings"
)

// AuthorizeURL builds the authorization request URL rendered in the user's
// browser. The standard authorization-code parameters are always present;
// extra provider-specific parameters are appended verbatim.
//
// No network call is made here. The caller owns opening the URL.
func AuthorizeURL(endpoint, clientID, redirectURI string, scopes []string, state string, pkce *PKCEChallenge, extra map[string]string) (string, error) {
	if endpoint == "" {
		return "", fmt.Errorf("authorization endpoint is empty")
	}
	if pkce == nil {
		return "", fmt.Errorf("PKCE challenge is required")
	}

	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid authorization endpoint %q: %w", endpoint, err)
	}

	query := u.Query()
	query.Set("response_type", "code")
	query.Set("client_id", clientID)
	query.Set("redirect_uri", redirectURI)
	query.Set("state", state)
	query.Set("code_challenge", pkce.CodeChallenge)
	query.Set("code_challenge_method", pkce.CodeChallengeMethod)
	if len(scopes) > 0 {
		query.Set("scope", strings.Join(scopes, " "))
	}
	for key, value := range extra {
		query.Set(key, value)
	}

	u.RawQuery = query.Encode()
	return u.String(), nil
}
