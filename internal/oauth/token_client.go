package oauth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"signet/internal/config"
	"signet/pkg/logging"
	pkgoauth "signet/pkg/oauth"
)

const (
	// tokenRequestTimeout bounds one grant round-trip.
	tokenRequestTimeout = 30 * time.Second

	// maxTokenResponseBytes caps how much of a token or userinfo response
	// is read.
	maxTokenResponseBytes = 1 << 20

	// defaultExpiresIn is assumed when the provider omits expires_in.
	defaultExpiresIn = 3600
)

// TokenClient talks to provider token and userinfo endpoints. Thread-safe.
type TokenClient struct {
	httpClient *http.Client
}

// NewTokenClient creates a token client. A nil httpClient gets a default
// with the standard request timeout.
func NewTokenClient(httpClient *http.Client) *TokenClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: tokenRequestTimeout}
	}
	return &TokenClient{httpClient: httpClient}
}

// tokenResponse is the provider's JSON reply to a grant request. Error
// fields double as the RFC 6749 error document.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	Scope        string `json:"scope"`
	IDToken      string `json:"id_token"`

	// Some providers return account hints directly in the token response.
	Email     string `json:"email"`
	ProjectID string `json:"project_id"`

	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// ExchangeCode redeems an authorization code for tokens using the PKCE
// verifier bound to the session that produced the code.
func (c *TokenClient) ExchangeCode(ctx context.Context, p *config.ProviderConfig, tokenEndpoint, code, verifier, redirectURI string) (*pkgoauth.Token, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("code_verifier", verifier)
	form.Set("client_id", p.OAuth.ClientID)
	// client_secret is always sent; public clients carry it empty.
	form.Set("client_secret", p.OAuth.ClientSecret)
	form.Set("redirect_uri", redirectURI)

	logging.Debug("OAuth", "Exchanging authorization code for provider %s", p.ID)

	status, body, err := c.postForm(ctx, tokenEndpoint, form)
	if err != nil {
		return nil, wrapFlowError(p.ID, KindNetworkError, err, "token endpoint unreachable")
	}

	token, terr := c.parseTokenResponse(status, body)
	if terr != nil {
		return nil, wrapFlowError(p.ID, KindTokenExchangeFailed, terr, "authorization server rejected the code")
	}

	logging.Debug("OAuth", "Code exchange succeeded for provider %s (expires in %ds)", p.ID, token.ExpiresIn)

	return token, nil
}

// Refresh redeems a refresh token for a fresh access token.
func (c *TokenClient) Refresh(ctx context.Context, p *config.ProviderConfig, tokenEndpoint, refreshToken string) (*pkgoauth.Token, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)
	form.Set("client_id", p.OAuth.ClientID)
	form.Set("client_secret", p.OAuth.ClientSecret)

	logging.Debug("OAuth", "Refreshing tokens for provider %s", p.ID)

	status, body, err := c.postForm(ctx, tokenEndpoint, form)
	if err != nil {
		return nil, wrapFlowError(p.ID, KindNetworkError, err, "token endpoint unreachable")
	}

	token, terr := c.parseTokenResponse(status, body)
	if terr != nil {
		return nil, wrapFlowError(p.ID, KindRefreshFailed, terr, "authorization server rejected the refresh token")
	}

	logging.Debug("OAuth", "Refresh succeeded for provider %s (expires in %ds)", p.ID, token.ExpiresIn)

	return token, nil
}

// FetchUserInfo resolves the account profile behind accessToken.
func (c *TokenClient) FetchUserInfo(ctx context.Context, p *config.ProviderConfig, userInfoEndpoint, accessToken string) (*pkgoauth.UserInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, userInfoEndpoint, nil)
	if err != nil {
		return nil, wrapFlowError(p.ID, KindUserInfoFailed, err, "invalid userinfo endpoint")
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, wrapFlowError(p.ID, KindUserInfoFailed, err, "userinfo endpoint unreachable")
	}
	defer resp.Body.Close()

	body, err := readCapped(resp.Body)
	if err != nil {
		return nil, wrapFlowError(p.ID, KindUserInfoFailed, err, "reading userinfo response")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, newFlowError(p.ID, KindUserInfoFailed, "userinfo endpoint returned status %d", resp.StatusCode)
	}

	var info pkgoauth.UserInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, wrapFlowError(p.ID, KindUserInfoFailed, err, "malformed userinfo response")
	}

	return &info, nil
}

// postForm submits the grant request and returns the raw response.
func (c *TokenClient) postForm(ctx context.Context, endpoint string, form url.Values) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := readCapped(resp.Body)
	if err != nil {
		return 0, nil, err
	}

	return resp.StatusCode, body, nil
}

// parseTokenResponse turns the raw grant reply into a Token. A response that
// carries access_token counts as success whatever the HTTP status; anything
// else is described from the RFC 6749 error fields.
func (c *TokenClient) parseTokenResponse(status int, body []byte) (*pkgoauth.Token, error) {
	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return nil, fmt.Errorf("malformed token response (status %d): %w", status, err)
	}

	if tr.AccessToken == "" {
		return nil, fmt.Errorf("%s", describeTokenError(status, &tr))
	}

	token := &pkgoauth.Token{
		AccessToken:  tr.AccessToken,
		TokenType:    tr.TokenType,
		RefreshToken: tr.RefreshToken,
		ExpiresIn:    tr.ExpiresIn,
		Scope:        tr.Scope,
		IDToken:      tr.IDToken,
		Email:        tr.Email,
		ProjectID:    tr.ProjectID,
	}
	if token.TokenType == "" {
		token.TokenType = "Bearer"
	}
	if token.ExpiresIn <= 0 {
		token.ExpiresIn = defaultExpiresIn
	}
	token.SetExpiresAtFromExpiresIn()

	return token, nil
}

// describeTokenError picks the most specific description available:
// error_description, then the error code, then the HTTP status.
func describeTokenError(status int, tr *tokenResponse) string {
	switch {
	case tr.ErrorDescription != "":
		return tr.ErrorDescription
	case tr.Error != "":
		return tr.Error
	default:
		return fmt.Sprintf("no access token in response (status %d)", status)
	}
}

// readCapped reads at most maxTokenResponseBytes and rejects larger bodies.
func readCapped(r io.Reader) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r, maxTokenResponseBytes+1))
	if err != nil {
		return nil, err
	}
	if len(body) > maxTokenResponseBytes {
		return nil, fmt.Errorf("response exceeds %d bytes", maxTokenResponseBytes)
	}
	return body, nil
}

// idTokenClaims are the identity fields read from an unverified id_token
// payload. Used as an email fallback when the provider has no userinfo
// endpoint. Signature verification is not attempted: the token arrived over
// the provider's own TLS channel and is only mined for display hints.
type idTokenClaims struct {
	Subject string `json:"sub"`
	Email   string `json:"email"`
	Issuer  string `json:"iss"`
}

// parseIDTokenClaims decodes the payload segment of a JWT-shaped id_token.
func parseIDTokenClaims(idToken string) (*idTokenClaims, error) {
	parts := strings.Split(idToken, ".")
	if len(parts) != 3 {
		return nil, fmt.Errorf("id_token is not a JWT")
	}

	decoded, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		// Some implementations pad or use the standard alphabet.
		decoded, err = base64.RawStdEncoding.DecodeString(parts[1])
		if err != nil {
			return nil, fmt.Errorf("failed to decode id_token payload: %w", err)
		}
	}

	var claims idTokenClaims
	if err := json.Unmarshal(decoded, &claims); err != nil {
		return nil, fmt.Errorf("failed to parse id_token claims: %w", err)
	}

	return &claims, nil
}
