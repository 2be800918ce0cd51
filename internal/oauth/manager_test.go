package oauth

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"signet/internal/config"
	"signet/internal/credstore"
	pkgoauth "signet/pkg/oauth"
)

type fakeProviders map[string]*config.ProviderConfig

func (f fakeProviders) Get(id string) (*config.ProviderConfig, error) {
	p, ok := f[id]
	if !ok {
		return nil, config.NewProviderNotFoundError(id, nil)
	}
	return p, nil
}

func oauthProvider(id, serverURL string) *config.ProviderConfig {
	return &config.ProviderConfig{
		ID:          id,
		DisplayName: strings.ToUpper(id[:1]) + id[1:],
		AuthType:    config.AuthTypeOAuth,
		OAuth: &config.OAuthProviderConfig{
			ClientID:              "client-1",
			ClientSecret:          "secret-1",
			AuthorizationEndpoint: serverURL + "/authorize",
			TokenEndpoint:         serverURL + "/token",
			Scopes:                []string{"profile", "models"},
			ExtraAuthParams:       map[string]string{"audience": "api"},
		},
	}
}

func newTestManager(t *testing.T, providers fakeProviders) (*Manager, credstore.Store) {
	t.Helper()
	store := credstore.NewMemoryStore()
	m := NewManager(providers, store)
	t.Cleanup(m.Close)
	return m, store
}

// callbackURL assembles the redirect a provider would send to the loopback
// listener.
func callbackURL(params map[string]string) string {
	values := url.Values{}
	for k, v := range params {
		values.Set(k, v)
	}
	return "http://127.0.0.1:41717/callback?" + values.Encode()
}

func TestManager_BuildAuthorizationURL(t *testing.T) {
	providers := fakeProviders{"anthropic": oauthProvider("anthropic", "https://auth.example.com")}
	m, _ := newTestManager(t, providers)

	req, err := m.BuildAuthorizationURL(t.Context(), "anthropic", "proj-1")
	if err != nil {
		t.Fatalf("BuildAuthorizationURL failed: %v", err)
	}

	u, err := url.Parse(req.URL)
	if err != nil {
		t.Fatalf("Returned URL does not parse: %v", err)
	}
	if u.Path != "/authorize" {
		t.Errorf("path = %q", u.Path)
	}

	query := u.Query()
	checks := map[string]string{
		"response_type":         "code",
		"client_id":             "client-1",
		"redirect_uri":          "http://127.0.0.1:41717/callback",
		"scope":                 "profile models",
		"code_challenge_method": "S256",
		"state":                 req.State,
		"audience":              "api",
	}
	for key, want := range checks {
		if got := query.Get(key); got != want {
			t.Errorf("query[%s] = %q, want %q", key, got, want)
		}
	}
	if query.Get("code_challenge") == "" {
		t.Error("code_challenge missing")
	}
	if query.Has("code_verifier") {
		t.Error("the verifier must never appear in the authorization URL")
	}

	if m.PendingSessions() != 1 {
		t.Errorf("PendingSessions = %d, want 1", m.PendingSessions())
	}

	status, ok := m.Status("anthropic")
	if !ok || status.State != StateAuthenticating {
		t.Errorf("Status = %+v, want Authenticating", status)
	}
}

func TestManager_BuildAuthorizationURL_UnsupportedProvider(t *testing.T) {
	providers := fakeProviders{
		"local-key": {ID: "local-key", AuthType: config.AuthTypeAPIKey},
	}
	m, _ := newTestManager(t, providers)

	_, err := m.BuildAuthorizationURL(t.Context(), "nope", "")
	if !IsKind(err, KindUnsupportedProvider) {
		t.Errorf("unknown provider: got %v, want UnsupportedProvider", err)
	}

	_, err = m.BuildAuthorizationURL(t.Context(), "local-key", "")
	if !IsKind(err, KindUnsupportedProvider) {
		t.Errorf("api_key provider: got %v, want UnsupportedProvider", err)
	}
	if IsRecoverable(err) {
		t.Error("UnsupportedProvider must not be recoverable")
	}
}

func TestManager_EndToEndAuthorization(t *testing.T) {
	var gotChallenge string
	var exchangeForm url.Values

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/token" {
			http.NotFound(w, r)
			return
		}
		r.ParseForm()
		exchangeForm = r.PostForm

		// The verifier in the exchange must hash to the challenge that
		// appeared in the authorization URL.
		if pkgoauth.ChallengeFromVerifier(r.PostFormValue("code_verifier")) != gotChallenge {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, `{"error":"invalid_grant","error_description":"challenge mismatch"}`)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"at-1","token_type":"Bearer","refresh_token":"rt-1","expires_in":3600,"email":"dev@example.com"}`)
	}))
	defer server.Close()

	providers := fakeProviders{"anthropic": oauthProvider("anthropic", server.URL)}
	m, store := newTestManager(t, providers)

	req, err := m.BuildAuthorizationURL(t.Context(), "anthropic", "proj-1")
	if err != nil {
		t.Fatalf("BuildAuthorizationURL failed: %v", err)
	}
	u, _ := url.Parse(req.URL)
	gotChallenge = u.Query().Get("code_challenge")

	token, err := m.HandleCallback(t.Context(), callbackURL(map[string]string{
		"code":  "test-code",
		"state": req.State,
	}))
	if err != nil {
		t.Fatalf("HandleCallback failed: %v", err)
	}

	if token.AccessToken != "at-1" {
		t.Errorf("AccessToken = %q", token.AccessToken)
	}
	if token.Email != "dev@example.com" {
		t.Errorf("Email = %q", token.Email)
	}
	if token.ProjectID != "proj-1" {
		t.Errorf("ProjectID = %q, want the session's project", token.ProjectID)
	}

	if got := exchangeForm.Get("grant_type"); got != "authorization_code" {
		t.Errorf("grant_type = %q", got)
	}
	if got := exchangeForm.Get("code"); got != "test-code" {
		t.Errorf("code = %q", got)
	}
	if got := exchangeForm.Get("redirect_uri"); got != "http://127.0.0.1:41717/callback" {
		t.Errorf("redirect_uri = %q", got)
	}

	creds, err := store.Get("anthropic")
	if err != nil || creds == nil {
		t.Fatalf("credentials not persisted: %v", err)
	}
	if creds.AccessToken != "at-1" || creds.RefreshToken != "rt-1" || creds.Email != "dev@example.com" {
		t.Errorf("persisted credentials = %+v", creds)
	}

	status, _ := m.Status("anthropic")
	if status.State != StateAuthenticated || status.Email != "dev@example.com" {
		t.Errorf("Status = %+v, want Authenticated", status)
	}

	if m.PendingSessions() != 0 {
		t.Errorf("PendingSessions = %d after callback, want 0", m.PendingSessions())
	}

	// Replaying the same callback must fail: the session is spent.
	_, err = m.HandleCallback(t.Context(), callbackURL(map[string]string{
		"code":  "test-code",
		"state": req.State,
	}))
	if !IsKind(err, KindInvalidState) {
		t.Errorf("replayed callback: got %v, want InvalidState", err)
	}
}

func TestManager_HandleCallback_MissingParams(t *testing.T) {
	providers := fakeProviders{"anthropic": oauthProvider("anthropic", "https://auth.example.com")}
	m, _ := newTestManager(t, providers)

	for name, raw := range map[string]string{
		"no code":  callbackURL(map[string]string{"state": "s1"}),
		"no state": callbackURL(map[string]string{"code": "c1"}),
		"neither":  callbackURL(nil),
	} {
		_, err := m.HandleCallback(t.Context(), raw)
		if !IsKind(err, KindInvalidCallback) {
			t.Errorf("%s: got %v, want InvalidCallback", name, err)
		}
	}
}

func TestManager_HandleCallback_UserCancelled(t *testing.T) {
	providers := fakeProviders{"anthropic": oauthProvider("anthropic", "https://auth.example.com")}
	m, _ := newTestManager(t, providers)

	req, err := m.BuildAuthorizationURL(t.Context(), "anthropic", "")
	if err != nil {
		t.Fatalf("BuildAuthorizationURL failed: %v", err)
	}

	_, err = m.HandleCallback(t.Context(), callbackURL(map[string]string{
		"error": "access_denied",
		"state": req.State,
	}))
	if !IsKind(err, KindUserCancelled) {
		t.Fatalf("got %v, want UserCancelled", err)
	}
	if !IsRecoverable(err) {
		t.Error("UserCancelled should be recoverable")
	}

	if m.PendingSessions() != 0 {
		t.Error("denial must spend the pending session")
	}
	status, _ := m.Status("anthropic")
	if status.State != StateUnauthenticated {
		t.Errorf("Status = %v, want Unauthenticated after denial", status.State)
	}
}

func TestManager_HandleCallback_ProviderError(t *testing.T) {
	providers := fakeProviders{"anthropic": oauthProvider("anthropic", "https://auth.example.com")}
	m, _ := newTestManager(t, providers)

	req, err := m.BuildAuthorizationURL(t.Context(), "anthropic", "")
	if err != nil {
		t.Fatalf("BuildAuthorizationURL failed: %v", err)
	}

	_, err = m.HandleCallback(t.Context(), callbackURL(map[string]string{
		"error":             "server_error",
		"error_description": "backend exploded",
		"state":             req.State,
	}))
	if !IsKind(err, KindTokenExchangeFailed) {
		t.Fatalf("got %v, want TokenExchangeFailed", err)
	}
	if !strings.Contains(err.Error(), "backend exploded") {
		t.Errorf("error should carry the description: %v", err)
	}
	if m.PendingSessions() != 0 {
		t.Error("error callback must spend the pending session")
	}

	status, _ := m.Status("anthropic")
	if status.State != StateError {
		t.Errorf("Status = %v, want Error", status.State)
	}
}

func TestManager_HandleCallback_UnknownState(t *testing.T) {
	providers := fakeProviders{"anthropic": oauthProvider("anthropic", "https://auth.example.com")}
	m, _ := newTestManager(t, providers)

	_, err := m.HandleCallback(t.Context(), callbackURL(map[string]string{
		"code":  "c1",
		"state": "never-issued",
	}))
	if !IsKind(err, KindInvalidState) {
		t.Errorf("got %v, want InvalidState", err)
	}
}

func TestManager_HandleCallback_ExchangeRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":"invalid_grant","error_description":"code expired"}`)
	}))
	defer server.Close()

	providers := fakeProviders{"anthropic": oauthProvider("anthropic", server.URL)}
	m, _ := newTestManager(t, providers)

	req, _ := m.BuildAuthorizationURL(t.Context(), "anthropic", "")
	_, err := m.HandleCallback(t.Context(), callbackURL(map[string]string{
		"code":  "c1",
		"state": req.State,
	}))
	if !IsKind(err, KindTokenExchangeFailed) {
		t.Fatalf("got %v, want TokenExchangeFailed", err)
	}

	status, _ := m.Status("anthropic")
	if status.State != StateError || status.LastError == "" {
		t.Errorf("Status = %+v, want Error with message", status)
	}
}

func TestManager_HandleCallback_ProviderRemovedMidFlow(t *testing.T) {
	providers := fakeProviders{"anthropic": oauthProvider("anthropic", "https://auth.example.com")}
	m, _ := newTestManager(t, providers)

	req, _ := m.BuildAuthorizationURL(t.Context(), "anthropic", "")
	delete(providers, "anthropic")

	_, err := m.HandleCallback(t.Context(), callbackURL(map[string]string{
		"code":  "c1",
		"state": req.State,
	}))
	if !IsKind(err, KindUnsupportedProvider) {
		t.Errorf("got %v, want UnsupportedProvider", err)
	}
}

func TestManager_HandleCallback_TokensSurviveUserInfoFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/token":
			w.Header().Set("Content-Type", "application/json")
			// No email and no id_token: forces the userinfo lookup.
			fmt.Fprint(w, `{"access_token":"at-1","refresh_token":"rt-1","expires_in":3600}`)
		case "/userinfo":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	p := oauthProvider("anthropic", server.URL)
	p.OAuth.UserInfoEndpoint = server.URL + "/userinfo"
	providers := fakeProviders{"anthropic": p}
	m, store := newTestManager(t, providers)

	req, _ := m.BuildAuthorizationURL(t.Context(), "anthropic", "")
	_, err := m.HandleCallback(t.Context(), callbackURL(map[string]string{
		"code":  "c1",
		"state": req.State,
	}))
	if !IsKind(err, KindUserInfoFailed) {
		t.Fatalf("got %v, want UserInfoFailed", err)
	}
	if !IsRecoverable(err) {
		t.Error("UserInfoFailed should be recoverable")
	}

	// The exchange succeeded, so the tokens must be persisted regardless.
	if !store.HasValidTokens("anthropic") {
		t.Error("tokens should be persisted despite the userinfo failure")
	}

	// Reconciliation recovers: the stored tokens are valid.
	status := m.GetAuthState(t.Context(), "anthropic")
	if status.State != StateAuthenticated {
		t.Errorf("GetAuthState = %v, want Authenticated", status.State)
	}
}

func TestManager_HandleCallback_EmailFromIDToken(t *testing.T) {
	idToken := buildIDToken(t, map[string]string{"sub": "u1", "email": "claims@example.com"})

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"access_token":"at-1","expires_in":3600,"id_token":%q}`, idToken)
	}))
	defer server.Close()

	providers := fakeProviders{"anthropic": oauthProvider("anthropic", server.URL)}
	m, store := newTestManager(t, providers)

	req, _ := m.BuildAuthorizationURL(t.Context(), "anthropic", "")
	token, err := m.HandleCallback(t.Context(), callbackURL(map[string]string{
		"code":  "c1",
		"state": req.State,
	}))
	if err != nil {
		t.Fatalf("HandleCallback failed: %v", err)
	}
	if token.Email != "claims@example.com" {
		t.Errorf("Email = %q, want the id_token claim", token.Email)
	}

	email, _ := store.GetEmail("anthropic")
	if email != "claims@example.com" {
		t.Errorf("stored email = %q", email)
	}
}

func TestManager_RefreshTokens(t *testing.T) {
	var refreshForm url.Values
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		refreshForm = r.PostForm
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"at-2","refresh_token":"rt-2","expires_in":7200}`)
	}))
	defer server.Close()

	providers := fakeProviders{"anthropic": oauthProvider("anthropic", server.URL)}
	m, store := newTestManager(t, providers)

	store.SetTokens("anthropic", credstore.Credentials{
		AccessToken:  "at-1",
		RefreshToken: "rt-1",
		Email:        "dev@example.com",
		ExpiresAt:    time.Now().Add(-time.Minute),
	})

	token, err := m.RefreshTokens(t.Context(), "anthropic")
	if err != nil {
		t.Fatalf("RefreshTokens failed: %v", err)
	}

	if refreshForm.Get("grant_type") != "refresh_token" {
		t.Errorf("grant_type = %q", refreshForm.Get("grant_type"))
	}
	if refreshForm.Get("refresh_token") != "rt-1" {
		t.Errorf("refresh_token = %q", refreshForm.Get("refresh_token"))
	}

	if token.AccessToken != "at-2" || token.RefreshToken != "rt-2" {
		t.Errorf("token = %+v", token)
	}

	creds, _ := store.Get("anthropic")
	if creds.AccessToken != "at-2" || creds.RefreshToken != "rt-2" {
		t.Errorf("persisted = %+v, want rotated tokens", creds)
	}
	if creds.Email != "dev@example.com" {
		t.Errorf("Email = %q, identity must survive the refresh", creds.Email)
	}

	status, _ := m.Status("anthropic")
	if status.State != StateAuthenticated || status.Email != "dev@example.com" {
		t.Errorf("Status = %+v", status)
	}
}

func TestManager_RefreshTokens_KeepsPriorRefreshToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"at-2","expires_in":3600}`)
	}))
	defer server.Close()

	providers := fakeProviders{"anthropic": oauthProvider("anthropic", server.URL)}
	m, store := newTestManager(t, providers)

	store.SetTokens("anthropic", credstore.Credentials{AccessToken: "at-1", RefreshToken: "rt-1"})

	token, err := m.RefreshTokens(t.Context(), "anthropic")
	if err != nil {
		t.Fatalf("RefreshTokens failed: %v", err)
	}
	if token.RefreshToken != "rt-1" {
		t.Errorf("RefreshToken = %q, want the prior one kept", token.RefreshToken)
	}

	rt, _ := store.GetRefreshToken("anthropic")
	if rt != "rt-1" {
		t.Errorf("stored refresh token = %q", rt)
	}
}

func TestManager_RefreshTokens_NoRefreshToken(t *testing.T) {
	providers := fakeProviders{"anthropic": oauthProvider("anthropic", "https://auth.example.com")}
	m, _ := newTestManager(t, providers)

	_, err := m.RefreshTokens(t.Context(), "anthropic")
	if !IsKind(err, KindRefreshFailed) {
		t.Fatalf("got %v, want RefreshFailed", err)
	}
	if IsRecoverable(err) {
		t.Error("a missing refresh token is terminal")
	}
}

func TestManager_RefreshTokens_Rejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":"invalid_grant"}`)
	}))
	defer server.Close()

	providers := fakeProviders{"anthropic": oauthProvider("anthropic", server.URL)}
	m, store := newTestManager(t, providers)
	store.SetRefreshToken("anthropic", "rt-dead")

	_, err := m.RefreshTokens(t.Context(), "anthropic")
	if !IsKind(err, KindRefreshFailed) {
		t.Fatalf("got %v, want RefreshFailed", err)
	}

	// A failed refresh never clears what is stored.
	rt, _ := store.GetRefreshToken("anthropic")
	if rt != "rt-dead" {
		t.Errorf("stored refresh token = %q, must not be cleared", rt)
	}
}

func TestManager_RefreshSerializedAcrossProviders(t *testing.T) {
	var inFlight, maxInFlight int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			max := atomic.LoadInt32(&maxInFlight)
			if n <= max || atomic.CompareAndSwapInt32(&maxInFlight, max, n) {
				break
			}
		}
		time.Sleep(30 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"at-new","expires_in":3600}`)
	}))
	defer server.Close()

	providers := fakeProviders{
		"anthropic": oauthProvider("anthropic", server.URL),
		"google":    oauthProvider("google", server.URL),
	}
	m, store := newTestManager(t, providers)
	store.SetRefreshToken("anthropic", "rt-a")
	store.SetRefreshToken("google", "rt-g")

	var wg sync.WaitGroup
	for _, id := range []string{"anthropic", "google", "anthropic", "google"} {
		wg.Add(1)
		go func(provider string) {
			defer wg.Done()
			if _, err := m.RefreshTokens(t.Context(), provider); err != nil {
				t.Errorf("RefreshTokens(%s) failed: %v", provider, err)
			}
		}(id)
	}
	wg.Wait()

	if got := atomic.LoadInt32(&maxInFlight); got != 1 {
		t.Errorf("max concurrent refresh calls = %d, want 1", got)
	}
}

func TestManager_GetValidAccessToken(t *testing.T) {
	var refreshCalls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&refreshCalls, 1)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"at-new","expires_in":3600}`)
	}))
	defer server.Close()

	providers := fakeProviders{"anthropic": oauthProvider("anthropic", server.URL)}
	m, store := newTestManager(t, providers)

	// Fresh token: returned unchanged, no refresh call.
	store.SetTokens("anthropic", credstore.Credentials{
		AccessToken:  "at-fresh",
		RefreshToken: "rt-1",
		ExpiresAt:    time.Now().Add(time.Hour),
	})
	token, err := m.GetValidAccessToken(t.Context(), "anthropic")
	if err != nil || token != "at-fresh" {
		t.Errorf("fresh: got (%q, %v)", token, err)
	}

	// No recorded expiry: also returned unchanged.
	store.SetTokens("anthropic", credstore.Credentials{AccessToken: "at-static", RefreshToken: "rt-1"})
	token, err = m.GetValidAccessToken(t.Context(), "anthropic")
	if err != nil || token != "at-static" {
		t.Errorf("no expiry: got (%q, %v)", token, err)
	}
	if atomic.LoadInt32(&refreshCalls) != 0 {
		t.Fatalf("refresh calls = %d before any expiring token", refreshCalls)
	}

	// Expiring within the 60 second window: refreshed.
	store.SetTokens("anthropic", credstore.Credentials{
		AccessToken:  "at-stale",
		RefreshToken: "rt-1",
		ExpiresAt:    time.Now().Add(30 * time.Second),
	})
	token, err = m.GetValidAccessToken(t.Context(), "anthropic")
	if err != nil || token != "at-new" {
		t.Errorf("expiring: got (%q, %v), want the refreshed token", token, err)
	}
	if atomic.LoadInt32(&refreshCalls) != 1 {
		t.Errorf("refresh calls = %d, want 1", refreshCalls)
	}
}

func TestManager_GetValidAccessToken_StaleWhenRefreshFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":"invalid_grant"}`)
	}))
	defer server.Close()

	providers := fakeProviders{"anthropic": oauthProvider("anthropic", server.URL)}
	m, store := newTestManager(t, providers)

	store.SetTokens("anthropic", credstore.Credentials{
		AccessToken:  "at-stale",
		RefreshToken: "rt-dead",
		ExpiresAt:    time.Now().Add(-time.Hour),
	})

	// The stored token comes back even though it is expired: the
	// downstream call gets to fail on its own terms.
	token, err := m.GetValidAccessToken(t.Context(), "anthropic")
	if err != nil {
		t.Fatalf("expected graceful degradation, got %v", err)
	}
	if token != "at-stale" {
		t.Errorf("token = %q, want the stale one", token)
	}
}

func TestManager_GetValidAccessToken_NotAuthenticated(t *testing.T) {
	providers := fakeProviders{"anthropic": oauthProvider("anthropic", "https://auth.example.com")}
	m, _ := newTestManager(t, providers)

	_, err := m.GetValidAccessToken(t.Context(), "anthropic")
	if !IsKind(err, KindRefreshFailed) {
		t.Errorf("got %v, want RefreshFailed", err)
	}
}

func TestManager_GetAuthState(t *testing.T) {
	var refreshStatus atomic.Int32
	refreshStatus.Store(http.StatusOK)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if code := int(refreshStatus.Load()); code != http.StatusOK {
			w.WriteHeader(code)
			fmt.Fprint(w, `{"error":"invalid_grant"}`)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"at-new","expires_in":3600}`)
	}))
	defer server.Close()

	providers := fakeProviders{
		"anthropic": oauthProvider("anthropic", server.URL),
		"local-key": {ID: "local-key", AuthType: config.AuthTypeAPIKey},
	}
	m, store := newTestManager(t, providers)

	// Nothing stored: Unauthenticated.
	if got := m.GetAuthState(t.Context(), "anthropic"); got.State != StateUnauthenticated {
		t.Errorf("empty store: %v", got.State)
	}

	// Valid tokens: Authenticated with the stored identity.
	store.SetTokens("anthropic", credstore.Credentials{
		AccessToken: "at-1",
		Email:       "dev@example.com",
		ExpiresAt:   time.Now().Add(time.Hour),
	})
	got := m.GetAuthState(t.Context(), "anthropic")
	if got.State != StateAuthenticated || got.Email != "dev@example.com" {
		t.Errorf("valid tokens: %+v", got)
	}

	// Expired access token with a refresh token: one refresh attempt.
	store.SetTokens("anthropic", credstore.Credentials{
		AccessToken:  "at-1",
		RefreshToken: "rt-1",
		ExpiresAt:    time.Now().Add(-time.Hour),
	})
	if got := m.GetAuthState(t.Context(), "anthropic"); got.State != StateAuthenticated {
		t.Errorf("refreshable: %v", got.State)
	}

	// Refresh rejected: Unauthenticated.
	refreshStatus.Store(http.StatusBadRequest)
	store.SetTokens("anthropic", credstore.Credentials{
		AccessToken:  "at-1",
		RefreshToken: "rt-dead",
		ExpiresAt:    time.Now().Add(-time.Hour),
	})
	if got := m.GetAuthState(t.Context(), "anthropic"); got.State != StateUnauthenticated {
		t.Errorf("dead refresh token: %v", got.State)
	}

	// Non-OAuth providers are never authenticated.
	if got := m.GetAuthState(t.Context(), "local-key"); got.State != StateUnauthenticated {
		t.Errorf("api_key provider: %v", got.State)
	}
	if _, tracked := m.Status("local-key"); tracked {
		t.Error("api_key provider must not be tracked")
	}
}

func TestManager_Logout(t *testing.T) {
	providers := fakeProviders{"anthropic": oauthProvider("anthropic", "https://auth.example.com")}
	m, store := newTestManager(t, providers)

	store.SetTokens("anthropic", credstore.Credentials{AccessToken: "at-1", RefreshToken: "rt-1"})

	if err := m.Logout("anthropic"); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}
	if store.HasValidTokens("anthropic") {
		t.Error("tokens should be cleared")
	}
	status, _ := m.Status("anthropic")
	if status.State != StateUnauthenticated {
		t.Errorf("Status = %v, want Unauthenticated", status.State)
	}

	// Logging out again is fine.
	if err := m.Logout("anthropic"); err != nil {
		t.Errorf("second Logout failed: %v", err)
	}

	if err := m.Logout("nope"); !IsKind(err, KindUnsupportedProvider) {
		t.Errorf("unknown provider: got %v, want UnsupportedProvider", err)
	}
}

func TestManager_DiscoveryFillsEndpoints(t *testing.T) {
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()

	mux.HandleFunc("/.well-known/oauth-authorization-server", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"issuer":                           server.URL,
			"authorization_endpoint":           server.URL + "/authorize",
			"token_endpoint":                   server.URL + "/token",
			"code_challenge_methods_supported": []string{"S256"},
		})
	})
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"at-1","expires_in":3600}`)
	})

	p := &config.ProviderConfig{
		ID:       "google",
		AuthType: config.AuthTypeOAuth,
		OAuth: &config.OAuthProviderConfig{
			ClientID: "client-1",
			Issuer:   server.URL,
			Scopes:   []string{"openid"},
		},
	}
	m, _ := newTestManager(t, fakeProviders{"google": p})

	req, err := m.BuildAuthorizationURL(t.Context(), "google", "")
	if err != nil {
		t.Fatalf("BuildAuthorizationURL failed: %v", err)
	}
	if !strings.HasPrefix(req.URL, server.URL+"/authorize") {
		t.Errorf("URL = %q, want the discovered authorization endpoint", req.URL)
	}

	token, err := m.HandleCallback(t.Context(), callbackURL(map[string]string{
		"code":  "c1",
		"state": req.State,
	}))
	if err != nil {
		t.Fatalf("HandleCallback failed: %v", err)
	}
	if token.AccessToken != "at-1" {
		t.Errorf("AccessToken = %q", token.AccessToken)
	}
}

func TestManager_WatchDeliversTransitions(t *testing.T) {
	providers := fakeProviders{"anthropic": oauthProvider("anthropic", "https://auth.example.com")}
	m, _ := newTestManager(t, providers)

	ch, cancel := m.Watch("anthropic")
	defer cancel()

	if _, err := m.BuildAuthorizationURL(t.Context(), "anthropic", ""); err != nil {
		t.Fatalf("BuildAuthorizationURL failed: %v", err)
	}

	select {
	case status := <-ch:
		if status.State != StateAuthenticating {
			t.Errorf("observed %v, want Authenticating", status.State)
		}
	case <-time.After(time.Second):
		t.Fatal("no state transition delivered")
	}
}
