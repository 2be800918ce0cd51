package oauth

import (
	"context"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"
)

func startCallbackServer(t *testing.T) (*CallbackServer, string) {
	t.Helper()
	server := NewCallbackServer(freePort(t))

	redirectURI, err := server.Start(t.Context())
	if err != nil {
		t.Fatalf("Failed to start callback server: %v", err)
	}
	t.Cleanup(server.Stop)

	return server, redirectURI
}

func TestCallbackServer_DeliversCode(t *testing.T) {
	server, redirectURI := startCallbackServer(t)

	if !strings.HasPrefix(redirectURI, "http://127.0.0.1:") || !strings.HasSuffix(redirectURI, "/callback") {
		t.Fatalf("redirect URI = %q", redirectURI)
	}

	resp, err := http.Get(redirectURI + "?code=test-code&state=test-state")
	if err != nil {
		t.Fatalf("Callback request failed: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
	if !strings.Contains(string(body), "Sign-in complete") {
		t.Error("success page not rendered")
	}
	for header, want := range map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
		"Cache-Control":          "no-store",
		"Referrer-Policy":        "no-referrer",
	} {
		if got := resp.Header.Get(header); got != want {
			t.Errorf("header %s = %q, want %q", header, got, want)
		}
	}

	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()
	result, err := server.WaitForCallback(ctx)
	if err != nil {
		t.Fatalf("WaitForCallback failed: %v", err)
	}

	if result.Code != "test-code" || result.State != "test-state" {
		t.Errorf("result = %+v", result)
	}
	if result.IsError() {
		t.Error("IsError() = true for a code delivery")
	}
	if !strings.Contains(result.RawURL, "code=test-code") || !strings.Contains(result.RawURL, "state=test-state") {
		t.Errorf("RawURL lost parameters: %q", result.RawURL)
	}
}

func TestCallbackServer_RendersErrorPage(t *testing.T) {
	server, redirectURI := startCallbackServer(t)

	resp, err := http.Get(redirectURI + "?error=access_denied&error_description=user+said+no&state=s1")
	if err != nil {
		t.Fatalf("Callback request failed: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	if !strings.Contains(string(body), "access_denied") {
		t.Error("error page should name the error code")
	}
	if !strings.Contains(string(body), "user said no") {
		t.Error("error page should carry the description")
	}

	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()
	result, err := server.WaitForCallback(ctx)
	if err != nil {
		t.Fatalf("WaitForCallback failed: %v", err)
	}
	if !result.IsError() || result.Error != "access_denied" {
		t.Errorf("result = %+v", result)
	}
}

func TestCallbackServer_SecondRequestRejected(t *testing.T) {
	_, redirectURI := startCallbackServer(t)

	first, err := http.Get(redirectURI + "?code=c1&state=s1")
	if err != nil {
		t.Fatalf("First request failed: %v", err)
	}
	first.Body.Close()

	second, err := http.Get(redirectURI + "?code=c2&state=s2")
	if err != nil {
		t.Fatalf("Second request failed: %v", err)
	}
	second.Body.Close()

	if second.StatusCode != http.StatusNotFound {
		t.Errorf("second request status = %d, want 404", second.StatusCode)
	}
}

func TestCallbackServer_WaitHonorsContext(t *testing.T) {
	server, _ := startCallbackServer(t)

	ctx, cancel := context.WithTimeout(t.Context(), 50*time.Millisecond)
	defer cancel()

	_, err := server.WaitForCallback(ctx)
	if err != context.DeadlineExceeded {
		t.Errorf("got %v, want context.DeadlineExceeded", err)
	}
}

func TestCallbackServer_PortBusy(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen failed: %v", err)
	}
	defer l.Close()
	port := l.Addr().(*net.TCPAddr).Port

	server := NewCallbackServer(port)
	_, err = server.Start(t.Context())
	if !IsKind(err, KindNetworkError) {
		t.Errorf("got %v, want NetworkError", err)
	}
}
