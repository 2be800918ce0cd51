package oauth

import (
	"context"
	_ "embed"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"sync"
	"time"

	"signet/internal/config"
	"signet/pkg/logging"
)

// CallbackTimeout is how long the loopback server waits for the browser
// round-trip. It matches the pending session TTL: a callback arriving later
// would be rejected anyway.
const CallbackTimeout = DefaultSessionTTL

//go:embed templates/callback_success.html
var callbackSuccessHTML string

//go:embed templates/callback_error.html
var callbackErrorHTML string

var (
	callbackSuccessTmpl = template.Must(template.New("success").Parse(callbackSuccessHTML))
	callbackErrorTmpl   = template.Must(template.New("error").Parse(callbackErrorHTML))
)

// CallbackResult is what the authorization server delivered to the loopback
// listener. RawURL preserves the redirect verbatim for Manager.HandleCallback.
type CallbackResult struct {
	Code             string
	State            string
	Error            string
	ErrorDescription string
	RawURL           string
}

// IsError reports whether the authorization server returned an error
// document instead of a code.
func (r *CallbackResult) IsError() bool {
	return r.Error != ""
}

// CallbackServer is a single-shot loopback HTTP server that receives one
// authorization redirect and then shuts itself down. Only the first request
// to the callback path is honored; the redirect URI it serves must match
// the one the authorization request carried.
type CallbackServer struct {
	port     int
	server   *http.Server
	listener net.Listener
	resultCh chan *CallbackResult
	errorCh  chan error
	once     sync.Once
}

// NewCallbackServer creates a callback server for the given port. Zero
// selects the default callback port.
func NewCallbackServer(port int) *CallbackServer {
	if port == 0 {
		port = config.DefaultCallbackPort
	}

	return &CallbackServer{
		port:     port,
		resultCh: make(chan *CallbackResult, 1),
		errorCh:  make(chan error, 1),
	}
}

// Start binds the loopback listener and begins serving. The server stops
// when the context is cancelled, after the first callback, or on Stop.
// Returns the redirect URI to advertise.
func (s *CallbackServer) Start(ctx context.Context) (string, error) {
	addr := fmt.Sprintf("127.0.0.1:%d", s.port)

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return "", wrapFlowError("", KindNetworkError, err, "cannot listen on %s", addr)
	}

	s.listener = listener
	s.port = listener.Addr().(*net.TCPAddr).Port

	mux := http.NewServeMux()
	mux.HandleFunc(config.DefaultCallbackPath, s.handleCallback)

	s.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			select {
			case s.errorCh <- err:
			default:
			}
		}
	}()

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	logging.Debug("OAuth", "Callback server listening on %s", s.RedirectURI())

	return s.RedirectURI(), nil
}

// WaitForCallback blocks until the redirect arrives, the server fails, the
// context is cancelled, or the callback timeout elapses.
func (s *CallbackServer) WaitForCallback(ctx context.Context) (*CallbackResult, error) {
	timeout := time.NewTimer(CallbackTimeout)
	defer timeout.Stop()

	select {
	case result := <-s.resultCh:
		return result, nil
	case err := <-s.errorCh:
		return nil, wrapFlowError("", KindNetworkError, err, "callback server failed")
	case <-timeout.C:
		return nil, newFlowError("", KindNetworkError, "timed out after %s waiting for the browser", CallbackTimeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// handleCallback accepts exactly one redirect. Anything after the first
// request gets a 404: the session it could name is already spent.
func (s *CallbackServer) handleCallback(w http.ResponseWriter, r *http.Request) {
	var handled bool
	s.once.Do(func() {
		handled = true
		s.processCallback(w, r)
	})

	if !handled {
		http.NotFound(w, r)
	}
}

func (s *CallbackServer) processCallback(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("X-Frame-Options", "DENY")
	w.Header().Set("Content-Security-Policy", "default-src 'self'; style-src 'unsafe-inline'")
	w.Header().Set("Referrer-Policy", "no-referrer")
	w.Header().Set("Cache-Control", "no-store")

	query := r.URL.Query()
	result := &CallbackResult{
		Code:             query.Get("code"),
		State:            query.Get("state"),
		Error:            query.Get("error"),
		ErrorDescription: query.Get("error_description"),
		RawURL:           s.RedirectURI() + "?" + r.URL.RawQuery,
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	var renderErr error
	if result.IsError() {
		renderErr = callbackErrorTmpl.Execute(w, map[string]string{
			"Error":       result.Error,
			"Description": result.ErrorDescription,
		})
	} else {
		renderErr = callbackSuccessTmpl.Execute(w, nil)
	}
	if renderErr != nil {
		logging.Warn("OAuth", "Rendering callback page failed: %v", renderErr)
	}

	select {
	case s.resultCh <- result:
	default:
	}

	// Let the response flush before tearing the listener down.
	go func() {
		time.Sleep(time.Second)
		s.Stop()
	}()
}

// Stop shuts the server down. Safe to call multiple times.
func (s *CallbackServer) Stop() {
	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(ctx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
	}
}

// RedirectURI returns the redirect URI served by this listener.
func (s *CallbackServer) RedirectURI() string {
	return fmt.Sprintf("http://127.0.0.1:%d%s", s.port, config.DefaultCallbackPath)
}

// Port returns the bound port.
func (s *CallbackServer) Port() int {
	return s.port
}
