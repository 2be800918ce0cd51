package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/google/uuid"

	"signet/internal/api"
	"signet/internal/config"
	"signet/internal/oauth"
	"signet/pkg/logging"
)

const (
	// DefaultReadHeaderTimeout is the timeout for reading request headers.
	DefaultReadHeaderTimeout = 10 * time.Second
	// DefaultWriteTimeout bounds a whole response, including a token
	// refresh performed on behalf of the caller.
	DefaultWriteTimeout = 30 * time.Second
	// DefaultIdleTimeout is the idle timeout for keepalive connections.
	DefaultIdleTimeout = 120 * time.Second
)

// Config configures the token broker endpoint.
type Config struct {
	// Addr is the listen address. Only loopback addresses are accepted
	// unless AllowRemote and the TLS files are set.
	Addr string

	// AllowRemote permits a non-loopback bind. TLS is then mandatory:
	// bearer tokens never travel plaintext off the machine.
	AllowRemote bool

	// TLSCertFile and TLSKeyFile enable TLS when both are set.
	TLSCertFile string
	TLSKeyFile  string
}

// Server is the local token broker: a small HTTP service other tools on the
// machine query for fresh access tokens instead of re-implementing OAuth.
// Token resolution goes through the auth handler, so a stored token that is
// about to expire is refreshed transparently before it is served.
type Server struct {
	cfg        Config
	auth       api.AuthHandler
	httpServer *http.Server
	listener   net.Listener
}

// TokenResponse is the body served for GET /v1/token/{provider}.
type TokenResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at,omitempty"`
	Email       string    `json:"email,omitempty"`
}

// ErrorResponse is the error envelope for non-2xx responses. Kind carries
// the flow taxonomy name when the failure came from the auth lifecycle.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// New creates a broker server over the given auth handler. The listen
// address is validated here, not at Start: refusing a remote bind without
// TLS is a configuration error the user should see immediately.
func New(cfg Config, auth api.AuthHandler) (*Server, error) {
	if cfg.Addr == "" {
		cfg.Addr = config.DefaultBrokerAddr
	}

	if !isLoopbackAddr(cfg.Addr) {
		if !cfg.AllowRemote {
			return nil, fmt.Errorf("refusing to bind non-loopback address %s (use --allow-remote with TLS to serve other hosts)", cfg.Addr)
		}
		if cfg.TLSCertFile == "" || cfg.TLSKeyFile == "" {
			return nil, fmt.Errorf("non-loopback bind %s requires TLS (set --tls-cert and --tls-key)", cfg.Addr)
		}
	}

	s := &Server{cfg: cfg, auth: auth}
	s.httpServer = &http.Server{
		Handler:           s.routes(),
		ReadHeaderTimeout: DefaultReadHeaderTimeout,
		WriteTimeout:      DefaultWriteTimeout,
		IdleTimeout:       DefaultIdleTimeout,
	}

	return s, nil
}

// Start binds the listener and begins serving in the background. When
// running under systemd, READY is signalled after the bind succeeds. The
// server stops when the context is cancelled or on Shutdown.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("binding token broker to %s: %w", s.cfg.Addr, err)
	}
	s.listener = ln

	go func() {
		var serveErr error
		if s.cfg.TLSCertFile != "" && s.cfg.TLSKeyFile != "" {
			serveErr = s.httpServer.ServeTLS(ln, s.cfg.TLSCertFile, s.cfg.TLSKeyFile)
		} else {
			serveErr = s.httpServer.Serve(ln)
		}
		if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			logging.Error("Broker", serveErr, "Token broker stopped unexpectedly")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.Shutdown(shutdownCtx)
	}()

	if sent, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		logging.Warn("Broker", "sd_notify READY failed: %v", err)
	} else if sent {
		logging.Debug("Broker", "Notified systemd: READY")
	}

	logging.Info("Broker", "Token broker listening on %s", ln.Addr())

	return nil
}

// Shutdown signals STOPPING to systemd, drains in-flight requests and stops
// the listener. Safe to call more than once.
func (s *Server) Shutdown(ctx context.Context) error {
	if sent, err := daemon.SdNotify(false, daemon.SdNotifyStopping); err != nil {
		logging.Warn("Broker", "sd_notify STOPPING failed: %v", err)
	} else if sent {
		logging.Debug("Broker", "Notified systemd: STOPPING")
	}

	err := s.httpServer.Shutdown(ctx)
	logging.Info("Broker", "Token broker stopped")
	return err
}

// Addr returns the bound address once Start has succeeded, the configured
// address before that.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.cfg.Addr
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /v1/providers", s.handleProviders)
	mux.HandleFunc("GET /v1/token/{provider}", s.handleToken)
	return s.logRequests(mux)
}

// statusRecorder captures the response code for the request log.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// logRequests logs method, path, status and duration for every request. The
// query string and headers stay out of the log: token material never hits
// disk through this path.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.NewString()
		w.Header().Set("X-Request-Id", requestID)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)

		logging.Debug("Broker", "%s %s -> %d in %s (request=%s)",
			r.Method, r.URL.Path, rec.status, time.Since(start).Round(time.Millisecond),
			logging.TruncateSessionID(requestID))
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleProviders(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.auth.Providers())
}

// handleToken resolves a currently-usable access token for the provider.
// Unknown providers are 404, unauthenticated ones 401 with the taxonomy
// kind, so callers can distinguish "run signet auth login" from a typo.
func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	provider := r.PathValue("provider")

	authStatus, err := s.auth.StatusFor(r.Context(), provider)
	if err != nil {
		if api.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "", fmt.Sprintf("provider %s is not configured", provider))
			return
		}
		writeError(w, http.StatusInternalServerError, "", err.Error())
		return
	}

	token, err := s.auth.AccessToken(r.Context(), provider)
	if err != nil {
		code := http.StatusUnauthorized
		kind := ""
		var flowErr *oauth.FlowError
		if errors.As(err, &flowErr) {
			kind = flowErr.Kind.String()
			if flowErr.Kind == oauth.KindUnsupportedProvider {
				code = http.StatusBadRequest
			}
		}
		logging.Info("Broker", "Token request for provider %s denied: %v", provider, err)
		writeError(w, code, kind, err.Error())
		return
	}

	// The token call may have refreshed; re-read so expires_at matches
	// the token actually served.
	if refreshed, err := s.auth.StatusFor(r.Context(), provider); err == nil {
		authStatus = refreshed
	}

	logging.Debug("Broker", "Served token for provider %s (email=%s)",
		provider, logging.RedactEmail(authStatus.Email))

	writeJSON(w, http.StatusOK, TokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresAt:   authStatus.ExpiresAt,
		Email:       authStatus.Email,
	})
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Warn("Broker", "Encoding response failed: %v", err)
	}
}

func writeError(w http.ResponseWriter, code int, kind, message string) {
	writeJSON(w, code, ErrorResponse{Error: message, Kind: kind})
}

// isLoopbackAddr reports whether addr binds a loopback interface. Hostnames
// other than localhost count as remote; an empty host binds every interface
// and is remote by definition.
func isLoopbackAddr(addr string) bool {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
