package cli

import (
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
)

// ConnectionErrorType names the failure class of an unreachable endpoint.
type ConnectionErrorType int

const (
	// ConnectionErrorUnknown is the fallback when no class matches.
	ConnectionErrorUnknown ConnectionErrorType = iota
	// ConnectionErrorTLS covers certificate and handshake failures.
	ConnectionErrorTLS
	// ConnectionErrorNetwork covers refused, reset, and unreachable.
	ConnectionErrorNetwork
	// ConnectionErrorTimeout covers deadlines and dial timeouts.
	ConnectionErrorTimeout
	// ConnectionErrorDNS covers name resolution failures.
	ConnectionErrorDNS
)

// String names the failure class for display.
func (t ConnectionErrorType) String() string {
	switch t {
	case ConnectionErrorTLS:
		return "TLS certificate error"
	case ConnectionErrorNetwork:
		return "Network error"
	case ConnectionErrorTimeout:
		return "Connection timeout"
	case ConnectionErrorDNS:
		return "DNS resolution error"
	default:
		return "Connection error"
	}
}

// ConnectionError reports an endpoint (an identity provider or the local
// token broker) that could not be reached, classified so the user sees "DNS
// resolution error" rather than a raw dial string.
type ConnectionError struct {
	// Endpoint is the URL the dial or request targeted.
	Endpoint string
	// Type is the failure class.
	Type ConnectionErrorType
	// Reason is the error being classified.
	Reason error
}

// Error returns the classified failure with the endpoint it concerns.
func (e *ConnectionError) Error() string {
	return fmt.Sprintf("%s reaching %s: %v", e.Type, e.Endpoint, e.Reason)
}

func (e *ConnectionError) Unwrap() error {
	return e.Reason
}

// ClassifyConnectionError wraps err in a ConnectionError, picking the failure
// class from the error's type and, failing that, its message. Nil in, nil out.
func ClassifyConnectionError(err error, endpoint string) *ConnectionError {
	if err == nil {
		return nil
	}

	connErr := &ConnectionError{
		Endpoint: endpoint,
		Type:     ConnectionErrorUnknown,
		Reason:   err,
	}

	switch {
	case isTLSError(err):
		connErr.Type = ConnectionErrorTLS
	case isDNSError(err):
		connErr.Type = ConnectionErrorDNS
	case isTimeoutError(err):
		connErr.Type = ConnectionErrorTimeout
	case isNetworkError(err.Error()):
		connErr.Type = ConnectionErrorNetwork
	}

	return connErr
}

func isTLSError(err error) bool {
	var certErr *x509.CertificateInvalidError
	var hostErr *x509.HostnameError
	var unknownAuthErr *x509.UnknownAuthorityError
	var systemRootsErr *x509.SystemRootsError

	if errors.As(err, &certErr) || errors.As(err, &hostErr) ||
		errors.As(err, &unknownAuthErr) || errors.As(err, &systemRootsErr) {
		return true
	}

	// Fall back to message inspection: the crypto/tls alert errors do not
	// export types to match on.
	errStr := err.Error()
	for _, keyword := range []string{"x509:", "certificate", "tls:", "TLS handshake"} {
		if strings.Contains(errStr, keyword) {
			return true
		}
	}

	return false
}

func isDNSError(err error) bool {
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr)
}

func isTimeoutError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return true
	}

	errStr := err.Error()
	return strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline exceeded")
}

func isNetworkError(errStr string) bool {
	networkKeywords := []string{
		"connection refused",
		"connection reset",
		"network is unreachable",
		"no route to host",
		"dial tcp",
		"connect:",
	}

	for _, keyword := range networkKeywords {
		if strings.Contains(errStr, keyword) {
			return true
		}
	}
	return false
}

// AuthRequiredError means the provider has no usable credentials. Its
// message tells the user which command fixes that.
type AuthRequiredError struct {
	// Provider is the provider id that requires a sign-in.
	Provider string
}

func (e *AuthRequiredError) Error() string {
	return fmt.Sprintf(`not signed in to %s

To sign in, run:
  signet auth login %s

To check current authentication status:
  signet auth status`, e.Provider, e.Provider)
}

// Is matches any AuthRequiredError regardless of provider.
func (e *AuthRequiredError) Is(target error) bool {
	_, ok := target.(*AuthRequiredError)
	return ok
}

// AuthExpiredError means the stored credentials lapsed and a refresh could
// not revive them.
type AuthExpiredError struct {
	// Provider is the provider id whose session expired.
	Provider string
}

func (e *AuthExpiredError) Error() string {
	return fmt.Sprintf(`the %s session has expired

To sign in again, run:
  signet auth login %s

Or try refreshing the stored tokens:
  signet auth refresh %s`, e.Provider, e.Provider, e.Provider)
}

// Is matches any AuthExpiredError regardless of provider.
func (e *AuthExpiredError) Is(target error) bool {
	_, ok := target.(*AuthExpiredError)
	return ok
}

// AuthFailedError means an authorization flow ran and did not complete.
type AuthFailedError struct {
	// Provider is the provider id the flow concerned.
	Provider string
	// Reason is the flow error.
	Reason error
}

func (e *AuthFailedError) Error() string {
	return fmt.Sprintf(`signing in to %s failed: %v

To retry, run:
  signet auth login %s`, e.Provider, e.Reason, e.Provider)
}

func (e *AuthFailedError) Unwrap() error {
	return e.Reason
}

// Is matches any AuthFailedError regardless of provider.
func (e *AuthFailedError) Is(target error) bool {
	_, ok := target.(*AuthFailedError)
	return ok
}
