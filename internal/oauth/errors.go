package oauth

import (
	"errors"
	"fmt"
	"strings"
)

// FlowErrorKind categorizes a failure in the account-linking lifecycle.
type FlowErrorKind int

const (
	// KindInvalidState indicates a state mismatch, replay, or expired session.
	KindInvalidState FlowErrorKind = iota
	// KindTokenExchangeFailed indicates the code exchange was rejected or the
	// token response was malformed.
	KindTokenExchangeFailed
	// KindRefreshFailed indicates the refresh grant was rejected or no refresh
	// token is available. The caller must re-run the full authorization flow.
	KindRefreshFailed
	// KindNetworkError indicates a transport-level failure.
	KindNetworkError
	// KindUserCancelled indicates the user declined consent (access_denied).
	KindUserCancelled
	// KindInvalidCallback indicates a malformed redirect (missing code or state).
	KindInvalidCallback
	// KindUnsupportedProvider indicates the provider does not authenticate via OAuth.
	KindUnsupportedProvider
	// KindUserInfoFailed indicates the profile fetch after authentication failed.
	KindUserInfoFailed
)

// String returns a human-readable name for the error kind.
func (k FlowErrorKind) String() string {
	switch k {
	case KindInvalidState:
		return "invalid state"
	case KindTokenExchangeFailed:
		return "token exchange failed"
	case KindRefreshFailed:
		return "refresh failed"
	case KindNetworkError:
		return "network error"
	case KindUserCancelled:
		return "user cancelled"
	case KindInvalidCallback:
		return "invalid callback"
	case KindUnsupportedProvider:
		return "unsupported provider"
	case KindUserInfoFailed:
		return "userinfo fetch failed"
	default:
		return "auth flow error"
	}
}

// Recoverable reports whether retrying the flow can succeed without
// operator intervention. Terminal kinds require a fresh sign-in
// (RefreshFailed) or a configuration change (UnsupportedProvider) or
// indicate a broken caller (InvalidCallback).
func (k FlowErrorKind) Recoverable() bool {
	switch k {
	case KindInvalidState, KindTokenExchangeFailed, KindNetworkError, KindUserCancelled, KindUserInfoFailed:
		return true
	case KindRefreshFailed, KindInvalidCallback, KindUnsupportedProvider:
		return false
	default:
		return false
	}
}

// FlowError is the error value every public entry point of the auth core
// returns on failure. It carries the taxonomy kind, the provider it concerns
// (empty when the failure cannot be attributed), a human-readable message,
// and the underlying cause when one exists.
type FlowError struct {
	// Provider is the provider id the failure concerns, if attributable.
	Provider string
	// Kind categorizes the failure.
	Kind FlowErrorKind
	// Message is additional human-readable detail.
	Message string
	// Reason is the underlying error, if any.
	Reason error
}

// Error implements the error interface.
func (e *FlowError) Error() string {
	var b strings.Builder
	if e.Provider != "" {
		fmt.Fprintf(&b, "provider %s: ", e.Provider)
	}
	b.WriteString(e.Kind.String())
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Reason != nil {
		b.WriteString(": ")
		b.WriteString(e.Reason.Error())
	}
	return b.String()
}

// Unwrap returns the underlying cause for errors.Is/errors.As chains.
func (e *FlowError) Unwrap() error {
	return e.Reason
}

// Recoverable reports whether the user can retry the flow.
func (e *FlowError) Recoverable() bool {
	return e.Kind.Recoverable()
}

// newFlowError creates a FlowError without an underlying cause.
func newFlowError(provider string, kind FlowErrorKind, format string, args ...interface{}) *FlowError {
	return &FlowError{
		Provider: provider,
		Kind:     kind,
		Message:  fmt.Sprintf(format, args...),
	}
}

// wrapFlowError creates a FlowError carrying an underlying cause.
func wrapFlowError(provider string, kind FlowErrorKind, reason error, format string, args ...interface{}) *FlowError {
	return &FlowError{
		Provider: provider,
		Kind:     kind,
		Message:  fmt.Sprintf(format, args...),
		Reason:   reason,
	}
}

// AsFlowError extracts a FlowError from an error chain.
func AsFlowError(err error) (*FlowError, bool) {
	var fe *FlowError
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}

// IsKind reports whether err is (or wraps) a FlowError of the given kind.
func IsKind(err error, kind FlowErrorKind) bool {
	fe, ok := AsFlowError(err)
	return ok && fe.Kind == kind
}

// IsRecoverable reports whether err allows a retry of the flow. Errors
// outside the taxonomy are treated as non-recoverable.
func IsRecoverable(err error) bool {
	fe, ok := AsFlowError(err)
	return ok && fe.Recoverable()
}
