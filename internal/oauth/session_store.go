package oauth

import (
	"sync"
	"time"

	"signet/pkg/logging"
	pkgoauth "signet/pkg/oauth"
)

const (
	// DefaultSessionTTL is how long a pending authorization attempt stays
	// valid. A browser round-trip that takes longer must start over.
	DefaultSessionTTL = 10 * time.Minute

	// cleanupInterval is how often expired sessions are swept.
	cleanupInterval = time.Minute
)

// PendingSession is one in-flight authorization attempt, keyed by its state
// nonce. Exactly one live session exists per state value, and a session is
// consumed at most once.
type PendingSession struct {
	// Provider is the provider id the attempt belongs to.
	Provider string

	// ProjectID is the optional project the linked account is scoped to.
	ProjectID string

	// State is the anti-CSRF nonce echoed back by the authorization server.
	State string

	// CodeVerifier is the PKCE secret for this attempt. Wrapped so a stray
	// %v of the session never prints it.
	CodeVerifier RedactedToken

	// CreatedAt anchors the TTL.
	CreatedAt time.Time
}

// Expired reports whether the session is older than ttl.
func (s *PendingSession) Expired(ttl time.Duration) bool {
	return time.Since(s.CreatedAt) > ttl
}

// SessionStore tracks in-flight authorization attempts. Create and Consume
// are linearizable with respect to each other: no two callers can observe
// the same session as present.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*PendingSession

	ttl         time.Duration
	stopCleanup chan struct{}
}

// NewSessionStore creates a session store with the default TTL and starts
// the background cleanup loop. Call Stop when done.
func NewSessionStore() *SessionStore {
	s := &SessionStore{
		sessions:    make(map[string]*PendingSession),
		ttl:         DefaultSessionTTL,
		stopCleanup: make(chan struct{}),
	}

	go s.cleanupLoop()

	return s
}

// Create generates a fresh PKCE verifier and state nonce, records the
// attempt keyed by state, and returns it. Concurrent attempts for the same
// provider coexist under distinct states until consumed or expired.
func (s *SessionStore) Create(provider, projectID string) (*PendingSession, error) {
	verifier, _, err := pkgoauth.GeneratePKCERaw()
	if err != nil {
		return nil, err
	}

	state, err := pkgoauth.GenerateState()
	if err != nil {
		return nil, err
	}

	session := &PendingSession{
		Provider:     provider,
		ProjectID:    projectID,
		State:        state,
		CodeVerifier: NewRedactedToken(verifier),
		CreatedAt:    time.Now(),
	}

	s.mu.Lock()
	s.sessions[state] = session
	s.mu.Unlock()

	logging.Debug("OAuth", "Created session state=%s provider=%s", logging.TruncateSessionID(state), provider)

	return session, nil
}

// Consume atomically removes and returns the session for state. The removal
// happens before the expiry verdict, so a state value can be consumed at
// most once system-wide and an expired-but-present session is purged by the
// rejected attempt.
func (s *SessionStore) Consume(state string) (*PendingSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[state]
	if !ok {
		return nil, newFlowError("", KindInvalidState, "no pending session for state %s", logging.TruncateSessionID(state))
	}

	delete(s.sessions, state)

	if session.Expired(s.ttl) {
		return nil, newFlowError(session.Provider, KindInvalidState, "session for state %s expired", logging.TruncateSessionID(state))
	}

	return session, nil
}

// Len returns the number of pending sessions.
func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// cleanupLoop periodically removes expired sessions.
func (s *SessionStore) cleanupLoop() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.cleanupExpired()
		case <-s.stopCleanup:
			return
		}
	}
}

// cleanupExpired removes all expired sessions.
func (s *SessionStore) cleanupExpired() {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for state, session := range s.sessions {
		if session.Expired(s.ttl) {
			delete(s.sessions, state)
			removed++
		}
	}

	if removed > 0 {
		logging.Debug("OAuth", "Cleaned up %d expired sessions", removed)
	}
}

// Stop terminates the cleanup loop.
func (s *SessionStore) Stop() {
	close(s.stopCleanup)
}
