package credstore

import (
	"sort"
	"sync"
	"time"
)

// MemoryStore is a Store kept entirely in memory.
type MemoryStore struct {
	mu    sync.Mutex
	creds map[string]*Credentials
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{creds: make(map[string]*Credentials)}
}

// Get returns a copy of the stored record, or nil when none exists.
func (s *MemoryStore) Get(provider string) (*Credentials, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	creds, ok := s.creds[provider]
	if !ok {
		return nil, nil
	}
	copied := *creds
	return &copied, nil
}

// SetTokens stores the token fields and merges identity per the Store
// contract.
func (s *MemoryStore) SetTokens(provider string, creds Credentials) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	merged := mergeTokens(s.creds[provider], provider, creds)
	s.creds[provider] = &merged
	return nil
}

func (s *MemoryStore) update(provider string, fn func(*Credentials)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	creds, ok := s.creds[provider]
	if !ok {
		creds = &Credentials{Provider: provider}
		s.creds[provider] = creds
	}
	fn(creds)
	creds.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) SetAccessToken(provider, token string) error {
	return s.update(provider, func(c *Credentials) { c.AccessToken = token })
}

func (s *MemoryStore) GetAccessToken(provider string) (string, error) {
	creds, _ := s.Get(provider)
	if creds == nil {
		return "", nil
	}
	return creds.AccessToken, nil
}

func (s *MemoryStore) SetRefreshToken(provider, token string) error {
	return s.update(provider, func(c *Credentials) { c.RefreshToken = token })
}

func (s *MemoryStore) GetRefreshToken(provider string) (string, error) {
	creds, _ := s.Get(provider)
	if creds == nil {
		return "", nil
	}
	return creds.RefreshToken, nil
}

func (s *MemoryStore) SetExpiry(provider string, expiry time.Time) error {
	return s.update(provider, func(c *Credentials) { c.ExpiresAt = expiry })
}

func (s *MemoryStore) GetExpiry(provider string) (time.Time, error) {
	creds, _ := s.Get(provider)
	if creds == nil {
		return time.Time{}, nil
	}
	return creds.ExpiresAt, nil
}

func (s *MemoryStore) SetEmail(provider, email string) error {
	return s.update(provider, func(c *Credentials) { c.Email = email })
}

func (s *MemoryStore) GetEmail(provider string) (string, error) {
	creds, _ := s.Get(provider)
	if creds == nil {
		return "", nil
	}
	return creds.Email, nil
}

func (s *MemoryStore) SetProjectID(provider, projectID string) error {
	return s.update(provider, func(c *Credentials) { c.ProjectID = projectID })
}

func (s *MemoryStore) GetProjectID(provider string) (string, error) {
	creds, _ := s.Get(provider)
	if creds == nil {
		return "", nil
	}
	return creds.ProjectID, nil
}

// HasValidTokens reports whether a non-expired access token is stored.
func (s *MemoryStore) HasValidTokens(provider string) bool {
	creds, _ := s.Get(provider)
	return creds.HasValidAccessToken()
}

// ClearOAuthTokens removes the provider's record. Idempotent.
func (s *MemoryStore) ClearOAuthTokens(provider string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.creds, provider)
	return nil
}

// Providers lists the ids with a stored record, sorted.
func (s *MemoryStore) Providers() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]string, 0, len(s.creds))
	for provider := range s.creds {
		out = append(out, provider)
	}
	sort.Strings(out)
	return out, nil
}

var _ Store = (*MemoryStore)(nil)
var _ Store = (*FileStore)(nil)
