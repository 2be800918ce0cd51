package credstore

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"signet/pkg/logging"
	pkgoauth "signet/pkg/oauth"
)

// FileStore persists one JSON record per provider.
//
// SECURITY: This store handles account credentials. Files are created with
// 0600 and the directory with 0700, file names are hashes of the provider
// id, token values are never logged, and every mutation emits an audit line.
type FileStore struct {
	mu  sync.Mutex
	dir string
}

// NewFileStore creates a file store rooted at dir. An empty dir selects
// ~/.config/signet/credentials.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		dir = filepath.Join(homeDir, pkgoauth.DefaultCredentialDir)
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create credential directory: %w", err)
	}

	return &FileStore{dir: dir}, nil
}

// Dir returns the directory records are stored in.
func (s *FileStore) Dir() string {
	return s.dir
}

// credPath derives the record path from a hash of the provider id, keeping
// ids out of directory listings.
func (s *FileStore) credPath(provider string) string {
	hash := sha256.Sum256([]byte(provider))
	return filepath.Join(s.dir, hex.EncodeToString(hash[:16])+".json")
}

// read loads the record from disk. Callers hold s.mu.
func (s *FileStore) read(provider string) (*Credentials, error) {
	data, err := os.ReadFile(s.credPath(provider))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read credentials: %w", err)
	}

	var creds Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("failed to parse credentials: %w", err)
	}

	return &creds, nil
}

// write persists the record. Callers hold s.mu.
func (s *FileStore) write(provider string, creds *Credentials) error {
	data, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal credentials: %w", err)
	}

	// Owner read/write only.
	if err := os.WriteFile(s.credPath(provider), data, 0600); err != nil {
		return fmt.Errorf("failed to write credentials: %w", err)
	}

	return nil
}

// Get returns the stored record, or nil when none exists.
func (s *FileStore) Get(provider string) (*Credentials, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.read(provider)
}

// SetTokens stores the token fields and merges identity per the Store
// contract.
func (s *FileStore) SetTokens(provider string, creds Credentials) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.read(provider)
	if err != nil {
		return err
	}

	merged := mergeTokens(existing, provider, creds)
	if err := s.write(provider, &merged); err != nil {
		logging.Audit("CredStore", "credential_store_failed",
			slog.String("provider", provider),
			slog.String("error", err.Error()),
		)
		return err
	}

	logging.Audit("CredStore", "credentials_stored",
		slog.String("provider", provider),
		slog.Time("expiry", merged.ExpiresAt),
		slog.Bool("has_refresh_token", merged.RefreshToken != ""),
	)

	return nil
}

// update applies fn to the stored record (creating one when absent) and
// writes it back.
func (s *FileStore) update(provider string, fn func(*Credentials)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	creds, err := s.read(provider)
	if err != nil {
		return err
	}
	if creds == nil {
		creds = &Credentials{Provider: provider}
	}

	fn(creds)
	creds.UpdatedAt = time.Now()

	return s.write(provider, creds)
}

func (s *FileStore) SetAccessToken(provider, token string) error {
	return s.update(provider, func(c *Credentials) { c.AccessToken = token })
}

func (s *FileStore) GetAccessToken(provider string) (string, error) {
	creds, err := s.Get(provider)
	if err != nil || creds == nil {
		return "", err
	}
	return creds.AccessToken, nil
}

func (s *FileStore) SetRefreshToken(provider, token string) error {
	return s.update(provider, func(c *Credentials) { c.RefreshToken = token })
}

func (s *FileStore) GetRefreshToken(provider string) (string, error) {
	creds, err := s.Get(provider)
	if err != nil || creds == nil {
		return "", err
	}
	return creds.RefreshToken, nil
}

func (s *FileStore) SetExpiry(provider string, expiry time.Time) error {
	return s.update(provider, func(c *Credentials) { c.ExpiresAt = expiry })
}

func (s *FileStore) GetExpiry(provider string) (time.Time, error) {
	creds, err := s.Get(provider)
	if err != nil || creds == nil {
		return time.Time{}, err
	}
	return creds.ExpiresAt, nil
}

func (s *FileStore) SetEmail(provider, email string) error {
	return s.update(provider, func(c *Credentials) { c.Email = email })
}

func (s *FileStore) GetEmail(provider string) (string, error) {
	creds, err := s.Get(provider)
	if err != nil || creds == nil {
		return "", err
	}
	return creds.Email, nil
}

func (s *FileStore) SetProjectID(provider, projectID string) error {
	return s.update(provider, func(c *Credentials) { c.ProjectID = projectID })
}

func (s *FileStore) GetProjectID(provider string) (string, error) {
	creds, err := s.Get(provider)
	if err != nil || creds == nil {
		return "", err
	}
	return creds.ProjectID, nil
}

// HasValidTokens reports whether a non-expired access token is stored.
func (s *FileStore) HasValidTokens(provider string) bool {
	creds, err := s.Get(provider)
	if err != nil {
		return false
	}
	return creds.HasValidAccessToken()
}

// ClearOAuthTokens removes the provider's record. Removing an absent record
// succeeds.
func (s *FileStore) ClearOAuthTokens(provider string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.credPath(provider))
	if err != nil && !os.IsNotExist(err) {
		logging.Audit("CredStore", "credentials_clear_failed",
			slog.String("provider", provider),
			slog.String("error", err.Error()),
		)
		return err
	}

	logging.Audit("CredStore", "credentials_cleared",
		slog.String("provider", provider),
	)

	return nil
}

// Providers lists the ids with a stored record. Unreadable or foreign files
// in the directory are skipped.
func (s *FileStore) Providers() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read credential directory: %w", err)
	}

	var providers []string
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}

		data, err := os.ReadFile(filepath.Join(s.dir, entry.Name()))
		if err != nil {
			continue
		}
		var creds Credentials
		if err := json.Unmarshal(data, &creds); err != nil || creds.Provider == "" {
			continue
		}
		providers = append(providers, creds.Provider)
	}

	sort.Strings(providers)
	return providers, nil
}
