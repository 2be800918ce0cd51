package credstore

import (
	"time"
)

// tokenExpiryBuffer is the margin applied when judging stored tokens valid.
// It absorbs clock skew, network latency, and the time a long-running
// request spends in flight after the token was read.
const tokenExpiryBuffer = 60 * time.Second

// Credentials is the stored record for one provider.
type Credentials struct {
	// Provider is the provider id the record belongs to. Stored inside
	// the record because file names are hashes.
	Provider string `json:"provider"`

	AccessToken  string    `json:"access_token,omitempty"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	ExpiresAt    time.Time `json:"expires_at,omitempty"`

	// Email is the account identity resolved during linking.
	Email string `json:"email,omitempty"`

	// ProjectID is the provider-scoped project the account is bound to.
	ProjectID string `json:"project_id,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}

// HasValidAccessToken reports whether the record holds an access token that
// is not expired (with the safety buffer). A record without a recorded
// expiry counts as valid.
func (c *Credentials) HasValidAccessToken() bool {
	if c == nil || c.AccessToken == "" {
		return false
	}
	if c.ExpiresAt.IsZero() {
		return true
	}
	return time.Now().Add(tokenExpiryBuffer).Before(c.ExpiresAt)
}

// Store persists per-provider credentials.
//
// Get returns nil without error when no record exists. Field getters return
// zero values in that case; errors are reserved for storage faults.
//
// SetTokens replaces the token fields as given and merges identity: an empty
// Email or ProjectID in the incoming record keeps the stored value, so a
// token refresh does not erase what linking resolved. Keeping a prior
// refresh token when a provider omits one from a refresh response is the
// caller's job.
type Store interface {
	Get(provider string) (*Credentials, error)
	SetTokens(provider string, creds Credentials) error

	SetAccessToken(provider, token string) error
	GetAccessToken(provider string) (string, error)
	SetRefreshToken(provider, token string) error
	GetRefreshToken(provider string) (string, error)
	SetExpiry(provider string, expiry time.Time) error
	GetExpiry(provider string) (time.Time, error)
	SetEmail(provider, email string) error
	GetEmail(provider string) (string, error)
	SetProjectID(provider, projectID string) error
	GetProjectID(provider string) (string, error)

	// HasValidTokens reports whether a non-expired access token is stored.
	HasValidTokens(provider string) bool

	// ClearOAuthTokens removes the provider's record. Idempotent.
	ClearOAuthTokens(provider string) error

	// Providers lists the ids that have a stored record, sorted.
	Providers() ([]string, error)
}

// mergeTokens applies the SetTokens contract to an existing record.
func mergeTokens(existing *Credentials, provider string, incoming Credentials) Credentials {
	merged := incoming
	merged.Provider = provider
	if existing != nil {
		if merged.Email == "" {
			merged.Email = existing.Email
		}
		if merged.ProjectID == "" {
			merged.ProjectID = existing.ProjectID
		}
	}
	merged.UpdatedAt = time.Now()
	return merged
}
