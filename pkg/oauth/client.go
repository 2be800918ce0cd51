package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

const (
	// DefaultHTTPTimeout bounds each discovery request.
	DefaultHTTPTimeout = 30 * time.Second

	// DefaultMetadataCacheTTL is how long discovered authorization server
	// metadata is served from cache before it is fetched again.
	DefaultMetadataCacheTTL = 30 * time.Minute

	// maxMetadataBytes caps how much of a metadata document is read.
	maxMetadataBytes = 1 << 20
)

// wellKnownPaths are the discovery documents tried in order: RFC 8414
// first, then the OpenID Connect location.
var wellKnownPaths = []string{
	"/.well-known/oauth-authorization-server",
	"/.well-known/openid-configuration",
}

// cachedMetadata is one cache slot. The entry is stale once expiresAt has
// passed; staleness is decided at insert time so a TTL change after the
// fact does not retroactively extend old entries.
type cachedMetadata struct {
	metadata  *Metadata
	expiresAt time.Time
}

// Client resolves authorization server metadata from an issuer URL.
// Discovery results are cached and concurrent fetches for the same issuer
// are deduplicated, so a burst of flows against one provider costs a single
// round-trip.
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger

	metadataMu    sync.RWMutex
	metadataCache map[string]*cachedMetadata
	metadataTTL   time.Duration

	metadataGroup singleflight.Group
}

// ClientOption configures the client.
type ClientOption func(*Client)

// WithHTTPClient swaps the HTTP client used for discovery requests.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithLogger routes the client's debug output to logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithMetadataCacheTTL overrides how long discovered metadata is reused.
func WithMetadataCacheTTL(ttl time.Duration) ClientOption {
	return func(c *Client) {
		c.metadataTTL = ttl
	}
}

// NewClient creates a new discovery client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient:    &http.Client{Timeout: DefaultHTTPTimeout},
		logger:        slog.Default(),
		metadataCache: make(map[string]*cachedMetadata),
		metadataTTL:   DefaultMetadataCacheTTL,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// DiscoverMetadata resolves the authorization server metadata for issuer,
// serving a cached copy when one is still fresh. Fetches for the same
// issuer are collapsed: concurrent callers share one round-trip and all
// receive its result.
func (c *Client) DiscoverMetadata(ctx context.Context, issuer string) (*Metadata, error) {
	issuer = NormalizeIssuer(issuer)

	if metadata, ok := c.cachedFor(issuer); ok {
		return metadata, nil
	}

	result, err, _ := c.metadataGroup.Do(issuer, func() (interface{}, error) {
		// A concurrent caller may have filled the cache while this
		// goroutine waited its turn in the group.
		if metadata, ok := c.cachedFor(issuer); ok {
			return metadata, nil
		}
		return c.discover(ctx, issuer)
	})
	if err != nil {
		return nil, err
	}

	return result.(*Metadata), nil
}

// cachedFor returns the cache entry for issuer if it has not expired.
func (c *Client) cachedFor(issuer string) (*Metadata, bool) {
	c.metadataMu.RLock()
	defer c.metadataMu.RUnlock()

	entry, ok := c.metadataCache[issuer]
	if !ok || time.Now().After(entry.expiresAt) {
		return nil, false
	}
	return entry.metadata, true
}

// discover walks the well-known locations in order and caches the first
// metadata document that parses and carries the required endpoints.
func (c *Client) discover(ctx context.Context, issuer string) (*Metadata, error) {
	var lastErr error
	for _, path := range wellKnownPaths {
		metadata, err := c.fetchMetadata(ctx, issuer+path)
		if err != nil {
			c.logger.Debug("Metadata document not usable",
				"url", issuer+path,
				"error", err)
			lastErr = err
			continue
		}

		c.storeMetadata(issuer, metadata)
		return metadata, nil
	}

	return nil, fmt.Errorf("failed to discover authorization server metadata for %s: %w", issuer, lastErr)
}

// fetchMetadata retrieves and validates one metadata document.
func (c *Client) fetchMetadata(ctx context.Context, metadataURL string) (*Metadata, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, metadataURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("metadata request failed with status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxMetadataBytes))
	if err != nil {
		return nil, err
	}

	var metadata Metadata
	if err := json.Unmarshal(body, &metadata); err != nil {
		return nil, fmt.Errorf("failed to parse metadata: %w", err)
	}

	if metadata.AuthorizationEndpoint == "" || metadata.TokenEndpoint == "" {
		return nil, fmt.Errorf("metadata from %s is missing required endpoints", metadataURL)
	}

	if !metadata.SupportsPKCE() {
		c.logger.Warn("Authorization server does not advertise S256 PKCE support",
			"issuer", metadata.Issuer,
			"methods", strings.Join(metadata.CodeChallengeMethodsSupported, ","))
	}

	return &metadata, nil
}

// storeMetadata caches the document with its expiry stamped now.
func (c *Client) storeMetadata(issuer string, metadata *Metadata) {
	c.metadataMu.Lock()
	c.metadataCache[issuer] = &cachedMetadata{
		metadata:  metadata,
		expiresAt: time.Now().Add(c.metadataTTL),
	}
	c.metadataMu.Unlock()

	c.logger.Debug("Cached authorization server metadata",
		"issuer", issuer,
		"authorization_endpoint", metadata.AuthorizationEndpoint,
		"token_endpoint", metadata.TokenEndpoint)
}

// ClearMetadataCache drops every cached document so the next discovery
// fetches fresh metadata.
func (c *Client) ClearMetadataCache() {
	c.metadataMu.Lock()
	c.metadataCache = make(map[string]*cachedMetadata)
	c.metadataMu.Unlock()
}
