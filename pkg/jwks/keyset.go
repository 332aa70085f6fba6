package jwks

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultMinRefreshInterval is the least time between two key set downloads
const DefaultMinRefreshInterval = time.Minute

// RemoteKeySet fetches a provider's JWK Set and caches the decoded RSA keys.
// An unknown key id triggers a refetch so rotated keys are picked up, at most
// once per minimum refresh interval.
type RemoteKeySet struct {
	jwksURI    string
	httpClient *http.Client
	minRefresh time.Duration
	now        func() time.Time

	mu          sync.RWMutex
	keys        map[string]*rsa.PublicKey
	lastAttempt time.Time
	group       singleflight.Group
}

// Option configures a RemoteKeySet
type Option func(*RemoteKeySet)

// WithHTTPClient sets the HTTP client used to download the key set
func WithHTTPClient(client *http.Client) Option {
	return func(ks *RemoteKeySet) {
		ks.httpClient = client
	}
}

// WithMinRefreshInterval sets the least time between two downloads
func WithMinRefreshInterval(d time.Duration) Option {
	return func(ks *RemoteKeySet) {
		ks.minRefresh = d
	}
}

// WithClock sets the time source used to rate limit refreshes
func WithClock(now func() time.Time) Option {
	return func(ks *RemoteKeySet) {
		ks.now = now
	}
}

// NewRemoteKeySet creates a key set backed by jwksURI
func NewRemoteKeySet(jwksURI string, opts ...Option) *RemoteKeySet {
	ks := &RemoteKeySet{
		jwksURI:    jwksURI,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		minRefresh: DefaultMinRefreshInterval,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(ks)
	}
	return ks
}

// Key returns the RSA public key with the given key id. An empty kid
// matches the only key of a single-key set.
func (ks *RemoteKeySet) Key(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	if key, ok := ks.lookup(kid); ok {
		return key, nil
	}

	if _, err, _ := ks.group.Do("refresh", func() (interface{}, error) {
		if !ks.refreshDue() {
			return nil, nil
		}
		return nil, ks.refresh(ctx)
	}); err != nil {
		return nil, err
	}

	if key, ok := ks.lookup(kid); ok {
		return key, nil
	}
	return nil, fmt.Errorf("no key with kid %q in %s", kid, ks.jwksURI)
}

func (ks *RemoteKeySet) lookup(kid string) (*rsa.PublicKey, bool) {
	ks.mu.RLock()
	defer ks.mu.RUnlock()

	if kid == "" && len(ks.keys) == 1 {
		for _, key := range ks.keys {
			return key, true
		}
	}
	key, ok := ks.keys[kid]
	return key, ok
}

// refreshDue reports whether a download may start now and records the attempt
func (ks *RemoteKeySet) refreshDue() bool {
	ks.mu.Lock()
	defer ks.mu.Unlock()

	now := ks.now()
	if !ks.lastAttempt.IsZero() && now.Sub(ks.lastAttempt) < ks.minRefresh {
		return false
	}
	ks.lastAttempt = now
	return true
}

func (ks *RemoteKeySet) refresh(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ks.jwksURI, nil)
	if err != nil {
		return fmt.Errorf("failed to create jwks request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := ks.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("jwks request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read jwks response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("jwks endpoint returned status %d", resp.StatusCode)
	}

	var set JWKS
	if err := json.Unmarshal(body, &set); err != nil {
		return fmt.Errorf("failed to parse jwks: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(set.Keys))
	for _, jwk := range set.Keys {
		if jwk.Use != "" && jwk.Use != "sig" {
			continue
		}
		key, err := jwk.RSAPublicKey()
		if err != nil {
			slog.Warn("Skipping unusable JWK", "kid", jwk.Kid, "error", err)
			continue
		}
		keys[jwk.Kid] = key
	}

	ks.mu.Lock()
	ks.keys = keys
	ks.mu.Unlock()

	slog.Info("Loaded JWKS", "uri", ks.jwksURI, "keys", len(keys))
	return nil
}
