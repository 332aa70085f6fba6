package wellknown

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	apperrors "github.com/lksnext-ai-lab/ai-core-tools-sub003/pkg/errors"
	"github.com/lksnext-ai-lab/ai-core-tools-sub003/pkg/idp"
	"golang.org/x/sync/singleflight"
)

// Resolver fetches and caches discovery documents per provider key.
// A cached document is never refetched for the lifetime of the Resolver.
type Resolver struct {
	httpClient *http.Client

	mu    sync.Mutex
	cache map[string]OpenIDConfiguration
	group singleflight.Group
}

// Option configures a Resolver
type Option func(*Resolver)

// WithHTTPClient sets the HTTP client used for discovery requests
func WithHTTPClient(client *http.Client) Option {
	return func(r *Resolver) {
		r.httpClient = client
	}
}

// NewResolver creates a discovery resolver
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		cache:      make(map[string]OpenIDConfiguration),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// FetchMetadata returns the discovery document of provider, fetching it on
// first use. Concurrent first calls for one key share a single request.
func (r *Resolver) FetchMetadata(ctx context.Context, provider idp.Config) (OpenIDConfiguration, error) {
	if md, ok := r.Cached(provider.Key); ok {
		return md, nil
	}

	v, err, _ := r.group.Do(provider.Key, func() (interface{}, error) {
		if md, ok := r.Cached(provider.Key); ok {
			return md, nil
		}

		md, err := r.fetch(ctx, provider)
		if err != nil {
			return nil, err
		}

		r.mu.Lock()
		r.cache[provider.Key] = md
		r.mu.Unlock()
		return md, nil
	})
	if err != nil {
		return OpenIDConfiguration{}, err
	}
	return v.(OpenIDConfiguration), nil
}

// Cached returns the cached document of a provider key
func (r *Resolver) Cached(key string) (OpenIDConfiguration, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	md, ok := r.cache[key]
	return md, ok
}

func (r *Resolver) fetch(ctx context.Context, provider idp.Config) (OpenIDConfiguration, error) {
	discoveryURL := DiscoveryURL(provider.Authority)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, discoveryURL, nil)
	if err != nil {
		return OpenIDConfiguration{}, apperrors.MetadataFetch(fmt.Errorf("failed to create discovery request: %w", err), provider.Key)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return OpenIDConfiguration{}, apperrors.MetadataFetch(fmt.Errorf("discovery request failed: %w", err), provider.Key)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return OpenIDConfiguration{}, apperrors.MetadataFetch(fmt.Errorf("failed to read discovery response: %w", err), provider.Key)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return OpenIDConfiguration{}, apperrors.MetadataFetch(fmt.Errorf("discovery endpoint %s returned status %d", discoveryURL, resp.StatusCode), provider.Key)
	}

	var md OpenIDConfiguration
	if err := json.Unmarshal(body, &md); err != nil {
		return OpenIDConfiguration{}, apperrors.MetadataFetch(fmt.Errorf("failed to parse discovery document: %w", err), provider.Key)
	}

	if md.AuthorizationEndpoint == "" || md.TokenEndpoint == "" {
		return OpenIDConfiguration{}, apperrors.MetadataFetch(fmt.Errorf("discovery document lacks authorization or token endpoint"), provider.Key)
	}

	slog.Info("Loaded OpenID configuration", "provider", provider.Key, "issuer", md.Issuer)
	return md, nil
}
