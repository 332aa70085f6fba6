// Package loginrequest persists the in-flight OIDC login attempt across the
// authorization redirect. Backends: memory, file, Redis and PostgreSQL.
package loginrequest

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// StorageKey namespaces persisted login requests
const StorageKey = "oidc.login-request"

// DefaultTTL bounds how long an abandoned login request is kept
const DefaultTTL = 10 * time.Minute

// LoginRequest is the in-flight state of one login attempt. It is created
// right before the authorization redirect and consumed by the callback.
type LoginRequest struct {
	ProviderKey  string `json:"providerKey"`
	CodeVerifier string `json:"codeVerifier"`
	State        string `json:"state"`
}

// Store persists at most one LoginRequest per scope. Save overwrites.
// Load returns nil without error when nothing usable is stored. Records
// older than the store's ttl are never returned; malformed records are
// deleted as a side effect.
type Store interface {
	Save(ctx context.Context, scope string, req LoginRequest) error
	Load(ctx context.Context, scope string) (*LoginRequest, error)
	Clear(ctx context.Context, scope string) error
}

// Pruner is implemented by stores that need expired records swept
// explicitly. Prune returns the number of records removed.
type Pruner interface {
	Prune(ctx context.Context) (int, error)
}

// StoreOption configures the memory, file and PostgreSQL stores
type StoreOption func(*expiry)

// WithTTL sets how long a saved login request stays usable
func WithTTL(ttl time.Duration) StoreOption {
	return func(e *expiry) {
		if ttl > 0 {
			e.ttl = ttl
		}
	}
}

// WithClock sets the time source used for expiry
func WithClock(now func() time.Time) StoreOption {
	return func(e *expiry) {
		e.now = now
	}
}

type expiry struct {
	ttl time.Duration
	now func() time.Time
}

func newExpiry(opts []StoreOption) expiry {
	e := expiry{ttl: DefaultTTL, now: time.Now}
	for _, opt := range opts {
		opt(&e)
	}
	return e
}

func (e expiry) expired(createdAt time.Time) bool {
	return !e.now().Before(createdAt.Add(e.ttl))
}

// cutoff is the oldest creation time still usable
func (e expiry) cutoff() time.Time {
	return e.now().Add(-e.ttl)
}

// sweepDue reports whether a ttl has passed since *last and moves *last to now
func (e expiry) sweepDue(last *time.Time) bool {
	now := e.now()
	if !last.IsZero() && now.Sub(*last) < e.ttl {
		return false
	}
	*last = now
	return true
}

// record is the persisted form: the request plus its creation time
type record struct {
	LoginRequest
	CreatedAt time.Time `json:"createdAt"`
}

// Key returns the storage key of a scope
func Key(scope string) string {
	if scope == "" {
		return StorageKey
	}
	return StorageKey + ":" + scope
}

func encode(req LoginRequest, createdAt time.Time) ([]byte, error) {
	data, err := json.Marshal(record{LoginRequest: req, CreatedAt: createdAt})
	if err != nil {
		return nil, fmt.Errorf("failed to encode login request: %w", err)
	}
	return data, nil
}

// decode reports false for records that do not parse or lack a field
func decode(data []byte) (*record, bool) {
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, false
	}
	if rec.ProviderKey == "" || rec.CodeVerifier == "" || rec.State == "" {
		return nil, false
	}
	return &rec, true
}
