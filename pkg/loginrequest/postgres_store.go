package loginrequest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore keeps login requests in the oidc_login_request table.
// See migrations/oidc_login_request.sql. Rows older than the ttl are ignored
// by Load and deleted by Save at most once per ttl.
type PostgresStore struct {
	pool      *pgxpool.Pool
	expiry    expiry
	sweepMu   sync.Mutex
	lastSweep time.Time
}

// NewPostgresStore creates a PostgreSQL login request store
func NewPostgresStore(pool *pgxpool.Pool, opts ...StoreOption) *PostgresStore {
	return &PostgresStore{pool: pool, expiry: newExpiry(opts)}
}

func (s *PostgresStore) Save(ctx context.Context, scope string, req LoginRequest) error {
	now := s.expiry.now()
	data, err := encode(req, now)
	if err != nil {
		return err
	}

	if s.sweepDue() {
		if _, err := s.Prune(ctx); err != nil {
			slog.Warn("Failed to prune login requests", "error", err)
		}
	}

	query := `
		INSERT INTO oidc_login_request (storage_key, payload, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (storage_key) DO UPDATE
		SET payload = EXCLUDED.payload, created_at = EXCLUDED.created_at
	`
	if _, err := s.pool.Exec(ctx, query, Key(scope), string(data), now); err != nil {
		return fmt.Errorf("failed to save login request: %w", err)
	}
	return nil
}

func (s *PostgresStore) Load(ctx context.Context, scope string) (*LoginRequest, error) {
	key := Key(scope)

	var payload string
	err := s.pool.QueryRow(ctx,
		`SELECT payload FROM oidc_login_request WHERE storage_key = $1 AND created_at > $2`,
		key, s.expiry.cutoff(),
	).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load login request: %w", err)
	}

	rec, ok := decode([]byte(payload))
	if !ok {
		slog.Warn("Discarding malformed login request", "key", key)
		if err := s.Clear(ctx, scope); err != nil {
			return nil, err
		}
		return nil, nil
	}
	return &rec.LoginRequest, nil
}

func (s *PostgresStore) Clear(ctx context.Context, scope string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM oidc_login_request WHERE storage_key = $1`, Key(scope)); err != nil {
		return fmt.Errorf("failed to clear login request: %w", err)
	}
	return nil
}

// Prune deletes rows older than the ttl
func (s *PostgresStore) Prune(ctx context.Context) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM oidc_login_request WHERE created_at <= $1`, s.expiry.cutoff())
	if err != nil {
		return 0, fmt.Errorf("failed to prune login requests: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) sweepDue() bool {
	s.sweepMu.Lock()
	defer s.sweepMu.Unlock()
	return s.expiry.sweepDue(&s.lastSweep)
}
