package loginrequest

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupTestDatabase(t *testing.T) (*pgxpool.Pool, func()) {
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithInitScripts(filepath.Join("../../migrations", "oidc_login_request.sql")),
		postgres.WithDatabase("console_db"),
		postgres.WithUsername("console"),
		postgres.WithPassword("pwd"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err)

	connString, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	poolConfig, err := pgxpool.ParseConfig(connString)
	require.NoError(t, err)

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	require.NoError(t, err)

	cleanup := func() {
		pool.Close()
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	}

	return pool, cleanup
}

func TestPostgresStore(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping PostgreSQL test in short mode")
	}

	pool, cleanup := setupTestDatabase(t)
	defer cleanup()

	store := NewPostgresStore(pool)
	testStore(t, store, func(scope string, data []byte) {
		_, err := pool.Exec(context.Background(),
			`INSERT INTO oidc_login_request (storage_key, payload) VALUES ($1, $2)
			 ON CONFLICT (storage_key) DO UPDATE SET payload = EXCLUDED.payload`,
			Key(scope), string(data))
		require.NoError(t, err)
	})

	t.Run("expiry", func(t *testing.T) {
		clock := newTestClock()
		testStoreExpiry(t, NewPostgresStore(pool, WithTTL(time.Minute), WithClock(clock.Now)), clock.Advance)
	})

	t.Run("prune", func(t *testing.T) {
		clock := newTestClock()
		testPrune(t, NewPostgresStore(pool, WithTTL(time.Minute), WithClock(clock.Now)), clock)
	})
}
