package loginrequest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testStore runs the behaviour every backend shares. putRaw writes an
// arbitrary payload under a scope, bypassing encoding.
func testStore(t *testing.T, store Store, putRaw func(scope string, data []byte)) {
	ctx := context.Background()
	req := LoginRequest{ProviderKey: "oidc", CodeVerifier: "verifier-value", State: "state-value"}

	t.Run("load missing", func(t *testing.T) {
		got, err := store.Load(ctx, "missing")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("save and load", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, "tab-1", req))

		got, err := store.Load(ctx, "tab-1")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, req, *got)
	})

	t.Run("save overwrites", func(t *testing.T) {
		next := LoginRequest{ProviderKey: "google", CodeVerifier: "other", State: "other-state"}
		require.NoError(t, store.Save(ctx, "tab-1", next))

		got, err := store.Load(ctx, "tab-1")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, next, *got)
	})

	t.Run("scopes are isolated", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, "tab-2", req))

		got, err := store.Load(ctx, "tab-2")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "oidc", got.ProviderKey)

		got, err = store.Load(ctx, "tab-1")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "google", got.ProviderKey)
	})

	t.Run("clear", func(t *testing.T) {
		require.NoError(t, store.Clear(ctx, "tab-1"))

		got, err := store.Load(ctx, "tab-1")
		require.NoError(t, err)
		assert.Nil(t, got)

		// clearing twice is fine
		require.NoError(t, store.Clear(ctx, "tab-1"))
	})

	t.Run("malformed records are deleted", func(t *testing.T) {
		for name, payload := range map[string]string{
			"not json":      "{not json",
			"missing state": `{"providerKey":"oidc","codeVerifier":"v"}`,
			"wrong types":   `{"providerKey":1,"codeVerifier":"v","state":"s"}`,
		} {
			t.Run(name, func(t *testing.T) {
				putRaw("broken", []byte(payload))

				got, err := store.Load(ctx, "broken")
				require.NoError(t, err)
				assert.Nil(t, got)

				// a valid save afterwards works normally
				require.NoError(t, store.Save(ctx, "broken", req))
				got, err = store.Load(ctx, "broken")
				require.NoError(t, err)
				assert.NotNil(t, got)
				require.NoError(t, store.Clear(ctx, "broken"))
			})
		}
	})
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// testStoreExpiry checks that a request saved with a one minute ttl is
// usable until the minute is over
func testStoreExpiry(t *testing.T, store Store, advance func(time.Duration)) {
	ctx := context.Background()
	req := LoginRequest{ProviderKey: "oidc", CodeVerifier: "verifier-value", State: "state-value"}

	require.NoError(t, store.Save(ctx, "abandoned", req))

	advance(59 * time.Second)
	got, err := store.Load(ctx, "abandoned")
	require.NoError(t, err)
	assert.NotNil(t, got)

	advance(time.Second)
	got, err = store.Load(ctx, "abandoned")
	require.NoError(t, err)
	assert.Nil(t, got)

	// saving again restarts the clock
	require.NoError(t, store.Save(ctx, "abandoned", req))
	got, err = store.Load(ctx, "abandoned")
	require.NoError(t, err)
	assert.NotNil(t, got)
	require.NoError(t, store.Clear(ctx, "abandoned"))
}

// testPrune checks that only expired records are removed
func testPrune(t *testing.T, store interface {
	Store
	Pruner
}, clock *testClock) {
	ctx := context.Background()
	req := LoginRequest{ProviderKey: "oidc", CodeVerifier: "verifier-value", State: "state-value"}

	require.NoError(t, store.Save(ctx, "old", req))
	clock.Advance(30 * time.Second)
	require.NoError(t, store.Save(ctx, "new", req))
	clock.Advance(45 * time.Second)

	removed, err := store.Prune(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	got, err := store.Load(ctx, "new")
	require.NoError(t, err)
	assert.NotNil(t, got)
	require.NoError(t, store.Clear(ctx, "new"))
}

func TestKey(t *testing.T) {
	assert.Equal(t, "oidc.login-request", Key(""))
	assert.Equal(t, "oidc.login-request:abc", Key("abc"))
}

func TestInMemoryStore(t *testing.T) {
	store := NewInMemoryStore()
	testStore(t, store, store.putRaw)

	t.Run("expiry", func(t *testing.T) {
		clock := newTestClock()
		testStoreExpiry(t, NewInMemoryStore(WithTTL(time.Minute), WithClock(clock.Now)), clock.Advance)
	})

	t.Run("prune", func(t *testing.T) {
		clock := newTestClock()
		testPrune(t, NewInMemoryStore(WithTTL(time.Minute), WithClock(clock.Now)), clock)
	})

	t.Run("abandoned logins are swept on save", func(t *testing.T) {
		clock := newTestClock()
		store := NewInMemoryStore(WithTTL(time.Minute), WithClock(clock.Now))
		ctx := context.Background()
		req := LoginRequest{ProviderKey: "oidc", CodeVerifier: "v", State: "s"}

		for i := 0; i < 10; i++ {
			require.NoError(t, store.Save(ctx, fmt.Sprintf("tab-%d", i), req))
		}
		assert.Equal(t, 10, store.Len())

		clock.Advance(time.Minute)
		require.NoError(t, store.Save(ctx, "fresh", req))
		assert.Equal(t, 1, store.Len())
	})

	t.Run("malformed record removed from map", func(t *testing.T) {
		store := NewInMemoryStore()
		store.putRaw("x", []byte("garbage"))
		assert.Equal(t, 1, store.Len())

		_, err := store.Load(context.Background(), "x")
		require.NoError(t, err)
		assert.Equal(t, 0, store.Len())
	})
}

func TestFileStore(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "login-requests")
	store, err := NewFileStore(dir)
	require.NoError(t, err)

	testStore(t, store, func(scope string, data []byte) {
		require.NoError(t, os.WriteFile(store.path(scope), data, 0600))
	})

	t.Run("malformed file removed", func(t *testing.T) {
		path := store.path("bad")
		require.NoError(t, os.WriteFile(path, []byte("garbage"), 0600))

		_, err := store.Load(context.Background(), "bad")
		require.NoError(t, err)
		_, statErr := os.Stat(path)
		assert.True(t, os.IsNotExist(statErr))
	})

	t.Run("expiry", func(t *testing.T) {
		clock := newTestClock()
		store, err := NewFileStore(t.TempDir(), WithTTL(time.Minute), WithClock(clock.Now))
		require.NoError(t, err)
		testStoreExpiry(t, store, clock.Advance)

		entries, err := os.ReadDir(store.dataDir)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("prune", func(t *testing.T) {
		clock := newTestClock()
		store, err := NewFileStore(t.TempDir(), WithTTL(time.Minute), WithClock(clock.Now))
		require.NoError(t, err)
		testPrune(t, store, clock)
	})

	t.Run("scope is escaped", func(t *testing.T) {
		path := store.path("../../etc/passwd")
		assert.Equal(t, dir, filepath.Dir(path))
	})
}

func TestRedisStore(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	store := NewRedisStore(client, time.Minute)
	testStore(t, store, func(scope string, data []byte) {
		require.NoError(t, mr.Set(Key(scope), string(data)))
	})

	t.Run("expiry", func(t *testing.T) {
		testStoreExpiry(t, store, mr.FastForward)
	})

	t.Run("key ttl", func(t *testing.T) {
		ctx := context.Background()
		require.NoError(t, store.Save(ctx, "ttl", LoginRequest{ProviderKey: "oidc", CodeVerifier: "v", State: "s"}))
		assert.Equal(t, time.Minute, mr.TTL(Key("ttl")))
	})

	t.Run("default ttl", func(t *testing.T) {
		assert.Equal(t, DefaultTTL, NewRedisStore(client, 0).ttl)
	})

	t.Run("malformed key deleted", func(t *testing.T) {
		require.NoError(t, mr.Set(Key("bad"), "garbage"))
		_, err := store.Load(context.Background(), "bad")
		require.NoError(t, err)
		assert.False(t, mr.Exists(Key("bad")))
	})
}
