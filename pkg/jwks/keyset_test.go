package jwks

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type keyServer struct {
	mu   sync.Mutex
	set  JWKS
	hits int32
}

func (s *keyServer) add(jwk JWK) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.set.Keys = append(s.set.Keys, jwk)
}

func serveKeys(t *testing.T, keys ...JWK) (*httptest.Server, *keyServer) {
	t.Helper()
	ks := &keyServer{set: JWKS{Keys: keys}}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&ks.hits, 1)
		ks.mu.Lock()
		defer ks.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(ks.set)
	}))
	t.Cleanup(srv.Close)
	return srv, ks
}

func TestJWKRoundTrip(t *testing.T) {
	kp, err := NewKeyPair(2048)
	require.NoError(t, err)

	jwk := kp.ToJWK()
	assert.Equal(t, "RSA", jwk.Kty)
	assert.Equal(t, "sig", jwk.Use)
	assert.Equal(t, "RS256", jwk.Alg)
	assert.Equal(t, kp.Kid, jwk.Kid)

	publicKey, err := jwk.RSAPublicKey()
	require.NoError(t, err)
	assert.Equal(t, 0, kp.PublicKey.N.Cmp(publicKey.N))
	assert.Equal(t, kp.PublicKey.E, publicKey.E)
}

func TestJWKRSAPublicKeyErrors(t *testing.T) {
	tests := []struct {
		name string
		jwk  JWK
	}{
		{"wrong type", JWK{Kty: "EC", Kid: "k"}},
		{"bad modulus", JWK{Kty: "RSA", Kid: "k", N: "!!", E: "AQAB"}},
		{"empty modulus", JWK{Kty: "RSA", Kid: "k", N: "", E: "AQAB"}},
		{"bad exponent", JWK{Kty: "RSA", Kid: "k", N: "AQAB", E: "AQABAQAB"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.jwk.RSAPublicKey()
			assert.Error(t, err)
		})
	}
}

func TestRemoteKeySet(t *testing.T) {
	kp, err := NewKeyPair(2048)
	require.NoError(t, err)

	srv, keys := serveKeys(t, kp.ToJWK())
	hits := &keys.hits
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	ks := NewRemoteKeySet(srv.URL, WithHTTPClient(srv.Client()), WithClock(func() time.Time { return now }))

	t.Run("known kid is fetched once", func(t *testing.T) {
		key, err := ks.Key(context.Background(), kp.Kid)
		require.NoError(t, err)
		assert.Equal(t, 0, kp.PublicKey.N.Cmp(key.N))

		_, err = ks.Key(context.Background(), kp.Kid)
		require.NoError(t, err)
		assert.Equal(t, int32(1), atomic.LoadInt32(hits))
	})

	t.Run("empty kid matches single key", func(t *testing.T) {
		key, err := ks.Key(context.Background(), "")
		require.NoError(t, err)
		assert.Equal(t, kp.PublicKey.E, key.E)
	})

	t.Run("unknown kid within refresh interval", func(t *testing.T) {
		before := atomic.LoadInt32(hits)
		for i := 0; i < 5; i++ {
			_, err := ks.Key(context.Background(), fmt.Sprintf("random-%d", i))
			assert.Error(t, err)
		}
		assert.Equal(t, before, atomic.LoadInt32(hits))
	})

	t.Run("unknown kid refetches after interval", func(t *testing.T) {
		now = now.Add(DefaultMinRefreshInterval)
		before := atomic.LoadInt32(hits)
		_, err := ks.Key(context.Background(), "missing")
		assert.Error(t, err)
		assert.Equal(t, before+1, atomic.LoadInt32(hits))

		_, err = ks.Key(context.Background(), "missing")
		assert.Error(t, err)
		assert.Equal(t, before+1, atomic.LoadInt32(hits))
	})

	t.Run("rotated key is picked up", func(t *testing.T) {
		rotated, err := NewKeyPair(2048)
		require.NoError(t, err)
		keys.add(rotated.ToJWK())
		now = now.Add(DefaultMinRefreshInterval)

		key, err := ks.Key(context.Background(), rotated.Kid)
		require.NoError(t, err)
		assert.Equal(t, 0, rotated.PublicKey.N.Cmp(key.N))
	})
}

func TestRemoteKeySetSkipsEncryptionKeys(t *testing.T) {
	kp, err := NewKeyPair(2048)
	require.NoError(t, err)

	jwk := kp.ToJWK()
	jwk.Use = "enc"
	srv, _ := serveKeys(t, jwk)

	ks := NewRemoteKeySet(srv.URL, WithHTTPClient(srv.Client()))
	_, err = ks.Key(context.Background(), kp.Kid)
	assert.Error(t, err)
}

func TestRemoteKeySetHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ks := NewRemoteKeySet(srv.URL, WithHTTPClient(srv.Client()))
	_, err := ks.Key(context.Background(), "any")
	assert.ErrorContains(t, err, "status 503")
}
