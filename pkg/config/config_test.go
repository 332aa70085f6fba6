package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("CFG_STRING", "value")
	t.Setenv("CFG_INT", "42")
	t.Setenv("CFG_BAD_INT", "forty-two")
	t.Setenv("CFG_BOOL", "Yes")
	t.Setenv("CFG_DURATION", "90s")

	assert.Equal(t, "value", GetEnvOrDefault("CFG_STRING", "default"))
	assert.Equal(t, "default", GetEnvOrDefault("CFG_MISSING", "default"))
	assert.Equal(t, 42, GetEnvInt("CFG_INT", 1))
	assert.Equal(t, 1, GetEnvInt("CFG_BAD_INT", 1))
	assert.True(t, GetEnvBool("CFG_BOOL", false))
	assert.True(t, GetEnvBool("CFG_MISSING", true))
	assert.Equal(t, 90*time.Second, GetEnvDuration("CFG_DURATION", time.Second))
}

func TestGetEnvironment(t *testing.T) {
	t.Setenv("APP_ENV", "prod")
	assert.Equal(t, Production, GetEnvironment())
	assert.True(t, IsProduction())

	t.Setenv("APP_ENV", "")
	assert.True(t, IsDevelopment())
}

func TestOIDCConfigFromEnv(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("BASE_URL", "https://console.example.com")
	t.Setenv("OIDC_VERIFY_ID_TOKEN", "true")
	t.Setenv("HTTP_TIMEOUT", "5s")

	cfg := NewOIDCConfigFromEnv()
	assert.Equal(t, "https://console.example.com", cfg.Origin)
	assert.True(t, cfg.VerifyIDToken)
	assert.False(t, cfg.DevLoginEnabled)
	assert.Equal(t, 5*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, 12*time.Hour, cfg.SessionIdleTimeout)
	assert.Equal(t, Production, cfg.Environment)
	require.NoError(t, cfg.Validate())
}

func TestDevLoginDefault(t *testing.T) {
	tests := []struct {
		name    string
		appEnv  string
		enabled string
		want    bool
	}{
		{"app env unset", "", "", false},
		{"unknown app env", "qa", "", false},
		{"explicit development", "development", "", true},
		{"production", "production", "", false},
		{"explicitly enabled", "", "true", true},
		{"explicitly disabled in development", "development", "false", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("APP_ENV", tt.appEnv)
			t.Setenv("DEV_LOGIN_ENABLED", tt.enabled)
			assert.Equal(t, tt.want, NewOIDCConfigFromEnv().DevLoginEnabled)
		})
	}
}

func TestOIDCConfigRejectsDevLoginInProduction(t *testing.T) {
	cfg := DefaultOIDCConfig()
	cfg.Environment = Production
	cfg.DevLoginEnabled = true

	var verrs ValidationErrors
	require.ErrorAs(t, cfg.Validate(), &verrs)
	require.Len(t, verrs, 1)
	assert.Equal(t, "dev_login_enabled", verrs[0].Field)

	cfg.Environment = Development
	assert.NoError(t, cfg.Validate())
}

func TestOIDCConfigValidate(t *testing.T) {
	cfg := OIDCConfig{Origin: "not-a-url"}
	err := cfg.Validate()
	require.Error(t, err)

	var verrs ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Len(t, verrs, 3)
	assert.Equal(t, "origin", verrs[0].Field)
	assert.Equal(t, "http_timeout", verrs[1].Field)
	assert.Equal(t, "session_idle_timeout", verrs[2].Field)
}

func TestLoginRequestStoreConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*LoginRequestStoreConfig)
		wantErr bool
	}{
		{"defaults", func(c *LoginRequestStoreConfig) {}, false},
		{"unknown backend", func(c *LoginRequestStoreConfig) { c.Backend = "etcd" }, true},
		{"file without dir", func(c *LoginRequestStoreConfig) { c.Backend = StoreFile; c.Dir = "" }, true},
		{"redis without addr", func(c *LoginRequestStoreConfig) { c.Backend = StoreRedis; c.RedisAddr = "" }, true},
		{"zero ttl", func(c *LoginRequestStoreConfig) { c.TTL = 0 }, true},
		{"postgres", func(c *LoginRequestStoreConfig) { c.Backend = StorePostgres }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultLoginRequestStoreConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoginRequestStoreConfigFromEnv(t *testing.T) {
	t.Setenv("LOGIN_REQUEST_STORE", "redis")
	t.Setenv("REDIS_ADDR", "cache:6380")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("LOGIN_REQUEST_TTL", "2m")

	cfg := NewLoginRequestStoreConfigFromEnv()
	assert.Equal(t, StoreRedis, cfg.Backend)
	assert.Equal(t, "cache:6380", cfg.RedisAddr)
	assert.Equal(t, 3, cfg.RedisDB)
	assert.Equal(t, 2*time.Minute, cfg.TTL)
}
