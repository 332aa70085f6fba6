package config

import "time"

// Login request store backends
const (
	StoreMemory   = "memory"
	StoreFile     = "file"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
)

// OIDCConfig contains the relying party settings shared by every provider.
// Provider groups ({PREFIX}_AUTHORITY, {PREFIX}_CLIENT_ID, ...) are not part of
// this struct; the provider registry reads them on every lookup.
type OIDCConfig struct {
	// Origin is the public base URL of this application, used to default
	// redirect URIs and the login page location.
	Origin string

	// VerifyIDToken enables signature, issuer and audience checks of the ID
	// token against the provider's jwks_uri.
	VerifyIDToken bool

	// DevLoginEnabled exposes the fake development login. It is rejected in
	// production.
	DevLoginEnabled bool

	// HTTPTimeout bounds every outbound call to an identity provider.
	HTTPTimeout time.Duration

	// SessionIdleTimeout drops browser sessions that were not used for
	// this long.
	SessionIdleTimeout time.Duration

	Environment Environment
}

// DefaultOIDCConfig returns an OIDCConfig with sensible defaults
func DefaultOIDCConfig() OIDCConfig {
	return OIDCConfig{
		Origin:             "http://localhost:4000",
		VerifyIDToken:      false,
		DevLoginEnabled:    false,
		HTTPTimeout:        30 * time.Second,
		SessionIdleTimeout: 12 * time.Hour,
		Environment:        Development,
	}
}

// NewOIDCConfigFromEnv loads OIDCConfig from standard environment variables.
//
// Environment variables:
//   - BASE_URL: public origin of the application (default: "http://localhost:4000")
//   - OIDC_VERIFY_ID_TOKEN: verify ID token signatures (default: false)
//   - DEV_LOGIN_ENABLED: enable the fake login (default: true only when APP_ENV=development is set)
//   - HTTP_TIMEOUT: outbound request timeout (default: "30s")
//   - SESSION_IDLE_TIMEOUT: idle lifetime of a browser session (default: "12h")
func NewOIDCConfigFromEnv() OIDCConfig {
	defaults := DefaultOIDCConfig()
	return OIDCConfig{
		Origin:             GetEnvOrDefault("BASE_URL", defaults.Origin),
		VerifyIDToken:      GetEnvBool("OIDC_VERIFY_ID_TOKEN", defaults.VerifyIDToken),
		DevLoginEnabled:    GetEnvBool("DEV_LOGIN_ENABLED", GetEnv("APP_ENV") == string(Development)),
		HTTPTimeout:        GetEnvDuration("HTTP_TIMEOUT", defaults.HTTPTimeout),
		SessionIdleTimeout: GetEnvDuration("SESSION_IDLE_TIMEOUT", defaults.SessionIdleTimeout),
		Environment:        GetEnvironment(),
	}
}

// Validate checks the OIDC configuration
func (c OIDCConfig) Validate() error {
	return Validate(func() ValidationErrors {
		errs := CollectErrors(
			RequireValidURL("origin", c.Origin),
			RequirePositiveDuration("http_timeout", c.HTTPTimeout),
			RequirePositiveDuration("session_idle_timeout", c.SessionIdleTimeout),
		)
		if c.Environment == Production && c.DevLoginEnabled {
			errs = append(errs, ValidationError{Field: "dev_login_enabled", Message: "must be false in production"})
		}
		return errs
	})
}

// LoginRequestStoreConfig selects and configures the login request store.
type LoginRequestStoreConfig struct {
	// Backend is one of memory, file, redis or postgres
	Backend string

	// Dir is the data directory of the file backend
	Dir string

	// TTL bounds how long an in-flight login request survives
	TTL time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// DefaultLoginRequestStoreConfig returns a LoginRequestStoreConfig with sensible defaults
func DefaultLoginRequestStoreConfig() LoginRequestStoreConfig {
	return LoginRequestStoreConfig{
		Backend:   StoreMemory,
		Dir:       "./data/login-requests",
		TTL:       10 * time.Minute,
		RedisAddr: "localhost:6379",
	}
}

// NewLoginRequestStoreConfigFromEnv loads LoginRequestStoreConfig from standard environment variables.
//
// Environment variables:
//   - LOGIN_REQUEST_STORE: memory, file, redis or postgres (default: "memory")
//   - LOGIN_REQUEST_DIR: file backend directory (default: "./data/login-requests")
//   - LOGIN_REQUEST_TTL: lifetime of an in-flight login (default: "10m")
//   - REDIS_ADDR: redis address (default: "localhost:6379")
//   - REDIS_PASSWORD: redis password (default: "")
//   - REDIS_DB: redis database number (default: 0)
func NewLoginRequestStoreConfigFromEnv() LoginRequestStoreConfig {
	defaults := DefaultLoginRequestStoreConfig()
	return LoginRequestStoreConfig{
		Backend:       GetEnvOrDefault("LOGIN_REQUEST_STORE", defaults.Backend),
		Dir:           GetEnvOrDefault("LOGIN_REQUEST_DIR", defaults.Dir),
		TTL:           GetEnvDuration("LOGIN_REQUEST_TTL", defaults.TTL),
		RedisAddr:     GetEnvOrDefault("REDIS_ADDR", defaults.RedisAddr),
		RedisPassword: GetEnv("REDIS_PASSWORD"),
		RedisDB:       GetEnvInt("REDIS_DB", defaults.RedisDB),
	}
}

// Validate checks the store configuration
func (c LoginRequestStoreConfig) Validate() error {
	return Validate(func() ValidationErrors {
		errs := CollectErrors(
			RequireOneOf("backend", c.Backend, []string{StoreMemory, StoreFile, StoreRedis, StorePostgres}),
			RequirePositiveDuration("ttl", c.TTL),
		)
		if c.Backend == StoreFile {
			errs = append(errs, CollectErrors(RequireNonEmpty("dir", c.Dir))...)
		}
		if c.Backend == StoreRedis {
			errs = append(errs, CollectErrors(RequireNonEmpty("redis_addr", c.RedisAddr))...)
		}
		return errs
	})
}
