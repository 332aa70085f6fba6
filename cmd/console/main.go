package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/tendant/chi-demo/app"

	"github.com/lksnext-ai-lab/ai-core-tools-sub003/pkg/config"
	"github.com/lksnext-ai-lab/ai-core-tools-sub003/pkg/idp"
	"github.com/lksnext-ai-lab/ai-core-tools-sub003/pkg/loginrequest"
	"github.com/lksnext-ai-lab/ai-core-tools-sub003/pkg/sessions"
	sessionsapi "github.com/lksnext-ai-lab/ai-core-tools-sub003/pkg/sessions/api"
	"github.com/lksnext-ai-lab/ai-core-tools-sub003/pkg/token"
	"github.com/lksnext-ai-lab/ai-core-tools-sub003/pkg/wellknown"
)

type Config struct {
	// Application
	FrontendURL  string `env:"FRONTEND_URL" env-default:"http://localhost:3000"`
	CookieSecure bool   `env:"COOKIE_SECURE" env-default:"false"`

	// Database, only used by the postgres login request store
	DBHost     string `env:"CONSOLE_PG_HOST" env-default:"localhost"`
	DBPort     uint16 `env:"CONSOLE_PG_PORT" env-default:"5432"`
	DBDatabase string `env:"CONSOLE_PG_DATABASE" env-default:"console_db"`
	DBUser     string `env:"CONSOLE_PG_USER" env-default:"console"`
	DBPassword string `env:"CONSOLE_PG_PASSWORD" env-default:"pwd"`
	DBSchema   string `env:"CONSOLE_PG_SCHEMA" env-default:"public"`

	// Server
	AppConfig app.AppConfig
}

func (c *Config) toDatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable&search_path=%s,public",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBDatabase, c.DBSchema)
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		AddSource: true,
	}))
	slog.SetDefault(logger)

	slog.Info("Starting console")

	loadEnvFile()

	cfg := Config{}
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		slog.Error("Failed to read configuration", "error", err)
		os.Exit(1)
	}

	oidcConfig := config.NewOIDCConfigFromEnv()
	if err := oidcConfig.Validate(); err != nil {
		slog.Error("Invalid OIDC configuration", "error", err)
		os.Exit(1)
	}
	storeConfig := config.NewLoginRequestStoreConfigFromEnv()
	if err := storeConfig.Validate(); err != nil {
		slog.Error("Invalid login request store configuration", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	store, closeStore, err := newLoginRequestStore(ctx, storeConfig, &cfg)
	if err != nil {
		slog.Error("Failed to initialize login request store", "backend", storeConfig.Backend, "error", err)
		os.Exit(1)
	}
	defer closeStore()

	registry := idp.NewRegistry(oidcConfig.Origin)
	providers := registry.ListProviders()
	if len(providers) == 0 {
		slog.Warn("No identity provider configured, set OIDC_AUTHORITY and OIDC_CLIENT_ID")
	}
	for _, p := range providers {
		slog.Info("Identity provider", "key", p.Key, "name", p.Name, "authority", p.Authority)
	}

	httpClient := &http.Client{Timeout: oidcConfig.HTTPTimeout}
	opts := []sessions.Option{
		sessions.WithDevLogin(oidcConfig.DevLoginEnabled),
	}
	if oidcConfig.VerifyIDToken {
		opts = append(opts, sessions.WithIDTokenVerifier(token.NewJWKSVerifier(token.WithVerifierHTTPClient(httpClient))))
	}
	if oidcConfig.DevLoginEnabled {
		slog.Warn("Dev login is enabled, do not use in production")
	}

	resolver := wellknown.NewResolver(wellknown.WithHTTPClient(httpClient))
	exchanger := token.NewExchanger(token.WithHTTPClient(httpClient))
	pool := sessions.NewPool(func() *sessions.Manager {
		manager := sessions.NewManager(registry, resolver, exchanger, store, opts...)
		manager.Subscribe(func(s *sessions.Session) {
			if s == nil {
				slog.Info("Session ended")
				return
			}
			slog.Info("Session started", "provider", s.ProviderKey, "sub", s.Subject())
		})
		return manager
	}, sessions.WithIdleTimeout(oidcConfig.SessionIdleTimeout))

	secure := cfg.CookieSecure || config.IsProduction() || strings.HasPrefix(oidcConfig.Origin, "https://")
	handler := sessionsapi.NewHandler(pool, registry,
		sessionsapi.WithFrontendURL(cfg.FrontendURL),
		sessionsapi.WithSecureCookie(secure),
	)

	server := app.DefaultApp()
	setupRoutes(server.R, handler)

	slog.Info("Console ready", "base_url", oidcConfig.Origin, "env", oidcConfig.Environment, "login_request_store", storeConfig.Backend)
	server.Run()
}

func setupRoutes(r *chi.Mux, handler *sessionsapi.Handler) {
	app.RoutesHealthz(r)
	app.RoutesHealthzReady(r)

	r.Route("/auth", handler.RegisterRoutes)
	r.Route("/api", func(r chi.Router) {
		r.Use(handler.RequireAuthenticated)
		r.Get("/me", handler.Me)
	})
}

// newLoginRequestStore builds the configured backend. The returned func
// releases its connections.
func newLoginRequestStore(ctx context.Context, storeConfig config.LoginRequestStoreConfig, cfg *Config) (loginrequest.Store, func(), error) {
	noop := func() {}
	ttl := loginrequest.WithTTL(storeConfig.TTL)

	switch storeConfig.Backend {
	case config.StoreFile:
		store, err := loginrequest.NewFileStore(storeConfig.Dir, ttl)
		if err != nil {
			return nil, noop, err
		}
		return store, noop, nil

	case config.StoreRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     storeConfig.RedisAddr,
			Password: storeConfig.RedisPassword,
			DB:       storeConfig.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, noop, fmt.Errorf("failed to connect to redis at %s: %w", storeConfig.RedisAddr, err)
		}
		return loginrequest.NewRedisStore(client, storeConfig.TTL), func() { client.Close() }, nil

	case config.StorePostgres:
		pool, err := pgxpool.New(ctx, cfg.toDatabaseURL())
		if err != nil {
			return nil, noop, fmt.Errorf("failed to connect to database %s on %s:%d: %w", cfg.DBDatabase, cfg.DBHost, cfg.DBPort, err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, noop, fmt.Errorf("failed to ping database: %w", err)
		}
		return loginrequest.NewPostgresStore(pool, ttl), pool.Close, nil

	default:
		return loginrequest.NewInMemoryStore(ttl), noop, nil
	}
}

func loadEnvFile() {
	execPath, err := os.Executable()
	if err != nil {
		return
	}

	envFile := filepath.Join(filepath.Dir(execPath), ".env")
	if _, err := os.Stat(envFile); os.IsNotExist(err) {
		cwd, _ := os.Getwd()
		envFile = filepath.Join(cwd, ".env")
	}

	if _, err := os.Stat(envFile); os.IsNotExist(err) {
		slog.Debug("No .env file found (using environment variables or defaults)")
		return
	}

	slog.Info("Loading configuration from .env file", "path", envFile)
	if err := godotenv.Load(envFile); err != nil {
		slog.Warn("Failed to load .env file", "error", err)
	}
}
