package idp

import (
	"strings"

	"github.com/lksnext-ai-lab/ai-core-tools-sub003/pkg/config"
)

const (
	// DefaultScope is requested when {PREFIX}_SCOPE is not set
	DefaultScope = "openid profile email"

	callbackPath   = "/auth/callback"
	loginPath      = "/login"
	selectAccount  = "select_account"
	googleLogout   = "https://accounts.google.com/Logout"
	envAuthority   = "_AUTHORITY"
	envClientID    = "_CLIENT_ID"
	envRedirectURI = "_REDIRECT_URI"
	envLogoutURI   = "_LOGOUT_REDIRECT_URI"
	envScope       = "_SCOPE"
	envName        = "_NAME"
)

// Config is a resolved identity provider
type Config struct {
	Key                   string
	Name                  string
	Authority             string
	ClientID              string
	Scope                 string
	RedirectURI           string
	PostLogoutRedirectURI string
	ExtraAuthorizeParams  map[string]string
	// LogoutURL is a non-standard logout endpoint for providers without
	// RP-initiated logout. It receives a "continue" parameter.
	LogoutURL string
}

// Definition is the static metadata of a provider slot. Its environment
// group is selected by Prefix.
type Definition struct {
	Key                  string
	Prefix               string
	Name                 string
	ExtraAuthorizeParams map[string]string
	LogoutURL            string
}

// DefaultDefinitions returns the provider slots in declaration order
func DefaultDefinitions() []Definition {
	return []Definition{
		{
			Key:    "oidc",
			Prefix: "OIDC",
			Name:   "Single Sign-On",
		},
		{
			Key:                  "entra",
			Prefix:               "OIDC_ENTRA",
			Name:                 "Microsoft Entra ID",
			ExtraAuthorizeParams: map[string]string{"prompt": selectAccount},
		},
		{
			Key:                  "google",
			Prefix:               "OIDC_GOOGLE",
			Name:                 "Google",
			ExtraAuthorizeParams: map[string]string{"prompt": selectAccount},
			LogoutURL:            googleLogout,
		},
	}
}

// LookupFunc resolves a configuration key, returning "" when unset
type LookupFunc func(key string) string

// Registry resolves provider definitions against environment-style
// configuration. Lookups are recomputed on every call.
type Registry struct {
	origin      string
	lookup      LookupFunc
	definitions []Definition
}

// Option configures a Registry
type Option func(*Registry)

// WithLookup replaces the environment lookup
func WithLookup(lookup LookupFunc) Option {
	return func(r *Registry) {
		r.lookup = lookup
	}
}

// WithMap resolves configuration from a static map
func WithMap(values map[string]string) Option {
	return WithLookup(func(key string) string {
		return values[key]
	})
}

// WithDefinitions replaces the default provider slots
func WithDefinitions(definitions ...Definition) Option {
	return func(r *Registry) {
		r.definitions = definitions
	}
}

// NewRegistry creates a registry. origin is the public base URL of the
// application and is used to default redirect URIs.
func NewRegistry(origin string, opts ...Option) *Registry {
	r := &Registry{
		origin:      strings.TrimRight(origin, "/"),
		lookup:      config.GetEnv,
		definitions: DefaultDefinitions(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Origin returns the application origin without a trailing slash
func (r *Registry) Origin() string {
	return r.origin
}

// LoginURL returns the local login page
func (r *Registry) LoginURL() string {
	return r.origin + loginPath
}

// ListProviders returns every provider whose authority and client id are
// both set, in declaration order. Incomplete providers are omitted.
func (r *Registry) ListProviders() []Config {
	providers := make([]Config, 0, len(r.definitions))
	for _, def := range r.definitions {
		if provider, ok := r.resolve(def); ok {
			providers = append(providers, provider)
		}
	}
	return providers
}

// GetProviderByKey looks a provider up by key
func (r *Registry) GetProviderByKey(key string) (Config, bool) {
	for _, provider := range r.ListProviders() {
		if provider.Key == key {
			return provider, true
		}
	}
	return Config{}, false
}

// GetDefaultProvider returns the first configured provider
func (r *Registry) GetDefaultProvider() (Config, bool) {
	providers := r.ListProviders()
	if len(providers) == 0 {
		return Config{}, false
	}
	return providers[0], true
}

func (r *Registry) resolve(def Definition) (Config, bool) {
	authority := r.get(def.Prefix + envAuthority)
	clientID := r.get(def.Prefix + envClientID)
	if authority == "" || clientID == "" {
		return Config{}, false
	}

	provider := Config{
		Key:                   def.Key,
		Name:                  firstNonEmpty(r.get(def.Prefix+envName), def.Name, def.Key),
		Authority:             authority,
		ClientID:              clientID,
		Scope:                 firstNonEmpty(r.get(def.Prefix+envScope), DefaultScope),
		RedirectURI:           firstNonEmpty(r.get(def.Prefix+envRedirectURI), r.origin+callbackPath),
		PostLogoutRedirectURI: firstNonEmpty(r.get(def.Prefix+envLogoutURI), r.origin+loginPath),
		LogoutURL:             def.LogoutURL,
	}
	if len(def.ExtraAuthorizeParams) > 0 {
		provider.ExtraAuthorizeParams = make(map[string]string, len(def.ExtraAuthorizeParams))
		for k, v := range def.ExtraAuthorizeParams {
			provider.ExtraAuthorizeParams[k] = v
		}
	}
	return provider, true
}

func (r *Registry) get(key string) string {
	return strings.TrimSpace(r.lookup(key))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
