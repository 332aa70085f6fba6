// Package sessions owns the OIDC login state machine of the console.
//
// A Manager holds at most one session. Login runs in two phases:
// StartLogin persists a login request and returns the authorization URL
// together with a correlation scope, and HandleAuthCallback resumes the flow
// from the URL the provider redirected back to.
//
// Servers keep one Manager per browser in a Pool.
package sessions

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jinzhu/copier"
	apperrors "github.com/lksnext-ai-lab/ai-core-tools-sub003/pkg/errors"
	"github.com/lksnext-ai-lab/ai-core-tools-sub003/pkg/idp"
	"github.com/lksnext-ai-lab/ai-core-tools-sub003/pkg/jwks"
	"github.com/lksnext-ai-lab/ai-core-tools-sub003/pkg/loginrequest"
	"github.com/lksnext-ai-lab/ai-core-tools-sub003/pkg/pkce"
	"github.com/lksnext-ai-lab/ai-core-tools-sub003/pkg/token"
	"github.com/lksnext-ai-lab/ai-core-tools-sub003/pkg/wellknown"
)

// ProviderRegistry resolves configured identity providers
type ProviderRegistry interface {
	GetProviderByKey(key string) (idp.Config, bool)
	GetDefaultProvider() (idp.Config, bool)
	LoginURL() string
}

// MetadataResolver loads provider discovery documents
type MetadataResolver interface {
	FetchMetadata(ctx context.Context, provider idp.Config) (wellknown.OpenIDConfiguration, error)
}

// TokenExchanger talks to the token and userinfo endpoints
type TokenExchanger interface {
	RequestToken(ctx context.Context, provider idp.Config, md wellknown.OpenIDConfiguration, code, codeVerifier string) (*token.TokenResponse, error)
	RequestUserInfo(ctx context.Context, md wellknown.OpenIDConfiguration, accessToken string) map[string]interface{}
}

// IDTokenVerifier checks the signature and claims of an ID token
type IDTokenVerifier interface {
	Verify(ctx context.Context, provider idp.Config, md wellknown.OpenIDConfiguration, rawIDToken string) error
}

type subscription struct {
	id       int
	listener Listener
}

// Manager is the single owner of the session. It is safe for concurrent use.
type Manager struct {
	registry  ProviderRegistry
	resolver  MetadataResolver
	exchanger TokenExchanger
	store     loginrequest.Store
	verifier  IDTokenVerifier
	now       func() time.Time
	loginURL  string

	devLogin bool
	devKey   *jwks.KeyPair

	mu        sync.Mutex
	session   *Session
	pending   bool
	listeners []subscription
	nextID    int
}

// Option configures a Manager
type Option func(*Manager)

// WithClock sets the time source used for expiry checks
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// WithLoginURL overrides the login page used as the logout fallback
func WithLoginURL(loginURL string) Option {
	return func(m *Manager) {
		m.loginURL = loginURL
	}
}

// WithDevLogin enables DevLogin
func WithDevLogin(enabled bool) Option {
	return func(m *Manager) {
		m.devLogin = enabled
	}
}

// WithIDTokenVerifier verifies ID tokens before a session is installed
func WithIDTokenVerifier(verifier IDTokenVerifier) Option {
	return func(m *Manager) {
		m.verifier = verifier
	}
}

// NewManager creates a session manager
func NewManager(registry ProviderRegistry, resolver MetadataResolver, exchanger TokenExchanger, store loginrequest.Store, opts ...Option) *Manager {
	m := &Manager{
		registry:  registry,
		resolver:  resolver,
		exchanger: exchanger,
		store:     store,
		now:       time.Now,
		loginURL:  registry.LoginURL(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// LoginURL is where users land when they have to sign in again
func (m *Manager) LoginURL() string {
	return m.loginURL
}

// DevLoginEnabled reports whether DevLogin is available
func (m *Manager) DevLoginEnabled() bool {
	return m.devLogin
}

// StartLogin prepares the authorization request for providerKey, or for the
// default provider when providerKey is empty. The login request is stored
// under scope before the redirect is returned; a new scope is generated when
// scope is empty.
func (m *Manager) StartLogin(ctx context.Context, scope, providerKey string) (*LoginRedirect, error) {
	provider, err := m.provider(providerKey)
	if err != nil {
		return nil, err
	}

	md, err := m.resolver.FetchMetadata(ctx, provider)
	if err != nil {
		return nil, err
	}

	state, err := pkce.GenerateState()
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to generate state")
	}
	verifier, err := pkce.GenerateCodeVerifier()
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to generate code verifier")
	}

	if scope == "" {
		scope = uuid.NewString()
	}
	req := loginrequest.LoginRequest{
		ProviderKey:  provider.Key,
		CodeVerifier: verifier,
		State:        state,
	}
	if err := m.store.Save(ctx, scope, req); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to save login request")
	}

	params := url.Values{}
	params.Set("client_id", provider.ClientID)
	params.Set("redirect_uri", provider.RedirectURI)
	params.Set("response_type", "code")
	params.Set("scope", provider.Scope)
	params.Set("state", state)
	params.Set("code_challenge", pkce.CreateCodeChallenge(verifier))
	params.Set("code_challenge_method", string(pkce.ChallengeS256))
	for k, v := range provider.ExtraAuthorizeParams {
		if v != "" {
			params.Set(k, v)
		}
	}

	m.mu.Lock()
	m.pending = true
	m.mu.Unlock()

	slog.Info("Login started", "provider", provider.Key, "scope", scope)
	return &LoginRedirect{
		URL:   appendQuery(md.AuthorizationEndpoint, params),
		Scope: scope,
	}, nil
}

// HandleAuthCallback completes the login started under scope from the URL
// the provider redirected back to, and installs the new session.
func (m *Manager) HandleAuthCallback(ctx context.Context, scope, callbackURL string) (*Session, error) {
	u, err := url.Parse(callbackURL)
	if err != nil {
		return nil, apperrors.InvalidCallback("malformed callback URL")
	}
	q := u.Query()

	if errCode := q.Get("error"); errCode != "" {
		m.setPending(false)
		msg := q.Get("error_description")
		if msg == "" {
			msg = errCode
		}
		return nil, apperrors.Authorization(msg).WithDetail("error", errCode)
	}

	code, state := q.Get("code"), q.Get("state")
	if code == "" || state == "" {
		return nil, apperrors.InvalidCallback("callback is missing code or state")
	}

	req, err := m.store.Load(ctx, scope)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to load login request")
	}
	if req == nil {
		return nil, apperrors.StateMismatch("no login request is pending")
	}
	if req.State != state {
		return nil, apperrors.StateMismatch("state does not match the login request")
	}

	// single use
	if err := m.store.Clear(ctx, scope); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to clear login request")
	}
	m.setPending(false)

	provider, ok := m.registry.GetProviderByKey(req.ProviderKey)
	if !ok {
		return nil, apperrors.UnknownProvider(req.ProviderKey)
	}

	md, err := m.resolver.FetchMetadata(ctx, provider)
	if err != nil {
		return nil, err
	}

	resp, err := m.exchanger.RequestToken(ctx, provider, md, code, req.CodeVerifier)
	if err != nil {
		return nil, err
	}
	if missing := resp.Missing(); len(missing) > 0 {
		return nil, apperrors.IncompleteTokenResponse(missing...)
	}

	if m.verifier != nil {
		if err := m.verifier.Verify(ctx, provider, md, resp.IDToken); err != nil {
			return nil, apperrors.InvalidIDToken(err)
		}
	}
	profile, err := token.DecodeIDToken(resp.IDToken)
	if err != nil {
		return nil, apperrors.InvalidIDToken(err)
	}

	var tokens Tokens
	if err := copier.Copy(&tokens, resp); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to copy token response")
	}
	tokens.ReceivedAt = m.now()

	session := &Session{
		ProviderKey: provider.Key,
		Tokens:      tokens,
		Profile:     profile,
		UserInfo:    m.exchanger.RequestUserInfo(ctx, md, resp.AccessToken),
	}
	m.install(session)

	slog.Info("Login completed", "provider", provider.Key, "sub", session.Subject())
	return session.clone(), nil
}

// IsAuthenticated reports whether a session exists and has not expired
func (m *Manager) IsAuthenticated() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session.Active(m.now())
}

// Status reports the current state of the login state machine. An expired
// session is reported as anonymous.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case m.session.Active(m.now()):
		return StatusAuthenticated
	case m.pending:
		return StatusAuthenticating
	default:
		return StatusAnonymous
	}
}

// GetSession returns a copy of the session, or nil
func (m *Manager) GetSession() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session.clone()
}

// ClearSession drops the session and notifies listeners with nil
func (m *Manager) ClearSession() {
	m.install(nil)
}

// Subscribe registers listener for session transitions. Listeners run
// synchronously in registration order after the transition is applied.
// The returned function removes this registration; calling it again is a
// no-op.
func (m *Manager) Subscribe(listener Listener) func() {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners = append(m.listeners, subscription{id: id, listener: listener})
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			for i, sub := range m.listeners {
				if sub.id == id {
					m.listeners = append(m.listeners[:i:i], m.listeners[i+1:]...)
					return
				}
			}
		})
	}
}

// install replaces the session and fans out outside the lock
func (m *Manager) install(session *Session) {
	m.mu.Lock()
	m.session = session
	if session == nil {
		m.pending = false
	}
	listeners := make([]subscription, len(m.listeners))
	copy(listeners, m.listeners)
	m.mu.Unlock()

	for _, sub := range listeners {
		sub.listener(session.clone())
	}
}

func (m *Manager) setPending(pending bool) {
	m.mu.Lock()
	m.pending = pending
	m.mu.Unlock()
}

// take removes the session in one step and returns it. Listeners are
// notified only when there was a session to remove.
func (m *Manager) take() *Session {
	m.mu.Lock()
	session := m.session
	if session == nil {
		m.mu.Unlock()
		return nil
	}
	m.session = nil
	m.pending = false
	listeners := make([]subscription, len(m.listeners))
	copy(listeners, m.listeners)
	m.mu.Unlock()

	for _, sub := range listeners {
		sub.listener(nil)
	}
	return session
}

func (m *Manager) provider(key string) (idp.Config, error) {
	if key == "" {
		provider, ok := m.registry.GetDefaultProvider()
		if !ok {
			return idp.Config{}, apperrors.New(apperrors.ErrCodeUnknownProvider, "no identity provider is configured")
		}
		return provider, nil
	}

	provider, ok := m.registry.GetProviderByKey(key)
	if !ok {
		return idp.Config{}, apperrors.UnknownProvider(key)
	}
	return provider, nil
}

func appendQuery(endpoint string, params url.Values) string {
	if len(params) == 0 {
		return endpoint
	}
	sep := "?"
	if strings.Contains(endpoint, "?") {
		sep = "&"
	}
	return endpoint + sep + params.Encode()
}
