// Package oidctest runs an in-process OpenID provider for tests.
package oidctest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/lksnext-ai-lab/ai-core-tools-sub003/pkg/jwks"
	"github.com/lksnext-ai-lab/ai-core-tools-sub003/pkg/pkce"
	"github.com/lksnext-ai-lab/ai-core-tools-sub003/pkg/token"
	"github.com/lksnext-ai-lab/ai-core-tools-sub003/pkg/wellknown"
)

// Endpoint paths served by Provider
const (
	AuthorizePath  = "/authorize"
	TokenPath      = "/token"
	UserinfoPath   = "/userinfo"
	JWKSPath       = "/jwks"
	EndSessionPath = "/logout"
)

// Behavior controls the responses of a Provider
type Behavior struct {
	DiscoveryStatus  int
	TokenStatus      int
	TokenError       string
	TokenErrorDesc   string
	OmitIDToken      bool
	OmitAccessToken  bool
	ExpiresIn        *int64
	UserinfoStatus   int
	NoUserinfo       bool
	NoEndSession     bool
	Claims           map[string]interface{}
	UserinfoClaims   map[string]interface{}
	SignWith         *jwks.KeyPair
	IDTokenExpiresIn time.Duration
}

type grant struct {
	challenge   string
	redirectURI string
}

// Provider is a fake OpenID provider backed by httptest.Server
type Provider struct {
	Server   *httptest.Server
	Key      *jwks.KeyPair
	ClientID string

	mu        sync.Mutex
	behavior  Behavior
	grants    map[string]grant
	hits      map[string]int
	lastToken url.Values
	lastAuth  string
}

// NewProvider starts a provider for clientID. It stops on test cleanup.
func NewProvider(t testing.TB, clientID string) *Provider {
	t.Helper()

	kp, err := jwks.NewKeyPair(2048)
	if err != nil {
		t.Fatalf("failed to generate provider key: %v", err)
	}

	p := &Provider{
		Key:      kp,
		ClientID: clientID,
		behavior: Behavior{
			DiscoveryStatus:  http.StatusOK,
			TokenStatus:      http.StatusOK,
			UserinfoStatus:   http.StatusOK,
			IDTokenExpiresIn: time.Hour,
		},
		grants: make(map[string]grant),
		hits:   make(map[string]int),
	}

	mux := http.NewServeMux()
	mux.HandleFunc(wellknown.DiscoveryPath, p.handleDiscovery)
	mux.HandleFunc(TokenPath, p.handleToken)
	mux.HandleFunc(UserinfoPath, p.handleUserinfo)
	mux.HandleFunc(JWKSPath, p.handleJWKS)
	p.Server = httptest.NewServer(mux)
	t.Cleanup(p.Server.Close)
	return p
}

// URL is the provider authority
func (p *Provider) URL() string {
	return p.Server.URL
}

// Configure mutates the provider behavior
func (p *Provider) Configure(fn func(b *Behavior)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fn(&p.behavior)
}

// Hits returns how many times path was requested
func (p *Provider) Hits(path string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.hits[path]
}

// TotalHits returns the number of requests served
func (p *Provider) TotalHits() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	total := 0
	for _, n := range p.hits {
		total += n
	}
	return total
}

// LastTokenRequest returns the form of the last token request
func (p *Provider) LastTokenRequest() url.Values {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastToken
}

// LastAuthorizationHeader returns the Authorization header of the last userinfo call
func (p *Provider) LastAuthorizationHeader() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastAuth
}

// Authorize plays the user agent at the authorization endpoint: it checks
// the request and returns the callback URL carrying a fresh code and the
// echoed state.
func (p *Provider) Authorize(authorizeURL string) (string, error) {
	u, err := url.Parse(authorizeURL)
	if err != nil {
		return "", err
	}
	if !strings.HasPrefix(authorizeURL, p.URL()+AuthorizePath) {
		return "", fmt.Errorf("unexpected authorization endpoint %s", u.Path)
	}

	q := u.Query()
	switch {
	case q.Get("client_id") != p.ClientID:
		return "", fmt.Errorf("unexpected client_id %q", q.Get("client_id"))
	case q.Get("response_type") != "code":
		return "", fmt.Errorf("unexpected response_type %q", q.Get("response_type"))
	case q.Get("code_challenge_method") != string(pkce.ChallengeS256):
		return "", fmt.Errorf("unexpected code_challenge_method %q", q.Get("code_challenge_method"))
	case q.Get("code_challenge") == "", q.Get("state") == "", q.Get("redirect_uri") == "":
		return "", fmt.Errorf("incomplete authorization request")
	}

	code := uuid.NewString()
	p.mu.Lock()
	p.grants[code] = grant{challenge: q.Get("code_challenge"), redirectURI: q.Get("redirect_uri")}
	p.mu.Unlock()

	callback, err := url.Parse(q.Get("redirect_uri"))
	if err != nil {
		return "", err
	}
	cq := callback.Query()
	cq.Set("code", code)
	cq.Set("state", q.Get("state"))
	callback.RawQuery = cq.Encode()
	return callback.String(), nil
}

// IDToken signs an ID token for this provider with extra claims
func (p *Provider) IDToken(extra map[string]interface{}) string {
	p.mu.Lock()
	b := p.behavior
	p.mu.Unlock()
	return p.idToken(b, extra)
}

func (p *Provider) idToken(b Behavior, extra map[string]interface{}) string {
	now := time.Now()
	claims := jwt.MapClaims{
		"iss": p.URL(),
		"aud": p.ClientID,
		"sub": "user-123",
		"iat": now.Unix(),
		"exp": now.Add(b.IDTokenExpiresIn).Unix(),
	}
	for k, v := range b.Claims {
		claims[k] = v
	}
	for k, v := range extra {
		claims[k] = v
	}

	key := p.Key
	if b.SignWith != nil {
		key = b.SignWith
	}
	signed, err := token.SignIDToken(key, claims)
	if err != nil {
		panic(err)
	}
	return signed
}

func (p *Provider) record(r *http.Request) Behavior {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.hits[r.URL.Path]++
	return p.behavior
}

func (p *Provider) handleDiscovery(w http.ResponseWriter, r *http.Request) {
	b := p.record(r)
	if b.DiscoveryStatus != http.StatusOK {
		w.WriteHeader(b.DiscoveryStatus)
		return
	}

	md := wellknown.OpenIDConfiguration{
		Issuer:                        p.URL(),
		AuthorizationEndpoint:         p.URL() + AuthorizePath,
		TokenEndpoint:                 p.URL() + TokenPath,
		JwksURI:                       p.URL() + JWKSPath,
		CodeChallengeMethodsSupported: []string{string(pkce.ChallengeS256)},
	}
	if !b.NoUserinfo {
		md.UserinfoEndpoint = p.URL() + UserinfoPath
	}
	if !b.NoEndSession {
		md.EndSessionEndpoint = p.URL() + EndSessionPath
	}
	writeJSON(w, http.StatusOK, md)
}

func (p *Provider) handleToken(w http.ResponseWriter, r *http.Request) {
	b := p.record(r)
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_request"})
		return
	}

	p.mu.Lock()
	p.lastToken = r.PostForm
	g, ok := p.grants[r.PostForm.Get("code")]
	delete(p.grants, r.PostForm.Get("code"))
	p.mu.Unlock()

	if b.TokenStatus != http.StatusOK {
		body := map[string]string{}
		if b.TokenError != "" {
			body["error"] = b.TokenError
		}
		if b.TokenErrorDesc != "" {
			body["error_description"] = b.TokenErrorDesc
		}
		writeJSON(w, b.TokenStatus, body)
		return
	}

	form := r.PostForm
	switch {
	case form.Get("grant_type") != "authorization_code":
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unsupported_grant_type"})
		return
	case form.Get("client_id") != p.ClientID:
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid_client"})
		return
	case !ok:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_grant", "error_description": "unknown authorization code"})
		return
	case form.Get("redirect_uri") != g.redirectURI:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_grant", "error_description": "redirect_uri mismatch"})
		return
	}
	if err := pkce.ValidateCodeVerifier(form.Get("code_verifier"), g.challenge, pkce.ChallengeS256); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_grant", "error_description": err.Error()})
		return
	}

	resp := map[string]interface{}{
		"token_type":    "Bearer",
		"scope":         "openid profile email",
		"refresh_token": "refresh-" + uuid.NewString(),
	}
	if !b.OmitAccessToken {
		resp["access_token"] = "access-" + uuid.NewString()
	}
	if !b.OmitIDToken {
		resp["id_token"] = p.idToken(b, nil)
	}
	if b.ExpiresIn != nil {
		resp["expires_in"] = *b.ExpiresIn
	}
	writeJSON(w, http.StatusOK, resp)
}

func (p *Provider) handleUserinfo(w http.ResponseWriter, r *http.Request) {
	b := p.record(r)
	p.mu.Lock()
	p.lastAuth = r.Header.Get("Authorization")
	p.mu.Unlock()

	if b.UserinfoStatus != http.StatusOK {
		w.WriteHeader(b.UserinfoStatus)
		return
	}
	if !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ") {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	claims := map[string]interface{}{"sub": "user-123"}
	for k, v := range b.UserinfoClaims {
		claims[k] = v
	}
	writeJSON(w, http.StatusOK, claims)
}

func (p *Provider) handleJWKS(w http.ResponseWriter, r *http.Request) {
	p.record(r)
	writeJSON(w, http.StatusOK, jwks.JWKS{Keys: []jwks.JWK{p.Key.ToJWK()}})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
