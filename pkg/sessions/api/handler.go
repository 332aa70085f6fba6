// Package api exposes the console login flow over HTTP. Mount it under /auth.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	apperrors "github.com/lksnext-ai-lab/ai-core-tools-sub003/pkg/errors"
	"github.com/lksnext-ai-lab/ai-core-tools-sub003/pkg/idp"
	"github.com/lksnext-ai-lab/ai-core-tools-sub003/pkg/sessions"
)

const (
	// ScopeCookie carries the login correlation scope across the provider round trip
	ScopeCookie = "oidc_login_scope"

	// SessionCookie identifies the browser session in the Pool
	SessionCookie = "console_session"
)

const scopeCookieMaxAge = 10 * time.Minute

// ProviderLister lists configured providers
type ProviderLister interface {
	ListProviders() []idp.Config
	LoginURL() string
}

// Handler handles HTTP requests for the login flow. Every browser gets its
// own Manager from the pool, selected by the session cookie.
type Handler struct {
	pool         *sessions.Pool
	providers    ProviderLister
	frontendURL  string
	secureCookie bool
}

// Option configures a Handler
type Option func(*Handler)

// WithFrontendURL sets where users land after a successful login
func WithFrontendURL(frontendURL string) Option {
	return func(h *Handler) {
		h.frontendURL = frontendURL
	}
}

// WithSecureCookie marks the session and scope cookies Secure
func WithSecureCookie(secure bool) Option {
	return func(h *Handler) {
		h.secureCookie = secure
	}
}

// NewHandler creates a new login flow handler
func NewHandler(pool *sessions.Pool, providers ProviderLister, opts ...Option) *Handler {
	h := &Handler{
		pool:        pool,
		providers:   providers,
		frontendURL: "/",
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterRoutes registers the login flow routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/providers", h.ListProviders)
	r.Get("/login", h.Login)
	r.Get("/login/{provider}", h.Login)
	r.Get("/callback", h.Callback)
	r.Get("/logout", h.Logout)
	r.Post("/logout", h.Logout)
	r.Get("/me", h.Me)
	r.Post("/dev-login", h.DevLogin)
}

// ListProviders handles GET /providers
func (h *Handler) ListProviders(w http.ResponseWriter, r *http.Request) {
	providers := h.providers.ListProviders()
	resp := make([]ProviderResponse, 0, len(providers))
	for _, p := range providers {
		resp = append(resp, ProviderResponse{Key: p.Key, Name: p.Name})
	}
	render.JSON(w, r, resp)
}

// Login handles GET /login and GET /login/{provider}
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	providerKey := chi.URLParam(r, "provider")

	_, manager, registered := h.lookup(r)

	redirect, err := manager.StartLogin(r.Context(), cookieValue(r, ScopeCookie), providerKey)
	if err != nil {
		slog.Error("Failed to start login", "provider", providerKey, "error", err)
		h.redirectWithError(w, r, manager.LoginURL(), err)
		return
	}
	if !registered {
		h.setCookie(w, SessionCookie, h.pool.Add(manager), 0)
	}

	h.setCookie(w, ScopeCookie, redirect.Scope, int(scopeCookieMaxAge/time.Second))
	http.Redirect(w, r, redirect.URL, http.StatusFound)
}

// Callback handles GET /callback
func (h *Handler) Callback(w http.ResponseWriter, r *http.Request) {
	id, manager, registered := h.lookup(r)

	_, err := manager.HandleAuthCallback(r.Context(), cookieValue(r, ScopeCookie), r.URL.String())
	if err != nil {
		slog.Error("Login callback failed", "code", apperrors.GetCode(err), "error", err)
		h.redirectWithError(w, r, manager.LoginURL(), err)
		return
	}

	h.establish(w, id, manager, registered)
	h.clearCookie(w, ScopeCookie)
	http.Redirect(w, r, h.frontendURL, http.StatusFound)
}

// Logout handles GET and POST /logout
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	target := h.providers.LoginURL()

	id := cookieValue(r, SessionCookie)
	if manager, ok := h.pool.Get(id); ok {
		target = manager.Logout(r.Context())
		h.pool.Remove(id)
	}

	h.clearCookie(w, SessionCookie)
	h.clearCookie(w, ScopeCookie)
	http.Redirect(w, r, target, http.StatusFound)
}

// Me handles GET /me
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	manager, ok := h.pool.Get(cookieValue(r, SessionCookie))
	if !ok {
		render.JSON(w, r, MeResponse{Status: sessions.StatusAnonymous})
		return
	}

	resp := MeResponse{
		Authenticated: manager.IsAuthenticated(),
		Status:        manager.Status(),
	}
	if resp.Authenticated {
		if session := manager.GetSession(); session != nil {
			resp.Provider = session.ProviderKey
			resp.Profile = session.Profile
			resp.UserInfo = session.UserInfo
			if expiresAt, ok := session.Tokens.ExpiresAt(); ok {
				resp.ExpiresAt = expiresAt.UTC().Format(time.RFC3339)
			}
		}
	}
	render.JSON(w, r, resp)
}

// DevLogin handles POST /dev-login
func (h *Handler) DevLogin(w http.ResponseWriter, r *http.Request) {
	var req DevLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, ErrorResponse{Error: "Invalid request body", Code: string(apperrors.ErrCodeInvalidInput)})
		return
	}

	id, manager, registered := h.lookup(r)
	session, err := manager.DevLogin(r.Context(), req.Name, req.Email)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.establish(w, id, manager, registered)

	render.JSON(w, r, MeResponse{
		Authenticated: true,
		Status:        sessions.StatusAuthenticated,
		Provider:      session.ProviderKey,
		Profile:       session.Profile,
	})
}

// RequireAuthenticated rejects requests with 401 unless the caller's own
// session is live
func (h *Handler) RequireAuthenticated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		manager, ok := h.pool.Get(cookieValue(r, SessionCookie))
		if !ok || !manager.IsAuthenticated() {
			writeError(w, r, apperrors.New(apperrors.ErrCodeUnauthorized, "authentication required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// lookup returns the Manager of the caller's session. Callers without one
// get a detached Manager that only joins the pool through establish.
func (h *Handler) lookup(r *http.Request) (string, *sessions.Manager, bool) {
	id := cookieValue(r, SessionCookie)
	if manager, ok := h.pool.Get(id); ok {
		return id, manager, true
	}
	return "", h.pool.New(), false
}

// establish gives a freshly authenticated session a new id and cookie
func (h *Handler) establish(w http.ResponseWriter, id string, manager *sessions.Manager, registered bool) {
	next := ""
	if registered {
		next = h.pool.Rotate(id)
	}
	if next == "" {
		next = h.pool.Add(manager)
	}
	h.setCookie(w, SessionCookie, next, 0)
}

// redirectWithError sends the user back to the login page with the error
func (h *Handler) redirectWithError(w http.ResponseWriter, r *http.Request, loginURL string, err error) {
	params := url.Values{}
	params.Set("error", string(apperrors.GetCode(err)))
	params.Set("error_description", apperrors.GetMessage(err))
	http.Redirect(w, r, loginURL+"?"+params.Encode(), http.StatusFound)
}

func (h *Handler) setCookie(w http.ResponseWriter, name, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   maxAge,
	})
}

func (h *Handler) clearCookie(w http.ResponseWriter, name string) {
	h.setCookie(w, name, "", -1)
}

func cookieValue(r *http.Request, name string) string {
	cookie, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return cookie.Value
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := apperrors.GetCode(err)
	status := apperrors.MapErrorCodeToHTTPStatus(code)
	if status >= http.StatusInternalServerError {
		slog.Error("Request failed", "path", r.URL.Path, "error", err)
	}
	render.Status(r, status)
	render.JSON(w, r, ErrorResponse{Error: apperrors.GetMessage(err), Code: string(code)})
}
