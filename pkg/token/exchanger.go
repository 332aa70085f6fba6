package token

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	apperrors "github.com/lksnext-ai-lab/ai-core-tools-sub003/pkg/errors"
	"github.com/lksnext-ai-lab/ai-core-tools-sub003/pkg/idp"
	"github.com/lksnext-ai-lab/ai-core-tools-sub003/pkg/wellknown"
)

const defaultExchangeFailure = "Failed to exchange the authorization code"

// Exchanger talks to the token and userinfo endpoints of a provider
type Exchanger struct {
	httpClient *http.Client
}

// Option configures an Exchanger
type Option func(*Exchanger)

// WithHTTPClient sets the HTTP client used for token and userinfo calls
func WithHTTPClient(client *http.Client) Option {
	return func(e *Exchanger) {
		e.httpClient = client
	}
}

// NewExchanger creates a token exchanger
func NewExchanger(opts ...Option) *Exchanger {
	e := &Exchanger{
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RequestToken exchanges an authorization code for tokens with the PKCE verifier.
// A non-2xx response fails with TOKEN_EXCHANGE_FAILED carrying the provider's
// error_description.
func (e *Exchanger) RequestToken(ctx context.Context, provider idp.Config, md wellknown.OpenIDConfiguration, code, codeVerifier string) (*TokenResponse, error) {
	data := url.Values{}
	data.Set("grant_type", "authorization_code")
	data.Set("client_id", provider.ClientID)
	data.Set("code", code)
	data.Set("redirect_uri", provider.RedirectURI)
	data.Set("code_verifier", codeVerifier)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, md.TokenEndpoint, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeTokenExchange, defaultExchangeFailure)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.Wrap(fmt.Errorf("failed to make token request: %w", err), apperrors.ErrCodeTokenExchange, defaultExchangeFailure)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.Wrap(fmt.Errorf("failed to read token response: %w", err), apperrors.ErrCodeTokenExchange, defaultExchangeFailure)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		message := defaultExchangeFailure
		var oauthErr errorResponse
		if json.Unmarshal(body, &oauthErr) == nil && oauthErr.ErrorDescription != "" {
			message = oauthErr.ErrorDescription
		}
		slog.Warn("Token exchange rejected", "provider", provider.Key, "status", resp.StatusCode, "error", oauthErr.Error)
		return nil, apperrors.TokenExchange(message).
			WithDetail("status", resp.StatusCode).
			WithDetail("error", oauthErr.Error)
	}

	var tokenResponse TokenResponse
	if err := json.Unmarshal(body, &tokenResponse); err != nil {
		return nil, apperrors.Wrap(fmt.Errorf("failed to parse token response: %w", err), apperrors.ErrCodeTokenExchange, defaultExchangeFailure)
	}

	slog.Info("Token exchange successful", "provider", provider.Key, "token_type", tokenResponse.TokenType)
	return &tokenResponse, nil
}

// RequestUserInfo fetches userinfo claims. It returns nil when the provider
// has no userinfo endpoint or the call fails.
func (e *Exchanger) RequestUserInfo(ctx context.Context, md wellknown.OpenIDConfiguration, accessToken string) map[string]interface{} {
	if md.UserinfoEndpoint == "" {
		return nil
	}

	claims, err := e.requestUserInfo(ctx, md.UserinfoEndpoint, accessToken)
	if err != nil {
		slog.Warn("Userinfo request failed, continuing without it", "endpoint", md.UserinfoEndpoint, "error", err)
		return nil
	}
	return claims
}

func (e *Exchanger) requestUserInfo(ctx context.Context, endpoint, accessToken string) (map[string]interface{}, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create user info request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make user info request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read user info response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("user info request failed with status %d", resp.StatusCode)
	}

	var claims map[string]interface{}
	if err := json.Unmarshal(body, &claims); err != nil {
		return nil, fmt.Errorf("failed to parse user info: %w", err)
	}
	return claims, nil
}
