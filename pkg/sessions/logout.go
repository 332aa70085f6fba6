package sessions

import (
	"context"
	"log/slog"
	"net/url"

	"github.com/lksnext-ai-lab/ai-core-tools-sub003/pkg/wellknown"
)

// Logout clears the session and returns where the user agent should go
// next. In order of preference that is the provider's end_session_endpoint,
// its non-standard logout URL, or the post-logout redirect target. Without a
// session the login page is returned and no request is made. The session is
// removed before the provider is contacted, so a session installed meanwhile
// survives.
func (m *Manager) Logout(ctx context.Context) string {
	session := m.take()
	if session == nil {
		return m.loginURL
	}

	provider, ok := m.registry.GetProviderByKey(session.ProviderKey)
	if !ok {
		slog.Info("Logged out", "provider", session.ProviderKey)
		return m.loginURL
	}

	md, err := m.resolver.FetchMetadata(ctx, provider)
	if err != nil {
		slog.Warn("Logging out without OpenID configuration", "provider", provider.Key, "error", err)
		md = wellknown.OpenIDConfiguration{}
	}

	target := provider.PostLogoutRedirectURI
	if target == "" {
		target = m.loginURL
	}
	idTokenHint := session.Tokens.IDToken

	slog.Info("Logged out", "provider", provider.Key)

	switch {
	case md.EndSessionEndpoint != "":
		params := url.Values{}
		params.Set("post_logout_redirect_uri", target)
		if idTokenHint != "" {
			params.Set("id_token_hint", idTokenHint)
		}
		if provider.ClientID != "" {
			params.Set("client_id", provider.ClientID)
		}
		return appendQuery(md.EndSessionEndpoint, params)
	case provider.LogoutURL != "":
		return appendQuery(provider.LogoutURL, url.Values{"continue": {target}})
	default:
		return target
	}
}
