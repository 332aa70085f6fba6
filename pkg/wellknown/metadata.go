package wellknown

import "strings"

// DiscoveryPath is appended to a provider authority to locate its discovery document
const DiscoveryPath = "/.well-known/openid-configuration"

// OpenIDConfiguration is the subset of an OpenID Provider discovery document
// used by the relying party.
// See https://openid.net/specs/openid-connect-discovery-1_0.html#ProviderMetadata
type OpenIDConfiguration struct {
	// The provider's issuer identifier
	Issuer string `json:"issuer,omitempty"`

	// REQUIRED: URL of the authorization endpoint
	AuthorizationEndpoint string `json:"authorization_endpoint"`

	// REQUIRED: URL of the token endpoint
	TokenEndpoint string `json:"token_endpoint"`

	// OPTIONAL: URL of the userinfo endpoint
	UserinfoEndpoint string `json:"userinfo_endpoint,omitempty"`

	// OPTIONAL: URL of the RP-initiated logout endpoint
	EndSessionEndpoint string `json:"end_session_endpoint,omitempty"`

	// OPTIONAL: URL of the provider's JWK Set document
	JwksURI string `json:"jwks_uri,omitempty"`

	// OPTIONAL: Array of PKCE code challenge methods supported
	CodeChallengeMethodsSupported []string `json:"code_challenge_methods_supported,omitempty"`
}

// DiscoveryURL returns the discovery document URL of an authority
func DiscoveryURL(authority string) string {
	return strings.TrimRight(authority, "/") + DiscoveryPath
}
