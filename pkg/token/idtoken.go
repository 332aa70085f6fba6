package token

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lksnext-ai-lab/ai-core-tools-sub003/pkg/idp"
	"github.com/lksnext-ai-lab/ai-core-tools-sub003/pkg/jwks"
	"github.com/lksnext-ai-lab/ai-core-tools-sub003/pkg/wellknown"
)

// DecodeIDToken returns the payload claims of an ID token without verifying
// its signature.
func DecodeIDToken(raw string) (map[string]interface{}, error) {
	tok, _, err := jwt.NewParser().ParseUnverified(raw, jwt.MapClaims{})
	if err != nil {
		return nil, fmt.Errorf("failed to decode id_token: %w", err)
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("unexpected id_token claims type %T", tok.Claims)
	}
	return claims, nil
}

// SignIDToken signs claims with an RS256 key pair, setting the kid header
func SignIDToken(kp *jwks.KeyPair, claims jwt.Claims) (string, error) {
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = kp.Kid
	signed, err := tok.SignedString(kp.PrivateKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign id_token: %w", err)
	}
	return signed, nil
}

// JWKSVerifier verifies ID token signatures against the provider's jwks_uri
// and checks issuer, audience and expiry.
type JWKSVerifier struct {
	httpClient *http.Client
	leeway     time.Duration
	now        func() time.Time

	mu      sync.Mutex
	keySets map[string]*jwks.RemoteKeySet
}

// VerifierOption configures a JWKSVerifier
type VerifierOption func(*JWKSVerifier)

// WithVerifierHTTPClient sets the HTTP client used to download key sets
func WithVerifierHTTPClient(client *http.Client) VerifierOption {
	return func(v *JWKSVerifier) {
		v.httpClient = client
	}
}

// WithLeeway sets the allowed clock skew
func WithLeeway(leeway time.Duration) VerifierOption {
	return func(v *JWKSVerifier) {
		v.leeway = leeway
	}
}

// WithVerifierClock sets the time source used for exp/nbf/iat checks
func WithVerifierClock(now func() time.Time) VerifierOption {
	return func(v *JWKSVerifier) {
		v.now = now
	}
}

// NewJWKSVerifier creates an ID token verifier
func NewJWKSVerifier(opts ...VerifierOption) *JWKSVerifier {
	v := &JWKSVerifier{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		leeway:     time.Minute,
		now:        time.Now,
		keySets:    make(map[string]*jwks.RemoteKeySet),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify checks the signature and standard claims of rawIDToken
func (v *JWKSVerifier) Verify(ctx context.Context, provider idp.Config, md wellknown.OpenIDConfiguration, rawIDToken string) error {
	if md.JwksURI == "" {
		return fmt.Errorf("provider %s does not publish a jwks_uri", provider.Key)
	}
	keySet := v.keySet(md.JwksURI)

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithAudience(provider.ClientID),
		jwt.WithLeeway(v.leeway),
		jwt.WithTimeFunc(v.now),
		jwt.WithExpirationRequired(),
	}
	// multi-tenant issuers such as Entra's "common" endpoint are templates
	if md.Issuer != "" && !strings.Contains(md.Issuer, "{") {
		opts = append(opts, jwt.WithIssuer(md.Issuer))
	}

	_, err := jwt.Parse(rawIDToken, func(t *jwt.Token) (interface{}, error) {
		kid, _ := t.Header["kid"].(string)
		return keySet.Key(ctx, kid)
	}, opts...)
	if err != nil {
		return fmt.Errorf("id_token verification failed: %w", err)
	}
	return nil
}

func (v *JWKSVerifier) keySet(uri string) *jwks.RemoteKeySet {
	v.mu.Lock()
	defer v.mu.Unlock()

	ks, ok := v.keySets[uri]
	if !ok {
		ks = jwks.NewRemoteKeySet(uri, jwks.WithHTTPClient(v.httpClient), jwks.WithClock(v.now))
		v.keySets[uri] = ks
	}
	return ks
}
