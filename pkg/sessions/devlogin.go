package sessions

import (
	"context"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	apperrors "github.com/lksnext-ai-lab/ai-core-tools-sub003/pkg/errors"
	"github.com/lksnext-ai-lab/ai-core-tools-sub003/pkg/jwks"
	"github.com/lksnext-ai-lab/ai-core-tools-sub003/pkg/token"
)

const (
	devTokenLifetime = 8 * time.Hour
	devDefaultName   = "Developer"
	devDefaultEmail  = "dev@localhost"
)

// DevLogin installs a local session for the dev pseudo-provider without
// contacting any identity provider. The ID token is signed with a key
// generated on first use.
func (m *Manager) DevLogin(ctx context.Context, name, email string) (*Session, error) {
	if !m.devLogin {
		return nil, apperrors.New(apperrors.ErrCodeForbidden, "dev login is disabled")
	}
	if name == "" {
		name = devDefaultName
	}
	if email == "" {
		email = devDefaultEmail
	}

	kp, err := m.devSigningKey()
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to create dev signing key")
	}

	now := m.now()
	expiresIn := int64(devTokenLifetime / time.Second)
	rawIDToken, err := token.SignIDToken(kp, jwt.MapClaims{
		"iss":   DevProviderKey,
		"aud":   DevProviderKey,
		"sub":   uuid.NewSHA1(uuid.NameSpaceURL, []byte("mailto:"+email)).String(),
		"name":  name,
		"email": email,
		"iat":   now.Unix(),
		"exp":   now.Add(devTokenLifetime).Unix(),
	})
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to sign dev id_token")
	}

	profile, err := token.DecodeIDToken(rawIDToken)
	if err != nil {
		return nil, apperrors.InvalidIDToken(err)
	}

	session := &Session{
		ProviderKey: DevProviderKey,
		Tokens: Tokens{
			AccessToken: "dev-" + uuid.NewString(),
			IDToken:     rawIDToken,
			TokenType:   "Bearer",
			ExpiresIn:   &expiresIn,
			ReceivedAt:  now,
		},
		Profile: profile,
	}
	m.install(session)

	slog.Info("Dev login completed", "email", email)
	return session.clone(), nil
}

func (m *Manager) devSigningKey() (*jwks.KeyPair, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.devKey == nil {
		kp, err := jwks.NewKeyPair(2048)
		if err != nil {
			return nil, err
		}
		m.devKey = kp
	}
	return m.devKey, nil
}
