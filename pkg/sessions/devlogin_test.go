package sessions

import (
	"context"
	"testing"

	apperrors "github.com/lksnext-ai-lab/ai-core-tools-sub003/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDevLoginDisabled(t *testing.T) {
	f := newFixture(t, "OIDC")

	_, err := f.manager.DevLogin(context.Background(), "Ada", "ada@example.com")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeForbidden))
	assert.False(t, f.manager.IsAuthenticated())
}

func TestDevLogin(t *testing.T) {
	f := newFixture(t, "OIDC", WithDevLogin(true))
	var notified *Session
	f.manager.Subscribe(func(s *Session) { notified = s })

	session, err := f.manager.DevLogin(context.Background(), "Ada", "ada@example.com")
	require.NoError(t, err)

	assert.Equal(t, DevProviderKey, session.ProviderKey)
	assert.Equal(t, "Ada", session.Profile["name"])
	assert.Equal(t, "ada@example.com", session.Profile["email"])
	assert.NotEmpty(t, session.Subject())
	assert.NotEmpty(t, session.Tokens.IDToken)
	assert.Equal(t, f.clock(), session.Tokens.ReceivedAt)

	assert.True(t, f.manager.IsAuthenticated())
	assert.Equal(t, StatusAuthenticated, f.manager.Status())
	require.NotNil(t, notified)
	assert.Equal(t, DevProviderKey, notified.ProviderKey)
	assert.Equal(t, 0, f.idp.TotalHits())
}

func TestDevLoginStableSubject(t *testing.T) {
	f := newFixture(t, "OIDC", WithDevLogin(true))

	first, err := f.manager.DevLogin(context.Background(), "", "")
	require.NoError(t, err)
	second, err := f.manager.DevLogin(context.Background(), "", "")
	require.NoError(t, err)

	assert.Equal(t, devDefaultName, first.Profile["name"])
	assert.Equal(t, devDefaultEmail, first.Profile["email"])
	assert.Equal(t, first.Subject(), second.Subject())
}

func TestDevLoginExpires(t *testing.T) {
	f := newFixture(t, "OIDC", WithDevLogin(true))
	_, err := f.manager.DevLogin(context.Background(), "", "")
	require.NoError(t, err)

	f.advance(devTokenLifetime)
	assert.False(t, f.manager.IsAuthenticated())
}

func TestDevLoginLogout(t *testing.T) {
	f := newFixture(t, "OIDC", WithDevLogin(true))
	_, err := f.manager.DevLogin(context.Background(), "", "")
	require.NoError(t, err)

	assert.Equal(t, loginURL, f.manager.Logout(context.Background()))
	assert.False(t, f.manager.IsAuthenticated())
	assert.Equal(t, 0, f.idp.TotalHits())
}
