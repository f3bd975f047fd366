package jwt

import (
	"context"
	"errors"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pet-vaccination-clinic/internal/ports/auth"
)

func newTestService(t *testing.T, now time.Time) *Service {
	t.Helper()
	s, err := New(Config{Secret: "test-secret", Issuer: "pet-vaccination-clinic", TTL: time.Hour})
	require.NoError(t, err)
	s.now = func() time.Time { return now }
	return s
}

func TestIssueVerify_RoundTrip(t *testing.T) {
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	s := newTestService(t, now)
	ctx := context.Background()

	token, exp, err := s.Issue(ctx, auth.Claims{UserID: "u-1", Username: "carla", IsStaff: true})
	require.NoError(t, err)
	assert.Equal(t, now.Add(time.Hour), exp)

	got, err := s.Verify(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "u-1", got.UserID)
	assert.Equal(t, "carla", got.Username)
	assert.True(t, got.IsStaff)
	assert.Equal(t, exp, got.ExpiresAt)
}

func TestVerify_Rejects(t *testing.T) {
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	s := newTestService(t, now)
	ctx := context.Background()

	token, _, err := s.Issue(ctx, auth.Claims{UserID: "u-1"})
	require.NoError(t, err)

	// expirado
	s.now = func() time.Time { return now.Add(2 * time.Hour) }
	_, err = s.Verify(ctx, token)
	assert.True(t, errors.Is(err, ErrInvalidToken))

	// otra clave
	s.now = func() time.Time { return now }
	other, err := New(Config{Secret: "other", Issuer: "pet-vaccination-clinic"})
	require.NoError(t, err)
	other.now = s.now
	_, err = other.Verify(ctx, token)
	assert.True(t, errors.Is(err, ErrInvalidToken))

	// algoritmo "none"
	unsigned := jwtlib.NewWithClaims(jwtlib.SigningMethodNone, jwtlib.RegisteredClaims{
		Subject:   "u-1",
		ExpiresAt: jwtlib.NewNumericDate(now.Add(time.Hour)),
	})
	raw, err := unsigned.SignedString(jwtlib.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = s.Verify(ctx, raw)
	assert.True(t, errors.Is(err, ErrInvalidToken))

	_, err = s.Verify(ctx, "  ")
	assert.True(t, errors.Is(err, ErrInvalidToken))
}

func TestNew_RequiresSecret(t *testing.T) {
	_, err := New(Config{})
	assert.True(t, errors.Is(err, ErrSecretRequired))
}

func TestRefreshToken_SeparateFromAccess(t *testing.T) {
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	s := newTestService(t, now)
	ctx := context.Background()

	refresh, exp, err := s.IssueRefresh(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, now.Add(DefaultRefreshTTL), exp)

	userID, err := s.VerifyRefresh(ctx, refresh)
	require.NoError(t, err)
	assert.Equal(t, "u-1", userID)

	// un refresh no sirve como bearer
	_, err = s.Verify(ctx, refresh)
	assert.True(t, errors.Is(err, ErrInvalidToken))

	// ni un access como refresh
	access, _, err := s.Issue(ctx, auth.Claims{UserID: "u-1"})
	require.NoError(t, err)
	_, err = s.VerifyRefresh(ctx, access)
	assert.True(t, errors.Is(err, ErrInvalidToken))

	// sobrevive al access token pero no a su propio TTL
	s.now = func() time.Time { return now.Add(2 * time.Hour) }
	_, err = s.VerifyRefresh(ctx, refresh)
	assert.NoError(t, err)
	s.now = func() time.Time { return now.Add(DefaultRefreshTTL + time.Minute) }
	_, err = s.VerifyRefresh(ctx, refresh)
	assert.True(t, errors.Is(err, ErrInvalidToken))

	_, _, err = s.IssueRefresh(ctx, " ")
	assert.Error(t, err)
}
