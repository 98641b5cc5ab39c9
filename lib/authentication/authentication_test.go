package authentication

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"galaxy/lib/services"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAuth(t *testing.T) (*AuthService, *services.Cache, *miniredis.Miniredis) {
	t.Helper()
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { client.Close() })
	cache := &services.Cache{Db: client}

	auth := NewAuthService(&AuthConfig{TokenConfig: TokenConfig{
		SigningKey:      "test-signing-key",
		TokenDuration:   time.Minute,
		RefreshDuration: time.Hour,
	}}, cache)
	return auth, cache, server
}

func TestIssueAndValidate(t *testing.T) {
	auth, _, server := newTestAuth(t)
	ctx := context.Background()

	pair, err := auth.IssueEmpireTokens(ctx, "empire-1")
	require.NoError(t, err)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)
	assert.NotEmpty(t, pair.CSRFToken)
	assert.True(t, pair.ExpiresAt.After(time.Now()))
	assert.True(t, server.Exists(refreshTokenPrefix+pair.RefreshToken))

	claims, err := auth.ValidateEmpireToken(ctx, pair.AccessToken, pair.CSRFToken)
	require.NoError(t, err)
	assert.Equal(t, "empire-1", claims.EmpireID)
	assert.Greater(t, claims.ExpiresAt, claims.IssuedAt)
}

func TestIssueRequiresEmpire(t *testing.T) {
	auth, _, _ := newTestAuth(t)
	_, err := auth.IssueEmpireTokens(context.Background(), "")
	assert.ErrorIs(t, err, ErrMissingEmpire)
}

func TestValidateRejects(t *testing.T) {
	auth, _, _ := newTestAuth(t)
	ctx := context.Background()
	pair, err := auth.IssueEmpireTokens(ctx, "empire-1")
	require.NoError(t, err)

	_, err = auth.ValidateEmpireToken(ctx, pair.AccessToken, "wrong-csrf")
	assert.ErrorIs(t, err, ErrCSRFTokenMismatch)

	_, err = auth.ValidateEmpireToken(ctx, "not-a-jwt", pair.CSRFToken)
	assert.Error(t, err)

	other := NewJWTTokenService(TokenConfig{SigningKey: "another-key", TokenDuration: time.Minute})
	forged, _, err := other.signAccessToken("empire-1", other.hashToken(pair.CSRFToken), time.Now())
	require.NoError(t, err)
	_, err = auth.ValidateEmpireToken(ctx, forged, pair.CSRFToken)
	assert.Error(t, err)
}

func TestValidateRejectsOtherAlgorithms(t *testing.T) {
	auth, _, _ := newTestAuth(t)
	claims := CustomClaims{
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute))},
		EmpireID:         "empire-1",
	}
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = auth.ValidateEmpireToken(context.Background(), unsigned, "")
	assert.Error(t, err)
}

func TestExpiredToken(t *testing.T) {
	service := NewJWTTokenService(TokenConfig{SigningKey: "k", TokenDuration: -time.Hour})
	token, _, err := service.signAccessToken("empire-1", service.hashToken("csrf"), time.Now())
	require.NoError(t, err)

	_, err = service.ValidateAccessToken(context.Background(), token, "csrf")
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestRefreshConsumesToken(t *testing.T) {
	auth, _, server := newTestAuth(t)
	ctx := context.Background()
	pair, err := auth.IssueEmpireTokens(ctx, "empire-1")
	require.NoError(t, err)

	next, err := auth.RefreshEmpireTokens(ctx, pair.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, pair.RefreshToken, next.RefreshToken)
	assert.False(t, server.Exists(refreshTokenPrefix+pair.RefreshToken))

	_, err = auth.RefreshEmpireTokens(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidToken)

	claims, err := auth.ValidateEmpireToken(ctx, next.AccessToken, next.CSRFToken)
	require.NoError(t, err)
	assert.Equal(t, "empire-1", claims.EmpireID)
}

func TestRevokedTokens(t *testing.T) {
	auth, _, server := newTestAuth(t)
	ctx := context.Background()
	pair, err := auth.IssueEmpireTokens(ctx, "empire-1")
	require.NoError(t, err)

	require.NoError(t, auth.RevokeEmpireTokens(ctx, "empire-1"))
	assert.True(t, server.Exists(revokedTokenPrefix+"empire-1"))

	_, err = auth.ValidateEmpireToken(ctx, pair.AccessToken, pair.CSRFToken)
	assert.ErrorIs(t, err, ErrTokenRevoked)
	_, err = auth.RefreshEmpireTokens(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, ErrTokenRevoked)
}

func TestRevocationOnlyCoversOlderTokens(t *testing.T) {
	auth, cache, _ := newTestAuth(t)
	ctx := context.Background()

	earlier, err := json.Marshal(time.Now().Add(-time.Hour).Unix())
	require.NoError(t, err)
	require.NoError(t, cache.Db.Set(ctx, revokedTokenPrefix+"empire-1", earlier, time.Hour).Err())

	pair, err := auth.IssueEmpireTokens(ctx, "empire-1")
	require.NoError(t, err)
	_, err = auth.ValidateEmpireToken(ctx, pair.AccessToken, pair.CSRFToken)
	assert.NoError(t, err)
}
