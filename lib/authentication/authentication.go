package authentication

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"galaxy/lib/services"
	"galaxy/lib/vault"

	"github.com/redis/go-redis/v9"
)

type AuthConfig struct {
	TokenConfig TokenConfig
}

// BuildAuthConfig reads the signing key from vault.
func BuildAuthConfig(vault *vault.VaultManager) (*AuthConfig, error) {
	jwt_key, err := vault.GetJwtKey()
	if err != nil {
		return nil, fmt.Errorf("unavailable jwt_key: %w", err)
	}
	return &AuthConfig{
		TokenConfig: TokenConfig{
			SigningKey:      jwt_key,
			TokenDuration:   30 * time.Minute,
			RefreshDuration: 7 * 24 * time.Hour,
		},
	}, nil
}

// AuthService issues and checks empire tokens. Empires are created by the
// game servers, which request tokens on behalf of their players.
type AuthService struct {
	tokenService TokenService
	cache        *services.Cache
}

func NewAuthService(config *AuthConfig, cache *services.Cache) *AuthService {
	return &AuthService{
		tokenService: NewJWTTokenService(config.TokenConfig),
		cache:        cache,
	}
}

func (a *AuthService) IssueEmpireTokens(ctx context.Context, empire_id string) (*TokenPair, error) {
	return a.tokenService.GenerateTokenPair(ctx, empire_id, a.cache)
}

// ValidateEmpireToken validates an access token and returns its claims
func (a *AuthService) ValidateEmpireToken(ctx context.Context, access_token string, csrf_token string) (*Claims, error) {
	claims, err := a.tokenService.ValidateAccessToken(ctx, access_token, csrf_token)
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	if err := a.checkRevocation(ctx, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

// RefreshEmpireTokens trades a refresh token for a new pair. The old
// refresh token is consumed.
func (a *AuthService) RefreshEmpireTokens(ctx context.Context, refresh_token string) (*TokenPair, error) {
	claims, err := a.tokenService.ValidateRefreshToken(ctx, refresh_token, a.cache)
	if err != nil {
		return nil, fmt.Errorf("invalid refresh token: %w", err)
	}
	if err := a.checkRevocation(ctx, claims); err != nil {
		return nil, err
	}
	return a.tokenService.RefreshTokens(ctx, claims.EmpireID, refresh_token, a.cache)
}

func (a *AuthService) RevokeEmpireTokens(ctx context.Context, empire_id string) error {
	if err := a.tokenService.RevokeTokens(ctx, empire_id, a.cache); err != nil {
		return fmt.Errorf("failed to revoke tokens in token service: %w", err)
	}
	return nil
}

// Tokens issued in the same second as a revocation are revoked too.
func (a *AuthService) checkRevocation(ctx context.Context, claims *Claims) error {
	revocation_time, err := a.cache.Db.Get(ctx, revokedTokenPrefix+claims.EmpireID).Result()
	if err == redis.Nil {
		return nil
	} else if err != nil {
		return fmt.Errorf("failed to check revocation: %w", err)
	}
	var timestamp int64
	if err := json.Unmarshal([]byte(revocation_time), &timestamp); err != nil {
		return nil
	}
	if claims.IssuedAt <= timestamp {
		return ErrTokenRevoked
	}
	return nil
}
