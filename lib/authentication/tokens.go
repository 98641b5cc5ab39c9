package authentication

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	math_rand "math/rand"
	"time"

	"galaxy/lib/services"

	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
)

type TokenPair struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	CSRFToken    string    `json:"csrf_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

type Claims struct {
	EmpireID  string `json:"empire_id"`
	IssuedAt  int64  `json:"iat"`
	ExpiresAt int64  `json:"exp"`
}

type TokenService interface {
	GenerateTokenPair(ctx context.Context, empire_id string, cache *services.Cache) (*TokenPair, error)
	ValidateAccessToken(ctx context.Context, access_token string, csrf_token string) (*Claims, error)
	ValidateRefreshToken(ctx context.Context, refresh_token string, cache *services.Cache) (*Claims, error)
	RefreshTokens(ctx context.Context, empire_id string, refresh_token string, cache *services.Cache) (*TokenPair, error)
	RevokeTokens(ctx context.Context, empire_id string, cache *services.Cache) error
}

const (
	refreshTokenPrefix = "refresh_token:"
	revokedTokenPrefix = "revoked_token:"
)

var (
	ErrTokenRevoked      = errors.New("token has been revoked")
	ErrInvalidToken      = errors.New("invalid token")
	ErrCSRFTokenMismatch = errors.New("csrf token mismatch")
	ErrMissingEmpire     = errors.New("empire id is required")
)

type CustomClaims struct {
	jwt.RegisteredClaims
	EmpireID string `json:"empire_id"`
	CSRFHash string `json:"csrf_hash"`
}

type refreshRecord struct {
	EmpireID  string `json:"empire_id"`
	CSRFHash  string `json:"csrf_hash"`
	CreatedAt int64  `json:"created_at"`
}

type JWTTokenService struct {
	signingKey      []byte
	tokenDuration   time.Duration
	refreshDuration time.Duration
}

type TokenConfig struct {
	SigningKey      string
	TokenDuration   time.Duration
	RefreshDuration time.Duration
}

func NewJWTTokenService(config TokenConfig) *JWTTokenService {
	return &JWTTokenService{
		signingKey:      []byte(config.SigningKey),
		tokenDuration:   config.TokenDuration,
		refreshDuration: config.RefreshDuration,
	}
}

// GenerateTokenPair signs an access token bound to a fresh CSRF token and
// stores the matching refresh token in the cache.
func (s *JWTTokenService) GenerateTokenPair(ctx context.Context, empire_id string, cache *services.Cache) (*TokenPair, error) {
	if empire_id == "" {
		return nil, ErrMissingEmpire
	}
	// Generate CSRF token
	csrf_token, err := s.generateSecureToken(32)
	if err != nil {
		return nil, fmt.Errorf("failed to generate csrf token: %w", err)
	}
	// Calculate CSRF hash
	csrf_hash := s.hashToken(csrf_token)

	// Create access token
	now := time.Now()
	access_token, expires_at, err := s.signAccessToken(empire_id, csrf_hash, now)
	if err != nil {
		return nil, err
	}

	// Generate refresh token
	refresh_token, err := s.generateSecureToken(64)
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}
	record_json, err := json.Marshal(refreshRecord{
		EmpireID:  empire_id,
		CSRFHash:  csrf_hash,
		CreatedAt: now.Unix(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal refresh claims: %w", err)
	}
	// Store refresh token in Redis
	err = cache.Db.Set(ctx, refreshTokenPrefix+refresh_token, record_json, s.refreshDuration).Err()
	if err != nil {
		return nil, fmt.Errorf("failed to store refresh token: %w", err)
	}

	return &TokenPair{
		AccessToken:  access_token,
		RefreshToken: refresh_token,
		CSRFToken:    csrf_token,
		ExpiresAt:    expires_at,
	}, nil
}

func (s *JWTTokenService) signAccessToken(empire_id string, csrf_hash string, now time.Time) (string, time.Time, error) {
	// Spread expirations so sessions issued together do not expire together
	jitter := time.Duration(math_rand.Int63n(int64(30 * time.Second)))
	expires_at := now.Add(s.tokenDuration).Add(jitter)

	claims := CustomClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   empire_id,
			ExpiresAt: jwt.NewNumericDate(expires_at),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
		EmpireID: empire_id,
		CSRFHash: csrf_hash,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.signingKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expires_at, nil
}

// ValidateAccessToken validates the access token and CSRF token
func (s *JWTTokenService) ValidateAccessToken(ctx context.Context, access_token string, csrf_token string) (*Claims, error) {
	// Parse and validate JWT
	token, err := jwt.ParseWithClaims(access_token, &CustomClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.signingKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*CustomClaims)
	if !ok || !token.Valid || claims.EmpireID == "" {
		return nil, ErrInvalidToken
	}
	// Verify CSRF token
	if s.hashToken(csrf_token) != claims.CSRFHash {
		return nil, ErrCSRFTokenMismatch
	}

	// Convert to generic Claims struct
	result := &Claims{EmpireID: claims.EmpireID}
	if claims.ExpiresAt != nil {
		result.ExpiresAt = claims.ExpiresAt.Unix()
	}
	if claims.IssuedAt != nil {
		result.IssuedAt = claims.IssuedAt.Unix()
	}
	return result, nil
}

// ValidateRefreshToken validates the refresh token
func (s *JWTTokenService) ValidateRefreshToken(ctx context.Context, refresh_token string, cache *services.Cache) (*Claims, error) {
	// Get refresh token data from Redis
	data, err := cache.Db.Get(ctx, refreshTokenPrefix+refresh_token).Result()
	if err == redis.Nil {
		return nil, ErrInvalidToken
	} else if err != nil {
		return nil, fmt.Errorf("failed to get refresh token: %w", err)
	}

	var record refreshRecord
	if err := json.Unmarshal([]byte(data), &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal claims: %w", err)
	}
	if record.EmpireID == "" {
		return nil, ErrInvalidToken
	}
	return &Claims{
		EmpireID:  record.EmpireID,
		IssuedAt:  record.CreatedAt,
		ExpiresAt: record.CreatedAt + int64(s.refreshDuration.Seconds()),
	}, nil
}

// RefreshTokens generates new token pair using refresh token
func (s *JWTTokenService) RefreshTokens(ctx context.Context, empire_id string, refresh_token string, cache *services.Cache) (*TokenPair, error) {
	// Delete old refresh token
	if err := cache.Db.Del(ctx, refreshTokenPrefix+refresh_token).Err(); err != nil {
		return nil, fmt.Errorf("failed to delete old refresh token: %w", err)
	}
	// Generate new token pair
	return s.GenerateTokenPair(ctx, empire_id, cache)
}

// RevokeTokens invalidates every token an empire was issued up to now
func (s *JWTTokenService) RevokeTokens(ctx context.Context, empire_id string, cache *services.Cache) error {
	// Store the revocation timestamp as json for consistency with other stored values
	timestamp_json, err := json.Marshal(time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to marshal timestamp: %w", err)
	}
	err = cache.Db.Set(ctx, revokedTokenPrefix+empire_id, timestamp_json, s.refreshDuration).Err()
	if err != nil {
		return fmt.Errorf("failed to revoke tokens: %w", err)
	}
	return nil
}

// Helper functions

func (s *JWTTokenService) generateSecureToken(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(bytes), nil
}

func (s *JWTTokenService) hashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}
