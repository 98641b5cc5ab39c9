package middleware

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"galaxy/lib/authentication"

	"github.com/gofiber/fiber/v2"
)

var (
	ErrNoAuthHeader      = errors.New("no authorization header")
	ErrInvalidAuthHeader = errors.New("invalid authorization header format")
	ErrInvalidCSRF       = errors.New("invalid or missing CSRF token")
	ErrNoEmpire          = errors.New("empire ID not found in context")
)

const empireIDKey = "empireID"

type TokenValidator interface {
	ValidateEmpireToken(ctx context.Context, access_token string, csrf_token string) (*authentication.Claims, error)
}

// extractBearerToken gets the token from Authorization header
func extractBearerToken(c *fiber.Ctx) (string, error) {
	auth := c.Get("Authorization")
	if auth == "" {
		return "", ErrNoAuthHeader
	}

	parts := strings.Split(auth, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", ErrInvalidAuthHeader
	}

	return parts[1], nil
}

// Protected rejects requests without a valid empire access token and CSRF
// token, and stores the empire ID for the handlers.
func Protected(auth TokenValidator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		csrf_token := c.Get("X-CSRF-Token")
		if csrf_token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": ErrInvalidCSRF.Error(),
			})
		}
		access_token, err := extractBearerToken(c)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": err.Error(),
			})
		}

		claims, err := auth.ValidateEmpireToken(c.Context(), access_token, csrf_token)
		if err != nil {
			slog.Debug("Rejected access token", "error", err)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid or expired token",
			})
		}

		c.Locals(empireIDKey, claims.EmpireID)
		return c.Next()
	}
}

// GetEmpireID helper to get the authenticated empire from context
func GetEmpireID(c *fiber.Ctx) (string, error) {
	empire_id, ok := c.Locals(empireIDKey).(string)
	if !ok || empire_id == "" {
		return "", ErrNoEmpire
	}
	return empire_id, nil
}
