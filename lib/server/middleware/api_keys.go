package middleware

import (
	"crypto/subtle"
	"errors"
	"os"

	"github.com/gofiber/fiber/v2"
)

const ApiKeyHeader = "X-Api-Key"

// WithKey compares the header named key against real_key, which defaults to
// the environment variable of the same name.
func WithKey(key string, real_key func() (string, error)) fiber.Handler {
	if real_key == nil {
		real_key = func() (string, error) {
			result := os.Getenv(key)
			if result == "" {
				return "", errors.New("key not found")
			}
			return result, nil
		}
	}
	return func(c *fiber.Ctx) error {
		api_key := c.Get(key)
		correct_key, err := real_key()
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "cannot check API key",
			})
		}
		if api_key == "" || subtle.ConstantTimeCompare([]byte(api_key), []byte(correct_key)) != 1 {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "invalid API key",
			})
		}
		return c.Next()
	}
}
