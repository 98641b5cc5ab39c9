package middleware

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"

	"galaxy/lib/authentication"
	"galaxy/lib/maintenance"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubValidator struct {
	token string
	csrf  string
}

func (v stubValidator) ValidateEmpireToken(ctx context.Context, access_token string, csrf_token string) (*authentication.Claims, error) {
	if access_token != v.token || csrf_token != v.csrf {
		return nil, errors.New("bad token")
	}
	return &authentication.Claims{EmpireID: "empire-1"}, nil
}

func protectedApp() *fiber.App {
	app := fiber.New()
	app.Use(Logger())
	app.Get("/me", Protected(stubValidator{token: "tok", csrf: "csrf"}), func(c *fiber.Ctx) error {
		empire_id, err := GetEmpireID(c)
		if err != nil {
			return err
		}
		return c.SendString(empire_id)
	})
	return app
}

func TestProtected(t *testing.T) {
	app := protectedApp()

	tests := []struct {
		name    string
		headers map[string]string
		status  int
	}{
		{"missing csrf", map[string]string{"Authorization": "Bearer tok"}, fiber.StatusUnauthorized},
		{"missing bearer", map[string]string{"X-CSRF-Token": "csrf"}, fiber.StatusUnauthorized},
		{"malformed header", map[string]string{"Authorization": "tok", "X-CSRF-Token": "csrf"}, fiber.StatusUnauthorized},
		{"wrong token", map[string]string{"Authorization": "Bearer nope", "X-CSRF-Token": "csrf"}, fiber.StatusUnauthorized},
		{"valid", map[string]string{"Authorization": "Bearer tok", "X-CSRF-Token": "csrf"}, fiber.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/me", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}

func TestGetEmpireIDWithoutProtection(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		_, err := GetEmpireID(c)
		assert.ErrorIs(t, err, ErrNoEmpire)
		return c.SendStatus(fiber.StatusNoContent)
	})
	resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
}

func TestWithKey(t *testing.T) {
	app := fiber.New()
	app.Get("/admin", WithKey(ApiKeyHeader, func() (string, error) { return "secret", nil }), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	app.Get("/broken", WithKey(ApiKeyHeader, func() (string, error) { return "", errors.New("vault down") }), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	req := httptest.NewRequest("GET", "/admin", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	req = httptest.NewRequest("GET", "/admin", nil)
	req.Header.Set(ApiKeyHeader, "secret")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	req = httptest.NewRequest("GET", "/broken", nil)
	req.Header.Set(ApiKeyHeader, "secret")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestWithKeyFromEnv(t *testing.T) {
	t.Setenv("GALAXY_TEST_KEY", "from-env")
	app := fiber.New()
	app.Get("/", WithKey("GALAXY_TEST_KEY", nil), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("GALAXY_TEST_KEY", "from-env")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestStateGating(t *testing.T) {
	state_machine := maintenance.NewStateMachine()
	app := fiber.New()
	app.Use(WithStateMachine(state_machine))
	ok := func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) }
	app.Get("/running", OnRunning(), ok)
	app.Get("/safe", OnSafe(), ok)

	status := func(path string) int {
		resp, err := app.Test(httptest.NewRequest("GET", path, nil))
		require.NoError(t, err)
		return resp.StatusCode
	}

	assert.Equal(t, fiber.StatusServiceUnavailable, status("/running"))
	assert.Equal(t, fiber.StatusServiceUnavailable, status("/safe"))

	require.NoError(t, state_machine.To(maintenance.MODE_INIT, maintenance.STATE_CONFIGURING, maintenance.SUBSTATE_CONFIGURING_SERVICES))
	require.NoError(t, state_machine.To(maintenance.MODE_INIT, maintenance.STATE_CONFIGURING, maintenance.SUBSTATE_CONFIGURING_ENGINE))
	require.NoError(t, state_machine.To(maintenance.MODE_OPERATIONAL, maintenance.STATE_RUNNING, maintenance.SUBSTATE_SAFE))
	assert.Equal(t, fiber.StatusOK, status("/running"))
	assert.Equal(t, fiber.StatusOK, status("/safe"))

	require.NoError(t, state_machine.To(maintenance.MODE_OPERATIONAL, maintenance.STATE_RUNNING, maintenance.SUBSTATE_DEGRADED))
	assert.Equal(t, fiber.StatusOK, status("/running"))
	assert.Equal(t, fiber.StatusServiceUnavailable, status("/safe"))
}

func TestGatingWithoutStateMachine(t *testing.T) {
	app := fiber.New()
	app.Get("/", OnRunning(), func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })
	resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
}
