package server

import (
	"galaxy/lib/server/middleware"
	"galaxy/lib/server/routes"

	"github.com/gofiber/fiber/v2"
)

func (server *GalaxyServer) RegisterRoutes() {
	server.App.Get("/health", server.healthHandler)
	server.App.Get("/ships", middleware.OnRunning(), func(c *fiber.Ctx) error {
		return routes.ShipsHandler(c, server.Engine.Catalog())
	})

	server.RegisterAuthRoutes()
	server.RegisterFleetRoutes()
	server.RegisterBattleRoutes()
	server.RegisterBalanceRoutes()
	server.RegisterNotificationRoutes()
}

func (server *GalaxyServer) healthHandler(c *fiber.Ctx) error {
	mode, state, substate := server.StateMachine.Names()
	store_health := server.Store != nil && server.Store.Health(c.Context())
	return c.JSON(fiber.Map{
		"mode":     mode,
		"state":    state,
		"substate": substate,
		"store":    store_health,
		"cache":    server.Cache.Health(),
	})
}

// protected returns the middleware chain of empire routes.
func (server *GalaxyServer) protected() []fiber.Handler {
	return []fiber.Handler{
		middleware.OnRunning(),
		func(c *fiber.Ctx) error {
			return middleware.Protected(server.AuthService)(c)
		},
	}
}

func (server *GalaxyServer) adminKey() fiber.Handler {
	return middleware.WithKey(middleware.ApiKeyHeader, func() (string, error) {
		return server.AdminKey()
	})
}

func parseBody[T any](c *fiber.Ctx, handler func(data T) error) error {
	var data T
	if err := c.BodyParser(&data); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}
	return handler(data)
}
