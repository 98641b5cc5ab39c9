package server

import (
	"galaxy/lib/server/middleware"
	"galaxy/lib/server/routes"

	"github.com/gofiber/fiber/v2"
)

func (server *GalaxyServer) RegisterBalanceRoutes() {
	balance_group := server.App.Group("/balance")
	balance_group.Use(middleware.OnRunning(), server.adminKey())

	balance_group.Post("/simulate", func(c *fiber.Ctx) error {
		return parseBody(c, func(data routes.SimulateData) error {
			return routes.SimulateHandler(data, c, server.Engine)
		})
	})
}
