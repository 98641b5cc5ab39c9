package server

import (
	"galaxy/lib/server/middleware"
	"galaxy/lib/server/routes"

	"github.com/gofiber/fiber/v2"
)

func (server *GalaxyServer) RegisterBattleRoutes() {
	battle_group := server.App.Group("/battles")

	battle_group.Get("/:id", append(server.protected(), func(c *fiber.Ctx) error {
		return routes.BattleHandler(c, &server.Cache, server.Store)
	})...)

	// New battles are refused while a dependency is degraded.
	battle_group.Post("/:type", append(server.protected(), middleware.OnSafe(), func(c *fiber.Ctx) error {
		return parseBody(c, func(data routes.EngageData) error {
			return routes.EngageHandler(data, c, server.Store, server.Battles)
		})
	})...)

	battle_group.Post("/:type/queue", append(server.protected(), middleware.OnSafe(), func(c *fiber.Ctx) error {
		return parseBody(c, func(data routes.EngageData) error {
			return routes.QueueHandler(data, c, server.Store, server.Battles)
		})
	})...)
}
