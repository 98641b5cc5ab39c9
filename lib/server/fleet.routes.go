package server

import (
	"galaxy/lib/combat"
	"galaxy/lib/server/middleware"
	"galaxy/lib/server/routes"

	"github.com/gofiber/fiber/v2"
)

func (server *GalaxyServer) RegisterFleetRoutes() {
	fleet_group := server.App.Group("/fleets")

	fleet_group.Post("/assess", middleware.OnRunning(), func(c *fiber.Ctx) error {
		return parseBody(c, func(data combat.FleetSnapshot) error {
			return routes.AssessHandler(data, c, server.Engine)
		})
	})

	fleet_group.Get("/:id", append(server.protected(), func(c *fiber.Ctx) error {
		return routes.FleetHandler(c, server.Store, server.Engine)
	})...)

	fleet_group.Get("/:id/combats", append(server.protected(), func(c *fiber.Ctx) error {
		return routes.FleetCombatsHandler(c, server.Store)
	})...)

	fleet_group.Post("/:id/retreat", append(server.protected(), middleware.OnSafe(), func(c *fiber.Ctx) error {
		return parseBody(c, func(data routes.RetreatData) error {
			return routes.RetreatHandler(data, c, server.Store, server.Battles, server.Notifications)
		})
	})...)
}
