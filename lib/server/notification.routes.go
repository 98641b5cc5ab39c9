package server

import (
	"galaxy/lib/server/middleware"

	"github.com/gofiber/fiber/v2"
)

func (server *GalaxyServer) RegisterNotificationRoutes() {
	notification_group := server.App.Group("/notify")
	for _, handler := range server.protected() {
		notification_group.Use(handler)
	}

	notification_group.Get("/session", func(c *fiber.Ctx) error {
		return server.Notifications.SSENotificationHandler(c)
	})

	notification_group.Get("/pending", func(c *fiber.Ctx) error {
		empire_id, err := middleware.GetEmpireID(c)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "unknown empire",
			})
		}
		pending, err := server.Notifications.Pending(c.Context(), empire_id)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to read notifications",
			})
		}
		return c.JSON(pending)
	})

	notification_group.Get("/refresh", func(c *fiber.Ctx) error {
		empire_id, err := middleware.GetEmpireID(c)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "unknown empire",
			})
		}
		if err := server.Notifications.RefreshConnectionTTL(c.Context(), empire_id); err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to refresh connection",
			})
		}
		return c.SendStatus(fiber.StatusOK)
	})

	notification_group.Post("/close", func(c *fiber.Ctx) error {
		empire_id, err := middleware.GetEmpireID(c)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "unknown empire",
			})
		}
		if err := server.Notifications.CloseConnection(c.Context(), empire_id); err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to close connection",
			})
		}
		return c.SendStatus(fiber.StatusOK)
	})
}
