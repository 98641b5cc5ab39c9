package server

import (
	"galaxy/lib/server/routes"

	"github.com/gofiber/fiber/v2"
)

func (server *GalaxyServer) RegisterAuthRoutes() {
	auth_group := server.App.Group("/auth")

	auth_group.Post("/token", server.adminKey(), func(c *fiber.Ctx) error {
		return parseBody(c, func(data routes.IssueTokenData) error {
			return routes.IssueTokenHandler(data, c, server.AuthService)
		})
	})
	auth_group.Post("/refresh", func(c *fiber.Ctx) error {
		return parseBody(c, func(data routes.RefreshTokenData) error {
			return routes.RefreshTokenHandler(data, c, server.AuthService)
		})
	})
	auth_group.Post("/revoke", append(server.protected(), func(c *fiber.Ctx) error {
		return routes.RevokeTokenHandler(c, server.AuthService)
	})...)
}
