package routes

import (
	"errors"
	"log/slog"

	"galaxy/lib/authentication"
	"galaxy/lib/balance"
	"galaxy/lib/battles"
	"galaxy/lib/combat"
	"galaxy/lib/server/middleware"
	"galaxy/lib/services"
	"galaxy/lib/store"

	"github.com/gofiber/fiber/v2"
)

var (
	ErrNotOwner       = errors.New("fleet belongs to another empire")
	ErrNotParticipant = errors.New("empire did not take part in this battle")
)

// errorStatus maps domain errors to HTTP statuses. Anything unknown is a 500.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, store.ErrFleetNotFound), errors.Is(err, store.ErrCombatNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, ErrNotOwner), errors.Is(err, ErrNotParticipant):
		return fiber.StatusForbidden
	case errors.Is(err, services.ErrFleetEngaged):
		return fiber.StatusConflict
	case errors.Is(err, combat.ErrInvalidAttackType),
		errors.Is(err, battles.ErrInvalidOrder),
		errors.Is(err, battles.ErrSameFleet),
		errors.Is(err, battles.ErrInvalidThreshold),
		errors.Is(err, balance.ErrNoTrials),
		errors.Is(err, authentication.ErrMissingEmpire):
		return fiber.StatusBadRequest
	case battles.IsRejected(err):
		return fiber.StatusUnprocessableEntity
	case errors.Is(err, authentication.ErrInvalidToken),
		errors.Is(err, authentication.ErrTokenRevoked),
		errors.Is(err, middleware.ErrNoEmpire):
		return fiber.StatusUnauthorized
	}
	return fiber.StatusInternalServerError
}

func respondError(c *fiber.Ctx, err error) error {
	status := errorStatus(err)
	if status == fiber.StatusInternalServerError {
		slog.Error("Request failed", "method", c.Method(), "path", c.Path(), "error", err)
		return c.Status(status).JSON(fiber.Map{
			"error": "internal error",
		})
	}
	return c.Status(status).JSON(fiber.Map{
		"error": err.Error(),
	})
}

func badRequest(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": message,
	})
}
