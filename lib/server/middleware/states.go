package middleware

import (
	"galaxy/lib/maintenance"

	"github.com/gofiber/fiber/v2"
)

const StateMachineKey = "StateMachine"

// WithStateMachine exposes the state machine to the gating handlers below.
func WithStateMachine(state_machine *maintenance.StateMachine) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Locals(StateMachineKey, state_machine)
		return c.Next()
	}
}

func stateMachine(c *fiber.Ctx) (*maintenance.StateMachine, bool) {
	state_machine, ok := c.Locals(StateMachineKey).(*maintenance.StateMachine)
	return state_machine, ok && state_machine != nil
}

// OnRunning lets requests through once every service is configured.
func OnRunning() fiber.Handler {
	return func(c *fiber.Ctx) error {
		state_machine, ok := stateMachine(c)
		if !ok {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"error": "Server state unknown",
			})
		}
		if running, _ := state_machine.Running(); !running {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"error": "Server is not running",
			})
		}
		return c.Next()
	}
}

// OnSafe additionally refuses requests while a dependency is degraded.
func OnSafe() fiber.Handler {
	return func(c *fiber.Ctx) error {
		state_machine, ok := stateMachine(c)
		if !ok {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"error": "Server state unknown",
			})
		}
		if _, safe := state_machine.Running(); !safe {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"error": "Server is degraded",
			})
		}
		return c.Next()
	}
}
