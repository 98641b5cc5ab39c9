package routes

import (
	"galaxy/lib/balance"
	"galaxy/lib/combat"

	"github.com/gofiber/fiber/v2"
)

const MaxSimulationTrials = 10000

type SimulateData struct {
	Attacker combat.FleetSnapshot `json:"attacker"`
	Defender combat.FleetSnapshot `json:"defender"`
	Type     string               `json:"type"`
	Trials   int                  `json:"trials"`
	Seed     int64                `json:"seed"`
	RoundCap int                  `json:"round_cap"`
}

type SimulateResponse struct {
	balance.Tally
	WinRate float64 `json:"win_rate"`
}

// SimulateHandler runs a posted matchup through the balance harness.
func SimulateHandler(data SimulateData, ctx *fiber.Ctx, engine *combat.Engine) error {
	attack_type, err := combat.ParseAttackType(data.Type)
	if err != nil {
		return respondError(ctx, err)
	}
	if data.Trials > MaxSimulationTrials {
		return badRequest(ctx, "too many trials")
	}

	harness := balance.NewHarness(engine, data.Trials)
	harness.BaseSeed = data.Seed
	harness.RoundCap = data.RoundCap
	tally, err := harness.Run(ctx.Context(), balance.Matchup{
		Attacker: data.Attacker,
		Defender: data.Defender,
		Type:     attack_type,
	})
	if err != nil {
		return respondError(ctx, err)
	}
	return ctx.JSON(SimulateResponse{Tally: tally, WinRate: tally.WinRate()})
}
