package notifications

import (
	"context"
	"errors"
	"fmt"

	"galaxy/lib/combat"
	"galaxy/lib/services"

	"github.com/gofiber/fiber/v2"
)

const (
	OutcomeVictory = "victory"
	OutcomeDefeat  = "defeat"
	OutcomeRetreat = "retreat"
)

// NotifyBattle sends a battle report to both empires of the record.
func (s *NotificationService) NotifyBattle(ctx context.Context, record combat.CombatRecord) error {
	var errs []error
	for _, side := range []combat.Side{combat.Attacker, combat.Defender} {
		report := BattleReport(record, side)
		empire_id := record.AttackerID
		if side == combat.Defender {
			empire_id = record.DefenderID
		}
		metadata := fiber.Map{"combat_id": record.ID}
		if err := s.Send(ctx, TypeBattleReport, PriorityHigh, empire_id, report, metadata); err != nil {
			errs = append(errs, fmt.Errorf("notify %s: %w", side, err))
		}
	}
	return errors.Join(errs...)
}

// NotifyRetreatOrder confirms a standing retreat order to its empire.
func (s *NotificationService) NotifyRetreatOrder(ctx context.Context, empire_id string, order services.RetreatOrder) error {
	return s.Send(ctx, TypeRetreatOrder, PriorityMedium, empire_id, fiber.Map{
		"fleet_id":  order.FleetID,
		"threshold": order.Threshold,
	}, nil)
}

// BattleReport is the content of a battle_report notification, written from
// the point of view of side.
func BattleReport(record combat.CombatRecord, side combat.Side) fiber.Map {
	opponent := side.Opponent()
	initial, final := record.Result.InitialAttackerFleet, record.Result.FinalAttackerFleet
	enemy_initial, enemy_final := record.Result.InitialDefenderFleet, record.Result.FinalDefenderFleet
	opponent_id := record.DefenderID
	if side == combat.Defender {
		initial, final = enemy_initial, enemy_final
		enemy_initial, enemy_final = record.Result.InitialAttackerFleet, record.Result.FinalAttackerFleet
		opponent_id = record.AttackerID
	}

	outcome := OutcomeDefeat
	switch {
	case record.Result.Retreated == side:
		outcome = OutcomeRetreat
	case record.Result.Winner == side:
		outcome = OutcomeVictory
	}

	return fiber.Map{
		"combat_id":    record.ID,
		"role":         string(side),
		"opponent":     string(opponent),
		"opponent_id":  opponent_id,
		"outcome":      outcome,
		"type":         string(record.AttackType),
		"location":     record.Location,
		"decision":     string(record.Decision),
		"rounds":       len(record.Rounds),
		"losses":       shipLosses(initial, final),
		"enemy_losses": shipLosses(enemy_initial, enemy_final),
		"experience":   final.Experience,
		"morale":       final.Morale,
		"survivors":    final.Composition,
	}
}

func shipLosses(initial, final combat.FleetSnapshot) map[string]int {
	losses := make(map[string]int)
	for ship_type, count := range initial.Composition {
		if lost := count - final.Composition[ship_type]; lost > 0 {
			losses[ship_type] = lost
		}
	}
	return losses
}
