package routes

import (
	"context"
	"errors"

	"galaxy/lib/battles"
	"galaxy/lib/combat"
	"galaxy/lib/server/middleware"
	"galaxy/lib/services"

	"github.com/gofiber/fiber/v2"
)

type BattleRunner interface {
	Engage(ctx context.Context, order battles.Order) (combat.CombatRecord, error)
	Queue(ctx context.Context, order battles.Order) (string, error)
}

type CombatReader interface {
	GetCombat(ctx context.Context, id string) (combat.CombatRecord, error)
}

type CombatCache interface {
	GetCachedCombat(ctx context.Context, id string) (combat.CombatRecord, error)
}

type EngageData struct {
	AttackerFleetID string `json:"attacker_fleet_id"`
	DefenderFleetID string `json:"defender_fleet_id"`
}

// battleOrder builds the order of a request, checking that the
// authenticated empire commands the attacking fleet.
func battleOrder(data EngageData, ctx *fiber.Ctx, fleets FleetReader) (battles.Order, error) {
	attack_type, err := combat.ParseAttackType(ctx.Params("type"))
	if err != nil {
		return battles.Order{}, err
	}
	order := battles.Order{
		AttackerFleetID: data.AttackerFleetID,
		DefenderFleetID: data.DefenderFleetID,
		Type:            attack_type,
	}
	if err := order.Validate(); err != nil {
		return battles.Order{}, err
	}
	attacker, err := ownedFleet(ctx, fleets, order.AttackerFleetID)
	if err != nil {
		return battles.Order{}, err
	}
	order.Location = attacker.Location
	return order, nil
}

// EngageHandler resolves a battle synchronously and returns its record.
func EngageHandler(data EngageData, ctx *fiber.Ctx, fleets FleetReader, runner BattleRunner) error {
	order, err := battleOrder(data, ctx, fleets)
	if err != nil {
		return respondError(ctx, err)
	}
	record, err := runner.Engage(ctx.Context(), order)
	if err != nil {
		return respondError(ctx, err)
	}
	return ctx.Status(fiber.StatusCreated).JSON(record)
}

// QueueHandler hands the battle to the workers. The returned id is the id of
// the future combat record.
func QueueHandler(data EngageData, ctx *fiber.Ctx, fleets FleetReader, runner BattleRunner) error {
	order, err := battleOrder(data, ctx, fleets)
	if err != nil {
		return respondError(ctx, err)
	}
	id, err := runner.Queue(ctx.Context(), order)
	if err != nil {
		return respondError(ctx, err)
	}
	return ctx.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"id":     id,
		"status": combat.StatusPending,
	})
}

// BattleHandler returns a combat record to one of its two empires, from the
// cache when it is still there.
func BattleHandler(ctx *fiber.Ctx, cache CombatCache, combats CombatReader) error {
	empire_id, err := middleware.GetEmpireID(ctx)
	if err != nil {
		return respondError(ctx, err)
	}
	id := ctx.Params("id")

	record, err := cache.GetCachedCombat(ctx.Context(), id)
	if err != nil {
		if !errors.Is(err, services.ErrNotCached) {
			return respondError(ctx, err)
		}
		record, err = combats.GetCombat(ctx.Context(), id)
		if err != nil {
			return respondError(ctx, err)
		}
	}
	if record.AttackerID != empire_id && record.DefenderID != empire_id {
		return respondError(ctx, ErrNotParticipant)
	}
	return ctx.JSON(record)
}
