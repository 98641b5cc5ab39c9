package routes

import (
	"context"

	"galaxy/lib/combat"
	"galaxy/lib/server/middleware"
	"galaxy/lib/services"
	"galaxy/lib/store"

	"github.com/gofiber/fiber/v2"
)

type FleetReader interface {
	GetFleet(ctx context.Context, id string) (store.Fleet, error)
	ListCombats(ctx context.Context, fleet_id string, limit int) ([]combat.CombatRecord, error)
}

type Retreater interface {
	Retreat(ctx context.Context, fleet_id string, threshold float64) (services.RetreatOrder, error)
}

type RetreatNotifier interface {
	NotifyRetreatOrder(ctx context.Context, empire_id string, order services.RetreatOrder) error
}

type ShipEntry struct {
	Type string `json:"type"`
	combat.ShipStats
}

// ShipsHandler lists the catalog by ascending cost.
func ShipsHandler(ctx *fiber.Ctx, catalog combat.Catalog) error {
	ships := make([]ShipEntry, 0, catalog.Len())
	for _, ship_type := range catalog.Types() {
		stats, err := catalog.StatsFor(ship_type)
		if err != nil {
			return respondError(ctx, err)
		}
		ships = append(ships, ShipEntry{Type: ship_type, ShipStats: stats})
	}
	return ctx.JSON(ships)
}

func AssessHandler(data combat.FleetSnapshot, ctx *fiber.Ctx, engine *combat.Engine) error {
	assessment, err := engine.Assess(data)
	if err != nil {
		return respondError(ctx, err)
	}
	return ctx.JSON(assessment)
}

// ownedFleet loads fleet_id and checks that the authenticated empire owns it.
func ownedFleet(ctx *fiber.Ctx, fleets FleetReader, fleet_id string) (store.Fleet, error) {
	empire_id, err := middleware.GetEmpireID(ctx)
	if err != nil {
		return store.Fleet{}, err
	}
	fleet, err := fleets.GetFleet(ctx.Context(), fleet_id)
	if err != nil {
		return store.Fleet{}, err
	}
	if fleet.EmpireID != empire_id {
		return store.Fleet{}, ErrNotOwner
	}
	return fleet, nil
}

type FleetResponse struct {
	store.Fleet
	Power combat.PowerAssessment `json:"power"`
}

func FleetHandler(ctx *fiber.Ctx, fleets FleetReader, engine *combat.Engine) error {
	fleet, err := ownedFleet(ctx, fleets, ctx.Params("id"))
	if err != nil {
		return respondError(ctx, err)
	}
	power, err := engine.Assess(fleet.Snapshot())
	if err != nil {
		return respondError(ctx, err)
	}
	return ctx.JSON(FleetResponse{Fleet: fleet, Power: power})
}

func FleetCombatsHandler(ctx *fiber.Ctx, fleets FleetReader) error {
	fleet, err := ownedFleet(ctx, fleets, ctx.Params("id"))
	if err != nil {
		return respondError(ctx, err)
	}
	records, err := fleets.ListCombats(ctx.Context(), fleet.ID, ctx.QueryInt("limit", 20))
	if err != nil {
		return respondError(ctx, err)
	}
	return ctx.JSON(records)
}

type RetreatData struct {
	Threshold float64 `json:"threshold"`
}

// RetreatHandler registers a standing retreat order for an owned fleet.
func RetreatHandler(data RetreatData, ctx *fiber.Ctx, fleets FleetReader, retreater Retreater, notify RetreatNotifier) error {
	fleet, err := ownedFleet(ctx, fleets, ctx.Params("id"))
	if err != nil {
		return respondError(ctx, err)
	}
	order, err := retreater.Retreat(ctx.Context(), fleet.ID, data.Threshold)
	if err != nil {
		return respondError(ctx, err)
	}
	if notify != nil {
		notify.NotifyRetreatOrder(ctx.Context(), fleet.EmpireID, order)
	}
	return ctx.Status(fiber.StatusAccepted).JSON(order)
}
