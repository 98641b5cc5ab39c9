package battles

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"galaxy/lib/combat"
	"galaxy/lib/services"
	"galaxy/lib/store"

	"github.com/google/uuid"
)

type FleetRepository interface {
	GetFleet(ctx context.Context, id string) (store.Fleet, error)
	ApplyBattle(ctx context.Context, record combat.CombatRecord) error
}

type BattleCache interface {
	GetRetreatOrder(ctx context.Context, fleet_id string) (services.RetreatOrder, error)
	SetRetreatOrder(ctx context.Context, order services.RetreatOrder) error
	DeleteRetreatOrder(ctx context.Context, fleet_id string) error
	CacheCombat(ctx context.Context, record combat.CombatRecord) error
	LockFleets(ctx context.Context, battle_id string, fleet_ids ...string) error
	UnlockFleets(ctx context.Context, battle_id string, fleet_ids ...string) error
	PublishBattleOrder(ctx context.Context, order_id string, payload []byte) error
}

type Notifier interface {
	NotifyBattle(ctx context.Context, record combat.CombatRecord) error
}

// Engager resolves battle orders. The worker pool only needs this.
type Engager interface {
	Engage(ctx context.Context, order Order) (combat.CombatRecord, error)
}

// Service runs battles between stored fleets: it loads both fleets,
// resolves the battle and persists the outcome atomically.
type Service struct {
	engine   *combat.Engine
	fleets   FleetRepository
	cache    BattleCache
	notifier Notifier
}

func NewService(engine *combat.Engine, fleets FleetRepository, cache BattleCache, notifier Notifier) *Service {
	return &Service{
		engine:   engine,
		fleets:   fleets,
		cache:    cache,
		notifier: notifier,
	}
}

func (s *Service) Engine() *combat.Engine {
	return s.engine
}

func (s *Service) Engage(ctx context.Context, order Order) (combat.CombatRecord, error) {
	if err := order.Validate(); err != nil {
		return combat.CombatRecord{}, err
	}
	if order.ID == "" {
		order.ID = uuid.NewString()
	}

	if err := s.cache.LockFleets(ctx, order.ID, order.AttackerFleetID, order.DefenderFleetID); err != nil {
		return combat.CombatRecord{}, err
	}
	defer func() {
		if err := s.cache.UnlockFleets(context.Background(), order.ID, order.AttackerFleetID, order.DefenderFleetID); err != nil {
			slog.Error("failed to unlock fleets", "error", err, "battle", order.ID)
		}
	}()

	attacker, err := s.fleets.GetFleet(ctx, order.AttackerFleetID)
	if err != nil {
		return combat.CombatRecord{}, fmt.Errorf("attacker: %w", err)
	}
	defender, err := s.fleets.GetFleet(ctx, order.DefenderFleetID)
	if err != nil {
		return combat.CombatRecord{}, fmt.Errorf("defender: %w", err)
	}

	if attacker.EmpireID == defender.EmpireID {
		return combat.CombatRecord{}, ErrSameEmpire
	}
	if attacker.Location != defender.Location || (order.Location != "" && order.Location != attacker.Location) {
		return combat.CombatRecord{}, fmt.Errorf("%w: %q and %q", ErrLocationMismatch, attacker.Location, defender.Location)
	}

	retreat, err := s.retreatPolicy(ctx, order)
	if err != nil {
		return combat.CombatRecord{}, err
	}

	record, err := s.engine.Resolve(attacker.Snapshot(), defender.Snapshot(), order.Type,
		combat.WithRecordID(order.ID),
		combat.WithLocation(attacker.Location),
		combat.WithRetreat(retreat),
	)
	if err != nil {
		return combat.CombatRecord{}, fmt.Errorf("failed to resolve battle: %w", err)
	}

	if err := s.fleets.ApplyBattle(ctx, record); err != nil {
		return combat.CombatRecord{}, err
	}

	if record.Status == combat.StatusRetreated {
		retreated_fleet := order.AttackerFleetID
		if record.Result.Retreated == combat.Defender {
			retreated_fleet = order.DefenderFleetID
		}
		if err := s.cache.DeleteRetreatOrder(ctx, retreated_fleet); err != nil {
			slog.Error("failed to clear retreat order", "error", err, "fleet", retreated_fleet)
		}
	}
	if err := s.cache.CacheCombat(ctx, record); err != nil {
		slog.Error("failed to cache combat record", "error", err, "battle", record.ID)
	}
	if s.notifier != nil {
		if err := s.notifier.NotifyBattle(ctx, record); err != nil {
			slog.Error("failed to notify empires", "error", err, "battle", record.ID)
		}
	}

	slog.Info("Battle resolved",
		"battle", record.ID,
		"type", record.AttackType,
		"status", record.Status,
		"decision", record.Decision,
		"rounds", len(record.Rounds),
		"winner", record.Result.WinnerID,
	)
	return record, nil
}

// retreatPolicy turns the standing retreat orders of both fleets into a
// policy. The attacker's order is checked first.
func (s *Service) retreatPolicy(ctx context.Context, order Order) (combat.RetreatPolicy, error) {
	var policies []combat.RetreatPolicy
	for _, side := range []struct {
		fleet_id string
		side     combat.Side
	}{
		{order.AttackerFleetID, combat.Attacker},
		{order.DefenderFleetID, combat.Defender},
	} {
		retreat_order, err := s.cache.GetRetreatOrder(ctx, side.fleet_id)
		if errors.Is(err, services.ErrNoRetreatOrder) {
			continue
		}
		if err != nil {
			return nil, err
		}
		policies = append(policies, combat.RetreatBelow(side.side, retreat_order.Threshold))
	}
	if len(policies) == 0 {
		return nil, nil
	}
	return combat.AnyRetreat(policies...), nil
}

// Retreat registers a standing order for fleet_id to withdraw from its
// next battle once its health drops below threshold.
func (s *Service) Retreat(ctx context.Context, fleet_id string, threshold float64) (services.RetreatOrder, error) {
	if threshold <= 0 || threshold > 1 {
		return services.RetreatOrder{}, ErrInvalidThreshold
	}
	if _, err := s.fleets.GetFleet(ctx, fleet_id); err != nil {
		return services.RetreatOrder{}, err
	}
	order := services.RetreatOrder{
		FleetID:   fleet_id,
		Threshold: threshold,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.cache.SetRetreatOrder(ctx, order); err != nil {
		return services.RetreatOrder{}, err
	}
	slog.Info("Retreat order registered", "fleet", fleet_id, "threshold", threshold)
	return order, nil
}

// Queue publishes order for the battle workers and returns its id, which
// is also the id of the resulting combat record.
func (s *Service) Queue(ctx context.Context, order Order) (string, error) {
	if err := order.Validate(); err != nil {
		return "", err
	}
	if order.ID == "" {
		order.ID = uuid.NewString()
	}
	payload, err := json.Marshal(order)
	if err != nil {
		return "", fmt.Errorf("failed to marshal battle order: %w", err)
	}
	if err := s.cache.PublishBattleOrder(ctx, order.ID, payload); err != nil {
		return "", err
	}
	return order.ID, nil
}
