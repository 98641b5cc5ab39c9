package balance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"

	"galaxy/lib/combat"

	"golang.org/x/sync/errgroup"
)

var ErrNoTrials = errors.New("no trials requested")

// Matchup is one pairing of synthetic fleets.
type Matchup struct {
	Attacker combat.FleetSnapshot `json:"attacker"`
	Defender combat.FleetSnapshot `json:"defender"`
	Type     combat.AttackType    `json:"type"`
}

// Tally aggregates the outcome of every trial of a matchup.
type Tally struct {
	Trials       int     `json:"trials"`
	AttackerWins int     `json:"attacker_wins"`
	DefenderWins int     `json:"defender_wins"`
	Retreats     int     `json:"retreats"`
	TotalRounds  int     `json:"total_rounds"`
	MeanRounds   float64 `json:"mean_rounds"`
}

// WinRate is the attacker's share of the trials.
func (t Tally) WinRate() float64 {
	if t.Trials == 0 {
		return 0
	}
	return float64(t.AttackerWins) / float64(t.Trials)
}

func (t *Tally) add(record combat.CombatRecord) {
	t.Trials++
	t.TotalRounds += len(record.Rounds)
	switch {
	case record.Status == combat.StatusRetreated:
		t.Retreats++
	case record.Result.Winner == combat.Attacker:
		t.AttackerWins++
	default:
		t.DefenderWins++
	}
	t.MeanRounds = float64(t.TotalRounds) / float64(t.Trials)
}

// Harness runs independent battles in parallel. Trial i of a run uses
// seed BaseSeed+i, so a run is reproducible whatever the worker count.
type Harness struct {
	Engine   *combat.Engine
	Workers  int
	Trials   int
	BaseSeed int64
	RoundCap int
}

func NewHarness(engine *combat.Engine, trials int) *Harness {
	return &Harness{
		Engine:  engine,
		Workers: runtime.NumCPU(),
		Trials:  trials,
	}
}

func (h *Harness) Run(ctx context.Context, matchup Matchup) (Tally, error) {
	if h.Trials <= 0 {
		return Tally{}, ErrNoTrials
	}
	attack_type := matchup.Type
	if attack_type == "" {
		attack_type = combat.Assault
	}

	records := make([]combat.CombatRecord, h.Trials)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, h.Workers))

	for trial := 0; trial < h.Trials; trial++ {
		trial := trial
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			record, err := h.Engine.Resolve(matchup.Attacker, matchup.Defender, attack_type,
				combat.WithSeed(h.BaseSeed+int64(trial)),
				combat.WithRoundCap(h.RoundCap),
			)
			if err != nil {
				return fmt.Errorf("trial %d: %w", trial, err)
			}
			records[trial] = record
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Tally{}, err
	}

	var tally Tally
	for _, record := range records {
		tally.add(record)
	}
	return tally, nil
}

// Matrix holds attacker win rates: Rates[i][j] is Types[i] attacking Types[j].
type Matrix struct {
	Types  []string    `json:"types"`
	Budget int         `json:"budget"`
	Rates  [][]float64 `json:"rates"`
}

// ShipMatrix pits equal-cost single-type fleets against each other for
// every pair of ship types of the catalog.
func (h *Harness) ShipMatrix(ctx context.Context, budget int) (Matrix, error) {
	catalog := h.Engine.Catalog()
	types := catalog.Types()
	matrix := Matrix{Types: types, Budget: budget, Rates: make([][]float64, len(types))}

	for i, attacker_type := range types {
		matrix.Rates[i] = make([]float64, len(types))
		attacker, err := fleetForBudget(catalog, "attacker", attacker_type, budget)
		if err != nil {
			return Matrix{}, err
		}
		for j, defender_type := range types {
			defender, err := fleetForBudget(catalog, "defender", defender_type, budget)
			if err != nil {
				return Matrix{}, err
			}
			tally, err := h.Run(ctx, Matchup{Attacker: attacker, Defender: defender, Type: combat.Assault})
			if err != nil {
				return Matrix{}, fmt.Errorf("%s vs %s: %w", attacker_type, defender_type, err)
			}
			matrix.Rates[i][j] = tally.WinRate()
		}
		slog.Info("balance matrix row done", "type", attacker_type, "budget", budget)
	}
	return matrix, nil
}

// fleetForBudget buys as many ships of one type as budget allows, at least one.
func fleetForBudget(catalog combat.Catalog, empire, ship_type string, budget int) (combat.FleetSnapshot, error) {
	ship_stats, err := catalog.StatsFor(ship_type)
	if err != nil {
		return combat.FleetSnapshot{}, err
	}
	count := 1
	if ship_stats.Cost > 0 && budget/ship_stats.Cost > 1 {
		count = budget / ship_stats.Cost
	}
	return combat.NewFleet(empire, map[string]int{ship_type: count}), nil
}

type CurvePoint struct {
	Experience int     `json:"experience"`
	WinRate    float64 `json:"win_rate"`
	MeanRounds float64 `json:"mean_rounds"`
}

// ExperienceCurve measures how a veteran copy of composition fares
// against a rookie copy at each experience level.
func (h *Harness) ExperienceCurve(ctx context.Context, composition map[string]int, levels []int) ([]CurvePoint, error) {
	rookie := combat.NewFleet("rookie", composition)
	curve := make([]CurvePoint, 0, len(levels))

	for _, level := range levels {
		veteran := combat.NewFleet("veteran", composition)
		veteran.Experience = level

		tally, err := h.Run(ctx, Matchup{Attacker: veteran, Defender: rookie, Type: combat.Assault})
		if err != nil {
			return nil, fmt.Errorf("experience %d: %w", level, err)
		}
		curve = append(curve, CurvePoint{Experience: level, WinRate: tally.WinRate(), MeanRounds: tally.MeanRounds})
		slog.Debug("experience level done", "experience", level, "win_rate", tally.WinRate())
	}
	return curve, nil
}
