package combat

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultRoundCap = 10

	ExperiencePerRound      = 1
	ExperienceHealthDivisor = 100

	WinnerMoraleGain     = 5
	LoserMoralePenalty   = 10
	RetreatMoralePenalty = 5

	SuppliesPerRound   = 1
	OutOfSupplyPenalty = 0.75
)

type settings struct {
	seed      int64
	seeded    bool
	roundCap  int
	retreat   RetreatPolicy
	attrition bool
	location  string
	clock     func() time.Time
	id        string
}

type Option func(*settings)

// WithSeed fixes the random source so the battle can be replayed.
func WithSeed(seed int64) Option {
	return func(s *settings) {
		s.seed = seed
		s.seeded = true
	}
}

// WithRoundCap bounds the number of rounds. Non positive values keep the default.
func WithRoundCap(rounds int) Option {
	return func(s *settings) {
		if rounds > 0 {
			s.roundCap = rounds
		}
	}
}

func WithRetreat(policy RetreatPolicy) Option {
	return func(s *settings) {
		s.retreat = policy
	}
}

// WithAttrition makes every round consume supplies; fleets fighting
// without supplies lose a quarter of their power.
func WithAttrition(enabled bool) Option {
	return func(s *settings) {
		s.attrition = enabled
	}
}

func WithLocation(location string) Option {
	return func(s *settings) {
		s.location = location
	}
}

func WithClock(clock func() time.Time) Option {
	return func(s *settings) {
		if clock != nil {
			s.clock = clock
		}
	}
}

func WithRecordID(id string) Option {
	return func(s *settings) {
		s.id = id
	}
}

// Engine resolves battles. It keeps no state between calls and may be
// shared by any number of goroutines.
type Engine struct {
	calculator *Calculator
	defaults   []Option
}

func NewEngine(catalog Catalog, defaults ...Option) *Engine {
	return &Engine{
		calculator: NewCalculator(catalog),
		defaults:   defaults,
	}
}

func (e *Engine) Calculator() *Calculator {
	return e.calculator
}

func (e *Engine) Catalog() Catalog {
	return e.calculator.Catalog()
}

// Assess is a shortcut for Calculator().Assess.
func (e *Engine) Assess(fleet FleetSnapshot) (PowerAssessment, error) {
	return e.calculator.Assess(fleet)
}

type battle struct {
	settings   settings
	calculator *Calculator
	simulator  *RoundSimulator
	record     *CombatRecord

	attacker FleetSnapshot
	defender FleetSnapshot

	initialAttacker PowerAssessment
	initialDefender PowerAssessment

	cumulativeAttacker float64
	cumulativeDefender float64
}

// Resolve fights attacker against defender until one side is destroyed,
// the attack type ends the battle, a side retreats or the round cap forces
// a decision. No record is returned when an error occurs.
func (e *Engine) Resolve(attacker, defender FleetSnapshot, attack_type AttackType, opts ...Option) (CombatRecord, error) {
	if !attack_type.Valid() {
		return CombatRecord{}, fmt.Errorf("%w: %q", ErrInvalidAttackType, attack_type)
	}

	s := settings{
		roundCap: DefaultRoundCap,
		clock:    time.Now,
	}
	for _, opt := range e.defaults {
		opt(&s)
	}
	for _, opt := range opts {
		opt(&s)
	}
	if !s.seeded {
		seed, err := NewSeed()
		if err != nil {
			return CombatRecord{}, err
		}
		s.seed = seed
	}
	if s.id == "" {
		s.id = uuid.NewString()
	}

	attacker = attacker.Clone()
	defender = defender.Clone()

	initial_attacker, err := e.calculator.Assess(attacker)
	if err != nil {
		return CombatRecord{}, fmt.Errorf("attacker: %w", err)
	}
	initial_defender, err := e.calculator.Assess(defender)
	if err != nil {
		return CombatRecord{}, fmt.Errorf("defender: %w", err)
	}
	if initial_attacker.Empty {
		return CombatRecord{}, fmt.Errorf("%w: attacker fleet has no ships", ErrInvalidCombatant)
	}
	if initial_defender.Empty {
		return CombatRecord{}, fmt.Errorf("%w: defender fleet has no ships", ErrInvalidCombatant)
	}

	record := CombatRecord{
		ID:              s.id,
		AttackerID:      attacker.EmpireID,
		DefenderID:      defender.EmpireID,
		AttackerFleetID: attacker.ID,
		DefenderFleetID: defender.ID,
		Location:        s.location,
		AttackType:      attack_type,
		Status:          StatusPending,
		Seed:            s.seed,
		RoundCap:        s.roundCap,
		Attrition:       s.attrition,
		Rounds:          []RoundLogEntry{},
		StartTime:       s.clock(),
	}
	record.Result.InitialAttackerFleet = attacker.Clone()
	record.Result.InitialDefenderFleet = defender.Clone()

	b := &battle{
		settings:        s,
		calculator:      e.calculator,
		simulator:       NewRoundSimulator(rand.New(rand.NewSource(s.seed))),
		record:          &record,
		attacker:        attacker,
		defender:        defender,
		initialAttacker: initial_attacker,
		initialDefender: initial_defender,
	}

	record.Status = StatusInProgress
	err = b.fight()
	if errors.Is(err, ErrRoundLimitExceeded) {
		b.forceDecision()
	} else if err != nil {
		return CombatRecord{}, err
	}

	if err := b.aftermath(); err != nil {
		return CombatRecord{}, err
	}
	record.EndTime = s.clock()

	slog.Debug("combat resolved",
		"id", record.ID,
		"type", record.AttackType,
		"rounds", len(record.Rounds),
		"decision", record.Decision,
		"winner", record.Result.Winner,
		"retreated", record.Result.Retreated,
	)
	return record, nil
}

// Replay resolves the battle described by record again from its initial
// fleets and seed. The replayed record matches the original round for round.
func (e *Engine) Replay(record CombatRecord) (CombatRecord, error) {
	opts := []Option{
		WithSeed(record.Seed),
		WithRoundCap(record.RoundCap),
		WithAttrition(record.Attrition),
		WithLocation(record.Location),
		WithRecordID(record.ID),
	}
	if record.Status == StatusRetreated {
		opts = append(opts, WithRetreat(RetreatAfter(record.Result.Retreated, len(record.Rounds))))
	}
	replayed, err := e.Resolve(record.Result.InitialAttackerFleet, record.Result.InitialDefenderFleet, record.AttackType, opts...)
	if err != nil {
		return CombatRecord{}, fmt.Errorf("replay %s: %w", record.ID, err)
	}
	replayed.StartTime = record.StartTime
	replayed.EndTime = record.EndTime
	return replayed, nil
}

func (b *battle) fight() error {
	for round := 1; ; round++ {
		if round > b.settings.roundCap {
			return ErrRoundLimitExceeded
		}

		attacker_power, err := b.calculator.Assess(b.attacker)
		if err != nil {
			return fmt.Errorf("attacker: %w", err)
		}
		defender_power, err := b.calculator.Assess(b.defender)
		if err != nil {
			return fmt.Errorf("defender: %w", err)
		}

		if round > 1 && b.settings.retreat != nil {
			side, ok := b.settings.retreat.Retreat(BattleState{
				Round:           round,
				Attacker:        attacker_power,
				Defender:        defender_power,
				InitialAttacker: b.initialAttacker,
				InitialDefender: b.initialDefender,
				AttackerFleet:   b.attacker.Clone(),
				DefenderFleet:   b.defender.Clone(),
			})
			if ok && (side == Attacker || side == Defender) {
				b.retreat(side)
				return nil
			}
		}

		if b.settings.attrition {
			attacker_power.EffectivePower = supplied(b.attacker, attacker_power.EffectivePower)
			defender_power.EffectivePower = supplied(b.defender, defender_power.EffectivePower)
		}

		outcome := b.simulator.Simulate(
			Combatant{Fleet: b.attacker, Power: attacker_power},
			Combatant{Fleet: b.defender, Power: defender_power},
			b.record.AttackType,
		)
		b.attacker = outcome.Attacker
		b.defender = outcome.Defender
		b.cumulativeAttacker += outcome.AttackerAdjusted
		b.cumulativeDefender += outcome.DefenderAdjusted

		if b.settings.attrition {
			b.attacker.Supplies = max(0, b.attacker.Supplies-SuppliesPerRound)
			b.defender.Supplies = max(0, b.defender.Supplies-SuppliesPerRound)
		}

		b.record.Rounds = append(b.record.Rounds, RoundLogEntry{
			Round:            round,
			AttackerPower:    attacker_power.EffectivePower,
			DefenderPower:    defender_power.EffectivePower,
			AttackerAdjusted: outcome.AttackerAdjusted,
			DefenderAdjusted: outcome.DefenderAdjusted,
			Holder:           outcome.Holder,
			AttackerLosses:   outcome.AttackerLosses,
			DefenderLosses:   outcome.DefenderLosses,
		})

		attacker_left := b.attacker.TotalShips()
		defender_left := b.defender.TotalShips()
		switch {
		case attacker_left == 0 && defender_left == 0:
			b.complete(outcome.Holder, DecisionAnnihilation)
			return nil
		case defender_left == 0:
			b.complete(Attacker, DecisionAnnihilation)
			return nil
		case attacker_left == 0:
			b.complete(Defender, DecisionAnnihilation)
			return nil
		case b.record.AttackType == Raid:
			b.complete(outcome.Holder, DecisionRaid)
			return nil
		}
	}
}

func supplied(fleet FleetSnapshot, power float64) float64 {
	if fleet.Supplies <= 0 {
		return power * OutOfSupplyPenalty
	}
	return power
}

// forceDecision settles a battle that hit the round cap on cumulative
// adjusted power. The attacker keeps ties.
func (b *battle) forceDecision() {
	winner := Attacker
	if b.cumulativeDefender > b.cumulativeAttacker {
		winner = Defender
	}
	b.complete(winner, DecisionRoundCap)
}

func (b *battle) complete(winner Side, decision Decision) {
	b.record.Status = StatusCompleted
	b.record.Decision = decision
	b.record.Result.Winner = winner
	if winner == Attacker {
		b.record.Result.WinnerID = b.record.AttackerID
	} else {
		b.record.Result.WinnerID = b.record.DefenderID
	}
}

func (b *battle) retreat(side Side) {
	b.record.Status = StatusRetreated
	b.record.Decision = DecisionRetreat
	b.record.Result.Retreated = side
	if side == Attacker {
		b.record.Result.RetreatedID = b.record.AttackerID
	} else {
		b.record.Result.RetreatedID = b.record.DefenderID
	}
}

// aftermath grants experience to every surviving fleet and moves morale
// according to the outcome.
func (b *battle) aftermath() error {
	final_attacker, err := b.calculator.Assess(b.attacker)
	if err != nil {
		return fmt.Errorf("attacker: %w", err)
	}
	final_defender, err := b.calculator.Assess(b.defender)
	if err != nil {
		return fmt.Errorf("defender: %w", err)
	}

	rounds := len(b.record.Rounds)
	attacker_destroyed := b.initialDefender.TotalHealth - final_defender.TotalHealth
	defender_destroyed := b.initialAttacker.TotalHealth - final_attacker.TotalHealth

	if !final_attacker.Empty {
		b.attacker.Experience += experienceGain(rounds, attacker_destroyed)
	}
	if !final_defender.Empty {
		b.defender.Experience += experienceGain(rounds, defender_destroyed)
	}

	switch b.record.Status {
	case StatusCompleted:
		if b.record.Result.Winner == Attacker {
			b.attacker.Morale += WinnerMoraleGain
			b.defender.Morale = max(0, b.defender.Morale-LoserMoralePenalty)
		} else {
			b.defender.Morale += WinnerMoraleGain
			b.attacker.Morale = max(0, b.attacker.Morale-LoserMoralePenalty)
		}
	case StatusRetreated:
		if b.record.Result.Retreated == Attacker {
			b.attacker.Morale = max(0, b.attacker.Morale-RetreatMoralePenalty)
		} else {
			b.defender.Morale = max(0, b.defender.Morale-RetreatMoralePenalty)
		}
	}

	b.record.Result.FinalAttackerFleet = prune(b.attacker)
	b.record.Result.FinalDefenderFleet = prune(b.defender)
	return nil
}

func experienceGain(rounds, health_destroyed int) int {
	if health_destroyed < 0 {
		health_destroyed = 0
	}
	return rounds*ExperiencePerRound + health_destroyed/ExperienceHealthDivisor
}

// prune drops destroyed ship types from the final snapshot.
func prune(fleet FleetSnapshot) FleetSnapshot {
	pruned := fleet.Clone()
	pruned.Composition = make(map[string]int, len(fleet.Composition))
	pruned.Damage = make(map[string]float64, len(fleet.Damage))
	for ship_type, count := range fleet.Composition {
		if count <= 0 {
			continue
		}
		pruned.Composition[ship_type] = count
		if damage := fleet.Damage[ship_type]; damage > 0 {
			pruned.Damage[ship_type] = damage
		}
	}
	return pruned
}
