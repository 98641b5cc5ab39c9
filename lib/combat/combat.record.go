package combat

import (
	"fmt"
	"strings"
	"time"
)

type AttackType string

const (
	Assault AttackType = "assault"
	Raid    AttackType = "raid"
	Bombard AttackType = "bombard"
)

// ParseAttackType accepts the attack type names used by the API.
func ParseAttackType(value string) (AttackType, error) {
	attack_type := AttackType(strings.ToLower(strings.TrimSpace(value)))
	if !attack_type.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidAttackType, value)
	}
	return attack_type, nil
}

func (t AttackType) Valid() bool {
	switch t {
	case Assault, Raid, Bombard:
		return true
	}
	return false
}

type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusRetreated  Status = "retreated"
)

// Decision records which terminal condition ended a battle.
type Decision string

const (
	DecisionAnnihilation Decision = "annihilation"
	DecisionRaid         Decision = "raid"
	DecisionRoundCap     Decision = "round_cap"
	DecisionRetreat      Decision = "retreat"
)

type Side string

const (
	Attacker Side = "attacker"
	Defender Side = "defender"
)

func (s Side) Opponent() Side {
	if s == Attacker {
		return Defender
	}
	return Attacker
}

// RoundLogEntry is one line of the replay log.
type RoundLogEntry struct {
	Round            int            `json:"round_number"`
	AttackerPower    float64        `json:"attacker_power"`
	DefenderPower    float64        `json:"defender_power"`
	AttackerAdjusted float64        `json:"attacker_adjusted"`
	DefenderAdjusted float64        `json:"defender_adjusted"`
	Holder           Side           `json:"holder"`
	AttackerLosses   map[string]int `json:"attacker_losses"`
	DefenderLosses   map[string]int `json:"defender_losses"`
}

type CombatResult struct {
	WinnerID    string `json:"winner_id,omitempty"`
	Winner      Side   `json:"winner,omitempty"`
	RetreatedID string `json:"retreated_id,omitempty"`
	Retreated   Side   `json:"retreated,omitempty"`

	InitialAttackerFleet FleetSnapshot `json:"initial_attacker_fleet"`
	InitialDefenderFleet FleetSnapshot `json:"initial_defender_fleet"`
	FinalAttackerFleet   FleetSnapshot `json:"final_attacker_fleet"`
	FinalDefenderFleet   FleetSnapshot `json:"final_defender_fleet"`
}

// CombatRecord is the outcome of one battle. The engine hands it to the
// caller and keeps no reference to it.
type CombatRecord struct {
	ID              string          `json:"id"`
	AttackerID      string          `json:"attacker_id"`
	DefenderID      string          `json:"defender_id"`
	AttackerFleetID string          `json:"attacker_fleet_id,omitempty"`
	DefenderFleetID string          `json:"defender_fleet_id,omitempty"`
	Location        string          `json:"location,omitempty"`
	AttackType      AttackType      `json:"type"`
	Status          Status          `json:"status"`
	Decision        Decision        `json:"decision,omitempty"`
	Seed            int64           `json:"seed"`
	RoundCap        int             `json:"round_cap"`
	Attrition       bool            `json:"attrition,omitempty"`
	Rounds          []RoundLogEntry `json:"rounds"`
	Result          CombatResult    `json:"result"`
	StartTime       time.Time       `json:"start_time"`
	EndTime         time.Time       `json:"end_time"`
}

// Final returns the post-battle snapshot of side.
func (r CombatRecord) Final(side Side) FleetSnapshot {
	if side == Attacker {
		return r.Result.FinalAttackerFleet
	}
	return r.Result.FinalDefenderFleet
}
