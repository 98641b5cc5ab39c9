package battles

import (
	"errors"
	"fmt"
	"strings"

	"galaxy/lib/combat"
)

var (
	ErrInvalidOrder     = errors.New("invalid battle order")
	ErrSameFleet        = errors.New("a fleet cannot attack itself")
	ErrSameEmpire       = errors.New("fleets belong to the same empire")
	ErrLocationMismatch = errors.New("fleets are not at the same location")
	ErrInvalidThreshold = errors.New("retreat threshold must be in (0, 1]")
)

// Order asks for a battle between two stored fleets.
type Order struct {
	ID              string            `json:"id,omitempty"`
	AttackerFleetID string            `json:"attacker_fleet_id"`
	DefenderFleetID string            `json:"defender_fleet_id"`
	Type            combat.AttackType `json:"type"`
	Location        string            `json:"location,omitempty"`
}

func (o Order) Validate() error {
	if strings.TrimSpace(o.AttackerFleetID) == "" || strings.TrimSpace(o.DefenderFleetID) == "" {
		return fmt.Errorf("%w: attacker and defender fleets are required", ErrInvalidOrder)
	}
	if o.AttackerFleetID == o.DefenderFleetID {
		return ErrSameFleet
	}
	if !o.Type.Valid() {
		return fmt.Errorf("%w: %q", combat.ErrInvalidAttackType, o.Type)
	}
	return nil
}

// IsRejected reports whether err is due to the order itself, meaning a
// retry with the same order cannot succeed.
func IsRejected(err error) bool {
	return combat.IsInputError(err) ||
		errors.Is(err, ErrInvalidOrder) ||
		errors.Is(err, ErrSameFleet) ||
		errors.Is(err, ErrSameEmpire) ||
		errors.Is(err, ErrLocationMismatch) ||
		errors.Is(err, ErrInvalidThreshold)
}
