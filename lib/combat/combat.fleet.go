package combat

import "sort"

// BaselineMorale is the morale at which a fleet fights at nominal power.
const BaselineMorale = 100

// FleetSnapshot is one side of a battle at a point in time.
// A ship type missing from Composition counts as zero ships.
type FleetSnapshot struct {
	ID          string         `json:"id,omitempty"`
	EmpireID    string         `json:"empire_id"`
	Composition map[string]int `json:"composition"`
	// Damage holds, per ship type, the fraction of a hull already lost but
	// not yet adding up to a destroyed ship.
	Damage     map[string]float64 `json:"damage,omitempty"`
	Experience int                `json:"experience"`
	Morale     int                `json:"morale"`
	Supplies   int                `json:"supplies"`
}

// NewFleet returns a rookie fleet at baseline morale.
func NewFleet(empireID string, composition map[string]int) FleetSnapshot {
	fleet := FleetSnapshot{
		EmpireID: empireID,
		Morale:   BaselineMorale,
	}
	fleet.Composition = make(map[string]int, len(composition))
	for ship_type, count := range composition {
		fleet.Composition[ship_type] = count
	}
	return fleet
}

// TotalShips counts every ship of the fleet. Negative counts are ignored.
func (f FleetSnapshot) TotalShips() int {
	total := 0
	for _, count := range f.Composition {
		if count > 0 {
			total += count
		}
	}
	return total
}

// Clone deep copies the snapshot so that callers and the engine never share maps.
func (f FleetSnapshot) Clone() FleetSnapshot {
	clone := f
	if f.Composition != nil {
		clone.Composition = make(map[string]int, len(f.Composition))
		for ship_type, count := range f.Composition {
			clone.Composition[ship_type] = count
		}
	}
	if f.Damage != nil {
		clone.Damage = make(map[string]float64, len(f.Damage))
		for ship_type, damage := range f.Damage {
			clone.Damage[ship_type] = damage
		}
	}
	return clone
}

func shipTypes(composition map[string]int) []string {
	types := make([]string, 0, len(composition))
	for ship_type := range composition {
		types = append(types, ship_type)
	}
	sort.Strings(types)
	return types
}
