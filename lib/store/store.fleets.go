package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"galaxy/lib/combat"
)

// Ship is one stack of a stored fleet.
type Ship struct {
	Type       string  `json:"type"`
	Quantity   int     `json:"quantity"`
	Damage     float64 `json:"damage,omitempty"`
	Experience int     `json:"experience,omitempty"`
}

// Fleet is a row of the fleets table.
type Fleet struct {
	ID         string    `json:"id"`
	EmpireID   string    `json:"empire_id"`
	Location   string    `json:"location"`
	Ships      []Ship    `json:"ships"`
	Experience int       `json:"experience"`
	Morale     int       `json:"morale"`
	Supplies   int       `json:"supplies"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Snapshot converts the row into the engine's view of a fleet.
func (f Fleet) Snapshot() combat.FleetSnapshot {
	snapshot := combat.FleetSnapshot{
		ID:          f.ID,
		EmpireID:    f.EmpireID,
		Composition: make(map[string]int, len(f.Ships)),
		Damage:      make(map[string]float64),
		Experience:  f.Experience,
		Morale:      f.Morale,
		Supplies:    f.Supplies,
	}
	for _, ship := range f.Ships {
		snapshot.Composition[ship.Type] += ship.Quantity
		if ship.Damage > 0 {
			snapshot.Damage[ship.Type] += ship.Damage
		}
	}
	return snapshot
}

// ShipsFromSnapshot lists the stacks of snapshot ordered by type.
func ShipsFromSnapshot(snapshot combat.FleetSnapshot) []Ship {
	types := make([]string, 0, len(snapshot.Composition))
	for ship_type, count := range snapshot.Composition {
		if count > 0 {
			types = append(types, ship_type)
		}
	}
	sort.Strings(types)

	ships := make([]Ship, 0, len(types))
	for _, ship_type := range types {
		ships = append(ships, Ship{
			Type:       ship_type,
			Quantity:   snapshot.Composition[ship_type],
			Damage:     snapshot.Damage[ship_type],
			Experience: snapshot.Experience,
		})
	}
	return ships
}

// FleetFromSnapshot builds a row from snapshot, placed at location.
func FleetFromSnapshot(snapshot combat.FleetSnapshot, location string) Fleet {
	return Fleet{
		ID:         snapshot.ID,
		EmpireID:   snapshot.EmpireID,
		Location:   location,
		Ships:      ShipsFromSnapshot(snapshot),
		Experience: snapshot.Experience,
		Morale:     snapshot.Morale,
		Supplies:   snapshot.Supplies,
	}
}

func (s *Store) GetFleet(ctx context.Context, id string) (Fleet, error) {
	var fleet Fleet
	var ships string
	var updated_at int64

	row := s.db.QueryRowContext(ctx, s.rebind(`
SELECT id, empire_id, location, ships, experience, morale, supplies, updated_at
FROM fleets WHERE id = ?`), id)
	err := row.Scan(&fleet.ID, &fleet.EmpireID, &fleet.Location, &ships,
		&fleet.Experience, &fleet.Morale, &fleet.Supplies, &updated_at)
	if errors.Is(err, sql.ErrNoRows) {
		return Fleet{}, fmt.Errorf("%w: %s", ErrFleetNotFound, id)
	}
	if err != nil {
		return Fleet{}, fmt.Errorf("failed to get fleet: %w", err)
	}

	if err := json.Unmarshal([]byte(ships), &fleet.Ships); err != nil {
		return Fleet{}, fmt.Errorf("failed to unmarshal ships of fleet %s: %w", id, err)
	}
	fleet.UpdatedAt = time.UnixMilli(updated_at).UTC()
	return fleet, nil
}

// SaveFleet inserts fleet or replaces the stored row with the same id.
func (s *Store) SaveFleet(ctx context.Context, fleet Fleet) error {
	if fleet.ID == "" || fleet.EmpireID == "" {
		return fmt.Errorf("fleet id and empire id cannot be empty")
	}
	return saveFleet(ctx, s.db, s.rebind, fleet)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func saveFleet(ctx context.Context, db execer, rebind func(string) string, fleet Fleet) error {
	ships, err := marshalShips(fleet.Ships)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, rebind(`
INSERT INTO fleets (id, empire_id, location, ships, experience, morale, supplies, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
    empire_id = excluded.empire_id,
    location = excluded.location,
    ships = excluded.ships,
    experience = excluded.experience,
    morale = excluded.morale,
    supplies = excluded.supplies,
    updated_at = excluded.updated_at`),
		fleet.ID, fleet.EmpireID, fleet.Location, ships,
		fleet.Experience, fleet.Morale, fleet.Supplies, time.Now().UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to save fleet %s: %w", fleet.ID, err)
	}
	return nil
}

func marshalShips(ships []Ship) (string, error) {
	if ships == nil {
		ships = []Ship{}
	}
	ships_json, err := json.Marshal(ships)
	if err != nil {
		return "", fmt.Errorf("failed to marshal ships: %w", err)
	}
	return string(ships_json), nil
}
