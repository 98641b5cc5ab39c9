package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"galaxy/lib/combat"
)

const combatColumns = `id, attacker_fleet_id, defender_fleet_id, attacker_id, defender_id, location,
type, status, decision, seed, round_cap, attrition, rounds, result, start_time, end_time`

type scanner interface {
	Scan(dest ...any) error
}

func scanCombat(row scanner) (combat.CombatRecord, error) {
	var record combat.CombatRecord
	var attack_type, status, decision string
	var attrition int
	var rounds, result string
	var start_time, end_time int64

	err := row.Scan(&record.ID, &record.AttackerFleetID, &record.DefenderFleetID,
		&record.AttackerID, &record.DefenderID, &record.Location,
		&attack_type, &status, &decision, &record.Seed, &record.RoundCap, &attrition,
		&rounds, &result, &start_time, &end_time)
	if err != nil {
		return combat.CombatRecord{}, err
	}

	record.AttackType = combat.AttackType(attack_type)
	record.Status = combat.Status(status)
	record.Decision = combat.Decision(decision)
	record.Attrition = attrition != 0
	record.StartTime = time.UnixMilli(start_time).UTC()
	record.EndTime = time.UnixMilli(end_time).UTC()

	if err := json.Unmarshal([]byte(rounds), &record.Rounds); err != nil {
		return combat.CombatRecord{}, fmt.Errorf("failed to unmarshal rounds of combat %s: %w", record.ID, err)
	}
	if err := json.Unmarshal([]byte(result), &record.Result); err != nil {
		return combat.CombatRecord{}, fmt.Errorf("failed to unmarshal result of combat %s: %w", record.ID, err)
	}
	return record, nil
}

func (s *Store) GetCombat(ctx context.Context, id string) (combat.CombatRecord, error) {
	row := s.db.QueryRowContext(ctx, s.rebind("SELECT "+combatColumns+" FROM combats WHERE id = ?"), id)
	record, err := scanCombat(row)
	if errors.Is(err, sql.ErrNoRows) {
		return combat.CombatRecord{}, fmt.Errorf("%w: %s", ErrCombatNotFound, id)
	}
	if err != nil {
		return combat.CombatRecord{}, fmt.Errorf("failed to get combat: %w", err)
	}
	return record, nil
}

// ListCombats returns the latest battles fought by a fleet, newest first.
func (s *Store) ListCombats(ctx context.Context, fleet_id string, limit int) ([]combat.CombatRecord, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, s.rebind("SELECT "+combatColumns+`
FROM combats
WHERE attacker_fleet_id = ? OR defender_fleet_id = ?
ORDER BY start_time DESC, id
LIMIT ?`), fleet_id, fleet_id, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list combats: %w", err)
	}
	defer rows.Close()

	records := []combat.CombatRecord{}
	for rows.Next() {
		record, err := scanCombat(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan combat: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list combats: %w", err)
	}
	return records, nil
}

// ApplyBattle stores record and the post-battle state of both fleets in a
// single transaction, so casualties are never partially visible.
func (s *Store) ApplyBattle(ctx context.Context, record combat.CombatRecord) error {
	if record.ID == "" || record.AttackerFleetID == "" || record.DefenderFleetID == "" {
		return fmt.Errorf("%w: combat and fleet ids are required", ErrInvalidRecord)
	}
	if record.Status != combat.StatusCompleted && record.Status != combat.StatusRetreated {
		return fmt.Errorf("%w: battle is still %s", ErrInvalidRecord, record.Status)
	}

	rounds, err := json.Marshal(record.Rounds)
	if err != nil {
		return fmt.Errorf("failed to marshal rounds: %w", err)
	}
	result, err := json.Marshal(record.Result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	for _, fleet := range []combat.FleetSnapshot{record.Result.FinalAttackerFleet, record.Result.FinalDefenderFleet} {
		if err := updateFleetState(ctx, tx, s.rebind, fleet); err != nil {
			return err
		}
	}

	attrition := 0
	if record.Attrition {
		attrition = 1
	}
	_, err = tx.ExecContext(ctx, s.rebind("INSERT INTO combats ("+combatColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		record.ID, record.AttackerFleetID, record.DefenderFleetID,
		record.AttackerID, record.DefenderID, record.Location,
		string(record.AttackType), string(record.Status), string(record.Decision),
		record.Seed, record.RoundCap, attrition,
		string(rounds), string(result),
		record.StartTime.UTC().UnixMilli(), record.EndTime.UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert combat: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	slog.Info("Battle persisted", "combat", record.ID, "status", record.Status)
	return nil
}

func updateFleetState(ctx context.Context, tx *sql.Tx, rebind func(string) string, fleet combat.FleetSnapshot) error {
	ships, err := marshalShips(ShipsFromSnapshot(fleet))
	if err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, rebind(`
UPDATE fleets SET ships = ?, experience = ?, morale = ?, supplies = ?, updated_at = ?
WHERE id = ?`),
		ships, fleet.Experience, fleet.Morale, fleet.Supplies, time.Now().UTC().UnixMilli(), fleet.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update fleet %s: %w", fleet.ID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update fleet %s: %w", fleet.ID, err)
	}
	if affected != 1 {
		return fmt.Errorf("%w: %s", ErrFleetNotFound, fleet.ID)
	}
	return nil
}
