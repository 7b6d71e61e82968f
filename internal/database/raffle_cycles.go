package database

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"chama-connect/internal/models"
)

const cycleColumns = `id, year, month, pool_size, winners_count, is_completed, drawing_date, created_at, updated_at`

func (s *Store) scanCycle(ctx context.Context, q querier, row rowScanner) (*models.RaffleCycle, error) {
	var c models.RaffleCycle
	var drawingDate sql.NullTime
	if err := row.Scan(&c.ID, &c.Year, &c.Month, &c.PoolSize, &c.WinnersCount, &c.IsCompleted, &drawingDate, &c.CreatedAt, &c.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCycleNotFound
		}
		return nil, err
	}
	if drawingDate.Valid {
		t := drawingDate.Time
		c.DrawingDate = &t
	}
	eligible, drawn, err := s.loadMembers(ctx, q, c.ID)
	if err != nil {
		return nil, err
	}
	c.EligibleUsers = eligible
	c.DrawnUsers = drawn
	return &c, nil
}

func (s *Store) loadMembers(ctx context.Context, q querier, cycleID int64) ([]string, []string, error) {
	rows, err := q.QueryContext(ctx, s.rebind(`
SELECT user_id, status
FROM raffle_cycle_members
WHERE cycle_id = ?
ORDER BY status, seq`), cycleID)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	eligible := []string{}
	drawn := []string{}
	for rows.Next() {
		var userID, status string
		if err := rows.Scan(&userID, &status); err != nil {
			return nil, nil, err
		}
		switch models.MemberStatus(status) {
		case models.MemberDrawn:
			drawn = append(drawn, userID)
		default:
			eligible = append(eligible, userID)
		}
	}
	return eligible, drawn, rows.Err()
}

func (s *Store) GetCycle(ctx context.Context, year, month int) (*models.RaffleCycle, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+cycleColumns+` FROM raffle_cycles WHERE year = ? AND month = ?`), year, month)
	return s.scanCycle(ctx, s.db, row)
}

func (s *Store) GetCycleByID(ctx context.Context, id int64) (*models.RaffleCycle, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+cycleColumns+` FROM raffle_cycles WHERE id = ?`), id)
	return s.scanCycle(ctx, s.db, row)
}

// LatestCycleBetween returns the most recent cycle of year whose month lies
// in [fromMonth, beforeMonth).
func (s *Store) LatestCycleBetween(ctx context.Context, year, fromMonth, beforeMonth int) (*models.RaffleCycle, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`
SELECT `+cycleColumns+`
FROM raffle_cycles
WHERE year = ? AND month >= ? AND month < ?
ORDER BY month DESC
LIMIT 1`), year, fromMonth, beforeMonth)
	return s.scanCycle(ctx, s.db, row)
}

// CreateCycle inserts the cycle and its members in one transaction. A
// concurrent insert for the same (year, month) yields ErrCycleExists.
func (s *Store) CreateCycle(ctx context.Context, c models.RaffleCycle) (*models.RaffleCycle, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	id, err := s.insertID(ctx, tx, `
INSERT INTO raffle_cycles (year, month, pool_size, winners_count, is_completed, drawing_date, created_at, updated_at)
VALUES (?, ?, ?, 0, ?, NULL, ?, ?)`, c.Year, c.Month, c.PoolSize, false, now, now)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrCycleExists
		}
		return nil, err
	}

	insert := s.rebind(`INSERT INTO raffle_cycle_members (cycle_id, user_id, status, seq) VALUES (?, ?, ?, ?)`)
	for i, userID := range c.DrawnUsers {
		if _, err := tx.ExecContext(ctx, insert, id, userID, string(models.MemberDrawn), i+1); err != nil {
			return nil, err
		}
	}
	for i, userID := range c.EligibleUsers {
		if _, err := tx.ExecContext(ctx, insert, id, userID, string(models.MemberEligible), i+1); err != nil {
			return nil, err
		}
	}

	row := tx.QueryRowContext(ctx, s.rebind(`SELECT `+cycleColumns+` FROM raffle_cycles WHERE id = ?`), id)
	created, err := s.scanCycle(ctx, tx, row)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return created, nil
}

// AddCycleMembers appends userIDs to the eligible pool, skipping ids that are
// already members, and grows pool_size by the number added.
func (s *Store) AddCycleMembers(ctx context.Context, cycleID int64, userIDs []string) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRowContext(ctx, s.rebind(`SELECT COUNT(*) FROM raffle_cycles WHERE id = ?`), cycleID).Scan(&exists); err != nil {
		return 0, err
	}
	if exists == 0 {
		return 0, ErrCycleNotFound
	}

	var maxSeq int
	if err := tx.QueryRowContext(ctx, s.rebind(`
SELECT COALESCE(MAX(seq), 0) FROM raffle_cycle_members WHERE cycle_id = ? AND status = ?`),
		cycleID, string(models.MemberEligible)).Scan(&maxSeq); err != nil {
		return 0, err
	}

	insert := s.rebind(`
INSERT INTO raffle_cycle_members (cycle_id, user_id, status, seq) VALUES (?, ?, ?, ?)
ON CONFLICT (cycle_id, user_id) DO NOTHING`)
	added := 0
	for _, userID := range userIDs {
		res, err := tx.ExecContext(ctx, insert, cycleID, userID, string(models.MemberEligible), maxSeq+added+1)
		if err != nil {
			return 0, err
		}
		if n, _ := res.RowsAffected(); n > 0 {
			added++
		}
	}
	if added > 0 {
		if _, err := tx.ExecContext(ctx, s.rebind(`
UPDATE raffle_cycles SET pool_size = pool_size + ?, updated_at = ? WHERE id = ?`),
			added, time.Now().UTC(), cycleID); err != nil {
			return 0, err
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return added, nil
}
