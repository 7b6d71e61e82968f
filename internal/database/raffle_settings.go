package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"chama-connect/internal/models"
)

const settingsColumns = `id, winners_per_period, active, updated_by, created_at, updated_at`

func scanSettings(row rowScanner) (*models.RaffleSettings, error) {
	var st models.RaffleSettings
	if err := row.Scan(&st.ID, &st.WinnersPerPeriod, &st.Active, &st.UpdatedBy, &st.CreatedAt, &st.UpdatedAt); err != nil {
		return nil, err
	}
	return &st, nil
}

// LoadRaffleSettings returns the latest settings row, creating the default
// row when the table is empty.
func (s *Store) LoadRaffleSettings(ctx context.Context) (*models.RaffleSettings, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	st, err := s.ensureSettings(ctx, tx)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return st, nil
}

func (s *Store) ensureSettings(ctx context.Context, q querier) (*models.RaffleSettings, error) {
	st, err := scanSettings(q.QueryRowContext(ctx, `SELECT `+settingsColumns+` FROM raffle_settings ORDER BY id DESC LIMIT 1`))
	if err == nil {
		return st, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	now := time.Now().UTC()
	id, err := s.insertID(ctx, q, `
INSERT INTO raffle_settings (winners_per_period, active, updated_by, created_at, updated_at)
VALUES (?, ?, ?, ?, ?)`, models.DefaultWinnersPerPeriod, true, "system", now, now)
	if err != nil {
		return nil, err
	}
	return scanSettings(q.QueryRowContext(ctx, s.rebind(`SELECT `+settingsColumns+` FROM raffle_settings WHERE id = ?`), id))
}

func (s *Store) UpdateRaffleSettings(ctx context.Context, winnersPerPeriod int, active bool, updatedBy string) (*models.RaffleSettings, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	current, err := s.ensureSettings(ctx, tx)
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, s.rebind(`
UPDATE raffle_settings SET winners_per_period = ?, active = ?, updated_by = ?, updated_at = ?
WHERE id = ?`), winnersPerPeriod, active, updatedBy, time.Now().UTC(), current.ID); err != nil {
		return nil, err
	}
	st, err := scanSettings(tx.QueryRowContext(ctx, s.rebind(`SELECT `+settingsColumns+` FROM raffle_settings WHERE id = ?`), current.ID))
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return st, nil
}

// SettingsSchedule is a pending settings change applied by the scheduler.
type SettingsSchedule struct {
	WinnersPerPeriod int       `json:"winnersPerPeriod"`
	Active           bool      `json:"active"`
	ApplyAt          time.Time `json:"applyAt"`
	Author           string    `json:"author"`
	Message          string    `json:"message"`
	CreatedAt        time.Time `json:"createdAt"`
}

const settingsScheduleKey = "raffle_settings_schedule"

func (s *Store) SaveSettingsSchedule(ctx context.Context, schedule SettingsSchedule) error {
	payload, err := json.Marshal(schedule)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, s.rebind(`
INSERT INTO config (key, value) VALUES (?, ?)
ON CONFLICT (key) DO UPDATE SET value = excluded.value`), settingsScheduleKey, string(payload))
	return err
}

func (s *Store) LoadSettingsSchedule(ctx context.Context) (*SettingsSchedule, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT value FROM config WHERE key = ?`), settingsScheduleKey).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if raw == "" {
		return nil, nil
	}
	var schedule SettingsSchedule
	if err := json.Unmarshal([]byte(raw), &schedule); err != nil {
		return nil, nil
	}
	return &schedule, nil
}

func (s *Store) ClearSettingsSchedule(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM config WHERE key = ?`), settingsScheduleKey)
	return err
}
