package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"chama-connect/internal/models"
)

// DrawRecord carries the outcome of one draw. Winners hold positions
// relative to this draw (1..N); RecordDraw shifts them past any earlier
// draw in the same period.
type DrawRecord struct {
	CycleID              int64
	ExpectedWinnersCount int
	WinnersCount         int
	IsCompleted          bool
	DrawingDate          time.Time
	Winners              []models.RaffleWinner
}

// RecordDraw persists the cycle update, the member status flips and the
// winner rows atomically. It fails with ErrCycleChanged when another draw
// committed against the cycle first.
func (s *Store) RecordDraw(ctx context.Context, rec DrawRecord) (*models.RaffleCycle, []models.RaffleWinner, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, err
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx, s.rebind(`
UPDATE raffle_cycles
SET winners_count = ?, is_completed = ?, drawing_date = ?, updated_at = ?
WHERE id = ? AND winners_count = ? AND is_completed = ?`),
		rec.WinnersCount, rec.IsCompleted, rec.DrawingDate.UTC(), now,
		rec.CycleID, rec.ExpectedWinnersCount, false)
	if err != nil {
		return nil, nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, nil, ErrCycleChanged
	}

	var drawnCount int
	if err := tx.QueryRowContext(ctx, s.rebind(`
SELECT COUNT(*) FROM raffle_cycle_members WHERE cycle_id = ? AND status = ?`),
		rec.CycleID, string(models.MemberDrawn)).Scan(&drawnCount); err != nil {
		return nil, nil, err
	}

	flip := s.rebind(`
UPDATE raffle_cycle_members SET status = ?, seq = ?
WHERE cycle_id = ? AND user_id = ? AND status = ?`)
	for i, w := range rec.Winners {
		res, err := tx.ExecContext(ctx, flip, string(models.MemberDrawn), drawnCount+i+1,
			rec.CycleID, w.UserID, string(models.MemberEligible))
		if err != nil {
			return nil, nil, err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return nil, nil, fmt.Errorf("user %s is not eligible in cycle %d: %w", w.UserID, rec.CycleID, ErrCycleChanged)
		}
	}

	inserted := make([]models.RaffleWinner, 0, len(rec.Winners))
	if len(rec.Winners) > 0 {
		period := rec.Winners[0].RafflePeriod.UTC()
		var offset int
		if err := tx.QueryRowContext(ctx, s.rebind(`
SELECT COALESCE(MAX(position), 0) FROM raffle_winners WHERE raffle_period = ?`), period).Scan(&offset); err != nil {
			return nil, nil, err
		}
		for _, w := range rec.Winners {
			w.Position += offset
			w.RafflePeriod = period
			if w.PaymentStatus == "" {
				w.PaymentStatus = models.PaymentPending
			}
			w.CreatedAt = now
			id, err := s.insertID(ctx, tx, `
INSERT INTO raffle_winners (draw_id, raffle_period, user_id, position, amount, payment_status, payment_date, payout_ref, created_at)
VALUES (?, ?, ?, ?, ?, ?, NULL, ?, ?)`,
				w.DrawID, period, w.UserID, w.Position, w.Amount, string(w.PaymentStatus), w.PayoutRef, now)
			if err != nil {
				return nil, nil, err
			}
			w.ID = id
			inserted = append(inserted, w)
		}
	}

	row := tx.QueryRowContext(ctx, s.rebind(`SELECT `+cycleColumns+` FROM raffle_cycles WHERE id = ?`), rec.CycleID)
	cycle, err := s.scanCycle(ctx, tx, row)
	if err != nil {
		return nil, nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, nil, err
	}
	return cycle, inserted, nil
}

const winnerColumns = `w.id, w.draw_id, w.raffle_period, w.user_id, w.position, w.amount, w.payment_status, w.payment_date, w.payout_ref, w.created_at`

func scanWinner(row rowScanner, extra ...any) (*models.RaffleWinner, error) {
	var w models.RaffleWinner
	var paymentDate sql.NullTime
	dest := []any{&w.ID, &w.DrawID, &w.RafflePeriod, &w.UserID, &w.Position, &w.Amount, &w.PaymentStatus, &paymentDate, &w.PayoutRef, &w.CreatedAt}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	if paymentDate.Valid {
		t := paymentDate.Time
		w.PaymentDate = &t
	}
	return &w, nil
}

// ListWinners returns the winners of a raffle period joined with their
// directory entries, ordered by position.
func (s *Store) ListWinners(ctx context.Context, period time.Time) ([]models.WinnerWithUser, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
SELECT `+winnerColumns+`,
       COALESCE(u.name, ''), COALESCE(u.email, ''), COALESCE(u.phone, ''), COALESCE(u.avatar_url, '')
FROM raffle_winners w
LEFT JOIN users u ON u.id = w.user_id
WHERE w.raffle_period = ?
ORDER BY w.position ASC`), period.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	winners := []models.WinnerWithUser{}
	for rows.Next() {
		var item models.WinnerWithUser
		w, err := scanWinner(rows, &item.Name, &item.Email, &item.Phone, &item.AvatarURL)
		if err != nil {
			return nil, err
		}
		item.RaffleWinner = *w
		winners = append(winners, item)
	}
	return winners, rows.Err()
}

func (s *Store) GetWinner(ctx context.Context, id int64) (*models.RaffleWinner, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+winnerColumns+` FROM raffle_winners w WHERE w.id = ?`), id)
	w, err := scanWinner(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrWinnerNotFound
		}
		return nil, err
	}
	return w, nil
}

// UpdateWinnerPayment sets the payment status; paidAt nil clears payment_date.
func (s *Store) UpdateWinnerPayment(ctx context.Context, id int64, status models.PaymentStatus, paidAt *time.Time) error {
	var paymentDate sql.NullTime
	if paidAt != nil {
		paymentDate = sql.NullTime{Time: paidAt.UTC(), Valid: true}
	}
	res, err := s.db.ExecContext(ctx, s.rebind(`
UPDATE raffle_winners SET payment_status = ?, payment_date = ? WHERE id = ?`),
		string(status), paymentDate, id)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrWinnerNotFound
	}
	return nil
}
