package database

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"chama-connect/internal/models"
)

const userColumns = `id, name, email, phone, avatar_url, status, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	var u models.User
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Phone, &u.AvatarURL, &u.Status, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Store) CreateUser(ctx context.Context, u models.User) (*models.User, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.Status == "" {
		u.Status = models.UserStatusActive
	}
	now := time.Now().UTC()
	createdAt := u.CreatedAt.UTC()
	if u.CreatedAt.IsZero() {
		createdAt = now
	}
	_, err := s.db.ExecContext(ctx, s.rebind(`
INSERT INTO users (id, name, email, phone, avatar_url, status, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		u.ID, strings.TrimSpace(u.Name), strings.TrimSpace(u.Email), strings.TrimSpace(u.Phone),
		u.AvatarURL, string(u.Status), createdAt, now)
	if err != nil {
		return nil, err
	}
	return s.GetUser(ctx, u.ID)
}

func (s *Store) GetUser(ctx context.Context, id string) (*models.User, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+userColumns+` FROM users WHERE id = ?`), id)
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return u, nil
}

func (s *Store) ListUsers(ctx context.Context, limit, offset int) ([]models.User, int64, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
SELECT `+userColumns+`
FROM users
ORDER BY created_at DESC, id
LIMIT ? OFFSET ?`), limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	var total int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&total); err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

// ListActiveUsers returns members in join order, which is the order a
// new period's pool is seeded in.
func (s *Store) ListActiveUsers(ctx context.Context) ([]models.User, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
SELECT `+userColumns+`
FROM users
WHERE status = ?
ORDER BY created_at ASC, id ASC`), string(models.UserStatusActive))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// GetUsersByIDs returns the users found, in the order of ids. Unknown ids are skipped.
func (s *Store) GetUsersByIDs(ctx context.Context, ids []string) ([]models.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := s.db.QueryContext(ctx, s.rebind(`SELECT `+userColumns+` FROM users WHERE id IN (`+placeholders+`)`), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byID := make(map[string]models.User, len(ids))
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		byID[u.ID] = *u
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]models.User, 0, len(ids))
	for _, id := range ids {
		if u, ok := byID[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (s *Store) UpdateUserStatus(ctx context.Context, id string, status models.UserStatus) error {
	res, err := s.db.ExecContext(ctx, s.rebind(`UPDATE users SET status = ?, updated_at = ? WHERE id = ?`),
		string(status), time.Now().UTC(), id)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrUserNotFound
	}
	return nil
}
