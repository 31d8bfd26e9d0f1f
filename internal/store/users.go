package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/lingoloop/lingoloop/internal/apperr"
	"github.com/lingoloop/lingoloop/internal/placement"
)

// UserRepo reads and writes learners.
type UserRepo struct {
	db  *sqlx.DB
	now func() time.Time
}

const userColumns = `id, wa_id, name, phone, native_lang, target_lang, level, is_premium, is_active,
	streak_days, lessons_completed, last_active_at, created_at, updated_at`

// Get returns the user with the given id.
func (r *UserRepo) Get(ctx context.Context, id int64) (*User, error) {
	var u User
	err := r.db.GetContext(ctx, &u, r.db.Rebind(`SELECT `+userColumns+` FROM users WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.Newf(apperr.ErrUserNotFound, "get user", "id %d", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get user %d: %w", id, err)
	}
	return &u, nil
}

// GetByWaID returns the user with the given WhatsApp id, or nil if none.
func (r *UserRepo) GetByWaID(ctx context.Context, waID string) (*User, error) {
	var u User
	err := r.db.GetContext(ctx, &u, r.db.Rebind(`SELECT `+userColumns+` FROM users WHERE wa_id = ?`), waID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user by wa_id: %w", err)
	}
	return &u, nil
}

// GetOrCreate returns the user for waID, creating it when absent. The
// boolean reports whether the user was created by this call.
func (r *UserRepo) GetOrCreate(ctx context.Context, waID, name, phone string) (*User, bool, error) {
	u, err := r.GetByWaID(ctx, waID)
	if err != nil {
		return nil, false, err
	}
	if u != nil {
		return u, false, nil
	}

	now := r.now()
	var id int64
	err = r.db.QueryRowxContext(ctx, r.db.Rebind(`INSERT INTO users (wa_id, name, phone, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?) RETURNING id`), waID, name, phone, now, now).Scan(&id)
	if err != nil {
		return nil, false, fmt.Errorf("create user: %w", err)
	}

	u, err = r.Get(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return u, true, nil
}

// UserLevel returns the user's placement level, or "" when unplaced.
func (r *UserRepo) UserLevel(ctx context.Context, userID int64) (placement.Level, error) {
	var level sql.NullString
	err := r.db.GetContext(ctx, &level, r.db.Rebind(`SELECT level FROM users WHERE id = ?`), userID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", apperr.Newf(apperr.ErrUserNotFound, "user level", "id %d", userID)
	}
	if err != nil {
		return "", fmt.Errorf("user level %d: %w", userID, err)
	}
	if !level.Valid {
		return "", nil
	}
	return placement.Level(level.String), nil
}

// SetUserLevel stores the user's placement level.
func (r *UserRepo) SetUserLevel(ctx context.Context, userID int64, level placement.Level) error {
	return r.exec(ctx, "set user level", userID,
		`UPDATE users SET level = ?, updated_at = ? WHERE id = ?`, string(level), r.now(), userID)
}

// SetLanguages updates the user's native and target languages.
func (r *UserRepo) SetLanguages(ctx context.Context, userID int64, native, target string) error {
	return r.exec(ctx, "set languages", userID,
		`UPDATE users SET native_lang = ?, target_lang = ?, updated_at = ? WHERE id = ?`, native, target, r.now(), userID)
}

// SetActive toggles whether the user receives messages.
func (r *UserRepo) SetActive(ctx context.Context, userID int64, active bool) error {
	return r.exec(ctx, "set active", userID,
		`UPDATE users SET is_active = ?, updated_at = ? WHERE id = ?`, active, r.now(), userID)
}

// RecordActivity updates the streak for activity happening now. Activity on
// the day after the last active day extends the streak; a longer gap
// restarts it at 1; same-day activity leaves it unchanged.
func (r *UserRepo) RecordActivity(ctx context.Context, userID int64) (int, error) {
	u, err := r.Get(ctx, userID)
	if err != nil {
		return 0, err
	}

	now := r.now()
	streak := nextStreak(u.StreakDays, u.LastActiveAt, now)
	if err := r.exec(ctx, "record activity", userID,
		`UPDATE users SET streak_days = ?, last_active_at = ?, updated_at = ? WHERE id = ?`,
		streak, now, now, userID); err != nil {
		return 0, err
	}
	return streak, nil
}

func nextStreak(current int, lastActive *time.Time, now time.Time) int {
	if lastActive == nil {
		return 1
	}
	days := dayNumber(now) - dayNumber(*lastActive)
	switch {
	case days <= 0:
		return max(current, 1)
	case days == 1:
		return current + 1
	default:
		return 1
	}
}

func dayNumber(t time.Time) int64 {
	return t.UTC().Truncate(24*time.Hour).Unix() / 86400
}

// IncrementLessons bumps the completed lesson counter.
func (r *UserRepo) IncrementLessons(ctx context.Context, userID int64) error {
	return r.exec(ctx, "increment lessons", userID,
		`UPDATE users SET lessons_completed = lessons_completed + 1, updated_at = ? WHERE id = ?`, r.now(), userID)
}

// ResetStaleStreaks zeroes the streak of every user whose last activity is
// older than inactiveFor and returns how many were reset.
func (r *UserRepo) ResetStaleStreaks(ctx context.Context, inactiveFor time.Duration) (int, error) {
	now := r.now()
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`UPDATE users SET streak_days = 0, updated_at = ?
		WHERE streak_days > 0 AND last_active_at IS NOT NULL AND last_active_at < ?`), now, now.Add(-inactiveFor))
	if err != nil {
		return 0, fmt.Errorf("reset stale streaks: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reset stale streaks: %w", err)
	}
	return int(n), nil
}

// Count returns the number of users.
func (r *UserRepo) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM users`); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}

// exec runs a single-row update and maps "no rows" to ErrUserNotFound.
func (r *UserRepo) exec(ctx context.Context, op string, userID int64, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return apperr.Newf(apperr.ErrUserNotFound, op, "id %d", userID)
	}
	return nil
}
