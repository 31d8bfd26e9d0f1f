package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/lingoloop/lingoloop/internal/placement"
)

var _ placement.IssuedStore = (*IssuedRepo)(nil)

// IssuedRepo keeps the placement questions currently out with each user.
// A user has at most one open test; issuing a new one replaces it.
type IssuedRepo struct {
	db  *sqlx.DB
	now func() time.Time
}

// SaveIssued replaces the user's open test with questions.
func (r *IssuedRepo) SaveIssued(ctx context.Context, userID int64, questions []placement.Question) error {
	data, err := json.Marshal(questions)
	if err != nil {
		return fmt.Errorf("encode issued questions: %w", err)
	}
	_, err = r.db.ExecContext(ctx, r.db.Rebind(`INSERT INTO placement_issued (user_id, questions, issued_at)
		VALUES (?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET questions = excluded.questions, issued_at = excluded.issued_at`),
		userID, string(data), r.now())
	if err != nil {
		return fmt.Errorf("save issued questions for user %d: %w", userID, err)
	}
	return nil
}

// LoadIssued returns the user's open test, or nil when there is none.
func (r *IssuedRepo) LoadIssued(ctx context.Context, userID int64) ([]placement.Question, error) {
	var data string
	err := r.db.GetContext(ctx, &data, r.db.Rebind(`SELECT questions FROM placement_issued WHERE user_id = ?`), userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load issued questions for user %d: %w", userID, err)
	}
	var questions []placement.Question
	if err := json.Unmarshal([]byte(data), &questions); err != nil {
		return nil, fmt.Errorf("decode issued questions for user %d: %w", userID, err)
	}
	return questions, nil
}

// ClearIssued closes the user's open test. Clearing when none is open is a no-op.
func (r *IssuedRepo) ClearIssued(ctx context.Context, userID int64) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM placement_issued WHERE user_id = ?`), userID)
	if err != nil {
		return fmt.Errorf("clear issued questions for user %d: %w", userID, err)
	}
	return nil
}
