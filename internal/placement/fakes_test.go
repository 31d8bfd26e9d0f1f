package placement

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/lingoloop/lingoloop/internal/apperr"
)

type fakeExercises struct {
	byLevel map[Level][]Exercise
	queries []ExerciseQuery
}

func (f *fakeExercises) FetchExercises(_ context.Context, q ExerciseQuery) ([]Exercise, error) {
	f.queries = append(f.queries, q)
	var out []Exercise
	for _, ex := range f.byLevel[q.Difficulty] {
		if slices.Contains(q.Exclude, ex.ID) {
			continue
		}
		out = append(out, ex)
		if len(out) == q.Count {
			break
		}
	}
	return out, nil
}

// exercisePool builds n translation exercises per level with IDs that encode
// the level, e.g. 201 for the first A2 item.
func exercisePool(n int, levels ...Level) *fakeExercises {
	f := &fakeExercises{byLevel: make(map[Level][]Exercise)}
	for _, l := range levels {
		for i := 1; i <= n; i++ {
			f.byLevel[l] = append(f.byLevel[l], Exercise{
				ID:            int64(l.Points()*100 + i),
				Question:      fmt.Sprintf("%s question %d", l, i),
				CorrectAnswer: fmt.Sprintf("answer %d", i),
				Kind:          KindTranslation,
			})
		}
	}
	return f
}

type fakeUsers struct {
	mu     sync.Mutex
	levels map[int64]Level
	setErr error
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{levels: make(map[int64]Level)}
}

func (f *fakeUsers) UserLevel(_ context.Context, userID int64) (Level, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.levels[userID]
	if !ok {
		return "", apperr.New(apperr.ErrUserNotFound, "users.UserLevel", nil)
	}
	return l, nil
}

func (f *fakeUsers) SetUserLevel(_ context.Context, userID int64, level Level) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setErr != nil {
		return f.setErr
	}
	f.levels[userID] = level
	return nil
}

type fakeProgress struct {
	records []ProgressRecord
	failFor map[int64]bool
}

func (f *fakeProgress) RecordProgress(_ context.Context, rec ProgressRecord) error {
	if f.failFor[rec.ExerciseID] {
		return errors.New("disk full")
	}
	f.records = append(f.records, rec)
	return nil
}

func firstIndex(int) int { return 0 }
