package placement

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/lingoloop/lingoloop/internal/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("github.com/lingoloop/lingoloop/internal/placement")

// ErrNoTestInProgress is returned by Evaluate when the user has no open test.
var ErrNoTestInProgress = errors.New("no placement test in progress")

// ProgressStore persists answered questions.
type ProgressStore interface {
	RecordProgress(ctx context.Context, rec ProgressRecord) error
}

// IssuedStore remembers which questions a user was given, so evaluation
// can ignore answers to anything else. LoadIssued returns nil when the
// user has no open test.
type IssuedStore interface {
	SaveIssued(ctx context.Context, userID int64, questions []Question) error
	LoadIssued(ctx context.Context, userID int64) ([]Question, error)
	ClearIssued(ctx context.Context, userID int64) error
}

// Service runs placement tests end to end.
type Service struct {
	generator *Generator
	users     UserStore
	progress  ProgressStore
	issued    IssuedStore
	logger    *zap.Logger
}

// NewService wires a Service. When issued is nil an in-process store is used.
func NewService(gen *Generator, users UserStore, progress ProgressStore, issued IssuedStore, logger *zap.Logger) *Service {
	if issued == nil {
		issued = NewMemoryIssued()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		generator: gen,
		users:     users,
		progress:  progress,
		issued:    issued,
		logger:    logger,
	}
}

// Generate builds a test for the user and remembers the issued questions.
func (s *Service) Generate(ctx context.Context, userID int64, sourceLang, targetLang string, maxQuestions int) ([]Question, error) {
	questions, err := s.generator.Generate(ctx, userID, sourceLang, targetLang, maxQuestions)
	if err != nil {
		return nil, err
	}
	if len(questions) == 0 {
		return questions, nil
	}
	if err := s.issued.SaveIssued(ctx, userID, questions); err != nil {
		return nil, fmt.Errorf("save issued questions: %w", err)
	}
	return questions, nil
}

// Evaluate scores answers against the questions last issued to the user
// and closes that test, so the same test cannot be scored twice.
func (s *Service) Evaluate(ctx context.Context, userID int64, answers []Answer, startMs, endMs int64) (*Result, error) {
	issued, err := s.issued.LoadIssued(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load issued questions: %w", err)
	}
	if len(issued) == 0 {
		return nil, ErrNoTestInProgress
	}

	res, err := s.Score(ctx, userID, issued, answers, startMs, endMs)
	if err != nil {
		return nil, err
	}
	if err := s.issued.ClearIssued(ctx, userID); err != nil {
		s.logger.Warn("failed to clear issued placement questions",
			zap.Int64("user_id", userID),
			zap.Error(err))
	}
	return res, nil
}

// Score evaluates answers against an explicit set of issued questions,
// records one progress row per matched answer and stores the recommended
// level on the user.
//
// Answers naming an exercise outside issued, or repeating one already
// scored, are ignored. A failed progress write is logged and counted in
// Result.ProgressWriteFailures; it does not stop scoring.
func (s *Service) Score(ctx context.Context, userID int64, issued []Question, answers []Answer, startMs, endMs int64) (*Result, error) {
	ctx, span := tracer.Start(ctx, "placement.Score")
	defer span.End()

	byID := make(map[int64]*Question, len(issued))
	for i := range issued {
		byID[issued[i].ExerciseID] = &issued[i]
	}

	tallies := make(map[Level]Tally)
	scored := make(map[int64]bool)
	res := &Result{UserID: userID, TestDurationMs: endMs - startMs}
	var totalTimeMs int64

	for _, a := range answers {
		q, ok := byID[a.ExerciseID]
		if !ok || scored[a.ExerciseID] {
			continue
		}
		scored[a.ExerciseID] = true

		correct := IsCorrect(q, a.RawAnswer)
		responseMs := max(a.ResponseTimeMs, 0)

		t := tallies[q.Difficulty]
		t.Total++
		if correct {
			t.Correct++
			res.CorrectAnswers++
		}
		tallies[q.Difficulty] = t
		res.TotalQuestions++
		totalTimeMs += responseMs

		err := s.progress.RecordProgress(ctx, ProgressRecord{
			UserID:         userID,
			ExerciseID:     a.ExerciseID,
			IsCorrect:      correct,
			RawAnswer:      a.RawAnswer,
			ResponseTimeMs: responseMs,
		})
		if err != nil {
			res.ProgressWriteFailures++
			s.logger.Warn("failed to record placement progress",
				zap.Int64("user_id", userID),
				zap.Int64("exercise_id", a.ExerciseID),
				zap.Error(err))
		}
	}

	if res.TotalQuestions > 0 {
		res.AccuracyPercentage = float64(res.CorrectAnswers) / float64(res.TotalQuestions) * 100
		res.AverageResponseTimeMs = totalTimeMs / int64(res.TotalQuestions)
	}

	res.RecommendedLevel, res.ConfidenceScore = Determine(tallies, res.AccuracyPercentage)
	res.WeakAreas, res.StrongAreas = Areas(tallies)

	if err := s.users.SetUserLevel(ctx, userID, res.RecommendedLevel); err != nil {
		return nil, fmt.Errorf("store placement level: %w", err)
	}

	span.SetAttributes(
		attribute.Int64("user_id", userID),
		attribute.Int("questions", res.TotalQuestions),
		attribute.String("level", string(res.RecommendedLevel)),
	)
	metrics.PlacementTestsCompleted.WithLabelValues(string(res.RecommendedLevel)).Inc()

	s.logger.Info("placement test evaluated",
		zap.Int64("user_id", userID),
		zap.String("level", string(res.RecommendedLevel)),
		zap.Float64("confidence", res.ConfidenceScore),
		zap.Int("correct", res.CorrectAnswers),
		zap.Int("total", res.TotalQuestions))

	return res, nil
}

// MemoryIssued is an IssuedStore held in process memory.
type MemoryIssued struct {
	mu   sync.Mutex
	byID map[int64][]Question
}

// NewMemoryIssued creates an empty MemoryIssued.
func NewMemoryIssued() *MemoryIssued {
	return &MemoryIssued{byID: make(map[int64][]Question)}
}

// SaveIssued replaces the user's open test with a copy of questions.
func (m *MemoryIssued) SaveIssued(_ context.Context, userID int64, questions []Question) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[userID] = append([]Question(nil), questions...)
	return nil
}

// LoadIssued returns a copy of the user's open test, or nil when there is none.
func (m *MemoryIssued) LoadIssued(_ context.Context, userID int64) ([]Question, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Question(nil), m.byID[userID]...), nil
}

// ClearIssued forgets the user's open test.
func (m *MemoryIssued) ClearIssued(_ context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byID, userID)
	return nil
}
