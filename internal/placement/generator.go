package placement

import (
	"context"
	"fmt"
	"math/rand/v2"

	"go.uber.org/zap"
)

// ExerciseQuery selects candidate exercises for one difficulty level.
type ExerciseQuery struct {
	SourceLang string
	TargetLang string
	Difficulty Level
	Kinds      []Kind
	Count      int
	// Exclude lists exercise IDs already issued in the current test.
	Exclude []int64
}

// ExerciseProvider returns candidate exercises. Results are unordered and
// may hold fewer than Count items.
type ExerciseProvider interface {
	FetchExercises(ctx context.Context, q ExerciseQuery) ([]Exercise, error)
}

// UserStore reads and writes a user's placement level.
type UserStore interface {
	// UserLevel returns the stored level, or "" when the user is unplaced.
	// Unknown users yield an error matching apperr.ErrUserNotFound.
	UserLevel(ctx context.Context, userID int64) (Level, error)
	SetUserLevel(ctx context.Context, userID int64, level Level) error
}

// GeneratorConfig tunes test assembly.
type GeneratorConfig struct {
	// PoolSize is how many candidates are considered per pick. The provider
	// is asked for twice as many for variety.
	PoolSize int

	// MaxPerLevel moves the cursor up once a level has contributed this
	// many questions. Zero leaves the cursor on a level until its pool
	// runs dry.
	MaxPerLevel int

	// Intn picks an index in [0, n). Defaults to math/rand/v2.IntN.
	Intn func(n int) int
}

// DefaultGeneratorConfig returns the standard pool size with an unbounded
// per-level quota.
func DefaultGeneratorConfig() GeneratorConfig {
	return GeneratorConfig{
		PoolSize: 10,
		Intn:     rand.IntN,
	}
}

// Generator assembles placement tests by walking the level ladder.
type Generator struct {
	exercises ExerciseProvider
	users     UserStore
	config    GeneratorConfig
	logger    *zap.Logger
}

// NewGenerator creates a Generator. A nil logger disables logging.
func NewGenerator(exercises ExerciseProvider, users UserStore, cfg GeneratorConfig, logger *zap.Logger) *Generator {
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = 10
	}
	if cfg.Intn == nil {
		cfg.Intn = rand.IntN
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{exercises: exercises, users: users, config: cfg, logger: logger}
}

// Generate builds up to maxQuestions questions for an unplaced user, in
// increasing difficulty. Users already placed above A1 get an empty test.
func (g *Generator) Generate(ctx context.Context, userID int64, sourceLang, targetLang string, maxQuestions int) ([]Question, error) {
	level, err := g.users.UserLevel(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("generate placement test: %w", err)
	}
	if level != "" && level != DefaultLevel {
		g.logger.Info("user already placed",
			zap.Int64("user_id", userID), zap.String("level", string(level)))
		return []Question{}, nil
	}

	questions := make([]Question, 0, max(maxQuestions, 0))
	issued := make(map[int64]bool)
	cursor := LevelA1
	atLevel := 0

	for len(questions) < maxQuestions {
		if g.config.MaxPerLevel > 0 && atLevel >= g.config.MaxPerLevel {
			next, ok := cursor.Next()
			if !ok {
				break
			}
			cursor, atLevel = next, 0
			continue
		}

		pool, err := g.pool(ctx, sourceLang, targetLang, cursor, issued)
		if err != nil {
			return nil, fmt.Errorf("fetch %s exercises: %w", cursor, err)
		}
		if len(pool) == 0 {
			g.logger.Debug("no placement exercises left", zap.String("level", string(cursor)))
			next, ok := cursor.Next()
			if !ok {
				break
			}
			cursor, atLevel = next, 0
			continue
		}

		ex := pool[g.config.Intn(len(pool))]
		questions = append(questions, newQuestion(ex, cursor))
		issued[ex.ID] = true
		atLevel++
	}

	g.logger.Info("placement test generated",
		zap.Int64("user_id", userID), zap.Int("questions", len(questions)))
	return questions, nil
}

// pool fetches up to PoolSize unissued candidates at level.
func (g *Generator) pool(ctx context.Context, sourceLang, targetLang string, level Level, issued map[int64]bool) ([]Exercise, error) {
	exclude := make([]int64, 0, len(issued))
	for id := range issued {
		exclude = append(exclude, id)
	}

	fetched, err := g.exercises.FetchExercises(ctx, ExerciseQuery{
		SourceLang: sourceLang,
		TargetLang: targetLang,
		Difficulty: level,
		Kinds:      PlacementKinds,
		Count:      g.config.PoolSize * 2,
		Exclude:    exclude,
	})
	if err != nil {
		return nil, err
	}

	pool := make([]Exercise, 0, len(fetched))
	for _, ex := range fetched {
		if issued[ex.ID] {
			continue
		}
		pool = append(pool, ex)
		if len(pool) == g.config.PoolSize {
			break
		}
	}
	return pool, nil
}

func newQuestion(ex Exercise, level Level) Question {
	return Question{
		ExerciseID:       ex.ID,
		Text:             ex.Question,
		CorrectAnswer:    ex.CorrectAnswer,
		Options:          ex.Options,
		Difficulty:       level,
		Kind:             ex.Kind,
		Points:           level.Points(),
		TimeLimitSeconds: level.TimeLimitSeconds(),
	}
}
