// Package orchestrator turns inbound WhatsApp messages into replies by
// routing them to the onboarding, placement, lesson, command and chat flows.
package orchestrator

import (
	"context"
	"time"

	"github.com/lingoloop/lingoloop/internal/apperr"
	"github.com/lingoloop/lingoloop/internal/diagnosis"
	"github.com/lingoloop/lingoloop/internal/llm"
	"github.com/lingoloop/lingoloop/internal/metrics"
	"github.com/lingoloop/lingoloop/internal/placement"
	"github.com/lingoloop/lingoloop/internal/router"
	"github.com/lingoloop/lingoloop/internal/session"
	"github.com/lingoloop/lingoloop/internal/store"
	"github.com/lingoloop/lingoloop/internal/whatsapp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("github.com/lingoloop/lingoloop/internal/orchestrator")

// UserRepository is the slice of store.UserRepo the engine needs.
type UserRepository interface {
	GetOrCreate(ctx context.Context, waID, name, phone string) (*store.User, bool, error)
	RecordActivity(ctx context.Context, userID int64) (int, error)
	IncrementLessons(ctx context.Context, userID int64) error
	SetActive(ctx context.Context, userID int64, active bool) error
}

// ExerciseRepository loads lesson exercises.
type ExerciseRepository interface {
	Get(ctx context.Context, id int64) (*store.Exercise, error)
	PickForLesson(ctx context.Context, sourceLang, targetLang, level string, exclude []int64) (*store.Exercise, error)
}

// ProgressRepository records lesson answers and reports stats.
type ProgressRepository interface {
	Record(ctx context.Context, rec placement.ProgressRecord, errorType string) error
	Stats(ctx context.Context, userID int64) (*store.UserStats, error)
	RecentExerciseIDs(ctx context.Context, userID int64, n int) ([]int64, error)
}

// PlacementService builds and scores placement tests.
type PlacementService interface {
	Generate(ctx context.Context, userID int64, sourceLang, targetLang string, maxQuestions int) ([]placement.Question, error)
	Evaluate(ctx context.Context, userID int64, answers []placement.Answer, startMs, endMs int64) (*placement.Result, error)
}

// Config tunes the conversation flows.
type Config struct {
	// PlacementQuestions caps the length of a placement test.
	PlacementQuestions int

	// ChatHistory is how many history entries are sent to the tutor model.
	ChatHistory int

	// RecentExercises is how many recently answered exercises a new lesson
	// avoids.
	RecentExercises int
}

// DefaultConfig returns the standard flow settings.
func DefaultConfig() Config {
	return Config{
		PlacementQuestions: 20,
		ChatHistory:        10,
		RecentExercises:    20,
	}
}

// Deps are the collaborators an Engine talks to. LLM may be nil, in which
// case chat falls back to canned replies. Sender may be nil when only
// Handle is used.
type Deps struct {
	Users     UserRepository
	Exercises ExerciseRepository
	Progress  ProgressRepository
	Placement PlacementService
	Sessions  *session.Manager
	LLM       llm.Provider
	Sender    whatsapp.Sender
}

// Engine handles one inbound message at a time per user.
type Engine struct {
	deps        Deps
	cfg         Config
	classifiers []diagnosis.Classifier
	now         func() time.Time
	logger      *zap.Logger
}

// New creates an Engine.
func New(deps Deps, cfg Config, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.PlacementQuestions <= 0 {
		cfg.PlacementQuestions = DefaultConfig().PlacementQuestions
	}
	return &Engine{
		deps:        deps,
		cfg:         cfg,
		classifiers: diagnosis.DefaultClassifiers(),
		now:         time.Now,
		logger:      logger,
	}
}

// turn carries the state of one message through its handler.
type turn struct {
	msg     *whatsapp.InboundMessage
	user    *store.User
	sess    *session.Session
	text    string
	at      time.Time
	created bool
}

// Handle processes msg and returns the reply text. On failure the reply is
// a generic apology and the error says what went wrong.
func (e *Engine) Handle(ctx context.Context, msg *whatsapp.InboundMessage) (string, error) {
	ctx, span := tracer.Start(ctx, "orchestrator.Handle")
	defer span.End()

	user, created, err := e.deps.Users.GetOrCreate(ctx, msg.From, msg.Name, msg.From)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return whatsapp.ErrorText, apperr.New(apperr.ErrOrchestrator, "load user", err)
	}
	sess, _, err := e.deps.Sessions.GetOrCreate(ctx, user.ID)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return whatsapp.ErrorText, apperr.New(apperr.ErrSession, "load session", err)
	}
	if sess.Level == "" {
		sess.Level = user.LevelOrEmpty()
	}

	t := &turn{msg: msg, user: user, sess: sess, text: msg.Text, at: msg.Timestamp, created: created}
	if t.at.IsZero() {
		t.at = e.now()
	}

	intent := router.Classify(msg.Text, sess, created)
	metrics.MessagesProcessed.WithLabelValues(string(intent)).Inc()
	span.SetAttributes(
		attribute.Int64("user_id", user.ID),
		attribute.String("intent", string(intent)),
	)
	e.logger.Debug("message routed",
		zap.Int64("user_id", user.ID),
		zap.String("intent", string(intent)),
		zap.String("message_id", msg.ID))

	if err := e.deps.Sessions.AddMessage(ctx, sess, session.RoleUser, msg.Text); err != nil {
		e.logger.Warn("failed to store user message", zap.Int64("user_id", user.ID), zap.Error(err))
	}

	reply, err := e.dispatch(ctx, intent, t)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		e.logger.Error("message handling failed",
			zap.Int64("user_id", user.ID),
			zap.String("intent", string(intent)),
			zap.Error(err))
		return whatsapp.ErrorText, apperr.New(apperr.ErrOrchestrator, string(intent), err)
	}

	if err := e.deps.Sessions.AddMessage(ctx, sess, session.RoleAssistant, reply); err != nil {
		return reply, apperr.New(apperr.ErrSession, "save session", err)
	}
	return reply, nil
}

// Process handles msg and sends the reply. Errors are logged; the user
// always receives a reply when a Sender is configured.
func (e *Engine) Process(ctx context.Context, msg *whatsapp.InboundMessage) {
	reply, err := e.Handle(ctx, msg)
	if err != nil {
		e.logger.Warn("replying with fallback", zap.String("from", msg.From), zap.Error(err))
	}
	if reply == "" || e.deps.Sender == nil {
		return
	}
	if err := e.deps.Sender.Send(ctx, msg.From, reply); err != nil {
		e.logger.Error("failed to send reply", zap.String("to", msg.From), zap.Error(err))
	}
}

func (e *Engine) dispatch(ctx context.Context, intent router.Intent, t *turn) (string, error) {
	switch intent {
	case router.IntentOnboarding:
		return e.onboard(ctx, t)
	case router.IntentStartPlacement:
		return e.startPlacement(ctx, t)
	case router.IntentPlacementAnswer:
		return e.answerPlacement(ctx, t)
	case router.IntentStartLesson:
		return e.startLesson(ctx, t)
	case router.IntentLessonAnswer:
		return e.answerLesson(ctx, t)
	case router.IntentCommand:
		return e.command(ctx, t)
	case router.IntentMenuSelection:
		return e.menuSelection(ctx, t)
	case router.IntentGreeting:
		return e.greet(ctx, t)
	default:
		return e.chat(ctx, t)
	}
}
