package orchestrator

import (
	"context"
	"fmt"

	"github.com/lingoloop/lingoloop/internal/diagnosis"
	"github.com/lingoloop/lingoloop/internal/placement"
	"github.com/lingoloop/lingoloop/internal/router"
	"github.com/lingoloop/lingoloop/internal/session"
	"github.com/lingoloop/lingoloop/internal/whatsapp"
	"go.uber.org/zap"
)

func (e *Engine) onboard(ctx context.Context, t *turn) (string, error) {
	t.sess.State = session.StateOnboarding
	welcome := whatsapp.WelcomeText(t.user.Name)

	next, err := e.startPlacement(ctx, t)
	if err != nil {
		return "", err
	}
	return welcome + "\n\n" + next, nil
}

func (e *Engine) startPlacement(ctx context.Context, t *turn) (string, error) {
	t.sess.EndLesson()

	questions, err := e.deps.Placement.Generate(ctx, t.user.ID, t.user.NativeLang, t.user.TargetLang, e.cfg.PlacementQuestions)
	if err != nil {
		return "", fmt.Errorf("generate placement test: %w", err)
	}
	if len(questions) == 0 {
		t.sess.State = session.StateIdle
		if level := t.user.LevelOrEmpty(); level != "" {
			return whatsapp.AlreadyPlacedText(level), nil
		}
		return whatsapp.NoPlacementText, nil
	}

	now := e.now()
	t.sess.State = session.StatePlacement
	t.sess.Placement = &session.Placement{
		Questions: questions,
		StartedAt: now,
		AskedAt:   now,
	}
	e.logger.Info("placement test started",
		zap.Int64("user_id", t.user.ID),
		zap.Int("questions", len(questions)))
	return whatsapp.QuestionText(questions[0], 0, len(questions)), nil
}

func (e *Engine) answerPlacement(ctx context.Context, t *turn) (string, error) {
	p := t.sess.Placement
	if router.Normalize(t.text) == router.CommandStop {
		t.sess.EndPlacement()
		return whatsapp.GoodbyeText, nil
	}

	q := p.Current()
	p.Answers = append(p.Answers, placement.Answer{
		ExerciseID:     q.ExerciseID,
		RawAnswer:      whatsapp.ResolveOption(q.Options, t.text),
		ResponseTimeMs: t.at.Sub(p.AskedAt).Milliseconds(),
	})
	p.Index++
	p.AskedAt = e.now()

	if next := p.Current(); next != nil {
		return whatsapp.QuestionText(*next, p.Index, len(p.Questions)), nil
	}

	res, err := e.deps.Placement.Evaluate(ctx, t.user.ID, p.Answers,
		p.StartedAt.UnixMilli(), t.at.UnixMilli())
	if err != nil {
		return "", fmt.Errorf("score placement test: %w", err)
	}
	t.sess.Level = string(res.RecommendedLevel)
	t.sess.EndPlacement()
	return whatsapp.PlacementResultText(res), nil
}

func (e *Engine) startLesson(ctx context.Context, t *turn) (string, error) {
	level := t.sess.Level
	if level == "" {
		level = string(placement.DefaultLevel)
	}

	recent, err := e.deps.Progress.RecentExerciseIDs(ctx, t.user.ID, e.cfg.RecentExercises)
	if err != nil {
		return "", fmt.Errorf("load recent exercises: %w", err)
	}
	ex, err := e.deps.Exercises.PickForLesson(ctx, t.user.NativeLang, t.user.TargetLang, level, recent)
	if err != nil {
		return "", fmt.Errorf("pick lesson exercise: %w", err)
	}
	if ex == nil && len(recent) > 0 {
		// Everything at this level was seen recently; allow repeats.
		ex, err = e.deps.Exercises.PickForLesson(ctx, t.user.NativeLang, t.user.TargetLang, level, nil)
		if err != nil {
			return "", fmt.Errorf("pick lesson exercise: %w", err)
		}
	}
	if ex == nil {
		t.sess.EndLesson()
		return whatsapp.NoExercisesText, nil
	}

	t.sess.State = session.StateLesson
	t.sess.InLesson = true
	t.sess.CurrentExerciseID = ex.ID
	t.sess.LessonAskedAt = e.now()

	header := fmt.Sprintf("📖 *Lesson* (%s)", level)
	if ex.Topic != "" {
		header = fmt.Sprintf("📖 *%s* (%s)", ex.Topic, level)
	}
	return header + "\n\n" + whatsapp.ExerciseText(ex.Question, ex.Options), nil
}

func (e *Engine) answerLesson(ctx context.Context, t *turn) (string, error) {
	ex, err := e.deps.Exercises.Get(ctx, t.sess.CurrentExerciseID)
	if err != nil {
		return "", fmt.Errorf("load lesson exercise: %w", err)
	}
	if ex == nil {
		t.sess.EndLesson()
		return whatsapp.NoExercisesText, nil
	}

	answer := whatsapp.ResolveOption(ex.Options, t.text)
	q := placement.Question{
		ExerciseID:    ex.ID,
		Text:          ex.Question,
		CorrectAnswer: ex.CorrectAnswer,
		Options:       ex.Options,
		Kind:          placement.Kind(ex.ExerciseType),
	}
	correct := placement.IsCorrect(&q, answer)

	rec := placement.ProgressRecord{
		UserID:         t.user.ID,
		ExerciseID:     ex.ID,
		IsCorrect:      correct,
		RawAnswer:      answer,
		ResponseTimeMs: t.at.Sub(t.sess.LessonAskedAt).Milliseconds(),
	}
	errorType := ""
	if !correct {
		errorType = string(e.diagnose(ctx, rec, ex.CorrectAnswer))
	}
	if err := e.deps.Progress.Record(ctx, rec, errorType); err != nil {
		e.logger.Warn("failed to record lesson progress",
			zap.Int64("user_id", t.user.ID),
			zap.Int64("exercise_id", ex.ID),
			zap.Error(err))
	}

	streak, err := e.deps.Users.RecordActivity(ctx, t.user.ID)
	if err != nil {
		return "", fmt.Errorf("record activity: %w", err)
	}
	t.sess.Streak = streak
	if correct {
		if err := e.deps.Users.IncrementLessons(ctx, t.user.ID); err != nil {
			return "", fmt.Errorf("increment lessons: %w", err)
		}
		t.sess.LessonsCompleted = t.user.LessonsCompleted + 1
	}

	t.sess.EndLesson()
	return whatsapp.FeedbackText(correct, answer, ex.CorrectAnswer, ex.Explanation), nil
}

func (e *Engine) command(ctx context.Context, t *turn) (string, error) {
	switch router.Normalize(t.text) {
	case router.CommandHelp:
		return whatsapp.HelpText, nil
	case router.CommandProgress:
		return e.progress(ctx, t)
	case router.CommandStreak:
		return whatsapp.StreakText(t.user.StreakDays), nil
	case router.CommandStop:
		t.sess.EndLesson()
		t.sess.EndPlacement()
		if err := e.deps.Users.SetActive(ctx, t.user.ID, false); err != nil {
			return "", fmt.Errorf("deactivate user: %w", err)
		}
		return whatsapp.GoodbyeText, nil
	case router.CommandStart:
		if err := e.deps.Users.SetActive(ctx, t.user.ID, true); err != nil {
			return "", fmt.Errorf("activate user: %w", err)
		}
		return whatsapp.ResumeText, nil
	default:
		return whatsapp.MenuText, nil
	}
}

func (e *Engine) progress(ctx context.Context, t *turn) (string, error) {
	stats, err := e.deps.Progress.Stats(ctx, t.user.ID)
	if err != nil {
		return "", fmt.Errorf("load stats: %w", err)
	}
	return whatsapp.ProgressText(t.user.StreakDays, t.user.LessonsCompleted, t.sess.Level, stats.Accuracy), nil
}

// menuSelection answers a lettered option inside a lesson and otherwise
// maps numbers onto the main menu.
func (e *Engine) menuSelection(ctx context.Context, t *turn) (string, error) {
	if t.sess.InLesson {
		return e.answerLesson(ctx, t)
	}
	switch router.Normalize(t.text) {
	case "1":
		return e.startLesson(ctx, t)
	case "2":
		return e.startPlacement(ctx, t)
	case "3":
		return e.progress(ctx, t)
	case "4":
		return whatsapp.HelpText, nil
	}
	return whatsapp.SelectionText(t.text), nil
}

func (e *Engine) greet(ctx context.Context, t *turn) (string, error) {
	if e.deps.LLM == nil {
		return whatsapp.GreetingText(t.user.Name), nil
	}
	return e.chat(ctx, t)
}

// diagnose classifies a wrong lesson answer against the learner's history.
// History is best effort: without it only the text and timing rules apply.
func (e *Engine) diagnose(ctx context.Context, rec placement.ProgressRecord, expected string) diagnosis.Category {
	in := diagnosis.Input{
		Answer:         rec.RawAnswer,
		Expected:       expected,
		ResponseTimeMs: rec.ResponseTimeMs,
	}
	if stats, err := e.deps.Progress.Stats(ctx, rec.UserID); err == nil {
		in.Accuracy = stats.Accuracy / 100
		in.Answered = stats.TotalAnswers
	}
	res := diagnosis.Classify(e.classifiers, &in)
	e.logger.Debug("lesson answer diagnosed",
		zap.Int64("user_id", rec.UserID),
		zap.Int64("exercise_id", rec.ExerciseID),
		zap.String("category", string(res.Category)),
		zap.Float64("confidence", res.Confidence))
	return res.Category
}
