package curriculum

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/lingoloop/lingoloop/internal/apperr"
	"github.com/lingoloop/lingoloop/internal/llm"
	"github.com/lingoloop/lingoloop/internal/metrics"
	"github.com/lingoloop/lingoloop/internal/store"
)

var tracer = otel.Tracer("github.com/lingoloop/lingoloop/internal/curriculum")

// CombinationRepo is the curriculum matrix as the batch driver uses it.
type CombinationRepo interface {
	Pending(ctx context.Context, limit int) ([]store.Combination, error)
	SetStatus(ctx context.Context, id, status string) error
	Finish(ctx context.Context, id, status string, generated int) error
	ResetInProgress(ctx context.Context) (int, error)
	Statistics(ctx context.Context) (*store.CurriculumStats, error)
}

// GeneratedRepo stores accepted exercises.
type GeneratedRepo interface {
	Create(ctx context.Context, g *store.GeneratedExercise) error
}

// LogRepo records one row per processed combination.
type LogRepo interface {
	Append(ctx context.Context, l store.GenerationLog) error
}

// Deps are the collaborators of an Orchestrator.
type Deps struct {
	Catalog      *Catalog
	Combinations CombinationRepo
	Schemas      SchemaStore
	Generated    GeneratedRepo
	Logs         LogRepo
	LLM          llm.Provider
}

// BatchOptions controls one Run.
type BatchOptions struct {
	BatchSize   int
	Variations  int
	Concurrency int
	DryRun      bool
	Verbose     bool
}

// DefaultBatchOptions returns the CLI defaults.
func DefaultBatchOptions() BatchOptions {
	return BatchOptions{BatchSize: 5, Variations: 10, Concurrency: 3}
}

func (o BatchOptions) withDefaults() BatchOptions {
	d := DefaultBatchOptions()
	if o.BatchSize <= 0 {
		o.BatchSize = d.BatchSize
	}
	if o.Variations <= 0 {
		o.Variations = d.Variations
	}
	if o.Concurrency <= 0 {
		o.Concurrency = d.Concurrency
	}
	return o
}

// Outcome is what happened to one combination in a run.
type Outcome struct {
	Combination store.Combination
	Spec        Spec
	Status      string
	Generated   int
	Accepted    int
	Rejected    int
	Errors      []string
}

// Results summarizes a Run. Exercise counts are per variation: Successful
// variations were accepted by the judge and stored, Failed ones were not.
type Results struct {
	RunID          string
	DryRun         bool
	TotalRequested int
	TotalGenerated int
	Successful     int
	Failed         int
	Errors         []string
	Outcomes       []Outcome
	Evaluations    Summary
	StartedAt      time.Time
	EndedAt        time.Time
}

// Duration is the wall time of the run.
func (r *Results) Duration() time.Duration {
	return r.EndedAt.Sub(r.StartedAt)
}

// Orchestrator fills pending combinations with judged content.
type Orchestrator struct {
	deps      Deps
	generator *Generator
	judge     *Judge
	now       func() time.Time
	logger    *zap.Logger
}

// NewOrchestrator creates an Orchestrator. A nil Catalog uses the built-in
// one.
func NewOrchestrator(deps Deps, genCfg GeneratorConfig, logger *zap.Logger) (*Orchestrator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Catalog == nil {
		cat, err := DefaultCatalog()
		if err != nil {
			return nil, err
		}
		deps.Catalog = cat
	}
	return &Orchestrator{
		deps:      deps,
		generator: NewGenerator(deps.LLM, genCfg),
		judge:     NewJudge(deps.LLM),
		now:       time.Now,
		logger:    logger,
	}, nil
}

// Planned is a pending combination with its readable description.
type Planned struct {
	Combination store.Combination
	Spec        Spec
}

// PreviewNextBatch lists the combinations the next Run would take.
func (o *Orchestrator) PreviewNextBatch(ctx context.Context, n int) ([]Planned, error) {
	combos, err := o.deps.Combinations.Pending(ctx, n)
	if err != nil {
		return nil, err
	}
	out := make([]Planned, len(combos))
	for i, c := range combos {
		out[i] = Planned{Combination: c, Spec: o.deps.Catalog.Describe(c)}
	}
	return out, nil
}

// Statistics reports progress across the whole matrix.
func (o *Orchestrator) Statistics(ctx context.Context) (*store.CurriculumStats, error) {
	return o.deps.Combinations.Statistics(ctx)
}

// Run takes the next pending combinations and generates opts.Variations
// exercises for each. Per-combination failures are recorded in the
// results; only failures to read the matrix are returned as errors.
func (o *Orchestrator) Run(ctx context.Context, opts BatchOptions) (*Results, error) {
	opts = opts.withDefaults()
	res := &Results{RunID: uuid.NewString(), DryRun: opts.DryRun, StartedAt: o.now()}

	ctx, span := tracer.Start(ctx, "curriculum.Run", trace.WithAttributes(
		attribute.String("run_id", res.RunID),
		attribute.Int("batch_size", opts.BatchSize),
		attribute.Bool("dry_run", opts.DryRun)))
	defer span.End()

	if !opts.DryRun {
		// Rows left in progress by an interrupted run go back in the queue.
		if n, err := o.deps.Combinations.ResetInProgress(ctx); err != nil {
			return nil, apperr.New(apperr.ErrContentGeneration, "reset stale combinations", err)
		} else if n > 0 {
			o.logger.Warn("reset stale in-progress combinations", zap.Int("count", n))
		}
	}

	combos, err := o.deps.Combinations.Pending(ctx, opts.BatchSize)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, apperr.New(apperr.ErrContentGeneration, "load pending combinations", err)
	}
	res.TotalRequested = len(combos) * opts.Variations

	o.logger.Info("curriculum batch started",
		zap.String("run_id", res.RunID),
		zap.Int("combinations", len(combos)),
		zap.Int("variations", opts.Variations),
		zap.Bool("dry_run", opts.DryRun))

	if opts.DryRun {
		for _, c := range combos {
			res.Outcomes = append(res.Outcomes, Outcome{
				Combination: c,
				Spec:        o.deps.Catalog.Describe(c),
				Status:      c.GenerationStatus,
			})
		}
		res.EndedAt = o.now()
		return res, nil
	}

	sem := semaphore.NewWeighted(int64(opts.Concurrency))
	var evals []Evaluation
	for _, c := range combos {
		out, ev := o.runCombination(ctx, res.RunID, c, opts, sem)
		res.Outcomes = append(res.Outcomes, out)
		res.TotalGenerated += out.Generated
		res.Successful += out.Accepted
		res.Errors = append(res.Errors, out.Errors...)
		evals = append(evals, ev...)
	}
	res.Failed = res.TotalRequested - res.Successful
	res.Evaluations = Summarize(evals)
	res.EndedAt = o.now()

	o.logger.Info("curriculum batch finished",
		zap.String("run_id", res.RunID),
		zap.Int("requested", res.TotalRequested),
		zap.Int("generated", res.TotalGenerated),
		zap.Int("accepted", res.Successful),
		zap.Int("errors", len(res.Errors)),
		zap.Duration("duration", res.Duration()))
	return res, nil
}

// runCombination generates, judges and stores every variation of c. LLM
// work runs concurrently under sem; bookkeeping is serialized by mu.
func (o *Orchestrator) runCombination(ctx context.Context, runID string, c store.Combination, opts BatchOptions, sem *semaphore.Weighted) (Outcome, []Evaluation) {
	ctx, span := tracer.Start(ctx, "curriculum.combination",
		trace.WithAttributes(attribute.String("combination", c.ID)))
	defer span.End()

	spec := o.deps.Catalog.Describe(c)
	out := Outcome{Combination: c, Spec: spec}
	started := o.now()
	logger := o.logger.With(zap.String("run_id", runID), zap.String("combination", c.ID))

	if err := o.deps.Combinations.SetStatus(ctx, c.ID, store.StatusInProgress); err != nil {
		out.Status = store.StatusFailed
		out.Errors = append(out.Errors, fmt.Sprintf("%s: %v", c.ID, err))
		return out, nil
	}

	schema, err := o.deps.Schemas.ForType(ctx, c.ExerciseTypeID)
	if err != nil {
		logger.Warn("schema lookup failed, using generic layout", zap.Error(err))
	} else if schema == nil {
		logger.Warn("no schema for exercise type, using generic layout", zap.String("exercise_type", c.ExerciseTypeID))
	}

	var (
		mu    sync.Mutex
		wg    sync.WaitGroup
		evals []Evaluation
	)
	fail := func(variation int, err error) {
		mu.Lock()
		defer mu.Unlock()
		out.Errors = append(out.Errors, fmt.Sprintf("%s variation %d: %v", c.ID, variation, err))
	}

	for v := 1; v <= opts.Variations; v++ {
		if err := sem.Acquire(ctx, 1); err != nil {
			fail(v, err)
			break
		}
		wg.Add(1)
		go func(variation int) {
			defer wg.Done()
			content, ev, err := o.generateOne(ctx, spec, schema, variation, sem)
			if err != nil {
				metrics.CurriculumExercises.WithLabelValues("invalid").Inc()
				fail(variation, err)
				logger.Debug("variation failed", zap.Int("variation", variation), zap.Error(err))
				return
			}
			metrics.CurriculumExercises.WithLabelValues(string(ev.Result)).Inc()

			mu.Lock()
			defer mu.Unlock()
			out.Generated++
			evals = append(evals, ev)
			if !ev.Result.Accepted() {
				out.Rejected++
				o.logVariation(logger, opts, variation, ev)
				return
			}
			g := &store.GeneratedExercise{
				CurriculumID:         c.ID,
				Variation:            variation,
				Theory:               content.Theory,
				ExerciseIntroduction: content.ExerciseIntroduction,
				ExerciseInput:        content.ExerciseInput,
				ExpectedOutput:       content.ExpectedOutput,
				JudgeScore:           ev.OverallScore,
				JudgeResult:          string(ev.Result),
				JudgeFeedback:        ev.Feedback,
			}
			if err := o.deps.Generated.Create(ctx, g); err != nil {
				out.Errors = append(out.Errors, fmt.Sprintf("%s variation %d: %v", c.ID, variation, err))
				return
			}
			out.Accepted++
			o.logVariation(logger, opts, variation, ev)
		}(v)
	}
	wg.Wait()

	out.Status = store.StatusFailed
	if out.Accepted > 0 {
		out.Status = store.StatusCompleted
	}
	if err := o.deps.Combinations.Finish(ctx, c.ID, out.Status, out.Accepted); err != nil {
		out.Errors = append(out.Errors, fmt.Sprintf("%s: %v", c.ID, err))
	}

	entry := store.GenerationLog{
		RunID:        runID,
		CurriculumID: c.ID,
		Requested:    opts.Variations,
		Accepted:     out.Accepted,
		Rejected:     out.Rejected,
		Status:       out.Status,
		StartedAt:    started,
		FinishedAt:   o.now(),
	}
	if len(out.Errors) > 0 {
		entry.Error = out.Errors[0]
	}
	if err := o.deps.Logs.Append(ctx, entry); err != nil {
		logger.Warn("failed to write generation log", zap.Error(err))
	}

	if out.Status == store.StatusFailed {
		span.SetStatus(codes.Error, "no accepted exercises")
	}
	span.SetAttributes(attribute.Int("accepted", out.Accepted), attribute.Int("rejected", out.Rejected))
	logger.Info("combination processed",
		zap.String("status", out.Status),
		zap.Int("accepted", out.Accepted),
		zap.Int("rejected", out.Rejected),
		zap.Int("errors", len(out.Errors)))
	return out, evals
}

// generateOne holds one semaphore slot for the generate and judge calls.
func (o *Orchestrator) generateOne(ctx context.Context, spec Spec, schema *store.ExerciseSchema, variation int, sem *semaphore.Weighted) (*Content, Evaluation, error) {
	defer sem.Release(1)

	content, err := o.generator.Generate(ctx, spec, schema, variation)
	if err != nil {
		return nil, Evaluation{}, err
	}
	return content, o.judge.Evaluate(ctx, spec, schema, content, variation), nil
}

func (o *Orchestrator) logVariation(logger *zap.Logger, opts BatchOptions, variation int, ev Evaluation) {
	fields := []zap.Field{
		zap.Int("variation", variation),
		zap.String("result", string(ev.Result)),
		zap.Float64("score", ev.OverallScore),
	}
	if opts.Verbose {
		logger.Info("variation judged", append(fields, zap.String("feedback", ev.Feedback))...)
		return
	}
	logger.Debug("variation judged", fields...)
}
