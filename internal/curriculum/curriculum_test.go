package curriculum

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lingoloop/lingoloop/internal/llm"
	"github.com/lingoloop/lingoloop/internal/store"
)

func openStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func validContentJSON() json.RawMessage {
	return json.RawMessage(`{
		"theory": "Use \"at\" with clock times: at seven, at noon.",
		"exercise_introduction": "Choose the option that completes the sentence.",
		"exercise_input": "I start work ___ nine. [1] at [2] on [3] in",
		"expected_output": "1"
	}`)
}

func verdictJSON(result string, score float64) json.RawMessage {
	b, _ := json.Marshal(map[string]any{
		"overall_score": score,
		"content_score": score,
		"schema_score":  score,
		"quality_score": score,
		"result":        result,
		"feedback":      "ok",
		"suggestions":   []string{},
	})
	return b
}

// routedProvider answers by schema so concurrent generate and judge calls
// cannot take each other's responses.
type routedProvider struct {
	mu      sync.Mutex
	verdict func(call int) json.RawMessage
	genErr  func(call int) error
	gens    int
	judges  int
}

func (p *routedProvider) Generate(_ context.Context, req llm.Request) (*llm.Response, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch req.Schema {
	case ContentSchema:
		p.gens++
		if p.genErr != nil {
			if err := p.genErr(p.gens); err != nil {
				return nil, err
			}
		}
		return &llm.Response{Content: validContentJSON()}, nil
	case JudgeSchema:
		p.judges++
		return &llm.Response{Content: p.verdict(p.judges)}, nil
	}
	return nil, errors.New("unexpected schema")
}

func (p *routedProvider) ModelID() string { return "routed" }

func newOrchestrator(t *testing.T, st *store.Store, provider llm.Provider) *Orchestrator {
	t.Helper()
	o, err := NewOrchestrator(Deps{
		Combinations: st.Curriculum(),
		Schemas:      st.Schemas(),
		Generated:    st.Generated(),
		Logs:         st.GenerationLogs(),
		LLM:          provider,
	}, DefaultGeneratorConfig(), nil)
	require.NoError(t, err)
	return o
}

func seed(t *testing.T, st *store.Store) {
	t.Helper()
	cat, err := DefaultCatalog()
	require.NoError(t, err)
	_, err = Seed(context.Background(), cat, st.Curriculum(), st.Schemas(), nil)
	require.NoError(t, err)
}

func TestDefaultCatalog(t *testing.T) {
	cat, err := DefaultCatalog()
	require.NoError(t, err)

	assert.Len(t, cat.LanguagePairs, 4)
	assert.Len(t, cat.Levels, 6)
	combos := cat.Combinations(DefaultTarget)
	// 2 pairs x 1 level x 3 categories x 3 types x 4 topics
	assert.Len(t, combos, 72)

	first := combos[0]
	assert.Equal(t, "LANG_001_LEVEL_B1_CAT_VOCAB_EX_MCQ_TOPIC_DAILY", first.ID)
	assert.Equal(t, store.StatusPending, first.GenerationStatus)
	assert.Equal(t, DefaultTarget, first.ExercisesTarget)
}

func TestComboPriority_PairThenTopic(t *testing.T) {
	assert.Greater(t, comboPriority(1, 4), comboPriority(2, 1), "pair rank dominates")
	assert.Greater(t, comboPriority(1, 1), comboPriority(1, 2))
}

func TestParseCatalog_RejectsEmptyDimension(t *testing.T) {
	_, err := ParseCatalog([]byte("language_pairs: []\n"))
	assert.Error(t, err)
}

func TestDescribe(t *testing.T) {
	cat, err := DefaultCatalog()
	require.NoError(t, err)

	spec := cat.Describe(store.Combination{
		ID:             "x",
		LanguagePairID: "LANG_002",
		LevelID:        "LEVEL_B1",
		CategoryID:     "CAT_GRAMMAR",
		ExerciseTypeID: "EX_FILL",
		TopicID:        "TOPIC_UNKNOWN",
	})
	assert.Equal(t, "pt", spec.SourceLang)
	assert.Equal(t, "en", spec.TargetLang)
	assert.Equal(t, "B1", spec.Level)
	assert.Equal(t, "Intermediate", spec.LevelName)
	assert.Equal(t, "fill_blank", spec.ExerciseType)
	assert.Equal(t, "TOPIC_UNKNOWN", spec.Topic)
}

func TestSeed_Idempotent(t *testing.T) {
	st := openStore(t)
	cat, err := DefaultCatalog()
	require.NoError(t, err)
	ctx := context.Background()

	res, err := Seed(ctx, cat, st.Curriculum(), st.Schemas(), nil)
	require.NoError(t, err)
	assert.Equal(t, 72, res.Inserted)
	assert.Equal(t, 6, res.Schemas)

	res, err = Seed(ctx, cat, st.Curriculum(), st.Schemas(), nil)
	require.NoError(t, err)
	assert.Equal(t, 72, res.Combinations)
	assert.Equal(t, 0, res.Inserted)

	stats, err := st.Curriculum().Statistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 72, stats.Total)
	assert.Equal(t, 72, stats.Pending)

	schema, err := st.Schemas().ForType(ctx, "EX_MCQ")
	require.NoError(t, err)
	require.NotNil(t, schema)
	assert.NotEmpty(t, schema.InputFormat)
}

func TestGenerator_Generate(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockResponse{Content: validContentJSON()})
	gen := NewGenerator(mock, DefaultGeneratorConfig())
	schema := &store.ExerciseSchema{ExerciseType: "EX_MCQ", InputFormat: "Sentence with ___", ValidationRules: "one answer"}

	c, err := gen.Generate(context.Background(), Spec{PairName: "Spanish to English", Level: "B1", Topic: "Work"}, schema, 3)
	require.NoError(t, err)
	assert.Equal(t, "1", c.ExpectedOutput)

	require.Equal(t, 1, mock.CallCount())
	req := mock.Calls()[0]
	assert.Equal(t, ContentSchema, req.Schema)
	msg := req.Messages[0].Content
	assert.Contains(t, msg, "Variation: 3")
	assert.Contains(t, msg, "Sentence with ___")
	assert.Contains(t, msg, "Rules: one answer")
}

func TestGenerator_ValidationFailure(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockResponse{Content: json.RawMessage(`{
		"theory": "Some theory text here.",
		"exercise_introduction": "Do it.",
		"exercise_input": "same",
		"expected_output": "SAME"
	}`)})
	gen := NewGenerator(mock, DefaultGeneratorConfig())

	_, err := gen.Generate(context.Background(), Spec{}, nil, 1)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "structural", verr.Validator)
}

func TestGenerator_SchemaMismatch(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockResponse{Content: json.RawMessage(`{"theory": "only one field"}`)})
	gen := NewGenerator(mock, DefaultGeneratorConfig())

	_, err := gen.Generate(context.Background(), Spec{}, nil, 1)
	var invalid *llm.ErrInvalidResponse
	assert.ErrorAs(t, err, &invalid)
}

func TestStructuralValidator(t *testing.T) {
	good := Content{
		Theory:               "Clock times take at.",
		ExerciseIntroduction: "Pick one.",
		ExerciseInput:        "___ nine",
		ExpectedOutput:       "at",
	}
	v := &StructuralValidator{}
	assert.Nil(t, v.Validate(&good, nil))

	tests := []struct {
		name   string
		mutate func(*Content)
		want   string
	}{
		{"empty theory", func(c *Content) { c.Theory = "" }, "theory is empty"},
		{"short theory", func(c *Content) { c.Theory = "short" }, "theory is shorter"},
		{"long input", func(c *Content) { c.ExerciseInput = strings.Repeat("x", 1001) }, "exercise_input exceeds"},
		{"answer copies input", func(c *Content) { c.ExpectedOutput = c.ExerciseInput }, "repeats"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := good
			tt.mutate(&c)
			verr := v.Validate(&c, nil)
			require.NotNil(t, verr)
			assert.Contains(t, verr.Message, tt.want)
		})
	}
}

func TestJudge_Evaluate(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockResponse{Content: verdictJSON("good", 0.7)})
	j := NewJudge(mock)

	ev := j.Evaluate(context.Background(), Spec{Topic: "Food"}, nil, &Content{ExerciseInput: "in", ExpectedOutput: "out"}, 2)
	assert.Equal(t, ResultGood, ev.Result)
	assert.InDelta(t, 0.7, ev.OverallScore, 1e-9)
	assert.True(t, ev.Result.Accepted())
	assert.Equal(t, JudgeSchema, mock.Calls()[0].Schema)
}

func TestJudge_ErrorRejects(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockResponse{Err: errors.New("boom")})
	ev := NewJudge(mock).Evaluate(context.Background(), Spec{}, nil, &Content{}, 1)

	assert.Equal(t, ResultRejected, ev.Result)
	assert.Zero(t, ev.OverallScore)
	assert.Contains(t, ev.Feedback, "boom")
}

func TestResultAccepted(t *testing.T) {
	want := map[Result]bool{
		ResultExcellent:        true,
		ResultGood:             true,
		ResultAcceptable:       true,
		ResultNeedsImprovement: false,
		ResultRejected:         false,
	}
	for _, r := range Verdicts {
		assert.Equal(t, want[r], r.Accepted(), string(r))
	}
}

func TestVerdictsBestFirst(t *testing.T) {
	require.Len(t, Verdicts, 5)
	assert.Equal(t, ResultExcellent, Verdicts[0])
	assert.Equal(t, ResultRejected, Verdicts[len(Verdicts)-1])

	var res Results
	assert.Zero(t, res.Duration())
}

func TestSummarize(t *testing.T) {
	s := Summarize([]Evaluation{
		{OverallScore: 0.9, ContentScore: 1, Result: ResultExcellent},
		{OverallScore: 0.5, ContentScore: 0.5, Result: ResultAcceptable},
		{OverallScore: 0.1, Result: ResultRejected},
		{OverallScore: 0.3, ContentScore: 0.5, Result: ResultNeedsImprovement},
	})
	assert.Equal(t, 4, s.Total)
	assert.Equal(t, 2, s.Accepted)
	assert.InDelta(t, 0.5, s.AcceptanceRate, 1e-9)
	assert.InDelta(t, 0.45, s.AvgOverall, 1e-9)
	assert.InDelta(t, 0.5, s.AvgContent, 1e-9)
	assert.Equal(t, 1, s.Distribution[ResultRejected])

	assert.Zero(t, Summarize(nil).Total)
}

func TestRun_DryRun(t *testing.T) {
	st := openStore(t)
	seed(t, st)
	provider := llm.NewMockProvider()
	o := newOrchestrator(t, st, provider)

	res, err := o.Run(context.Background(), BatchOptions{BatchSize: 3, Variations: 2, DryRun: true})
	require.NoError(t, err)
	assert.True(t, res.DryRun)
	assert.Len(t, res.Outcomes, 3)
	assert.Equal(t, 6, res.TotalRequested)
	assert.Zero(t, provider.CallCount())

	stats, err := o.Statistics(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 72, stats.Pending)
}

func TestRun_StoresAcceptedAndFinishes(t *testing.T) {
	st := openStore(t)
	seed(t, st)
	ctx := context.Background()

	// Every third verdict is a rejection.
	provider := &routedProvider{verdict: func(call int) json.RawMessage {
		if call%3 == 0 {
			return verdictJSON("rejected", 0.1)
		}
		return verdictJSON("excellent", 0.9)
	}}
	o := newOrchestrator(t, st, provider)

	res, err := o.Run(ctx, BatchOptions{BatchSize: 2, Variations: 3, Concurrency: 3})
	require.NoError(t, err)
	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, 6, res.TotalRequested)
	assert.Equal(t, 6, res.TotalGenerated)
	assert.Equal(t, 4, res.Successful)
	assert.Equal(t, 2, res.Failed)
	assert.Empty(t, res.Errors)
	assert.Equal(t, 6, res.Evaluations.Total)

	for _, out := range res.Outcomes {
		assert.Equal(t, store.StatusCompleted, out.Status)
		stored, err := st.Generated().ForCombination(ctx, out.Combination.ID)
		require.NoError(t, err)
		assert.Len(t, stored, out.Accepted)

		combo, err := st.Curriculum().Get(ctx, out.Combination.ID)
		require.NoError(t, err)
		assert.Equal(t, store.StatusCompleted, combo.GenerationStatus)
		assert.Equal(t, out.Accepted, combo.ExercisesGenerated)
		assert.NotNil(t, combo.LastGenerated)
	}

	logs, err := st.GenerationLogs().ForRun(ctx, res.RunID)
	require.NoError(t, err)
	assert.Len(t, logs, 2)

	stats, err := o.Statistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Completed)
	assert.Equal(t, 70, stats.Pending)
	assert.Equal(t, 4, stats.ExercisesGenerated)
}

func TestRun_AllRejectedMarksFailed(t *testing.T) {
	st := openStore(t)
	seed(t, st)
	ctx := context.Background()

	provider := &routedProvider{
		verdict: func(int) json.RawMessage { return verdictJSON("excellent", 1) },
		genErr:  func(int) error { return &llm.ErrProviderUnavailable{Err: errors.New("down")} },
	}
	o := newOrchestrator(t, st, provider)

	res, err := o.Run(ctx, BatchOptions{BatchSize: 1, Variations: 2, Concurrency: 1})
	require.NoError(t, err)
	require.Len(t, res.Outcomes, 1)
	assert.Equal(t, store.StatusFailed, res.Outcomes[0].Status)
	assert.Len(t, res.Errors, 2)
	assert.Zero(t, res.Successful)

	logs, err := st.GenerationLogs().ForRun(ctx, res.RunID)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, store.StatusFailed, logs[0].Status)
	assert.NotEmpty(t, logs[0].Error)

	// The failed combination is not picked again.
	next, err := o.PreviewNextBatch(ctx, 1)
	require.NoError(t, err)
	require.Len(t, next, 1)
	assert.NotEqual(t, res.Outcomes[0].Combination.ID, next[0].Combination.ID)
}

func TestPreviewNextBatch_HighestPriorityFirst(t *testing.T) {
	st := openStore(t)
	seed(t, st)
	o := newOrchestrator(t, st, llm.NewMockProvider())

	planned, err := o.PreviewNextBatch(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, planned, 5)
	for _, p := range planned {
		assert.Equal(t, "LANG_001", p.Combination.LanguagePairID)
		assert.Equal(t, "TOPIC_DAILY", p.Combination.TopicID)
		assert.Equal(t, "Spanish to English", p.Spec.PairName)
	}
}

func TestRun_ResetsStaleInProgress(t *testing.T) {
	st := openStore(t)
	seed(t, st)
	ctx := context.Background()

	provider := &routedProvider{verdict: func(int) json.RawMessage { return verdictJSON("good", 0.7) }}
	o := newOrchestrator(t, st, provider)

	planned, err := o.PreviewNextBatch(ctx, 1)
	require.NoError(t, err)
	stuck := planned[0].Combination.ID
	require.NoError(t, st.Curriculum().SetStatus(ctx, stuck, store.StatusInProgress))

	res, err := o.Run(ctx, BatchOptions{BatchSize: 1, Variations: 1})
	require.NoError(t, err)
	require.Len(t, res.Outcomes, 1)
	assert.Equal(t, stuck, res.Outcomes[0].Combination.ID)
}
