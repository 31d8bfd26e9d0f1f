package curriculum

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lingoloop/lingoloop/internal/llm"
	"github.com/lingoloop/lingoloop/internal/store"
)

// Result is the judge's verdict on one exercise.
type Result string

const (
	ResultExcellent        Result = "excellent"
	ResultGood             Result = "good"
	ResultAcceptable       Result = "acceptable"
	ResultNeedsImprovement Result = "needs_improvement"
	ResultRejected         Result = "rejected"
)

// Verdicts lists every verdict, best first.
var Verdicts = []Result{ResultExcellent, ResultGood, ResultAcceptable, ResultNeedsImprovement, ResultRejected}

// Accepted reports whether exercises with this verdict are kept.
func (r Result) Accepted() bool {
	return r == ResultExcellent || r == ResultGood || r == ResultAcceptable
}

// JudgeSchema is the JSON shape of a judge verdict.
var JudgeSchema = &llm.Schema{
	Name:        "exercise-evaluation",
	Description: "Scores and verdict for one generated language exercise",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"overall_score": score("Weighted overall score"),
			"content_score": score("Language accuracy and fit to level, topic and category"),
			"schema_score":  score("All four fields present and in the required formats"),
			"quality_score": score("Clarity, engagement and completeness"),
			"result": map[string]any{
				"type": "string",
				"enum": []any{"excellent", "good", "acceptable", "needs_improvement", "rejected"},
			},
			"feedback": map[string]any{
				"type":        "string",
				"description": "Strengths and weaknesses of the exercise",
			},
			"suggestions": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "string"},
			},
		},
		"required":             []any{"overall_score", "content_score", "schema_score", "quality_score", "result", "feedback", "suggestions"},
		"additionalProperties": false,
	},
}

func score(description string) map[string]any {
	return map[string]any{
		"type":        "number",
		"minimum":     0,
		"maximum":     1,
		"description": description,
	}
}

// Evaluation is a parsed judge verdict.
type Evaluation struct {
	OverallScore float64  `json:"overall_score"`
	ContentScore float64  `json:"content_score"`
	SchemaScore  float64  `json:"schema_score"`
	QualityScore float64  `json:"quality_score"`
	Result       Result   `json:"result"`
	Feedback     string   `json:"feedback"`
	Suggestions  []string `json:"suggestions"`
}

// Judge scores generated exercises with an LLM.
type Judge struct {
	provider llm.Provider
}

// NewJudge creates a Judge backed by provider.
func NewJudge(provider llm.Provider) *Judge {
	return &Judge{provider: provider}
}

// Evaluate never fails: when the LLM call or its output is unusable the
// exercise is rejected with zero scores and the error as feedback.
func (j *Judge) Evaluate(ctx context.Context, spec Spec, schema *store.ExerciseSchema, c *Content, variation int) Evaluation {
	ctx = llm.WithPurpose(ctx, llm.PurposeJudge)

	resp, err := j.provider.Generate(ctx, llm.Request{
		System: judgePrompt,
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: buildJudgeMessage(spec, schema, c, variation)},
		},
		Schema:    JudgeSchema,
		MaxTokens: 600,
	})
	if err != nil {
		return rejected(fmt.Sprintf("evaluation failed: %v", err))
	}

	var ev Evaluation
	if err := json.Unmarshal(resp.Content, &ev); err != nil {
		return rejected(fmt.Sprintf("unreadable evaluation: %v", err))
	}
	return ev
}

func rejected(feedback string) Evaluation {
	return Evaluation{
		Result:      ResultRejected,
		Feedback:    feedback,
		Suggestions: []string{"Regenerate the exercise"},
	}
}

const judgePrompt = `You are an expert language education evaluator. Score the exercise honestly.

Weights: content 40%, schema 30%, quality 30%.
- Content: correct target language, suitable for the level, on topic and in category.
- Schema: all four fields filled and the input and output follow the required formats.
- Quality: clear, engaging and complete.

Verdicts by overall score:
- 0.8 to 1.0 excellent
- 0.6 to 0.79 good
- 0.4 to 0.59 acceptable
- 0.2 to 0.39 needs_improvement
- below 0.2 rejected`

func buildJudgeMessage(spec Spec, schema *store.ExerciseSchema, c *Content, variation int) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Language pair: %s\n", spec.PairName)
	fmt.Fprintf(&b, "Level: %s\n", spec.Level)
	fmt.Fprintf(&b, "Category: %s\n", spec.Category)
	fmt.Fprintf(&b, "Exercise type: %s\n", spec.ExerciseType)
	fmt.Fprintf(&b, "Topic: %s\n", spec.Topic)
	fmt.Fprintf(&b, "Variation: %d\n", variation)

	b.WriteString("\nExercise:\n")
	fmt.Fprintf(&b, "Theory: %s\n", c.Theory)
	fmt.Fprintf(&b, "Introduction: %s\n", c.ExerciseIntroduction)
	fmt.Fprintf(&b, "Input: %s\n", c.ExerciseInput)
	fmt.Fprintf(&b, "Expected output: %s\n", c.ExpectedOutput)

	if schema != nil {
		b.WriteString("\nRequired formats:\n")
		fmt.Fprintf(&b, "Input: %s\n", schema.InputFormat)
		fmt.Fprintf(&b, "Output: %s\n", schema.OutputFormat)
		fmt.Fprintf(&b, "Rules: %s", schema.ValidationRules)
	}
	return b.String()
}

// Summary aggregates a set of evaluations.
type Summary struct {
	Total          int
	Accepted       int
	AcceptanceRate float64
	Distribution   map[Result]int
	AvgOverall     float64
	AvgContent     float64
	AvgSchema      float64
	AvgQuality     float64
}

// Summarize computes acceptance and average scores. An empty input gives a
// zero Summary.
func Summarize(evals []Evaluation) Summary {
	s := Summary{Distribution: make(map[Result]int)}
	if len(evals) == 0 {
		return s
	}
	for _, e := range evals {
		s.Total++
		if e.Result.Accepted() {
			s.Accepted++
		}
		s.Distribution[e.Result]++
		s.AvgOverall += e.OverallScore
		s.AvgContent += e.ContentScore
		s.AvgSchema += e.SchemaScore
		s.AvgQuality += e.QualityScore
	}
	n := float64(s.Total)
	s.AcceptanceRate = float64(s.Accepted) / n
	s.AvgOverall /= n
	s.AvgContent /= n
	s.AvgSchema /= n
	s.AvgQuality /= n
	return s
}
