package curriculum

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lingoloop/lingoloop/internal/llm"
	"github.com/lingoloop/lingoloop/internal/store"
)

// ContentSchema is the JSON shape of one generated exercise.
var ContentSchema = &llm.Schema{
	Name:        "exercise-content",
	Description: "One language exercise split into theory, introduction, input and expected output",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"theory": map[string]any{
				"type":        "string",
				"description": "Explanation of the vocabulary or grammar the exercise practises, with examples",
			},
			"exercise_introduction": map[string]any{
				"type":        "string",
				"description": "Instructions telling the learner what to do",
			},
			"exercise_input": map[string]any{
				"type":        "string",
				"description": "The exercise itself, in the input format of the exercise type",
			},
			"expected_output": map[string]any{
				"type":        "string",
				"description": "The correct answer, in the output format of the exercise type",
			},
		},
		"required":             []any{"theory", "exercise_introduction", "exercise_input", "expected_output"},
		"additionalProperties": false,
	},
}

// Content is the four-field body of a generated exercise.
type Content struct {
	Theory               string `json:"theory"`
	ExerciseIntroduction string `json:"exercise_introduction"`
	ExerciseInput        string `json:"exercise_input"`
	ExpectedOutput       string `json:"expected_output"`
}

// GeneratorConfig controls the content generator.
type GeneratorConfig struct {
	// Validators run in order on every generated exercise; the first
	// failure rejects it.
	Validators []Validator

	MaxTokens   int
	Temperature float64
}

// DefaultGeneratorConfig returns the standard validator chain and limits.
func DefaultGeneratorConfig() GeneratorConfig {
	return GeneratorConfig{
		Validators:  []Validator{&StructuralValidator{}},
		MaxTokens:   1024,
		Temperature: 0.8,
	}
}

// Generator produces exercise content for one combination at a time.
type Generator struct {
	provider llm.Provider
	config   GeneratorConfig
}

// NewGenerator creates a Generator backed by provider.
func NewGenerator(provider llm.Provider, cfg GeneratorConfig) *Generator {
	return &Generator{provider: provider, config: cfg}
}

// Generate asks the LLM for one variation of spec. schema may be nil, in
// which case only the generic four-field layout is described.
func (g *Generator) Generate(ctx context.Context, spec Spec, schema *store.ExerciseSchema, variation int) (*Content, error) {
	ctx = llm.WithPurpose(ctx, llm.PurposeCurriculum)

	req := llm.Request{
		System: generatorPrompt,
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: buildGenerationMessage(spec, schema, variation)},
		},
		Schema:      ContentSchema,
		MaxTokens:   g.config.MaxTokens,
		Temperature: g.config.Temperature,
	}

	resp, err := g.provider.Generate(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("LLM generation failed: %w", err)
	}

	var c Content
	if err := json.Unmarshal(resp.Content, &c); err != nil {
		return nil, fmt.Errorf("failed to parse LLM response: %w", err)
	}
	c.trim()

	for _, v := range g.config.Validators {
		if verr := v.Validate(&c, schema); verr != nil {
			return nil, verr
		}
	}
	return &c, nil
}

func (c *Content) trim() {
	c.Theory = strings.TrimSpace(c.Theory)
	c.ExerciseIntroduction = strings.TrimSpace(c.ExerciseIntroduction)
	c.ExerciseInput = strings.TrimSpace(c.ExerciseInput)
	c.ExpectedOutput = strings.TrimSpace(c.ExpectedOutput)
}

const generatorPrompt = `You are an expert language learning content creator writing exercises for adults who study on WhatsApp.

Rules:
- Write one exercise for the requested language pair, CEFR level, category, exercise type and topic.
- Theory and instructions are written in the learner's source language; the exercise practises the target language.
- Keep every field short enough to read on a phone.
- Follow the input and output formats of the exercise type exactly.
- The expected output must be the single correct answer.
- Make each variation clearly different from the others.`

// buildGenerationMessage describes the combination and schema to the LLM.
func buildGenerationMessage(spec Spec, schema *store.ExerciseSchema, variation int) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Language pair: %s (%s -> %s)\n", spec.PairName, spec.SourceLang, spec.TargetLang)
	fmt.Fprintf(&b, "Level: %s (%s)\n", spec.Level, spec.LevelName)
	fmt.Fprintf(&b, "Category: %s\n", spec.Category)
	fmt.Fprintf(&b, "Exercise type: %s\n", spec.ExerciseType)
	fmt.Fprintf(&b, "Topic: %s\n", spec.Topic)
	fmt.Fprintf(&b, "Variation: %d\n", variation)

	if schema == nil {
		b.WriteString("\nUse the standard four-field layout.")
		return b.String()
	}

	b.WriteString("\nField requirements:\n")
	fmt.Fprintf(&b, "- theory: %s\n", schema.FieldTheoryDescription)
	fmt.Fprintf(&b, "- exercise_introduction: %s\n", schema.FieldIntroductionDescription)
	fmt.Fprintf(&b, "- exercise_input: %s (format: %s)\n", schema.FieldInputDescription, schema.InputFormat)
	fmt.Fprintf(&b, "- expected_output: %s (format: %s)\n", schema.FieldOutputDescription, schema.OutputFormat)
	if schema.ValidationRules != "" {
		fmt.Fprintf(&b, "Rules: %s\n", schema.ValidationRules)
	}

	b.WriteString("\nExample:\n")
	fmt.Fprintf(&b, "- theory: %s\n", schema.ExampleTheory)
	fmt.Fprintf(&b, "- exercise_introduction: %s\n", schema.ExampleIntroduction)
	fmt.Fprintf(&b, "- exercise_input: %s\n", schema.ExampleInput)
	fmt.Fprintf(&b, "- expected_output: %s", schema.ExampleOutput)
	return b.String()
}
