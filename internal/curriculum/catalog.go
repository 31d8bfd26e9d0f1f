// Package curriculum seeds the exercise matrix and fills it with LLM
// generated, LLM judged content.
package curriculum

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/lingoloop/lingoloop/internal/store"
)

//go:embed catalog.yaml
var catalogYAML []byte

// DefaultTarget is the number of exercises wanted per combination.
const DefaultTarget = 10

// Entry is one value along a curriculum dimension.
type Entry struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Active   bool   `yaml:"active"`
	Priority int    `yaml:"priority"`
}

// LanguagePair is a source to target language direction.
type LanguagePair struct {
	Entry  `yaml:",inline"`
	Source string `yaml:"source"`
	Target string `yaml:"target"`
}

// Catalog holds every curriculum dimension.
type Catalog struct {
	LanguagePairs []LanguagePair `yaml:"language_pairs"`
	Levels        []Entry        `yaml:"levels"`
	Categories    []Entry        `yaml:"categories"`
	ExerciseTypes []Entry        `yaml:"exercise_types"`
	Topics        []Entry        `yaml:"topics"`
}

// DefaultCatalog parses the built-in catalog.
func DefaultCatalog() (*Catalog, error) {
	return ParseCatalog(catalogYAML)
}

// ParseCatalog decodes a catalog document.
func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if len(c.LanguagePairs) == 0 || len(c.Levels) == 0 || len(c.Categories) == 0 ||
		len(c.ExerciseTypes) == 0 || len(c.Topics) == 0 {
		return nil, fmt.Errorf("parse catalog: every dimension needs at least one entry")
	}
	return &c, nil
}

// Combinations expands the active entries into matrix rows, each with the
// given exercise target.
func (c *Catalog) Combinations(target int) []store.Combination {
	var out []store.Combination
	for _, p := range c.LanguagePairs {
		if !p.Active {
			continue
		}
		for _, lvl := range active(c.Levels) {
			for _, cat := range active(c.Categories) {
				for _, typ := range active(c.ExerciseTypes) {
					for _, topic := range active(c.Topics) {
						out = append(out, store.Combination{
							ID:               CombinationID(p.ID, lvl.ID, cat.ID, typ.ID, topic.ID),
							LanguagePairID:   p.ID,
							LevelID:          lvl.ID,
							CategoryID:       cat.ID,
							ExerciseTypeID:   typ.ID,
							TopicID:          topic.ID,
							GenerationStatus: store.StatusPending,
							ExercisesTarget:  target,
							Priority:         comboPriority(p.Priority, topic.Priority),
						})
					}
				}
			}
		}
	}
	return out
}

// CombinationID joins the dimension ids into a matrix row id.
func CombinationID(pair, level, category, exerciseType, topic string) string {
	return strings.Join([]string{pair, level, category, exerciseType, topic}, "_")
}

// comboPriority turns the catalog's lower-first ranks into the store's
// higher-first ordering. Pair rank dominates topic rank.
func comboPriority(pair, topic int) int {
	return (10-pair)*100 + (10 - topic)
}

func active(entries []Entry) []Entry {
	var out []Entry
	for _, e := range entries {
		if e.Active {
			out = append(out, e)
		}
	}
	return out
}

// Spec is a combination resolved to readable names, as sent to the LLM.
type Spec struct {
	CombinationID string
	PairName      string
	SourceLang    string
	TargetLang    string
	Level         string
	LevelName     string
	Category      string
	ExerciseType  string
	Topic         string
}

// Describe resolves a combination's ids against the catalog. Unknown ids
// are passed through as-is.
func (c *Catalog) Describe(combo store.Combination) Spec {
	s := Spec{
		CombinationID: combo.ID,
		PairName:      combo.LanguagePairID,
		Level:         strings.TrimPrefix(combo.LevelID, "LEVEL_"),
		LevelName:     nameOf(c.Levels, combo.LevelID),
		Category:      nameOf(c.Categories, combo.CategoryID),
		ExerciseType:  nameOf(c.ExerciseTypes, combo.ExerciseTypeID),
		Topic:         nameOf(c.Topics, combo.TopicID),
	}
	for _, p := range c.LanguagePairs {
		if p.ID == combo.LanguagePairID {
			s.PairName = p.Name
			s.SourceLang = p.Source
			s.TargetLang = p.Target
		}
	}
	return s
}

func nameOf(entries []Entry, id string) string {
	for _, e := range entries {
		if e.ID == id {
			return e.Name
		}
	}
	return id
}
