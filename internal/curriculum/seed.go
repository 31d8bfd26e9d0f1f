package curriculum

import (
	"context"
	_ "embed"
	"fmt"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/lingoloop/lingoloop/internal/store"
)

//go:embed schemas.yaml
var schemasYAML []byte

// CombinationStore is the part of the curriculum repository seeding needs.
type CombinationStore interface {
	Insert(ctx context.Context, c store.Combination) (bool, error)
}

// SchemaStore persists exercise schemas.
type SchemaStore interface {
	Upsert(ctx context.Context, s store.ExerciseSchema) error
	ForType(ctx context.Context, exerciseType string) (*store.ExerciseSchema, error)
}

// SeedResult counts what a Seed call changed.
type SeedResult struct {
	Combinations int
	Inserted     int
	Schemas      int
}

// DefaultSchemas parses the built-in exercise schemas.
func DefaultSchemas() ([]store.ExerciseSchema, error) {
	var out []store.ExerciseSchema
	if err := yaml.Unmarshal(schemasYAML, &out); err != nil {
		return nil, fmt.Errorf("parse schemas: %w", err)
	}
	return out, nil
}

// Seed writes the default schemas and one pending row per active catalog
// combination. Existing rows keep their status, so Seed can run repeatedly.
func Seed(ctx context.Context, cat *Catalog, combos CombinationStore, schemas SchemaStore, logger *zap.Logger) (*SeedResult, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	defaults, err := DefaultSchemas()
	if err != nil {
		return nil, err
	}
	res := &SeedResult{}
	for _, s := range defaults {
		if err := schemas.Upsert(ctx, s); err != nil {
			return res, err
		}
		res.Schemas++
	}

	for _, c := range cat.Combinations(DefaultTarget) {
		res.Combinations++
		inserted, err := combos.Insert(ctx, c)
		if err != nil {
			return res, err
		}
		if inserted {
			res.Inserted++
		}
	}

	logger.Info("curriculum seeded",
		zap.Int("combinations", res.Combinations),
		zap.Int("inserted", res.Inserted),
		zap.Int("schemas", res.Schemas))
	return res, nil
}
