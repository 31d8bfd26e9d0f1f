package importer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/lingoloop/lingoloop/internal/store"
)

type memRepo struct {
	created []*store.Exercise
	err     error
}

func (m *memRepo) Create(_ context.Context, ex *store.Exercise) error {
	if m.err != nil {
		return m.err
	}
	ex.ID = int64(len(m.created) + 1)
	m.created = append(m.created, ex)
	return nil
}

func writeWorkbook(t *testing.T, path string, rows [][]any) {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}
	require.NoError(t, f.SaveAs(path))
}

var headerRow = []any{"question", "correct_answer", "options", "difficulty", "exercise_type", "source_lang", "target_lang", "topic"}

func TestImportFile_Workbook(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bank.xlsx")
	writeWorkbook(t, path, [][]any{
		headerRow,
		{"Translate: I am hungry", "Tengo hambre", "", "A1", "translation", "en", "es", "food"},
		{"Pick the article: ___ libro", "El", "El | La | Los", "level_a2", "multiple_choice", "en", "es", "grammar"},
		{},
		{"Bad level", "x", "", "Z9", "translation", "en", "es", ""},
		{"Unknown kind", "x", "", "B1", "essay", "en", "es", ""},
		{"Answer not listed", "Las", "El|La", "B1", "multiple_choice", "en", "es", ""},
	})

	repo := &memRepo{}
	res, err := New(repo, Config{}, nil).ImportFile(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, 5, res.Processed)
	assert.Equal(t, 2, res.Created)
	assert.Equal(t, 3, res.Skipped)
	require.Len(t, res.Errors, 3)
	assert.Equal(t, 5, res.Errors[0].Row)
	assert.Equal(t, 6, res.Errors[1].Row)
	assert.Equal(t, 7, res.Errors[2].Row)
	assert.Contains(t, res.Errors[1].Error(), "bank.xlsx row 6")

	require.Len(t, repo.created, 2)
	mc := repo.created[1]
	assert.Equal(t, []string{"El", "La", "Los"}, mc.Options)
	assert.Equal(t, "A2", mc.Difficulty)
	assert.Equal(t, "multiple_choice", mc.ExerciseType)
}

func TestImportFile_DefaultsAndDryRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bank.csv")
	csv := "Question,Correct_Answer,Difficulty,Exercise_Type\n" +
		"Translate: good morning,buenos días,A1,translation\n"
	require.NoError(t, os.WriteFile(path, []byte(csv), 0o644))

	repo := &memRepo{}
	im := New(repo, Config{SourceLang: "en", TargetLang: "es"}, nil)
	res, err := im.ImportFile(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, repo.created, 1)
	assert.Equal(t, "en", repo.created[0].SourceLang)
	assert.Equal(t, 1, res.Created)

	dry := New(&memRepo{}, Config{SourceLang: "en", TargetLang: "es", DryRun: true}, nil)
	res, err = dry.ImportFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Processed)
	assert.Zero(t, res.Created)
}

func TestImportFile_MissingLanguages(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bank.csv")
	require.NoError(t, os.WriteFile(path, []byte("question,correct_answer,difficulty,exercise_type\nQ,A,A1,translation\n"), 0o644))

	res, err := New(&memRepo{}, Config{}, nil).ImportFile(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, res.Errors, 1)
	assert.ErrorContains(t, res.Errors[0].Err, "source_lang")
}

func TestImportFile_MissingColumn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bank.xlsx")
	writeWorkbook(t, path, [][]any{{"question", "difficulty"}})

	_, err := New(&memRepo{}, Config{}, nil).ImportFile(context.Background(), path)
	assert.ErrorContains(t, err, `missing column "correct_answer"`)
}

func TestImportFile_StoreErrorAborts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bank.xlsx")
	writeWorkbook(t, path, [][]any{
		headerRow,
		{"Q", "A", "", "A1", "translation", "en", "es", ""},
	})

	_, err := New(&memRepo{err: errors.New("disk full")}, Config{}, nil).ImportFile(context.Background(), path)
	assert.ErrorContains(t, err, "disk full")
}

func TestImportGlobs(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "a", "b"), 0o755))
	writeWorkbook(t, filepath.Join(dir, "a", "one.xlsx"), [][]any{
		headerRow,
		{"Q1", "A1", "", "A1", "translation", "en", "es", ""},
	})
	writeWorkbook(t, filepath.Join(dir, "a", "b", "two.xlsx"), [][]any{
		headerRow,
		{"Q2", "A2", "", "B1", "translation", "en", "es", ""},
	})
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a", "notes.txt"), []byte("x"), 0o644))

	repo := &memRepo{}
	res, err := New(repo, Config{}, nil).ImportGlobs(context.Background(), []string{
		filepath.Join(dir, "**", "*"),
		filepath.Join(dir, "a", "*.xlsx"),
	})
	require.NoError(t, err)
	assert.Len(t, res.Files, 2, "duplicates and non-spreadsheets are dropped")
	assert.Equal(t, 2, res.Created)
}

func TestExpand_NoMatches(t *testing.T) {
	_, err := Expand([]string{filepath.Join(t.TempDir(), "*.xlsx")})
	assert.Error(t, err)
}
