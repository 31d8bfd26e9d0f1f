// Package importer loads exercises from spreadsheets.
package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/lingoloop/lingoloop/internal/placement"
	"github.com/lingoloop/lingoloop/internal/store"
)

// Columns are the recognised header names. Question and correct_answer
// are required; the rest are optional.
var Columns = []string{
	"question", "correct_answer", "options", "difficulty",
	"exercise_type", "source_lang", "target_lang", "topic", "explanation",
}

var requiredColumns = []string{"question", "correct_answer", "difficulty", "exercise_type"}

// optionSeparator splits the options cell.
const optionSeparator = "|"

// ExerciseCreator stores imported exercises.
type ExerciseCreator interface {
	Create(ctx context.Context, ex *store.Exercise) error
}

// Config controls an import.
type Config struct {
	// Sheet to read from workbooks. Empty means the first sheet.
	Sheet string

	// Defaults for rows that leave the language columns blank.
	SourceLang string
	TargetLang string

	// DryRun validates rows without storing them.
	DryRun bool
}

// RowError describes one rejected row.
type RowError struct {
	File string
	Row  int
	Err  error
}

func (e RowError) Error() string {
	return fmt.Sprintf("%s row %d: %v", filepath.Base(e.File), e.Row, e.Err)
}

// Result counts what an import did.
type Result struct {
	Files     []string
	Processed int
	Created   int
	Skipped   int
	Errors    []RowError
}

// Importer reads exercise sheets into the exercise bank.
type Importer struct {
	repo   ExerciseCreator
	config Config
	logger *zap.Logger
}

// New creates an Importer.
func New(repo ExerciseCreator, cfg Config, logger *zap.Logger) *Importer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Importer{repo: repo, config: cfg, logger: logger}
}

// Expand resolves glob patterns (with ** support) to the sorted, de-duplicated
// list of spreadsheet files they match.
func Expand(patterns []string) ([]string, error) {
	var files []string
	for _, pattern := range patterns {
		matches, err := doublestar.FilepathGlob(pattern)
		if err != nil {
			return nil, fmt.Errorf("glob %q: %w", pattern, err)
		}
		for _, m := range matches {
			switch strings.ToLower(filepath.Ext(m)) {
			case ".xlsx", ".csv":
				files = append(files, m)
			}
		}
	}
	slices.Sort(files)
	files = slices.Compact(files)
	if len(files) == 0 {
		return nil, fmt.Errorf("no spreadsheets match %s", strings.Join(patterns, ", "))
	}
	return files, nil
}

// ImportGlobs expands patterns and imports every matching file.
func (im *Importer) ImportGlobs(ctx context.Context, patterns []string) (*Result, error) {
	files, err := Expand(patterns)
	if err != nil {
		return nil, err
	}
	res := &Result{}
	for _, f := range files {
		if err := im.importFile(ctx, f, res); err != nil {
			return res, err
		}
	}
	return res, nil
}

// ImportFile imports a single .xlsx or .csv file.
func (im *Importer) ImportFile(ctx context.Context, path string) (*Result, error) {
	res := &Result{}
	return res, im.importFile(ctx, path, res)
}

func (im *Importer) importFile(ctx context.Context, path string, res *Result) error {
	var (
		rows [][]string
		err  error
	)
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		rows, err = readCSV(path)
	} else {
		rows, err = im.readWorkbook(path)
	}
	if err != nil {
		return err
	}
	res.Files = append(res.Files, path)
	if len(rows) == 0 {
		return nil
	}

	header, err := parseHeader(rows[0])
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	created := 0
	for i, row := range rows[1:] {
		rowNum := i + 2
		if blank(row) {
			continue
		}
		res.Processed++

		ex, err := im.parseRow(header, row)
		if err != nil {
			res.Skipped++
			res.Errors = append(res.Errors, RowError{File: path, Row: rowNum, Err: err})
			continue
		}
		if im.config.DryRun {
			continue
		}
		if err := im.repo.Create(ctx, ex); err != nil {
			return fmt.Errorf("%s row %d: %w", path, rowNum, err)
		}
		created++
	}
	res.Created += created

	im.logger.Info("spreadsheet imported",
		zap.String("file", path),
		zap.Int("created", created),
		zap.Int("errors", len(res.Errors)))
	return nil
}

func (im *Importer) readWorkbook(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook %s: %w", path, err)
	}
	defer f.Close()

	sheet := im.config.Sheet
	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q of %s: %w", sheet, path, err)
	}
	return rows, nil
}

func readCSV(path string) ([][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	var rows [][]string
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		rows = append(rows, row)
	}
}

// header maps column names to cell indexes.
type header map[string]int

func parseHeader(row []string) (header, error) {
	h := make(header)
	for i, cell := range row {
		name := strings.ToLower(strings.TrimSpace(cell))
		if slices.Contains(Columns, name) {
			h[name] = i
		}
	}
	for _, col := range requiredColumns {
		if _, ok := h[col]; !ok {
			return nil, fmt.Errorf("missing column %q", col)
		}
	}
	return h, nil
}

func (h header) get(row []string, col string) string {
	i, ok := h[col]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func (im *Importer) parseRow(h header, row []string) (*store.Exercise, error) {
	ex := &store.Exercise{
		Question:      h.get(row, "question"),
		CorrectAnswer: h.get(row, "correct_answer"),
		SourceLang:    h.get(row, "source_lang"),
		TargetLang:    h.get(row, "target_lang"),
		Topic:         h.get(row, "topic"),
		Explanation:   h.get(row, "explanation"),
	}
	if ex.Question == "" {
		return nil, errors.New("question is empty")
	}
	if ex.CorrectAnswer == "" {
		return nil, errors.New("correct_answer is empty")
	}

	level, err := placement.ParseLevel(h.get(row, "difficulty"))
	if err != nil {
		return nil, err
	}
	ex.Difficulty = string(level)

	kind := placement.Kind(strings.ToLower(h.get(row, "exercise_type")))
	if !slices.Contains(placement.PlacementKinds, kind) {
		return nil, fmt.Errorf("unknown exercise_type %q", kind)
	}
	ex.ExerciseType = string(kind)

	if raw := h.get(row, "options"); raw != "" {
		for _, opt := range strings.Split(raw, optionSeparator) {
			if opt = strings.TrimSpace(opt); opt != "" {
				ex.Options = append(ex.Options, opt)
			}
		}
	}
	if kind == placement.KindMultipleChoice {
		if len(ex.Options) < 2 {
			return nil, errors.New("multiple_choice needs at least two options")
		}
		if !slices.ContainsFunc(ex.Options, func(o string) bool { return strings.EqualFold(o, ex.CorrectAnswer) }) {
			return nil, errors.New("correct_answer is not one of the options")
		}
	}

	if ex.SourceLang == "" {
		ex.SourceLang = im.config.SourceLang
	}
	if ex.TargetLang == "" {
		ex.TargetLang = im.config.TargetLang
	}
	if ex.SourceLang == "" || ex.TargetLang == "" {
		return nil, errors.New("source_lang and target_lang are required")
	}
	return ex, nil
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
