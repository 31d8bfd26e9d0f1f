package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lingoloop/lingoloop/internal/apperr"
	"github.com/lingoloop/lingoloop/internal/config"
	"github.com/lingoloop/lingoloop/internal/placement"
	"github.com/lingoloop/lingoloop/internal/store"
)

var placementCmd = &cobra.Command{
	Use:   "placement",
	Short: "Generate and score placement tests outside of WhatsApp",
}

// placementTest is the JSON document generate prints and evaluate reads.
type placementTest struct {
	UserID    string               `json:"user_id"`
	StartMs   int64                `json:"start_ms"`
	EndMs     int64                `json:"end_ms,omitempty"`
	Questions []placement.Question `json:"questions"`
	Answers   []placement.Answer   `json:"answers,omitempty"`
}

var placementGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Build a placement test for a user and print it as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		f := cmd.Flags()
		waID, _ := f.GetString("user")
		source, _ := f.GetString("source")
		target, _ := f.GetString("target")
		maxQuestions, _ := f.GetInt("max")

		svc, s, user, err := placementSetup(cmd, waID)
		if err != nil {
			return err
		}
		defer s.Close()

		questions, err := svc.Generate(cmd.Context(), user.ID, source, target, maxQuestions)
		if err != nil {
			return err
		}
		return writeJSON(placementTest{
			UserID:    waID,
			StartMs:   time.Now().UnixMilli(),
			Questions: questions,
		})
	},
}

var placementEvaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Score a completed placement test read from a JSON file",
	Long: "Score answers against the test last issued by `placement generate`.\n" +
		"Fill in \"answers\" (exercise_id, raw_answer, response_time_ms) and \"end_ms\" first.",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("file")
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read test file: %w", err)
		}
		var test placementTest
		if err := json.Unmarshal(data, &test); err != nil {
			return fmt.Errorf("parse test file: %w", err)
		}
		if test.UserID == "" {
			return fmt.Errorf("%s has no user_id", path)
		}
		if test.EndMs == 0 {
			test.EndMs = time.Now().UnixMilli()
		}

		svc, s, user, err := placementSetup(cmd, test.UserID)
		if err != nil {
			return err
		}
		defer s.Close()

		res, err := svc.Evaluate(cmd.Context(), user.ID, test.Answers, test.StartMs, test.EndMs)
		if err != nil {
			return err
		}
		return writeJSON(res)
	},
}

func placementSetup(cmd *cobra.Command, waID string) (*placement.Service, *store.Store, *store.User, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, nil, err
	}
	log, err := quietLogger(cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	s, err := openStore(cmd, cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	user, err := lookupUser(cmd.Context(), s.Users(), waID)
	if err != nil {
		s.Close()
		return nil, nil, nil, err
	}

	gen := placement.NewGenerator(s.Exercises(), s.Users(), placement.DefaultGeneratorConfig(), log)
	return placement.NewService(gen, s.Users(), s.Progress(), s.Issued(), log), s, user, nil
}

// lookupUser resolves a WhatsApp id to an existing learner.
func lookupUser(ctx context.Context, users *store.UserRepo, waID string) (*store.User, error) {
	user, err := users.GetByWaID(ctx, waID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperr.Newf(apperr.ErrUserNotFound, "placement", "wa_id %s", waID)
	}
	return user, nil
}

// quietLogger keeps stdout clean for JSON output; only warnings reach stderr.
func quietLogger(cfg *config.Config) (*zap.Logger, error) {
	log, level, err := newLogger(cfg)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	if level.Level() < zap.WarnLevel {
		level.SetLevel(zap.WarnLevel)
	}
	return log, nil
}

func writeJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	gf := placementGenerateCmd.Flags()
	gf.String("user", "", "WhatsApp id of the learner")
	gf.String("source", "", "Learner's native language code (e.g. es)")
	gf.String("target", "", "Language being learned (e.g. en)")
	gf.Int("max", 20, "Maximum number of questions")
	_ = placementGenerateCmd.MarkFlagRequired("user")
	_ = placementGenerateCmd.MarkFlagRequired("source")
	_ = placementGenerateCmd.MarkFlagRequired("target")

	placementEvaluateCmd.Flags().StringP("file", "f", "", "Test file with answers filled in")
	_ = placementEvaluateCmd.MarkFlagRequired("file")

	placementCmd.AddCommand(placementGenerateCmd)
	placementCmd.AddCommand(placementEvaluateCmd)
}
