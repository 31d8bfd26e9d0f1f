package cmd

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lingoloop/lingoloop/internal/config"
	"github.com/lingoloop/lingoloop/internal/curriculum"
	"github.com/lingoloop/lingoloop/internal/llm"
	"github.com/lingoloop/lingoloop/internal/store"
	"github.com/lingoloop/lingoloop/internal/ui"
)

var curriculumCmd = &cobra.Command{
	Use:   "curriculum",
	Short: "Seed and generate the exercise curriculum",
}

var curriculumSeedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Insert the combination matrix and exercise schemas",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, s, log, err := curriculumSetup(cmd)
		if err != nil {
			return err
		}
		defer s.Close()
		defer log.Sync()

		cat, err := curriculum.DefaultCatalog()
		if err != nil {
			return err
		}
		res, err := curriculum.Seed(cmd.Context(), cat, s.Curriculum(), s.Schemas(), log)
		if err != nil {
			return err
		}

		fmt.Println(ui.Title.Render("Curriculum seeded"))
		fmt.Println(ui.Field("Combinations", strconv.Itoa(res.Combinations)))
		fmt.Println(ui.Field("Newly inserted", strconv.Itoa(res.Inserted)))
		fmt.Println(ui.Field("Schemas", strconv.Itoa(res.Schemas)))
		return nil
	},
}

var curriculumGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate and judge exercises for the next pending combinations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, s, log, err := curriculumSetup(cmd)
		if err != nil {
			return err
		}
		defer s.Close()
		defer log.Sync()

		opts := batchOptions(cmd, cfg)

		var provider llm.Provider
		if !opts.DryRun {
			if provider, err = requireProvider(cmd.Context(), cfg, s, log.Named("llm")); err != nil {
				return err
			}
		}

		orch, err := newCurriculumOrchestrator(s, provider, log)
		if err != nil {
			return err
		}
		res, err := orch.Run(cmd.Context(), opts)
		if err != nil {
			return err
		}

		printResults(res)
		return nil
	},
}

var curriculumPreviewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Show the combinations the next run would process",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, s, log, err := curriculumSetup(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		n, _ := cmd.Flags().GetInt("limit")
		orch, err := newCurriculumOrchestrator(s, nil, log)
		if err != nil {
			return err
		}
		planned, err := orch.PreviewNextBatch(cmd.Context(), n)
		if err != nil {
			return err
		}
		if len(planned) == 0 {
			fmt.Println("No pending combinations. Run `lingoloop curriculum seed` first?")
			return nil
		}

		rows := make([][]string, 0, len(planned))
		for _, p := range planned {
			rows = append(rows, []string{
				strconv.Itoa(p.Combination.Priority),
				p.Spec.PairName,
				p.Spec.Level,
				p.Spec.Category,
				p.Spec.ExerciseType,
				p.Spec.Topic,
				fmt.Sprintf("%d/%d", p.Combination.ExercisesGenerated, p.Combination.ExercisesTarget),
			})
		}
		fmt.Println(ui.Table([]string{"Priority", "Pair", "Level", "Category", "Type", "Topic", "Generated"}, rows))
		return nil
	},
}

var curriculumStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show curriculum generation progress",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, s, log, err := curriculumSetup(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		orch, err := newCurriculumOrchestrator(s, nil, log)
		if err != nil {
			return err
		}
		st, err := orch.Statistics(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Println(ui.Title.Render("Curriculum progress"))
		fmt.Println(ui.Meter("Completed", st.CompletionRate/100, 50))
		fmt.Println(ui.Table([]string{"Status", "Combinations"}, [][]string{
			{ui.StatusStyle(store.StatusPending).Render(store.StatusPending), strconv.Itoa(st.Pending)},
			{ui.StatusStyle(store.StatusInProgress).Render(store.StatusInProgress), strconv.Itoa(st.InProgress)},
			{ui.StatusStyle(store.StatusCompleted).Render(store.StatusCompleted), strconv.Itoa(st.Completed)},
			{ui.StatusStyle(store.StatusFailed).Render(store.StatusFailed), strconv.Itoa(st.Failed)},
			{"total", strconv.Itoa(st.Total)},
		}))
		fmt.Println(ui.Field("Exercises generated", strconv.Itoa(st.ExercisesGenerated)))
		return nil
	},
}

func curriculumSetup(cmd *cobra.Command) (*config.Config, *store.Store, *zap.Logger, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, nil, err
	}
	log, _, err := newLogger(cfg)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("create logger: %w", err)
	}
	s, err := openStore(cmd, cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, s, log, nil
}

func newCurriculumOrchestrator(s *store.Store, provider llm.Provider, log *zap.Logger) (*curriculum.Orchestrator, error) {
	return curriculum.NewOrchestrator(curriculum.Deps{
		Combinations: s.Curriculum(),
		Schemas:      s.Schemas(),
		Generated:    s.Generated(),
		Logs:         s.GenerationLogs(),
		LLM:          provider,
	}, curriculum.DefaultGeneratorConfig(), log.Named("curriculum"))
}

// batchOptions starts from the configured values and applies any flags the
// user set explicitly.
func batchOptions(cmd *cobra.Command, cfg *config.Config) curriculum.BatchOptions {
	opts := curriculum.BatchOptions{
		BatchSize:   cfg.Curriculum.BatchSize,
		Variations:  cfg.Curriculum.Variations,
		Concurrency: cfg.Curriculum.Concurrency,
	}
	f := cmd.Flags()
	if f.Changed("batch-size") {
		opts.BatchSize, _ = f.GetInt("batch-size")
	}
	if f.Changed("variations") {
		opts.Variations, _ = f.GetInt("variations")
	}
	if f.Changed("concurrency") {
		opts.Concurrency, _ = f.GetInt("concurrency")
	}
	opts.DryRun, _ = f.GetBool("dry-run")
	opts.Verbose, _ = f.GetBool("verbose")
	return opts
}

func printResults(res *curriculum.Results) {
	if res.DryRun {
		fmt.Println(ui.Title.Render("Dry run, nothing was generated"))
	} else {
		fmt.Println(ui.Title.Render("Generation finished"))
	}
	fmt.Println(ui.Field("Run", res.RunID))
	fmt.Println(ui.Field("Duration", res.Duration().Round(time.Millisecond).String()))

	rows := make([][]string, 0, len(res.Outcomes))
	for _, o := range res.Outcomes {
		rows = append(rows, []string{
			o.Combination.ID,
			ui.StatusStyle(o.Status).Render(o.Status),
			strconv.Itoa(o.Generated),
			strconv.Itoa(o.Accepted),
			strconv.Itoa(o.Rejected),
		})
	}
	if len(rows) > 0 {
		fmt.Println(ui.Table([]string{"Combination", "Status", "Generated", "Accepted", "Rejected"}, rows))
	}
	if res.DryRun {
		return
	}

	fmt.Println(ui.Field("Requested", strconv.Itoa(res.TotalRequested)))
	fmt.Println(ui.Field("Generated", strconv.Itoa(res.TotalGenerated)))
	fmt.Println(ui.Good.Render(fmt.Sprintf("Successful: %d", res.Successful)))
	if res.Failed > 0 {
		fmt.Println(ui.Bad.Render(fmt.Sprintf("Failed: %d", res.Failed)))
	}

	ev := res.Evaluations
	if ev.Total > 0 {
		fmt.Println(ui.Meter("Acceptance", ev.AcceptanceRate, 50))
		dist := make([][]string, 0, len(curriculum.Verdicts))
		for _, r := range curriculum.Verdicts {
			dist = append(dist, []string{string(r), strconv.Itoa(ev.Distribution[r])})
		}
		fmt.Println(ui.Table([]string{"Verdict", "Count"}, dist))
		fmt.Println(ui.Field("Average score", fmt.Sprintf("%.2f (content %.2f, schema %.2f, quality %.2f)",
			ev.AvgOverall, ev.AvgContent, ev.AvgSchema, ev.AvgQuality)))
	}
	for _, e := range res.Errors {
		fmt.Println(ui.Warn.Render("! " + e))
	}
}

func init() {
	d := curriculum.DefaultBatchOptions()
	f := curriculumGenerateCmd.Flags()
	f.Int("batch-size", d.BatchSize, "Combinations to process (defaults to CURRICULUM_BATCH_SIZE)")
	f.Int("variations", d.Variations, "Exercises to generate per combination")
	f.Int("concurrency", d.Concurrency, "Concurrent LLM generate-and-judge calls")
	f.Bool("dry-run", false, "Show what would be generated without calling the LLM")
	f.BoolP("verbose", "v", false, "Log every judged variation")

	curriculumPreviewCmd.Flags().IntP("limit", "n", 10, "Number of combinations to show")

	curriculumCmd.AddCommand(curriculumSeedCmd)
	curriculumCmd.AddCommand(curriculumGenerateCmd)
	curriculumCmd.AddCommand(curriculumPreviewCmd)
	curriculumCmd.AddCommand(curriculumStatsCmd)
}
