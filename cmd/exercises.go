package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/lingoloop/lingoloop/internal/importer"
	"github.com/lingoloop/lingoloop/internal/ui"
)

var exercisesCmd = &cobra.Command{
	Use:   "exercises",
	Short: "Manage the placement exercise bank",
}

var exercisesImportCmd = &cobra.Command{
	Use:   "import <glob>...",
	Short: "Import exercises from .xlsx or .csv files",
	Long: "Import exercises from spreadsheets. Patterns support ** (e.g. data/**/*.xlsx).\n" +
		"Required columns: question, correct_answer, difficulty, exercise_type.\n" +
		"Optional columns: options (separated by |), source_lang, target_lang, topic, explanation.",
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		log, _, err := newLogger(cfg)
		if err != nil {
			return fmt.Errorf("create logger: %w", err)
		}
		defer log.Sync()

		s, err := openStore(cmd, cfg)
		if err != nil {
			return err
		}
		defer s.Close()

		f := cmd.Flags()
		var icfg importer.Config
		icfg.Sheet, _ = f.GetString("sheet")
		icfg.SourceLang, _ = f.GetString("source")
		icfg.TargetLang, _ = f.GetString("target")
		icfg.DryRun, _ = f.GetBool("dry-run")

		res, err := importer.New(s.Exercises(), icfg, log.Named("importer")).ImportGlobs(cmd.Context(), args)
		if res != nil {
			for _, re := range res.Errors {
				fmt.Println(ui.Warn.Render("! " + re.Error()))
			}
			fmt.Println(ui.Field("Files", strconv.Itoa(len(res.Files))))
			fmt.Println(ui.Field("Rows", strconv.Itoa(res.Processed)))
			fmt.Println(ui.Field("Created", strconv.Itoa(res.Created)))
			fmt.Println(ui.Field("Skipped", strconv.Itoa(res.Skipped)))
		}
		if err != nil {
			return err
		}
		if icfg.DryRun {
			fmt.Println(ui.Hint.Render("dry run: nothing was stored"))
		}
		return nil
	},
}

var exercisesCountCmd = &cobra.Command{
	Use:   "count",
	Short: "Print the number of exercises in the bank",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		s, err := openStore(cmd, cfg)
		if err != nil {
			return err
		}
		defer s.Close()

		n, err := s.Exercises().Count(cmd.Context())
		if err != nil {
			return fmt.Errorf("count exercises: %w", err)
		}
		fmt.Println(n)
		return nil
	},
}

func init() {
	f := exercisesImportCmd.Flags()
	f.String("sheet", "", "Workbook sheet to read (default: first sheet)")
	f.String("source", "", "Source language for rows without source_lang")
	f.String("target", "", "Target language for rows without target_lang")
	f.Bool("dry-run", false, "Validate rows without storing them")

	exercisesCmd.AddCommand(exercisesImportCmd)
	exercisesCmd.AddCommand(exercisesCountCmd)
}
