package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lingoloop/lingoloop/internal/config"
	"github.com/lingoloop/lingoloop/internal/llm"
	"github.com/lingoloop/lingoloop/internal/logger"
	"github.com/lingoloop/lingoloop/internal/store"
)

var rootCmd = &cobra.Command{
	Use:   "lingoloop",
	Short: "WhatsApp language tutor",
	Long: "LingoLoop — a WhatsApp tutor that places learners on the CEFR ladder, " +
		"runs short lessons and generates its own exercise curriculum.",
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("db", "", "Database path or postgres:// URL (overrides DATABASE_URL and LINGOLOOP_DB)")
	rootCmd.PersistentFlags().String("config", "", "Path to config file (default ./config.yaml when present)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(curriculumCmd)
	rootCmd.AddCommand(exercisesCmd)
	rootCmd.AddCommand(placementCmd)
	rootCmd.AddCommand(llmCmd)
	rootCmd.AddCommand(versionCmd)
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	return config.Load(path)
}

// resolveDSN returns the database location using the --db flag (highest
// priority), then the configured DATABASE_URL, then the default SQLite path.
func resolveDSN(cmd *cobra.Command, cfg *config.Config) (string, error) {
	if p, _ := cmd.Flags().GetString("db"); p != "" {
		return p, nil
	}
	if cfg != nil && cfg.Database.URL != "" {
		return cfg.Database.URL, nil
	}
	return store.DefaultDBPath()
}

func openStore(cmd *cobra.Command, cfg *config.Config) (*store.Store, error) {
	dsn, err := resolveDSN(cmd, cfg)
	if err != nil {
		return nil, fmt.Errorf("resolve database path: %w", err)
	}
	s, err := store.Open(dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return s, nil
}

func newLogger(cfg *config.Config) (*zap.Logger, zap.AtomicLevel, error) {
	return logger.New(logger.Options{Level: cfg.Log.Level, File: cfg.Log.File})
}

// newProvider returns nil without error when no LLM provider is configured.
func newProvider(ctx context.Context, cfg *config.Config, s *store.Store, log *zap.Logger) (llm.Provider, error) {
	if !cfg.HasLLM() {
		return nil, nil
	}
	p, err := llm.NewProvider(ctx, cfg.LLMConfig(), s.EventRepo(), log)
	if err != nil {
		return nil, fmt.Errorf("create LLM provider: %w", err)
	}
	return p, nil
}

func requireProvider(ctx context.Context, cfg *config.Config, s *store.Store, log *zap.Logger) (llm.Provider, error) {
	p, err := newProvider(ctx, cfg, s, log)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("no LLM provider configured; set LLM_PROVIDER or an API key such as OPENAI_API_KEY")
	}
	return p, nil
}
