package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lingoloop/lingoloop/internal/config"
	"github.com/lingoloop/lingoloop/internal/jobs"
	"github.com/lingoloop/lingoloop/internal/logger"
	"github.com/lingoloop/lingoloop/internal/orchestrator"
	"github.com/lingoloop/lingoloop/internal/placement"
	"github.com/lingoloop/lingoloop/internal/server"
	"github.com/lingoloop/lingoloop/internal/session"
	"github.com/lingoloop/lingoloop/internal/tracing"
	"github.com/lingoloop/lingoloop/internal/whatsapp"
)

// placementMaxPerLevel keeps a chat placement test from sitting on one level.
const placementMaxPerLevel = 5

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the WhatsApp webhook server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		log, level, err := newLogger(cfg)
		if err != nil {
			return fmt.Errorf("create logger: %w", err)
		}
		defer log.Sync()

		if cfg.Watch(func(next *config.Config) {
			l, err := logger.ParseLevel(next.Log.Level)
			if err != nil {
				log.Warn("ignoring log level change", zap.Error(err))
				return
			}
			level.SetLevel(l)
			log.Info("log level changed", zap.Stringer("level", l))
		}) {
			log.Debug("watching config file for changes")
		}

		if cfg.Tracing.Enabled {
			shutdown, err := tracing.Init(cfg.Tracing.ServiceName, cfg.Tracing.Endpoint)
			if err != nil {
				return fmt.Errorf("init tracing: %w", err)
			}
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					log.Warn("tracing shutdown failed", zap.Error(err))
				}
			}()
		}

		s, err := openStore(cmd, cfg)
		if err != nil {
			return err
		}
		defer s.Close()

		repo, closeRepo, err := sessionRepository(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer closeRepo()
		sessions := session.NewManager(repo, log.Named("session"),
			session.WithTTL(cfg.Session.TTL),
			session.WithMaxHistory(cfg.Session.MaxHistory))

		provider, err := newProvider(ctx, cfg, s, log.Named("llm"))
		if err != nil {
			return err
		}
		if provider == nil {
			log.Warn("no LLM provider configured, chat replies are canned")
		}

		genCfg := placement.DefaultGeneratorConfig()
		genCfg.MaxPerLevel = placementMaxPerLevel
		gen := placement.NewGenerator(s.Exercises(), s.Users(), genCfg, log.Named("placement"))
		placements := placement.NewService(gen, s.Users(), s.Progress(), s.Issued(), log.Named("placement"))

		engine := orchestrator.New(orchestrator.Deps{
			Users:     s.Users(),
			Exercises: s.Exercises(),
			Progress:  s.Progress(),
			Placement: placements,
			Sessions:  sessions,
			LLM:       provider,
			Sender:    newSender(cfg, log),
		}, orchestrator.DefaultConfig(), log.Named("orchestrator"))

		scheduler, err := jobs.New(sessions, s.Users(), log.Named("jobs"))
		if err != nil {
			return err
		}
		scheduler.Start()
		defer scheduler.Stop()

		srv := server.New(engine, server.Options{
			Addr:               cfg.Server.Addr(),
			VerifyToken:        cfg.WhatsApp.VerifyToken,
			Workers:            cfg.Server.Workers,
			QueueSize:          cfg.Server.QueueSize,
			RateLimitPerMinute: cfg.Server.RateLimitPerMinute,
			Tracing:            cfg.Tracing.Enabled,
			Ping:               s.DB().PingContext,
			Logger:             log.Named("server"),
		})
		return srv.Run(ctx)
	},
}

// sessionRepository picks Redis when REDIS_URL is set and process memory
// otherwise. The returned func releases the connection.
func sessionRepository(ctx context.Context, cfg *config.Config, log *zap.Logger) (session.Repository, func(), error) {
	if cfg.Redis.URL == "" {
		log.Info("using in-memory session store")
		return session.NewMemoryRepository(), func() {}, nil
	}
	repo, err := session.DialRedis(ctx, cfg.Redis.URL)
	if err != nil {
		return nil, nil, err
	}
	log.Info("using redis session store")
	return repo, func() {
		if err := repo.Close(); err != nil {
			log.Warn("close redis", zap.Error(err))
		}
	}, nil
}

func newSender(cfg *config.Config, log *zap.Logger) whatsapp.Sender {
	if cfg.WhatsApp.HasTwilio() {
		return whatsapp.NewTwilioSender(cfg.WhatsApp.TwilioAccountSID, cfg.WhatsApp.TwilioAuthToken,
			cfg.WhatsApp.TwilioPhoneNumber, log.Named("twilio"))
	}
	log.Warn("twilio credentials missing, replies are only logged")
	return whatsapp.NewLogSender(log.Named("sender"))
}
