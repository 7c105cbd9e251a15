package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/gofrs/flock"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"shortforge/internal/api"
	"shortforge/internal/broll"
	"shortforge/internal/compose"
	"shortforge/internal/deps"
	"shortforge/internal/logging"
	"shortforge/internal/queue"
	"shortforge/internal/services/stockvideo"
	"shortforge/internal/services/tts"
	"shortforge/internal/worker"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the job workers and HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			_ = godotenv.Load()

			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := cfg.EnsureDirectories(); err != nil {
				return err
			}

			logger, err := logging.New(logging.Options{
				Level:  cfg.Logging.Level,
				Format: cfg.Logging.Format,
				Output: os.Stderr,
			})
			if err != nil {
				return err
			}

			statuses := deps.CheckBinaries(deps.Requirements(cfg))
			if missing := deps.MissingRequired(statuses); len(missing) > 0 {
				return fmt.Errorf("missing required binaries: %s", strings.Join(missing, ", "))
			}

			lockPath := filepath.Join(cfg.Paths.LogDir, "shortforge.lock")
			lock := flock.New(lockPath)
			locked, err := lock.TryLock()
			if err != nil {
				return fmt.Errorf("acquire daemon lock: %w", err)
			}
			if !locked {
				return fmt.Errorf("another shortforge instance holds %s", lockPath)
			}
			defer lock.Unlock()

			store, err := queue.Open(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			manager := worker.NewManager(cfg, store, worker.Deps{
				TTS:      tts.NewConfiguredService(cfg),
				Planner:  broll.NewSelector(stockvideo.NewConfiguredProvider(cfg), cfg),
				Fetcher:  broll.NewDownloader(nil),
				Composer: compose.NewEngine(cfg, nil),
			}, logger)

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			server := api.NewServer(cfg.Paths.APIBind, store, manager, logger)
			if err := server.Start(runCtx); err != nil {
				return err
			}

			logger.Info("shortforge daemon started",
				logging.String("lock", lockPath),
				logging.String("db", store.Path()),
			)
			return manager.Run(runCtx)
		},
	}
}
