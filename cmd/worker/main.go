package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"adgen/internal/bootstrap"
	"adgen/internal/infra"
	"adgen/internal/jobs"
)

func main() {
	once := flag.Bool("once", false, "run a single sweep and exit")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv).With().Str("cmd", "worker").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.RecordStore == infra.BackendMemory {
		logger.Fatal().Msg("worker: RECORD_STORE=memory is process local; nothing to sweep")
	}

	backends, err := bootstrap.Open(ctx, cfg, logger, bootstrap.Parts{})
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to open record store")
	}
	defer backends.Close()

	sweeper := jobs.NewSweeper(backends.Ads, cfg.StuckAfter, logger)

	if *once {
		n, err := sweeper.SweepOnce(ctx)
		if err != nil {
			logger.Error().Err(err).Msg("worker: sweep failed")
			return
		}
		logger.Info().Int("count", n).Msg("worker: sweep finished")
		return
	}

	logger.Info().
		Dur("interval", cfg.SweepInterval).
		Dur("stuck_after", cfg.StuckAfter).
		Msg("worker: started")
	if err := sweeper.Run(ctx, cfg.SweepInterval); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("worker: stopped with error")
		return
	}
	logger.Info().Msg("worker: stopped")
}
