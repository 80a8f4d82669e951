package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"adgen/internal/bootstrap"
	"adgen/internal/http/handlers"
	httpapi "adgen/internal/http/httpapi"
	"adgen/internal/infra"
	"adgen/internal/infra/geoip"
	"adgen/internal/jobs"
	"adgen/internal/retry"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backends, err := bootstrap.Open(ctx, cfg, logger, bootstrap.All)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: failed to open backends")
	}
	defer backends.Close()

	resolver, err := geoip.Open(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("api: geoip disabled")
	}
	defer resolver.Close()

	runner := jobs.NewRunner(cfg.JobConcurrency, logger)
	coord, err := jobs.NewCoordinator(jobs.Options{
		Ads:        backends.Ads,
		Ledger:     backends.Ledger,
		Generator:  backends.Generator,
		Artifacts:  backends.Artifacts,
		Runner:     runner,
		Retry:      retry.Policy{Attempts: cfg.GenerationAttempts, Delay: cfg.GenerationRetryDelay},
		JobTimeout: cfg.JobTimeout,
		Logger:     logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("api: failed to configure coordinator")
	}

	router := httpapi.NewRouter(handlers.NewApp(coord, logger), httpapi.Options{
		JWTSecret:       cfg.JWTSecret,
		JWTIssuer:       cfg.JWTIssuer,
		CORSOrigins:     cfg.CORSOrigins,
		RateLimitPerMin: cfg.RateLimitPerMin,
		DefaultLocale:   cfg.DefaultLocale,
		CountryLookup:   resolver.LookupFunc(),
		StaticDir:       backends.StaticDir,
		Logger:          logger,
	})
	server := infra.NewHTTPServer(cfg, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().
			Str("addr", server.Addr()).
			Str("record_store", cfg.RecordStore).
			Str("ledger", cfg.Ledger).
			Str("artifact_store", cfg.ArtifactStore).
			Str("image_provider", cfg.ImageProvider).
			Msg("api: listening")
		return server.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		drainCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
		defer cancel()
		if err := runner.Shutdown(drainCtx); err != nil {
			logger.Warn().Err(err).Msg("api: in-flight ads abandoned at shutdown")
		}
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("api: stopped with error")
		return
	}
	logger.Info().Msg("api: stopped")
}
