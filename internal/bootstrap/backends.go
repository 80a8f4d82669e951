// Package bootstrap builds the configured backends shared by the binaries.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"adgen/internal/adapter/memstore"
	"adgen/internal/adapter/repo"
	"adgen/internal/adapter/sqlite"
	"adgen/internal/domain"
	"adgen/internal/infra"
	"adgen/internal/infra/credentials"
	"adgen/internal/ledger"
	"adgen/internal/providers/image"
	"adgen/internal/sqlinline"
	"adgen/internal/storage"
)

const providerHTTPTimeout = 120 * time.Second

// Backends holds the collaborators selected by configuration. Close
// releases whatever connections were opened.
type Backends struct {
	Ads       domain.AdRepository
	Ledger    domain.CreditLedger
	Artifacts domain.ArtifactStore
	Generator image.Generator
	// StaticDir is set when artifacts live on the local filesystem.
	StaticDir string

	closers []func() error
}

// Parts selects which collaborators Open builds.
type Parts struct {
	Ledger    bool
	Artifacts bool
	Generator bool
}

// All builds every collaborator.
var All = Parts{Ledger: true, Artifacts: true, Generator: true}

// Open connects the backends named by cfg. The record store is always built.
func Open(ctx context.Context, cfg *infra.Config, logger zerolog.Logger, parts Parts) (*Backends, error) {
	b := &Backends{}
	if err := b.open(ctx, cfg, logger, parts); err != nil {
		_ = b.Close()
		return nil, err
	}
	return b, nil
}

func (b *Backends) open(ctx context.Context, cfg *infra.Config, logger zerolog.Logger, parts Parts) error {
	var runner *infra.SQLRunner
	if cfg.NeedsPostgres() {
		pool, err := infra.NewDBPool(ctx, cfg)
		if err != nil {
			return err
		}
		b.closers = append(b.closers, func() error { pool.Close(); return nil })
		runner = infra.NewSQLRunner(pool, logger)
		if cfg.AutoMigrate {
			if _, err := runner.Exec(ctx, sqlinline.QEnsureSchema); err != nil {
				return fmt.Errorf("ensure schema: %w", err)
			}
		}
	}

	switch cfg.RecordStore {
	case infra.BackendPostgres:
		b.Ads = repo.NewAdRepository(runner)
	case infra.BackendSQLite:
		store, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return err
		}
		b.closers = append(b.closers, store.Close)
		b.Ads = store
	case infra.BackendMemory:
		b.Ads = memstore.NewAdStore()
	default:
		return fmt.Errorf("record store %q is not supported", cfg.RecordStore)
	}

	if parts.Ledger {
		switch cfg.Ledger {
		case infra.BackendPostgres:
			b.Ledger = ledger.NewPGLedger(runner)
		case infra.BackendRedis:
			rdb, err := infra.NewRedisClient(ctx, cfg)
			if err != nil {
				return err
			}
			b.closers = append(b.closers, rdb.Close)
			b.Ledger = ledger.NewRedisLedger(rdb, "")
		case infra.BackendMemory:
			b.Ledger = ledger.NewMemoryLedger()
		default:
			return fmt.Errorf("ledger %q is not supported", cfg.Ledger)
		}
	}

	if parts.Artifacts {
		store, dir, err := openArtifacts(ctx, cfg)
		if err != nil {
			return err
		}
		b.Artifacts = store
		b.StaticDir = dir
	}

	if parts.Generator {
		var creds *credentials.Store
		if runner != nil {
			creds = credentials.NewStore(runner)
		}
		gen, err := openGenerator(ctx, cfg, creds, logger)
		if err != nil {
			return err
		}
		b.Generator = gen
	}
	return nil
}

func openArtifacts(ctx context.Context, cfg *infra.Config) (domain.ArtifactStore, string, error) {
	switch cfg.ArtifactStore {
	case infra.BackendS3:
		store, err := storage.NewS3Store(ctx, storage.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			PublicBaseURL:   cfg.S3PublicBaseURL,
			UsePathStyle:    cfg.S3UsePathStyle,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretKey,
			SessionToken:    cfg.S3SessionToken,
			Profile:         cfg.S3Profile,
		})
		if err != nil {
			return nil, "", err
		}
		return store, "", nil
	case infra.BackendFilesystem:
		dir := cfg.StorageDir
		if !filepath.IsAbs(dir) {
			if abs, err := filepath.Abs(dir); err == nil {
				dir = abs
			}
		}
		store, err := storage.NewFileStore(dir, cfg.StorageBaseURL)
		if err != nil {
			return nil, "", err
		}
		return store, store.BasePath(), nil
	default:
		return nil, "", fmt.Errorf("artifact store %q is not supported", cfg.ArtifactStore)
	}
}

// openGenerator builds the configured provider. Outside production a
// missing API key degrades to the synthetic generator.
func openGenerator(ctx context.Context, cfg *infra.Config, creds *credentials.Store, logger zerolog.Logger) (image.Generator, error) {
	httpClient := &http.Client{Timeout: providerHTTPTimeout}
	providerLog := logger.With().Str("provider", cfg.ImageProvider).Logger()

	var configured string
	switch cfg.ImageProvider {
	case infra.ProviderSynthetic:
		return image.NewSyntheticGenerator(), nil
	case infra.ProviderOpenAI:
		configured = cfg.OpenAIAPIKey
	case infra.ProviderGemini:
		configured = cfg.GeminiAPIKey
	default:
		return nil, fmt.Errorf("image provider %q is not supported", cfg.ImageProvider)
	}

	key, err := creds.ResolveAPIKey(ctx, cfg.ImageProvider, configured)
	if err != nil {
		providerLog.Warn().Err(err).Msg("failed to load api key from store")
	}
	if key == "" {
		if cfg.AppEnv == "production" {
			return nil, fmt.Errorf("%s api key is required", cfg.ImageProvider)
		}
		providerLog.Warn().Msg("api key missing, using synthetic image generation")
		return image.NewSyntheticGenerator(), nil
	}

	if cfg.ImageProvider == infra.ProviderGemini {
		return image.NewGeminiGenerator(image.GeminiOptions{
			APIKey:     key,
			BaseURL:    cfg.GeminiBaseURL,
			Model:      cfg.GeminiModel,
			HTTPClient: httpClient,
			Logger:     providerLog,
		})
	}
	return image.NewOpenAIGenerator(image.OpenAIOptions{
		APIKey:       key,
		Model:        cfg.OpenAIModel,
		BaseURL:      cfg.OpenAIBaseURL,
		Organization: cfg.OpenAIOrg,
		HTTPClient:   httpClient,
		Logger:       providerLog,
	})
}

// Close releases backends in reverse order of opening.
func (b *Backends) Close() error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	b.closers = nil
	return errors.Join(errs...)
}
