package bootstrap

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"adgen/internal/adapter/memstore"
	"adgen/internal/adapter/sqlite"
	"adgen/internal/infra"
	"adgen/internal/ledger"
	"adgen/internal/providers/image"
	"adgen/internal/storage"
)

func localConfig(t *testing.T) *infra.Config {
	return &infra.Config{
		AppEnv:         "test",
		RecordStore:    infra.BackendMemory,
		Ledger:         infra.BackendMemory,
		ArtifactStore:  infra.BackendFilesystem,
		ImageProvider:  infra.ProviderSynthetic,
		StorageDir:     t.TempDir(),
		StorageBaseURL: "http://localhost:8080/static",
	}
}

func TestOpenLocalBackends(t *testing.T) {
	cfg := localConfig(t)
	b, err := Open(context.Background(), cfg, zerolog.Nop(), All)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer b.Close()

	if _, ok := b.Ads.(*memstore.AdStore); !ok {
		t.Fatalf("Ads = %T", b.Ads)
	}
	if _, ok := b.Ledger.(*ledger.MemoryLedger); !ok {
		t.Fatalf("Ledger = %T", b.Ledger)
	}
	if _, ok := b.Artifacts.(*storage.FileStore); !ok {
		t.Fatalf("Artifacts = %T", b.Artifacts)
	}
	if _, ok := b.Generator.(*image.SyntheticGenerator); !ok {
		t.Fatalf("Generator = %T", b.Generator)
	}
	if b.StaticDir != cfg.StorageDir {
		t.Fatalf("StaticDir = %q, want %q", b.StaticDir, cfg.StorageDir)
	}
}

func TestOpenSQLiteRecordStoreOnly(t *testing.T) {
	cfg := localConfig(t)
	cfg.RecordStore = infra.BackendSQLite
	cfg.SQLitePath = filepath.Join(t.TempDir(), "ads.db")

	b, err := Open(context.Background(), cfg, zerolog.Nop(), Parts{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, ok := b.Ads.(*sqlite.AdStore); !ok {
		t.Fatalf("Ads = %T", b.Ads)
	}
	if b.Ledger != nil || b.Artifacts != nil || b.Generator != nil {
		t.Fatal("unrequested parts were built")
	}
	if err := b.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestOpenGeneratorFallbacks(t *testing.T) {
	cfg := localConfig(t)
	cfg.ImageProvider = infra.ProviderOpenAI

	gen, err := openGenerator(context.Background(), cfg, nil, zerolog.Nop())
	if err != nil {
		t.Fatalf("openGenerator: %v", err)
	}
	if _, ok := gen.(*image.SyntheticGenerator); !ok {
		t.Fatalf("generator without key = %T, want synthetic", gen)
	}

	cfg.AppEnv = "production"
	if _, err := openGenerator(context.Background(), cfg, nil, zerolog.Nop()); err == nil {
		t.Fatal("expected missing key to fail in production")
	}

	cfg.OpenAIAPIKey = "sk-test"
	gen, err = openGenerator(context.Background(), cfg, nil, zerolog.Nop())
	if err != nil {
		t.Fatalf("openGenerator: %v", err)
	}
	if _, ok := gen.(*image.OpenAIGenerator); !ok {
		t.Fatalf("generator = %T, want openai", gen)
	}
}
