package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"adgen/internal/adapter/memstore"
	"adgen/internal/domain"
)

func TestSweepOnceFailsOnlyStalePending(t *testing.T) {
	store := memstore.NewAdStore()
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	in := domain.AdInput{Prompt: "X", TargetAudience: "Y", BrandInfo: "Z"}

	seed := []*domain.Ad{
		domain.NewPendingAd("old", "u1", in, now.Add(-time.Hour)),
		domain.NewPendingAd("fresh", "u1", in, now.Add(-time.Minute)),
		domain.NewPendingAd("done", "u1", in, now.Add(-2*time.Hour)),
	}
	for _, ad := range seed {
		if err := store.Create(ctx, ad); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}
	if err := store.MarkCompleted(ctx, "done", "https://cdn/test/done.png"); err != nil {
		t.Fatalf("MarkCompleted: %v", err)
	}

	s := NewSweeper(store, 15*time.Minute, zerolog.Nop())
	s.now = func() time.Time { return now }
	s.batch = 1

	n, err := s.SweepOnce(ctx)
	if err != nil {
		t.Fatalf("SweepOnce: %v", err)
	}
	if n != 1 {
		t.Fatalf("swept = %d, want 1", n)
	}

	want := map[string]domain.AdStatus{
		"old":   domain.AdStatusFailed,
		"fresh": domain.AdStatusPending,
		"done":  domain.AdStatusCompleted,
	}
	for id, status := range want {
		got, err := store.GetByID(ctx, id)
		if err != nil {
			t.Fatalf("GetByID(%s): %v", id, err)
		}
		if got.Status != status {
			t.Fatalf("%s status = %s, want %s", id, got.Status, status)
		}
	}
	old, _ := store.GetByID(ctx, "old")
	if old.FailureReason != StuckReason {
		t.Fatalf("failureReason = %q", old.FailureReason)
	}
}

func TestSweeperRunRejectsNonPositiveInterval(t *testing.T) {
	s := NewSweeper(memstore.NewAdStore(), time.Minute, zerolog.Nop())
	for _, interval := range []time.Duration{0, -time.Second} {
		if err := s.Run(context.Background(), interval); err == nil {
			t.Fatalf("Run(%s) returned nil, want error", interval)
		}
	}
}
