package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"adgen/internal/domain"
)

func newTestStore(t *testing.T) *AdStore {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func newAd(id, owner string, created time.Time) *domain.Ad {
	return domain.NewPendingAd(id, owner, domain.AdInput{
		Prompt:         "Summer sale",
		TargetAudience: "students",
		BrandInfo:      "Acme",
		Style:          "bold",
		Locale:         "en",
	}, created)
}

func TestOpenRunsMigrationsOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "ads.db")
	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	var count int
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM schema_version").Scan(&count))
	assert.Equal(t, 1, count)
}

func TestCreateAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	created := time.Date(2024, 5, 1, 10, 0, 0, 123, time.UTC)

	require.NoError(t, s.Create(ctx, newAd("a1", "u1", created)))

	got, err := s.GetByID(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, domain.AdStatusPending, got.Status)
	assert.Equal(t, "u1", got.OwnerID)
	assert.Equal(t, "bold", got.Style)
	assert.Empty(t, got.ArtifactURL)
	assert.True(t, got.CreatedAt.Equal(created))

	_, err = s.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCreateDuplicateConflicts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, s.Create(ctx, newAd("a1", "u1", now)))
	dup := newAd("a1", "u2", now)
	dup.Prompt = "changed"
	assert.ErrorIs(t, s.Create(ctx, dup), domain.ErrConflict)

	got, err := s.GetByID(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.OwnerID, "existing record must not be mutated")
	assert.Equal(t, "Summer sale", got.Prompt)
}

func TestPutUpserts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ad := newAd("a1", "u1", time.Now())

	require.NoError(t, s.Put(ctx, ad))
	require.NoError(t, s.Put(ctx, ad))
	ad.Status = domain.AdStatusCompleted
	ad.ArtifactURL = "https://cdn/ads/a1.png"
	require.NoError(t, s.Put(ctx, ad))

	got, err := s.GetByID(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, domain.AdStatusCompleted, got.Status)
	assert.Equal(t, "https://cdn/ads/a1.png", got.ArtifactURL)
}

func TestListByOwnerNewestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, s.Create(ctx, newAd("old", "u1", base)))
	require.NoError(t, s.Create(ctx, newAd("new", "u1", base.Add(time.Minute))))
	require.NoError(t, s.Create(ctx, newAd("other", "u2", base)))

	ads, err := s.ListByOwner(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, ads, 2)
	assert.Equal(t, "new", ads[0].ID)
	assert.Equal(t, "old", ads[1].ID)

	none, err := s.ListByOwner(ctx, "nobody")
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestListByStatus(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	for i, id := range []string{"p1", "p2", "p3"} {
		require.NoError(t, s.Create(ctx, newAd(id, "u1", base.Add(time.Duration(i)*time.Minute))))
	}
	require.NoError(t, s.MarkFailed(ctx, "p1", "boom"))

	stuck, err := s.ListByStatus(ctx, domain.AdStatusPending, base.Add(10*time.Minute), 0)
	require.NoError(t, err)
	require.Len(t, stuck, 2)
	assert.Equal(t, "p2", stuck[0].ID)

	limited, err := s.ListByStatus(ctx, domain.AdStatusPending, base.Add(10*time.Minute), 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	recent, err := s.ListByStatus(ctx, domain.AdStatusPending, base.Add(90*time.Second), 0)
	require.NoError(t, err)
	assert.Len(t, recent, 1)
}

func TestTerminalTransitions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, newAd("a1", "u1", time.Now())))

	require.NoError(t, s.MarkCompleted(ctx, "a1", "https://cdn/ads/a1.png"))
	assert.ErrorIs(t, s.MarkFailed(ctx, "a1", "late"), domain.ErrInvalidTransition)
	assert.ErrorIs(t, s.MarkCompleted(ctx, "a1", "https://cdn/other.png"), domain.ErrInvalidTransition)
	assert.ErrorIs(t, s.MarkFailed(ctx, "missing", "x"), domain.ErrNotFound)

	got, err := s.GetByID(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, domain.AdStatusCompleted, got.Status)
	assert.Equal(t, "https://cdn/ads/a1.png", got.ArtifactURL)
	assert.Empty(t, got.FailureReason)
}
