// Package memstore keeps ad records in process memory for development and tests.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"adgen/internal/domain"
)

// AdStore implements domain.AdRepository with a mutex-guarded map.
type AdStore struct {
	mu  sync.RWMutex
	ads map[string]domain.Ad
	now func() time.Time
}

func NewAdStore() *AdStore {
	return &AdStore{ads: make(map[string]domain.Ad), now: time.Now}
}

func (s *AdStore) Create(ctx context.Context, ad *domain.Ad) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.ads[ad.ID]; exists {
		return domain.ErrConflict
	}
	s.ads[ad.ID] = *ad
	return nil
}

func (s *AdStore) Put(ctx context.Context, ad *domain.Ad) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.ads[ad.ID] = *ad
	s.mu.Unlock()
	return nil
}

func (s *AdStore) GetByID(ctx context.Context, id string) (*domain.Ad, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	ad, ok := s.ads[id]
	s.mu.RUnlock()
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &ad, nil
}

func (s *AdStore) ListByOwner(ctx context.Context, ownerID string) ([]domain.Ad, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := s.filter(func(ad domain.Ad) bool { return ad.OwnerID == ownerID })
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *AdStore) ListByStatus(ctx context.Context, status domain.AdStatus, olderThan time.Time, limit int) ([]domain.Ad, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := s.filter(func(ad domain.Ad) bool {
		return ad.Status == status && ad.CreatedAt.Before(olderThan)
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *AdStore) MarkCompleted(ctx context.Context, id, artifactURL string) error {
	return s.transition(ctx, id, func(ad *domain.Ad) {
		ad.Status = domain.AdStatusCompleted
		ad.ArtifactURL = artifactURL
		ad.FailureReason = ""
	})
}

func (s *AdStore) MarkFailed(ctx context.Context, id, reason string) error {
	return s.transition(ctx, id, func(ad *domain.Ad) {
		ad.Status = domain.AdStatusFailed
		ad.FailureReason = reason
	})
}

func (s *AdStore) transition(ctx context.Context, id string, apply func(*domain.Ad)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ad, ok := s.ads[id]
	if !ok {
		return domain.ErrNotFound
	}
	if ad.Status != domain.AdStatusPending {
		return domain.ErrInvalidTransition
	}
	apply(&ad)
	ad.UpdatedAt = s.now().UTC()
	s.ads[id] = ad
	return nil
}

func (s *AdStore) filter(keep func(domain.Ad) bool) []domain.Ad {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Ad, 0)
	for _, ad := range s.ads {
		if keep(ad) {
			out = append(out, ad)
		}
	}
	return out
}

var _ domain.AdRepository = (*AdStore)(nil)
