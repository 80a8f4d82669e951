package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"adgen/internal/domain"
	"adgen/internal/infra"
	"adgen/internal/sqlinline"
)

// AdRepositoryPG implements domain.AdRepository on PostgreSQL.
type AdRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewAdRepository creates a new ad repository backed by PostgreSQL.
func NewAdRepository(sql infra.SQLExecutor) *AdRepositoryPG {
	return &AdRepositoryPG{sql: sql}
}

// Create inserts a new ad record.
func (r *AdRepositoryPG) Create(ctx context.Context, ad *domain.Ad) error {
	tag, err := r.sql.Exec(ctx, sqlinline.QInsertAd, adArgs(ad)...)
	if err != nil {
		if infra.IsUniqueViolation(err) {
			return domain.ErrConflict
		}
		return fmt.Errorf("insert ad: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrConflict
	}
	return nil
}

// Put upserts the full record.
func (r *AdRepositoryPG) Put(ctx context.Context, ad *domain.Ad) error {
	if _, err := r.sql.Exec(ctx, sqlinline.QUpsertAd, adArgs(ad)...); err != nil {
		return fmt.Errorf("upsert ad: %w", err)
	}
	return nil
}

// GetByID fetches an ad by its identifier.
func (r *AdRepositoryPG) GetByID(ctx context.Context, id string) (*domain.Ad, error) {
	ad, err := scanAd(r.sql.QueryRow(ctx, sqlinline.QSelectAdByID, id))
	if err != nil {
		if infra.IsNoRows(err) || infra.IsInvalidText(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("select ad: %w", err)
	}
	return ad, nil
}

// ListByOwner returns the owner's ads, newest first.
func (r *AdRepositoryPG) ListByOwner(ctx context.Context, ownerID string) ([]domain.Ad, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QSelectAdsByOwner, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list ads by owner: %w", err)
	}
	return collectAds(rows)
}

// ListByStatus returns ads in status created before olderThan, oldest first.
func (r *AdRepositoryPG) ListByStatus(ctx context.Context, status domain.AdStatus, olderThan time.Time, limit int) ([]domain.Ad, error) {
	if limit < 0 {
		limit = 0
	}
	rows, err := r.sql.Query(ctx, sqlinline.QSelectAdsByStatus, string(status), olderThan.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("list ads by status: %w", err)
	}
	return collectAds(rows)
}

// MarkCompleted finalizes a pending ad with its artifact URL.
func (r *AdRepositoryPG) MarkCompleted(ctx context.Context, id, artifactURL string) error {
	tag, err := r.sql.Exec(ctx, sqlinline.QMarkAdCompleted, id, artifactURL)
	if err != nil {
		return fmt.Errorf("mark ad completed: %w", err)
	}
	return r.checkTransition(ctx, id, tag.RowsAffected())
}

// MarkFailed finalizes a pending ad as failed.
func (r *AdRepositoryPG) MarkFailed(ctx context.Context, id, reason string) error {
	tag, err := r.sql.Exec(ctx, sqlinline.QMarkAdFailed, id, reason)
	if err != nil {
		return fmt.Errorf("mark ad failed: %w", err)
	}
	return r.checkTransition(ctx, id, tag.RowsAffected())
}

// checkTransition distinguishes a missing record from one that was already terminal.
func (r *AdRepositoryPG) checkTransition(ctx context.Context, id string, affected int64) error {
	if affected > 0 {
		return nil
	}
	if _, err := r.GetByID(ctx, id); err != nil {
		return err
	}
	return domain.ErrInvalidTransition
}

func adArgs(ad *domain.Ad) []any {
	return []any{
		ad.ID,
		ad.OwnerID,
		string(ad.Status),
		ad.Prompt,
		ad.TargetAudience,
		ad.BrandInfo,
		ad.Style,
		ad.Locale,
		ad.ArtifactURL,
		ad.FailureReason,
		ad.CreatedAt.UTC(),
		ad.UpdatedAt.UTC(),
	}
}

func scanAd(row pgx.Row) (*domain.Ad, error) {
	var ad domain.Ad
	var status string
	if err := row.Scan(
		&ad.ID,
		&ad.OwnerID,
		&status,
		&ad.Prompt,
		&ad.TargetAudience,
		&ad.BrandInfo,
		&ad.Style,
		&ad.Locale,
		&ad.ArtifactURL,
		&ad.FailureReason,
		&ad.CreatedAt,
		&ad.UpdatedAt,
	); err != nil {
		return nil, err
	}
	ad.Status = domain.AdStatus(status)
	ad.CreatedAt = ad.CreatedAt.UTC()
	ad.UpdatedAt = ad.UpdatedAt.UTC()
	return &ad, nil
}

func collectAds(rows pgx.Rows) ([]domain.Ad, error) {
	defer rows.Close()
	ads := make([]domain.Ad, 0)
	for rows.Next() {
		ad, err := scanAd(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ad: %w", err)
		}
		ads = append(ads, *ad)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ads: %w", err)
	}
	return ads, nil
}

var _ domain.AdRepository = (*AdRepositoryPG)(nil)
