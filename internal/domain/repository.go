package domain

import (
	"context"
	"time"
)

// AdRepository persists ad records. Implementations must provide single
// record atomicity; no cross-record guarantees are required.
type AdRepository interface {
	// Create inserts a new record and fails with ErrConflict if the id exists.
	Create(ctx context.Context, ad *Ad) error
	// Put upserts the record keyed by id.
	Put(ctx context.Context, ad *Ad) error
	GetByID(ctx context.Context, id string) (*Ad, error)
	// ListByOwner returns the owner's records, newest first. An owner
	// without records yields an empty slice.
	ListByOwner(ctx context.Context, ownerID string) ([]Ad, error)
	// ListByStatus returns records in status created before olderThan,
	// oldest first, up to limit (limit <= 0 means no limit).
	ListByStatus(ctx context.Context, status AdStatus, olderThan time.Time, limit int) ([]Ad, error)
	// MarkCompleted moves a pending record to completed with its artifact
	// URL. A record that is not pending yields ErrInvalidTransition.
	MarkCompleted(ctx context.Context, id, artifactURL string) error
	// MarkFailed moves a pending record to failed. A record that is not
	// pending yields ErrInvalidTransition.
	MarkFailed(ctx context.Context, id, reason string) error
}

// CreditLedger tracks per-caller generation credits.
type CreditLedger interface {
	// Debit removes amount credits from the (user, key) balance, failing
	// with ErrInsufficientCredits when the balance cannot cover it.
	Debit(ctx context.Context, userID, keyID string, amount int) (remaining int, err error)
	// Credit adds amount credits; used for grants and refunds.
	Credit(ctx context.Context, userID, keyID string, amount int) (balance int, err error)
	Balance(ctx context.Context, userID, keyID string) (int, error)
}

// ArtifactStore durably stores generated artifacts and returns a retrieval URL.
type ArtifactStore interface {
	Store(ctx context.Context, key string, data []byte) (string, error)
}
