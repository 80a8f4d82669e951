package domain

import (
	"strings"
	"time"
)

// AdStatus enumerates the lifecycle states of an ad generation job.
type AdStatus string

const (
	AdStatusPending   AdStatus = "pending"
	AdStatusCompleted AdStatus = "completed"
	AdStatusFailed    AdStatus = "failed"
)

// IsTerminal reports whether no further transitions may happen from s.
func (s AdStatus) IsTerminal() bool {
	return s == AdStatusCompleted || s == AdStatusFailed
}

// Valid reports whether s is one of the known statuses.
func (s AdStatus) Valid() bool {
	switch s {
	case AdStatusPending, AdStatusCompleted, AdStatusFailed:
		return true
	default:
		return false
	}
}

// CanTransition reports whether a record may move from s to next.
// Only pending records move, and only to a terminal state.
func (s AdStatus) CanTransition(next AdStatus) bool {
	return s == AdStatusPending && next.IsTerminal()
}

// ParseAdStatus normalizes free-form input into a status.
func ParseAdStatus(v string) (AdStatus, bool) {
	s := AdStatus(strings.ToLower(strings.TrimSpace(v)))
	return s, s.Valid()
}

// Ad is one generation request and its lifecycle state. Input fields are
// set at creation and never mutated.
type Ad struct {
	ID             string    `json:"id"`
	OwnerID        string    `json:"ownerId"`
	Status         AdStatus  `json:"status"`
	Prompt         string    `json:"prompt"`
	TargetAudience string    `json:"targetAudience"`
	BrandInfo      string    `json:"brandInfo"`
	Style          string    `json:"style,omitempty"`
	Locale         string    `json:"locale,omitempty"`
	ArtifactURL    string    `json:"artifactUrl,omitempty"`
	FailureReason  string    `json:"failureReason,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// NewPendingAd builds the initial record persisted at submission time.
func NewPendingAd(id, ownerID string, in AdInput, now time.Time) *Ad {
	now = now.UTC()
	return &Ad{
		ID:             id,
		OwnerID:        ownerID,
		Status:         AdStatusPending,
		Prompt:         in.Prompt,
		TargetAudience: in.TargetAudience,
		BrandInfo:      in.BrandInfo,
		Style:          in.Style,
		Locale:         in.Locale,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// AdInput carries the immutable creative inputs of an ad.
type AdInput struct {
	Prompt         string
	TargetAudience string
	BrandInfo      string
	Style          string
	Locale         string
}

// Normalize trims surrounding whitespace on every field.
func (in *AdInput) Normalize() {
	in.Prompt = strings.TrimSpace(in.Prompt)
	in.TargetAudience = strings.TrimSpace(in.TargetAudience)
	in.BrandInfo = strings.TrimSpace(in.BrandInfo)
	in.Style = strings.TrimSpace(in.Style)
	in.Locale = strings.TrimSpace(in.Locale)
}

// Input returns the creative inputs stored on the record.
func (a *Ad) Input() AdInput {
	return AdInput{
		Prompt:         a.Prompt,
		TargetAudience: a.TargetAudience,
		BrandInfo:      a.BrandInfo,
		Style:          a.Style,
		Locale:         a.Locale,
	}
}

// ArtifactKey is the storage key for an ad's image. It depends only on the
// id so repeated uploads overwrite the same object.
func ArtifactKey(adID string) string {
	return "ads/" + adID + ".png"
}
