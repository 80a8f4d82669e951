// Package jobs owns the ad generation lifecycle: the synchronous submit path,
// the detached continuation that produces the artifact, and the sweeper that
// fails jobs abandoned by a crashed instance.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"adgen/internal/domain"
	"adgen/internal/providers/image"
	"adgen/internal/retry"
)

const (
	// CreditsPerAd is debited once per accepted submission.
	CreditsPerAd = 1

	defaultJobTimeout = 5 * time.Minute
	finalizeTimeout   = 10 * time.Second
	maxReasonLength   = 200
	panicReason       = "internal error"
)

// SubmitInput is a request to generate one ad.
type SubmitInput struct {
	// ID is optional; a fresh UUID is assigned when empty.
	ID        string
	OwnerID   string
	KeyID     string
	RequestID string
	domain.AdInput
}

// Options wires the coordinator's collaborators.
type Options struct {
	Ads       domain.AdRepository
	Ledger    domain.CreditLedger
	Generator image.Generator
	Artifacts domain.ArtifactStore
	Runner    *Runner
	Retry     retry.Policy
	// JobTimeout bounds one continuation end to end.
	JobTimeout time.Duration
	Logger     zerolog.Logger
	Now        func() time.Time
}

// Coordinator accepts ad submissions and drives each one to a terminal state.
type Coordinator struct {
	ads        domain.AdRepository
	ledger     domain.CreditLedger
	generator  image.Generator
	artifacts  domain.ArtifactStore
	runner     *Runner
	retry      retry.Policy
	jobTimeout time.Duration
	logger     zerolog.Logger
	now        func() time.Time
}

func NewCoordinator(opts Options) (*Coordinator, error) {
	switch {
	case opts.Ads == nil:
		return nil, errors.New("jobs: ad repository is required")
	case opts.Ledger == nil:
		return nil, errors.New("jobs: credit ledger is required")
	case opts.Generator == nil:
		return nil, errors.New("jobs: image generator is required")
	case opts.Artifacts == nil:
		return nil, errors.New("jobs: artifact store is required")
	case opts.Runner == nil:
		return nil, errors.New("jobs: runner is required")
	}
	if opts.Retry.Attempts < 1 {
		opts.Retry = retry.Default()
	}
	if opts.Retry.Retryable == nil {
		opts.Retry.Retryable = image.IsRetryable
	}
	if opts.JobTimeout <= 0 {
		opts.JobTimeout = defaultJobTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Coordinator{
		ads:        opts.Ads,
		ledger:     opts.Ledger,
		generator:  opts.Generator,
		artifacts:  opts.Artifacts,
		runner:     opts.Runner,
		retry:      opts.Retry,
		jobTimeout: opts.JobTimeout,
		logger:     opts.Logger.With().Str("component", "jobs").Logger(),
		now:        opts.Now,
	}, nil
}

// Submit debits one credit, persists a pending ad and schedules its
// generation. The returned ad is pending; the outcome is only observable by
// reading the record later.
func (c *Coordinator) Submit(ctx context.Context, in SubmitInput) (*domain.Ad, error) {
	in.AdInput.Normalize()
	in.ID = strings.TrimSpace(in.ID)
	in.OwnerID = strings.TrimSpace(in.OwnerID)
	in.KeyID = strings.TrimSpace(in.KeyID)
	if err := validateSubmit(in); err != nil {
		return nil, err
	}

	if _, err := c.ledger.Debit(ctx, in.OwnerID, in.KeyID, CreditsPerAd); err != nil {
		if errors.Is(err, domain.ErrInsufficientCredits) {
			return nil, err
		}
		return nil, fmt.Errorf("debit credits: %w", err)
	}

	id := in.ID
	if id == "" {
		id = uuid.NewString()
	}
	ad := domain.NewPendingAd(id, in.OwnerID, in.AdInput, c.now())

	if err := c.ads.Create(ctx, ad); err != nil {
		c.refund(ctx, in)
		if errors.Is(err, domain.ErrConflict) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: create ad: %w", domain.ErrPersistence, err)
	}

	log := c.logger.With().Str("ad_id", ad.ID).Str("owner_id", ad.OwnerID).Str("request_id", in.RequestID).Logger()
	job := *ad
	if err := c.runner.Go(log.WithContext(ctx), "generate:"+ad.ID, func(ctx context.Context) {
		c.process(ctx, job)
	}); err != nil {
		// The record stays pending; the sweeper fails it once it is stale.
		log.Warn().Err(err).Msg("continuation not scheduled")
	}
	log.Info().Msg("ad submitted")
	return ad, nil
}

func validateSubmit(in SubmitInput) error {
	var missing []string
	if in.Prompt == "" {
		missing = append(missing, "prompt")
	}
	if in.TargetAudience == "" {
		missing = append(missing, "targetAudience")
	}
	if in.BrandInfo == "" {
		missing = append(missing, "brandInfo")
	}
	if in.OwnerID == "" {
		missing = append(missing, "ownerId")
	}
	if in.KeyID == "" {
		missing = append(missing, "keyId")
	}
	if in.ID != "" {
		if _, err := uuid.Parse(in.ID); err != nil {
			missing = append(missing, "id (not a uuid)")
		}
	}
	if len(missing) > 0 {
		return &domain.ValidationError{Fields: missing}
	}
	return nil
}

func (c *Coordinator) refund(ctx context.Context, in SubmitInput) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalizeTimeout)
	defer cancel()
	if _, err := c.ledger.Credit(ctx, in.OwnerID, in.KeyID, CreditsPerAd); err != nil {
		c.logger.Error().Err(err).Str("owner_id", in.OwnerID).Str("key_id", in.KeyID).Msg("credit refund failed")
	}
}

// process is the detached continuation: generate, store, finalize. It never
// returns an error; the outcome is written to the record, even on panic.
func (c *Coordinator) process(ctx context.Context, ad domain.Ad) {
	log := zerolog.Ctx(ctx)
	start := c.now()
	defer func() {
		if rec := recover(); rec != nil {
			log.Error().Interface("panic", rec).Msg("ad generation panicked")
			fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalizeTimeout)
			defer cancel()
			if err := c.ads.MarkFailed(fctx, ad.ID, panicReason); err != nil && !errors.Is(err, domain.ErrInvalidTransition) {
				log.Error().Err(err).Msg("mark failed after panic")
			}
		}
	}()

	jobCtx, cancel := context.WithTimeout(ctx, c.jobTimeout)
	defer cancel()
	url, err := c.produce(jobCtx, &ad)
	cancel()

	fctx, fcancel := context.WithTimeout(context.WithoutCancel(ctx), finalizeTimeout)
	defer fcancel()

	if err == nil {
		err = c.ads.MarkCompleted(fctx, ad.ID, url)
		switch {
		case err == nil:
			log.Info().Str("artifact_url", url).Dur("took", c.now().Sub(start)).Msg("ad completed")
			return
		case errors.Is(err, domain.ErrInvalidTransition):
			log.Warn().Msg("ad already terminal, completion discarded")
			return
		}
		err = fmt.Errorf("%w: mark completed: %w", domain.ErrPersistence, err)
	}

	log.Warn().Err(err).Dur("took", c.now().Sub(start)).Msg("ad generation failed")
	if ferr := c.ads.MarkFailed(fctx, ad.ID, failureReason(err)); ferr != nil {
		if errors.Is(ferr, domain.ErrInvalidTransition) {
			log.Warn().Msg("ad already terminal, failure discarded")
			return
		}
		log.Error().Err(ferr).Msg("mark failed")
	}
}

func (c *Coordinator) produce(ctx context.Context, ad *domain.Ad) (string, error) {
	log := zerolog.Ctx(ctx)
	policy := c.retry
	policy.OnRetry = func(attempt int, err error, next time.Duration) {
		log.Warn().Err(err).Int("attempt", attempt).Dur("retry_in", next).Msg("generation attempt failed")
	}

	brief := image.BriefFromAd(ad)
	data, err := retry.Do(ctx, policy, func(ctx context.Context) ([]byte, error) {
		return c.generator.Generate(ctx, brief)
	})
	if err != nil {
		return "", wrapOnce(domain.ErrProviderFailure, "generate", err)
	}
	if len(data) == 0 {
		return "", fmt.Errorf("%w: generate: empty image", domain.ErrProviderFailure)
	}

	url, err := c.artifacts.Store(ctx, domain.ArtifactKey(ad.ID), data)
	if err != nil {
		return "", wrapOnce(domain.ErrStorageFailure, "store artifact", err)
	}
	return url, nil
}

func wrapOnce(kind error, op string, err error) error {
	if errors.Is(err, kind) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%w: %s: %w", kind, op, err)
}

// failureReason condenses err into the short text stored on a failed ad.
func failureReason(err error) string {
	var reason string
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		reason = "timed out"
	case errors.Is(err, context.Canceled):
		reason = "cancelled"
	case errors.Is(err, domain.ErrStorageFailure):
		reason = "storage failed: " + err.Error()
	case errors.Is(err, domain.ErrProviderFailure):
		reason = "generation failed: " + err.Error()
	case errors.Is(err, domain.ErrPersistence):
		reason = "persistence failed"
	default:
		reason = "internal error"
	}
	return truncateReason(reason, maxReasonLength)
}

// truncateReason keeps at most limit bytes of valid UTF-8 without NUL
// bytes, cutting on a rune boundary.
func truncateReason(reason string, limit int) string {
	reason = strings.ToValidUTF8(reason, "")
	reason = strings.ReplaceAll(reason, "\x00", "")
	if len(reason) <= limit {
		return reason
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(reason[cut]) {
		cut--
	}
	return reason[:cut]
}

// FetchByID returns the ad as currently persisted. Ids that are not UUIDs
// cannot have been assigned and are reported as not found.
func (c *Coordinator) FetchByID(ctx context.Context, id string) (*domain.Ad, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, &domain.ValidationError{Fields: []string{"id"}}
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.ErrNotFound
	}
	return c.ads.GetByID(ctx, id)
}

// FetchByIDForOwner is FetchByID restricted to ads the owner created; other
// owners' ads are reported as not found.
func (c *Coordinator) FetchByIDForOwner(ctx context.Context, id, ownerID string) (*domain.Ad, error) {
	ad, err := c.FetchByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if ad.OwnerID != ownerID {
		return nil, domain.ErrNotFound
	}
	return ad, nil
}

// FetchAllByOwner lists the owner's ads newest first. An owner with no ads
// gets an empty slice.
func (c *Coordinator) FetchAllByOwner(ctx context.Context, ownerID string) ([]domain.Ad, error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return nil, &domain.ValidationError{Fields: []string{"ownerId"}}
	}
	ads, err := c.ads.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if ads == nil {
		ads = []domain.Ad{}
	}
	return ads, nil
}
