package image

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"adgen/internal/domain"
)

// Brief is the normalized creative input passed to any image provider.
type Brief struct {
	RequestID      string
	Prompt         string
	TargetAudience string
	BrandInfo      string
	Style          string
	Locale         string
}

// BriefFromAd builds the provider input for a stored ad.
func BriefFromAd(ad *domain.Ad) Brief {
	return Brief{
		RequestID:      ad.ID,
		Prompt:         ad.Prompt,
		TargetAudience: ad.TargetAudience,
		BrandInfo:      ad.BrandInfo,
		Style:          ad.Style,
		Locale:         ad.Locale,
	}
}

// Generator is the contract implemented by all image providers. It returns
// PNG bytes for a single image.
type Generator interface {
	Generate(ctx context.Context, brief Brief) ([]byte, error)
}

// StatusError is returned when a provider answers with a non-success status.
type StatusError struct {
	Provider string
	Status   int
	Message  string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s status %d", e.Provider, e.Status)
	}
	return fmt.Sprintf("%s status %d: %s", e.Provider, e.Status, e.Message)
}

func (e *StatusError) Unwrap() error { return domain.ErrProviderFailure }

// IsRetryable reports whether another attempt could succeed. Client errors
// other than throttling and timeouts are final.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		switch {
		case se.Status == http.StatusTooManyRequests, se.Status == http.StatusRequestTimeout:
			return true
		case se.Status >= 400 && se.Status < 500:
			return false
		}
	}
	return true
}
