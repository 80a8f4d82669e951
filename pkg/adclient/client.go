// Package adclient talks to the ad generation API and polls submitted ads
// until they finish.
package adclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Ad statuses reported by the API.
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// ErrEnvelope is returned when a response body is not the {message, data}
// envelope the API defines.
var ErrEnvelope = errors.New("adclient: unexpected response envelope")

// Ad mirrors the API's ad representation.
type Ad struct {
	ID             string    `json:"id"`
	OwnerID        string    `json:"ownerId"`
	Status         string    `json:"status"`
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

// Terminal reports whether the ad will not change any more.
func (a *Ad) Terminal() bool {
	return a.Status == StatusCompleted || a.Status == StatusFailed
}

// SubmitRequest is the body of POST /ads.
type SubmitRequest struct {
	Prompt         string `json:"prompt"`
	TargetAudience string `json:"targetAudience"`
	BrandInfo      string `json:"brandInfo"`
	Style          string `json:"style,omitempty"`
	Locale         string `json:"locale,omitempty"`
}

// APIError is a non-success response from the API.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("adclient: status %d: %s: %s", e.StatusCode, e.Code, e.Message)
}

// PollConfig shapes the interval between status checks in WaitForTerminal.
type PollConfig struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
}

// DefaultPollConfig starts at 5s and grows by half each time up to a minute.
func DefaultPollConfig() PollConfig {
	return PollConfig{Initial: 5 * time.Second, Max: time.Minute, Multiplier: 1.5}
}

func (p PollConfig) backOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.Initial
	b.MaxInterval = p.Max
	b.Multiplier = p.Multiplier
	b.RandomizationFactor = 0
	b.Reset()
	return b
}

type Client struct {
	baseURL string
	token   string
	http    *http.Client
	poll    PollConfig
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithPollConfig(p PollConfig) Option {
	return func(c *Client) { c.poll = p }
}

// New returns a client for the API at baseURL authenticating with token.
func New(baseURL, token string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("adclient: invalid base url %q", baseURL)
	}
	c := &Client{
		baseURL: strings.TrimRight(u.String(), "/"),
		token:   strings.TrimSpace(token),
		http:    &http.Client{Timeout: 30 * time.Second},
		poll:    DefaultPollConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Submit starts generation of one ad and returns it in pending state.
func (c *Client) Submit(ctx context.Context, req SubmitRequest) (*Ad, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	var ad Ad
	if err := c.do(ctx, http.MethodPost, "/ads", body, &ad); err != nil {
		return nil, err
	}
	return &ad, nil
}

// Get returns the ad's current state.
func (c *Client) Get(ctx context.Context, id string) (*Ad, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, errors.New("adclient: id is required")
	}
	var ad Ad
	if err := c.do(ctx, http.MethodGet, "/ads/"+url.PathEscape(id), nil, &ad); err != nil {
		return nil, err
	}
	return &ad, nil
}

// List returns the caller's ads, newest first.
func (c *Client) List(ctx context.Context) ([]Ad, error) {
	var ads []Ad
	if err := c.do(ctx, http.MethodGet, "/ads", nil, &ads); err != nil {
		return nil, err
	}
	if ads == nil {
		ads = []Ad{}
	}
	return ads, nil
}

// WaitForTerminal polls Get with exponential backoff until the ad is
// completed or failed. Server errors are treated as transient; any other
// error ends the wait.
func (c *Client) WaitForTerminal(ctx context.Context, id string) (*Ad, error) {
	b := c.poll.backOff()
	for {
		ad, err := c.Get(ctx, id)
		switch {
		case err == nil && ad.Terminal():
			return ad, nil
		case err != nil && !transient(err):
			return nil, err
		}

		timer := time.NewTimer(b.NextBackOff())
		select {
		case <-ctx.Done():
			timer.Stop()
			if err != nil {
				return nil, errors.Join(err, ctx.Err())
			}
			return ad, ctx.Err()
		case <-timer.C:
		}
	}
}

func transient(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && (apiErr.StatusCode >= 500 || apiErr.StatusCode == http.StatusTooManyRequests)
}

type envelope struct {
	Message *string         `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type errorEnvelope struct {
	Message string `json:"message"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Code: "unknown", Message: http.StatusText(resp.StatusCode)}
		var env errorEnvelope
		if json.Unmarshal(raw, &env) == nil && env.Error != nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
		}
		return apiErr
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	var env envelope
	if err := dec.Decode(&env); err != nil {
		return fmt.Errorf("%w: %v", ErrEnvelope, err)
	}
	if env.Message == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return fmt.Errorf("%w: missing message or data", ErrEnvelope)
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("%w: %v", ErrEnvelope, err)
	}
	return nil
}
