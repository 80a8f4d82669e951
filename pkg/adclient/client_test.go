package adclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fastPoll = PollConfig{Initial: time.Millisecond, Max: 4 * time.Millisecond, Multiplier: 1.5}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestPollConfigIntervals(t *testing.T) {
	b := DefaultPollConfig().backOff()
	want := []time.Duration{5 * time.Second, 7500 * time.Millisecond, 11250 * time.Millisecond}
	for i, w := range want {
		assert.Equal(t, w, b.NextBackOff(), "interval %d", i)
	}
	for i := 0; i < 10; i++ {
		b.NextBackOff()
	}
	assert.Equal(t, time.Minute, b.NextBackOff())
}

func TestSubmitAndGet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/ads":
			var req SubmitRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "X", req.Prompt)
			writeJSON(w, http.StatusCreated, map[string]any{
				"message": "Ad generation started",
				"data":    Ad{ID: "a1", Status: StatusPending, Prompt: req.Prompt},
			})
		case r.Method == http.MethodGet && r.URL.Path == "/ads/a1":
			writeJSON(w, http.StatusOK, map[string]any{
				"message": "Ad retrieved",
				"data":    Ad{ID: "a1", Status: StatusCompleted, ArtifactURL: "https://cdn/test/a1.png"},
			})
		case r.Method == http.MethodGet && r.URL.Path == "/ads":
			writeJSON(w, http.StatusOK, map[string]any{"message": "Ads retrieved", "data": []Ad{}})
		default:
			writeJSON(w, http.StatusNotFound, map[string]any{
				"message": "ad not found",
				"error":   map[string]string{"code": "not_found", "message": "ad not found"},
			})
		}
	}))
	defer srv.Close()

	c, err := New(srv.URL, "tok")
	require.NoError(t, err)
	ctx := context.Background()

	ad, err := c.Submit(ctx, SubmitRequest{Prompt: "X", TargetAudience: "Y", BrandInfo: "Z"})
	require.NoError(t, err)
	assert.Equal(t, StatusPending, ad.Status)

	got, err := c.Get(ctx, "a1")
	require.NoError(t, err)
	assert.True(t, got.Terminal())
	assert.Equal(t, "https://cdn/test/a1.png", got.ArtifactURL)

	list, err := c.List(ctx)
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)

	_, err = c.Get(ctx, "missing")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "not_found", apiErr.Code)
}

func TestStrictEnvelope(t *testing.T) {
	bodies := map[string]any{
		"bare record":  Ad{ID: "a1", Status: StatusPending},
		"item wrapper": map[string]any{"Item": Ad{ID: "a1"}},
		"missing data": map[string]any{"message": "ok"},
		"extra field":  map[string]any{"message": "ok", "data": Ad{ID: "a1"}, "items": []int{}},
		"null data":    map[string]any{"message": "ok", "data": nil},
	}
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusOK, body)
			}))
			defer srv.Close()

			c, err := New(srv.URL, "tok")
			require.NoError(t, err)
			_, err = c.Get(context.Background(), "a1")
			assert.ErrorIs(t, err, ErrEnvelope)
		})
	}
}

func TestWaitForTerminal(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		switch {
		case n == 2:
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{
				"message": "unavailable",
				"error":   map[string]string{"code": "internal", "message": "unavailable"},
			})
		case n < 4:
			writeJSON(w, http.StatusOK, map[string]any{"message": "ok", "data": Ad{ID: "a1", Status: StatusPending}})
		default:
			writeJSON(w, http.StatusOK, map[string]any{"message": "ok", "data": Ad{ID: "a1", Status: StatusFailed, FailureReason: "timed out"}})
		}
	}))
	defer srv.Close()

	c, err := New(srv.URL, "tok", WithPollConfig(fastPoll))
	require.NoError(t, err)

	ad, err := c.WaitForTerminal(context.Background(), "a1")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, ad.Status)
	assert.EqualValues(t, 4, calls.Load())
}

func TestWaitForTerminalStopsOnContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"message": "ok", "data": Ad{ID: "a1", Status: StatusPending}})
	}))
	defer srv.Close()

	c, err := New(srv.URL, "tok", WithPollConfig(fastPoll))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err = c.WaitForTerminal(ctx, "a1")
	assert.True(t, errors.Is(err, context.DeadlineExceeded), "err = %v", err)
}

func TestWaitForTerminalClientErrorEndsWait(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]any{
			"message": "invalid token",
			"error":   map[string]string{"code": "unauthorized", "message": "invalid token"},
		})
	}))
	defer srv.Close()

	c, err := New(srv.URL, "bad", WithPollConfig(fastPoll))
	require.NoError(t, err)
	_, err = c.WaitForTerminal(context.Background(), "a1")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
}

func TestNewRejectsBadURL(t *testing.T) {
	_, err := New("not a url", "tok")
	assert.Error(t, err)
}
