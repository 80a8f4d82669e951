package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"adgen/internal/domain"
	"adgen/internal/jobs"
	"adgen/internal/middleware"
)

type stubService struct {
	submitted []jobs.SubmitInput
	submitErr error
	ads       map[string]domain.Ad
	listErr   error
}

func (s *stubService) Submit(ctx context.Context, in jobs.SubmitInput) (*domain.Ad, error) {
	if s.submitErr != nil {
		return nil, s.submitErr
	}
	s.submitted = append(s.submitted, in)
	ad := domain.NewPendingAd("ad-1", in.OwnerID, in.AdInput, time.Now())
	return ad, nil
}

func (s *stubService) FetchByIDForOwner(ctx context.Context, id, ownerID string) (*domain.Ad, error) {
	ad, ok := s.ads[id]
	if !ok || ad.OwnerID != ownerID {
		return nil, domain.ErrNotFound
	}
	return &ad, nil
}

func (s *stubService) FetchAllByOwner(ctx context.Context, ownerID string) ([]domain.Ad, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []domain.Ad
	for _, ad := range s.ads {
		if ad.OwnerID == ownerID {
			out = append(out, ad)
		}
	}
	return out, nil
}

func authed(req *http.Request) *http.Request {
	return req.WithContext(middleware.ContextWithIdentity(req.Context(), "user-1", "key-1"))
}

type response struct {
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   *errorDetail    `json:"error"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) response {
	t.Helper()
	var resp response
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}

func TestCreateAd(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		auth      bool
		submitErr error
		status    int
		code      string
	}{
		{name: "accepted", body: `{"prompt":"X","targetAudience":"Y","brandInfo":"Z"}`, auth: true, status: http.StatusCreated},
		{name: "with style", body: `{"prompt":"X","targetAudience":"Y","brandInfo":"Z","style":"bold"}`, auth: true, status: http.StatusCreated},
		{name: "missing fields", body: `{"prompt":"X"}`, auth: true, status: http.StatusBadRequest, code: "bad_request"},
		{name: "blank fields", body: `{"prompt":"  ","targetAudience":"Y","brandInfo":"Z"}`, auth: true, status: http.StatusBadRequest, code: "bad_request"},
		{name: "bad json", body: `{"prompt":`, auth: true, status: http.StatusBadRequest, code: "bad_request"},
		{name: "unknown field", body: `{"prompt":"X","targetAudience":"Y","brandInfo":"Z","extra":1}`, auth: true, status: http.StatusBadRequest, code: "bad_request"},
		{name: "no identity", body: `{"prompt":"X","targetAudience":"Y","brandInfo":"Z"}`, status: http.StatusUnauthorized, code: "unauthorized"},
		{name: "no credits", body: `{"prompt":"X","targetAudience":"Y","brandInfo":"Z"}`, auth: true, submitErr: domain.ErrInsufficientCredits, status: http.StatusPaymentRequired, code: "insufficient_credits"},
		{name: "conflict", body: `{"prompt":"X","targetAudience":"Y","brandInfo":"Z"}`, auth: true, submitErr: fmt.Errorf("create: %w", domain.ErrConflict), status: http.StatusConflict, code: "conflict"},
		{name: "persistence", body: `{"prompt":"X","targetAudience":"Y","brandInfo":"Z"}`, auth: true, submitErr: fmt.Errorf("%w: db down", domain.ErrPersistence), status: http.StatusInternalServerError, code: "internal"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc := &stubService{submitErr: tc.submitErr}
			app := NewApp(svc, zerolog.Nop())
			req := httptest.NewRequest(http.MethodPost, "/ads", bytes.NewBufferString(tc.body))
			if tc.auth {
				req = authed(req)
			}
			rec := httptest.NewRecorder()
			app.CreateAd(rec, req)

			if rec.Code != tc.status {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tc.status, rec.Body.String())
			}
			resp := decode(t, rec)
			if tc.code != "" {
				if resp.Error == nil || resp.Error.Code != tc.code {
					t.Fatalf("error = %+v, want code %q", resp.Error, tc.code)
				}
				if tc.submitErr == nil && len(svc.submitted) != 0 {
					t.Fatal("service called for rejected request")
				}
				return
			}
			var ad domain.Ad
			if err := json.Unmarshal(resp.Data, &ad); err != nil {
				t.Fatalf("decode ad: %v", err)
			}
			if ad.Status != domain.AdStatusPending || ad.ID == "" {
				t.Fatalf("unexpected ad: %+v", ad)
			}
			in := svc.submitted[0]
			if in.OwnerID != "user-1" || in.KeyID != "key-1" || in.Locale != "en" {
				t.Fatalf("unexpected submit input: %+v", in)
			}
		})
	}
}

func withID(req *http.Request, id string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", id)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func TestGetAd(t *testing.T) {
	svc := &stubService{ads: map[string]domain.Ad{
		"mine":   {ID: "mine", OwnerID: "user-1", Status: domain.AdStatusCompleted, ArtifactURL: "https://cdn/test/mine.png"},
		"theirs": {ID: "theirs", OwnerID: "user-2", Status: domain.AdStatusPending},
	}}
	app := NewApp(svc, zerolog.Nop())

	tests := []struct {
		id     string
		status int
	}{
		{"mine", http.StatusOK},
		{"theirs", http.StatusNotFound},
		{"missing", http.StatusNotFound},
		{" ", http.StatusBadRequest},
	}
	for _, tc := range tests {
		t.Run(tc.id, func(t *testing.T) {
			req := authed(withID(httptest.NewRequest(http.MethodGet, "/ads/x", nil), tc.id))
			rec := httptest.NewRecorder()
			app.GetAd(rec, req)
			if rec.Code != tc.status {
				t.Fatalf("status = %d, want %d", rec.Code, tc.status)
			}
			if tc.status != http.StatusOK {
				return
			}
			var ad domain.Ad
			if err := json.Unmarshal(decode(t, rec).Data, &ad); err != nil {
				t.Fatalf("decode ad: %v", err)
			}
			if ad.ArtifactURL != "https://cdn/test/mine.png" {
				t.Fatalf("artifactUrl = %q", ad.ArtifactURL)
			}
		})
	}
}

func TestListAds(t *testing.T) {
	svc := &stubService{ads: map[string]domain.Ad{
		"a": {ID: "a", OwnerID: "user-1", Status: domain.AdStatusPending},
		"b": {ID: "b", OwnerID: "user-2", Status: domain.AdStatusPending},
	}}
	app := NewApp(svc, zerolog.Nop())

	rec := httptest.NewRecorder()
	app.ListAds(rec, authed(httptest.NewRequest(http.MethodGet, "/ads", nil)))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var ads []domain.Ad
	if err := json.Unmarshal(decode(t, rec).Data, &ads); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(ads) != 1 || ads[0].ID != "a" {
		t.Fatalf("ads = %+v", ads)
	}

	empty := NewApp(&stubService{}, zerolog.Nop())
	rec = httptest.NewRecorder()
	empty.ListAds(rec, authed(httptest.NewRequest(http.MethodGet, "/ads", nil)))
	if got := string(decode(t, rec).Data); got != "[]" {
		t.Fatalf("empty list data = %s, want []", got)
	}

	failing := NewApp(&stubService{listErr: errors.New("boom")}, zerolog.Nop())
	rec = httptest.NewRecorder()
	failing.ListAds(rec, authed(httptest.NewRequest(http.MethodGet, "/ads", nil)))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	NewApp(&stubService{}, zerolog.Nop()).Health(rec, httptest.NewRequest(http.MethodGet, "/v1/healthz", nil))
	if rec.Code != http.StatusOK || !bytes.Contains(rec.Body.Bytes(), []byte(`"ok"`)) {
		t.Fatalf("health = %d %s", rec.Code, rec.Body.String())
	}
}
