package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"adgen/internal/domain"
	"adgen/internal/domain/jsoncfg"
	"adgen/internal/jobs"
	"adgen/internal/middleware"
)

// CreateAd accepts a generation request and answers with the pending ad.
func (a *App) CreateAd(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	keyID := middleware.KeyIDFromContext(r.Context())
	if userID == "" || keyID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}

	limit := a.MaxBodyBytes
	if limit <= 0 {
		limit = defaultMaxBody
	}
	var req jsoncfg.AdRequestJSON
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, limit))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	req.Normalize(middleware.LocaleFromContext(r.Context()))
	if err := req.Validate(); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	ad, err := a.Ads.Submit(r.Context(), jobs.SubmitInput{
		ID:        req.ID,
		OwnerID:   userID,
		KeyID:     keyID,
		RequestID: middleware.RequestIDFromContext(r.Context()),
		AdInput:   req.Input(),
	})
	if err != nil {
		a.serviceError(w, r, err)
		return
	}
	a.data(w, http.StatusCreated, "Ad generation started", ad)
}

// GetAd returns one of the caller's ads as currently persisted.
func (a *App) GetAd(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "id required")
		return
	}
	ad, err := a.Ads.FetchByIDForOwner(r.Context(), id, userID)
	if err != nil {
		a.serviceError(w, r, err)
		return
	}
	a.data(w, http.StatusOK, "Ad retrieved", ad)
}

// ListAds returns the caller's ads, newest first.
func (a *App) ListAds(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	ads, err := a.Ads.FetchAllByOwner(r.Context(), userID)
	if err != nil {
		a.serviceError(w, r, err)
		return
	}
	if ads == nil {
		ads = []domain.Ad{}
	}
	a.data(w, http.StatusOK, "Ads retrieved", ads)
}

func (a *App) serviceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		a.error(w, http.StatusUnauthorized, "unauthorized", "unauthorized")
	case errors.Is(err, domain.ErrInsufficientCredits):
		a.error(w, http.StatusPaymentRequired, "insufficient_credits", "insufficient credits")
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, http.StatusNotFound, "not_found", "ad not found")
	case errors.Is(err, domain.ErrConflict):
		a.error(w, http.StatusConflict, "conflict", "ad already exists")
	default:
		a.log(r).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		a.error(w, http.StatusInternalServerError, "internal", "internal error")
	}
}
