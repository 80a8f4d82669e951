package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"adgen/internal/domain"
	"adgen/internal/jobs"
)

// AdService is the part of the job coordinator the HTTP layer uses.
type AdService interface {
	Submit(ctx context.Context, in jobs.SubmitInput) (*domain.Ad, error)
	FetchByIDForOwner(ctx context.Context, id, ownerID string) (*domain.Ad, error)
	FetchAllByOwner(ctx context.Context, ownerID string) ([]domain.Ad, error)
}

type App struct {
	Ads    AdService
	Logger zerolog.Logger
	// MaxBodyBytes caps request bodies; zero uses defaultMaxBody.
	MaxBodyBytes int64
}

const defaultMaxBody = 64 << 10

func NewApp(ads AdService, logger zerolog.Logger) *App {
	return &App{Ads: ads, Logger: logger, MaxBodyBytes: defaultMaxBody}
}

type envelope struct {
	Message string `json:"message"`
	Data    any    `json:"data"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorEnvelope struct {
	Message string      `json:"message"`
	Error   errorDetail `json:"error"`
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) data(w http.ResponseWriter, code int, msg string, v any) {
	a.json(w, code, envelope{Message: msg, Data: v})
}

func (a *App) error(w http.ResponseWriter, code int, slug, msg string) {
	a.json(w, code, errorEnvelope{Message: msg, Error: errorDetail{Code: slug, Message: msg}})
}

// log returns the request scoped logger when the access log middleware set
// one, else the app logger.
func (a *App) log(r *http.Request) *zerolog.Logger {
	if l := zerolog.Ctx(r.Context()); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &a.Logger
}
