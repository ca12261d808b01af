package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"server/internal/domain"
	"server/internal/gameweek"
	"server/internal/middleware"
	"server/internal/providers/billing"
	"server/internal/providers/predict"
	"server/internal/providers/stats"
	"server/internal/quota"
)

// App bundles the dependencies the HTTP handlers need. The composition root
// owns the lifecycle of every client handle in here.
type App struct {
	Logger    zerolog.Logger
	Users     domain.UserRepository
	Ledger    domain.QuotaLedger
	Gate      *quota.Gate
	Stats     stats.Provider
	Predictor predict.Predictor
	Biller    billing.Biller
	Gameweeks gameweek.Calculator
	DB        domain.Pinger
	JWTSecret string
	JWTTTL    time.Duration
	Now       func() time.Time
}

// NewApp fills in defaults. Now is injectable so tests control the gameweek.
func NewApp(app App) *App {
	if app.Now == nil {
		app.Now = time.Now
	}
	if app.JWTTTL <= 0 {
		app.JWTTTL = 24 * time.Hour
	}
	return &app
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, reason, message string) {
	a.json(w, code, map[string]string{"reason": reason, "error": message})
}

func (a *App) currentUserID(r *http.Request) string {
	return middleware.UserIDFromContext(r.Context())
}
