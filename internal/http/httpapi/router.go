package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"server/internal/http/handlers"
	"server/internal/infra/geoip"
	"server/internal/middleware"
)

// RouterOptions carries the cross-cutting pieces the router wires around the
// handlers.
type RouterOptions struct {
	CORSAllowedOrigins []string
	Limiter            middleware.Limiter
	Countries          geoip.CountryResolver
}

func NewRouter(app *handlers.App, opts RouterOptions) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(app.Logger, opts.Countries),
		middleware.CORS(opts.CORSAllowedOrigins),
	)
	if opts.Limiter != nil {
		r.Use(middleware.RateLimit(opts.Limiter))
	}

	// Public surface.
	r.Get("/v1/healthz", app.Health)
	r.Get("/v1/fixtures", app.Fixtures)
	r.Post("/v1/auth/register", app.Register)
	r.Post("/v1/auth/login", app.Login)
	r.Post("/v1/billing/webhook", app.BillingWebhook)

	// Authenticated surface.
	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthJWT(app.JWTSecret))
		r.Get("/v1/me", app.Me)
		r.Post("/v1/predictions/free", app.FreePrediction)
		r.Post("/v1/predictions/weekly", app.WeeklyBest)
		r.Post("/v1/billing/checkout", app.BillingCheckout)
	})

	return r
}
