package handlers

import (
	"net/http"

	"server/internal/domain"
)

type fixturesResponse struct {
	Fixtures []domain.Fixture `json:"fixtures"`
}

const upcomingFixtureCount = 10

// Fixtures lists the next upcoming matches for the configured league.
func (a *App) Fixtures(w http.ResponseWriter, r *http.Request) {
	fixtures, err := a.Stats.FetchUpcoming(r.Context(), upcomingFixtureCount)
	if err != nil {
		a.Logger.Error().Err(err).Msg("fetch fixtures failed")
		a.error(w, http.StatusBadGateway, "upstream_failed", "failed to fetch fixtures")
		return
	}
	a.json(w, http.StatusOK, fixturesResponse{Fixtures: fixtures})
}
