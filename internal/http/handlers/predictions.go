package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"server/internal/domain"
	"server/internal/quota"
)

type freePredictionRequest struct {
	FixtureID int64 `json:"fixture_id,omitempty"`
	HomeTeam  int   `json:"home_team"`
	AwayTeam  int   `json:"away_team"`
}

type recentFormDTO struct {
	Home []domain.FormResult `json:"home"`
	Away []domain.FormResult `json:"away"`
}

type predictionResponse struct {
	Gameweek string `json:"gameweek"`
	domain.Prediction
	RecentForm recentFormDTO       `json:"recent_form"`
	Stats      domain.MatchContext `json:"stats"`
}

// FreePrediction serves the metered free-tier prediction. The reservation is
// committed only after a servable payload exists; every failure in between
// releases it so the user's weekly slot is never burned on an error.
func (a *App) FreePrediction(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}

	var req freePredictionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if req.HomeTeam == 0 || req.AwayTeam == 0 || req.HomeTeam == req.AwayTeam {
		a.error(w, http.StatusBadRequest, "bad_request", "home_team and away_team ids required")
		return
	}

	ctx := r.Context()
	gw := a.Gameweeks.ID(a.Now())

	decision, err := a.Gate.Check(ctx, userID, gw)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "user not found")
			return
		}
		a.Logger.Error().Err(err).Str("gameweek", gw).Msg("gate check failed")
		a.error(w, http.StatusInternalServerError, "internal", "prediction failed")
		return
	}
	if !decision.Allowed {
		switch decision.Reason {
		case quota.ReasonReservationHeld:
			a.error(w, http.StatusConflict, decision.Reason, "a free prediction for this gameweek is already in progress")
		default:
			a.error(w, http.StatusForbidden, decision.Reason, "free prediction already used this week")
		}
		return
	}

	mctx := a.Stats.FetchMatchContext(ctx, req.HomeTeam, req.AwayTeam)

	prediction, err := a.Predictor.Predict(ctx, mctx)
	if err != nil {
		if decision.Metered {
			if relErr := a.Gate.Release(ctx, userID, gw); relErr != nil {
				a.Logger.Error().Err(relErr).Str("gameweek", gw).Msg("release reservation failed")
			}
		}
		if errors.Is(err, domain.ErrProviderRateLimit) {
			a.error(w, http.StatusTooManyRequests, "rate_limited", "generation provider rate limited")
			return
		}
		a.Logger.Error().Err(err).Str("gameweek", gw).Msg("prediction pipeline failed")
		a.error(w, http.StatusBadGateway, "upstream_failed", "prediction failed")
		return
	}

	if decision.Metered {
		// Commit failures are deliberately not surfaced: the user gets the
		// result without being charged, which is the user-favorable side.
		if err := a.Gate.Commit(ctx, userID, gw); err != nil {
			a.Logger.Error().Err(err).Str("gameweek", gw).Msg("commit reservation failed")
		}
	}

	a.json(w, http.StatusOK, predictionResponse{
		Gameweek:   gw,
		Prediction: *prediction,
		RecentForm: recentFormDTO{
			Home: mctx.Home.RecentForm,
			Away: mctx.Away.RecentForm,
		},
		Stats: mctx,
	})
}

type weeklyFixture struct {
	FixtureID int64 `json:"fixture_id,omitempty"`
	HomeTeam  int   `json:"home_team"`
	AwayTeam  int   `json:"away_team"`
}

type weeklyRequest struct {
	Fixtures []weeklyFixture `json:"fixtures"`
}

type weeklyResponse struct {
	Fixture    weeklyFixture     `json:"fixture"`
	Prediction domain.Prediction `json:"prediction"`
	Confidence float64           `json:"confidence"`
}

const maxWeeklyFixtures = 20

// WeeklyBest is the premium bet-of-the-week picker: it predicts every
// submitted fixture and returns the one with the strongest signal.
func (a *App) WeeklyBest(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}

	user, err := a.Users.GetByID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "user not found")
			return
		}
		a.Logger.Error().Err(err).Msg("load user failed")
		a.error(w, http.StatusInternalServerError, "internal", "lookup failed")
		return
	}
	if !user.IsPremium {
		a.error(w, http.StatusForbidden, "premium_required", "premium only")
		return
	}

	var req weeklyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if len(req.Fixtures) == 0 {
		a.error(w, http.StatusBadRequest, "bad_request", "no fixtures provided")
		return
	}
	if len(req.Fixtures) > maxWeeklyFixtures {
		req.Fixtures = req.Fixtures[:maxWeeklyFixtures]
	}

	ctx := r.Context()
	var best *weeklyResponse
	for _, f := range req.Fixtures {
		if f.HomeTeam == 0 || f.AwayTeam == 0 {
			continue
		}
		mctx := a.Stats.FetchMatchContext(ctx, f.HomeTeam, f.AwayTeam)
		prediction, err := a.Predictor.Predict(ctx, mctx)
		if err != nil {
			if errors.Is(err, domain.ErrProviderRateLimit) {
				a.error(w, http.StatusTooManyRequests, "rate_limited", "generation provider rate limited")
				return
			}
			a.Logger.Warn().Err(err).Int("home", f.HomeTeam).Int("away", f.AwayTeam).Msg("skipping fixture")
			continue
		}
		score := confidenceScore(prediction)
		if best == nil || score > best.Confidence {
			best = &weeklyResponse{Fixture: f, Prediction: *prediction, Confidence: score}
		}
	}
	if best == nil {
		a.error(w, http.StatusBadGateway, "upstream_failed", "no fixture could be predicted")
		return
	}
	a.json(w, http.StatusOK, best)
}

// confidenceScore ranks predictions: a decisive winner outweighs a likely
// goal-fest.
func confidenceScore(p *domain.Prediction) float64 {
	winMax := p.WinChances.Home
	if p.WinChances.Away > winMax {
		winMax = p.WinChances.Away
	}
	return float64(winMax)*1.5 + float64(p.BTTSPct)*0.5
}
