package handlers

import (
	"errors"
	"io"
	"net/http"

	"server/internal/domain"
	"server/internal/providers/billing"
)

type checkoutResponse struct {
	URL string `json:"url"`
}

func (a *App) BillingCheckout(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	if a.Biller == nil {
		a.error(w, http.StatusServiceUnavailable, "unavailable", "billing not configured")
		return
	}

	user, err := a.Users.GetByID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "user not found")
			return
		}
		a.Logger.Error().Err(err).Msg("load user failed")
		a.error(w, http.StatusInternalServerError, "internal", "checkout failed")
		return
	}

	url, err := a.Biller.CheckoutURL(r.Context(), user.ID, user.Email)
	if err != nil {
		a.Logger.Error().Err(err).Msg("create checkout session failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to create checkout session")
		return
	}
	a.json(w, http.StatusOK, checkoutResponse{URL: url})
}

// BillingWebhook receives payment-provider events. The only transition fed
// into the core is the monotonic free-to-premium promotion.
func (a *App) BillingWebhook(w http.ResponseWriter, r *http.Request) {
	if a.Biller == nil {
		a.error(w, http.StatusServiceUnavailable, "unavailable", "billing not configured")
		return
	}

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "unreadable payload")
		return
	}

	event, err := a.Biller.ParseEvent(payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		a.Logger.Warn().Err(err).Msg("webhook rejected")
		a.error(w, http.StatusBadRequest, "bad_request", "invalid webhook")
		return
	}

	if event.Type == billing.EventCheckoutCompleted && event.UserID != "" {
		if err := a.Users.SetPremium(r.Context(), event.UserID); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				a.Logger.Warn().Str("user_id", event.UserID).Msg("webhook for unknown user")
			} else {
				a.Logger.Error().Err(err).Str("user_id", event.UserID).Msg("premium promotion failed")
				a.error(w, http.StatusInternalServerError, "internal", "failed to apply upgrade")
				return
			}
		} else {
			a.Logger.Info().Str("user_id", event.UserID).Msg("user upgraded to premium")
		}
	}

	a.json(w, http.StatusOK, map[string]bool{"received": true})
}
