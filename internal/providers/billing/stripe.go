// Package billing wraps the payment provider. The only state transition it
// feeds back into the core is the free-to-premium promotion.
package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
	"github.com/stripe/stripe-go/v79/webhook"
)

// EventCheckoutCompleted is the only webhook event type the core reacts to.
const EventCheckoutCompleted = "checkout.session.completed"

// Event is the distilled webhook fact handed to the core.
type Event struct {
	Type   string
	UserID string
}

// Biller is the surface handlers depend on.
type Biller interface {
	CheckoutURL(ctx context.Context, userID, email string) (string, error)
	ParseEvent(payload []byte, signature string) (Event, error)
}

type StripeOptions struct {
	SecretKey     string
	PriceID       string
	WebhookSecret string
	SuccessURL    string
	CancelURL     string
}

// StripeBiller creates subscription checkout sessions and decodes webhook
// deliveries. Signature verification is delegated to the stripe SDK; with no
// webhook secret configured (local development) the payload is trusted as-is.
type StripeBiller struct {
	api           *client.API
	priceID       string
	webhookSecret string
	successURL    string
	cancelURL     string
}

func NewStripeBiller(opts StripeOptions) (*StripeBiller, error) {
	if opts.SecretKey == "" {
		return nil, errors.New("stripe secret key is required")
	}
	if opts.PriceID == "" {
		return nil, errors.New("stripe price id is required")
	}
	api := &client.API{}
	api.Init(opts.SecretKey, nil)
	return &StripeBiller{
		api:           api,
		priceID:       opts.PriceID,
		webhookSecret: opts.WebhookSecret,
		successURL:    opts.SuccessURL,
		cancelURL:     opts.CancelURL,
	}, nil
}

// CheckoutURL opens a subscription checkout session linked back to the user
// through session metadata.
func (b *StripeBiller) CheckoutURL(ctx context.Context, userID, email string) (string, error) {
	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			Price:    stripe.String(b.priceID),
			Quantity: stripe.Int64(1),
		}},
		SuccessURL: stripe.String(b.successURL),
		CancelURL:  stripe.String(b.cancelURL),
	}
	params.Context = ctx
	if email != "" {
		params.CustomerEmail = stripe.String(email)
	}
	params.AddMetadata("user_id", userID)

	sess, err := b.api.CheckoutSessions.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe: create checkout session: %w", err)
	}
	return sess.URL, nil
}

// ParseEvent verifies and decodes a webhook delivery. For events other than
// checkout completion the user id is left empty.
func (b *StripeBiller) ParseEvent(payload []byte, signature string) (Event, error) {
	var ev stripe.Event
	if b.webhookSecret != "" {
		verified, err := webhook.ConstructEvent(payload, signature, b.webhookSecret)
		if err != nil {
			return Event{}, fmt.Errorf("stripe: verify webhook: %w", err)
		}
		ev = verified
	} else if err := json.Unmarshal(payload, &ev); err != nil {
		return Event{}, fmt.Errorf("stripe: decode webhook: %w", err)
	}

	out := Event{Type: string(ev.Type)}
	if out.Type != EventCheckoutCompleted {
		return out, nil
	}

	var sess stripe.CheckoutSession
	if err := json.Unmarshal(ev.Data.Raw, &sess); err != nil {
		return Event{}, fmt.Errorf("stripe: decode checkout session: %w", err)
	}
	out.UserID = sess.Metadata["user_id"]
	return out, nil
}

var _ Biller = (*StripeBiller)(nil)
