// Package quota decides whether a free prediction may be served and tracks
// the reserve/commit/release lifecycle around the prediction pipeline.
package quota

import (
	"context"
	"errors"
	"fmt"

	"server/internal/domain"
)

// Denial reason codes surfaced to API callers.
const (
	ReasonQuotaExhausted  = "quota_exhausted"
	ReasonReservationHeld = "reservation_held"
)

// Decision is the outcome of a gate check. When Metered is true the caller
// holds a reservation and must Commit or Release it.
type Decision struct {
	Allowed bool
	Metered bool
	Reason  string
}

// Gate combines the user record and the quota ledger into the single
// gating decision. Premium users bypass the ledger entirely.
type Gate struct {
	users  domain.UserRepository
	ledger domain.QuotaLedger
}

func NewGate(users domain.UserRepository, ledger domain.QuotaLedger) *Gate {
	return &Gate{users: users, ledger: ledger}
}

// Check answers "may this user get a free prediction for this gameweek".
// Unknown users surface domain.ErrNotFound. For non-premium users an allowed
// decision implies a held reservation.
func (g *Gate) Check(ctx context.Context, userID, gameweek string) (Decision, error) {
	user, err := g.users.GetByID(ctx, userID)
	if err != nil {
		return Decision{}, fmt.Errorf("gate: load user: %w", err)
	}
	if user.IsPremium {
		return Decision{Allowed: true}, nil
	}

	if err := g.ledger.Reserve(ctx, userID, gameweek); err != nil {
		switch {
		case errors.Is(err, domain.ErrSlotConsumed):
			return Decision{Reason: ReasonQuotaExhausted}, nil
		case errors.Is(err, domain.ErrSlotReserved):
			return Decision{Reason: ReasonReservationHeld}, nil
		default:
			return Decision{}, fmt.Errorf("gate: reserve slot: %w", err)
		}
	}
	return Decision{Allowed: true, Metered: true}, nil
}

// Commit settles a held reservation after the pipeline produced a servable
// result. Safe to call more than once.
func (g *Gate) Commit(ctx context.Context, userID, gameweek string) error {
	return g.ledger.Commit(ctx, userID, gameweek)
}

// Release rolls a held reservation back so a failed pipeline run never
// charges the user's quota.
func (g *Gate) Release(ctx context.Context, userID, gameweek string) error {
	return g.ledger.Release(ctx, userID, gameweek)
}
