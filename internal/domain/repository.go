package domain

import (
	"context"
	"time"
)

// UserRepository defines access methods for users.
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	SetPremium(ctx context.Context, id string) error
}

// SlotState is the lifecycle of a free-prediction slot for one gameweek.
// Absence of a slot means the gameweek is unused.
type SlotState string

const (
	SlotReserved SlotState = "reserved"
	SlotConsumed SlotState = "consumed"
)

// QuotaLedger records free-prediction consumption per (user, gameweek).
//
// Reserve is an atomic test-and-set: exactly one concurrent caller wins an
// unused slot; losers receive ErrSlotReserved. A reservation older than the
// ledger's TTL counts as unused again, so an abandoned request never locks a
// user out. Commit and Release are both idempotent.
type QuotaLedger interface {
	Reserve(ctx context.Context, userID, gameweek string) error
	Commit(ctx context.Context, userID, gameweek string) error
	Release(ctx context.Context, userID, gameweek string) error
	ConsumedWindows(ctx context.Context, userID string) (map[string]bool, error)
}

// Pinger reports storage liveness for health checks.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ReserveTTLDefault bounds how long a reservation may stay pending before it
// is reclaimable. Two chained upstream calls fit well inside it.
const ReserveTTLDefault = 90 * time.Second
