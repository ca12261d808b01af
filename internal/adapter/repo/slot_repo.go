package repo

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"server/internal/domain"
)

// SlotRepositoryPG implements domain.QuotaLedger as one row per
// (user, gameweek) in prediction_slots. All transitions are single-statement
// conditional writes, so concurrent requests never race a read-modify-save
// cycle in application code.
type SlotRepositoryPG struct {
	pool *pgxpool.Pool
	ttl  time.Duration
}

// NewSlotRepository creates a SlotRepositoryPG. ttl bounds how long a
// reservation may stay pending before it is reclaimable.
func NewSlotRepository(pool *pgxpool.Pool, ttl time.Duration) *SlotRepositoryPG {
	if ttl <= 0 {
		ttl = domain.ReserveTTLDefault
	}
	return &SlotRepositoryPG{pool: pool, ttl: ttl}
}

// Reserve claims the free slot for (userID, gameweek). The insert wins an
// unused slot; the conflict branch only takes over reservations older than
// the TTL. When neither applies the statement returns no row and the current
// state decides which denial the caller sees.
func (r *SlotRepositoryPG) Reserve(ctx context.Context, userID, gameweek string) error {
	query := `
INSERT INTO prediction_slots (user_id, gameweek, state, reserved_at)
VALUES ($1, $2, 'reserved', NOW())
ON CONFLICT (user_id, gameweek) DO UPDATE
SET state = 'reserved', reserved_at = NOW()
WHERE prediction_slots.state = 'reserved'
  AND prediction_slots.reserved_at < NOW() - make_interval(secs => $3)
RETURNING state;
`

	var state string
	err := r.pool.QueryRow(ctx, query, userID, gameweek, r.ttl.Seconds()).Scan(&state)
	if err == nil {
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return err
	}

	row := r.pool.QueryRow(ctx, `SELECT state FROM prediction_slots WHERE user_id = $1 AND gameweek = $2`, userID, gameweek)
	if err := row.Scan(&state); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Slot vanished between the two statements (a concurrent
			// release); treat it as held so the caller simply retries.
			return domain.ErrSlotReserved
		}
		return err
	}
	if state == string(domain.SlotConsumed) {
		return domain.ErrSlotConsumed
	}
	return domain.ErrSlotReserved
}

// Commit marks the slot consumed. Idempotent: committing a consumed slot
// leaves it untouched, and a missing row is recreated as consumed so the
// transition is never silently lost.
func (r *SlotRepositoryPG) Commit(ctx context.Context, userID, gameweek string) error {
	query := `
INSERT INTO prediction_slots (user_id, gameweek, state, reserved_at, consumed_at)
VALUES ($1, $2, 'consumed', NOW(), NOW())
ON CONFLICT (user_id, gameweek) DO UPDATE
SET state = 'consumed',
    consumed_at = COALESCE(prediction_slots.consumed_at, NOW());
`

	_, err := r.pool.Exec(ctx, query, userID, gameweek)
	return err
}

// Release rolls a reservation back to unused. Consumed slots are never
// released; releasing an absent slot is a no-op.
func (r *SlotRepositoryPG) Release(ctx context.Context, userID, gameweek string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM prediction_slots WHERE user_id = $1 AND gameweek = $2 AND state = 'reserved'`, userID, gameweek)
	return err
}

// ConsumedWindows returns the set of gameweeks the user has spent a free
// prediction on. This is the single place the ledger becomes a map.
func (r *SlotRepositoryPG) ConsumedWindows(ctx context.Context, userID string) (map[string]bool, error) {
	rows, err := r.pool.Query(ctx, `SELECT gameweek FROM prediction_slots WHERE user_id = $1 AND state = 'consumed'`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	windows := make(map[string]bool)
	for rows.Next() {
		var gw string
		if err := rows.Scan(&gw); err != nil {
			return nil, err
		}
		windows[gw] = true
	}
	return windows, rows.Err()
}

var _ domain.QuotaLedger = (*SlotRepositoryPG)(nil)
