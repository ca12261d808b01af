package quota

import (
	"context"
	"sync"
	"time"

	"server/internal/domain"
)

type slot struct {
	state      domain.SlotState
	reservedAt time.Time
}

// MemoryLedger is an in-process domain.QuotaLedger with the same transition
// rules as the PostgreSQL adapter. Used in tests and database-less setups.
type MemoryLedger struct {
	mu    sync.Mutex
	slots map[string]map[string]slot
	ttl   time.Duration
	now   func() time.Time
}

func NewMemoryLedger(ttl time.Duration) *MemoryLedger {
	if ttl <= 0 {
		ttl = domain.ReserveTTLDefault
	}
	return &MemoryLedger{
		slots: make(map[string]map[string]slot),
		ttl:   ttl,
		now:   time.Now,
	}
}

// SetClock overrides the time source. Test hook.
func (m *MemoryLedger) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

func (m *MemoryLedger) Reserve(ctx context.Context, userID, gameweek string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	user := m.slots[userID]
	s, ok := user[gameweek]
	switch {
	case ok && s.state == domain.SlotConsumed:
		return domain.ErrSlotConsumed
	case ok && m.now().Sub(s.reservedAt) < m.ttl:
		return domain.ErrSlotReserved
	}

	if user == nil {
		user = make(map[string]slot)
		m.slots[userID] = user
	}
	user[gameweek] = slot{state: domain.SlotReserved, reservedAt: m.now()}
	return nil
}

func (m *MemoryLedger) Commit(ctx context.Context, userID, gameweek string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	user := m.slots[userID]
	if user == nil {
		user = make(map[string]slot)
		m.slots[userID] = user
	}
	s := user[gameweek]
	s.state = domain.SlotConsumed
	user[gameweek] = s
	return nil
}

func (m *MemoryLedger) Release(ctx context.Context, userID, gameweek string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if user := m.slots[userID]; user != nil {
		if s, ok := user[gameweek]; ok && s.state == domain.SlotReserved {
			delete(user, gameweek)
		}
	}
	return nil
}

func (m *MemoryLedger) ConsumedWindows(ctx context.Context, userID string) (map[string]bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	windows := make(map[string]bool)
	for gw, s := range m.slots[userID] {
		if s.state == domain.SlotConsumed {
			windows[gw] = true
		}
	}
	return windows, nil
}

var _ domain.QuotaLedger = (*MemoryLedger)(nil)
