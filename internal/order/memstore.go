package order

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps orders in memory. Used in tests and local development.
type MemoryStore struct {
	mu     sync.Mutex
	orders map[string]LocalOrder
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore constructs an empty in-memory order store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{orders: make(map[string]LocalOrder)}
}

// Get fetches an order by id.
func (s *MemoryStore) Get(_ context.Context, id string) (LocalOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return LocalOrder{}, ErrNotFound
	}
	return o, nil
}

// Create inserts a new order in the unpaid/pending state.
func (s *MemoryStore) Create(_ context.Context, o LocalOrder) (LocalOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if strings.TrimSpace(o.ID) == "" {
		o.ID = uuid.NewString()
	}
	if o.PaymentStatus == "" {
		o.PaymentStatus = PaymentUnpaid
	}
	if o.Status == "" {
		o.Status = StatusPending
	}
	now := time.Now()
	o.CreatedAt = now
	o.UpdatedAt = now
	s.orders[o.ID] = o
	return o, nil
}

// UpdatePaymentOutcome mirrors the conditional semantics of PgStore: the
// write is skipped when the order is already paid.
func (s *MemoryStore) UpdatePaymentOutcome(_ context.Context, id string, out PaymentOutcome) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return false, ErrNotFound
	}
	if o.PaymentStatus == PaymentPaid {
		return false, nil
	}
	o.PaymentStatus = out.PaymentStatus
	o.Status = out.Status
	o.Notes = strings.TrimSpace(strings.TrimSpace(o.Notes) + " " + out.Note)
	o.UpdatedAt = time.Now()
	s.orders[id] = o
	return true, nil
}
