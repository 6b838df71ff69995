package ledger

import (
	"context"
	"sync"
)

// MemoryRepository keeps orders in process memory. Used when no database is
// configured and in tests.
type MemoryRepository struct {
	mu     sync.Mutex
	nextID int64
	orders map[int64]Order
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{orders: make(map[int64]Order)}
}

var _ Repository = (*MemoryRepository)(nil)

func (r *MemoryRepository) Create(_ context.Context, o Order) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	o.ID = r.nextID
	r.orders[o.ID] = o
	return o.ID, nil
}

func (r *MemoryRepository) FindByID(_ context.Context, id int64) (Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return Order{}, ErrNotFound
	}
	return o, nil
}

func (r *MemoryRepository) Update(_ context.Context, expected Status, o Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.orders[o.ID]
	if !ok {
		return ErrNotFound
	}
	if cur.Status != expected {
		return ErrConflict
	}
	cur.Amount = o.Amount
	cur.Status = o.Status
	r.orders[o.ID] = cur
	return nil
}
