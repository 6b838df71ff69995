package ledger

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/local/pisoprint/internal/metrics"
)

// Repository persists orders. Update must only apply when the stored status
// still equals expected, returning ErrConflict otherwise.
type Repository interface {
	Create(ctx context.Context, o Order) (int64, error)
	FindByID(ctx context.Context, id int64) (Order, error)
	Update(ctx context.Context, expected Status, o Order) error
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Create validates raw and stores it, returning the new order id.
func (s *Service) Create(ctx context.Context, raw RawOrder) (int64, error) {
	o, err := raw.Normalize()
	if err != nil {
		metrics.IncOrder("create", "invalid")
		return 0, err
	}
	id, err := s.repo.Create(ctx, o)
	if err != nil {
		metrics.IncOrder("create", "error")
		return 0, fmt.Errorf("store order: %w", err)
	}
	metrics.IncOrder("create", "ok")
	log.Info().
		Int64("order_id", id).
		Str("file_path", o.FilePath).
		Str("status", string(o.Status)).
		Str("amount", o.Amount.StringFixed(2)).
		Msg("order created")
	return id, nil
}

// Update applies an amount and/or status change. Status changes follow the
// lifecycle; terminal orders accept no change at all.
func (s *Service) Update(ctx context.Context, raw RawUpdate) (Order, error) {
	u, err := raw.Normalize()
	if err != nil {
		metrics.IncOrder("update", "invalid")
		return Order{}, err
	}
	current, err := s.repo.FindByID(ctx, u.ID)
	if err != nil {
		metrics.IncOrder("update", "error")
		return Order{}, err
	}

	next := current
	if u.Status != nil {
		next.Status = *u.Status
	}
	if !CanTransition(current.Status, next.Status) {
		metrics.IncOrder("update", "rejected")
		return Order{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current.Status, next.Status)
	}
	if u.Amount != nil {
		next.Amount = *u.Amount
	}

	if err := s.repo.Update(ctx, current.Status, next); err != nil {
		metrics.IncOrder("update", "error")
		return Order{}, err
	}
	metrics.IncOrder("update", "ok")
	log.Info().
		Int64("order_id", next.ID).
		Str("from", string(current.Status)).
		Str("to", string(next.Status)).
		Str("amount", next.Amount.StringFixed(2)).
		Msg("order updated")
	return next, nil
}
