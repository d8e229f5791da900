// Package queue provides the kitchen display view over a shift's
// orders. It is a read path only; all mutation goes through the engine.
package queue

import (
	"github.com/fleetbite/galley/pkg/storage"
	"github.com/fleetbite/galley/pkg/types"
)

// Queue materializes KDS ticket lists from the store.
type Queue struct {
	store storage.Store
}

// NewQueue creates a queue view over the given store.
func NewQueue(store storage.Store) *Queue {
	return &Queue{store: store}
}

// List returns the shift's open tickets in ticket-number order.
// Terminal orders are excluded; held orders are included so the
// kitchen keeps seeing them. The underlying list is read in one
// storage snapshot, so an order appears at most once.
func (q *Queue) List(shiftID string) ([]*types.Order, error) {
	orders, err := q.store.ListOrdersByShift(shiftID)
	if err != nil {
		return nil, err
	}
	open := make([]*types.Order, 0, len(orders))
	for _, o := range orders {
		if o.State.Terminal() {
			continue
		}
		open = append(open, o)
	}
	return open, nil
}

// ListByState returns the shift's tickets in the given state, in
// ticket-number order.
func (q *Queue) ListByState(shiftID string, state types.OrderState) ([]*types.Order, error) {
	orders, err := q.store.ListOrdersByShift(shiftID)
	if err != nil {
		return nil, err
	}
	out := make([]*types.Order, 0, len(orders))
	for _, o := range orders {
		if o.State == state {
			out = append(out, o)
		}
	}
	return out, nil
}
