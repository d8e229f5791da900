package engine

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/fleetbite/galley/pkg/events"
	"github.com/fleetbite/galley/pkg/inventory"
	"github.com/fleetbite/galley/pkg/keylock"
	"github.com/fleetbite/galley/pkg/log"
	"github.com/fleetbite/galley/pkg/metrics"
	"github.com/fleetbite/galley/pkg/storage"
	"github.com/fleetbite/galley/pkg/types"
)

// transitions is the single source of truth for legal state edges.
// ON_HOLD is entered from here but left only through Resume, which
// restores the state recorded at hold time.
var transitions = map[types.OrderState][]types.OrderState{
	types.OrderPlaced:     {types.OrderInProgress, types.OrderCancelled},
	types.OrderInProgress: {types.OrderReady, types.OrderOnHold, types.OrderCancelled},
	types.OrderReady:      {types.OrderCompleted, types.OrderOnHold, types.OrderCancelled},
	types.OrderOnHold:     {types.OrderCancelled},
}

func legal(from, to types.OrderState) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Engine drives orders through their lifecycle. Every mutation of one
// order is serialized by a per-order mutex, so concurrent requests for
// the same transition resolve to one winner; losers re-read the new
// state and fail the table check with ErrInvalidTransition.
type Engine struct {
	store    storage.Store
	registry *events.Registry
	ledger   *inventory.Ledger
	logger   zerolog.Logger

	// orders serializes mutations per order id; shifts is the admission
	// lock held while checking and consuming IN_PROGRESS capacity.
	// Lock order is always order before shift.
	orders *keylock.KeyedMutex
	shifts *keylock.KeyedMutex
}

// NewEngine creates the order engine.
func NewEngine(store storage.Store, registry *events.Registry, ledger *inventory.Ledger) *Engine {
	return &Engine{
		store:    store,
		registry: registry,
		ledger:   ledger,
		logger:   log.WithComponent("engine"),
		orders:   keylock.New(),
		shifts:   keylock.New(),
	}
}

// Advance moves an order along a legal edge of the transition table.
// Entering IN_PROGRESS is subject to the shift's MaxInProgress
// throttle; use Hold, Resume and Cancel for their dedicated semantics.
func (e *Engine) Advance(orderID string, to types.OrderState, actor string) (*types.Order, error) {
	e.orders.Lock(orderID)
	defer e.orders.Unlock(orderID)

	if to == types.OrderOnHold {
		// Holds carry a reason and restore bookkeeping; Hold is the
		// only way in.
		return nil, fmt.Errorf("hold requires a reason: %w", types.ErrInvalidTransition)
	}

	order, shift, err := e.loadLocked(orderID)
	if err != nil {
		return nil, err
	}
	if to == types.OrderInProgress {
		// Admission lock held through the persist so two orders cannot
		// both pass the check and exceed the cap.
		e.shifts.Lock(shift.ID)
		defer e.shifts.Unlock(shift.ID)
		if err := e.checkThrottle(shift); err != nil {
			return nil, err
		}
	}
	return e.applyLocked(order, to, actor, nil)
}

// Hold parks an order, remembering the state to restore on Resume.
// reason is required; resumeBy is informational only.
func (e *Engine) Hold(orderID, reason string, resumeBy *time.Time, actor string) (*types.Order, error) {
	e.orders.Lock(orderID)
	defer e.orders.Unlock(orderID)

	order, _, err := e.loadLocked(orderID)
	if err != nil {
		return nil, err
	}
	prev := order.State
	mutate := func(o *types.Order) {
		now := o.UpdatedAt
		o.PrevState = prev
		o.HoldReason = reason
		o.HoldResumeBy = resumeBy
		o.HeldAt = &now
	}
	return e.applyLocked(order, types.OrderOnHold, actor, mutate)
}

// Resume returns a held order to the state it was in when held.
func (e *Engine) Resume(orderID, actor string) (*types.Order, error) {
	e.orders.Lock(orderID)
	defer e.orders.Unlock(orderID)

	order, shift, err := e.loadLocked(orderID)
	if err != nil {
		return nil, err
	}
	if order.State != types.OrderOnHold {
		metrics.TransitionsRejected.Inc()
		return nil, fmt.Errorf("order %s is %s, not on hold: %w",
			orderID, order.State, types.ErrInvalidTransition)
	}
	target := order.PrevState
	if target == "" {
		target = types.OrderInProgress
	}
	if target == types.OrderInProgress {
		e.shifts.Lock(shift.ID)
		defer e.shifts.Unlock(shift.ID)
		if err := e.checkThrottle(shift); err != nil {
			return nil, err
		}
	}

	now := time.Now().UTC()
	from := order.State
	order.State = target
	order.PrevState = ""
	order.HoldReason = ""
	order.HoldResumeBy = nil
	order.ResumedAt = &now
	order.UpdatedAt = now
	if err := e.store.UpdateOrder(order); err != nil {
		return nil, fmt.Errorf("failed to persist order: %w", err)
	}
	e.publishUpdated(order, from, actor)
	return order, nil
}

// Cancel terminates any non-terminal order and restocks its items.
func (e *Engine) Cancel(orderID, reason, actor string) (*types.Order, error) {
	e.orders.Lock(orderID)
	defer e.orders.Unlock(orderID)

	order, _, err := e.loadLocked(orderID)
	if err != nil {
		return nil, err
	}
	if order.State.Terminal() {
		metrics.TransitionsRejected.Inc()
		return nil, fmt.Errorf("order %s is already %s: %w",
			orderID, order.State, types.ErrInvalidTransition)
	}

	now := time.Now().UTC()
	from := order.State
	order.State = types.OrderCancelled
	order.PrevState = ""
	order.CancelReason = reason
	order.CancelledAt = &now
	order.UpdatedAt = now
	if err := e.store.UpdateOrder(order); err != nil {
		return nil, fmt.Errorf("failed to persist order: %w", err)
	}

	// Restock after the cancel is durable. A restock failure is logged,
	// never surfaced: the cancellation stands either way.
	if err := e.ledger.Release(order.ShiftID, inventory.ReservationsFor(order.Items), "order_cancelled"); err != nil {
		e.logger.Error().Err(err).Str("order_id", order.ID).Msg("failed to restock cancelled order")
	}

	e.publishUpdated(order, from, actor)
	return order, nil
}

// AdvanceReady completes every READY order of a shift in one sweep,
// typically at end of service. Orders that race into another state are
// skipped. Returns the number of orders completed.
func (e *Engine) AdvanceReady(shiftID, actor string) (int, error) {
	orders, err := e.store.ListOrdersByShift(shiftID)
	if err != nil {
		return 0, err
	}

	completed := 0
	for _, o := range orders {
		if o.State != types.OrderReady {
			continue
		}
		if _, err := e.Advance(o.ID, types.OrderCompleted, actor); err != nil {
			e.logger.Debug().Err(err).Str("order_id", o.ID).Msg("skipping order in bulk advance")
			continue
		}
		completed++
	}
	return completed, nil
}

// loadLocked fetches the order and its shift and rejects mutations on
// closed shifts. Reading under the order lock is what makes concurrent
// requests observe each other's writes.
func (e *Engine) loadLocked(orderID string) (*types.Order, *types.Shift, error) {
	order, err := e.store.GetOrder(orderID)
	if err != nil {
		return nil, nil, err
	}
	shift, err := e.store.GetShift(order.ShiftID)
	if err != nil {
		return nil, nil, err
	}
	if !shift.Active() {
		return nil, nil, fmt.Errorf("shift %s is closed: %w", shift.ID, types.ErrShiftNotActive)
	}
	return order, shift, nil
}

// checkThrottle counts the shift's IN_PROGRESS orders. The caller
// holds the shift admission lock, so the count stays valid until the
// admitted order is persisted.
func (e *Engine) checkThrottle(shift *types.Shift) error {
	if shift.Config.MaxInProgress <= 0 {
		return nil
	}
	orders, err := e.store.ListOrdersByShift(shift.ID)
	if err != nil {
		return err
	}
	inProgress := 0
	for _, o := range orders {
		if o.State == types.OrderInProgress {
			inProgress++
		}
	}
	if inProgress >= shift.Config.MaxInProgress {
		return fmt.Errorf("%d orders in progress, limit %d: %w",
			inProgress, shift.Config.MaxInProgress, types.ErrThrottled)
	}
	return nil
}

// applyLocked validates the edge, applies optional extra mutation,
// persists, and publishes. Caller holds the order lock.
func (e *Engine) applyLocked(order *types.Order, to types.OrderState, actor string, mutate func(*types.Order)) (*types.Order, error) {
	if !legal(order.State, to) {
		metrics.TransitionsRejected.Inc()
		return nil, fmt.Errorf("order %s: %s -> %s: %w",
			order.ID, order.State, to, types.ErrInvalidTransition)
	}

	now := time.Now().UTC()
	from := order.State
	order.State = to
	order.UpdatedAt = now
	if to == types.OrderCompleted {
		order.CompletedAt = &now
	}
	if mutate != nil {
		mutate(order)
	}
	if err := e.store.UpdateOrder(order); err != nil {
		return nil, fmt.Errorf("failed to persist order: %w", err)
	}
	e.publishUpdated(order, from, actor)
	return order, nil
}

// publishUpdated emits order_updated after the new state is durable.
// Delivery is best-effort; the persisted transition stands regardless.
func (e *Engine) publishUpdated(order *types.Order, from types.OrderState, actor string) {
	metrics.OrderTransitions.WithLabelValues(string(order.State)).Inc()
	e.registry.Publish(order.ShiftID, types.EventOrderUpdated, map[string]any{
		"order_id":  order.ID,
		"ticket_no": order.TicketNo,
		"from":      string(from),
		"to":        string(order.State),
		"actor":     actor,
	})
	e.logger.Debug().
		Str("order_id", order.ID).
		Str("from", string(from)).
		Str("to", string(order.State)).
		Msg("order transitioned")
}
