// Package gateway accepts orders from external ordering channels and
// reconciles them into shift state exactly once.
package gateway

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/fleetbite/galley/pkg/events"
	"github.com/fleetbite/galley/pkg/inventory"
	"github.com/fleetbite/galley/pkg/keylock"
	"github.com/fleetbite/galley/pkg/log"
	"github.com/fleetbite/galley/pkg/metrics"
	"github.com/fleetbite/galley/pkg/storage"
	"github.com/fleetbite/galley/pkg/types"
)

// Submission is an external order payload. IdempotencyKey is supplied
// by the ordering channel; replays with the same key return the order
// created by the first attempt.
type Submission struct {
	Items          []types.OrderItem
	CustomerName   string
	CustomerPhone  string
	IdempotencyKey string
}

// Gateway turns external submissions into PLACED orders: one ticket
// number, one atomic inventory reservation, one new_order event, no
// matter how many times the channel retries.
type Gateway struct {
	store    storage.Store
	registry *events.Registry
	ledger   *inventory.Ledger
	logger   zerolog.Logger

	// subs serializes submissions per idempotency key so that the
	// lookup and the key write act as one step; orders serializes
	// payment confirmations per order id.
	subs   *keylock.KeyedMutex
	orders *keylock.KeyedMutex
}

// NewGateway creates the reconciliation gateway.
func NewGateway(store storage.Store, registry *events.Registry, ledger *inventory.Ledger) *Gateway {
	return &Gateway{
		store:    store,
		registry: registry,
		ledger:   ledger,
		logger:   log.WithComponent("gateway"),
		subs:     keylock.New(),
		orders:   keylock.New(),
	}
}

// Submit reconciles one external submission into the shift. A replayed
// idempotency key returns the previously created order without
// touching the ledger. A reservation failure surfaces
// ErrStockUnavailable and leaves no effects at all.
func (g *Gateway) Submit(shiftID string, sub Submission) (*types.Order, error) {
	if len(sub.Items) == 0 {
		return nil, fmt.Errorf("submission has no items")
	}

	if sub.IdempotencyKey != "" {
		// Held until the key is written, so concurrent replays of the
		// same key line up behind the first and find its order.
		g.subs.Lock(sub.IdempotencyKey)
		defer g.subs.Unlock(sub.IdempotencyKey)

		orderID, err := g.store.GetSubmission(sub.IdempotencyKey)
		if err == nil {
			g.logger.Debug().Str("key", sub.IdempotencyKey).Msg("duplicate submission replayed")
			return g.store.GetOrder(orderID)
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return nil, err
		}
	}

	shift, err := g.store.GetShift(shiftID)
	if err != nil {
		return nil, err
	}
	if !shift.Active() {
		return nil, fmt.Errorf("shift %s is closed: %w", shiftID, types.ErrShiftNotActive)
	}

	if err := g.ledger.Reserve(shiftID, inventory.ReservationsFor(sub.Items), "order_placed"); err != nil {
		return nil, err
	}

	ticketNo, err := g.store.AllocateTicketNo(shiftID)
	if err != nil {
		g.release(shiftID, sub.Items)
		return nil, fmt.Errorf("failed to allocate ticket number: %w", err)
	}

	var subtotal int64
	for _, it := range sub.Items {
		subtotal += it.PriceCents * int64(it.Qty)
	}
	now := time.Now().UTC()
	order := &types.Order{
		ID:            uuid.New().String(),
		ShiftID:       shiftID,
		TicketNo:      ticketNo,
		Items:         sub.Items,
		State:         types.OrderPlaced,
		SubtotalCents: subtotal,
		TotalCents:    subtotal,
		CustomerName:  sub.CustomerName,
		CustomerPhone: sub.CustomerPhone,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := g.store.CreateOrder(order); err != nil {
		g.release(shiftID, sub.Items)
		return nil, fmt.Errorf("failed to persist order: %w", err)
	}

	if sub.IdempotencyKey != "" {
		if err := g.store.PutSubmission(sub.IdempotencyKey, order.ID); err != nil {
			// The order exists; a lost key only costs dedup on a later
			// retry, so log and carry on.
			g.logger.Error().Err(err).Str("key", sub.IdempotencyKey).Msg("failed to persist idempotency key")
		}
	}

	metrics.OrdersPlaced.Inc()
	g.registry.Publish(shiftID, types.EventNewOrder, map[string]any{
		"order_id":  order.ID,
		"ticket_no": order.TicketNo,
		"customer":  order.CustomerName,
		"items":     len(order.Items),
	})
	g.logger.Info().
		Str("order_id", order.ID).
		Int64("ticket_no", order.TicketNo).
		Str("shift_id", shiftID).
		Msg("order placed")
	return order, nil
}

// ConfirmPayment records a payment provider confirmation against an
// order. The transaction id is the idempotency key: a replayed webhook
// for an already-confirmed order is a no-op returning the order.
func (g *Gateway) ConfirmPayment(orderID, txnID string) (*types.Order, error) {
	g.orders.Lock(orderID)
	defer g.orders.Unlock(orderID)

	order, err := g.store.GetOrder(orderID)
	if err != nil {
		return nil, err
	}
	if order.PaymentRef != "" {
		if order.PaymentRef == txnID {
			return order, nil
		}
		return nil, fmt.Errorf("order %s already paid under ref %s", orderID, order.PaymentRef)
	}
	order.PaymentRef = txnID
	order.UpdatedAt = time.Now().UTC()
	if err := g.store.UpdateOrder(order); err != nil {
		return nil, fmt.Errorf("failed to persist payment ref: %w", err)
	}
	g.logger.Info().Str("order_id", orderID).Str("txn_id", txnID).Msg("payment confirmed")
	return order, nil
}

// release is the compensating restock for failures after Reserve.
func (g *Gateway) release(shiftID string, items []types.OrderItem) {
	if err := g.ledger.Release(shiftID, inventory.ReservationsFor(items), "submit_rollback"); err != nil {
		g.logger.Error().Err(err).Str("shift_id", shiftID).Msg("failed to roll back reservation")
	}
}
