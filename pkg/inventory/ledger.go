package inventory

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/fleetbite/galley/pkg/config"
	"github.com/fleetbite/galley/pkg/events"
	"github.com/fleetbite/galley/pkg/keylock"
	"github.com/fleetbite/galley/pkg/log"
	"github.com/fleetbite/galley/pkg/metrics"
	"github.com/fleetbite/galley/pkg/storage"
	"github.com/fleetbite/galley/pkg/types"
)

// Reservation is one line of an all-or-nothing stock reservation.
type Reservation struct {
	ItemID string
	Qty    int
}

// Ledger owns per-shift stock counts. Adjustments to one line are
// serialized by a per-line mutex; different lines proceed
// independently. Crossing the low-stock threshold downward publishes a
// low_stock event, and every applied delta is recorded as an audit row.
type Ledger struct {
	store    storage.Store
	registry *events.Registry
	policy   config.StockPolicy
	logger   zerolog.Logger

	lines *keylock.KeyedMutex // keyed shiftID/itemID
}

// NewLedger creates a ledger over the given store. policy decides
// whether a decrement past zero clamps or is rejected.
func NewLedger(store storage.Store, registry *events.Registry, policy config.StockPolicy) *Ledger {
	return &Ledger{
		store:    store,
		registry: registry,
		policy:   policy,
		logger:   log.WithComponent("inventory"),
		lines:    keylock.New(),
	}
}

func lineKey(shiftID, itemID string) string {
	return shiftID + "/" + itemID
}

// Adjust applies delta to one line and returns the updated line.
// Unlimited lines pass through untouched. A negative delta that would
// cross zero fails ErrInsufficientStock under the reject policy, or
// clamps to zero and flags the line sold out under the clamp policy.
func (l *Ledger) Adjust(shiftID, itemID string, delta int, reason, staffID string) (*types.InventoryLine, error) {
	key := lineKey(shiftID, itemID)
	l.lines.Lock(key)
	defer l.lines.Unlock(key)

	return l.adjustLocked(shiftID, itemID, delta, reason, staffID)
}

// adjustLocked assumes the caller holds the line lock.
func (l *Ledger) adjustLocked(shiftID, itemID string, delta int, reason, staffID string) (*types.InventoryLine, error) {
	line, err := l.store.GetInventoryLine(shiftID, itemID)
	if err != nil {
		return nil, err
	}
	if line.Unlimited() {
		return line, nil
	}

	prev := *line.Count
	next := prev + delta
	applied := delta
	if next < 0 {
		if l.policy == config.StockPolicyReject {
			return nil, fmt.Errorf("item %s: have %d, requested %d: %w",
				itemID, prev, -delta, types.ErrInsufficientStock)
		}
		next = 0
		applied = -prev
	}

	line.Count = &next
	if next == 0 {
		if !line.SoldOut {
			metrics.SoldOutLines.Inc()
		}
		line.SoldOut = true
	} else if delta > 0 && line.SoldOut {
		line.SoldOut = false
		metrics.SoldOutLines.Dec()
	}
	line.UpdatedAt = time.Now().UTC()

	if err := l.store.PutInventoryLine(line); err != nil {
		return nil, fmt.Errorf("failed to persist inventory line: %w", err)
	}
	if applied != 0 {
		if err := l.store.AppendInventoryAdjustment(&types.InventoryAdjustment{
			ID:        uuid.New().String(),
			ShiftID:   shiftID,
			ItemID:    itemID,
			Delta:     applied,
			Reason:    reason,
			StaffID:   staffID,
			CreatedAt: line.UpdatedAt,
		}); err != nil {
			// The line mutation already stands; the audit row is
			// secondary and must not fail the adjustment.
			l.logger.Error().Err(err).Str("item_id", itemID).Msg("failed to record adjustment")
		}
		metrics.InventoryAdjustments.Inc()
	}

	if prev > line.LowStockThreshold && next <= line.LowStockThreshold {
		l.registry.Publish(shiftID, types.EventLowStock, map[string]any{
			"item_id": itemID,
			"name":    line.Name,
			"count":   next,
		})
	}

	return line, nil
}

// SetSoldOut flags a line as (un)available without changing its count.
func (l *Ledger) SetSoldOut(shiftID, itemID string, soldOut bool) (*types.InventoryLine, error) {
	key := lineKey(shiftID, itemID)
	l.lines.Lock(key)
	defer l.lines.Unlock(key)

	line, err := l.store.GetInventoryLine(shiftID, itemID)
	if err != nil {
		return nil, err
	}
	if line.SoldOut == soldOut {
		return line, nil
	}
	line.SoldOut = soldOut
	line.UpdatedAt = time.Now().UTC()
	if err := l.store.PutInventoryLine(line); err != nil {
		return nil, fmt.Errorf("failed to persist inventory line: %w", err)
	}
	if soldOut {
		metrics.SoldOutLines.Inc()
	} else {
		metrics.SoldOutLines.Dec()
	}
	return line, nil
}

// Reserve decrements every line of an order as a single atomic step.
// All line locks are taken in sorted order, availability is verified
// for every line before any decrement is applied, and a failure leaves
// no partial effects. Errors surface as ErrStockUnavailable.
func (l *Ledger) Reserve(shiftID string, items []Reservation, reason string) error {
	merged := mergeReservations(items)

	keys := make([]string, len(merged))
	for i, res := range merged {
		keys[i] = lineKey(shiftID, res.ItemID)
	}
	for _, key := range keys {
		l.lines.Lock(key)
	}
	defer func() {
		for i := len(keys) - 1; i >= 0; i-- {
			l.lines.Unlock(keys[i])
		}
	}()

	// Verify everything first: no decrement may happen unless all fit.
	for _, res := range merged {
		line, err := l.store.GetInventoryLine(shiftID, res.ItemID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return fmt.Errorf("item %s not on shift menu: %w", res.ItemID, types.ErrStockUnavailable)
			}
			return err
		}
		if line.SoldOut {
			return fmt.Errorf("item %s sold out: %w", res.ItemID, types.ErrStockUnavailable)
		}
		if !line.Unlimited() && *line.Count < res.Qty {
			return fmt.Errorf("item %s: have %d, need %d: %w",
				res.ItemID, *line.Count, res.Qty, types.ErrStockUnavailable)
		}
	}

	for _, res := range merged {
		if _, err := l.adjustLocked(shiftID, res.ItemID, -res.Qty, reason, ""); err != nil {
			// Verification passed and the locks are held, so this is a
			// storage failure. Compensate what was already applied.
			l.logger.Error().Err(err).Str("item_id", res.ItemID).Msg("reserve failed mid-apply, rolling back")
			for _, done := range merged {
				if done.ItemID == res.ItemID {
					break
				}
				if _, rerr := l.adjustLocked(shiftID, done.ItemID, done.Qty, "reserve_rollback", ""); rerr != nil {
					l.logger.Error().Err(rerr).Str("item_id", done.ItemID).Msg("rollback failed")
				}
			}
			return fmt.Errorf("reserve %s: %w", res.ItemID, types.ErrStockUnavailable)
		}
	}
	return nil
}

// Release restocks every line of a cancelled order (the compensating
// half of Reserve).
func (l *Ledger) Release(shiftID string, items []Reservation, reason string) error {
	merged := mergeReservations(items)
	for _, res := range merged {
		if _, err := l.Adjust(shiftID, res.ItemID, res.Qty, reason, ""); err != nil {
			return err
		}
	}
	return nil
}

// mergeReservations combines duplicate item ids and returns the result
// sorted by item id, giving Reserve a stable lock order.
func mergeReservations(items []Reservation) []Reservation {
	byItem := make(map[string]int)
	for _, it := range items {
		byItem[it.ItemID] += it.Qty
	}
	merged := make([]Reservation, 0, len(byItem))
	for id, qty := range byItem {
		merged = append(merged, Reservation{ItemID: id, Qty: qty})
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].ItemID < merged[j].ItemID })
	return merged
}

// ReservationsFor converts an order's line items into ledger
// reservations.
func ReservationsFor(items []types.OrderItem) []Reservation {
	out := make([]Reservation, 0, len(items))
	for _, it := range items {
		out = append(out, Reservation{ItemID: it.ItemID, Qty: it.Qty})
	}
	return out
}
