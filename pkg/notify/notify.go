// Package notify mirrors selected domain events into queued push/SMS
// notification records for the shift's staff. Delivery itself is
// out of scope; rows are written with status "queued" and picked up by
// an external sender.
package notify

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/fleetbite/galley/pkg/events"
	"github.com/fleetbite/galley/pkg/log"
	"github.com/fleetbite/galley/pkg/storage"
	"github.com/fleetbite/galley/pkg/types"
)

// Notifier consumes a shift's event stream and writes notification
// rows. Failures are logged and never propagate to publishers.
type Notifier struct {
	store  storage.Store
	logger zerolog.Logger
}

// NewNotifier creates a notifier over the given store.
func NewNotifier(store storage.Store) *Notifier {
	return &Notifier{
		store:  store,
		logger: log.WithComponent("notify"),
	}
}

// Watch subscribes to the hub and consumes events until the
// subscription channel closes (shift checkout, or the notifier fell
// behind and was dropped). Called once per shift at check-in.
func (n *Notifier) Watch(shiftID string, hub *events.Hub) {
	sub, err := hub.Subscribe()
	if err != nil {
		n.logger.Error().Err(err).Str("shift_id", shiftID).Msg("failed to subscribe")
		return
	}
	go func() {
		for event := range sub.C {
			n.handle(event)
		}
		n.logger.Debug().Str("shift_id", shiftID).Msg("notification watch ended")
	}()
}

func (n *Notifier) handle(event *types.DomainEvent) {
	var message string
	switch event.Kind {
	case types.EventNewOrder:
		message = fmt.Sprintf("New order #%v", event.Payload["ticket_no"])
	case types.EventLowStock:
		message = fmt.Sprintf("Low stock: %v (%v left)", event.Payload["name"], event.Payload["count"])
	default:
		return
	}

	shift, err := n.store.GetShift(event.ShiftID)
	if err != nil {
		n.logger.Error().Err(err).Str("shift_id", event.ShiftID).Msg("failed to load shift")
		return
	}
	staff, err := n.store.ListStaffByTruck(shift.TruckID)
	if err != nil {
		n.logger.Error().Err(err).Str("truck_id", shift.TruckID).Msg("failed to list staff")
		return
	}

	now := time.Now().UTC()
	for _, s := range staff {
		row := &types.NotificationLog{
			ID:        uuid.New().String(),
			ShiftID:   event.ShiftID,
			StaffID:   s.ID,
			Channel:   s.Channel,
			Message:   message,
			Status:    "queued",
			CreatedAt: now,
		}
		if err := n.store.AppendNotification(row); err != nil {
			n.logger.Error().Err(err).Str("staff_id", s.ID).Msg("failed to queue notification")
		}
	}
}
