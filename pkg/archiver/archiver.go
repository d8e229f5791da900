// Package archiver moves orders of checked-out shifts into the
// archive bucket after a grace period. Orders of an open shift are
// never touched, so the KDS read path stays over live data only.
package archiver

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/fleetbite/galley/pkg/log"
	"github.com/fleetbite/galley/pkg/storage"
	"github.com/fleetbite/galley/pkg/types"
)

// Archiver runs a periodic sweep over closed shifts.
type Archiver struct {
	store    storage.Store
	interval time.Duration
	grace    time.Duration
	logger   zerolog.Logger
	stopCh   chan struct{}
}

// NewArchiver creates an archiver sweeping every interval, archiving
// orders of shifts closed at least grace ago.
func NewArchiver(store storage.Store, interval, grace time.Duration) *Archiver {
	return &Archiver{
		store:    store,
		interval: interval,
		grace:    grace,
		logger:   log.WithComponent("archiver"),
		stopCh:   make(chan struct{}),
	}
}

// Start begins the archive loop
func (a *Archiver) Start() {
	go a.run()
}

// Stop stops the archiver
func (a *Archiver) Stop() {
	close(a.stopCh)
}

func (a *Archiver) run() {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := a.Sweep(); err != nil {
				a.logger.Error().Err(err).Msg("archive sweep failed")
			}
		case <-a.stopCh:
			return
		}
	}
}

// Sweep performs one archive pass. Exported for the tests and for the
// checkout handler's best-effort immediate pass.
func (a *Archiver) Sweep() error {
	shifts, err := a.store.ListShifts()
	if err != nil {
		return err
	}

	cutoff := time.Now().Add(-a.grace)
	for _, shift := range shifts {
		if shift.Status != types.ShiftClosed || shift.CheckedOutAt == nil {
			continue
		}
		if shift.CheckedOutAt.After(cutoff) {
			continue
		}
		if err := a.archiveShift(shift); err != nil {
			a.logger.Error().Err(err).Str("shift_id", shift.ID).Msg("failed to archive shift orders")
		}
	}
	return nil
}

func (a *Archiver) archiveShift(shift *types.Shift) error {
	orders, err := a.store.ListOrdersByShift(shift.ID)
	if err != nil {
		return err
	}
	moved := 0
	for _, o := range orders {
		if err := a.store.ArchiveOrder(o.ID); err != nil {
			a.logger.Error().Err(err).Str("order_id", o.ID).Msg("failed to archive order")
			continue
		}
		moved++
	}
	if moved > 0 {
		a.logger.Info().Str("shift_id", shift.ID).Int("orders", moved).Msg("archived shift orders")
	}
	return nil
}
