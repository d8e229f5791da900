package archiver

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetbite/galley/pkg/storage"
	"github.com/fleetbite/galley/pkg/types"
)

func newTestStore(t *testing.T) storage.Store {
	t.Helper()
	store, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func seedShift(t *testing.T, store storage.Store, id string, status types.ShiftStatus, closedAgo time.Duration) {
	t.Helper()
	shift := &types.Shift{ID: id, TruckID: "truck-1", Status: status}
	if status == types.ShiftClosed {
		at := time.Now().Add(-closedAgo)
		shift.CheckedOutAt = &at
	}
	require.NoError(t, store.CreateShift(shift))
}

func TestSweepArchivesClosedShiftsPastGrace(t *testing.T) {
	store := newTestStore(t)
	arch := NewArchiver(store, time.Minute, 5*time.Minute)

	seedShift(t, store, "s-old", types.ShiftClosed, time.Hour)
	seedShift(t, store, "s-fresh", types.ShiftClosed, time.Minute)
	seedShift(t, store, "s-open", types.ShiftActive, 0)

	for i, shiftID := range []string{"s-old", "s-fresh", "s-open"} {
		require.NoError(t, store.CreateOrder(&types.Order{
			ID:       shiftID + "-order",
			ShiftID:  shiftID,
			TicketNo: int64(i + 1),
			State:    types.OrderCompleted,
		}))
	}

	require.NoError(t, arch.Sweep())

	// Only the long-closed shift's orders moved.
	archived, err := store.ListArchivedOrdersByShift("s-old")
	require.NoError(t, err)
	assert.Len(t, archived, 1)
	live, err := store.ListOrdersByShift("s-old")
	require.NoError(t, err)
	assert.Empty(t, live)

	for _, shiftID := range []string{"s-fresh", "s-open"} {
		live, err := store.ListOrdersByShift(shiftID)
		require.NoError(t, err)
		assert.Len(t, live, 1, "shift %s must keep its live orders", shiftID)
	}
}

func TestSweepIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	arch := NewArchiver(store, time.Minute, 0)

	seedShift(t, store, "s-1", types.ShiftClosed, time.Hour)
	require.NoError(t, store.CreateOrder(&types.Order{
		ID: "o-1", ShiftID: "s-1", TicketNo: 1, State: types.OrderCancelled,
	}))

	require.NoError(t, arch.Sweep())
	require.NoError(t, arch.Sweep())

	archived, err := store.ListArchivedOrdersByShift("s-1")
	require.NoError(t, err)
	assert.Len(t, archived, 1)
}

func TestStartStop(t *testing.T) {
	store := newTestStore(t)
	arch := NewArchiver(store, 10*time.Millisecond, 0)

	seedShift(t, store, "s-1", types.ShiftClosed, time.Hour)
	require.NoError(t, store.CreateOrder(&types.Order{
		ID: "o-1", ShiftID: "s-1", TicketNo: 1, State: types.OrderCompleted,
	}))

	arch.Start()
	assert.Eventually(t, func() bool {
		archived, err := store.ListArchivedOrdersByShift("s-1")
		return err == nil && len(archived) == 1
	}, time.Second, 10*time.Millisecond)
	arch.Stop()
}
