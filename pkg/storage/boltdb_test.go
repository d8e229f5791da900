package storage

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetbite/galley/pkg/types"
)

func newTestStore(t *testing.T) *BoltStore {
	t.Helper()
	store, err := NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestShiftCRUD(t *testing.T) {
	store := newTestStore(t)

	shift := &types.Shift{
		ID:          "shift-1",
		TruckID:     "truck-1",
		LocationID:  "loc-1",
		Status:      types.ShiftActive,
		CheckedInAt: time.Now().UTC(),
	}
	require.NoError(t, store.CreateShift(shift))

	got, err := store.GetShift("shift-1")
	require.NoError(t, err)
	assert.Equal(t, "truck-1", got.TruckID)
	assert.Equal(t, types.ShiftActive, got.Status)

	got.Status = types.ShiftClosed
	require.NoError(t, store.UpdateShift(got))
	got, err = store.GetShift("shift-1")
	require.NoError(t, err)
	assert.Equal(t, types.ShiftClosed, got.Status)

	_, err = store.GetShift("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestActiveShiftForTruck(t *testing.T) {
	store := newTestStore(t)

	closed := &types.Shift{ID: "s-closed", TruckID: "truck-1", Status: types.ShiftClosed}
	active := &types.Shift{ID: "s-active", TruckID: "truck-1", Status: types.ShiftActive}
	other := &types.Shift{ID: "s-other", TruckID: "truck-2", Status: types.ShiftActive}
	for _, s := range []*types.Shift{closed, active, other} {
		require.NoError(t, store.CreateShift(s))
	}

	got, err := store.ActiveShiftForTruck("truck-1")
	require.NoError(t, err)
	assert.Equal(t, "s-active", got.ID)

	_, err = store.ActiveShiftForTruck("truck-3")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAllocateTicketNoConcurrent(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.CreateShift(&types.Shift{ID: "shift-1", Status: types.ShiftActive}))

	const n = 50
	var wg sync.WaitGroup
	results := make(chan int64, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			no, err := store.AllocateTicketNo("shift-1")
			assert.NoError(t, err)
			results <- no
		}()
	}
	wg.Wait()
	close(results)

	seen := make(map[int64]bool)
	for no := range results {
		assert.False(t, seen[no], "duplicate ticket number %d", no)
		seen[no] = true
	}
	assert.Len(t, seen, n)
}

func TestListOrdersByShiftSortedByTicket(t *testing.T) {
	store := newTestStore(t)

	// Insert out of ticket order; the list must come back sorted.
	for _, ticket := range []int64{3, 1, 2} {
		require.NoError(t, store.CreateOrder(&types.Order{
			ID:       string(rune('a' + ticket)),
			ShiftID:  "shift-1",
			TicketNo: ticket,
			State:    types.OrderPlaced,
		}))
	}
	require.NoError(t, store.CreateOrder(&types.Order{
		ID: "other", ShiftID: "shift-2", TicketNo: 1, State: types.OrderPlaced,
	}))

	orders, err := store.ListOrdersByShift("shift-1")
	require.NoError(t, err)
	require.Len(t, orders, 3)
	for i, o := range orders {
		assert.Equal(t, int64(i+1), o.TicketNo)
	}
}

func TestArchiveOrder(t *testing.T) {
	store := newTestStore(t)

	order := &types.Order{ID: "o-1", ShiftID: "shift-1", TicketNo: 1, State: types.OrderCompleted}
	require.NoError(t, store.CreateOrder(order))
	require.NoError(t, store.ArchiveOrder("o-1"))

	_, err := store.GetOrder("o-1")
	assert.ErrorIs(t, err, ErrNotFound)

	archived, err := store.ListArchivedOrdersByShift("shift-1")
	require.NoError(t, err)
	require.Len(t, archived, 1)
	assert.Equal(t, "o-1", archived[0].ID)

	live, err := store.ListOrdersByShift("shift-1")
	require.NoError(t, err)
	assert.Empty(t, live)
}

func TestInventoryLines(t *testing.T) {
	store := newTestStore(t)

	count := 10
	line := &types.InventoryLine{ShiftID: "shift-1", ItemID: "item-1", Name: "Taco", Count: &count}
	require.NoError(t, store.PutInventoryLine(line))

	got, err := store.GetInventoryLine("shift-1", "item-1")
	require.NoError(t, err)
	require.NotNil(t, got.Count)
	assert.Equal(t, 10, *got.Count)

	// Same item id on another shift is a distinct line.
	require.NoError(t, store.PutInventoryLine(&types.InventoryLine{ShiftID: "shift-2", ItemID: "item-1"}))
	lines, err := store.ListInventoryByShift("shift-1")
	require.NoError(t, err)
	assert.Len(t, lines, 1)

	_, err = store.GetInventoryLine("shift-1", "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestInventoryAdjustmentsAppendOnly(t *testing.T) {
	store := newTestStore(t)

	for i, delta := range []int{-2, -1, 5} {
		require.NoError(t, store.AppendInventoryAdjustment(&types.InventoryAdjustment{
			ID:        string(rune('a' + i)),
			ShiftID:   "shift-1",
			ItemID:    "item-1",
			Delta:     delta,
			CreatedAt: time.Now().UTC(),
		}))
	}

	adjs, err := store.ListInventoryAdjustments("shift-1")
	require.NoError(t, err)
	require.Len(t, adjs, 3)
	assert.Equal(t, -2, adjs[0].Delta)
	assert.Equal(t, 5, adjs[2].Delta)
}

func TestSubmissions(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetSubmission("key-1")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.PutSubmission("key-1", "order-1"))
	orderID, err := store.GetSubmission("key-1")
	require.NoError(t, err)
	assert.Equal(t, "order-1", orderID)
}

func TestStaffByUsername(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.CreateStaff(&types.Staff{
		ID: "staff-1", Username: "mo", Role: types.RoleCook, TruckID: "truck-1",
	}))

	got, err := store.GetStaffByUsername("mo")
	require.NoError(t, err)
	assert.Equal(t, "staff-1", got.ID)

	_, err = store.GetStaffByUsername("nobody")
	assert.ErrorIs(t, err, ErrNotFound)

	byTruck, err := store.ListStaffByTruck("truck-1")
	require.NoError(t, err)
	assert.Len(t, byTruck, 1)
}
