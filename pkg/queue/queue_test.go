package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetbite/galley/pkg/storage"
	"github.com/fleetbite/galley/pkg/types"
)

func newTestQueue(t *testing.T) (*Queue, storage.Store) {
	t.Helper()
	store, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return NewQueue(store), store
}

func seedOrders(t *testing.T, store storage.Store) {
	t.Helper()
	orders := []*types.Order{
		{ID: "o-4", ShiftID: "shift-1", TicketNo: 4, State: types.OrderOnHold},
		{ID: "o-1", ShiftID: "shift-1", TicketNo: 1, State: types.OrderCompleted},
		{ID: "o-3", ShiftID: "shift-1", TicketNo: 3, State: types.OrderInProgress},
		{ID: "o-2", ShiftID: "shift-1", TicketNo: 2, State: types.OrderPlaced},
		{ID: "o-5", ShiftID: "shift-1", TicketNo: 5, State: types.OrderCancelled},
		{ID: "o-x", ShiftID: "shift-2", TicketNo: 1, State: types.OrderPlaced},
	}
	for _, o := range orders {
		require.NoError(t, store.CreateOrder(o))
	}
}

func TestListOpenTicketsInOrder(t *testing.T) {
	q, store := newTestQueue(t)
	seedOrders(t, store)

	open, err := q.List("shift-1")
	require.NoError(t, err)

	// Terminal orders excluded, held orders included, ticket order kept.
	var ids []string
	for _, o := range open {
		ids = append(ids, o.ID)
	}
	assert.Equal(t, []string{"o-2", "o-3", "o-4"}, ids)
}

func TestListEmptyShift(t *testing.T) {
	q, _ := newTestQueue(t)

	open, err := q.List("shift-empty")
	require.NoError(t, err)
	assert.Empty(t, open)
}

func TestListByState(t *testing.T) {
	q, store := newTestQueue(t)
	seedOrders(t, store)

	ready, err := q.ListByState("shift-1", types.OrderInProgress)
	require.NoError(t, err)
	require.Len(t, ready, 1)
	assert.Equal(t, "o-3", ready[0].ID)

	completed, err := q.ListByState("shift-1", types.OrderCompleted)
	require.NoError(t, err)
	assert.Len(t, completed, 1)
}
