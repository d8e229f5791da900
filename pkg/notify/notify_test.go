package notify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetbite/galley/pkg/events"
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

func TestWatchQueuesNotificationsPerStaffChannel(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.CreateShift(&types.Shift{
		ID: "shift-1", TruckID: "truck-1", Status: types.ShiftActive,
	}))
	require.NoError(t, store.CreateStaff(&types.Staff{
		ID: "staff-push", TruckID: "truck-1", Channel: types.ChannelPush,
	}))
	require.NoError(t, store.CreateStaff(&types.Staff{
		ID: "staff-sms", TruckID: "truck-1", Channel: types.ChannelSMS,
	}))
	require.NoError(t, store.CreateStaff(&types.Staff{
		ID: "staff-other", TruckID: "truck-2", Channel: types.ChannelPush,
	}))

	hub := events.NewHub("shift-1", 64, 64)
	NewNotifier(store).Watch("shift-1", hub)

	hub.Publish(types.EventNewOrder, map[string]any{"ticket_no": int64(7)})

	require.Eventually(t, func() bool {
		logs, err := store.ListNotificationsByShift("shift-1")
		return err == nil && len(logs) == 2
	}, time.Second, 10*time.Millisecond)

	logs, err := store.ListNotificationsByShift("shift-1")
	require.NoError(t, err)
	channels := map[string]types.NotificationChannel{}
	for _, l := range logs {
		assert.Equal(t, "queued", l.Status)
		assert.Contains(t, l.Message, "7")
		channels[l.StaffID] = l.Channel
	}
	assert.Equal(t, types.ChannelPush, channels["staff-push"])
	assert.Equal(t, types.ChannelSMS, channels["staff-sms"])
	assert.NotContains(t, channels, "staff-other")
}

func TestWatchIgnoresLifecycleEvents(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.CreateShift(&types.Shift{
		ID: "shift-1", TruckID: "truck-1", Status: types.ShiftActive,
	}))
	require.NoError(t, store.CreateStaff(&types.Staff{
		ID: "staff-1", TruckID: "truck-1", Channel: types.ChannelPush,
	}))

	hub := events.NewHub("shift-1", 64, 64)
	NewNotifier(store).Watch("shift-1", hub)

	hub.Publish(types.EventPause, nil)
	hub.Publish(types.EventOrderUpdated, nil)
	hub.Publish(types.EventLowStock, map[string]any{"name": "Taco", "count": 2})

	require.Eventually(t, func() bool {
		logs, err := store.ListNotificationsByShift("shift-1")
		return err == nil && len(logs) == 1
	}, time.Second, 10*time.Millisecond)

	logs, err := store.ListNotificationsByShift("shift-1")
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Contains(t, logs[0].Message, "Low stock")
}

func TestWatchEndsOnHubClose(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.CreateShift(&types.Shift{
		ID: "shift-1", TruckID: "truck-1", Status: types.ShiftActive,
	}))

	hub := events.NewHub("shift-1", 64, 64)
	NewNotifier(store).Watch("shift-1", hub)
	require.Equal(t, 1, hub.SubscriberCount())

	hub.Close()
	assert.Equal(t, 0, hub.SubscriberCount())
}
