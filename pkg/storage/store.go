package storage

import (
	"errors"

	"github.com/fleetbite/galley/pkg/types"
)

// ErrNotFound is wrapped by lookups for missing keys so callers can
// test with errors.Is regardless of entity.
var ErrNotFound = errors.New("not found")

// Store defines the interface for durable fleet state.
// Implemented by BoltStore.
type Store interface {
	// Shifts
	CreateShift(shift *types.Shift) error
	GetShift(id string) (*types.Shift, error)
	ListShifts() ([]*types.Shift, error)
	UpdateShift(shift *types.Shift) error
	ActiveShiftForTruck(truckID string) (*types.Shift, error)
	// AllocateTicketNo atomically increments and returns the shift's
	// next ticket number.
	AllocateTicketNo(shiftID string) (int64, error)

	// Orders
	CreateOrder(order *types.Order) error
	GetOrder(id string) (*types.Order, error)
	UpdateOrder(order *types.Order) error
	ListOrdersByShift(shiftID string) ([]*types.Order, error)
	// ArchiveOrder moves an order from the live bucket to the archive.
	ArchiveOrder(id string) error
	ListArchivedOrdersByShift(shiftID string) ([]*types.Order, error)

	// Inventory
	PutInventoryLine(line *types.InventoryLine) error
	GetInventoryLine(shiftID, itemID string) (*types.InventoryLine, error)
	ListInventoryByShift(shiftID string) ([]*types.InventoryLine, error)
	AppendInventoryAdjustment(adj *types.InventoryAdjustment) error
	ListInventoryAdjustments(shiftID string) ([]*types.InventoryAdjustment, error)

	// Idempotent submissions: key -> order id
	PutSubmission(key, orderID string) error
	GetSubmission(key string) (string, error)

	// Staff
	CreateStaff(staff *types.Staff) error
	GetStaff(id string) (*types.Staff, error)
	GetStaffByUsername(username string) (*types.Staff, error)
	ListStaffByTruck(truckID string) ([]*types.Staff, error)

	// Fleet catalog
	CreateTruck(truck *types.Truck) error
	GetTruck(id string) (*types.Truck, error)
	ListTrucks() ([]*types.Truck, error)
	CreateLocation(loc *types.Location) error
	GetLocation(id string) (*types.Location, error)
	ListLocations() ([]*types.Location, error)
	CreateMenuItem(item *types.MenuItem) error
	ListMenuItems() ([]*types.MenuItem, error)

	// Notifications
	AppendNotification(n *types.NotificationLog) error
	ListNotificationsByShift(shiftID string) ([]*types.NotificationLog, error)

	// Utility
	Close() error
}
