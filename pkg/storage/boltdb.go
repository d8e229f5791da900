package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/fleetbite/galley/pkg/types"
	bolt "go.etcd.io/bbolt"
)

var (
	// Bucket names
	bucketShifts        = []byte("shifts")
	bucketOrders        = []byte("orders")
	bucketOrderArchive  = []byte("order_archive")
	bucketInventory     = []byte("inventory")
	bucketAdjustments   = []byte("inventory_adjustments")
	bucketSubmissions   = []byte("submissions")
	bucketStaff         = []byte("staff")
	bucketTrucks        = []byte("trucks")
	bucketLocations     = []byte("locations")
	bucketMenu          = []byte("menu_items")
	bucketNotifications = []byte("notifications")
)

// BoltStore implements Store using BoltDB
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore creates a new BoltDB-backed store
func NewBoltStore(dataDir string) (*BoltStore, error) {
	dbPath := filepath.Join(dataDir, "galley.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		buckets := [][]byte{
			bucketShifts,
			bucketOrders,
			bucketOrderArchive,
			bucketInventory,
			bucketAdjustments,
			bucketSubmissions,
			bucketStaff,
			bucketTrucks,
			bucketLocations,
			bucketMenu,
			bucketNotifications,
		}

		for _, bucket := range buckets {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})

	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

// Close closes the database
func (s *BoltStore) Close() error {
	return s.db.Close()
}

func invKey(shiftID, itemID string) []byte {
	return []byte(shiftID + "/" + itemID)
}

// Shift operations

func (s *BoltStore) CreateShift(shift *types.Shift) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketShifts)
		data, err := json.Marshal(shift)
		if err != nil {
			return err
		}
		return b.Put([]byte(shift.ID), data)
	})
}

func (s *BoltStore) GetShift(id string) (*types.Shift, error) {
	var shift types.Shift
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketShifts)
		data := b.Get([]byte(id))
		if data == nil {
			return fmt.Errorf("shift %s: %w", id, ErrNotFound)
		}
		return json.Unmarshal(data, &shift)
	})
	if err != nil {
		return nil, err
	}
	return &shift, nil
}

func (s *BoltStore) ListShifts() ([]*types.Shift, error) {
	var shifts []*types.Shift
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketShifts)
		return b.ForEach(func(k, v []byte) error {
			var shift types.Shift
			if err := json.Unmarshal(v, &shift); err != nil {
				return err
			}
			shifts = append(shifts, &shift)
			return nil
		})
	})
	return shifts, err
}

func (s *BoltStore) UpdateShift(shift *types.Shift) error {
	return s.CreateShift(shift) // Same as create (upsert)
}

func (s *BoltStore) ActiveShiftForTruck(truckID string) (*types.Shift, error) {
	var found *types.Shift
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketShifts)
		return b.ForEach(func(k, v []byte) error {
			var shift types.Shift
			if err := json.Unmarshal(v, &shift); err != nil {
				return err
			}
			if shift.TruckID == truckID && shift.Status != types.ShiftClosed {
				found = &shift
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, fmt.Errorf("active shift for truck %s: %w", truckID, ErrNotFound)
	}
	return found, nil
}

// AllocateTicketNo increments the shift's counter inside a single
// write transaction so concurrent submissions never share a number.
func (s *BoltStore) AllocateTicketNo(shiftID string) (int64, error) {
	var no int64
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketShifts)
		data := b.Get([]byte(shiftID))
		if data == nil {
			return fmt.Errorf("shift %s: %w", shiftID, ErrNotFound)
		}
		var shift types.Shift
		if err := json.Unmarshal(data, &shift); err != nil {
			return err
		}
		shift.NextTicketNo++
		no = shift.NextTicketNo
		out, err := json.Marshal(&shift)
		if err != nil {
			return err
		}
		return b.Put([]byte(shiftID), out)
	})
	return no, err
}

// Order operations

func (s *BoltStore) CreateOrder(order *types.Order) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketOrders)
		data, err := json.Marshal(order)
		if err != nil {
			return err
		}
		return b.Put([]byte(order.ID), data)
	})
}

func (s *BoltStore) GetOrder(id string) (*types.Order, error) {
	var order types.Order
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketOrders)
		data := b.Get([]byte(id))
		if data == nil {
			return fmt.Errorf("order %s: %w", id, ErrNotFound)
		}
		return json.Unmarshal(data, &order)
	})
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (s *BoltStore) UpdateOrder(order *types.Order) error {
	return s.CreateOrder(order)
}

// ListOrdersByShift returns the shift's orders sorted by ticket number.
// The whole scan runs in one read transaction, so the result is a
// consistent snapshot even while writers are active.
func (s *BoltStore) ListOrdersByShift(shiftID string) ([]*types.Order, error) {
	var orders []*types.Order
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketOrders)
		return b.ForEach(func(k, v []byte) error {
			var order types.Order
			if err := json.Unmarshal(v, &order); err != nil {
				return err
			}
			if order.ShiftID == shiftID {
				orders = append(orders, &order)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(orders, func(i, j int) bool { return orders[i].TicketNo < orders[j].TicketNo })
	return orders, nil
}

func (s *BoltStore) ArchiveOrder(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		live := tx.Bucket(bucketOrders)
		data := live.Get([]byte(id))
		if data == nil {
			return fmt.Errorf("order %s: %w", id, ErrNotFound)
		}
		// Copy before the delete invalidates the slice.
		cp := make([]byte, len(data))
		copy(cp, data)
		if err := tx.Bucket(bucketOrderArchive).Put([]byte(id), cp); err != nil {
			return err
		}
		return live.Delete([]byte(id))
	})
}

func (s *BoltStore) ListArchivedOrdersByShift(shiftID string) ([]*types.Order, error) {
	var orders []*types.Order
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketOrderArchive)
		return b.ForEach(func(k, v []byte) error {
			var order types.Order
			if err := json.Unmarshal(v, &order); err != nil {
				return err
			}
			if order.ShiftID == shiftID {
				orders = append(orders, &order)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(orders, func(i, j int) bool { return orders[i].TicketNo < orders[j].TicketNo })
	return orders, nil
}

// Inventory operations

func (s *BoltStore) PutInventoryLine(line *types.InventoryLine) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketInventory)
		data, err := json.Marshal(line)
		if err != nil {
			return err
		}
		return b.Put(invKey(line.ShiftID, line.ItemID), data)
	})
}

func (s *BoltStore) GetInventoryLine(shiftID, itemID string) (*types.InventoryLine, error) {
	var line types.InventoryLine
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketInventory)
		data := b.Get(invKey(shiftID, itemID))
		if data == nil {
			return fmt.Errorf("inventory line %s/%s: %w", shiftID, itemID, ErrNotFound)
		}
		return json.Unmarshal(data, &line)
	})
	if err != nil {
		return nil, err
	}
	return &line, nil
}

func (s *BoltStore) ListInventoryByShift(shiftID string) ([]*types.InventoryLine, error) {
	var lines []*types.InventoryLine
	prefix := []byte(shiftID + "/")
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketInventory).Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			var line types.InventoryLine
			if err := json.Unmarshal(v, &line); err != nil {
				return err
			}
			lines = append(lines, &line)
		}
		return nil
	})
	return lines, err
}

func (s *BoltStore) AppendInventoryAdjustment(adj *types.InventoryAdjustment) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketAdjustments)
		data, err := json.Marshal(adj)
		if err != nil {
			return err
		}
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		return b.Put([]byte(fmt.Sprintf("%s/%016d", adj.ShiftID, seq)), data)
	})
}

func (s *BoltStore) ListInventoryAdjustments(shiftID string) ([]*types.InventoryAdjustment, error) {
	var adjs []*types.InventoryAdjustment
	prefix := []byte(shiftID + "/")
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketAdjustments).Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			var adj types.InventoryAdjustment
			if err := json.Unmarshal(v, &adj); err != nil {
				return err
			}
			adjs = append(adjs, &adj)
		}
		return nil
	})
	return adjs, err
}

// Submission operations

func (s *BoltStore) PutSubmission(key, orderID string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSubmissions).Put([]byte(key), []byte(orderID))
	})
}

func (s *BoltStore) GetSubmission(key string) (string, error) {
	var orderID string
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketSubmissions).Get([]byte(key))
		if data == nil {
			return fmt.Errorf("submission %s: %w", key, ErrNotFound)
		}
		orderID = string(data)
		return nil
	})
	return orderID, err
}

// Staff operations

func (s *BoltStore) CreateStaff(staff *types.Staff) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketStaff)
		data, err := json.Marshal(staff)
		if err != nil {
			return err
		}
		return b.Put([]byte(staff.ID), data)
	})
}

func (s *BoltStore) GetStaff(id string) (*types.Staff, error) {
	var staff types.Staff
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketStaff)
		data := b.Get([]byte(id))
		if data == nil {
			return fmt.Errorf("staff %s: %w", id, ErrNotFound)
		}
		return json.Unmarshal(data, &staff)
	})
	if err != nil {
		return nil, err
	}
	return &staff, nil
}

func (s *BoltStore) GetStaffByUsername(username string) (*types.Staff, error) {
	var found *types.Staff
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketStaff)
		return b.ForEach(func(k, v []byte) error {
			var staff types.Staff
			if err := json.Unmarshal(v, &staff); err != nil {
				return err
			}
			if staff.Username == username {
				found = &staff
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, fmt.Errorf("staff %s: %w", username, ErrNotFound)
	}
	return found, nil
}

func (s *BoltStore) ListStaffByTruck(truckID string) ([]*types.Staff, error) {
	var members []*types.Staff
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketStaff)
		return b.ForEach(func(k, v []byte) error {
			var staff types.Staff
			if err := json.Unmarshal(v, &staff); err != nil {
				return err
			}
			if staff.TruckID == truckID {
				members = append(members, &staff)
			}
			return nil
		})
	})
	return members, err
}

// Fleet catalog operations

func (s *BoltStore) CreateTruck(truck *types.Truck) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketTrucks)
		data, err := json.Marshal(truck)
		if err != nil {
			return err
		}
		return b.Put([]byte(truck.ID), data)
	})
}

func (s *BoltStore) GetTruck(id string) (*types.Truck, error) {
	var truck types.Truck
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketTrucks)
		data := b.Get([]byte(id))
		if data == nil {
			return fmt.Errorf("truck %s: %w", id, ErrNotFound)
		}
		return json.Unmarshal(data, &truck)
	})
	if err != nil {
		return nil, err
	}
	return &truck, nil
}

func (s *BoltStore) ListTrucks() ([]*types.Truck, error) {
	var trucks []*types.Truck
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketTrucks)
		return b.ForEach(func(k, v []byte) error {
			var truck types.Truck
			if err := json.Unmarshal(v, &truck); err != nil {
				return err
			}
			trucks = append(trucks, &truck)
			return nil
		})
	})
	return trucks, err
}

func (s *BoltStore) CreateLocation(loc *types.Location) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketLocations)
		data, err := json.Marshal(loc)
		if err != nil {
			return err
		}
		return b.Put([]byte(loc.ID), data)
	})
}

func (s *BoltStore) GetLocation(id string) (*types.Location, error) {
	var loc types.Location
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketLocations)
		data := b.Get([]byte(id))
		if data == nil {
			return fmt.Errorf("location %s: %w", id, ErrNotFound)
		}
		return json.Unmarshal(data, &loc)
	})
	if err != nil {
		return nil, err
	}
	return &loc, nil
}

func (s *BoltStore) ListLocations() ([]*types.Location, error) {
	var locs []*types.Location
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketLocations)
		return b.ForEach(func(k, v []byte) error {
			var loc types.Location
			if err := json.Unmarshal(v, &loc); err != nil {
				return err
			}
			locs = append(locs, &loc)
			return nil
		})
	})
	return locs, err
}

func (s *BoltStore) CreateMenuItem(item *types.MenuItem) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketMenu)
		data, err := json.Marshal(item)
		if err != nil {
			return err
		}
		return b.Put([]byte(item.ID), data)
	})
}

func (s *BoltStore) ListMenuItems() ([]*types.MenuItem, error) {
	var items []*types.MenuItem
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketMenu)
		return b.ForEach(func(k, v []byte) error {
			var item types.MenuItem
			if err := json.Unmarshal(v, &item); err != nil {
				return err
			}
			items = append(items, &item)
			return nil
		})
	})
	return items, err
}

// Notification operations

func (s *BoltStore) AppendNotification(n *types.NotificationLog) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketNotifications)
		data, err := json.Marshal(n)
		if err != nil {
			return err
		}
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		return b.Put([]byte(fmt.Sprintf("%s/%016d", n.ShiftID, seq)), data)
	})
}

func (s *BoltStore) ListNotificationsByShift(shiftID string) ([]*types.NotificationLog, error) {
	var logs []*types.NotificationLog
	prefix := []byte(shiftID + "/")
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketNotifications).Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			var n types.NotificationLog
			if err := json.Unmarshal(v, &n); err != nil {
				return err
			}
			logs = append(logs, &n)
		}
		return nil
	})
	return logs, err
}
