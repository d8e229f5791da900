package types

import (
	"time"
)

// OrderState is the closed set of ticket lifecycle states. Transitions
// between states are validated by the engine's transition table; no
// code compares raw strings.
type OrderState string

const (
	OrderPlaced     OrderState = "PLACED"
	OrderInProgress OrderState = "IN_PROGRESS"
	OrderReady      OrderState = "READY"
	OrderOnHold     OrderState = "ON_HOLD"
	OrderCompleted  OrderState = "COMPLETED"
	OrderCancelled  OrderState = "CANCELLED"
)

// Terminal reports whether no further transition is permitted out of s.
func (s OrderState) Terminal() bool {
	return s == OrderCompleted || s == OrderCancelled
}

// OrderItem is one line of a ticket.
type OrderItem struct {
	ItemID     string   `json:"item_id"`
	Name       string   `json:"name"`
	Qty        int      `json:"qty"`
	PriceCents int64    `json:"price_cents"`
	Modifiers  []string `json:"modifiers,omitempty"`
}

// Order is a customer ticket tracked through production states. It is
// owned by exactly one shift and mutated only through the engine.
type Order struct {
	ID       string      `json:"id"`
	ShiftID  string      `json:"shift_id"`
	TicketNo int64       `json:"ticket_no"` // per-shift, assigned at creation, defines KDS order
	Items    []OrderItem `json:"items"`

	State     OrderState `json:"state"`
	PrevState OrderState `json:"prev_state,omitempty"` // state active before ON_HOLD

	SubtotalCents int64 `json:"subtotal_cents"`
	TotalCents    int64 `json:"total_cents"`

	CustomerName  string `json:"customer_name,omitempty"`
	CustomerPhone string `json:"customer_phone,omitempty"`
	PaymentRef    string `json:"payment_ref,omitempty"`

	HoldReason   string     `json:"hold_reason,omitempty"`
	HoldResumeBy *time.Time `json:"hold_resume_by,omitempty"` // surfaced to callers, never acted on
	CancelReason string     `json:"cancel_reason,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	HeldAt      *time.Time `json:"held_at,omitempty"`
	ResumedAt   *time.Time `json:"resumed_at,omitempty"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// ShiftStatus represents the lifecycle of an operating session.
type ShiftStatus string

const (
	ShiftActive ShiftStatus = "active"
	ShiftPaused ShiftStatus = "paused"
	ShiftClosed ShiftStatus = "closed"
)

// ShiftConfig is the throttle/capacity configuration for a shift.
type ShiftConfig struct {
	// MaxInProgress caps concurrently IN_PROGRESS tickets; 0 = unlimited.
	MaxInProgress int `json:"max_in_progress"`
	// SlotInterval is the pacing interval between pickup slots.
	SlotInterval time.Duration `json:"slot_interval"`
}

// Shift is a bounded operating session for one truck at one location.
type Shift struct {
	ID         string      `json:"id"`
	TruckID    string      `json:"truck_id"`
	LocationID string      `json:"location_id"`
	Status     ShiftStatus `json:"status"`
	Config     ShiftConfig `json:"config"`

	PauseReason string     `json:"pause_reason,omitempty"`
	ResumeBy    *time.Time `json:"resume_by,omitempty"`

	// NextTicketNo is a persisted counter owned by the gateway; ticket
	// numbers define KDS ordering within the shift.
	NextTicketNo int64 `json:"next_ticket_no"`

	CheckedInAt  time.Time  `json:"checked_in_at"`
	CheckedOutAt *time.Time `json:"checked_out_at,omitempty"`
}

// Active reports whether the shift accepts mutations. A paused shift
// still accepts ticket work; only a closed shift is read-only.
func (s *Shift) Active() bool {
	return s.Status != ShiftClosed
}

// InventoryLine tracks stock for one menu item within one shift.
// Count == nil means unlimited stock.
type InventoryLine struct {
	ShiftID           string    `json:"shift_id"`
	ItemID            string    `json:"item_id"`
	Name              string    `json:"name"`
	PriceCents        int64     `json:"price_cents"`
	Count             *int      `json:"count,omitempty"`
	SoldOut           bool      `json:"sold_out"`
	LowStockThreshold int       `json:"low_stock_threshold"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Unlimited reports whether the line is not stock-tracked.
func (l *InventoryLine) Unlimited() bool { return l.Count == nil }

// InventoryAdjustment is an audit row for every applied stock delta.
type InventoryAdjustment struct {
	ID        string    `json:"id"`
	ShiftID   string    `json:"shift_id"`
	ItemID    string    `json:"item_id"`
	Delta     int       `json:"delta"`
	Reason    string    `json:"reason"`
	StaffID   string    `json:"staff_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// EventKind identifies a domain event for downstream consumers. The
// kinds and payload fields are a stable contract.
type EventKind string

const (
	EventNewOrder      EventKind = "new_order"
	EventOrderUpdated  EventKind = "order_updated"
	EventLowStock      EventKind = "low_stock"
	EventPause         EventKind = "pause"
	EventResume        EventKind = "resume"
	EventConfigUpdated EventKind = "config_updated"
	EventShiftClosed   EventKind = "shift_closed"
)

// DomainEvent is an immutable, sequenced fact emitted for one shift.
// Seq is monotonically increasing per shift with no gaps.
type DomainEvent struct {
	Seq       int64          `json:"seq"`
	Kind      EventKind      `json:"kind"`
	ShiftID   string         `json:"shift_id"`
	Payload   map[string]any `json:"payload,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// StaffRole defines what a staff member may do. Authorization policy
// itself lives at the transport boundary.
type StaffRole string

const (
	RoleOwner     StaffRole = "owner"
	RoleManager   StaffRole = "manager"
	RoleTruckLead StaffRole = "truck_lead"
	RoleCook      StaffRole = "cook"
	RoleCashier   StaffRole = "cashier"
)

// NotificationChannel selects the out-of-band delivery path.
type NotificationChannel string

const (
	ChannelPush NotificationChannel = "push"
	ChannelSMS  NotificationChannel = "sms"
)

// Staff is a fleet employee able to authenticate against the API.
type Staff struct {
	ID           string              `json:"id"`
	Name         string              `json:"name"`
	Username     string              `json:"username"`
	PasswordHash string              `json:"-"`
	Role         StaffRole           `json:"role"`
	TruckID      string              `json:"truck_id,omitempty"`
	Phone        string              `json:"phone,omitempty"`
	Channel      NotificationChannel `json:"channel"`
	CreatedAt    time.Time           `json:"created_at"`
}

// Truck is a fleet vehicle.
type Truck struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Capacity int    `json:"capacity"`
	TZ       string `json:"tz"`
	Active   bool   `json:"active"`
}

// Location is a known operating spot.
type Location struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Address string  `json:"address"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
}

// MenuItem is a catalog entry used to seed a shift's inventory snapshot.
type MenuItem struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	PriceCents        int64  `json:"price_cents"`
	StockCount        *int   `json:"stock_count,omitempty"` // nil = unlimited
	LowStockThreshold int    `json:"low_stock_threshold"`
	Active            bool   `json:"active"`
}

// NotificationLog records a queued push/SMS notification. Delivery is
// handled outside the core; failures here never affect callers.
type NotificationLog struct {
	ID        string              `json:"id"`
	ShiftID   string              `json:"shift_id"`
	StaffID   string              `json:"staff_id"`
	Channel   NotificationChannel `json:"channel"`
	Message   string              `json:"message"`
	Status    string              `json:"status"`
	CreatedAt time.Time           `json:"created_at"`
}
