package events

import (
	"sync"

	"github.com/fleetbite/galley/pkg/types"
)

// Registry is the process-wide map of shift id to Hub. A hub is
// created on shift check-in and torn down on checkout; operations
// against a shift with no hub fail ErrShiftNotActive.
type Registry struct {
	mu        sync.RWMutex
	hubs      map[string]*Hub
	ringSize  int
	subBuffer int
}

// NewRegistry creates an empty registry with the given per-hub limits.
func NewRegistry(ringSize, subBuffer int) *Registry {
	return &Registry{
		hubs:      make(map[string]*Hub),
		ringSize:  ringSize,
		subBuffer: subBuffer,
	}
}

// Create makes the hub for a newly checked-in shift. Creating a hub
// that already exists returns the existing one.
func (r *Registry) Create(shiftID string) *Hub {
	r.mu.Lock()
	defer r.mu.Unlock()

	if hub, ok := r.hubs[shiftID]; ok {
		return hub
	}
	hub := NewHub(shiftID, r.ringSize, r.subBuffer)
	r.hubs[shiftID] = hub
	return hub
}

// Get returns the hub for an active shift.
func (r *Registry) Get(shiftID string) (*Hub, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	hub, ok := r.hubs[shiftID]
	if !ok {
		return nil, types.ErrShiftNotActive
	}
	return hub, nil
}

// Subscribe attaches a new subscription to an active shift's hub.
func (r *Registry) Subscribe(shiftID string) (*Subscription, error) {
	hub, err := r.Get(shiftID)
	if err != nil {
		return nil, err
	}
	return hub.Subscribe()
}

// Publish delivers an event to the shift's hub. Delivery is
// best-effort by contract: publishing to a torn-down shift is a no-op
// because no subscriber can exist for it anymore.
func (r *Registry) Publish(shiftID string, kind types.EventKind, payload map[string]any) {
	hub, err := r.Get(shiftID)
	if err != nil {
		return
	}
	hub.Publish(kind, payload)
}

// Close broadcasts shift_closed, tears the hub down, and removes it
// from the registry. Called on shift checkout.
func (r *Registry) Close(shiftID string) {
	r.mu.Lock()
	hub, ok := r.hubs[shiftID]
	delete(r.hubs, shiftID)
	r.mu.Unlock()

	if ok {
		hub.Close()
	}
}
