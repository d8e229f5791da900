package events

import (
	"sync"
	"time"

	"github.com/fleetbite/galley/pkg/metrics"
	"github.com/fleetbite/galley/pkg/types"
)

// Subscription is one connected device's view of a shift's event feed.
// Events arrive on C in sequence order. The channel is closed when the
// subscriber falls behind (buffer overflow), the subscription is
// cancelled, or the shift closes; the consumer then resubscribes and
// replays from its last seen sequence number.
type Subscription struct {
	C <-chan *types.DomainEvent

	hub *Hub
	ch  chan *types.DomainEvent
}

// Cancel removes the subscription from its hub and closes C.
func (s *Subscription) Cancel() {
	s.hub.unsubscribe(s)
}

// Hub fans out one shift's domain events to all subscribed connections
// and retains a bounded ring of recent events for reconnect catch-up.
//
// Sequence numbers are assigned under the hub mutex, which makes the
// hub the single serialization point for a shift's event order: any
// two subscribers observe the events they both receive in the same
// total order.
type Hub struct {
	shiftID string

	mu        sync.Mutex
	seq       int64
	ring      []*types.DomainEvent // oldest first, len <= ringSize
	ringSize  int
	subs      map[*Subscription]struct{}
	subBuffer int
	closed    bool
}

// NewHub creates a hub for one shift. ringSize bounds replay history;
// subBuffer bounds each subscriber's outbound queue.
func NewHub(shiftID string, ringSize, subBuffer int) *Hub {
	return &Hub{
		shiftID:   shiftID,
		ring:      make([]*types.DomainEvent, 0, ringSize),
		ringSize:  ringSize,
		subs:      make(map[*Subscription]struct{}),
		subBuffer: subBuffer,
	}
}

// Subscribe registers a new connection. It fails with ErrShiftNotActive
// once the hub has been closed by shift checkout.
func (h *Hub) Subscribe() (*Subscription, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, types.ErrShiftNotActive
	}

	ch := make(chan *types.DomainEvent, h.subBuffer)
	sub := &Subscription{C: ch, ch: ch, hub: h}
	h.subs[sub] = struct{}{}
	metrics.Subscribers.Inc()
	return sub, nil
}

func (h *Hub) unsubscribe(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropLocked(sub)
}

// dropLocked removes and closes a subscription. Callers hold h.mu.
func (h *Hub) dropLocked(sub *Subscription) {
	if _, ok := h.subs[sub]; !ok {
		return
	}
	delete(h.subs, sub)
	close(sub.ch)
	metrics.Subscribers.Dec()
}

// Publish assigns the next sequence number, retains the event in the
// ring, and fans it out. It never blocks on a slow subscriber: a full
// buffer drops that subscription instead. Publish never fails; events
// published with no subscribers are still retained for replay.
func (h *Hub) Publish(kind types.EventKind, payload map[string]any) *types.DomainEvent {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.seq++
	event := &types.DomainEvent{
		Seq:       h.seq,
		Kind:      kind,
		ShiftID:   h.shiftID,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}

	if len(h.ring) == h.ringSize {
		copy(h.ring, h.ring[1:])
		h.ring[len(h.ring)-1] = event
	} else {
		h.ring = append(h.ring, event)
	}

	h.broadcastLocked(event)
	metrics.EventsPublished.WithLabelValues(string(kind)).Inc()
	return event
}

func (h *Hub) broadcastLocked(event *types.DomainEvent) {
	for sub := range h.subs {
		select {
		case sub.ch <- event:
		default:
			// Subscriber buffer full: drop the connection rather than
			// slow the publisher. The client resubscribes and replays.
			h.dropLocked(sub)
			metrics.SubscribersDropped.Inc()
		}
	}
}

// ReplayFrom returns, in order, all retained events with sequence
// numbers greater than lastSeq. If the ring already evicted part of
// that range the subscriber cannot be caught up incrementally and
// ErrReplayGap signals a forced full resync.
func (h *Hub) ReplayFrom(lastSeq int64) ([]*types.DomainEvent, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if lastSeq >= h.seq {
		return nil, nil
	}
	if len(h.ring) == 0 || h.ring[0].Seq > lastSeq+1 {
		return nil, types.ErrReplayGap
	}

	missed := make([]*types.DomainEvent, 0, h.seq-lastSeq)
	for _, e := range h.ring {
		if e.Seq > lastSeq {
			missed = append(missed, e)
		}
	}
	return missed, nil
}

// LastSeq returns the most recently assigned sequence number.
func (h *Hub) LastSeq() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.seq
}

// SubscriberCount returns the number of live subscriptions.
func (h *Hub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close broadcasts the terminal shift_closed event, closes every
// subscriber channel, and rejects future subscriptions. Called once,
// on shift checkout.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}

	h.seq++
	final := &types.DomainEvent{
		Seq:       h.seq,
		Kind:      types.EventShiftClosed,
		ShiftID:   h.shiftID,
		Timestamp: time.Now().UTC(),
	}
	if len(h.ring) == h.ringSize {
		copy(h.ring, h.ring[1:])
		h.ring[len(h.ring)-1] = final
	} else {
		h.ring = append(h.ring, final)
	}
	h.broadcastLocked(final)

	for sub := range h.subs {
		h.dropLocked(sub)
	}
	h.closed = true
}
