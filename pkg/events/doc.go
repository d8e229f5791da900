/*
Package events provides the per-shift event hub for Galley's live
KDS push.

Each active shift owns one Hub. Publishers (the order engine, the
inventory ledger, the shift manager) call Publish, which assigns the
shift's next sequence number under the hub mutex, retains the event in
a bounded ring, and fans it out to all subscribers. The mutex is the
serialization point that gives every shift a single total event order.

Fan-out is non-blocking: every subscriber has a bounded channel, and a
subscriber whose buffer is full is dropped (its channel closed) rather
than allowed to slow the publisher. A dropped or reconnecting client
calls ReplayFrom(lastSeenSeq) to receive exactly the events it missed,
in order, as long as the ring still holds them; otherwise ErrReplayGap
tells it to perform a full resync.

The Registry is the process-wide shift-id-to-hub map. Hubs are created
on shift check-in and closed on checkout; Close broadcasts a terminal
shift_closed event before tearing the hub down, and later Subscribe
calls fail with ErrShiftNotActive.

	hub := registry.Create(shiftID)
	sub, _ := hub.Subscribe()
	go func() {
		for event := range sub.C {
			push(event)
		}
		// channel closed: resubscribe + ReplayFrom(lastSeen)
	}()
*/
package events
