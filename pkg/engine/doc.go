/*
Package engine owns the order state machine.

Orders move PLACED -> IN_PROGRESS -> READY -> COMPLETED, with ON_HOLD
reachable from the two active states and CANCELLED reachable from any
non-terminal state. The transition table is the only authority on
legal edges; Hold records the state to restore and Resume restores it.

Every mutation runs under a per-order mutex and re-reads the order
inside the critical section, so concurrent requests for the same edge
produce exactly one winner. The new state is persisted before the
order_updated event is published; event delivery is best-effort and a
failed delivery never rolls a transition back.

Entering IN_PROGRESS is subject to the shift's MaxInProgress throttle.
Cancellation restocks the order's items through the inventory ledger.
*/
package engine
