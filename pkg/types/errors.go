package types

import "errors"

// Shared error taxonomy. Callers branch with errors.Is; the API layer
// maps these to response codes in one place.
var (
	// ErrInvalidTransition means the requested edge is not legal from
	// the order's current state. Nothing was mutated; the caller may
	// re-read and retry.
	ErrInvalidTransition = errors.New("invalid order transition")

	// ErrInsufficientStock means a decrement would drop a tracked line
	// below zero and the clamp policy is disabled.
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrStockUnavailable means an order submission could not reserve
	// all of its lines; no partial order or decrement was applied.
	ErrStockUnavailable = errors.New("stock unavailable")

	// ErrShiftNotActive means the target shift is closed or unknown.
	ErrShiftNotActive = errors.New("shift not active")

	// ErrThrottled means the shift's concurrent in-progress cap is full.
	ErrThrottled = errors.New("shift throttle exceeded")

	// ErrReplayGap means the requested replay range was evicted from
	// the event ring; the subscriber must do a full resync.
	ErrReplayGap = errors.New("replay range evicted")
)
