/*
Package types defines the core data structures used throughout Galley.

It contains the domain model for fleet kitchen operations: shifts,
orders and their lifecycle states, per-shift inventory lines, sequenced
domain events, staff, trucks, locations, and the menu catalog. All
other packages depend on types for state management and API payloads.

Order lifecycle:

	PLACED ──▶ IN_PROGRESS ──▶ READY ──▶ COMPLETED
	              │  ▲           │  ▲
	              ▼  │           ▼  │
	             ON_HOLD ───────────┘   (resume restores the prior state)

	any non-terminal state ──▶ CANCELLED

COMPLETED and CANCELLED are terminal. The allowed-edge table itself
lives in pkg/engine; types only declares the closed enum.

All types are JSON-serializable: the storage layer persists them as
JSON values in bbolt buckets and the API serves them directly.
*/
package types
