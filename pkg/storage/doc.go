/*
Package storage provides durable persistence for fleet state.

The Store interface abstracts the storage backend; BoltStore implements
it over a single BoltDB file with one bucket per entity and JSON
values. Per-shift collections (inventory lines, adjustments,
notifications) use "shiftID/..." keys so they read back with a prefix
cursor scan. Ticket number allocation runs inside one write
transaction, which is what makes concurrent submissions collision-free.
*/
package storage
