/*
Package inventory tracks per-shift stock.

Each shift gets its own snapshot of the menu at check-in; stock edits
during the shift never touch the catalog. A line with a nil count is
not stock-tracked. Mutations to one line are serialized by a per-line
mutex, and the gateway's multi-line reservation takes all of its line
locks in sorted order, verifies every line, then applies, so an order
either decrements all of its lines or none of them.
*/
package inventory
