/*
Package keylock provides per-key mutual exclusion.

A KeyedMutex hands out one logical mutex per string key. Entries are
created on first use and removed when the last holder or waiter
releases, so the map stays proportional to the number of keys currently
contended, not to the keyspace seen over the process lifetime.
*/
package keylock

import "sync"

type entry struct {
	mu   sync.Mutex
	refs int // holders plus waiters; entry is removed at zero
}

// KeyedMutex serializes callers per key.
type KeyedMutex struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// New creates an empty KeyedMutex.
func New() *KeyedMutex {
	return &KeyedMutex{entries: make(map[string]*entry)}
}

// Lock blocks until the caller holds the mutex for key.
func (k *KeyedMutex) Lock(key string) {
	k.mu.Lock()
	e, ok := k.entries[key]
	if !ok {
		e = &entry{}
		k.entries[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
}

// Unlock releases the mutex for key. The entry is dropped from the map
// once no holder or waiter remains.
func (k *KeyedMutex) Unlock(key string) {
	k.mu.Lock()
	e := k.entries[key]
	e.refs--
	if e.refs == 0 {
		delete(k.entries, key)
	}
	k.mu.Unlock()

	e.mu.Unlock()
}

// Len returns the number of keys currently held or contended.
func (k *KeyedMutex) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.entries)
}
