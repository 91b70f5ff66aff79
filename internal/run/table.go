// Package run owns the lifecycle of agent runs: launch, identity
// correlation, event forwarding, and cancellation.
package run

import (
	"context"
	"sync"
)

// Handle is the cancellation capability for one live run. It is shared
// between the supervisor table keys that refer to the same run.
type Handle struct {
	cancel context.CancelFunc
}

// Table maps effective run identifiers (temporary or real) to the
// cancellation handle of the run they identify. Keying by effective id
// is what lets interrupts target a run by whichever id the caller has.
type Table struct {
	mu      sync.Mutex
	handles map[string]*Handle
}

// NewTable creates an empty supervisor table.
func NewTable() *Table {
	return &Table{handles: make(map[string]*Handle)}
}

// Register inserts a handle under id, replacing any previous entry.
func (t *Table) Register(id string, cancel context.CancelFunc) *Handle {
	t.mu.Lock()
	defer t.mu.Unlock()

	h := &Handle{cancel: cancel}
	t.handles[id] = h
	return h
}

// Swap atomically rekeys a run from oldID to newID. The same handle
// backs both keys across the swap: cancellation through either id,
// before or after, affects the same run. Returns false when oldID is
// not registered.
func (t *Table) Swap(oldID, newID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	h, ok := t.handles[oldID]
	if !ok {
		return false
	}
	delete(t.handles, oldID)
	t.handles[newID] = h
	return true
}

// Interrupt cancels the run registered under id and removes the entry.
// Returns false when id is unknown.
func (t *Table) Interrupt(id string) bool {
	t.mu.Lock()
	h, ok := t.handles[id]
	if ok {
		delete(t.handles, id)
	}
	t.mu.Unlock()

	if !ok {
		return false
	}
	h.cancel()
	return true
}

// Remove deregisters ids without cancelling. Missing ids are ignored.
func (t *Table) Remove(ids ...string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, id := range ids {
		delete(t.handles, id)
	}
}

// Len returns the number of registered effective ids.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.handles)
}
