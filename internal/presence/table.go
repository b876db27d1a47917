// Package presence tracks which users are online and pushes new messages to
// their connections.
//
// A connection moves Connected → Identified → Disconnected. Each user has at
// most one active connection; identifying on a new connection takes delivery
// away from the old one. All state is process-local and lost on restart.
package presence

import (
	"sync"
)

// Handle identifies one live connection.
type Handle string

// Table maps users to their active connection handle.
//
// Thread Safety: Safe for concurrent use.
type Table struct {
	mu     sync.RWMutex
	byUser map[string]Handle
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{byUser: make(map[string]Handle)}
}

// Set maps userID to h, replacing any previous handle, and returns the
// handle it replaced.
func (t *Table) Set(userID string, h Handle) (Handle, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	prev, ok := t.byUser[userID]
	t.byUser[userID] = h
	return prev, ok && prev != h
}

// ClearIf removes userID's mapping only while it still points at h, so a late
// disconnect cannot erase a newer connection. It reports whether it removed it.
func (t *Table) ClearIf(userID string, h Handle) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if cur, ok := t.byUser[userID]; ok && cur == h {
		delete(t.byUser, userID)
		return true
	}
	return false
}

// Lookup returns userID's active handle.
func (t *Table) Lookup(userID string) (Handle, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	h, ok := t.byUser[userID]
	return h, ok
}

// Len returns the number of online users.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.byUser)
}

// Reset drops every mapping.
func (t *Table) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.byUser = make(map[string]Handle)
}
