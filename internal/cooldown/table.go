// Package cooldown tracks hosts that recently failed at the transport level.
package cooldown

import (
	"sync"
	"time"
)

// Table maps host to the time until which it should not be tried.
// Expired entries are purged lazily by Check.
type Table struct {
	mu      sync.Mutex
	window  time.Duration
	now     func() time.Time
	entries map[string]entry
}

type entry struct {
	until  time.Time
	reason string
}

// New creates a table with the given cooldown window. A window <= 0
// disables marking. now defaults to time.Now.
func New(window time.Duration, now func() time.Time) *Table {
	if now == nil {
		now = time.Now
	}
	return &Table{
		window:  window,
		now:     now,
		entries: make(map[string]entry),
	}
}

// Mark puts host into cooldown for the table's window, tagged with reason.
// It reports whether the host was marked.
func (t *Table) Mark(host, reason string) bool {
	if t.window <= 0 {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[host] = entry{until: t.now().Add(t.window), reason: reason}
	return true
}

// Check reports whether host is still cooling down, with the time left and
// the reason it was marked. A host whose window has elapsed is removed and
// reported as available.
func (t *Table) Check(host string) (left time.Duration, reason string, cooling bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[host]
	if !ok {
		return 0, "", false
	}
	now := t.now()
	if !now.Before(e.until) {
		delete(t.entries, host)
		return 0, "", false
	}
	return e.until.Sub(now), e.reason, true
}

// Len returns the number of entries, expired or not.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
