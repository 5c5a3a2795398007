// Package presence tracks which identities are online and produces the
// operator status document.
package presence

import (
	"sort"
	"sync"
	"time"
)

// Entry is one online identity.
type Entry struct {
	Identity  string `json:"identity"`
	LoginTime int64  `json:"loginTime"`
	IdleTime  int64  `json:"idleTime"`
}

// Status is the read-only document operators poll to confirm a deployment.
type Status struct {
	Version string   `json:"version"`
	Count   int      `json:"count"`
	Players []string `json:"players"`
	Updated int64    `json:"updated"`
}

// Tracker is a concurrency-safe online roster.
type Tracker struct {
	mu      sync.RWMutex
	entries map[string]*Entry
}

// NewTracker returns an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{entries: make(map[string]*Entry)}
}

// Login records identity as online, replacing any prior session.
func (t *Tracker) Login(identity string) {
	now := time.Now().Unix()
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[identity] = &Entry{Identity: identity, LoginTime: now, IdleTime: now}
}

// Logout removes identity from the roster.
func (t *Tracker) Logout(identity string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, identity)
}

// Touch refreshes identity's last-activity time.
func (t *Tracker) Touch(identity string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok := t.entries[identity]; ok {
		e.IdleTime = time.Now().Unix()
	}
}

// Online reports whether identity has a live session.
func (t *Tracker) Online(identity string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.entries[identity]
	return ok
}

// Count returns the number of online identities.
func (t *Tracker) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// Players lists online identities sorted by name.
func (t *Tracker) Players() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]string, 0, len(t.entries))
	for id := range t.entries {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Snapshot builds the status document for the given server version.
func (t *Tracker) Snapshot(version string) Status {
	return Status{
		Version: version,
		Count:   t.Count(),
		Players: t.Players(),
		Updated: time.Now().Unix(),
	}
}
