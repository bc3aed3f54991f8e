// Package dedup suppresses duplicate webhook and button-click deliveries.
//
// Both guards are best-effort by design: processing a duplicate is
// tolerable, dropping a genuine first event is not. Neither guard ever
// returns an error.
package dedup

import (
	"strings"
	"sync"
	"time"
)

// EventGuard is a bounded recently-seen set for webhook event identifiers.
// When capacity is exceeded the oldest key is evicted, so dedup against
// very old redeliveries is approximate.
type EventGuard struct {
	mu       sync.Mutex
	capacity int
	seen     map[string]struct{}
	order    []string
}

// NewEventGuard builds a guard holding up to capacity identifiers.
func NewEventGuard(capacity int) *EventGuard {
	if capacity <= 0 {
		capacity = 1024
	}
	return &EventGuard{
		capacity: capacity,
		seen:     make(map[string]struct{}, capacity),
	}
}

// ShouldProcess records the key as seen and reports whether this is its
// first appearance. Single-call semantics: the caller short-circuits when
// false is returned. Empty keys are always processed; some deliveries
// legitimately lack an event id and are deduplicated elsewhere.
func (g *EventGuard) ShouldProcess(key string) bool {
	if key == "" {
		return true
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.seen[key]; ok {
		return false
	}
	g.seen[key] = struct{}{}
	g.order = append(g.order, key)
	if len(g.order) > g.capacity {
		oldest := g.order[0]
		g.order = g.order[1:]
		delete(g.seen, oldest)
	}
	return true
}

// ActionGuard deduplicates physical button actions by a composite key
// within a sliding time window. Card clicks often carry no stable event id,
// so the (operator, message, command, target, category) tuple stands in.
type ActionGuard struct {
	mu     sync.Mutex
	window time.Duration
	last   map[string]time.Time
	now    func() time.Time
}

// NewActionGuard builds a guard with the given window.
func NewActionGuard(window time.Duration) *ActionGuard {
	if window <= 0 {
		window = 5 * time.Second
	}
	return &ActionGuard{
		window: window,
		last:   make(map[string]time.Time),
		now:    time.Now,
	}
}

// ActionKey builds the composite dedup key for a physical action.
func ActionKey(operator, message, command, target, category string) string {
	return strings.Join([]string{operator, message, command, target, category}, "|")
}

// ShouldProcess records the action and reports whether no identical action
// was seen inside the window. Stale entries are purged lazily on each call.
func (g *ActionGuard) ShouldProcess(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.now()
	for k, t := range g.last {
		if now.Sub(t) > g.window {
			delete(g.last, k)
		}
	}
	if t, ok := g.last[key]; ok && now.Sub(t) <= g.window {
		return false
	}
	g.last[key] = now
	return true
}
