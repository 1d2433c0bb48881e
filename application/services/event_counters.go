package services

import "sync"

// EventCounters accumulates the cheap deltas scheduler launchers gate on —
// "vocabulary change delta >= 10", "epoch delta >= 5" (spec.md §4.3b,
// §4.7) — without a dedicated event-sourcing table. Ingestion and
// vocabulary mutation call sites bump the relevant counter; a launcher
// condition reads and resets it via DrainIfAtLeast.
type EventCounters struct {
	mu     sync.Mutex
	counts map[string]int
}

func NewEventCounters() *EventCounters {
	return &EventCounters{counts: make(map[string]int)}
}

// Increment bumps name by one, called from the write path the counter tracks.
func (c *EventCounters) Increment(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[name]++
}

// Peek returns the current count without resetting it.
func (c *EventCounters) Peek(name string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[name]
}

// DrainIfAtLeast resets name to zero and returns true iff its count was >=
// threshold — the launcher-condition shape: "fire and reset" or "leave
// untouched and skip".
func (c *EventCounters) DrainIfAtLeast(name string, threshold int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.counts[name] < threshold {
		return false
	}
	c.counts[name] = 0
	return true
}
