package engine

import "sync"

// usageCounter tracks how often each tool operation has been invoked since
// process start. Feeds the debug usage chart.
type usageCounter struct {
	mu     sync.Mutex
	counts map[string]int
}

func newUsageCounter() *usageCounter {
	return &usageCounter{counts: make(map[string]int)}
}

func (u *usageCounter) record(name string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.counts[name]++
}

// snapshot returns a copy of the counters.
func (u *usageCounter) snapshot() map[string]int {
	u.mu.Lock()
	defer u.mu.Unlock()
	out := make(map[string]int, len(u.counts))
	for k, v := range u.counts {
		out[k] = v
	}
	return out
}
