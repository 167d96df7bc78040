// Package outcome remembers how recent positions in a trade group performed
// and decides whether the next entry in that group runs simulated.
package outcome

import "sync"

// Rates below this are counted as a recent failure for the group.
const failRatePct = -20

// How many recent records the simulated-entry check inspects.
const failLookback = 3

// Records retained per group.
const historyCap = 32

// History keeps newest-first peak-rate records per group. A group is typically
// "<side>-<mint>"; a global group aggregates confirmed fills across mints.
type History struct {
	mu     sync.Mutex
	groups map[string][]float64
}

// NewHistory builds an empty outcome cache.
func NewHistory() *History {
	return &History{groups: make(map[string][]float64)}
}

// Record stores the peak profit rate (percent) a closed position reached.
func (h *History) Record(group string, maxRatePct float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	rates := append([]float64{maxRatePct}, h.groups[group]...)
	if len(rates) > historyCap {
		rates = rates[:historyCap]
	}
	h.groups[group] = rates
}

// ShouldSimulate reports whether the next entry for the group must run as a
// simulated trade: any of the most recent records being a deep loss poisons
// the group until a fresh result displaces it.
func (h *History) ShouldSimulate(group string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	rates := h.groups[group]
	if len(rates) > failLookback {
		rates = rates[:failLookback]
	}
	for _, r := range rates {
		if r < failRatePct {
			return true
		}
	}
	return false
}

// Len reports how many records the group holds.
func (h *History) Len(group string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.groups[group])
}
