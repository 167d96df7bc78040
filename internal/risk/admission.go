// Package risk bounds how many positions the engine may hold at once.
package risk

import "sync/atomic"

// Admission is a concurrency-safe counter of admitted positions with a hard
// cap. A watcher must acquire a slot before entering and releases it when its
// position fully closes.
type Admission struct {
	cap  int64
	held atomic.Int64
}

// NewAdmission builds a controller with the given cap. A non-positive cap
// admits nothing.
func NewAdmission(cap int) *Admission {
	return &Admission{cap: int64(cap)}
}

// TryAcquire claims a slot if one is free. It never blocks.
func (a *Admission) TryAcquire() bool {
	for {
		n := a.held.Load()
		if n >= a.cap {
			return false
		}
		if a.held.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

// Release returns a slot. Releasing below zero is a bug; the counter clamps so
// a double release cannot unlock extra capacity later.
func (a *Admission) Release() {
	if a.held.Add(-1) < 0 {
		a.held.Store(0)
	}
}

// Held reports the number of admitted positions.
func (a *Admission) Held() int { return int(a.held.Load()) }

// Cap reports the configured maximum.
func (a *Admission) Cap() int { return int(a.cap) }
