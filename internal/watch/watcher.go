// Package watch runs the per-mint decision state machines over the trade feed.
package watch

import (
	"sync"

	"pumpwatch/internal/feature"
	"pumpwatch/internal/market"
	"pumpwatch/internal/rules"
)

// Status is the lifecycle phase of a single mint's watcher.
type Status uint8

const (
	// StatusSeeking means no entry has been accepted yet.
	StatusSeeking Status = iota
	// StatusConfirmed means an entry was accepted and awaits confirmation.
	StatusConfirmed
	// StatusOpening means a live buy intent was dispatched and awaits a fill.
	StatusOpening
	// StatusOpen means the position is held and the exit rules run.
	StatusOpen
	// StatusClosing means a sell intent was dispatched and awaits settlement.
	StatusClosing
	// StatusClosed is terminal; further events only feed the book.
	StatusClosed
)

var statusNames = [...]string{"seeking", "confirmed", "opening", "open", "closing", "closed"}

func (s Status) String() string {
	if int(s) < len(statusNames) {
		return statusNames[s]
	}
	return "unknown"
}

// Watcher is the full decision state for one mint. All fields are guarded by
// mu; the engine holds it for the duration of each event.
type Watcher struct {
	mu sync.Mutex

	Mint   string
	Book   *market.Book
	Status Status

	// Group keys the outcome history, "<side>-<mint>" of the entry trigger.
	Group string
	// Simulated positions never dispatch intents and never hold an
	// admission slot.
	Simulated bool

	// Anchor fields track the accepted entry while confirmation is pending.
	AnchorTs    int64
	AnchorPrice float64
	AnchorPool  float64

	Stake     float64
	MaxHoldMs int64

	Pos       rules.Position
	EntrySnap *feature.Snapshot
}

func newWatcher(mint string, windowCap, priceCap int) *Watcher {
	return &Watcher{
		Mint: mint,
		Book: market.NewBook(windowCap, priceCap),
	}
}
