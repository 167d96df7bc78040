// Package market keeps the bounded per-mint trade window and price history the
// evaluators read from.
package market

import "pumpwatch/internal/event"

const (
	// DefaultWindowCap bounds the newest-first trade window per mint.
	DefaultWindowCap = 200
	// DefaultPriceCap bounds the retained price history per mint.
	DefaultPriceCap = 300
)

// Book holds the recent trades and prices for one mint, newest first. It is a
// plain value type: the engine guarantees exclusive access per mint while an
// event is being processed.
type Book struct {
	trades    []event.TradeMetric
	prices    []float64
	windowCap int
	priceCap  int

	// CreatedAt is the creation/start reference for elapsed-time features,
	// set from the first event observed for the mint.
	CreatedAt int64
	// LastTs is the timestamp of the most recent recorded trade.
	LastTs int64
	// BlackSource is a nonzero feed-side blacklist signal; any open position
	// exits immediately while it is set.
	BlackSource int
}

// NewBook builds a book with the given caps, falling back to defaults for
// non-positive values.
func NewBook(windowCap, priceCap int) *Book {
	if windowCap <= 0 {
		windowCap = DefaultWindowCap
	}
	if priceCap <= 0 {
		priceCap = DefaultPriceCap
	}
	return &Book{windowCap: windowCap, priceCap: priceCap}
}

// Push records a trade at the head of the window and its price at the head of
// the price history, evicting the oldest entries past the caps.
func (b *Book) Push(m event.TradeMetric) {
	if b.CreatedAt == 0 {
		b.CreatedAt = m.Ts
	}
	b.LastTs = m.Ts

	b.trades = append(b.trades, event.TradeMetric{})
	copy(b.trades[1:], b.trades)
	b.trades[0] = m
	if len(b.trades) > b.windowCap {
		b.trades = b.trades[:b.windowCap]
	}

	if m.Price > 0 {
		b.prices = append(b.prices, 0)
		copy(b.prices[1:], b.prices)
		b.prices[0] = m.Price
		if len(b.prices) > b.priceCap {
			b.prices = b.prices[:b.priceCap]
		}
	}
}

// Trades returns the newest-first window. Callers must not mutate it.
func (b *Book) Trades() []event.TradeMetric { return b.trades }

// Prices returns the newest-first price history. Callers must not mutate it.
func (b *Book) Prices() []float64 { return b.prices }

// Len reports the number of retained trades.
func (b *Book) Len() int { return len(b.trades) }

// MinMaxPrice scans up to count prices starting at skip entries from the head
// and returns the minimum and maximum seen. ok is false when no price
// qualified.
func (b *Book) MinMaxPrice(skip, count int) (min, max float64, ok bool) {
	end := skip + count
	if end > len(b.prices) {
		end = len(b.prices)
	}
	for i := skip; i < end; i++ {
		p := b.prices[i]
		if p <= 0 {
			continue
		}
		if !ok || p < min {
			min = p
		}
		if !ok || p > max {
			max = p
		}
		ok = true
	}
	return min, max, ok
}
