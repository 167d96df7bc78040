package market

import (
	"testing"

	"pumpwatch/internal/event"
)

func metric(ts int64, price, amount float64, side int) event.TradeMetric {
	return event.TradeMetric{Ts: ts, Price: price, PoolSol: price * 1e9, Amount: amount, Side: side}
}

func TestPushNewestFirst(t *testing.T) {
	b := NewBook(0, 0)
	b.Push(metric(100, 1.0, 1, event.Buy))
	b.Push(metric(200, 2.0, 1, event.Sell))
	b.Push(metric(300, 3.0, 1, event.Buy))

	trades := b.Trades()
	if len(trades) != 3 {
		t.Fatalf("expected 3 trades, got %d", len(trades))
	}
	if trades[0].Ts != 300 || trades[2].Ts != 100 {
		t.Fatalf("window not newest-first: %v %v", trades[0].Ts, trades[2].Ts)
	}
	if b.CreatedAt != 100 {
		t.Fatalf("created-at should fix on first push, got %d", b.CreatedAt)
	}
	if b.LastTs != 300 {
		t.Fatalf("last ts should track head, got %d", b.LastTs)
	}
}

func TestPushEvictsPastCap(t *testing.T) {
	b := NewBook(3, 2)
	for i := int64(1); i <= 5; i++ {
		b.Push(metric(i*100, float64(i), 1, event.Buy))
	}
	if b.Len() != 3 {
		t.Fatalf("expected window cap 3, got %d", b.Len())
	}
	if b.Trades()[0].Ts != 500 || b.Trades()[2].Ts != 300 {
		t.Fatalf("eviction dropped the wrong end: %+v", b.Trades())
	}
	if len(b.Prices()) != 2 || b.Prices()[0] != 5 {
		t.Fatalf("price history cap broken: %v", b.Prices())
	}
}

func TestPushSkipsNonPositivePrices(t *testing.T) {
	b := NewBook(0, 0)
	b.Push(metric(100, 0, 1, event.Buy))
	b.Push(metric(200, 2.0, 1, event.Buy))
	if b.Len() != 2 {
		t.Fatalf("trades should record regardless of price, got %d", b.Len())
	}
	if len(b.Prices()) != 1 {
		t.Fatalf("zero price must not enter history: %v", b.Prices())
	}
}

func TestMinMaxPrice(t *testing.T) {
	b := NewBook(0, 0)
	for _, p := range []float64{5, 1, 3, 9, 2} { // pushed oldest to newest
		b.Push(metric(100, p, 1, event.Buy))
	}
	// prices newest-first: 2 9 3 1 5

	min, max, ok := b.MinMaxPrice(0, 5)
	if !ok || min != 1 || max != 9 {
		t.Fatalf("full scan wrong: min=%v max=%v ok=%v", min, max, ok)
	}

	min, max, ok = b.MinMaxPrice(1, 2) // 9, 3
	if !ok || min != 3 || max != 9 {
		t.Fatalf("skip scan wrong: min=%v max=%v ok=%v", min, max, ok)
	}

	if _, _, ok := b.MinMaxPrice(10, 5); ok {
		t.Fatalf("out-of-range scan should report !ok")
	}
}
