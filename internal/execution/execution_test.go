package execution

import (
	"testing"

	"github.com/rs/zerolog"
)

func TestTryBuyQueuesAndReportsFull(t *testing.T) {
	d := NewDispatcher(1, zerolog.Nop())

	if !d.TryBuy(BuyIntent{Mint: "a", Units: 0.4}) {
		t.Fatalf("first buy must queue")
	}
	if d.TryBuy(BuyIntent{Mint: "b", Units: 0.4}) {
		t.Fatalf("full queue must report false, not block")
	}

	got := <-d.Buys()
	if got.Mint != "a" {
		t.Fatalf("expected queued intent a, got %s", got.Mint)
	}
	if !d.TryBuy(BuyIntent{Mint: "b", Units: 0.4}) {
		t.Fatalf("drained queue must accept again")
	}
}

func TestTrySellIndependentOfBuys(t *testing.T) {
	d := NewDispatcher(1, zerolog.Nop())
	if !d.TryBuy(BuyIntent{Mint: "a"}) {
		t.Fatalf("buy must queue")
	}
	if !d.TrySell(SellIntent{Mint: "a", Fraction: 0.2, Reason: "spike stop"}) {
		t.Fatalf("sell queue must be independent of the buy queue")
	}
	sell := <-d.Sells()
	if sell.Fraction != 0.2 || sell.Reason != "spike stop" {
		t.Fatalf("sell intent mangled: %+v", sell)
	}
}
