package rules

import (
	"testing"

	"pumpwatch/internal/config"
	"pumpwatch/internal/event"
	"pumpwatch/internal/feature"
)

func sellEvent(ts int64, amount, pool float64) event.TradeEvent {
	return event.TradeEvent{
		Mint: "mint", Trader: "trader", Side: event.Sell,
		Amount: amount, TokenAmount: 1e6,
		Price: pool * 1e-9, PoolSol: pool, Ts: ts,
	}
}

func hist(ts int64, amount float64, side int, pool float64) event.TradeMetric {
	return event.TradeMetric{Ts: ts, Amount: amount, Side: side, Price: pool * 1e-9, PoolSol: pool}
}

// quietEntry returns a rule set where every tunable rule is Off and the
// baselines cannot fail for a mid-range sell.
func quietEntry() config.EntryRules {
	cfg := config.Default().Entry
	cfg.CreationMode = config.Off
	cfg.GapMode = config.Off
	cfg.LargestMode = config.Off
	cfg.PriceCVMode = config.Off
	cfg.GapCVMode = config.Off
	cfg.AmountCVMode = config.Off
	cfg.PriceRatioMode = config.Off
	cfg.BuyCountMode = config.Off
	cfg.SellCountMode = config.Off
	cfg.LargeRatioMode = config.Off
	cfg.SmallRatioMode = config.Off
	cfg.ConsecBuyMode = config.Off
	cfg.ConsecSellMode = config.Off
	cfg.RecentCountMode = config.Off
	cfg.AvgGapMode = config.Off
	cfg.WindowSumMode = config.Off
	cfg.WindowCountMode = config.Off
	cfg.FilteredCount = 0
	return cfg
}

func evaluate(cfg *config.EntryRules, ev event.TradeEvent, win []event.TradeMetric) Decision {
	feat := feature.Extract(ev, win, win[len(win)-1].Ts, cfg)
	return EvaluateEntry(cfg, feat, ev, win)
}

func TestAllOffAcceptsMidRangeSell(t *testing.T) {
	cfg := quietEntry()
	ev := sellEvent(10_000, 8, 150)
	d := evaluate(&cfg, ev, []event.TradeMetric{ev.Metric()})
	if !d.Accept {
		t.Fatalf("expected accept, got reject by %s: %s", d.Rule, d.Reason)
	}
}

func TestBaselinePoolRange(t *testing.T) {
	cfg := quietEntry()
	ev := sellEvent(10_000, 8, 50)
	d := evaluate(&cfg, ev, []event.TradeMetric{ev.Metric()})
	if d.Accept || d.Rule != "pool_range" {
		t.Fatalf("expected pool_range reject, got %+v", d)
	}
}

func TestBaselineAmountRange(t *testing.T) {
	cfg := quietEntry()
	ev := sellEvent(10_000, 0.5, 150)
	d := evaluate(&cfg, ev, []event.TradeMetric{ev.Metric()})
	if d.Accept || d.Rule != "amount_range" {
		t.Fatalf("expected amount_range reject, got %+v", d)
	}
}

func TestBaselineSideFilter(t *testing.T) {
	cfg := quietEntry()
	ev := sellEvent(10_000, 8, 150)
	ev.Side = event.Buy
	d := evaluate(&cfg, ev, []event.TradeMetric{ev.Metric()})
	if d.Accept || d.Rule != "side" {
		t.Fatalf("expected side reject, got %+v", d)
	}

	cfg.Side = config.SideBoth
	d = evaluate(&cfg, ev, []event.TradeMetric{ev.Metric()})
	if !d.Accept {
		t.Fatalf("side both must accept buys, got %+v", d)
	}
}

func TestBaselineFilteredCount(t *testing.T) {
	cfg := quietEntry()
	cfg.FilteredCount = 5
	ev := sellEvent(10_000, 8, 150)
	win := []event.TradeMetric{ev.Metric(), hist(9_900, 1, event.Buy, 150)}
	d := evaluate(&cfg, ev, win)
	if d.Accept || d.Rule != "filtered_count" {
		t.Fatalf("expected filtered_count reject, got %+v", d)
	}
}

func TestOnlineGapRejectsDebugDoesNot(t *testing.T) {
	cfg := quietEntry()
	cfg.GapMode = config.Online
	ev := sellEvent(10_000, 8, 150)
	win := []event.TradeMetric{ev.Metric(), hist(9_000, 1, event.Buy, 150)} // gap 1000ms
	d := evaluate(&cfg, ev, win)
	if d.Accept || d.Rule != "gap_range" {
		t.Fatalf("expected gap_range reject, got %+v", d)
	}

	cfg.GapMode = config.Debug
	d = evaluate(&cfg, ev, win)
	if !d.Accept {
		t.Fatalf("debug rule must not reject, got %+v", d)
	}
}

func TestUndefinedCVRejectsOnline(t *testing.T) {
	cfg := quietEntry()
	cfg.PriceCVMode = config.Online
	ev := sellEvent(10_000, 8, 150)
	// One prior trade: the statistic is undefined and the rule requires it.
	win := []event.TradeMetric{ev.Metric(), hist(9_900, 1, event.Buy, 150)}
	d := evaluate(&cfg, ev, win)
	if d.Accept || d.Rule != "price_cv" {
		t.Fatalf("undefined cv must reject in online mode, got %+v", d)
	}
}

func TestUndefinedOptionalFeaturesPass(t *testing.T) {
	cfg := quietEntry()
	cfg.AvgGapMode = config.Online
	cfg.LargeRatioMode = config.Online
	cfg.PriceRatioMode = config.Online
	ev := sellEvent(10_000, 8, 150)
	ev.Price = 0 // price ratio undefined
	d := evaluate(&cfg, ev, []event.TradeMetric{ev.Metric()})
	if !d.Accept {
		t.Fatalf("undefined optional features must pass, got %+v", d)
	}
}

func TestLargestPassesWithoutHistory(t *testing.T) {
	cfg := quietEntry()
	cfg.LargestMode = config.Online
	cfg.LargestMinAmount = 0.05
	ev := sellEvent(10_000, 8, 150)
	d := evaluate(&cfg, ev, []event.TradeMetric{ev.Metric()})
	if !d.Accept {
		t.Fatalf("no qualifying history must pass the largest rule, got %+v", d)
	}

	win := []event.TradeMetric{ev.Metric(), hist(9_900, 9, event.Buy, 150)}
	d = evaluate(&cfg, ev, win)
	if d.Accept || d.Rule != "largest" {
		t.Fatalf("bigger recent trade must reject, got %+v", d)
	}
}

// TestTunedDefaultsAccept drives the full default rule set end to end with a
// window that satisfies every online rule.
func TestTunedDefaultsAccept(t *testing.T) {
	cfg := config.Default().Entry

	now := int64(100_000)
	ev := sellEvent(now, 8, 150)

	win := []event.TradeMetric{ev.Metric()}
	ts := now - 500 // gap 500ms, inside [0,800]
	for i := 0; i < 30; i++ {
		var m event.TradeMetric
		switch {
		case i < 3:
			// Big buys close to the event keep the 600ms signed sum positive.
			m = hist(ts, 5.0, event.Buy, 150)
		case i < 13:
			m = hist(ts, 0.2, event.Buy, 150)
		default:
			m = hist(ts, 0.2, event.Sell, 150)
		}
		win = append(win, m)
		ts -= 50
	}

	feat := feature.Extract(ev, win, win[len(win)-1].Ts, &cfg)
	d := EvaluateEntry(&cfg, feat, ev, win)
	if !d.Accept {
		t.Fatalf("expected accept under tuned defaults, rejected by %s: %s", d.Rule, d.Reason)
	}
	if feat.FilteredCount != cfg.FilteredCount {
		t.Fatalf("expected filtered count capped at %d, got %d", cfg.FilteredCount, feat.FilteredCount)
	}
	if feat.WindowBuys == nil || *feat.WindowBuys < 10 {
		t.Fatalf("window buys should satisfy the default floor: %v", feat.WindowBuys)
	}
}
