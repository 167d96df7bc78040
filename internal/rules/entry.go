// Package rules evaluates the entry and exit rule catalogues against feature
// snapshots and live position state.
package rules

import (
	"fmt"

	"pumpwatch/internal/config"
	"pumpwatch/internal/event"
	"pumpwatch/internal/feature"
)

// Decision is the outcome of an entry evaluation. Reject decisions name the
// failing rule and the observed versus expected values.
type Decision struct {
	Accept bool
	Rule   string
	Reason string
}

func reject(rule, format string, args ...any) Decision {
	return Decision{Rule: rule, Reason: fmt.Sprintf(format, args...)}
}

// entryInput bundles everything a single rule may inspect.
type entryInput struct {
	ev   event.TradeEvent
	feat *feature.Snapshot
	win  []event.TradeMetric // newest-first, current event at index 0
	cfg  *config.EntryRules
}

// entryRule is one row of the ordered rule table. Baseline rules are enforced
// regardless of mode; the rest follow their configured Off/Online/Debug mode.
// check returns ok=false with a populated reject decision when the rule fails.
type entryRule struct {
	name     string
	baseline bool
	mode     func(*config.EntryRules) config.Mode
	check    func(entryInput) (bool, Decision)
}

// EvaluateEntry walks the rule table in order. The first failing baseline or
// Online rule short-circuits with a reject; Debug rules are computed (their
// values live on the snapshot) but never reject; Off rules are skipped.
func EvaluateEntry(cfg *config.EntryRules, feat *feature.Snapshot, ev event.TradeEvent, win []event.TradeMetric) Decision {
	in := entryInput{ev: ev, feat: feat, win: win, cfg: cfg}
	for _, rule := range entryTable {
		if !rule.baseline {
			m := rule.mode(cfg)
			if !m.Evaluated() {
				continue
			}
			if ok, d := rule.check(in); !ok && m.Filters() {
				return d
			}
			continue
		}
		if ok, d := rule.check(in); !ok {
			return d
		}
	}
	return Decision{Accept: true}
}

// The fixed evaluation order mirrors the tuned production sequence: cheap
// baseline filters first, then the windowed statistics.
var entryTable = []entryRule{
	{
		name:     "age_floor",
		baseline: true,
		check: func(in entryInput) (bool, Decision) {
			mins := in.feat.SinceCreateMs / 60000
			if mins < in.cfg.CreationFloorMin {
				return false, reject("age_floor", "mint too young (%dmin < %dmin)", mins, in.cfg.CreationFloorMin)
			}
			return true, Decision{}
		},
	},
	{
		name: "age_range",
		mode: func(c *config.EntryRules) config.Mode { return c.CreationMode },
		check: func(in entryInput) (bool, Decision) {
			if !in.cfg.CreationRange.Contains(in.feat.SinceCreateMin) {
				return false, reject("age_range", "mint age %.2fmin not in [%.2f,%.2f]",
					in.feat.SinceCreateMin, in.cfg.CreationRange.Min, in.cfg.CreationRange.Max)
			}
			return true, Decision{}
		},
	},
	{
		name:     "pool_range",
		baseline: true,
		check: func(in entryInput) (bool, Decision) {
			if !in.cfg.PoolRange.Contains(in.ev.PoolSol) {
				return false, reject("pool_range", "pool %.2f not in [%.2f,%.2f]",
					in.ev.PoolSol, in.cfg.PoolRange.Min, in.cfg.PoolRange.Max)
			}
			return true, Decision{}
		},
	},
	{
		name:     "amount_range",
		baseline: true,
		check: func(in entryInput) (bool, Decision) {
			if !in.cfg.AmountRange.Contains(in.ev.Amount) {
				return false, reject("amount_range", "amount %.2f not in [%.2f,%.2f]",
					in.ev.Amount, in.cfg.AmountRange.Min, in.cfg.AmountRange.Max)
			}
			return true, Decision{}
		},
	},
	{
		name: "gap_range",
		mode: func(c *config.EntryRules) config.Mode { return c.GapMode },
		check: func(in entryInput) (bool, Decision) {
			if !in.cfg.GapRange.Contains(in.feat.GapMs) {
				return false, reject("gap_range", "gap %.0fms not in [%.0f,%.0f]",
					in.feat.GapMs, in.cfg.GapRange.Min, in.cfg.GapRange.Max)
			}
			return true, Decision{}
		},
	},
	{
		name:     "filtered_count",
		baseline: true,
		check: func(in entryInput) (bool, Decision) {
			if in.feat.FilteredCount < in.cfg.FilteredCount {
				return false, reject("filtered_count", "only %d qualifying trades (< %d)",
					in.feat.FilteredCount, in.cfg.FilteredCount)
			}
			return true, Decision{}
		},
	},
	{
		name:     "filtered_sum",
		baseline: true,
		check: func(in entryInput) (bool, Decision) {
			if !in.cfg.FilteredSumRange.Contains(in.feat.FilteredSum) {
				return false, reject("filtered_sum", "filtered sum %.2f not in [%.2f,%.2f]",
					in.feat.FilteredSum, in.cfg.FilteredSumRange.Min, in.cfg.FilteredSumRange.Max)
			}
			return true, Decision{}
		},
	},
	{
		name:     "side",
		baseline: true,
		check: func(in entryInput) (bool, Decision) {
			switch in.cfg.Side {
			case config.SideBuy:
				if !in.ev.IsBuy() {
					return false, reject("side", "trade is not a buy")
				}
			case config.SideSell:
				if in.ev.IsBuy() {
					return false, reject("side", "trade is not a sell")
				}
			}
			return true, Decision{}
		},
	},
	{
		name: "largest",
		mode: func(c *config.EntryRules) config.Mode { return c.LargestMode },
		check: func(in entryInput) (bool, Decision) {
			max, found := 0.0, false
			seen := 0
			for _, m := range prior(in.win) {
				if m.Amount < in.cfg.LargestMinAmount {
					continue
				}
				if !found || m.Amount > max {
					max = m.Amount
				}
				found = true
				seen++
				if seen >= in.cfg.LargestLookback {
					break
				}
			}
			// No qualifying history: the trade is trivially the largest.
			if found && in.ev.Amount <= max {
				return false, reject("largest", "amount %.2f not above recent max %.2f", in.ev.Amount, max)
			}
			return true, Decision{}
		},
	},
	cvRule("price_cv", func(c *config.EntryRules) config.Mode { return c.PriceCVMode },
		func(in entryInput) *float64 { return in.feat.PriceCV },
		func(c *config.EntryRules) config.Range { return c.PriceCVRange }),
	cvRule("gap_cv", func(c *config.EntryRules) config.Mode { return c.GapCVMode },
		func(in entryInput) *float64 { return in.feat.GapCV },
		func(c *config.EntryRules) config.Range { return c.GapCVRange }),
	cvRule("amount_cv", func(c *config.EntryRules) config.Mode { return c.AmountCVMode },
		func(in entryInput) *float64 { return in.feat.AmountCV },
		func(c *config.EntryRules) config.Range { return c.AmountCVRange }),
	{
		name: "price_ratio",
		mode: func(c *config.EntryRules) config.Mode { return c.PriceRatioMode },
		check: func(in entryInput) (bool, Decision) {
			// Undefined ratio (no positive reference price) passes.
			if in.feat.PriceRatio == nil {
				return true, Decision{}
			}
			if !in.cfg.PriceRatioRange.Contains(*in.feat.PriceRatio) {
				return false, reject("price_ratio", "ratio %.2f%% not in [%.2f%%,%.2f%%]",
					*in.feat.PriceRatio, in.cfg.PriceRatioRange.Min, in.cfg.PriceRatioRange.Max)
			}
			return true, Decision{}
		},
	},
	{
		name: "buy_count",
		mode: func(c *config.EntryRules) config.Mode { return c.BuyCountMode },
		check: func(in entryInput) (bool, Decision) {
			if in.feat.BuyCount < in.cfg.BuyCountMin {
				return false, reject("buy_count", "%d buys < %d", in.feat.BuyCount, in.cfg.BuyCountMin)
			}
			return true, Decision{}
		},
	},
	{
		name: "sell_count",
		mode: func(c *config.EntryRules) config.Mode { return c.SellCountMode },
		check: func(in entryInput) (bool, Decision) {
			if in.feat.SellCount < in.cfg.SellCountMin {
				return false, reject("sell_count", "%d sells < %d", in.feat.SellCount, in.cfg.SellCountMin)
			}
			return true, Decision{}
		},
	},
	ratioRule("large_ratio", func(c *config.EntryRules) config.Mode { return c.LargeRatioMode },
		func(in entryInput) *float64 { return in.feat.LargeRatio },
		func(c *config.EntryRules) config.Range { return c.LargeRatioRange }),
	ratioRule("small_ratio", func(c *config.EntryRules) config.Mode { return c.SmallRatioMode },
		func(in entryInput) *float64 { return in.feat.SmallRatio },
		func(c *config.EntryRules) config.Range { return c.SmallRatioRange }),
	{
		name: "consec_buys",
		mode: func(c *config.EntryRules) config.Mode { return c.ConsecBuyMode },
		check: func(in entryInput) (bool, Decision) {
			v := float64(in.feat.ConsecBuys)
			if !in.cfg.ConsecBuyRange.Contains(v) {
				return false, reject("consec_buys", "%d consecutive buys not in [%.0f,%.0f]",
					in.feat.ConsecBuys, in.cfg.ConsecBuyRange.Min, in.cfg.ConsecBuyRange.Max)
			}
			return true, Decision{}
		},
	},
	{
		name: "consec_sells",
		mode: func(c *config.EntryRules) config.Mode { return c.ConsecSellMode },
		check: func(in entryInput) (bool, Decision) {
			v := float64(in.feat.ConsecSells)
			if !in.cfg.ConsecSellRange.Contains(v) {
				return false, reject("consec_sells", "%d consecutive sells not in [%.0f,%.0f]",
					in.feat.ConsecSells, in.cfg.ConsecSellRange.Min, in.cfg.ConsecSellRange.Max)
			}
			return true, Decision{}
		},
	},
	{
		name: "recent_count",
		mode: func(c *config.EntryRules) config.Mode { return c.RecentCountMode },
		check: func(in entryInput) (bool, Decision) {
			v := float64(in.feat.RecentCount)
			if !in.cfg.RecentCountRange.Contains(v) {
				return false, reject("recent_count", "%d trades in %ds not in [%.0f,%.0f]",
					in.feat.RecentCount, in.cfg.RecentCountWindowS,
					in.cfg.RecentCountRange.Min, in.cfg.RecentCountRange.Max)
			}
			return true, Decision{}
		},
	},
	{
		name: "avg_gap",
		mode: func(c *config.EntryRules) config.Mode { return c.AvgGapMode },
		check: func(in entryInput) (bool, Decision) {
			// Too little history to average: passes.
			if in.feat.AvgGapMs == nil {
				return true, Decision{}
			}
			if !in.cfg.AvgGapRange.Contains(*in.feat.AvgGapMs) {
				return false, reject("avg_gap", "avg gap %.0fms not in [%.0f,%.0f]",
					*in.feat.AvgGapMs, in.cfg.AvgGapRange.Min, in.cfg.AvgGapRange.Max)
			}
			return true, Decision{}
		},
	},
	{
		name: "window_sum",
		mode: func(c *config.EntryRules) config.Mode { return c.WindowSumMode },
		check: func(in entryInput) (bool, Decision) {
			if in.feat.WindowSum == nil {
				return true, Decision{}
			}
			if !in.cfg.WindowSumRange.Contains(*in.feat.WindowSum) {
				return false, reject("window_sum", "window sum %.2f not in [%.2f,%.2f]",
					*in.feat.WindowSum, in.cfg.WindowSumRange.Min, in.cfg.WindowSumRange.Max)
			}
			return true, Decision{}
		},
	},
	{
		name: "window_counts",
		mode: func(c *config.EntryRules) config.Mode { return c.WindowCountMode },
		check: func(in entryInput) (bool, Decision) {
			if in.feat.WindowBuys != nil {
				if v := float64(*in.feat.WindowBuys); !in.cfg.WindowBuyRange.Contains(v) {
					return false, reject("window_counts", "%d window buys not in [%.0f,%.0f]",
						*in.feat.WindowBuys, in.cfg.WindowBuyRange.Min, in.cfg.WindowBuyRange.Max)
				}
			}
			if in.feat.WindowSells != nil {
				if v := float64(*in.feat.WindowSells); !in.cfg.WindowSellRange.Contains(v) {
					return false, reject("window_counts", "%d window sells not in [%.0f,%.0f]",
						*in.feat.WindowSells, in.cfg.WindowSellRange.Min, in.cfg.WindowSellRange.Max)
				}
			}
			return true, Decision{}
		},
	},
}

// cvRule builds a coefficient-of-variation range rule. An undefined CV (too
// few qualifying samples) rejects: the statistic is a required signal here.
func cvRule(name string, mode func(*config.EntryRules) config.Mode,
	value func(entryInput) *float64, bounds func(*config.EntryRules) config.Range) entryRule {
	return entryRule{
		name: name,
		mode: mode,
		check: func(in entryInput) (bool, Decision) {
			v := value(in)
			if v == nil {
				return false, reject(name, "insufficient samples")
			}
			r := bounds(in.cfg)
			if !r.Contains(*v) {
				return false, reject(name, "%s %.4f not in [%.4f,%.4f]", name, *v, r.Min, r.Max)
			}
			return true, Decision{}
		},
	}
}

// ratioRule builds a large/small trade share rule. An undefined ratio (empty
// lookback) passes.
func ratioRule(name string, mode func(*config.EntryRules) config.Mode,
	value func(entryInput) *float64, bounds func(*config.EntryRules) config.Range) entryRule {
	return entryRule{
		name: name,
		mode: mode,
		check: func(in entryInput) (bool, Decision) {
			v := value(in)
			if v == nil {
				return true, Decision{}
			}
			r := bounds(in.cfg)
			if !r.Contains(*v) {
				return false, reject(name, "%s %.2f not in [%.2f,%.2f]", name, *v, r.Min, r.Max)
			}
			return true, Decision{}
		},
	}
}

func prior(win []event.TradeMetric) []event.TradeMetric {
	if len(win) == 0 {
		return nil
	}
	return win[1:]
}
