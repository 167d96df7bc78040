// Package feature derives per-event statistics from a mint's recent trade
// window. Extraction is pure: one snapshot per evaluated event, never stored.
package feature

import (
	"math"
	"strconv"

	"github.com/rs/zerolog"

	"pumpwatch/internal/config"
	"pumpwatch/internal/event"
)

// Snapshot carries every derived value for one evaluated event. Pointer fields
// are nil when the window held too few qualifying samples to define the value;
// nil is distinct from a computed zero and the rule layer treats it per rule.
type Snapshot struct {
	Mint   string
	Trader string
	Side   int

	Price       float64
	PoolSol     float64
	Amount      float64
	TokenAmount float64

	SinceCreateMs  int64
	SinceCreateMin float64
	GapMs          float64 // ms since the previous trade; 0 when none

	FilteredSum   float64
	FilteredCount int

	PriceCV  *float64
	GapCV    *float64
	AmountCV *float64

	PriceRatio *float64 // percent above the lookback minimum

	BuyCount    int
	SellCount   int
	ConsecBuys  int
	ConsecSells int

	LargeRatio *float64
	SmallRatio *float64

	RecentCount int
	AvgGapMs    *float64

	WindowSum   *float64
	WindowBuys  *int
	WindowSells *int

	// Attached after rule evaluation.
	MatchedGroup  *int
	MatchedPayout *float64
	Stake         float64
}

// Extract computes a snapshot for ev. The window is newest-first and already
// contains ev at index 0; lookbacks that must exclude the triggering trade
// skip that head entry.
func Extract(ev event.TradeEvent, window []event.TradeMetric, createdAt int64, cfg *config.EntryRules) *Snapshot {
	s := &Snapshot{
		Mint:        ev.Mint,
		Trader:      ev.Trader,
		Side:        ev.Side,
		Price:       ev.Price,
		PoolSol:     ev.PoolSol,
		Amount:      ev.Amount,
		TokenAmount: ev.TokenAmount,
	}

	s.SinceCreateMs = ev.Ts - createdAt
	if s.SinceCreateMs < 0 {
		s.SinceCreateMs = 0
	}
	s.SinceCreateMin = float64(s.SinceCreateMs) / 60000

	prior := window
	if len(prior) > 0 {
		prior = prior[1:]
	}
	if len(prior) > 0 {
		s.GapMs = float64(ev.Ts - prior[0].Ts)
	}

	s.FilteredCount, s.FilteredSum = filteredSum(prior, cfg.FilteredMinAmount, cfg.FilteredCount)
	s.PriceCV, s.GapCV, s.AmountCV = volatility(prior, cfg.VolLookback, cfg.VolMinAmount)
	s.PriceRatio = priceRatio(ev, window, cfg.PriceRatioLookback)

	s.BuyCount = sideCount(prior, cfg.BuyCountLookback, true)
	s.SellCount = sideCount(prior, cfg.SellCountLookback, false)
	s.ConsecBuys = consecutive(prior, cfg.ConsecBuyThreshold, true)
	s.ConsecSells = consecutive(prior, cfg.ConsecSellThreshold, false)
	s.LargeRatio, s.SmallRatio = sizeRatios(prior, cfg)

	s.RecentCount = recentCount(window, ev.Ts, cfg.RecentCountWindowS*1000)
	s.AvgGapMs = avgGap(prior, ev.Ts, cfg.AvgGapLookback)
	s.WindowSum = windowSum(window, ev.Ts, cfg.WindowSumMs, cfg.WindowSumMinAmount)
	s.WindowBuys, s.WindowSells = windowCounts(window, ev.Ts, cfg.WindowCountMs, cfg.WindowCountMinAmount)

	return s
}

// cv is sqrt(population variance)/|mean|. Below two samples the statistic is
// undefined; a zero mean yields exactly 0.
func cv(vals []float64) *float64 {
	if len(vals) < 2 {
		return nil
	}
	var sum float64
	for _, v := range vals {
		sum += v
	}
	mean := sum / float64(len(vals))
	if mean == 0 {
		zero := 0.0
		return &zero
	}
	var variance float64
	for _, v := range vals {
		d := v - mean
		variance += d * d
	}
	variance /= float64(len(vals))
	out := math.Sqrt(variance) / math.Abs(mean)
	return &out
}

func filteredSum(prior []event.TradeMetric, minAmount float64, maxCount int) (int, float64) {
	var n int
	var sum float64
	for _, m := range prior {
		if m.Amount < minAmount {
			continue
		}
		sum += m.SignedAmount()
		n++
		if maxCount > 0 && n >= maxCount {
			break
		}
	}
	return n, sum
}

func volatility(prior []event.TradeMetric, lookback int, minAmount float64) (priceCV, gapCV, amountCV *float64) {
	var prices, gaps, amounts []float64
	var prevTs int64
	valid := 0
	for _, m := range prior {
		if valid >= lookback {
			break
		}
		if m.Amount < minAmount {
			continue
		}
		valid++
		// Pool reserve stands in for price here: it moves with every swap
		// and is immune to token-amount rounding on tiny trades.
		if m.PoolSol > 0 {
			prices = append(prices, m.PoolSol)
		}
		if m.Ts > 0 {
			if prevTs > 0 {
				// Newest-first scan: prevTs belongs to the later trade.
				gaps = append(gaps, float64(prevTs-m.Ts))
			}
			prevTs = m.Ts
		}
		amounts = append(amounts, m.Amount)
	}
	return cv(prices), cv(gaps), cv(amounts)
}

func priceRatio(ev event.TradeEvent, window []event.TradeMetric, lookback int) *float64 {
	if ev.Price <= 0 {
		return nil
	}
	minPool := math.Inf(1)
	found := false
	for i, m := range window {
		if lookback > 0 && i >= lookback {
			break
		}
		if m.PoolSol > 0 {
			found = true
			if m.PoolSol < minPool {
				minPool = m.PoolSol
			}
		}
	}
	if !found || minPool <= 0 {
		return nil
	}
	out := (ev.PoolSol/minPool - 1) * 100
	return &out
}

func sideCount(prior []event.TradeMetric, lookback int, buys bool) int {
	n := 0
	for i, m := range prior {
		if lookback > 0 && i >= lookback {
			break
		}
		if m.IsBuy() == buys {
			n++
		}
	}
	return n
}

func consecutive(prior []event.TradeMetric, threshold float64, buys bool) int {
	n := 0
	for _, m := range prior {
		if m.IsBuy() != buys || m.Amount < threshold {
			break
		}
		n++
	}
	return n
}

func sizeRatios(prior []event.TradeMetric, cfg *config.EntryRules) (large, small *float64) {
	lookback := cfg.LargeRatioLookback
	if cfg.SmallRatioLookback > lookback {
		lookback = cfg.SmallRatioLookback
	}
	if lookback > len(prior) {
		lookback = len(prior)
	}
	if lookback <= 0 {
		return nil, nil
	}
	var big, tiny int
	for _, m := range prior[:lookback] {
		if m.Amount >= cfg.LargeThreshold {
			big++
		}
		if m.Amount < cfg.SmallThreshold {
			tiny++
		}
	}
	l := float64(big) / float64(lookback)
	s := float64(tiny) / float64(lookback)
	return &l, &s
}

// recentCount counts prior trades inside the trailing window. The window is
// time-ordered so the scan stops at the first entry that falls outside it.
func recentCount(window []event.TradeMetric, now, spanMs int64) int {
	start := now - spanMs
	n := 0
	for _, m := range window {
		if m.Ts < start {
			break
		}
		if m.Ts < now {
			n++
		}
	}
	return n
}

func avgGap(prior []event.TradeMetric, now int64, lookback int) *float64 {
	if lookback > len(prior) {
		lookback = len(prior)
	}
	if lookback < 2 {
		return nil
	}
	times := make([]int64, 0, lookback+1)
	times = append(times, now)
	for _, m := range prior[:lookback] {
		times = append(times, m.Ts)
	}
	var sum float64
	for i := 0; i < len(times)-1; i++ {
		d := times[i] - times[i+1]
		if d < 0 {
			d = 0
		}
		sum += float64(d)
	}
	out := sum / float64(len(times)-1)
	return &out
}

func windowSum(window []event.TradeMetric, now, spanMs int64, minAmount float64) *float64 {
	start := now - spanMs
	var sum float64
	found := false
	for _, m := range window {
		if m.Ts < start {
			break
		}
		if m.Amount >= minAmount {
			sum += m.SignedAmount()
			found = true
		}
	}
	if !found {
		return nil
	}
	return &sum
}

func windowCounts(window []event.TradeMetric, now, spanMs int64, minAmount float64) (buys, sells *int) {
	start := now - spanMs
	var b, s int
	found := false
	for _, m := range window {
		if m.Ts < start {
			break
		}
		if m.Amount < minAmount {
			continue
		}
		found = true
		if m.IsBuy() {
			b++
		} else {
			s++
		}
	}
	if !found {
		return nil, nil
	}
	return &b, &s
}

// MarshalZerologObject renders the snapshot as structured log fields; undefined
// values are logged as "-" so gaps stay visible in diagnostics.
func (s *Snapshot) MarshalZerologObject(e *zerolog.Event) {
	e.Str("mint", s.Mint).
		Str("trader", s.Trader).
		Int("side", s.Side).
		Float64("price", s.Price).
		Float64("pool", s.PoolSol).
		Float64("amount", s.Amount).
		Float64("age_min", s.SinceCreateMin).
		Float64("gap_ms", s.GapMs).
		Int("filtered_cnt", s.FilteredCount).
		Float64("filtered_sum", s.FilteredSum).
		Str("price_cv", optF(s.PriceCV)).
		Str("gap_cv", optF(s.GapCV)).
		Str("amount_cv", optF(s.AmountCV)).
		Str("price_ratio", optF(s.PriceRatio)).
		Int("buys", s.BuyCount).
		Int("sells", s.SellCount).
		Int("consec_buys", s.ConsecBuys).
		Int("consec_sells", s.ConsecSells).
		Str("large_ratio", optF(s.LargeRatio)).
		Str("small_ratio", optF(s.SmallRatio)).
		Int("recent_cnt", s.RecentCount).
		Str("avg_gap_ms", optF(s.AvgGapMs)).
		Str("win_sum", optF(s.WindowSum)).
		Str("win_buys", optI(s.WindowBuys)).
		Str("win_sells", optI(s.WindowSells)).
		Float64("stake", s.Stake)
}

func optF(v *float64) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatFloat(*v, 'f', 4, 64)
}

func optI(v *int) string {
	if v == nil {
		return "-"
	}
	return strconv.Itoa(*v)
}
