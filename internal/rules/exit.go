package rules

import (
	"fmt"
	"strings"

	"pumpwatch/internal/config"
	"pumpwatch/internal/event"
)

// Dust thresholds below which a trade only bumps counters: such swaps carry no
// price information worth acting on.
const (
	dustAmount = 0.01
	dustTokens = 100
)

// Sizes splitting the big/small diagnostic counters.
const (
	bigBuyAmount  = 0.4
	bigSellAmount = 1.0
)

// A computed move below this is treated as a corrupt quote, not a real crash.
const anomalyRatePct = -60

// ExitDecision reports whether any exit rule fired and why. Reasons from the
// blacklist signal and the first firing rule may both be present.
type ExitDecision struct {
	Exit    bool
	Reasons []string
}

// Reason joins all firing reasons for diagnostics.
func (d ExitDecision) Reason() string { return strings.Join(d.Reasons, "|") }

func (d *ExitDecision) fire(format string, args ...any) {
	d.Exit = true
	d.Reasons = append(d.Reasons, fmt.Sprintf(format, args...))
}

// EvaluateExit runs once per trade event while a position is open. It first
// updates the position's extremes and counters unconditionally, then walks the
// exit rules. blackSource is the feed's blacklist signal (0 = clean).
func EvaluateExit(cfg *config.ExitRules, pos *Position, ev event.TradeEvent,
	window []event.TradeMetric, prices []float64, blackSource int) ExitDecision {

	var d ExitDecision

	if ev.Amount < dustAmount || ev.TokenAmount < dustTokens {
		return d
	}

	if pos.TradeCount < 1 {
		pos.Rebase(ev.Price, ev.Ts)
		pos.MinProfitRate = 0
	}

	if ev.Price != 0 && pos.EntryPrice > 0 {
		rate := 100 * (ev.Price/pos.EntryPrice - 1)
		if rate < anomalyRatePct {
			pos.RatePct = 0
			pos.TradeCount++
			return d
		}
		pos.RatePct = rate
	}

	if ev.Price > pos.MaxPrice {
		pos.MaxPrice = ev.Price
	}
	if ev.Price > 0 && (ev.Price < pos.MinPrice || pos.MinPrice == 0) {
		pos.MinPrice = ev.Price
	}
	if pos.RatePct > pos.MaxRatePct {
		pos.MaxRatePct = pos.RatePct
	}

	if ev.IsBuy() {
		if ev.Amount > bigBuyAmount {
			pos.BigBuys++
		} else {
			pos.SmallBuys++
		}
	} else {
		if ev.Amount > bigSellAmount {
			pos.BigSells++
		} else {
			pos.SmallSells++
		}
	}
	pos.TradeCount++

	profitRate := pos.ProfitRate(ev.Price)
	maxProfitRate := pos.MaxProfitRate()
	if profitRate < pos.MinProfitRate {
		pos.MinProfitRate = profitRate
	}

	if blackSource > 0 {
		d.fire("blacklisted (source %d)", blackSource)
	}

	// Pool take-profit concatenates with a blacklist hit; everything below
	// stops at the first firing rule.
	if ev.PoolSol >= cfg.PoolTakeProfit {
		d.fire("pool take-profit (%.2f >= %.2f)", ev.PoolSol, cfg.PoolTakeProfit)
	}

	if !d.Exit && cfg.ProfitTakeEnabled && profitRate >= cfg.ProfitTake {
		d.fire("profit take (%.2f%% >= %.0f%%)", profitRate*100, cfg.ProfitTake*100)
	}

	if !d.Exit && cfg.PressureEnabled {
		checkSellPressure(cfg, window, &d)
	}

	if !d.Exit && profitRate <= -cfg.LossFraction {
		if pos.PreEntryMin > 0 && ev.Price < pos.PreEntryMin {
			d.fire("stop loss (%.2f%%, price %.6g < pre-entry min %.6g)",
				profitRate*100, ev.Price, pos.PreEntryMin)
		}
	}

	if !d.Exit {
		checkRetracement(cfg, pos, ev, prices, profitRate, maxProfitRate, &d)
	}

	if !d.Exit {
		holdS := pos.HoldMs(ev.Ts) / 1000
		if holdS > cfg.MaxHoldS {
			d.fire("hold timeout (%ds > %ds)", holdS, cfg.MaxHoldS)
		}
	}

	if !d.Exit && cfg.QuietEnabled && !ev.IsBuy() {
		checkQuietPeriod(cfg, pos, ev, window, &d)
	}

	if !d.Exit && cfg.SpikeEnabled && profitRate > 0 {
		checkSpike(cfg, pos, ev, window, &d)
	}

	if !d.Exit && cfg.ReboundEnabled {
		checkRebound(cfg, pos, ev, profitRate, &d)
	}

	if !d.Exit && cfg.ActiveSpikeEnabled && profitRate > 0 {
		checkActivitySpike(pos, ev, window, cfg.ActiveSpikeWindowS, cfg.ActiveSpikeLookback,
			cfg.ActiveSpikeRisePct, cfg.ActiveSpikeMinTrades, true, &d)
	}

	if !d.Exit && cfg.QuietSpikeEnabled && profitRate > 0 {
		checkActivitySpike(pos, ev, window, cfg.QuietSpikeWindowS, cfg.QuietSpikeLookback,
			cfg.QuietSpikeRisePct, cfg.QuietSpikeMaxTrades, false, &d)
	}

	return d
}

func checkSellPressure(cfg *config.ExitRules, window []event.TradeMetric, d *ExitDecision) {
	lookback := cfg.PressureLookback
	if len(window) < lookback {
		return
	}
	allSell := true
	var sum float64
	for _, m := range window[:lookback] {
		if m.IsBuy() {
			allSell = false
		}
		sum += m.SignedAmount()
	}
	if cfg.PressureAllSells && allSell {
		d.fire("sell pressure (last %d all sells)", lookback)
	} else if sum < cfg.PressureSumFloor {
		d.fire("sell pressure (last %d sum %.2f < %.1f)", lookback, sum, cfg.PressureSumFloor)
	}
}

func checkRetracement(cfg *config.ExitRules, pos *Position, ev event.TradeEvent,
	prices []float64, profitRate, maxProfitRate float64, d *ExitDecision) {

	if pos.MaxPrice <= pos.EntryPrice ||
		pos.HoldMs(ev.Ts) < cfg.RetraceMinHoldMs ||
		profitRate < cfg.RetraceMinProfit {
		return
	}
	retracement := (pos.MaxPrice - ev.Price) / pos.MaxPrice

	threshold := cfg.RetraceLowProfit
	band := "low"
	if maxProfitRate >= cfg.HighProfitCutoff {
		threshold = cfg.RetraceHighProfit
		band = "high"
	}
	if retracement < threshold {
		return
	}
	turns := TurningPoints(prices, cfg.TurnWindow)
	if turns < cfg.RetraceMinTurns {
		return
	}
	d.fire("retracement stop (%s, %.2f%% >= %.2f%%, peak %.2f%%, turns %d)",
		band, retracement*100, threshold*100, maxProfitRate*100, turns)
}

// turningPointSpan bounds how much price history the detector scans.
const turningPointSpan = 80

// TurningPoints slides a fixed-size window over the most recent prices and
// counts positions whose middle element is the maximum of the window and
// strictly greater than both endpoints.
func TurningPoints(prices []float64, window int) int {
	if window < 3 || len(prices) < window {
		return 0
	}
	span := prices
	if len(span) > turningPointSpan {
		span = span[:turningPointSpan]
	}
	mid := window / 2
	count := 0
	for i := 0; i+window <= len(span); i++ {
		w := span[i : i+window]
		peak := true
		for j, p := range w {
			if j != mid && p > w[mid] {
				peak = false
				break
			}
		}
		if peak && w[mid] > w[0] && w[mid] > w[window-1] {
			count++
		}
	}
	return count
}

func checkQuietPeriod(cfg *config.ExitRules, pos *Position, ev event.TradeEvent,
	window []event.TradeMetric, d *ExitDecision) {

	holdS := pos.HoldMs(ev.Ts) / 1000
	if holdS < cfg.QuietWindowS {
		return
	}
	quietStart := ev.Ts - cfg.QuietWindowS*1000
	for _, m := range window {
		if m.Ts >= ev.Ts {
			continue
		}
		if m.Ts < quietStart || m.Ts <= pos.EntryTime {
			break
		}
		if m.Amount >= cfg.QuietMinAmount {
			return
		}
	}
	d.fire("quiet period (held %ds, no trade >= %.2f in %ds)", holdS, cfg.QuietMinAmount, cfg.QuietWindowS)
}

func checkSpike(cfg *config.ExitRules, pos *Position, ev event.TradeEvent,
	window []event.TradeMetric, d *ExitDecision) {

	spikeStart := ev.Ts - cfg.SpikeLookbackMs
	var refPrice float64
	for _, m := range window {
		if m.Ts >= ev.Ts {
			continue
		}
		if m.Ts < pos.EntryTime {
			break
		}
		if m.Ts <= spikeStart {
			refPrice = m.Price
			break
		}
	}
	if refPrice <= 0 {
		return
	}
	spikePct := (ev.Price - refPrice) / refPrice * 100
	if spikePct >= cfg.SpikePct {
		d.fire("spike stop (%.2f%% in %dms >= %.1f%%)", spikePct, cfg.SpikeLookbackMs, cfg.SpikePct)
	}
}

func checkRebound(cfg *config.ExitRules, pos *Position, ev event.TradeEvent,
	profitRate float64, d *ExitDecision) {

	// Only armable once the position has been under water past the floor.
	if pos.MinProfitRate > -cfg.ReboundMinLossPct/100 {
		return
	}
	if profitRate < cfg.ReboundMinGainPct/100 {
		return
	}
	if !ev.IsBuy() || ev.Amount < cfg.ReboundMinBuy {
		return
	}
	d.fire("rebound stop (trough %.2f%%, now %.2f%%, buy %.2f >= %.1f)",
		pos.MinProfitRate*100, profitRate*100, ev.Amount, cfg.ReboundMinBuy)
}

// checkActivitySpike covers both variants: active fires when the short-window
// trade count is at least the threshold, inactive when it is below it.
func checkActivitySpike(pos *Position, ev event.TradeEvent, window []event.TradeMetric,
	windowS int64, lookback int, risePct float64, countThreshold int, active bool, d *ExitDecision) {

	start := ev.Ts - windowS*1000
	count := 0
	for _, m := range window {
		if m.Ts >= ev.Ts {
			continue
		}
		if m.Ts < pos.EntryTime || m.Ts < start {
			break
		}
		count++
	}
	if active && count < countThreshold {
		return
	}
	if !active && count >= countThreshold {
		return
	}

	minPrice := 0.0
	seen := 0
	for _, m := range window {
		if m.Ts >= ev.Ts {
			continue
		}
		if m.Ts < pos.EntryTime {
			break
		}
		if m.Price > 0 && (minPrice == 0 || m.Price < minPrice) {
			minPrice = m.Price
		}
		seen++
		if seen >= lookback {
			break
		}
	}
	if minPrice <= 0 {
		return
	}
	rise := (ev.Price - minPrice) / minPrice * 100
	if rise < risePct {
		return
	}
	if active {
		d.fire("active spike (%d trades in %ds, +%.2f%% off low >= %.0f%%)", count, windowS, rise, risePct)
	} else {
		d.fire("inactive spike (%d trades in %ds, +%.2f%% off low >= %.0f%%)", count, windowS, rise, risePct)
	}
}
