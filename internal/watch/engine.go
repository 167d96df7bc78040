package watch

import (
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"pumpwatch/internal/config"
	"pumpwatch/internal/event"
	"pumpwatch/internal/execution"
	"pumpwatch/internal/feature"
	"pumpwatch/internal/market"
	"pumpwatch/internal/metrics"
	"pumpwatch/internal/outcome"
	"pumpwatch/internal/paper"
	"pumpwatch/internal/risk"
	"pumpwatch/internal/rules"
)

// Watcher lookups shard by mint so unrelated mints never contend.
const shardCount = 64

type shard struct {
	mu       sync.Mutex
	watchers map[string]*Watcher
}

// Engine routes every trade event to its mint's watcher under an exclusive
// per-mint lease, so each watcher observes a serialized event stream no matter
// how many feed goroutines call Process.
type Engine struct {
	cfg *config.Config
	log zerolog.Logger

	shards [shardCount]shard

	admission *risk.Admission
	dispatch  *execution.Dispatcher
	history   *outcome.History
	payouts   *outcome.Table
	recorder  paper.Sink

	counterparties map[string]bool
}

// NewEngine wires the engine. payouts and recorder may be nil; a nil recorder
// is replaced with a no-op sink.
func NewEngine(cfg *config.Config, dispatch *execution.Dispatcher, history *outcome.History,
	payouts *outcome.Table, recorder paper.Sink, log zerolog.Logger) *Engine {

	if history == nil {
		history = outcome.NewHistory()
	}
	if recorder == nil {
		recorder = paper.NopRecorder{}
	}
	counterparties := make(map[string]bool, len(cfg.Wallet.Counterparties))
	for _, w := range cfg.Wallet.Counterparties {
		counterparties[w] = true
	}
	e := &Engine{
		cfg:            cfg,
		log:            log,
		admission:      risk.NewAdmission(cfg.Engine.MaxOpenPositions),
		dispatch:       dispatch,
		history:        history,
		payouts:        payouts,
		recorder:       recorder,
		counterparties: counterparties,
	}
	for i := range e.shards {
		e.shards[i].watchers = make(map[string]*Watcher)
	}
	return e
}

// Admission exposes the position-count controller, mainly for tests and the
// metrics loop.
func (e *Engine) Admission() *risk.Admission { return e.admission }

// Watcher returns the watcher for a mint, or nil when none exists yet.
func (e *Engine) Watcher(mint string) *Watcher {
	s := &e.shards[shardIndex(mint)]
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.watchers[mint]
}

func (e *Engine) watcher(mint string) *Watcher {
	s := &e.shards[shardIndex(mint)]
	s.mu.Lock()
	defer s.mu.Unlock()
	w := s.watchers[mint]
	if w == nil {
		w = newWatcher(mint, market.DefaultWindowCap, market.DefaultPriceCap)
		s.watchers[mint] = w
	}
	return w
}

func shardIndex(key string) int {
	h := uint32(2166136261)
	for i := 0; i < len(key); i++ {
		h ^= uint32(key[i])
		h *= 16777619
	}
	return int(h % shardCount)
}

// MarkBlacklisted flags a mint as blacklisted at the feed level. An open
// position on it exits on the next trade event.
func (e *Engine) MarkBlacklisted(mint string, source int) {
	w := e.watcher(mint)
	w.mu.Lock()
	w.Book.BlackSource = source
	w.mu.Unlock()
}

// Process runs one trade event through its mint's state machine. Events for
// the same mint must be applied in feed order; the per-mint lease serializes
// concurrent callers.
func (e *Engine) Process(ev event.TradeEvent) {
	side := "sell"
	if ev.IsBuy() {
		side = "buy"
	}
	metrics.EventsTotal.WithLabelValues(side).Inc()

	w := e.watcher(ev.Mint)
	w.mu.Lock()
	defer w.mu.Unlock()

	w.Book.Push(ev.Metric())

	switch w.Status {
	case StatusSeeking:
		e.seek(w, ev)
	case StatusConfirmed:
		e.confirm(w, ev)
	case StatusOpening:
		e.awaitFill(w, ev)
	case StatusOpen:
		e.manage(w, ev)
	case StatusClosing:
		e.awaitClose(w, ev)
	case StatusClosed:
	}
}

// seek evaluates the entry rules against the freshly pushed window.
func (e *Engine) seek(w *Watcher, ev event.TradeEvent) {
	feat := feature.Extract(ev, w.Book.Trades(), w.Book.CreatedAt, &e.cfg.Entry)
	dec := rules.EvaluateEntry(&e.cfg.Entry, feat, ev, w.Book.Trades())
	if !dec.Accept {
		if dec.Rule != "" {
			metrics.RejectsTotal.WithLabelValues(dec.Rule).Inc()
		}
		return
	}
	metrics.EntriesTotal.Inc()

	side := "sell"
	if ev.IsBuy() {
		side = "buy"
	}
	w.Group = side + "-" + ev.Mint
	w.Simulated = e.cfg.Engine.ForceSimulated || e.history.ShouldSimulate(w.Group)

	w.Stake = e.cfg.Engine.LiveStake
	if w.Simulated {
		w.Stake = e.cfg.Engine.Stake
	}
	feat.Stake = w.Stake
	if e.payouts != nil {
		e.payouts.Match(feat)
	}
	w.EntrySnap = feat

	// Price extremes just before the triggering trade anchor the stop-loss.
	preMin, preMax, ok := w.Book.MinMaxPrice(1, e.cfg.Exit.PreEntryLookback)
	if ok {
		w.Pos.PreEntryMin = preMin
		w.Pos.PreEntryMax = preMax
	}

	w.AnchorTs = ev.Ts
	w.AnchorPrice = ev.Price
	w.AnchorPool = ev.PoolSol
	w.MaxHoldMs = e.cfg.Engine.MaxHoldMs
	w.Status = StatusConfirmed

	e.log.Info().Str("mint", w.Mint).Bool("simulated", w.Simulated).
		Object("features", feat).Msg("entry accepted")
}

// confirm handles a pending entry. Simulated entries settle on a counterparty
// trade or the grace timeout; live entries need an admission slot and a
// successfully queued buy intent.
func (e *Engine) confirm(w *Watcher, ev event.TradeEvent) {
	if w.Simulated {
		if e.counterparties[ev.Trader] || ev.Ts >= w.AnchorTs+e.cfg.Engine.ConfirmGraceMs {
			e.open(w, ev)
			return
		}
		// A confirming trade outside the settle band re-anchors the
		// simulated entry to the latest market state.
		if ev.Ts < w.AnchorTs+e.cfg.Engine.SettleBandLowMs || ev.Ts > w.AnchorTs+e.cfg.Engine.SettleBandHighMs {
			w.AnchorPrice = ev.Price
			w.AnchorPool = ev.PoolSol
		}
		return
	}

	if !e.admission.TryAcquire() {
		w.Status = StatusClosed
		e.log.Warn().Str("mint", w.Mint).Int("held", e.admission.Held()).Msg("admission denied, entry abandoned")
		return
	}
	sent := e.dispatch.TryBuy(execution.BuyIntent{
		Mint:      w.Mint,
		Units:     w.Stake,
		RefTs:     w.AnchorTs,
		MaxHoldMs: w.MaxHoldMs,
	})
	if !sent {
		// Dispatch failed: give the slot back and retry on the next event.
		e.admission.Release()
		return
	}
	metrics.OpenPositions.Set(float64(e.admission.Held()))
	w.Status = StatusOpening
}

// awaitFill waits for a live buy to settle: a counterparty trade confirms the
// fill, and the grace timeout assumes it.
func (e *Engine) awaitFill(w *Watcher, ev event.TradeEvent) {
	if e.counterparties[ev.Trader] || ev.Ts >= w.AnchorTs+e.cfg.Engine.ConfirmGraceMs {
		e.open(w, ev)
	}
}

// open transitions to the held state with the confirming trade as baseline.
func (e *Engine) open(w *Watcher, ev event.TradeEvent) {
	w.Pos.EntryPool = ev.PoolSol
	w.Pos.Rebase(ev.Price, ev.Ts)
	w.Pos.TradeCount = 0
	w.Status = StatusOpen

	e.recorder.Record(paper.Record{
		Kind:      "entry",
		Mint:      w.Mint,
		Ts:        ev.Ts,
		Price:     ev.Price,
		PoolSol:   ev.PoolSol,
		Simulated: w.Simulated,
		Stake:     w.Stake,
		Group:     snapGroup(w.EntrySnap),
		Payout:    snapPayout(w.EntrySnap),
	})
	e.log.Info().Str("mint", w.Mint).Float64("price", ev.Price).Float64("pool", ev.PoolSol).
		Bool("simulated", w.Simulated).Msg("position open")
}

// manage runs the exit rules while the position is held.
func (e *Engine) manage(w *Watcher, ev event.TradeEvent) {
	d := rules.EvaluateExit(&e.cfg.Exit, &w.Pos, ev, w.Book.Trades(), w.Book.Prices(), w.Book.BlackSource)
	// The dispatch deadline only binds live positions; simulated ones hold
	// until a sell rule (including the fixed holding-time stop) fires.
	if !d.Exit && !w.Simulated && w.Pos.TradeCount > 0 && w.Pos.HoldMs(ev.Ts) >= w.MaxHoldMs {
		d.Exit = true
		d.Reasons = append(d.Reasons, fmt.Sprintf("max hold (%dms)", w.MaxHoldMs))
	}
	if !d.Exit {
		return
	}
	metrics.ExitsTotal.WithLabelValues(reasonKey(d.Reasons[0])).Inc()
	w.Pos.SellTime = ev.Ts

	if w.Simulated {
		e.close(w, ev, d.Reason())
		return
	}
	sent := e.dispatch.TrySell(execution.SellIntent{
		Mint:     w.Mint,
		Fraction: e.cfg.Engine.SellFraction,
		RefTs:    ev.Ts,
		Reason:   reasonKey(d.Reasons[0]),
	})
	if !sent {
		// Keep holding; the rules re-fire on the next event.
		w.Pos.SellTime = 0
		return
	}
	e.log.Info().Str("mint", w.Mint).Str("reason", d.Reason()).
		Float64("rate_pct", w.Pos.RatePct).Msg("exit dispatched")
	w.Status = StatusClosing
}

// awaitClose waits for a dispatched sell to settle: our counterparty trade, a
// drained pool, or the close timeout.
func (e *Engine) awaitClose(w *Watcher, ev event.TradeEvent) {
	// Extremes, rate, and counters keep updating until the sell settles; the
	// decision itself only gates dispatch from the open state.
	rules.EvaluateExit(&e.cfg.Exit, &w.Pos, ev, w.Book.Trades(), w.Book.Prices(), w.Book.BlackSource)
	if e.counterparties[ev.Trader] ||
		ev.PoolSol < e.cfg.Engine.CloseLiquidity ||
		ev.Ts >= w.Pos.SellTime+e.cfg.Engine.CloseTimeoutMs {
		e.close(w, ev, "settled")
	}
}

// close finalizes the position: outcome history, admission slot, recorder.
func (e *Engine) close(w *Watcher, ev event.TradeEvent, reason string) {
	w.Status = StatusClosed
	e.history.Record(w.Group, w.Pos.MaxRatePct)
	if !w.Simulated {
		e.admission.Release()
		metrics.OpenPositions.Set(float64(e.admission.Held()))
	}
	e.recorder.Record(paper.Record{
		Kind:      "exit",
		Mint:      w.Mint,
		Ts:        ev.Ts,
		Price:     ev.Price,
		PoolSol:   ev.PoolSol,
		Simulated: w.Simulated,
		Reason:    reason,
		RatePct:   w.Pos.RatePct,
	})
	e.log.Info().Str("mint", w.Mint).Str("reason", reason).
		Float64("rate_pct", w.Pos.RatePct).Float64("max_rate_pct", w.Pos.MaxRatePct).
		Msg("position closed")
}

// reasonKey strips the per-event detail from a reason string so metric labels
// stay low-cardinality.
func reasonKey(reason string) string {
	if i := strings.Index(reason, " ("); i > 0 {
		return reason[:i]
	}
	return reason
}

func snapGroup(s *feature.Snapshot) *int {
	if s == nil {
		return nil
	}
	return s.MatchedGroup
}

func snapPayout(s *feature.Snapshot) *float64 {
	if s == nil {
		return nil
	}
	return s.MatchedPayout
}
