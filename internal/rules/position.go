package rules

// Position is the mutable trading state for one open position. The exit
// evaluator updates it on every trade event before any rule is checked, so the
// extremes stay accurate even when no exit fires.
type Position struct {
	EntryPrice float64
	EntryTime  int64 // ms
	EntryPool  float64

	// Price extremes of the lookback immediately preceding the entry,
	// captured once at entry time. The stop-loss floor reads PreEntryMin.
	PreEntryMin float64
	PreEntryMax float64

	// MaxPrice never decreases and MinPrice never increases while the
	// position is open.
	MaxPrice float64
	MinPrice float64

	RatePct       float64 // current move vs entry, percent
	MaxRatePct    float64
	MinProfitRate float64 // lowest profit fraction seen since entry

	TradeCount int
	BigBuys    int
	SmallBuys  int
	BigSells   int
	SmallSells int

	SellTime int64 // ms of our close decision, 0 until then
}

// ProfitRate returns the current profit fraction vs the entry price.
func (p *Position) ProfitRate(price float64) float64 {
	if p.EntryPrice <= 0 {
		return 0
	}
	return (price - p.EntryPrice) / p.EntryPrice
}

// MaxProfitRate returns the peak profit fraction vs the entry price.
func (p *Position) MaxProfitRate() float64 {
	if p.EntryPrice <= 0 {
		return 0
	}
	return (p.MaxPrice - p.EntryPrice) / p.EntryPrice
}

// HoldMs returns the holding time at the given timestamp.
func (p *Position) HoldMs(now int64) int64 {
	d := now - p.EntryTime
	if d < 0 {
		return 0
	}
	return d
}

// Rebase resets the baseline to the given trade. Used on the first trade seen
// after a fill and when a pending simulated entry re-anchors its entry price.
func (p *Position) Rebase(price float64, ts int64) {
	p.EntryPrice = price
	p.EntryTime = ts
	p.RatePct = 0
	p.MaxRatePct = 0
	p.MaxPrice = price
	p.MinPrice = price
}
