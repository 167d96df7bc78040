// Package event standardizes the trade payloads shared between the feed and the decision layers.
package event

// Trade sides as carried on the feed. The amount field is always non-negative;
// the side flag determines the sign when summing flows.
const (
	Buy  = 1
	Sell = -1
)

// TradeEvent models a single observed swap on a watched mint.
type TradeEvent struct {
	Mint        string  `json:"mint"`
	Trader      string  `json:"trader"`
	Side        int     `json:"side"`         // +1 buy, -1 sell
	Amount      float64 `json:"amount"`       // reference-asset size, >= 0
	TokenAmount float64 `json:"token_amount"` // token units moved
	Price       float64 `json:"price"`
	PoolSol     float64 `json:"pool_sol"` // post-trade pool reserve, the market-cap proxy
	Ts          int64   `json:"ts"`       // event timestamp, ms
	BlockTime   int64   `json:"block_time"`
	PriorityFee float64 `json:"priority_fee"`
}

// IsBuy reports whether the aggressor bought the token.
func (e TradeEvent) IsBuy() bool { return e.Side >= 0 }

// SignedAmount returns the amount with buy positive and sell negative.
func (e TradeEvent) SignedAmount() float64 {
	if e.IsBuy() {
		return e.Amount
	}
	return -e.Amount
}

// TradeMetric is the lightweight per-trade record retained in the recent
// window. Kept small: the window holds up to a couple hundred of these per mint.
type TradeMetric struct {
	Amount  float64 // always >= 0
	Side    int
	Ts      int64
	Price   float64
	PoolSol float64
}

// IsBuy reports whether the recorded trade was a buy.
func (m TradeMetric) IsBuy() bool { return m.Side >= 0 }

// SignedAmount returns the amount with buy positive and sell negative.
func (m TradeMetric) SignedAmount() float64 {
	if m.IsBuy() {
		return m.Amount
	}
	return -m.Amount
}

// Metric converts a full event into its window record.
func (e TradeEvent) Metric() TradeMetric {
	return TradeMetric{Amount: e.Amount, Side: e.Side, Ts: e.Ts, Price: e.Price, PoolSol: e.PoolSol}
}
