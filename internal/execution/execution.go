// Package execution carries order intents from the decision engine to the
// component that submits them.
package execution

import (
	"context"

	"github.com/rs/zerolog"

	"pumpwatch/internal/metrics"
)

// BuyIntent asks for an entry on a mint. RefTs is the timestamp of the trade
// event that triggered the decision, used down-stream to match fills.
type BuyIntent struct {
	Mint      string  `json:"mint"`
	Units     float64 `json:"units"` // reference-asset size
	RefTs     int64   `json:"ref_ts"`
	MaxHoldMs int64   `json:"max_hold_ms"`
}

// SellIntent asks for a partial or full unwind of an open position.
type SellIntent struct {
	Mint     string  `json:"mint"`
	Fraction float64 `json:"fraction"` // of the held position, (0, 1]
	RefTs    int64   `json:"ref_ts"`
	Reason   string  `json:"reason"`
}

// Dispatcher hands intents to the submitter over bounded queues. Sends never
// block: the engine must keep consuming the feed even when the submitter
// stalls, so a full queue drops the intent and reports false.
type Dispatcher struct {
	buys  chan BuyIntent
	sells chan SellIntent
	log   zerolog.Logger
}

// NewDispatcher builds a dispatcher with the given queue depth per side.
func NewDispatcher(depth int, log zerolog.Logger) *Dispatcher {
	if depth <= 0 {
		depth = 64
	}
	return &Dispatcher{
		buys:  make(chan BuyIntent, depth),
		sells: make(chan SellIntent, depth),
		log:   log,
	}
}

// TryBuy enqueues a buy intent. Callers must only advance their state machine
// when it returns true.
func (d *Dispatcher) TryBuy(in BuyIntent) bool {
	select {
	case d.buys <- in:
		metrics.OrdersTotal.WithLabelValues("buy").Inc()
		d.log.Info().Str("mint", in.Mint).Float64("units", in.Units).Int64("ref_ts", in.RefTs).Msg("buy intent queued")
		return true
	default:
		metrics.OrdersDropped.WithLabelValues("buy").Inc()
		d.log.Warn().Str("mint", in.Mint).Msg("buy queue full, intent dropped")
		return false
	}
}

// TrySell enqueues a sell intent, same contract as TryBuy.
func (d *Dispatcher) TrySell(in SellIntent) bool {
	select {
	case d.sells <- in:
		metrics.OrdersTotal.WithLabelValues("sell").Inc()
		d.log.Info().Str("mint", in.Mint).Float64("fraction", in.Fraction).Str("reason", in.Reason).Msg("sell intent queued")
		return true
	default:
		metrics.OrdersDropped.WithLabelValues("sell").Inc()
		d.log.Warn().Str("mint", in.Mint).Msg("sell queue full, intent dropped")
		return false
	}
}

// Buys exposes the buy queue to the submitter.
func (d *Dispatcher) Buys() <-chan BuyIntent { return d.buys }

// Sells exposes the sell queue to the submitter.
func (d *Dispatcher) Sells() <-chan SellIntent { return d.sells }

// Submitter consumes intents from a dispatcher.
type Submitter interface {
	SubmitBuy(BuyIntent) error
	SubmitSell(SellIntent) error
}

// LogSubmitter records intents without touching a venue. Used in replay and
// paper runs.
type LogSubmitter struct{ log zerolog.Logger }

// NewLogSubmitter wraps a logger as a Submitter.
func NewLogSubmitter(log zerolog.Logger) *LogSubmitter { return &LogSubmitter{log: log} }

// SubmitBuy logs the buy request.
func (s *LogSubmitter) SubmitBuy(in BuyIntent) error {
	s.log.Info().Str("mint", in.Mint).Float64("units", in.Units).Msg("submit buy (paper)")
	return nil
}

// SubmitSell logs the sell request.
func (s *LogSubmitter) SubmitSell(in SellIntent) error {
	s.log.Info().Str("mint", in.Mint).Float64("fraction", in.Fraction).Str("reason", in.Reason).Msg("submit sell (paper)")
	return nil
}

// Run drains the dispatcher into the submitter until the context is canceled.
func Run(ctx context.Context, d *Dispatcher, sub Submitter, log zerolog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case in := <-d.Buys():
			if err := sub.SubmitBuy(in); err != nil {
				log.Error().Err(err).Str("mint", in.Mint).Msg("buy submit failed")
			}
		case in := <-d.Sells():
			if err := sub.SubmitSell(in); err != nil {
				log.Error().Err(err).Str("mint", in.Mint).Msg("sell submit failed")
			}
		}
	}
}
