// Package exchange hosts the trade-event sources feeding the engine.
package exchange

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"pumpwatch/internal/event"
)

const (
	// ProviderStub emits deterministic synthetic trades (tests/offline work).
	ProviderStub = "stub"
	// ProviderWS streams live trades from a JSON websocket endpoint.
	ProviderWS = "ws"
)

// Feed is a pluggable trade-event stream.
type Feed struct {
	provider string
	url      string
	mints    []string
	log      zerolog.Logger
	mu       sync.RWMutex
}

// NewFeed constructs a feed backed by the requested provider.
func NewFeed(provider, url string, mints []string, log zerolog.Logger) *Feed {
	if provider == "" {
		provider = ProviderStub
	}
	f := &Feed{
		provider: strings.ToLower(provider),
		url:      url,
		log:      log,
	}
	f.SetMints(mints)
	return f
}

// SetMints replaces the tracked mint list (deduplicated, sorted for
// determinism).
func (f *Feed) SetMints(mints []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	unique := make(map[string]struct{}, len(mints))
	for _, m := range mints {
		m = strings.TrimSpace(m)
		if m == "" {
			continue
		}
		unique[m] = struct{}{}
	}
	f.mints = f.mints[:0]
	for m := range unique {
		f.mints = append(f.mints, m)
	}
	sort.Strings(f.mints)
}

func (f *Feed) snapshotMints() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]string, len(f.mints))
	copy(out, f.mints)
	return out
}

// Run pushes trade events onto the channel until the context is canceled.
func (f *Feed) Run(ctx context.Context, out chan<- event.TradeEvent) error {
	switch f.provider {
	case ProviderWS:
		return f.runWS(ctx, out)
	case ProviderStub:
		return f.runStub(ctx, out)
	default:
		return fmt.Errorf("unknown feed provider %q", f.provider)
	}
}

func (f *Feed) runStub(ctx context.Context, out chan<- event.TradeEvent) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	pool := 150.0
	seq := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ts := <-ticker.C:
			seq++
			side := event.Sell
			if seq%3 == 0 {
				side = event.Buy
			}
			pool += float64(side) * 0.5
			for _, m := range f.snapshotMints() {
				ev := event.TradeEvent{
					Mint:        m,
					Trader:      fmt.Sprintf("stub-%d", seq%7),
					Side:        side,
					Amount:      5 + float64(seq%5),
					TokenAmount: 1e6,
					Price:       pool * 1e-9,
					PoolSol:     pool,
					Ts:          ts.UnixMilli(),
					BlockTime:   ts.Unix(),
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		}
	}
}
