package exchange

import (
	"context"
	"fmt"
	"math"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"pumpwatch/internal/event"
)

// wireTrade is the feed's JSON trade frame.
type wireTrade struct {
	Mint        string  `json:"mint"`
	User        string  `json:"user"`
	IsBuy       bool    `json:"is_buy"`
	SolAmount   float64 `json:"sol_amount"`
	TokenAmount float64 `json:"token_amount"`
	Price       float64 `json:"price"`
	PostSol     float64 `json:"post_sol"`
	MilTime     int64   `json:"mil_time"`
	BlockTime   int64   `json:"block_time"`
}

func (f *Feed) runWS(ctx context.Context, out chan<- event.TradeEvent) error {
	if f.url == "" {
		return fmt.Errorf("ws feed requires a url")
	}

	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := f.consumeWS(ctx, out); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			f.log.Warn().Err(err).Msg("ws feed disconnected, retrying")
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
			backoff = time.Duration(math.Min(float64(maxBackoff), float64(backoff)*1.8))
			continue
		}
		return nil
	}
}

func (f *Feed) consumeWS(ctx context.Context, out chan<- event.TradeEvent) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, f.url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	f.log.Info().Str("provider", ProviderWS).Str("url", f.url).Msg("connected trade feed")

	conn.SetReadLimit(1 << 20)
	conn.SetReadDeadline(time.Now().Add(30 * time.Second))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(30 * time.Second))
		return nil
	})

	pingCtx, pingCancel := context.WithCancel(ctx)
	defer pingCancel()
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					f.log.Warn().Err(err).Msg("ws ping failed")
					return
				}
			case <-pingCtx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		_, message, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var frame wireTrade
		if err := json.Unmarshal(message, &frame); err != nil {
			f.log.Warn().Err(err).Msg("failed to decode trade frame")
			continue
		}
		if frame.Mint == "" {
			continue
		}

		side := event.Sell
		if frame.IsBuy {
			side = event.Buy
		}
		ev := event.TradeEvent{
			Mint:        frame.Mint,
			Trader:      frame.User,
			Side:        side,
			Amount:      frame.SolAmount,
			TokenAmount: frame.TokenAmount,
			Price:       frame.Price,
			PoolSol:     frame.PostSol,
			Ts:          frame.MilTime,
			BlockTime:   frame.BlockTime,
		}
		select {
		case out <- ev:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
