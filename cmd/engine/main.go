package main

import (
	"context"
	"flag"
	"os"
	ossignal "os/signal"
	"syscall"

	"pumpwatch/internal/config"
	"pumpwatch/internal/event"
	"pumpwatch/internal/exchange"
	"pumpwatch/internal/execution"
	"pumpwatch/internal/metrics"
	"pumpwatch/internal/outcome"
	"pumpwatch/internal/paper"
	"pumpwatch/internal/util"
	"pumpwatch/internal/watch"

	dexsolana "pumpwatch/internal/dex/solana"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "config.yaml", "path to YAML config")
	flag.Parse()

	log := util.NewLogger("info")
	cfg := config.LoadOrDefault(cfgPath, log)
	log = util.NewLogger(cfg.App.LogLevel)

	if err := dexsolana.ValidateCounterparties(cfg.Wallet.Counterparties); err != nil {
		log.Fatal().Err(err).Msg("invalid counterparty list")
	}
	if _, err := dexsolana.LoadPrivateKeyFromEnv(cfg.Wallet.KeyEnv); err != nil {
		log.Warn().Err(err).Msg("no wallet key, live entries will run simulated")
		cfg.Engine.ForceSimulated = true
	}

	_ = metrics.Serve(cfg.App.MetricsAddr)
	log.Info().Str("addr", cfg.App.MetricsAddr).Msg("metrics up")

	ctx, cancel := ossignal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var payouts *outcome.Table
	if cfg.Engine.PayoutTablePath != "" {
		t, err := outcome.LoadTable(cfg.Engine.PayoutTablePath)
		if err != nil {
			log.Error().Err(err).Str("path", cfg.Engine.PayoutTablePath).Msg("payout table unavailable")
		} else {
			payouts = t
			log.Info().Int("groups", len(t.Groups)).Msg("payout table loaded")
		}
	}

	var sink paper.Sink = paper.NopRecorder{}
	if cfg.Engine.SnapshotPath != "" {
		rec, err := paper.NewJSONLRecorder(cfg.Engine.SnapshotPath)
		if err != nil {
			log.Error().Err(err).Msg("snapshot recorder unavailable")
		} else {
			defer rec.Close()
			sink = rec
		}
	}

	dispatch := execution.NewDispatcher(1024, log)
	engine := watch.NewEngine(cfg, dispatch, outcome.NewHistory(), payouts, sink, log)

	go execution.Run(ctx, dispatch, execution.NewLogSubmitter(log), log)

	feed := exchange.NewFeed(cfg.Feed.Provider, cfg.Feed.URL, cfg.Feed.Mints, log)
	events := make(chan event.TradeEvent, 4096)
	go func() {
		if err := feed.Run(ctx, events); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("feed stopped")
			cancel()
		}
	}()

	log.Info().Str("provider", cfg.Feed.Provider).Int("mints", len(cfg.Feed.Mints)).Msg("engine started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("shutting down")
			return
		case ev := <-events:
			engine.Process(ev)
		}
	}
}
