// Replay runs the decision engine over a recorded JSONL trade stream, one
// event per line, and reports the resulting decisions. All entries run
// simulated: nothing is dispatched.
package main

import (
	"bufio"
	"flag"
	"os"

	json "github.com/goccy/go-json"

	"pumpwatch/internal/config"
	"pumpwatch/internal/event"
	"pumpwatch/internal/execution"
	"pumpwatch/internal/outcome"
	"pumpwatch/internal/paper"
	"pumpwatch/internal/util"
	"pumpwatch/internal/watch"
)

func main() {
	var cfgPath, eventsPath, outPath string
	flag.StringVar(&cfgPath, "config", "config.yaml", "path to YAML config")
	flag.StringVar(&eventsPath, "events", "", "JSONL trade events to replay")
	flag.StringVar(&outPath, "out", "", "JSONL decision output (optional)")
	flag.Parse()

	log := util.NewLogger("info")
	if eventsPath == "" {
		log.Fatal().Msg("-events is required")
	}

	cfg := config.LoadOrDefault(cfgPath, log)
	cfg.Engine.ForceSimulated = true

	var sink paper.Sink = paper.NopRecorder{}
	if outPath != "" {
		rec, err := paper.NewJSONLRecorder(outPath)
		if err != nil {
			log.Fatal().Err(err).Msg("open output")
		}
		defer rec.Close()
		sink = rec
	}

	var payouts *outcome.Table
	if cfg.Engine.PayoutTablePath != "" {
		if t, err := outcome.LoadTable(cfg.Engine.PayoutTablePath); err == nil {
			payouts = t
		} else {
			log.Warn().Err(err).Msg("payout table unavailable")
		}
	}

	dispatch := execution.NewDispatcher(1024, log)
	engine := watch.NewEngine(cfg, dispatch, outcome.NewHistory(), payouts, sink, log)

	file, err := os.Open(eventsPath)
	if err != nil {
		log.Fatal().Err(err).Msg("open events")
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 1<<20), 1<<20)

	var total, bad int
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var ev event.TradeEvent
		if err := json.Unmarshal(line, &ev); err != nil {
			bad++
			continue
		}
		engine.Process(ev)
		total++
	}
	if err := scanner.Err(); err != nil {
		log.Fatal().Err(err).Msg("read events")
	}
	log.Info().Int("events", total).Int("bad_lines", bad).Msg("replay done")
}
