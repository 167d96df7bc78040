package config

import (
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

func TestLoadOverridesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join("testdata", "config.yaml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.App.Env != "test" {
		t.Fatalf("expected env test, got %s", cfg.App.Env)
	}
	if cfg.Engine.MaxOpenPositions != 5 {
		t.Fatalf("expected 5 max open positions, got %d", cfg.Engine.MaxOpenPositions)
	}
	if cfg.Entry.PoolRange.Min != 50 || cfg.Entry.PoolRange.Max != 500 {
		t.Fatalf("pool range not overridden: %+v", cfg.Entry.PoolRange)
	}
	if cfg.Entry.GapMode != Debug {
		t.Fatalf("expected gap mode debug, got %s", cfg.Entry.GapMode)
	}
	if cfg.Exit.PoolTakeProfit != 250 {
		t.Fatalf("expected pool take profit 250, got %v", cfg.Exit.PoolTakeProfit)
	}
	if cfg.Exit.SpikeEnabled {
		t.Fatalf("expected spike rule disabled")
	}

	// Keys absent from the file keep their defaults.
	if cfg.Entry.AmountRange.Min != 4.5 || cfg.Entry.AmountRange.Max != 12 {
		t.Fatalf("amount range should keep defaults: %+v", cfg.Entry.AmountRange)
	}
	if cfg.Exit.MaxHoldS != 3000 {
		t.Fatalf("max hold should keep default, got %d", cfg.Exit.MaxHoldS)
	}
	if cfg.Engine.ConfirmGraceMs != 100 {
		t.Fatalf("confirm grace should keep default, got %d", cfg.Engine.ConfirmGraceMs)
	}
}

func TestLoadOrDefaultFallsBack(t *testing.T) {
	cfg := LoadOrDefault(filepath.Join("testdata", "no-such-file.yaml"), zerolog.Nop())
	if cfg == nil {
		t.Fatalf("expected defaults, got nil")
	}
	if cfg.Engine.MaxOpenPositions != 20 {
		t.Fatalf("expected default cap 20, got %d", cfg.Engine.MaxOpenPositions)
	}
	if cfg.Entry.Side != SideSell {
		t.Fatalf("expected default side sell, got %s", cfg.Entry.Side)
	}
	if cfg.Exit.PreEntryLookback != 10 {
		t.Fatalf("expected 10 pre-entry prices for the stop-loss floor, got %d", cfg.Exit.PreEntryLookback)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	orig := Default()
	orig.App.Env = "roundtrip"
	orig.Entry.GapRange.Max = 1234

	if err := Save(path, orig); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if loaded.App.Env != "roundtrip" {
		t.Fatalf("env not round-tripped: %s", loaded.App.Env)
	}
	if loaded.Entry.GapRange.Max != 1234 {
		t.Fatalf("gap range not round-tripped: %v", loaded.Entry.GapRange.Max)
	}
}

func TestModeSemantics(t *testing.T) {
	if Off.Evaluated() || Off.Filters() {
		t.Fatalf("off mode must not evaluate or filter")
	}
	if !Debug.Evaluated() || Debug.Filters() {
		t.Fatalf("debug mode must evaluate without filtering")
	}
	if !Online.Evaluated() || !Online.Filters() {
		t.Fatalf("online mode must evaluate and filter")
	}
}
