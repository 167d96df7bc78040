// Package config exposes strongly typed application configuration structs loaded from YAML.
package config

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// Mode selects how a single entry rule participates in evaluation.
type Mode string

const (
	// Off disables a rule entirely; it is never evaluated.
	Off Mode = "off"
	// Online evaluates a rule and rejects the entry on failure.
	Online Mode = "online"
	// Debug evaluates a rule and records its value but never rejects.
	Debug Mode = "debug"
)

// Filters reports whether the mode causes failing values to reject.
func (m Mode) Filters() bool { return m == Online }

// Evaluated reports whether the rule's value is computed at all.
func (m Mode) Evaluated() bool { return m == Online || m == Debug }

// SideFilter restricts which trade side may trigger an entry.
type SideFilter string

const (
	SideBuy  SideFilter = "buy"
	SideSell SideFilter = "sell"
	SideBoth SideFilter = "both"
)

// Range is an inclusive [Min, Max] bound on a rule value.
type Range struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

// Contains reports whether v falls inside the bound.
func (r Range) Contains(v float64) bool { return v >= r.Min && v <= r.Max }

// App captures process-wide runtime settings such as name, environment, metrics, and logging levels.
type App struct {
	Name        string `yaml:"name"`
	Env         string `yaml:"env"`
	MetricsAddr string `yaml:"metrics_addr"`
	LogLevel    string `yaml:"log_level"`
}

// Feed configures the trade-event source.
type Feed struct {
	Provider string   `yaml:"provider"` // "stub" or "ws"
	URL      string   `yaml:"url"`
	Mints    []string `yaml:"mints"`
}

// Wallet holds key material locations and the counterparty allow-list used for
// fill confirmation matching.
type Wallet struct {
	KeyEnv         string   `yaml:"key_env"`
	Counterparties []string `yaml:"counterparties"` // base58 pubkeys whose trades confirm our orders
}

// Engine groups the lifecycle knobs shared by all watchers.
type Engine struct {
	MaxOpenPositions int     `yaml:"max_open_positions"`
	Stake            float64 `yaml:"stake"`      // reference-asset size per simulated entry
	LiveStake        float64 `yaml:"live_stake"` // size actually dispatched for live entries
	MaxHoldMs        int64   `yaml:"max_hold_ms"`
	ConfirmGraceMs   int64   `yaml:"confirm_grace_ms"`   // entry confirmation timeout
	SettleBandLowMs  int64   `yaml:"settle_band_low_ms"` // simulated entries re-baseline outside [low, high]
	SettleBandHighMs int64   `yaml:"settle_band_high_ms"`
	CloseTimeoutMs   int64   `yaml:"close_timeout_ms"`
	CloseLiquidity   float64 `yaml:"close_liquidity"` // pool reserve below which a close is assumed filled
	SellFraction     float64 `yaml:"sell_fraction"`   // fraction of the position unwound per sell intent
	ForceSimulated   bool    `yaml:"force_simulated"` // treat every confirmed entry as simulated
	PayoutTablePath  string  `yaml:"payout_table_path"`
	SnapshotPath     string  `yaml:"snapshot_path"`
}

// EntryRules is the full entry-side rule catalogue. Every tunable rule carries
// a Mode; the baseline filters (creation floor, pool range, amount range, side
// filter, filtered-trade sufficiency) apply regardless of mode.
type EntryRules struct {
	CreationMode      Mode       `yaml:"creation_mode"`
	CreationFloorMin  int64      `yaml:"creation_floor_min"` // minutes, always enforced
	CreationRange     Range      `yaml:"creation_range"`     // minutes, Online only
	PoolRange         Range      `yaml:"pool_range"`         // always enforced
	AmountRange       Range      `yaml:"amount_range"`       // always enforced
	GapMode           Mode       `yaml:"gap_mode"`
	GapRange          Range      `yaml:"gap_range"` // ms since previous trade
	FilteredMinAmount float64    `yaml:"filtered_min_amount"`
	FilteredCount     int        `yaml:"filtered_count"` // required qualifying trades, always enforced
	FilteredSumRange  Range      `yaml:"filtered_sum_range"`
	Side              SideFilter `yaml:"side"` // always enforced

	LargestMode      Mode    `yaml:"largest_mode"`
	LargestMinAmount float64 `yaml:"largest_min_amount"`
	LargestLookback  int     `yaml:"largest_lookback"`

	VolLookback   int     `yaml:"vol_lookback"`
	VolMinAmount  float64 `yaml:"vol_min_amount"`
	PriceCVMode   Mode    `yaml:"price_cv_mode"`
	PriceCVRange  Range   `yaml:"price_cv_range"`
	GapCVMode     Mode    `yaml:"gap_cv_mode"`
	GapCVRange    Range   `yaml:"gap_cv_range"`
	AmountCVMode  Mode    `yaml:"amount_cv_mode"`
	AmountCVRange Range   `yaml:"amount_cv_range"`

	PriceRatioMode     Mode  `yaml:"price_ratio_mode"`
	PriceRatioLookback int   `yaml:"price_ratio_lookback"`
	PriceRatioRange    Range `yaml:"price_ratio_range"` // percent above window minimum

	BuyCountMode      Mode `yaml:"buy_count_mode"`
	BuyCountLookback  int  `yaml:"buy_count_lookback"`
	BuyCountMin       int  `yaml:"buy_count_min"`
	SellCountMode     Mode `yaml:"sell_count_mode"`
	SellCountLookback int  `yaml:"sell_count_lookback"`
	SellCountMin      int  `yaml:"sell_count_min"`

	LargeRatioMode     Mode    `yaml:"large_ratio_mode"`
	LargeRatioLookback int     `yaml:"large_ratio_lookback"`
	LargeThreshold     float64 `yaml:"large_threshold"`
	LargeRatioRange    Range   `yaml:"large_ratio_range"`
	SmallRatioMode     Mode    `yaml:"small_ratio_mode"`
	SmallRatioLookback int     `yaml:"small_ratio_lookback"`
	SmallThreshold     float64 `yaml:"small_threshold"`
	SmallRatioRange    Range   `yaml:"small_ratio_range"`

	ConsecBuyMode       Mode    `yaml:"consec_buy_mode"`
	ConsecBuyThreshold  float64 `yaml:"consec_buy_threshold"`
	ConsecBuyRange      Range   `yaml:"consec_buy_range"`
	ConsecSellMode      Mode    `yaml:"consec_sell_mode"`
	ConsecSellThreshold float64 `yaml:"consec_sell_threshold"`
	ConsecSellRange     Range   `yaml:"consec_sell_range"`

	RecentCountMode    Mode  `yaml:"recent_count_mode"`
	RecentCountWindowS int64 `yaml:"recent_count_window_s"`
	RecentCountRange   Range `yaml:"recent_count_range"`

	AvgGapMode     Mode  `yaml:"avg_gap_mode"`
	AvgGapLookback int   `yaml:"avg_gap_lookback"`
	AvgGapRange    Range `yaml:"avg_gap_range"` // ms

	WindowSumMode      Mode    `yaml:"window_sum_mode"`
	WindowSumMs        int64   `yaml:"window_sum_ms"`
	WindowSumMinAmount float64 `yaml:"window_sum_min_amount"`
	WindowSumRange     Range   `yaml:"window_sum_range"`

	WindowCountMode      Mode    `yaml:"window_count_mode"`
	WindowCountMs        int64   `yaml:"window_count_ms"`
	WindowCountMinAmount float64 `yaml:"window_count_min_amount"`
	WindowBuyRange       Range   `yaml:"window_buy_range"`
	WindowSellRange      Range   `yaml:"window_sell_range"`
}

// ExitRules drives the sell-side evaluator. Unlike entry rules these are simple
// enable flags: any firing rule forces an exit.
type ExitRules struct {
	PoolTakeProfit    float64 `yaml:"pool_take_profit"` // pool reserve take-profit threshold
	ProfitTakeEnabled bool    `yaml:"profit_take_enabled"`
	ProfitTake        float64 `yaml:"profit_take"` // fraction, 0.9 = +90%
	LossFraction      float64 `yaml:"loss_fraction"`
	PreEntryLookback  int     `yaml:"pre_entry_lookback"` // prices before entry used for the stop-loss floor

	RetraceLowProfit  float64 `yaml:"retrace_low_profit"`
	RetraceHighProfit float64 `yaml:"retrace_high_profit"`
	HighProfitCutoff  float64 `yaml:"high_profit_cutoff"`
	RetraceMinTurns   int     `yaml:"retrace_min_turns"`
	TurnWindow        int     `yaml:"turn_window"`
	RetraceMinHoldMs  int64   `yaml:"retrace_min_hold_ms"`
	RetraceMinProfit  float64 `yaml:"retrace_min_profit"`

	PressureEnabled  bool    `yaml:"pressure_enabled"`
	PressureLookback int     `yaml:"pressure_lookback"`
	PressureSumFloor float64 `yaml:"pressure_sum_floor"`
	PressureAllSells bool    `yaml:"pressure_all_sells"`

	MaxHoldS int64 `yaml:"max_hold_s"`

	QuietEnabled   bool    `yaml:"quiet_enabled"`
	QuietWindowS   int64   `yaml:"quiet_window_s"`
	QuietMinAmount float64 `yaml:"quiet_min_amount"`

	SpikeEnabled    bool    `yaml:"spike_enabled"`
	SpikeLookbackMs int64   `yaml:"spike_lookback_ms"`
	SpikePct        float64 `yaml:"spike_pct"`

	ReboundEnabled    bool    `yaml:"rebound_enabled"`
	ReboundMinLossPct float64 `yaml:"rebound_min_loss_pct"`
	ReboundMinGainPct float64 `yaml:"rebound_min_gain_pct"`
	ReboundMinBuy     float64 `yaml:"rebound_min_buy"`

	ActiveSpikeEnabled   bool    `yaml:"active_spike_enabled"`
	ActiveSpikeWindowS   int64   `yaml:"active_spike_window_s"`
	ActiveSpikeMinTrades int     `yaml:"active_spike_min_trades"`
	ActiveSpikeLookback  int     `yaml:"active_spike_lookback"`
	ActiveSpikeRisePct   float64 `yaml:"active_spike_rise_pct"`

	QuietSpikeEnabled   bool    `yaml:"quiet_spike_enabled"`
	QuietSpikeWindowS   int64   `yaml:"quiet_spike_window_s"`
	QuietSpikeMaxTrades int     `yaml:"quiet_spike_max_trades"`
	QuietSpikeLookback  int     `yaml:"quiet_spike_lookback"`
	QuietSpikeRisePct   float64 `yaml:"quiet_spike_rise_pct"`
}

// Config collects every configuration leaf for easy marshaling from YAML.
type Config struct {
	App    App        `yaml:"app"`
	Feed   Feed       `yaml:"feed"`
	Wallet Wallet     `yaml:"wallet"`
	Engine Engine     `yaml:"engine"`
	Entry  EntryRules `yaml:"entry"`
	Exit   ExitRules  `yaml:"exit"`
}

// Default returns the built-in configuration used when no file is supplied or
// the file cannot be read. Thresholds follow the tuned production values.
func Default() *Config {
	return &Config{
		App: App{
			Name:        "pumpwatch",
			Env:         "dev",
			MetricsAddr: ":9100",
			LogLevel:    "info",
		},
		Feed:   Feed{Provider: "stub"},
		Wallet: Wallet{KeyEnv: "PUMPWATCH_WALLET_KEY"},
		Engine: Engine{
			MaxOpenPositions: 20,
			Stake:            0.2,
			LiveStake:        0.4,
			MaxHoldMs:        2 * 60 * 1000,
			ConfirmGraceMs:   100,
			SettleBandLowMs:  120,
			SettleBandHighMs: 1000,
			CloseTimeoutMs:   100,
			CloseLiquidity:   1.5,
			SellFraction:     0.2,
			SnapshotPath:     "data/snapshots.jsonl",
		},
		Entry: EntryRules{
			CreationMode:      Debug,
			CreationFloorMin:  0,
			CreationRange:     Range{0, 100},
			PoolRange:         Range{80, 250},
			AmountRange:       Range{4.5, 12},
			GapMode:           Online,
			GapRange:          Range{0, 800},
			FilteredMinAmount: 0.05,
			FilteredCount:     20,
			FilteredSumRange:  Range{-200, 150},
			Side:              SideSell,

			LargestMode:      Debug,
			LargestMinAmount: 0.05,
			LargestLookback:  15,

			VolLookback:   15,
			VolMinAmount:  0.1,
			PriceCVMode:   Debug,
			PriceCVRange:  Range{0, 1},
			GapCVMode:     Debug,
			GapCVRange:    Range{0.7, 5},
			AmountCVMode:  Debug,
			AmountCVRange: Range{0.2, 1},

			PriceRatioMode:     Debug,
			PriceRatioLookback: 10,
			PriceRatioRange:    Range{0, 3},

			BuyCountMode:      Debug,
			BuyCountLookback:  30,
			BuyCountMin:       15,
			SellCountMode:     Debug,
			SellCountLookback: 25,
			SellCountMin:      3,

			LargeRatioMode:     Debug,
			LargeRatioLookback: 10,
			LargeThreshold:     1.0,
			LargeRatioRange:    Range{0, 0.3},
			SmallRatioMode:     Online,
			SmallRatioLookback: 30,
			SmallThreshold:     0.4,
			SmallRatioRange:    Range{0.2, 1.2},

			ConsecBuyMode:       Debug,
			ConsecBuyThreshold:  1.0,
			ConsecBuyRange:      Range{0, 2},
			ConsecSellMode:      Debug,
			ConsecSellThreshold: 0.1,
			ConsecSellRange:     Range{0, 2},

			RecentCountMode:    Online,
			RecentCountWindowS: 1,
			RecentCountRange:   Range{3, 600},

			AvgGapMode:     Online,
			AvgGapLookback: 15,
			AvgGapRange:    Range{0, 500},

			WindowSumMode:      Online,
			WindowSumMs:        600,
			WindowSumMinAmount: 0,
			WindowSumRange:     Range{-5, 30},

			WindowCountMode:      Online,
			WindowCountMs:        30000,
			WindowCountMinAmount: 0,
			WindowBuyRange:       Range{10, 100},
			WindowSellRange:      Range{0, 100},
		},
		Exit: ExitRules{
			PoolTakeProfit:    300,
			ProfitTakeEnabled: true,
			ProfitTake:        0.9,
			LossFraction:      0.45,
			PreEntryLookback:  10,

			RetraceLowProfit:  0.05,
			RetraceHighProfit: 0.05,
			HighProfitCutoff:  0.40,
			RetraceMinTurns:   0,
			TurnWindow:        5,
			RetraceMinHoldMs:  60000,
			RetraceMinProfit:  0.05,

			PressureEnabled:  false,
			PressureLookback: 10,
			PressureSumFloor: -20,
			PressureAllSells: false,

			MaxHoldS: 3000,

			QuietEnabled:   false,
			QuietWindowS:   20,
			QuietMinAmount: 0.8,

			SpikeEnabled:    true,
			SpikeLookbackMs: 400,
			SpikePct:        8,

			ReboundEnabled:    true,
			ReboundMinLossPct: 7,
			ReboundMinGainPct: 5,
			ReboundMinBuy:     3.5,

			ActiveSpikeEnabled:   true,
			ActiveSpikeWindowS:   2,
			ActiveSpikeMinTrades: 20,
			ActiveSpikeLookback:  35,
			ActiveSpikeRisePct:   15,

			QuietSpikeEnabled:   true,
			QuietSpikeWindowS:   3,
			QuietSpikeMaxTrades: 5,
			QuietSpikeLookback:  20,
			QuietSpikeRisePct:   8,
		},
	}
}

// Load reads a YAML file from disk and hydrates a Config struct on top of the
// built-in defaults, so absent keys keep their default values.
func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	config := Default()
	if err := yaml.NewDecoder(file).Decode(config); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	return config, nil
}

// LoadOrDefault loads the file if possible and otherwise logs the failure and
// returns the defaults. An unreadable rule file must never stop the engine.
func LoadOrDefault(path string, log zerolog.Logger) *Config {
	cfg, err := Load(path)
	if err != nil {
		log.Error().Err(err).Str("path", path).Msg("config unreadable, using defaults")
		return Default()
	}
	return cfg
}

// Save persists a Config struct to disk as YAML.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
