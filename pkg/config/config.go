// Package config loads the simulator's run settings: an AccountConfig from
// YAML plus a handful of environment-driven overrides, following the
// teacher's env-loader-with-.env-overlay convention merged with
// internal/strategy/config_loader.go's YAML-unmarshal shape.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"simexchange/internal/model"
)

// yamlAccountConfig mirrors model.AccountConfig with yaml tags; the margin,
// position-mode and fees-book string enums are parsed into their model.*
// consts after unmarshalling. execution_mode is read but not applied, so
// the account always keeps its default execution mode.
type yamlAccountConfig struct {
	MarginMode          string                     `yaml:"margin_mode"`
	PositionMode        string                     `yaml:"position_mode"`
	PositionMarginMode  string                     `yaml:"position_margin_mode"`
	CommissionLevel     string                     `yaml:"commission_level"`
	FundingRate         float64                    `yaml:"funding_rate"`
	AccountLeverageRate float64                    `yaml:"account_leverage_rate"`
	FeesBook            map[string]yamlFeeRate     `yaml:"fees_book"`
	ExecutionMode       string                     `yaml:"execution_mode"`
}

type yamlFeeRate struct {
	Maker float64 `yaml:"maker"`
	Taker float64 `yaml:"taker"`
}

// RunConfig holds everything cmd/simulate needs to wire up a run: the
// account config plus historical-store/replay coordinates.
type RunConfig struct {
	Account model.AccountConfig

	Exchange         string
	InstrumentSymbol string // e.g. "spot", "perpetual"
	Channel          string // e.g. "trades"
	DBPath           string
	FromDate         string // yyyy-MM-dd
	ToDate           string // yyyy-MM-dd
	BatchSize        int
	MachineID        uint32
	LatencyMinMicros int64
	LatencyMaxMicros int64
	EventBufferSize  int
}

// Load reads a YAML file at path (falling back to DefaultRunConfig if path
// is empty or missing) and overlays a handful of environment variables,
// loaded via a .env file if present. Missing individual env vars leave the
// YAML (or default) value untouched.
func Load(path string) (*RunConfig, error) {
	_ = godotenv.Load()

	cfg := DefaultRunConfig()
	if path != "" {
		if err := loadYAML(path, &cfg); err != nil {
			return nil, fmt.Errorf("load config %s: %w", path, err)
		}
	}

	if v := os.Getenv("SIM_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("SIM_FROM_DATE"); v != "" {
		cfg.FromDate = v
	}
	if v := os.Getenv("SIM_TO_DATE"); v != "" {
		cfg.ToDate = v
	}
	if v := os.Getenv("SIM_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.BatchSize = n
		}
	}

	return &cfg, nil
}

// DefaultRunConfig mirrors the teacher's DefaultConfig()-with-sane-defaults
// pattern (internal/risk/types.go), scaled to the simulator's needs.
func DefaultRunConfig() RunConfig {
	return RunConfig{
		Account:          model.DefaultAccountConfig(),
		Exchange:         "sim",
		InstrumentSymbol: "spot",
		Channel:          "trades",
		DBPath:           "./data/historical.db",
		BatchSize:        500,
		MachineID:        1,
		LatencyMinMicros: 500,
		LatencyMaxMicros: 5000,
		EventBufferSize:  1024,
	}
}

func loadYAML(path string, cfg *RunConfig) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	var raw struct {
		Exchange         string            `yaml:"exchange"`
		InstrumentSymbol string            `yaml:"instrument_symbol"`
		Channel          string            `yaml:"channel"`
		DBPath           string            `yaml:"db_path"`
		FromDate         string            `yaml:"from_date"`
		ToDate           string            `yaml:"to_date"`
		BatchSize        int               `yaml:"batch_size"`
		MachineID        uint32            `yaml:"machine_id"`
		LatencyMinMicros int64             `yaml:"latency_min_micros"`
		LatencyMaxMicros int64             `yaml:"latency_max_micros"`
		EventBufferSize  int               `yaml:"event_buffer_size"`
		Account          yamlAccountConfig `yaml:"account"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return err
	}

	if raw.Exchange != "" {
		cfg.Exchange = raw.Exchange
	}
	if raw.InstrumentSymbol != "" {
		cfg.InstrumentSymbol = raw.InstrumentSymbol
	}
	if raw.Channel != "" {
		cfg.Channel = raw.Channel
	}
	if raw.DBPath != "" {
		cfg.DBPath = raw.DBPath
	}
	if raw.FromDate != "" {
		cfg.FromDate = raw.FromDate
	}
	if raw.ToDate != "" {
		cfg.ToDate = raw.ToDate
	}
	if raw.BatchSize > 0 {
		cfg.BatchSize = raw.BatchSize
	}
	if raw.MachineID > 0 {
		cfg.MachineID = raw.MachineID
	}
	if raw.LatencyMinMicros > 0 {
		cfg.LatencyMinMicros = raw.LatencyMinMicros
	}
	if raw.LatencyMaxMicros > 0 {
		cfg.LatencyMaxMicros = raw.LatencyMaxMicros
	}
	if raw.EventBufferSize > 0 {
		cfg.EventBufferSize = raw.EventBufferSize
	}
	applyAccountOverrides(&cfg.Account, raw.Account)
	return nil
}

func applyAccountOverrides(acc *model.AccountConfig, raw yamlAccountConfig) {
	if mm, ok := parseMarginMode(raw.MarginMode); ok {
		acc.MarginMode = mm
	}
	if pm, ok := parsePositionMode(raw.PositionMode); ok {
		acc.PositionMode = pm
	}
	if pmm, ok := parseMarginMode(raw.PositionMarginMode); ok {
		acc.PositionMarginMode = pmm
	}
	if raw.CommissionLevel != "" {
		acc.CommissionLevel = raw.CommissionLevel
	}
	if raw.FundingRate != 0 {
		acc.FundingRate = raw.FundingRate
	}
	if raw.AccountLeverageRate != 0 {
		acc.AccountLeverageRate = raw.AccountLeverageRate
	}
	if len(raw.FeesBook) > 0 {
		if acc.FeesBook == nil {
			acc.FeesBook = make(map[model.InstrumentKind]model.FeeRate)
		}
		for k, v := range raw.FeesBook {
			if kind, ok := parseInstrumentKind(k); ok {
				acc.FeesBook[kind] = model.FeeRate{Maker: v.Maker, Taker: v.Taker}
			}
		}
	}
}

func parseMarginMode(s string) (model.PositionMarginMode, bool) {
	switch s {
	case "cross":
		return model.Cross, true
	case "isolated":
		return model.Isolated, true
	default:
		return 0, false
	}
}

func parsePositionMode(s string) (model.PositionDirectionMode, bool) {
	switch s {
	case "net":
		return model.NetMode, true
	case "long_short":
		return model.LongShortMode, true
	default:
		return 0, false
	}
}

func parseInstrumentKind(s string) (model.InstrumentKind, bool) {
	switch s {
	case "spot":
		return model.Spot, true
	case "perpetual":
		return model.Perpetual, true
	case "future":
		return model.Future, true
	case "crypto_option":
		return model.CryptoOption, true
	case "crypto_leveraged_token":
		return model.CryptoLeveragedToken, true
	case "commodity_future":
		return model.CommodityFuture, true
	case "commodity_option":
		return model.CommodityOption, true
	default:
		return 0, false
	}
}
