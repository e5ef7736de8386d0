package model

// ExecutionMode distinguishes how orders are actually carried out. Only
// Backtest is implemented by this module; the field exists so a real
// execution mode can be added later without reshaping AccountConfig.
type ExecutionMode int

const (
	ExecutionBacktest ExecutionMode = iota
)

// FeeRate holds the maker/taker commission rate for one instrument kind.
type FeeRate struct {
	Maker float64
	Taker float64
}

// AccountConfig is the exchange-wide configuration (spec §6), loaded via
// pkg/config from YAML in the teacher's internal/strategy/config_loader.go
// style.
type AccountConfig struct {
	MarginMode          PositionMarginMode
	PositionMode        PositionDirectionMode
	PositionMarginMode  PositionMarginMode
	CommissionLevel     string
	FundingRate         float64
	AccountLeverageRate float64
	FeesBook            map[InstrumentKind]FeeRate
	ExecutionMode       ExecutionMode
}

// DefaultAccountConfig mirrors the teacher's DefaultConfig()-with-sane-
// defaults pattern (internal/risk/types.go).
func DefaultAccountConfig() AccountConfig {
	return AccountConfig{
		MarginMode:          Cross,
		PositionMode:        NetMode,
		PositionMarginMode:  Cross,
		CommissionLevel:     "default",
		FundingRate:         0.0001,
		AccountLeverageRate: 1.0,
		FeesBook: map[InstrumentKind]FeeRate{
			Spot:      {Maker: 0.0002, Taker: 0.0004},
			Perpetual: {Maker: 0.0002, Taker: 0.0005},
			Future:    {Maker: 0.0002, Taker: 0.0005},
		},
		ExecutionMode: ExecutionBacktest,
	}
}

// Rate returns the commission rate for kind/role, falling back to the
// Perpetual rate if the book has no entry (a conservative default rather
// than a silent zero-fee).
func (c AccountConfig) Rate(kind InstrumentKind, role OrderRole) float64 {
	fr, ok := c.FeesBook[kind]
	if !ok {
		fr = c.FeesBook[Perpetual]
	}
	if role == Maker {
		return fr.Maker
	}
	return fr.Taker
}
