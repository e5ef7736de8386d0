package model

import "time"

// PositionDirectionMode controls whether both sides of an instrument may be
// held at once.
type PositionDirectionMode int

const (
	NetMode PositionDirectionMode = iota
	LongShortMode
)

// PositionMarginMode controls whether margin is pooled across positions
// (Cross) or tracked per-position (Isolated).
type PositionMarginMode int

const (
	Cross PositionMarginMode = iota
	Isolated
)

// PositionKind distinguishes the position-bearing instrument families. Each
// kind shares the PositionMeta header and adds its own fields below.
type PositionKind int

const (
	PositionPerpetual PositionKind = iota
	PositionFuture
	PositionLeveragedToken
	PositionOption
)

// PositionID identifies a position; spec §6 derives it by hashing
// (instrument, open_timestamp).
type PositionID uint64

// PositionMeta is the header shared by every position kind.
type PositionMeta struct {
	ID                   PositionID
	EnterTS              time.Time
	UpdateTS             time.Time
	ExitBalance          float64 // carried from original_source: running account balance at last exit
	Exchange             string
	Instrument           Instrument
	Side                 Side
	CurrentSize          float64
	CurrentFeesTotal     float64
	CurrentAvgPriceGross float64
	CurrentSymbolPrice   float64
	CurrentAvgPrice      float64
	UnrealisedPnL        float64
	RealisedPnL          float64
}

// PositionConfig is the per-position margin/leverage/mode configuration.
type PositionConfig struct {
	PosMarginMode PositionMarginMode
	Leverage      float64
	PositionMode  PositionDirectionMode
}

// Position is a tagged union over the four position kinds (REDESIGN FLAGS
// §9): one struct, sharing PositionMeta, with LiquidationPrice/Margin/
// FundingFee fields that only apply to some kinds and sit unused (zero) on
// the others rather than forcing four near-identical Go types.
type Position struct {
	Kind  PositionKind
	Meta  PositionMeta
	Config PositionConfig

	// LiquidationPrice uses the source's simplified sign-flip formula
	// (DESIGN.md Open Question 2): ignores maintenance margin, kept for
	// parity rather than corrected.
	LiquidationPrice float64
	Margin           float64
	FundingFee float64 // Perpetual only; zero for Future/LeveragedToken/Option
}

// PositionKey identifies one of the (at most two, per instrument) positions
// an account can hold. Using a single map keyed this way collapses the
// spec's ten logically-partitioned maps (REDESIGN FLAGS §9: "a single
// map<(kind,side,instrument), Position> is equivalent and simpler") while
// preserving the side-partitioning that NetMode/LongShortMode both depend
// on: in NetMode only one side's key is ever populated for a given
// instrument, in LongShortMode both may coexist.
type PositionKey struct {
	Kind       PositionKind
	Side       Side
	Instrument Instrument
}

// AccountPositions is the position ledger for one account.
type AccountPositions map[PositionKey]*Position
