// Package pnl is the C10 component: realised/unrealised PnL and funding
// accrual, reading positions an account already tracks rather than keeping
// its own copy. Grounded in internal/order/events.go's CalculatePnL (the
// same abs(qty)/side-branch/fee-subtracted shape, generalised from a single
// flattening trade to a live position) and internal/risk/types.go's
// fee-rate-by-level pattern for FundingAccrual's rate lookup.
package pnl

import (
	"time"

	"simexchange/internal/model"
)

// Unrealised computes a position's mark-to-market PnL at currentPrice,
// independent of whatever UnrealisedPnL field the caller last cached on it.
func Unrealised(pos model.Position, currentPrice float64) float64 {
	qty := pos.Meta.CurrentSize
	if qty <= 0 {
		return 0
	}
	if pos.Meta.Side == model.SideBuy {
		return (currentPrice - pos.Meta.CurrentAvgPrice) * qty
	}
	return (pos.Meta.CurrentAvgPrice - currentPrice) * qty
}

// Realised mirrors CalculatePnL's flattening-trade formula: the PnL of
// closing qty of a position entered at entry, exiting at exit, net of fee.
func Realised(side model.Side, qty, entry, exit, fee float64) float64 {
	if qty <= 0 {
		return 0
	}
	var gross float64
	if side == model.SideBuy {
		gross = (exit - entry) * qty
	} else {
		gross = (entry - exit) * qty
	}
	return gross - fee
}

// Commission returns the fee owed for a fill, looked up the same way
// model.AccountConfig.Rate does (maker/taker by instrument kind) — kept as
// a thin wrapper so callers reporting PnL don't need to reach back into
// account internals for the rate.
func Commission(cfg model.AccountConfig, kind model.InstrumentKind, role model.OrderRole, notional float64) float64 {
	return notional * cfg.Rate(kind, role)
}

// FundingAccrual computes the periodic funding payment on a perpetual
// position, per spec §4.5: notional * fundingRate, signed so a long pays
// when the rate is positive (the conventional perpetual-swap direction) and
// a short receives it.
func FundingAccrual(pos model.Position, markPrice, fundingRate float64) float64 {
	notional := markPrice * pos.Meta.CurrentSize
	payment := notional * fundingRate
	if pos.Meta.Side == model.SideBuy {
		return -payment
	}
	return payment
}

// Snapshot is a point-in-time PnL report for one position, the shape an
// API or strategy loop would poll or log.
type Snapshot struct {
	Instrument model.Instrument
	Side       model.Side
	Size       float64
	EntryPrice float64
	MarkPrice  float64
	Unrealised float64
	Realised   float64
	FeesPaid   float64
	AsOf       time.Time
}

// Report builds a Snapshot for a position at a given mark price.
func Report(pos model.Position, markPrice float64, asOf time.Time) Snapshot {
	return Snapshot{
		Instrument: pos.Meta.Instrument,
		Side:       pos.Meta.Side,
		Size:       pos.Meta.CurrentSize,
		EntryPrice: pos.Meta.CurrentAvgPrice,
		MarkPrice:  markPrice,
		Unrealised: Unrealised(pos, markPrice),
		Realised:   pos.Meta.RealisedPnL,
		FeesPaid:   pos.Meta.CurrentFeesTotal,
		AsOf:       asOf,
	}
}
