// Package strategy holds the one demo strategy cmd/simulate wires against
// the replay pipeline, adapted from the teacher's momentum demo (which
// traded live Binance klines; this version reacts to the same momentum
// signal but against replayed model.PublicTrade rows and emits a
// model.RequestOpen instead of a raw exchange order). Strategies are the
// external collaborator per spec §1, not one of the ten specified
// components — this is kept only to exercise cmd/simulate end to end.
package strategy

import "simexchange/internal/model"

// DemoStrategy emits a momentum order whenever the replayed trade price
// moves by more than threshold (as a fraction) since the last trade it saw.
type DemoStrategy struct {
	instrument model.Instrument
	size       float64
	threshold  float64
	lastPrice  float64
}

// NewDemoStrategy creates a demo strategy for one instrument. threshold is
// a fraction (0.001 = 0.1%); size is the order quantity it submits on a
// signal. Non-positive values fall back to small defaults so a caller can
// pass zero values for "use the default".
func NewDemoStrategy(instrument model.Instrument, size, threshold float64) *DemoStrategy {
	if threshold <= 0 {
		threshold = 0.001
	}
	if size <= 0 {
		size = 0.001
	}
	return &DemoStrategy{instrument: instrument, size: size, threshold: threshold}
}

// OnTrade feeds one replayed public trade to the strategy. It returns a
// RequestOpen when the move since the last trade crosses +/- threshold, and
// nil otherwise (including on the very first trade, which only seeds
// lastPrice).
func (d *DemoStrategy) OnTrade(trade model.PublicTrade) *model.RequestOpen {
	if trade.Price <= 0 {
		return nil
	}
	if d.lastPrice == 0 {
		d.lastPrice = trade.Price
		return nil
	}

	change := (trade.Price - d.lastPrice) / d.lastPrice
	d.lastPrice = trade.Price

	switch {
	case change >= d.threshold:
		return &model.RequestOpen{
			Instrument: d.instrument,
			Side:       model.SideBuy,
			Kind:       model.Market,
			Size:       d.size,
		}
	case change <= -d.threshold:
		return &model.RequestOpen{
			Instrument: d.instrument,
			Side:       model.SideSell,
			Kind:       model.Market,
			Size:       d.size,
		}
	default:
		return nil
	}
}
