// Package book implements the per-instrument, price/time priority open
// order book (spec §4.3). It is grounded in the other_examples orderbook
// engine's per-pair book shape, generalized to decimal-backed price
// comparisons so that equal-price ties resolve deterministically instead of
// drifting on float64 rounding.
package book

import (
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"simexchange/internal/model"
)

// Fill is one resting-order fill produced by Book.MatchAgainst.
type Fill struct {
	Order    *model.Order
	Price    float64
	Quantity float64
	// RemainingAfter is the resting order's remaining quantity after this
	// fill; zero means the order is now fully filled.
	RemainingAfter float64
}

// Book holds both sides of one instrument's resting orders.
//
// Ordering (spec §4.3, preserved verbatim as a documented idiosyncrasy of
// the source rather than "corrected" to arrival-time tie-break — see
// DESIGN.md Open Question 3):
//
//	bids: price DESC, then remaining_quantity ASC
//	asks: price ASC,  then remaining_quantity ASC
type Book struct {
	mu   sync.Mutex
	bids []*model.Order
	asks []*model.Order
}

// New creates an empty book for one instrument.
func New() *Book {
	return &Book{}
}

func dec(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func less(side model.Side, a, b *model.Order) bool {
	pa, pb := dec(a.Price), dec(b.Price)
	if !pa.Equal(pb) {
		if side == model.SideBuy {
			return pa.GreaterThan(pb) // bids: price DESC
		}
		return pa.LessThan(pb) // asks: price ASC
	}
	// tie-break: remaining quantity ASC, for both sides.
	ra, rb := dec(a.RemainingQuantity()), dec(b.RemainingQuantity())
	return ra.LessThan(rb)
}

// Insert adds a resting order to the correct side, keeping it sorted.
func (b *Book) Insert(o *model.Order) {
	b.mu.Lock()
	defer b.mu.Unlock()

	side := sideSlice(b, o.Side)
	*side = append(*side, o)
	sort.SliceStable(*side, func(i, j int) bool {
		return less(o.Side, (*side)[i], (*side)[j])
	})
}

func sideSlice(b *Book, side model.Side) *[]*model.Order {
	if side == model.SideBuy {
		return &b.bids
	}
	return &b.asks
}

// Best returns the top order on the given side, or nil if empty.
func (b *Book) Best(side model.Side) *model.Order {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := *sideSlice(b, side)
	if len(s) == 0 {
		return nil
	}
	return s[0]
}

// PopBest removes and returns the top order on the given side.
func (b *Book) PopBest(side model.Side) *model.Order {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := sideSlice(b, side)
	if len(*s) == 0 {
		return nil
	}
	o := (*s)[0]
	*s = (*s)[1:]
	return o
}

// RemoveByID removes a resting order by id from whichever side it is on.
// Returns the removed order, or nil if not found.
func (b *Book) RemoveByID(id model.OrderID) *model.Order {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, side := range []*[]*model.Order{&b.bids, &b.asks} {
		for i, o := range *side {
			if o.ID == id {
				*side = append((*side)[:i], (*side)[i+1:]...)
				return o
			}
		}
	}
	return nil
}

// MatchAgainst walks the book side opposite tradeSide against an incoming
// quantity/price (either a public trade or a marketable client order),
// per spec §4.6. It mutates resting orders' FilledQuantity in place,
// removes any order that becomes fully filled, and returns one Fill per
// resting order touched. Any quantity left over after the book is empty or
// no longer marketable is reported via the returned remaining value; public
// trades discard it, but a client Market/IOC/FOK order needs it to decide
// whether the order rests, is cancelled, or is rejected.
func (b *Book) MatchAgainst(tradeSide model.Side, price, quantity float64) (fills []Fill, remaining float64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	opposite := tradeSide.Opposite()
	side := sideSlice(b, opposite)
	remaining = quantity
	tradePx := dec(price)

	for remaining > epsilon {
		if len(*side) == 0 {
			break
		}
		o := (*side)[0]
		restingPx := dec(o.Price)

		marketable := false
		if tradeSide == model.SideBuy {
			marketable = tradePx.GreaterThanOrEqual(restingPx)
		} else {
			marketable = tradePx.LessThanOrEqual(restingPx)
		}
		if !marketable {
			break
		}

		q := min(o.RemainingQuantity(), remaining)
		o.FilledQuantity += q
		remaining -= q

		fill := Fill{Order: o, Price: o.Price, Quantity: q, RemainingAfter: o.RemainingQuantity()}
		fills = append(fills, fill)

		if o.IsFullyFilled() {
			*side = (*side)[1:]
		}
	}
	return fills, remaining
}

// CanFill reports whether the book currently holds enough marketable
// opposite-side depth to fill quantity at price without resting any of it —
// the pre-check a FillOrKill order needs before anything is reserved
// (spec §4.2).
func (b *Book) CanFill(tradeSide model.Side, price, quantity float64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	opposite := tradeSide.Opposite()
	side := *sideSlice(b, opposite)
	tradePx := dec(price)

	remaining := quantity
	for _, o := range side {
		if remaining <= epsilon {
			break
		}
		restingPx := dec(o.Price)
		marketable := false
		if tradeSide == model.SideBuy {
			marketable = tradePx.GreaterThanOrEqual(restingPx)
		} else {
			marketable = tradePx.LessThanOrEqual(restingPx)
		}
		if !marketable {
			break
		}
		remaining -= min(o.RemainingQuantity(), remaining)
	}
	return remaining <= epsilon
}

const epsilon = 1e-9

func min(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

// Snapshot returns a shallow copy of both sides, for read-only inspection.
func (b *Book) Snapshot() (bids, asks []*model.Order) {
	b.mu.Lock()
	defer b.mu.Unlock()
	bids = append([]*model.Order(nil), b.bids...)
	asks = append([]*model.Order(nil), b.asks...)
	return bids, asks
}
