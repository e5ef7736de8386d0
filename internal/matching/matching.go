// Package matching is the C7 component: it walks an incoming request or a
// public trade against the resting book, settles fills into the account,
// and decides what (if anything) ends up resting afterward. It is grounded
// in other_examples' orderbook engine matching loop and in
// internal/order/async_executor.go's fill-then-settle sequencing.
package matching

import (
	"fmt"
	"time"

	"simexchange/internal/account"
	"simexchange/internal/book"
	"simexchange/internal/ledger"
	"simexchange/internal/model"
)

// Engine ties one account to one order ledger and executes requests against
// it. It assumes single-goroutine access, same as the exchange event loop
// that owns it (spec §5).
type Engine struct {
	Account *account.Account
	Ledger  *ledger.Ledger
}

// New creates a matching engine over an account and its order ledger.
func New(acc *account.Account, led *ledger.Ledger) *Engine {
	return &Engine{Account: acc, Ledger: led}
}

// Result is what a SubmitOpen call settles: the resulting order record (its
// Status reflects the outcome) and every client trade produced by fills
// against the book.
type Result struct {
	Order  *model.Order
	Trades []model.ClientTrade
}

// SubmitOpen executes one RequestOpen end to end, per spec §4.2:
//
//   - Market: fills against the book up to req.Size, discards any leftover,
//     never rests.
//   - Limit: fills the marketable portion, rests the remainder as Open.
//   - ImmediateOrCancel: fills the marketable portion, discards any
//     leftover, never rests.
//   - FillOrKill: all-or-nothing — if the book can't fill the whole size
//     right now, nothing is reserved or touched and the request is
//     rejected.
//   - GoodTilCancelled: same as Limit.
func (e *Engine) SubmitOpen(req model.RequestOpen, now time.Time) (Result, error) {
	if req.Kind == model.FillOrKill {
		if !e.Ledger.Book(req.Instrument).CanFill(req.Side, req.Price, req.Size) {
			return Result{}, fmt.Errorf("%w: fill-or-kill could not be fully filled", model.ErrInvalidRequest)
		}
	}

	order, err := e.Ledger.ProcessRequestOpen(req, now)
	if err != nil {
		return Result{}, err
	}

	if err := e.Account.ReserveForOpen(order); err != nil {
		return Result{}, err
	}

	trades, err := e.execute(order, now)
	if err != nil {
		return Result{}, err
	}

	switch order.Kind {
	case model.Limit, model.GoodTilCancelled:
		if !order.IsFullyFilled() {
			e.Ledger.Rest(order)
			order.Status = model.StatusOpen
		} else {
			order.Status = model.StatusFullyFill
		}
	default: // Market, ImmediateOrCancel, FillOrKill
		e.Account.ReleaseUnfilledRemainder(order, order.RemainingQuantity())
		if order.FilledQuantity <= 0 {
			order.Status = model.StatusCancelled
		} else if order.IsFullyFilled() {
			order.Status = model.StatusFullyFill
		} else {
			order.Status = model.StatusPartialFill
		}
	}

	return Result{Order: order, Trades: trades}, nil
}

// execute walks the book against the order's marketable price and settles
// every fill produced into the account. A Market order is marketable at any
// resting price, so it uses the book's own worst opposite price (the last
// level it could reach) as its walk price rather than a client-supplied one.
func (e *Engine) execute(order *model.Order, now time.Time) ([]model.ClientTrade, error) {
	b := e.Ledger.Book(order.Instrument)

	price := order.Price
	if order.Kind == model.Market {
		bids, asks := b.Snapshot()
		levels := asks
		if order.Side == model.SideSell {
			levels = bids
		}
		if len(levels) == 0 {
			return nil, nil
		}
		price = levels[len(levels)-1].Price
	}

	fills, _ := b.MatchAgainst(order.Side, price, order.RemainingQuantity())
	trades := make([]model.ClientTrade, 0, 2*len(fills))

	for _, f := range fills {
		order.FilledQuantity += f.Quantity
		takerTrade, err := e.Account.SettleFill(order, f.Price, f.Quantity, model.Taker, now)
		if err != nil {
			return trades, err
		}
		trades = append(trades, takerTrade)

		// The book only ever rests this same account's own orders (C4/C5
		// hold no third-party depth), so the maker side of every fill is
		// this account's resting order too — it needs its reservation
		// consumed and its position delta applied exactly like the taker
		// side, or its reserved balance would be stranded forever.
		counter := f.Order
		makerTrade, err := e.Account.SettleFill(counter, f.Price, f.Quantity, model.Maker, now)
		if err != nil {
			return trades, err
		}
		trades = append(trades, makerTrade)

		if counter.IsFullyFilled() {
			e.Ledger.RemoveFullyFilled(counter)
			counter.Status = model.StatusFullyFill
		} else {
			counter.Status = model.StatusPartialFill
		}
	}

	return trades, nil
}

// SubmitCancel cancels a resting order and releases its reservation.
func (e *Engine) SubmitCancel(req model.RequestCancel) (*model.Order, error) {
	order, err := e.Ledger.ProcessRequestCancel(req)
	if err != nil {
		return nil, err
	}
	if err := e.Account.ReleaseOnCancel(order); err != nil {
		return nil, err
	}
	return order, nil
}

// ExecutePublicTrade walks a historical public trade against the resting
// book (spec §4.6), settling fills for any of the account's own resting
// orders it crosses. Unlike SubmitOpen, there's no client-side reservation
// to reconcile — the order's reservation was already taken when it was
// opened.
func (e *Engine) ExecutePublicTrade(trade model.PublicTrade, instrument model.Instrument, now time.Time) ([]model.ClientTrade, error) {
	b := e.Ledger.Book(instrument)
	fills, _ := b.MatchAgainst(trade.Side, trade.Price, trade.Amount)

	out := make([]model.ClientTrade, 0, len(fills))
	for _, f := range fills {
		order := f.Order
		role := model.Maker
		settled, err := e.Account.SettleFill(order, f.Price, f.Quantity, role, now)
		if err != nil {
			return out, err
		}
		out = append(out, settled)

		if order.IsFullyFilled() {
			e.Ledger.RemoveFullyFilled(order)
			order.Status = model.StatusFullyFill
		} else {
			order.Status = model.StatusPartialFill
		}
	}
	return out, nil
}
