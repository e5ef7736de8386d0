package ledger

import (
	"fmt"
	"time"

	"simexchange/internal/book"
	"simexchange/internal/latency"
	"simexchange/internal/model"
)

// Ledger owns the open-order books for every instrument an account is
// active on, plus OrderID assignment. It is the C5 component; it does not
// know about balances or positions (that's C6's job) — it only tracks
// which orders are resting and where.
type Ledger struct {
	ids     *IDGenerator
	latency *latency.Model
	books   map[model.Instrument]*book.Book
	byID    map[model.OrderID]*model.Order
	exchange string
}

// New creates an order ledger. latencyModel may be nil, in which case
// accepted orders get zero simulated delay.
func New(exchange string, machineID uint32, latencyModel *latency.Model) *Ledger {
	return &Ledger{
		ids:      NewIDGenerator(machineID),
		latency:  latencyModel,
		books:    make(map[model.Instrument]*book.Book),
		byID:     make(map[model.OrderID]*model.Order),
		exchange: exchange,
	}
}

func (l *Ledger) bookFor(instrument model.Instrument) *book.Book {
	b, ok := l.books[instrument]
	if !ok {
		b = book.New()
		l.books[instrument] = b
	}
	return b
}

// Book returns the order book for an instrument, creating it if absent.
func (l *Ledger) Book(instrument model.Instrument) *book.Book {
	return l.bookFor(instrument)
}

// ProcessRequestOpen validates the request and assigns an OrderID, a
// simulated arrival timestamp, and a Role (Taker if the request crosses the
// current best opposite price, Maker otherwise). It does NOT insert into the
// book: every order kind
// must first be walked against the resting book by the matching engine
// (C7), which then decides — based on what's left over and the order's
// kind — whether to call Rest to let any remainder join the book.
func (l *Ledger) ProcessRequestOpen(req model.RequestOpen, now time.Time) (*model.Order, error) {
	if req.Size <= 0 {
		return nil, fmt.Errorf("%w: size must be positive", model.ErrInvalidRequest)
	}
	if req.Kind == model.Limit && req.Price <= 0 {
		return nil, fmt.Errorf("%w: limit price must be positive", model.ErrInvalidRequest)
	}

	arrival := now
	if l.latency != nil {
		arrival = now.Add(l.latency.Next())
	}

	role := model.Maker
	if best := l.bookFor(req.Instrument).Best(req.Side.Opposite()); best != nil {
		crosses := req.Kind == model.Market ||
			(req.Side == model.SideBuy && req.Price >= best.Price) ||
			(req.Side == model.SideSell && req.Price <= best.Price)
		if crosses {
			role = model.Taker
		}
	}

	id := l.ids.NewOrderID(arrival.UnixMilli())
	order := &model.Order{
		ID:         id,
		Exchange:   l.exchange,
		Instrument: req.Instrument,
		Timestamp:  arrival,
		CID:        req.CID,
		Side:       req.Side,
		Status:     model.StatusOpen,
		Kind:       req.Kind,
		Price:      req.Price,
		Size:       req.Size,
		ReduceOnly: req.ReduceOnly,
		Role:       role,
	}

	l.byID[id] = order
	return order, nil
}

// Rest inserts an order (or its remainder) into its instrument's book and
// leaves its Status as Open. Only GoodTilCancelled and marketable-checked
// Limit orders should ever be passed here; the matching engine enforces
// that, since Market/IOC/FOK never rest (spec §4.2).
func (l *Ledger) Rest(order *model.Order) {
	l.bookFor(order.Instrument).Insert(order)
}

// ProcessRequestCancel removes a resting order from its book and marks it
// Cancelled. Returns ErrOrderNotFound if the id is unknown or already
// terminal.
func (l *Ledger) ProcessRequestCancel(req model.RequestCancel) (*model.Order, error) {
	order, ok := l.byID[req.ID]
	if !ok {
		return nil, fmt.Errorf("%w: id=%d", model.ErrOrderNotFound, req.ID)
	}
	if order.Status != model.StatusOpen {
		return nil, fmt.Errorf("%w: id=%d is not open", model.ErrOrderNotFound, req.ID)
	}

	removed := l.bookFor(order.Instrument).RemoveByID(req.ID)
	if removed == nil {
		return nil, fmt.Errorf("%w: id=%d not resting in its book", model.ErrOrderNotFound, req.ID)
	}
	order.Status = model.StatusCancelled
	return order, nil
}

// LookupByID returns the order record for an id, regardless of whether it
// is still resting.
func (l *Ledger) LookupByID(id model.OrderID) (*model.Order, bool) {
	o, ok := l.byID[id]
	return o, ok
}

// RemoveFullyFilled drops a terminal order from the book-membership index
// once the matching engine has fully filled it; it stays in byID for
// lookup/history.
func (l *Ledger) RemoveFullyFilled(o *model.Order) {
	l.bookFor(o.Instrument).RemoveByID(o.ID)
}

// OpenOrders returns every order currently resting across all books.
func (l *Ledger) OpenOrders() []*model.Order {
	var out []*model.Order
	for _, b := range l.books {
		bids, asks := b.Snapshot()
		out = append(out, bids...)
		out = append(out, asks...)
	}
	return out
}
