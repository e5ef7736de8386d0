// Package exchange is the C8 component: a single-goroutine event loop that
// serializes every mutation to one account's balances, positions, and order
// books, and broadcasts what happened on every step. It is grounded in
// internal/events/bus.go's non-blocking publish-or-drop broadcast and
// internal/order/async_executor.go's request/result channel shape,
// collapsed from a worker pool down to one worker — spec §5 requires
// strict serialization, not concurrency, since match order determines
// economic outcome.
package exchange

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"simexchange/internal/matching"
	"simexchange/internal/model"
)

// request is the sealed set of messages the event loop accepts. Each reply
// channel has a one-slot buffer and is sent on exactly once, so the loop
// never blocks on a caller that stopped waiting: a one-shot response,
// exactly like a gRPC unary call but over a channel instead of the wire.
type request interface {
	isRequest()
}

type fetchOrdersOpenRequest struct {
	reply chan<- []*model.Order
}

type fetchBalancesRequest struct {
	reply chan<- []model.TokenBalance
}

type fetchPositionsRequest struct {
	reply chan<- []model.Position
}

type openOrderRequest struct {
	req   model.RequestOpen
	reply chan<- openResult
}

type openResult struct {
	Order  *model.Order
	Trades []model.ClientTrade
	Err    error
}

type cancelOrderRequest struct {
	req   model.RequestCancel
	reply chan<- cancelResult
}

type cancelResult struct {
	Order *model.Order
	Err   error
}

type cancelAllRequest struct {
	instrument *model.Instrument // nil means every instrument
	reply      chan<- []*model.Order
}

type marketTradeRequest struct {
	instrument model.Instrument
	trade      model.PublicTrade
	at         time.Time
	reply      chan<- error
}

func (fetchOrdersOpenRequest) isRequest() {}
func (fetchBalancesRequest) isRequest()   {}
func (fetchPositionsRequest) isRequest()  {}
func (openOrderRequest) isRequest()       {}
func (cancelOrderRequest) isRequest()     {}
func (cancelAllRequest) isRequest()       {}
func (marketTradeRequest) isRequest()     {}

// Exchange owns one account's matching engine and processes requests for it
// one at a time on Run's goroutine. Every exported method is safe to call
// from any goroutine — they only ever send on channels.
type Exchange struct {
	name        string
	engine      *matching.Engine
	reqs        chan request
	eventBuffer int
	subsMu      sync.RWMutex
	subs        map[chan model.AccountEvent]struct{}
	nowFunc     func() time.Time
}

// New creates an exchange around a matching engine. eventBuffer sizes every
// subscriber's channel; a slow or absent subscriber causes its own events to
// be dropped, not the loop to block (same discipline as events.Bus.Publish).
func New(name string, engine *matching.Engine, eventBuffer int, nowFunc func() time.Time) *Exchange {
	if nowFunc == nil {
		nowFunc = time.Now
	}
	return &Exchange{
		name:        name,
		engine:      engine,
		reqs:        make(chan request, 64),
		eventBuffer: eventBuffer,
		subs:        make(map[chan model.AccountEvent]struct{}),
		nowFunc:     nowFunc,
	}
}

// Subscribe registers a new, independent listener for account events and
// returns its channel plus an unsubscribe function. Every subscriber gets
// its own copy of every event, fanned out the way events.Bus.Publish does
// it; call unsubscribe once the listener is done to release the channel.
func (e *Exchange) Subscribe() (<-chan model.AccountEvent, func()) {
	ch := make(chan model.AccountEvent, e.eventBuffer)
	e.subsMu.Lock()
	e.subs[ch] = struct{}{}
	e.subsMu.Unlock()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			e.subsMu.Lock()
			delete(e.subs, ch)
			e.subsMu.Unlock()
			close(ch)
		})
	}
	return ch, unsubscribe
}

// Events is a convenience Subscribe for callers that hold the channel for
// the process lifetime and never unsubscribe.
func (e *Exchange) Events() <-chan model.AccountEvent {
	ch, _ := e.Subscribe()
	return ch
}

// Run processes requests until ctx is cancelled. It must be started exactly
// once; every other method is how the rest of the program talks to it.
func (e *Exchange) Run(ctx context.Context) {
	log.Printf("exchange %s: event loop starting", e.name)
	defer log.Printf("exchange %s: event loop stopped", e.name)

	for {
		select {
		case <-ctx.Done():
			return
		case r := <-e.reqs:
			e.handle(r)
		}
	}
}

func (e *Exchange) handle(r request) {
	switch req := r.(type) {
	case fetchOrdersOpenRequest:
		req.reply <- e.engine.Ledger.OpenOrders()

	case fetchBalancesRequest:
		balances, _ := e.engine.Account.Snapshot()
		req.reply <- balances

	case fetchPositionsRequest:
		_, positions := e.engine.Account.Snapshot()
		req.reply <- positions

	case openOrderRequest:
		res, err := e.engine.SubmitOpen(req.req, e.nowFunc())
		if err != nil {
			req.reply <- openResult{Err: err}
			return
		}
		e.publishOpenResult(res)
		req.reply <- openResult{Order: res.Order, Trades: res.Trades}

	case cancelOrderRequest:
		order, err := e.engine.SubmitCancel(req.req)
		if err != nil {
			req.reply <- cancelResult{Err: err}
			return
		}
		e.publish(model.AccountEvent{
			ExchangeTimestamp: e.nowFunc(),
			Exchange:          e.name,
			Kind:              model.EventOrdersCancelled,
			Orders:            []model.Order{*order},
		})
		req.reply <- cancelResult{Order: order}

	case cancelAllRequest:
		var cancelled []*model.Order
		for _, o := range e.engine.Ledger.OpenOrders() {
			if req.instrument != nil && o.Instrument != *req.instrument {
				continue
			}
			if c, err := e.engine.SubmitCancel(model.RequestCancel{ID: o.ID}); err == nil {
				cancelled = append(cancelled, c)
			}
		}
		if len(cancelled) > 0 {
			events := make([]model.Order, len(cancelled))
			for i, o := range cancelled {
				events[i] = *o
			}
			e.publish(model.AccountEvent{
				ExchangeTimestamp: e.nowFunc(),
				Exchange:          e.name,
				Kind:              model.EventOrdersCancelled,
				Orders:            events,
			})
		}
		req.reply <- cancelled

	case marketTradeRequest:
		trades, err := e.engine.ExecutePublicTrade(req.trade, req.instrument, req.at)
		if err != nil {
			req.reply <- err
			return
		}
		for _, tr := range trades {
			e.publish(model.AccountEvent{
				ExchangeTimestamp: req.at,
				Exchange:          e.name,
				Kind:              model.EventTrade,
				Trade:             &tr,
			})
		}
		req.reply <- nil

	default:
		log.Printf("exchange %s: unknown request type %T", e.name, req)
	}
}

func (e *Exchange) publishOpenResult(res matching.Result) {
	now := e.nowFunc()
	kind := model.EventOrdersOpen
	if res.Order.Status == model.StatusCancelled {
		kind = model.EventOrdersCancelled
	} else if len(res.Trades) > 0 {
		kind = model.EventOrdersFilled
		if !res.Order.IsFullyFilled() {
			kind = model.EventOrdersPartiallyFilled
		}
	}
	e.publish(model.AccountEvent{
		ExchangeTimestamp: now,
		Exchange:          e.name,
		Kind:              kind,
		Orders:            []model.Order{*res.Order},
	})
	for _, tr := range res.Trades {
		e.publish(model.AccountEvent{
			ExchangeTimestamp: now,
			Exchange:          e.name,
			Kind:              model.EventTrade,
			Trade:             &tr,
		})
	}
}

// publish fans an event out to every current subscriber and is non-blocking
// per subscriber: a full channel means that one consumer is slow, and the
// loop must never stall on that (spec §5's serialization guarantee is about
// mutation order, not about delivery).
func (e *Exchange) publish(ev model.AccountEvent) {
	e.subsMu.RLock()
	defer e.subsMu.RUnlock()
	for ch := range e.subs {
		select {
		case ch <- ev:
		default:
			log.Printf("exchange %s: subscriber channel full, dropping %s", e.name, ev.Kind)
		}
	}
}

// send is the shared request/reply plumbing every exported method uses.
func send[T any](ctx context.Context, reqs chan<- request, build func(chan<- T) request) (T, error) {
	reply := make(chan T, 1)
	select {
	case reqs <- build(reply):
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
	select {
	case v := <-reply:
		return v, nil
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// FetchOrdersOpen returns every order currently resting in the book.
func (e *Exchange) FetchOrdersOpen(ctx context.Context) ([]*model.Order, error) {
	return send(ctx, e.reqs, func(r chan<- []*model.Order) request {
		return fetchOrdersOpenRequest{reply: r}
	})
}

// FetchBalances returns a snapshot of every token balance.
func (e *Exchange) FetchBalances(ctx context.Context) ([]model.TokenBalance, error) {
	return send(ctx, e.reqs, func(r chan<- []model.TokenBalance) request {
		return fetchBalancesRequest{reply: r}
	})
}

// FetchPositions returns a snapshot of every open position.
func (e *Exchange) FetchPositions(ctx context.Context) ([]model.Position, error) {
	return send(ctx, e.reqs, func(r chan<- []model.Position) request {
		return fetchPositionsRequest{reply: r}
	})
}

// OpenOrder submits a RequestOpen and waits for it to be fully processed.
func (e *Exchange) OpenOrder(ctx context.Context, req model.RequestOpen) (*model.Order, []model.ClientTrade, error) {
	res, err := send(ctx, e.reqs, func(r chan<- openResult) request {
		return openOrderRequest{req: req, reply: r}
	})
	if err != nil {
		return nil, nil, err
	}
	if res.Err != nil {
		return nil, nil, res.Err
	}
	return res.Order, res.Trades, nil
}

// CancelOrder cancels a single resting order by id.
func (e *Exchange) CancelOrder(ctx context.Context, id model.OrderID) (*model.Order, error) {
	res, err := send(ctx, e.reqs, func(r chan<- cancelResult) request {
		return cancelOrderRequest{req: model.RequestCancel{ID: id}, reply: r}
	})
	if err != nil {
		return nil, err
	}
	return res.Order, res.Err
}

// CancelAll cancels every resting order, optionally scoped to one
// instrument (pass nil for every instrument).
func (e *Exchange) CancelAll(ctx context.Context, instrument *model.Instrument) ([]*model.Order, error) {
	return send(ctx, e.reqs, func(r chan<- []*model.Order) request {
		return cancelAllRequest{instrument: instrument, reply: r}
	})
}

// FeedPublicTrade walks a historical public trade against the book,
// settling any of the account's resting orders it crosses (spec §4.6).
func (e *Exchange) FeedPublicTrade(ctx context.Context, instrument model.Instrument, trade model.PublicTrade, at time.Time) error {
	err, sendErr := send(ctx, e.reqs, func(r chan<- error) request {
		return marketTradeRequest{instrument: instrument, trade: trade, at: at, reply: r}
	})
	if sendErr != nil {
		return sendErr
	}
	if err != nil {
		return fmt.Errorf("feed public trade: %w", err)
	}
	return nil
}
