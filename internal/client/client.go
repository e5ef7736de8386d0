// Package client is the C9 component: the façade a trading strategy talks
// to. It hides the exchange's request/reply channel plumbing behind plain
// method calls, the same shape internal/order/dry_run.go's DryRunExecutor
// presents to callers that don't care whether fills are real or simulated.
package client

import (
	"context"
	"time"

	"github.com/google/uuid"

	"simexchange/internal/exchange"
	"simexchange/internal/model"
)

// Client is a thin wrapper over one Exchange. Strategies are expected to
// hold one Client per account they trade and read Client.Events()
// concurrently with issuing requests.
type Client struct {
	exchange *exchange.Exchange
}

// New wraps an already-running Exchange.
func New(ex *exchange.Exchange) *Client {
	return &Client{exchange: ex}
}

// FetchOrdersOpen returns every order currently resting in the book.
func (c *Client) FetchOrdersOpen(ctx context.Context) ([]*model.Order, error) {
	return c.exchange.FetchOrdersOpen(ctx)
}

// FetchBalances returns a snapshot of every token balance.
func (c *Client) FetchBalances(ctx context.Context) ([]model.TokenBalance, error) {
	return c.exchange.FetchBalances(ctx)
}

// FetchPositions returns a snapshot of every open position.
func (c *Client) FetchPositions(ctx context.Context) ([]model.Position, error) {
	return c.exchange.FetchPositions(ctx)
}

// OpenOrder submits a new order and blocks until the exchange has fully
// processed it (matched, rested, or rejected). A request that omits CID
// gets one generated here, so every order the client submits is traceable
// even when the strategy doesn't bother tagging its own.
func (c *Client) OpenOrder(ctx context.Context, req model.RequestOpen) (*model.Order, []model.ClientTrade, error) {
	assignCID(&req)
	return c.exchange.OpenOrder(ctx, req)
}

// assignCID fills in req.CID with a generated uuid if the caller left it
// blank.
func assignCID(req *model.RequestOpen) {
	if req.CID == "" {
		req.CID = model.ClientOrderID(uuid.NewString())
	}
}

// CancelOrder cancels a single resting order.
func (c *Client) CancelOrder(ctx context.Context, id model.OrderID) (*model.Order, error) {
	return c.exchange.CancelOrder(ctx, id)
}

// OpenOrders submits a batch of RequestOpens and returns one result per
// request, aligned by index, so a partial batch reports precisely which
// items failed (spec §7). Each request still lands on the exchange's single
// request channel and is serialized against every other mutation.
func (c *Client) OpenOrders(ctx context.Context, reqs []model.RequestOpen) []OpenResult {
	results := make([]OpenResult, len(reqs))
	for i, req := range reqs {
		assignCID(&req)
		order, trades, err := c.exchange.OpenOrder(ctx, req)
		results[i] = OpenResult{Order: order, Trades: trades, Err: err}
	}
	return results
}

// CancelOrders cancels a batch of orders by id, aligned by index with reqs.
func (c *Client) CancelOrders(ctx context.Context, reqs []model.RequestCancel) []CancelResult {
	results := make([]CancelResult, len(reqs))
	for i, req := range reqs {
		order, err := c.exchange.CancelOrder(ctx, req.ID)
		results[i] = CancelResult{Order: order, Err: err}
	}
	return results
}

// OpenResult is one element of OpenOrders' aligned result batch.
type OpenResult struct {
	Order  *model.Order
	Trades []model.ClientTrade
	Err    error
}

// CancelResult is one element of CancelOrders' aligned result batch.
type CancelResult struct {
	Order *model.Order
	Err   error
}

// CancelOrdersAll cancels every resting order, optionally scoped to one
// instrument.
func (c *Client) CancelOrdersAll(ctx context.Context, instrument *model.Instrument) ([]*model.Order, error) {
	return c.exchange.CancelAll(ctx, instrument)
}

// FeedPublicTrade replays one historical public trade into the exchange.
func (c *Client) FeedPublicTrade(ctx context.Context, instrument model.Instrument, trade model.PublicTrade, at time.Time) error {
	return c.exchange.FeedPublicTrade(ctx, instrument, trade, at)
}

// Events returns an independent stream of account events: fills, opens,
// cancels, and snapshots. It is held for the life of the process; callers
// that come and go (an HTTP stream, say) should use Subscribe instead so
// they can release their channel.
func (c *Client) Events() <-chan model.AccountEvent {
	return c.exchange.Events()
}

// Subscribe registers a new independent listener for account events. Call
// the returned func once to stop receiving and release the channel.
func (c *Client) Subscribe() (<-chan model.AccountEvent, func()) {
	return c.exchange.Subscribe()
}
