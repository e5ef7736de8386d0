package historical

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"simexchange/internal/model"
)

// MarketEvent is one element of the bounded channel
// query_unioned_trade_table_batched_for_dates feeds into the matching
// engine: a trade paired with the instrument it belongs to, or a terminal
// error for the date it was read on.
type MarketEvent struct {
	Instrument string
	Trade      model.PublicTrade
	Err        error
}

// QueryUnionedTradeTableBatchedForDates pages through every date in
// [from, to] against the union view, LIMIT batchSize OFFSET n*batchSize,
// until a short page signals exhaustion, then advances to the next date.
// Results are pushed into a bounded channel; the producing goroutine blocks
// on channel capacity (backpressure) and exits cleanly once ctx is
// cancelled, closing the channel when it exits or once the last date is
// exhausted. A receiver that stops reading without cancelling ctx leaves
// the producer blocked on its next send. limiter paces batched queries against the store,
// grounded in pkg/exchanges/common/ratelimit.go's usage-tracking shape,
// generalized to a token bucket since the store has no response header to
// read load from.
func (s *Store) QueryUnionedTradeTableBatchedForDates(
	ctx context.Context, from, to time.Time, batchSize int, limiter *rate.Limiter,
) <-chan MarketEvent {
	out := make(chan MarketEvent, batchSize)
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Inf, 1)
	}

	go func() {
		defer close(out)
		for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
			if err := s.pageDate(ctx, d, batchSize, limiter, out); err != nil {
				if !sendEvent(ctx, out, MarketEvent{Err: err}) {
					return
				}
			}
		}
	}()

	return out
}

// pageDate pushes every row of a single date's union view into out in
// LIMIT/OFFSET pages. A missing table surfaces a per-date StoreError and the
// caller moves on to the next date (spec §4.1's failure rule), rather than
// aborting the whole range.
func (s *Store) pageDate(ctx context.Context, date time.Time, batchSize int, limiter *rate.Limiter, out chan<- MarketEvent) error {
	view := ConstructUnionViewName(s.exchange, s.instr, s.channel, date)
	offset := 0
	for {
		if err := limiter.Wait(ctx); err != nil {
			return err
		}
		query := fmt.Sprintf(
			"SELECT basequote, side, price, timestamp, amount FROM %s ORDER BY timestamp ASC LIMIT ? OFFSET ?",
			view)
		rows, err := s.db.QueryContext(ctx, query, batchSize, offset)
		if err != nil {
			return &model.StoreErr{Query: query, Date: date.Format(dateLayout), Err: err}
		}

		n := 0
		for rows.Next() {
			var t model.PublicTrade
			var side string
			if err := rows.Scan(&t.BaseQuote, &side, &t.Price, &t.Timestamp, &t.Amount); err != nil {
				rows.Close()
				return &model.StoreErr{Query: query, Date: date.Format(dateLayout), Err: err}
			}
			t.Side = parseSide(side)
			n++
			if !sendEvent(ctx, out, MarketEvent{Instrument: s.instr, Trade: t}) {
				rows.Close()
				return nil
			}
		}
		rerr := rows.Err()
		rows.Close()
		if rerr != nil {
			return &model.StoreErr{Query: query, Date: date.Format(dateLayout), Err: rerr}
		}

		if n < batchSize {
			return nil
		}
		offset += batchSize
	}
}

// sendEvent delivers ev on out, giving up if ctx is cancelled first. It
// reports whether the send happened; a receiver that has stopped reading
// without cancelling ctx keeps it blocked.
func sendEvent(ctx context.Context, out chan<- MarketEvent, ev MarketEvent) bool {
	select {
	case out <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
