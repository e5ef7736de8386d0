package book

import (
	"testing"
	"time"

	"simexchange/internal/model"
)

func newOrder(id model.OrderID, side model.Side, price, size, filled float64, ts time.Time) *model.Order {
	return &model.Order{
		ID:             id,
		Side:           side,
		Status:         model.StatusOpen,
		Kind:           model.Limit,
		Price:          price,
		Size:           size,
		FilledQuantity: filled,
		Timestamp:      ts,
	}
}

func TestTieBreakOnRemainingQuantity(t *testing.T) {
	// spec §8 scenario 6: two bids at equal price 100 with remaining sizes
	// 1.0 and 2.0; the 2.0 bid arrives first, and the comparator must still
	// rank the smaller remaining size first regardless of arrival order.
	b := New()
	now := time.Now()
	big := newOrder(1, model.SideBuy, 100, 2.0, 0, now)
	small := newOrder(2, model.SideBuy, 100, 1.0, 0, now.Add(time.Second))

	b.Insert(big)
	b.Insert(small)

	best := b.Best(model.SideBuy)
	if best.ID != small.ID {
		t.Fatalf("expected smaller remaining quantity order (id=2) to rank first, got id=%d", best.ID)
	}
}

func TestBidsDescendingAsksAscending(t *testing.T) {
	b := New()
	now := time.Now()
	b.Insert(newOrder(1, model.SideBuy, 100, 1, 0, now))
	b.Insert(newOrder(2, model.SideBuy, 105, 1, 0, now))
	b.Insert(newOrder(3, model.SideSell, 110, 1, 0, now))
	b.Insert(newOrder(4, model.SideSell, 108, 1, 0, now))

	if bb := b.Best(model.SideBuy); bb.Price != 105 {
		t.Fatalf("expected best bid 105, got %v", bb.Price)
	}
	if ba := b.Best(model.SideSell); ba.Price != 108 {
		t.Fatalf("expected best ask 108, got %v", ba.Price)
	}
}

func TestMatchAgainstFullFillRemovesOrder(t *testing.T) {
	b := New()
	now := time.Now()
	resting := newOrder(1, model.SideBuy, 50000, 0.1, 0, now)
	b.Insert(resting)

	fills, remaining := b.MatchAgainst(model.SideSell, 49999, 0.1)
	if len(fills) != 1 {
		t.Fatalf("expected 1 fill, got %d", len(fills))
	}
	if fills[0].RemainingAfter != 0 {
		t.Fatalf("expected fully filled, remaining=%v", fills[0].RemainingAfter)
	}
	if remaining != 0 {
		t.Fatalf("expected no leftover trade quantity, got %v", remaining)
	}
	if b.Best(model.SideBuy) != nil {
		t.Fatal("fully filled order should have been removed from the book")
	}
}

func TestMatchAgainstPartialFill(t *testing.T) {
	b := New()
	now := time.Now()
	resting := newOrder(1, model.SideBuy, 50000, 0.1, 0, now)
	b.Insert(resting)

	fills, remaining := b.MatchAgainst(model.SideSell, 49999, 0.04)
	if len(fills) != 1 {
		t.Fatalf("expected 1 fill, got %d", len(fills))
	}
	if fills[0].RemainingAfter <= 0 {
		t.Fatalf("expected order to still have remaining quantity, got %v", fills[0].RemainingAfter)
	}
	if remaining != 0 {
		t.Fatalf("expected trade fully absorbed, got leftover %v", remaining)
	}
	if got := b.Best(model.SideBuy); got == nil || got.ID != 1 {
		t.Fatal("partially filled order should remain in the book")
	}
}

func TestMatchAgainstRespectsPriceCrossing(t *testing.T) {
	b := New()
	now := time.Now()
	b.Insert(newOrder(1, model.SideSell, 50001, 0.05, 0, now))

	// incoming public buy at 50000 should not cross a 50001 ask.
	fills, remaining := b.MatchAgainst(model.SideBuy, 50000, 0.1)
	if len(fills) != 0 {
		t.Fatalf("expected no fills when not marketable, got %d", len(fills))
	}
	if remaining != 0.1 {
		t.Fatalf("expected full quantity left over, got %v", remaining)
	}
}

func TestRemoveByID(t *testing.T) {
	b := New()
	now := time.Now()
	b.Insert(newOrder(1, model.SideBuy, 100, 1, 0, now))
	b.Insert(newOrder(2, model.SideBuy, 100, 2, 0, now))

	removed := b.RemoveByID(2)
	if removed == nil || removed.ID != 2 {
		t.Fatal("expected to remove order id=2")
	}
	bids, _ := b.Snapshot()
	if len(bids) != 1 || bids[0].ID != 1 {
		t.Fatalf("expected only order id=1 to remain, got %+v", bids)
	}
}
