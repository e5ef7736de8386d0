package ledger

import (
	"testing"
	"time"

	"simexchange/internal/model"
)

var btcusdt = model.Instrument{Base: "BTC", Quote: "USDT", Kind: model.Perpetual}

func TestOrderIDStrictlyIncreases(t *testing.T) {
	l := New("sim", 7, nil)
	now := time.Now()

	var prev model.OrderID
	for i := 0; i < 50; i++ {
		o, err := l.ProcessRequestOpen(model.RequestOpen{
			Instrument: btcusdt,
			Side:       model.SideBuy,
			Kind:       model.GoodTilCancelled,
			Price:      100,
			Size:       1,
		}, now)
		if err != nil {
			t.Fatalf("open: %v", err)
		}
		if o.ID <= prev {
			t.Fatalf("order id did not strictly increase: prev=%d got=%d", prev, o.ID)
		}
		prev = o.ID
	}
}

func TestOpenThenCancelRemovesFromBook(t *testing.T) {
	l := New("sim", 1, nil)
	now := time.Now()

	o, err := l.ProcessRequestOpen(model.RequestOpen{
		Instrument: btcusdt,
		Side:       model.SideBuy,
		Kind:       model.GoodTilCancelled,
		Price:      50000,
		Size:       0.1,
	}, now)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	l.Rest(o)

	if best := l.Book(btcusdt).Best(model.SideBuy); best == nil {
		t.Fatal("expected order resting in book")
	}

	cancelled, err := l.ProcessRequestCancel(model.RequestCancel{ID: o.ID})
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != model.StatusCancelled {
		t.Fatalf("expected Cancelled status, got %v", cancelled.Status)
	}
	if best := l.Book(btcusdt).Best(model.SideBuy); best != nil {
		t.Fatal("cancelled order should not remain in the book")
	}
}

func TestCancelUnknownOrderIsNotFound(t *testing.T) {
	l := New("sim", 1, nil)
	_, err := l.ProcessRequestCancel(model.RequestCancel{ID: 999})
	if err == nil {
		t.Fatal("expected error for unknown order id")
	}
}

func TestRejectsInvalidRequests(t *testing.T) {
	l := New("sim", 1, nil)
	now := time.Now()

	if _, err := l.ProcessRequestOpen(model.RequestOpen{Instrument: btcusdt, Kind: model.GoodTilCancelled, Price: 100, Size: 0}, now); err == nil {
		t.Fatal("expected error for zero size")
	}
	if _, err := l.ProcessRequestOpen(model.RequestOpen{Instrument: btcusdt, Kind: model.Limit, Price: 0, Size: 1}, now); err == nil {
		t.Fatal("expected error for non-positive limit price")
	}
}
