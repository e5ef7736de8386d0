package client

import (
	"context"
	"testing"
	"time"

	"simexchange/internal/account"
	"simexchange/internal/exchange"
	"simexchange/internal/ledger"
	"simexchange/internal/matching"
	"simexchange/internal/model"
)

var btcusdt = model.Instrument{Base: "BTC", Quote: "USDT", Kind: model.Perpetual}

func newTestClient(t *testing.T) *Client {
	t.Helper()
	cfg := model.DefaultAccountConfig()
	acc := account.New("sim", cfg)
	acc.SetBalance("USDT", model.Balance{Total: 100000, Available: 100000})
	led := ledger.New("sim", 1, nil)
	eng := matching.New(acc, led)
	ex := exchange.New("sim", eng, 16, nil)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go ex.Run(ctx)
	return New(ex)
}

func TestOpenOrderAssignsClientOrderIDWhenOmitted(t *testing.T) {
	cl := newTestClient(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	order, _, err := cl.OpenOrder(ctx, model.RequestOpen{
		Instrument: btcusdt,
		Side:       model.SideBuy,
		Kind:       model.GoodTilCancelled,
		Price:      50000,
		Size:       0.1,
	})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if order.CID == "" {
		t.Fatal("expected a generated client order id when the request omitted one")
	}
}

func TestOpenOrderPreservesSuppliedClientOrderID(t *testing.T) {
	cl := newTestClient(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	order, _, err := cl.OpenOrder(ctx, model.RequestOpen{
		Instrument: btcusdt,
		Side:       model.SideBuy,
		Kind:       model.GoodTilCancelled,
		Price:      50000,
		Size:       0.1,
		CID:        "my-strategy-1",
	})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if order.CID != "my-strategy-1" {
		t.Fatalf("expected supplied client order id to survive, got %q", order.CID)
	}
}

func TestOpenOrdersBatchAssignsDistinctClientOrderIDs(t *testing.T) {
	cl := newTestClient(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	results := cl.OpenOrders(ctx, []model.RequestOpen{
		{Instrument: btcusdt, Side: model.SideBuy, Kind: model.GoodTilCancelled, Price: 50000, Size: 0.1},
		{Instrument: btcusdt, Side: model.SideBuy, Kind: model.GoodTilCancelled, Price: 49000, Size: 0.1},
	})
	if len(results) != 2 {
		t.Fatalf("expected 2 aligned results, got %d", len(results))
	}
	for _, r := range results {
		if r.Err != nil {
			t.Fatalf("unexpected error: %v", r.Err)
		}
	}
	if results[0].Order.CID == "" || results[1].Order.CID == "" {
		t.Fatal("expected both orders to have a generated client order id")
	}
	if results[0].Order.CID == results[1].Order.CID {
		t.Fatal("expected distinct generated client order ids")
	}
}
