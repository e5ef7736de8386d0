package account

import (
	"testing"
	"time"

	"simexchange/internal/model"
)

var btcusdt = model.Instrument{Base: "BTC", Quote: "USDT", Kind: model.Perpetual}

func newTestAccount() *Account {
	cfg := model.DefaultAccountConfig()
	a := New("sim", cfg)
	a.SetBalance("USDT", model.Balance{Total: 10000, Available: 10000})
	return a
}

func buyOrder(price, size float64) *model.Order {
	return &model.Order{
		ID:         1,
		Instrument: btcusdt,
		Side:       model.SideBuy,
		Status:     model.StatusOpen,
		Kind:       model.Limit,
		Price:      price,
		Size:       size,
	}
}

// spec §8 scenario 1: open a limit buy, reserve against it, then fully
// settle it at the limit price and check the resulting balances. The order
// being settled here is the resting side of its own cross (it sat in the
// book waiting for a match), so per the glossary it settles as Maker, not
// the scenario text's literal "taker" — SubmitOpen's resting-order fills go
// through the same Maker path in matching.execute.
func TestSimpleLimitFillSettlesBalances(t *testing.T) {
	a := newTestAccount()
	order := buyOrder(50000, 0.1)

	if err := a.ReserveForOpen(order); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	usdt := a.Balance("USDT")
	if usdt.Available != 5000 {
		t.Fatalf("expected available 5000 after reserve, got %v", usdt.Available)
	}
	if usdt.Total != 10000 {
		t.Fatalf("expected total unchanged at reserve time, got %v", usdt.Total)
	}

	order.FilledQuantity = 0.1
	trade, err := a.SettleFill(order, 50000, 0.1, model.Maker, time.Now())
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if trade.Quantity != 0.1 {
		t.Fatalf("expected trade quantity 0.1, got %v", trade.Quantity)
	}

	commission := 50000 * 0.1 * a.Config.Rate(model.Perpetual, model.Maker)
	usdt = a.Balance("USDT")
	wantTotal := 10000 - 5000 - commission
	wantAvailable := 5000 - commission
	if diff := usdt.Total - wantTotal; diff > epsilon || diff < -epsilon {
		t.Fatalf("expected total %v, got %v", wantTotal, usdt.Total)
	}
	if diff := usdt.Available - wantAvailable; diff > epsilon || diff < -epsilon {
		t.Fatalf("expected available %v, got %v", wantAvailable, usdt.Available)
	}

	btc := a.Balance("BTC")
	if btc.Total != 0.1 || btc.Available != 0.1 {
		t.Fatalf("expected 0.1 BTC credited, got total=%v available=%v", btc.Total, btc.Available)
	}

	if !a.HasLongPosition(btcusdt) {
		t.Fatal("expected a long position to have opened")
	}
}

// spec §8 scenario 2: reserve for open, partially fill, then cancel — the
// unfilled portion's reservation must come back to Available, and the
// filled portion must already be reflected in Total.
func TestPartialFillThenCancelReleasesRemainder(t *testing.T) {
	a := newTestAccount()
	order := buyOrder(50000, 0.1)

	if err := a.ReserveForOpen(order); err != nil {
		t.Fatalf("reserve: %v", err)
	}

	order.FilledQuantity = 0.04
	if _, err := a.SettleFill(order, 50000, 0.04, model.Taker, time.Now()); err != nil {
		t.Fatalf("settle: %v", err)
	}
	order.Status = model.StatusCancelled
	if err := a.ReleaseOnCancel(order); err != nil {
		t.Fatalf("release: %v", err)
	}

	usdt := a.Balance("USDT")
	commission := 50000 * 0.04 * a.Config.Rate(model.Perpetual, model.Taker)
	wantTotal := 10000 - 2000 - commission
	wantAvailable := wantTotal // nothing left reserved once cancelled
	if diff := usdt.Total - wantTotal; diff > epsilon || diff < -epsilon {
		t.Fatalf("expected total %v, got %v", wantTotal, usdt.Total)
	}
	if diff := usdt.Available - wantAvailable; diff > epsilon || diff < -epsilon {
		t.Fatalf("expected available %v, got %v", wantAvailable, usdt.Available)
	}
}

// spec §8 scenario 4: in NetMode, an opposing fill against an existing long
// should reduce/flip it rather than coexist as a separate short.
func TestNetModeFlipsExistingPosition(t *testing.T) {
	a := newTestAccount()
	now := time.Now()

	long := buyOrder(50000, 0.1)
	if err := a.ReserveForOpen(long); err != nil {
		t.Fatalf("reserve long: %v", err)
	}
	long.FilledQuantity = 0.1
	if _, err := a.SettleFill(long, 50000, 0.1, model.Taker, now); err != nil {
		t.Fatalf("settle long: %v", err)
	}
	if !a.HasLongPosition(btcusdt) {
		t.Fatal("expected long position after first fill")
	}

	sell := &model.Order{
		ID:         2,
		Instrument: btcusdt,
		Side:       model.SideSell,
		Status:     model.StatusOpen,
		Kind:       model.Limit,
		Price:      51000,
		Size:       0.15,
	}
	if err := a.ReserveForOpen(sell); err != nil {
		t.Fatalf("reserve sell: %v", err)
	}
	sell.FilledQuantity = 0.15
	if _, err := a.SettleFill(sell, 51000, 0.15, model.Taker, now.Add(time.Second)); err != nil {
		t.Fatalf("settle sell: %v", err)
	}

	if a.HasLongPosition(btcusdt) {
		t.Fatal("long position should have been closed by the opposing fill")
	}
	if !a.HasShortPosition(btcusdt) {
		t.Fatal("expected the 0.05 excess to have flipped into a short")
	}

	key := model.PositionKey{Kind: model.PositionPerpetual, Side: model.SideSell, Instrument: btcusdt}
	pos := a.Positions[key]
	if pos == nil {
		t.Fatal("expected a short position record")
	}
	if diff := pos.Meta.CurrentSize - 0.05; diff > epsilon || diff < -epsilon {
		t.Fatalf("expected remaining short size 0.05, got %v", pos.Meta.CurrentSize)
	}

	// Closing the long realised (51000-50000)*0.1 = 100 of profit, which
	// should have flowed back into spendable USDT alongside its margin.
	usdt := a.Balance("USDT")
	if usdt.Available != usdt.Total {
		t.Fatalf("expected available to equal total once nothing is reserved: available=%v total=%v", usdt.Available, usdt.Total)
	}
}

func TestReserveForOpenRejectsInsufficientBalance(t *testing.T) {
	a := newTestAccount()
	order := buyOrder(50000, 1) // needs 50000, only have 10000
	if err := a.ReserveForOpen(order); err == nil {
		t.Fatal("expected insufficient balance error")
	}
}

func TestReduceOnlyRejectedWithoutOffsettingPosition(t *testing.T) {
	a := newTestAccount()
	order := &model.Order{
		ID:         1,
		Instrument: btcusdt,
		Side:       model.SideSell,
		Status:     model.StatusOpen,
		Kind:       model.Limit,
		Price:      50000,
		Size:       0.1,
		ReduceOnly: true,
	}
	if err := a.ReserveForOpen(order); err == nil {
		t.Fatal("expected reduce-only rejection with no offsetting position")
	}
}
