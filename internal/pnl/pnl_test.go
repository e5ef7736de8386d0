package pnl

import (
	"testing"

	"simexchange/internal/model"
)

func TestUnrealisedLongProfitsWhenPriceRises(t *testing.T) {
	pos := model.Position{Meta: model.PositionMeta{Side: model.SideBuy, CurrentSize: 1, CurrentAvgPrice: 100}}
	if got := Unrealised(pos, 110); got != 10 {
		t.Fatalf("expected 10, got %v", got)
	}
}

func TestUnrealisedShortProfitsWhenPriceFalls(t *testing.T) {
	pos := model.Position{Meta: model.PositionMeta{Side: model.SideSell, CurrentSize: 1, CurrentAvgPrice: 100}}
	if got := Unrealised(pos, 90); got != 10 {
		t.Fatalf("expected 10, got %v", got)
	}
}

func TestRealisedNetsOutFee(t *testing.T) {
	got := Realised(model.SideBuy, 1, 100, 110, 0.5)
	if got != 9.5 {
		t.Fatalf("expected 9.5, got %v", got)
	}
}

func TestFundingLongPaysPositiveRate(t *testing.T) {
	pos := model.Position{Meta: model.PositionMeta{Side: model.SideBuy, CurrentSize: 1}}
	if got := FundingAccrual(pos, 100, 0.0001); got >= 0 {
		t.Fatalf("expected a long to pay (negative) funding at a positive rate, got %v", got)
	}
}
