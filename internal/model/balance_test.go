package model

import "testing"

func TestBalanceApplyRoundTrip(t *testing.T) {
	b := Balance{Total: 10000, Available: 10000}
	delta := BalanceDelta{Total: -5000, Available: -5000}

	if err := b.Apply(delta); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if err := b.Apply(delta.Negate()); err != nil {
		t.Fatalf("apply negate: %v", err)
	}

	if b.Total != 10000 || b.Available != 10000 {
		t.Fatalf("round trip did not restore balance, got %+v", b)
	}
}

func TestBalanceApplyRejectsNegativeAvailable(t *testing.T) {
	b := Balance{Total: 1000, Available: 100}
	err := b.Apply(BalanceDelta{Available: -200})
	if err == nil {
		t.Fatal("expected insufficient balance error")
	}
	if b.Available != 100 {
		t.Fatalf("balance mutated despite rejected delta: %+v", b)
	}
}

func TestBalanceUsed(t *testing.T) {
	b := Balance{Total: 1000, Available: 400}
	if b.Used() != 600 {
		t.Fatalf("expected used=600, got %v", b.Used())
	}
}
