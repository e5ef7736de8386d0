package latency

import "testing"

func TestDeterministicGivenSameSeed(t *testing.T) {
	cfgA := Config{Mode: Uniform, Minimum: 0, Maximum: 1000, Seed: 42}
	cfgB := Config{Mode: Uniform, Minimum: 0, Maximum: 1000, Seed: 42}
	a := New(cfgA)
	b := New(cfgB)

	for i := 0; i < 10; i++ {
		da, db := a.Next(), b.Next()
		if da != db {
			t.Fatalf("call %d diverged: %v != %v", i, da, db)
		}
	}
}

func TestBoundedByMinMax(t *testing.T) {
	m := New(Config{Mode: Sine, Minimum: 100, Maximum: 500, Seed: 1})
	for i := 0; i < 100; i++ {
		d := m.Next()
		if d < 100 || d > 500 {
			t.Fatalf("delay %v out of bounds [100,500]", d)
		}
	}
}

func TestSwappedBoundsNormalized(t *testing.T) {
	m := New(Config{Mode: Uniform, Minimum: 500, Maximum: 100, Seed: 1})
	d := m.Next()
	if d < 100 || d > 500 {
		t.Fatalf("delay %v out of normalized bounds", d)
	}
}
