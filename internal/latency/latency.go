// Package latency generates a deterministic, reproducible per-order network
// delay, used to stamp each accepted order with a simulated arrival time at
// the exchange (spec §4.2). The tracked-offset shape is grounded in
// pkg/exchanges/common/timesync.go, which tracks a running clock offset
// across calls in the same way this tracks a running delay value.
package latency

import (
	"math"
	"math/rand"
	"sync"
	"time"
)

// FluctuationMode controls how the delay wanders between Minimum and
// Maximum across calls.
type FluctuationMode int

const (
	// Sine walks the delay along a sine wave, advancing phase each call.
	Sine FluctuationMode = iota
	// Uniform draws an independent uniform sample each call.
	Uniform
)

// Model is a deterministic generator: given the same seed and the same
// sequence of Next() calls, it produces the same sequence of delays.
type Model struct {
	mu sync.Mutex

	mode         FluctuationMode
	minimum      time.Duration
	maximum      time.Duration
	currentValue time.Duration

	rng   *rand.Rand
	phase float64
	step  float64
}

// Config parameterizes a new Model.
type Config struct {
	Mode    FluctuationMode
	Minimum time.Duration
	Maximum time.Duration
	Seed    int64
	// Step advances the sine phase per call; ignored in Uniform mode.
	Step float64
}

// New creates a latency model. Minimum/Maximum are normalized if swapped.
func New(cfg Config) *Model {
	minimum, maximum := cfg.Minimum, cfg.Maximum
	if maximum < minimum {
		minimum, maximum = maximum, minimum
	}
	step := cfg.Step
	if step <= 0 {
		step = 0.25
	}
	return &Model{
		mode:         cfg.Mode,
		minimum:      minimum,
		maximum:      maximum,
		currentValue: minimum,
		rng:          rand.New(rand.NewSource(cfg.Seed)),
		step:         step,
	}
}

// Next advances the generator and returns the next delay as a
// time.Duration between Minimum and Maximum, updating currentValue.
func (m *Model) Next() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()

	span := m.maximum - m.minimum
	if span <= 0 {
		m.currentValue = m.minimum
		return m.currentValue
	}

	switch m.mode {
	case Sine:
		m.phase += m.step
		frac := (math.Sin(m.phase) + 1) / 2 // maps [-1,1] -> [0,1]
		m.currentValue = m.minimum + time.Duration(frac*float64(span))
	default: // Uniform
		m.currentValue = m.minimum + time.Duration(m.rng.Float64()*float64(span))
	}
	return m.currentValue
}

// Current returns the most recently generated delay without advancing the
// generator.
func (m *Model) Current() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentValue
}
