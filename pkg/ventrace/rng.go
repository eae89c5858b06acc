package ventrace

import (
	"math/rand"
	"time"
)

// RNG is the trace's single source of randomness (§5). Concrete SPs draw
// from it; the core never reads the process-global generator.
type RNG interface {
	Float64() float64
	Intn(n int) int
	NormFloat64() float64
}

// traceRNG wraps *rand.Rand. The trace owns exactly one instance, seeded
// at construction from the clock (§5 "RNG").
type traceRNG struct {
	r *rand.Rand
}

func newTraceRNG() *traceRNG {
	return &traceRNG{r: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

func newSeededRNG(seed int64) *traceRNG {
	return &traceRNG{r: rand.New(rand.NewSource(seed))}
}

func (t *traceRNG) Float64() float64     { return t.r.Float64() }
func (t *traceRNG) Intn(n int) int       { return t.r.Intn(n) }
func (t *traceRNG) NormFloat64() float64 { return t.r.NormFloat64() }

// Reseed installs a new seed, per §5's "may be reseeded" contract.
func (t *traceRNG) Reseed(seed int64) {
	t.r = rand.New(rand.NewSource(seed))
}
