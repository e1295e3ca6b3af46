package main

import (
	"math"
	"math/rand"
	"sync"
)

// Rand is the randomness the generator needs; tests pin it.
type Rand interface {
	Intn(n int) int
	Float64() float64
}

func newSeededRand(seed int64) Rand { return rand.New(rand.NewSource(seed)) }

// Generator produces full synthetic batches for a universe. Values are
// placeholders for real market data and derived metrics.
//
// With reseed set, the source is rebuilt from seed before every batch, so each
// batch is identical to the first.
type Generator struct {
	mu       sync.Mutex
	universe []UniverseEntry
	seed     int64
	reseed   bool
	newRand  func(seed int64) Rand
	rand     Rand
}

func NewGenerator(universe []UniverseEntry, seed int64, reseed bool) *Generator {
	return newGeneratorWithRand(universe, seed, reseed, newSeededRand)
}

func newGeneratorWithRand(universe []UniverseEntry, seed int64, reseed bool, newRand func(int64) Rand) *Generator {
	return &Generator{
		universe: append([]UniverseEntry(nil), universe...),
		seed:     seed,
		reseed:   reseed,
		newRand:  newRand,
		rand:     newRand(seed),
	}
}

// Batch returns one record per universe entry with every field populated.
func (g *Generator) Batch() []InstrumentRecord {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.reseed {
		g.rand = g.newRand(g.seed)
	}

	out := make([]InstrumentRecord, 0, len(g.universe))
	for _, u := range g.universe {
		out = append(out, FullRecord(
			u.Symbol,
			g.price(u.BasePrice),
			int64(100_000+g.rand.Intn(900_000)),
			uniform(g.rand, 20, 80),
			uniform(g.rand, 4, 18),
			uniform(g.rand, 2, 10),
			uniform(g.rand, 5, 40),
		))
	}
	return out
}

// Fill implements MetricsSource with the same placeholder ranges.
func (g *Generator) Fill(rec *InstrumentRecord) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if rec.Present.Missing(FieldRSI) {
		rec.Set(FieldRSI, uniform(g.rand, 20, 80))
	}
	if rec.Present.Missing(FieldPERatio) {
		rec.Set(FieldPERatio, uniform(g.rand, 4, 18))
	}
	if rec.Present.Missing(FieldDividendYield) {
		rec.Set(FieldDividendYield, uniform(g.rand, 2, 10))
	}
	if rec.Present.Missing(FieldEPS) {
		rec.Set(FieldEPS, uniform(g.rand, 5, 40))
	}
}

// price is an integer in [100, 1500) unless the universe pins a base price,
// in which case it jitters +-1.5% around it.
func (g *Generator) price(base float64) float64 {
	if base > 0 {
		return round2(base * (1 + (g.rand.Float64()-0.5)*0.03))
	}
	return float64(100 + g.rand.Intn(1400))
}

func uniform(r Rand, lo, hi float64) float64 {
	return lo + r.Float64()*(hi-lo)
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
