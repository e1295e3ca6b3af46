package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stepRand returns fixed values so generated fields are predictable.
type stepRand struct {
	f float64
	n int
}

func (s *stepRand) Intn(int) int     { return s.n }
func (s *stepRand) Float64() float64 { return s.f }

func TestGeneratorBatchWithPinnedRand(t *testing.T) {
	universe := []UniverseEntry{{Symbol: "HBL"}, {Symbol: "LUCK", BasePrice: 700}}
	g := newGeneratorWithRand(universe, 1, false, func(int64) Rand { return &stepRand{f: 0.5, n: 10} })

	recs := g.Batch()
	require.Len(t, recs, 2)

	assert.Equal(t, FullRecord("HBL", 110, 100_010, 50, 11, 6, 22.5), recs[0])
	// base price with zero jitter
	assert.Equal(t, 700.0, recs[1].Price)
}

func TestGeneratorRanges(t *testing.T) {
	g := NewGenerator(DefaultUniverse(), 42, false)
	for i := 0; i < 50; i++ {
		for _, r := range g.Batch() {
			require.True(t, r.Present.Complete(), r.Key)
			assert.GreaterOrEqual(t, r.Price, 100.0)
			assert.Less(t, r.Price, 1500.0)
			assert.GreaterOrEqual(t, r.Volume, int64(100_000))
			assert.Less(t, r.Volume, int64(1_000_000))
			assert.True(t, r.RSI >= 20 && r.RSI < 80, "rsi %v", r.RSI)
			assert.True(t, r.PERatio >= 4 && r.PERatio < 18, "pe %v", r.PERatio)
			assert.True(t, r.DividendYield >= 2 && r.DividendYield < 10, "yield %v", r.DividendYield)
			assert.True(t, r.EPS >= 5 && r.EPS < 40, "eps %v", r.EPS)
		}
	}
}

func TestGeneratorSameSeedSameSequence(t *testing.T) {
	a := NewGenerator(DefaultUniverse(), 42, false)
	b := NewGenerator(DefaultUniverse(), 42, false)
	for i := 0; i < 3; i++ {
		assert.Equal(t, a.Batch(), b.Batch())
	}
}

func TestGeneratorReseedRepeatsBatch(t *testing.T) {
	g := NewGenerator(DefaultUniverse(), 42, true)
	first := g.Batch()
	assert.Equal(t, first, g.Batch())
	assert.Equal(t, first, g.Batch())

	free := NewGenerator(DefaultUniverse(), 42, false)
	assert.Equal(t, first, free.Batch())
	assert.NotEqual(t, first, free.Batch())
}

func TestGeneratorFillKeepsPresentFields(t *testing.T) {
	g := newGeneratorWithRand(nil, 1, false, func(int64) Rand { return &stepRand{f: 0, n: 0} })

	var r InstrumentRecord
	r.Key = "HBL"
	r.Set(FieldPrice, 120)
	r.Set(FieldRSI, 33)
	g.Fill(&r)

	assert.False(t, r.Present.Complete(), "volume stays missing")
	assert.Equal(t, 33.0, r.RSI)
	assert.Equal(t, 4.0, r.PERatio)
	assert.Equal(t, 2.0, r.DividendYield)
	assert.Equal(t, 5.0, r.EPS)
	assert.True(t, r.Present.Missing(FieldVolume))
}
