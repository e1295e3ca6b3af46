package main

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotLastWriteWins(t *testing.T) {
	s := NewSnapshotStore()

	a := FullRecord("HBL", 120, 500_000, 30, 8, 6, 12)
	require.NoError(t, s.ApplyUpdate(a))

	var b InstrumentRecord
	b.Key = "HBL"
	b.Set(FieldPrice, 125)
	require.NoError(t, s.ApplyUpdate(b))

	recs := s.CurrentRecords()
	require.Len(t, recs, 1)
	got := recs[0]
	assert.Equal(t, 125.0, got.Price)
	// fields B did not carry are not inherited from A
	_, ok := got.Value(FieldRSI)
	assert.False(t, ok)
	assert.Zero(t, got.Volume)
	assert.Equal(t, b, got)
}

func TestSnapshotRejectsMissingKey(t *testing.T) {
	s := NewSnapshotStore()
	err := s.ApplyUpdate(InstrumentRecord{Key: "  "})
	assert.ErrorIs(t, err, ErrMissingKey)
	assert.Equal(t, 0, s.Len())
}

func TestSnapshotNormalizesKeys(t *testing.T) {
	s := NewSnapshotStore()
	require.NoError(t, s.ApplyUpdate(FullRecord(" hbl", 1, 1, 1, 1, 1, 1)))
	require.NoError(t, s.ApplyUpdate(FullRecord("HBL ", 2, 2, 2, 2, 2, 2)))

	assert.Equal(t, 1, s.Len())
	got, ok := s.Get("hbl")
	require.True(t, ok)
	assert.Equal(t, "HBL", got.Key)
	assert.Equal(t, 2.0, got.Price)
}

func TestSnapshotFirstSeenOrder(t *testing.T) {
	s := NewSnapshotStore()
	for _, k := range []string{"MCB", "HBL", "LUCK", "HBL"} {
		require.NoError(t, s.ApplyUpdate(InstrumentRecord{Key: k}))
	}
	assert.Equal(t, []string{"MCB", "HBL", "LUCK"}, s.Keys())
	assert.Equal(t, []string{"MCB", "HBL", "LUCK"}, keysOf(s.CurrentRecords()))
}

func TestSnapshotEmpty(t *testing.T) {
	s := NewSnapshotStore()
	recs := s.CurrentRecords()
	require.NotNil(t, recs)
	assert.Empty(t, recs)
}

// Writers always store records whose fields all equal the same n, so a torn
// read would show mixed values.
func TestSnapshotConcurrentWritersAndReaders(t *testing.T) {
	s := NewSnapshotStore()
	const writers, perWriter = 4, 500

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				n := float64(i)
				key := fmt.Sprintf("K%d", i%10)
				_ = s.ApplyUpdate(FullRecord(key, n, int64(n), n, n, n, n))
			}
		}(w)
	}

	done := make(chan struct{})
	var readerErr error
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			for _, r := range s.CurrentRecords() {
				if r.Price != r.RSI || float64(r.Volume) != r.EPS {
					readerErr = fmt.Errorf("torn record %+v", r)
					return
				}
			}
		}
	}()

	wg.Wait()
	<-done
	require.NoError(t, readerErr)
	assert.Equal(t, 10, s.Len())
}
