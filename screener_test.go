package main

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testNow() time.Time {
	// Wednesday, PSX open
	return time.Date(2025, 3, 12, 11, 0, 0, 0, loadKarachi())
}

type fakeTicker struct {
	c       chan time.Time
	mu      sync.Mutex
	stopped bool
}

func newFakeTicker() *fakeTicker { return &fakeTicker{c: make(chan time.Time)} }

func (f *fakeTicker) C() <-chan time.Time { return f.c }
func (f *fakeTicker) Stop() {
	f.mu.Lock()
	f.stopped = true
	f.mu.Unlock()
}
func (f *fakeTicker) isStopped() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stopped
}

type recordingSink struct {
	mu    sync.Mutex
	views []*View
	err   error
	seen  chan struct{}
}

func newRecordingSink() *recordingSink { return &recordingSink{seen: make(chan struct{}, 16)} }

func (r *recordingSink) PublishView(_ context.Context, v *View) error {
	r.mu.Lock()
	r.views = append(r.views, v)
	r.mu.Unlock()
	select {
	case r.seen <- struct{}{}:
	default:
	}
	return r.err
}

func (r *recordingSink) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.views)
}

func (r *recordingSink) wait(t *testing.T) {
	t.Helper()
	select {
	case <-r.seen:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a view")
	}
}

func newTestScreener(store *SnapshotStore, tk Ticker, sinks ...ViewSink) (*Screener, *Metrics) {
	m := NewMetrics(testNow(), "test", "", "")
	s := NewScreener(ScreenerConfig{
		Interval:  time.Second,
		RunID:     "run-1",
		Log:       NewNopLogger(),
		NewTicker: func(time.Duration) Ticker { return tk },
		Now:       testNow,
	}, store, NewParams(DefaultParamValues()), m, sinks...)
	return s, m
}

func seedStore(t *testing.T) *SnapshotStore {
	t.Helper()
	s := NewSnapshotStore()
	for _, r := range []InstrumentRecord{
		FullRecord("HBL", 120, 500_000, 30, 10, 5, 12),
		FullRecord("LUCK", 700, 900_000, 40, 8, 6, 30),
		FullRecord("MCB", 210, 310_000, 20, 15, 9, 25),
	} {
		require.NoError(t, s.ApplyUpdate(r))
	}
	var partial InstrumentRecord
	partial.Key = "SYS"
	partial.Set(FieldPrice, 400)
	require.NoError(t, s.ApplyUpdate(partial))
	return s
}

func TestScreenerCompute(t *testing.T) {
	s, _ := newTestScreener(seedStore(t), newFakeTicker())

	v := s.Compute(DefaultParamValues())

	assert.Equal(t, "run-1", v.RunID)
	assert.Equal(t, SessionOpen, v.Session)
	assert.Equal(t, 4, v.Count)
	assert.Equal(t, DefaultParamValues(), v.Params)

	require.Len(t, v.Trading, 2)
	assert.Equal(t, "HBL", v.Trading[0].Key)
	assert.Equal(t, "MCB", v.Trading[1].Key)

	require.Len(t, v.Value, 2)
	assert.Equal(t, "LUCK", v.Value[0].Key)
	assert.Equal(t, "HBL", v.Value[1].Key)

	assert.Equal(t, "rsi", v.Chart.Field)
	assert.Equal(t, []string{"HBL", "LUCK", "MCB"}, v.Chart.Keys)
	assert.Equal(t, 40.0, v.Chart.Values["LUCK"])
}

func TestScreenerComputeEmptyStore(t *testing.T) {
	s, _ := newTestScreener(NewSnapshotStore(), newFakeTicker())

	v := s.Compute(DefaultParamValues())
	assert.Equal(t, 0, v.Count)
	assert.NotNil(t, v.Trading)
	assert.Empty(t, v.Trading)
	assert.Empty(t, v.Value)
	assert.Empty(t, v.Chart.Keys)
}

func TestScreenerTickUsesCurrentParams(t *testing.T) {
	s, m := newTestScreener(seedStore(t), newFakeTicker())

	_, err := s.params.Set(ParamValues{RSIMax: 45, MinVolume: 0})
	require.NoError(t, err)

	v := s.Tick(context.Background())
	require.Len(t, v.Trading, 3)
	assert.Equal(t, "LUCK", v.Trading[0].Key)
	assert.Same(t, v, s.Latest())
	assert.Equal(t, int64(1), m.ticks.Load())
}

// lastSink keeps only the most recently published view.
type lastSink struct {
	mu sync.Mutex
	v  *View
}

func (l *lastSink) PublishView(_ context.Context, v *View) error {
	l.mu.Lock()
	l.v = v
	l.mu.Unlock()
	return nil
}

func TestScreenerConcurrentTicksKeepNewestParams(t *testing.T) {
	sink := &lastSink{}
	s, _ := newTestScreener(seedStore(t), newFakeTicker(), sink)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = s.params.Set(ParamValues{RSIMax: float64(10 + i), MinVolume: int64(i)})
			s.Tick(context.Background())
		}(i)
	}
	wg.Wait()

	want := s.params.Get()
	assert.Equal(t, want, s.Latest().Params)
	sink.mu.Lock()
	defer sink.mu.Unlock()
	assert.Same(t, s.Latest(), sink.v)
}

func TestScreenerSinkErrorsAreCounted(t *testing.T) {
	bad := newRecordingSink()
	bad.err = errors.New("boom")
	good := newRecordingSink()
	s, m := newTestScreener(seedStore(t), newFakeTicker(), bad, good)

	s.Tick(context.Background())

	assert.Equal(t, 1, bad.count())
	assert.Equal(t, 1, good.count())
	assert.Equal(t, int64(1), m.publishErrors.Load())
	assert.Equal(t, int64(1), m.viewsPublished.Load())
}

func TestScreenerStartStop(t *testing.T) {
	tk := newFakeTicker()
	sink := newRecordingSink()
	s, _ := newTestScreener(seedStore(t), tk, sink)

	require.NoError(t, s.Start(context.Background()))
	assert.ErrorIs(t, s.Start(context.Background()), ErrScreenerRunning)

	sink.wait(t) // immediate first tick
	tk.c <- testNow()
	sink.wait(t)
	tk.c <- testNow()
	sink.wait(t)

	s.Stop()
	assert.Equal(t, 3, sink.count())
	assert.True(t, tk.isStopped())

	// stopped loops ignore further ticks
	select {
	case tk.c <- testNow():
		t.Fatal("loop still receiving after Stop")
	case <-time.After(50 * time.Millisecond):
	}
	s.Stop()

	// restart after stop is allowed
	require.NoError(t, s.Start(context.Background()))
	s.Stop()
}

func TestScreenerStopsOnContextCancel(t *testing.T) {
	tk := newFakeTicker()
	s, _ := newTestScreener(seedStore(t), tk)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, s.Start(ctx))
	cancel()

	require.Eventually(t, tk.isStopped, 2*time.Second, 10*time.Millisecond)
	s.Stop()
}

func TestSimSourceFillsStore(t *testing.T) {
	tk := newFakeTicker()
	m := NewMetrics(testNow(), "test", "", "")
	store := NewSnapshotStore()
	gen := NewGenerator(DefaultUniverse(), 42, false)
	src := NewSimSource(SimSourceConfig{
		Log:       NewNopLogger(),
		NewTicker: func(time.Duration) Ticker { return tk },
	}, gen, NewIngestor(store, nil, m, NewNopLogger()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		src.Run(ctx)
		close(done)
	}()

	n := int64(len(DefaultUniverse()))
	require.Eventually(t, func() bool { return m.Applied() == n }, 2*time.Second, 10*time.Millisecond)
	tk.c <- testNow()
	require.Eventually(t, func() bool { return m.Applied() == 2*n }, 2*time.Second, 10*time.Millisecond)

	cancel()
	<-done
	assert.Equal(t, int(n), store.Len())
}
