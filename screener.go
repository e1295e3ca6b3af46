package main

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

var ErrScreenerRunning = errors.New("screener already running")

// Ticker is the periodic trigger of the screener loop. Tests drive it by hand.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type realTicker struct{ t *time.Ticker }

func (r realTicker) C() <-chan time.Time { return r.t.C }
func (r realTicker) Stop()               { r.t.Stop() }

func newRealTicker(d time.Duration) Ticker { return realTicker{t: time.NewTicker(d)} }

// ViewSink receives every computed view. Implementations must not block for
// long; the loop calls them inline.
type ViewSink interface {
	PublishView(ctx context.Context, v *View) error
}

type ChartView struct {
	Field  string             `json:"field"`
	Keys   []string           `json:"keys"`
	Values map[string]float64 `json:"values"`
}

// View is one screen result: both top-N tables plus the chart projection.
type View struct {
	RunID   string      `json:"run_id"`
	AsOf    time.Time   `json:"as_of"`
	Session string      `json:"session"`
	Params  ParamValues `json:"params"`
	Count   int         `json:"count"`
	Trading []RecordRow `json:"trading"`
	Value   []RecordRow `json:"value"`
	Chart   ChartView   `json:"chart"`
}

type ScreenerConfig struct {
	Interval   time.Duration
	ChartField Field
	RunID      string
	Loc        *time.Location
	Log        *Logger

	NewTicker func(time.Duration) Ticker // default time.Ticker
	Now       func() time.Time           // default time.Now
}

// Screener periodically ranks the store and hands the result to its sinks.
type Screener struct {
	cfg     ScreenerConfig
	store   *SnapshotStore
	params  *Params
	metrics *Metrics
	sinks   []ViewSink

	latest atomic.Pointer[View]
	tickMu sync.Mutex // orders compute, store and publish across callers

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewScreener(cfg ScreenerConfig, store *SnapshotStore, params *Params, m *Metrics, sinks ...ViewSink) *Screener {
	if cfg.Interval <= 0 {
		cfg.Interval = 2 * time.Second
	}
	if cfg.ChartField == 0 {
		cfg.ChartField = FieldRSI
	}
	if cfg.Loc == nil {
		cfg.Loc = loadKarachi()
	}
	if cfg.NewTicker == nil {
		cfg.NewTicker = newRealTicker
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Screener{
		cfg:     cfg,
		store:   store,
		params:  params,
		metrics: m,
		sinks:   sinks,
	}
}

// Compute ranks the current snapshot with p. It does not publish.
func (s *Screener) Compute(p ParamValues) *View {
	recs := s.store.CurrentRecords()
	now := s.cfg.Now().In(s.cfg.Loc)

	trading := Rank(recs, TradingPolicy(p.RSIMax, p.MinVolume))
	value := Rank(recs, ValuePolicy())
	chart := Summarize(recs, s.cfg.ChartField)

	keys := make([]string, 0, len(chart))
	for _, r := range recs {
		if _, ok := chart[r.Key]; ok {
			keys = append(keys, r.Key)
		}
	}

	return &View{
		RunID:   s.cfg.RunID,
		AsOf:    now,
		Session: SessionForPSX(now),
		Params:  p,
		Count:   len(recs),
		Trading: toRows(trading),
		Value:   toRows(value),
		Chart: ChartView{
			Field:  s.cfg.ChartField.String(),
			Keys:   keys,
			Values: chart,
		},
	}
}

// Tick computes a view with the current params, stores it as the latest and
// publishes it to every sink. Concurrent calls run one at a time, so the stored
// view and the last one published are always the most recently computed.
func (s *Screener) Tick(ctx context.Context) *View {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()

	v := s.Compute(s.params.Get())
	s.latest.Store(v)
	s.metrics.Tick()

	for _, sink := range s.sinks {
		if err := sink.PublishView(ctx, v); err != nil {
			s.metrics.PublishError()
			s.cfg.Log.Warnf("publish view failed: %v", err)
			continue
		}
		s.metrics.ViewPublished()
	}
	return v
}

// Latest returns the most recent view, computing one if no tick ran yet.
func (s *Screener) Latest() *View {
	if v := s.latest.Load(); v != nil {
		return v
	}
	return s.Compute(s.params.Get())
}

// Start runs the loop in a goroutine until Stop or ctx cancellation. A first
// tick runs immediately.
func (s *Screener) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done != nil {
		return ErrScreenerRunning
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	t := s.cfg.NewTicker(s.cfg.Interval)
	go s.run(ctx, t, s.done)
	return nil
}

func (s *Screener) run(ctx context.Context, t Ticker, done chan struct{}) {
	defer close(done)
	defer t.Stop()

	s.Tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C():
			s.Tick(ctx)
		}
	}
}

// Stop cancels the loop and waits for it to exit. Safe to call when stopped.
func (s *Screener) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}
