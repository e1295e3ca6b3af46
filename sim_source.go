package main

import (
	"context"
	"time"
)

// Source feeds the store until ctx is cancelled.
type Source interface {
	Run(ctx context.Context)
}

type SimSourceConfig struct {
	Interval time.Duration
	Log      *Logger

	NewTicker func(time.Duration) Ticker // default time.Ticker
}

// SimSource pushes a full synthetic batch on every interval, starting
// immediately.
type SimSource struct {
	cfg    SimSourceConfig
	gen    *Generator
	ingest *Ingestor
}

func NewSimSource(cfg SimSourceConfig, gen *Generator, in *Ingestor) *SimSource {
	if cfg.Interval <= 0 {
		cfg.Interval = 2 * time.Second
	}
	if cfg.NewTicker == nil {
		cfg.NewTicker = newRealTicker
	}
	return &SimSource{cfg: cfg, gen: gen, ingest: in}
}

func (s *SimSource) Run(ctx context.Context) {
	t := s.cfg.NewTicker(s.cfg.Interval)
	defer t.Stop()

	s.cfg.Log.Infof("sim source started (interval=%s)", s.cfg.Interval)
	s.emit()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C():
			s.emit()
		}
	}
}

func (s *SimSource) emit() {
	n := s.ingest.Apply(s.gen.Batch()...)
	s.cfg.Log.Debugf("sim batch applied records=%d", n)
}

// sleepCtx waits for d or ctx, reporting false when ctx ended first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
