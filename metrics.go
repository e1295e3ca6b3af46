package main

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

type Metrics struct {
	start time.Time

	version   string
	commit    string
	buildDate string

	reconnectOK atomic.Int64
	reconnectNG atomic.Int64

	messages atomic.Int64
	applied  atomic.Int64

	discardBadJSON    atomic.Int64
	discardMissingKey atomic.Int64
	discardEmptyBatch atomic.Int64

	ticks          atomic.Int64
	viewsPublished atomic.Int64
	publishErrors  atomic.Int64
	lastTickAtMs   atomic.Int64

	mu      sync.Mutex
	samples []rateSample // appended each second
}

type rateSample struct {
	at      time.Time
	applied int64
}

func NewMetrics(start time.Time, version, commit, buildDate string) *Metrics {
	return &Metrics{
		start:     start,
		version:   version,
		commit:    commit,
		buildDate: buildDate,
		samples:   make([]rateSample, 0, 16),
	}
}

func (m *Metrics) IncMessage() { m.messages.Add(1) }
func (m *Metrics) IncApplied() { m.applied.Add(1) }

func (m *Metrics) Discard(reason DiscardReason) {
	switch reason {
	case DiscardMissingKey:
		m.discardMissingKey.Add(1)
	case DiscardEmptyBatch:
		m.discardEmptyBatch.Add(1)
	default:
		m.discardBadJSON.Add(1)
	}
}

// Discarded returns the count for one reason.
func (m *Metrics) Discarded(reason DiscardReason) int64 {
	switch reason {
	case DiscardMissingKey:
		return m.discardMissingKey.Load()
	case DiscardEmptyBatch:
		return m.discardEmptyBatch.Load()
	default:
		return m.discardBadJSON.Load()
	}
}

func (m *Metrics) Applied() int64 { return m.applied.Load() }

func (m *Metrics) Tick() {
	m.ticks.Add(1)
	m.lastTickAtMs.Store(time.Now().UnixMilli())
}
func (m *Metrics) ViewPublished() { m.viewsPublished.Add(1) }
func (m *Metrics) PublishError()  { m.publishErrors.Add(1) }

func (m *Metrics) ReconnectAttemptFailed() { m.reconnectNG.Add(1) }
func (m *Metrics) ReconnectSucceeded()     { m.reconnectOK.Add(1) }

func (m *Metrics) Run(ctx context.Context) {
	t := time.NewTicker(1 * time.Second)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			n := m.applied.Load()

			m.mu.Lock()
			m.samples = append(m.samples, rateSample{at: now, applied: n})
			// keep last ~30s
			if len(m.samples) > 40 {
				m.samples = m.samples[len(m.samples)-40:]
			}
			m.mu.Unlock()
		}
	}
}

func (m *Metrics) Snapshot() map[string]any {
	uptime := time.Since(m.start)
	r1, r5 := m.updateRates()

	return map[string]any{
		"ok": true,

		"uptime_ms": uptime.Milliseconds(),
		"uptime":    uptime.String(),

		"build": map[string]any{
			"version":    m.version,
			"commit":     m.commit,
			"build_date": m.buildDate,
		},

		"reconnect": map[string]any{
			"success": m.reconnectOK.Load(),
			"failed":  m.reconnectNG.Load(),
		},

		"ingest": map[string]any{
			"messages_total": m.messages.Load(),
			"applied_total":  m.applied.Load(),
			"updates_per_s": map[string]any{
				"1s": r1,
				"5s": r5,
			},
			"discarded": map[string]any{
				string(DiscardBadJSON):    m.discardBadJSON.Load(),
				string(DiscardMissingKey): m.discardMissingKey.Load(),
				string(DiscardEmptyBatch): m.discardEmptyBatch.Load(),
			},
		},

		"screener": map[string]any{
			"ticks_total":           m.ticks.Load(),
			"last_tick_at_unix_ms":  m.lastTickAtMs.Load(),
			"views_published_total": m.viewsPublished.Load(),
			"publish_errors_total":  m.publishErrors.Load(),
		},
	}
}

func (m *Metrics) updateRates() (rate1 float64, rate5 float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.samples) < 2 {
		return 0, 0
	}
	latest := m.samples[len(m.samples)-1]

	prev := m.samples[len(m.samples)-2]
	dt := latest.at.Sub(prev.at).Seconds()
	if dt > 0 {
		rate1 = float64(latest.applied-prev.applied) / dt
	}

	// 5s rate: find sample >= 5s ago
	var older *rateSample
	for i := len(m.samples) - 1; i >= 0; i-- {
		if latest.at.Sub(m.samples[i].at) >= 5*time.Second {
			older = &m.samples[i]
			break
		}
	}
	if older != nil {
		dt5 := latest.at.Sub(older.at).Seconds()
		if dt5 > 0 {
			rate5 = float64(latest.applied-older.applied) / dt5
		}
	}
	return
}
