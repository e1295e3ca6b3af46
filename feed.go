package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

var (
	ErrMalformedPayload = errors.New("malformed payload")
	ErrEmptyBatch       = errors.New("empty batch")
)

// DiscardReason names why an inbound message or record was dropped.
type DiscardReason string

const (
	DiscardBadJSON    DiscardReason = "bad_json"
	DiscardMissingKey DiscardReason = "missing_key"
	DiscardEmptyBatch DiscardReason = "empty_batch"
)

func discardReasonFor(err error) DiscardReason {
	switch {
	case errors.Is(err, ErrMissingKey):
		return DiscardMissingKey
	case errors.Is(err, ErrEmptyBatch):
		return DiscardEmptyBatch
	default:
		return DiscardBadJSON
	}
}

// wireRecord accepts both the full batch shape and the partial real-time
// shape {symbol, ltp, volume}.
type wireRecord struct {
	Key           string   `json:"key"`
	Symbol        string   `json:"symbol"`
	Ticker        string   `json:"ticker"`
	Price         *float64 `json:"price"`
	LTP           *float64 `json:"ltp"`
	Volume        *float64 `json:"volume"`
	RSI           *float64 `json:"rsi"`
	PERatio       *float64 `json:"pe_ratio"`
	DividendYield *float64 `json:"dividend_yield"`
	EPS           *float64 `json:"eps"`
}

func (w wireRecord) record() (InstrumentRecord, error) {
	rec := InstrumentRecord{Key: firstNonEmpty(w.Key, w.Symbol, w.Ticker)}
	if w.Volume != nil && !validVolume(*w.Volume) {
		return rec, fmt.Errorf("%w: volume %v is not a share count", ErrMalformedPayload, *w.Volume)
	}
	set := func(f Field, v *float64) {
		if v != nil {
			rec.Set(f, *v)
		}
	}
	set(FieldPrice, w.Price)
	// ltp wins over price when a message carries both
	set(FieldPrice, w.LTP)
	set(FieldVolume, w.Volume)
	set(FieldRSI, w.RSI)
	set(FieldPERatio, w.PERatio)
	set(FieldDividendYield, w.DividendYield)
	set(FieldEPS, w.EPS)
	return rec, nil
}

// validVolume accepts whole, non-negative counts that fit an int64.
func validVolume(v float64) bool {
	return v >= 0 && v < math.MaxInt64 && v == math.Trunc(v)
}

// DecodeUpdates parses one inbound message: either a JSON array of records or
// a single record object. Records without a key are returned as-is; the store
// rejects them.
func DecodeUpdates(payload []byte) ([]InstrumentRecord, error) {
	p := bytes.TrimSpace(payload)
	if len(p) == 0 {
		return nil, fmt.Errorf("%w: empty message", ErrMalformedPayload)
	}

	switch p[0] {
	case '[':
		var batch []wireRecord
		if err := json.Unmarshal(p, &batch); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
		}
		if len(batch) == 0 {
			return nil, ErrEmptyBatch
		}
		out := make([]InstrumentRecord, 0, len(batch))
		for _, w := range batch {
			rec, err := w.record()
			if err != nil {
				return nil, err
			}
			out = append(out, rec)
		}
		return out, nil

	case '{':
		var w wireRecord
		if err := json.Unmarshal(p, &w); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
		}
		rec, err := w.record()
		if err != nil {
			return nil, err
		}
		return []InstrumentRecord{rec}, nil
	}
	return nil, fmt.Errorf("%w: expected object or array", ErrMalformedPayload)
}

// MetricsSource fills derived metrics (RSI, P/E, yield, EPS) that an update did
// not carry. Implementations only touch missing fields.
type MetricsSource interface {
	Fill(rec *InstrumentRecord)
}

// Ingestor turns inbound messages into store updates. Anything it cannot use
// is dropped and counted by reason; nothing is returned to the feed.
type Ingestor struct {
	store   *SnapshotStore
	fill    MetricsSource // optional
	metrics *Metrics
	log     *Logger
}

func NewIngestor(store *SnapshotStore, fill MetricsSource, m *Metrics, log *Logger) *Ingestor {
	return &Ingestor{store: store, fill: fill, metrics: m, log: log}
}

// HandleMessage decodes payload and applies every usable record. It returns
// the number of records applied.
func (in *Ingestor) HandleMessage(payload []byte) int {
	in.metrics.IncMessage()

	recs, err := DecodeUpdates(payload)
	if err != nil {
		in.discard(discardReasonFor(err), err)
		return 0
	}
	return in.Apply(recs...)
}

// Apply writes records to the store, filling missing metrics first.
func (in *Ingestor) Apply(recs ...InstrumentRecord) int {
	n := 0
	for _, rec := range recs {
		if in.fill != nil && normalizeKey(rec.Key) != "" {
			in.fill.Fill(&rec)
		}
		if err := in.store.ApplyUpdate(rec); err != nil {
			in.discard(discardReasonFor(err), err)
			continue
		}
		in.metrics.IncApplied()
		n++
	}
	return n
}

func (in *Ingestor) discard(reason DiscardReason, err error) {
	in.metrics.Discard(reason)
	in.log.Debugf("update dropped reason=%s: %v", reason, err)
}

func firstNonEmpty(ss ...string) string {
	for _, s := range ss {
		if s != "" {
			return s
		}
	}
	return ""
}
