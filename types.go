package main

import (
	"fmt"
	"strings"
)

// Field names one numeric attribute of an instrument.
type Field uint8

const (
	FieldPrice Field = iota + 1
	FieldVolume
	FieldRSI
	FieldPERatio
	FieldDividendYield
	FieldEPS
)

var fieldNames = map[Field]string{
	FieldPrice:         "price",
	FieldVolume:        "volume",
	FieldRSI:           "rsi",
	FieldPERatio:       "pe_ratio",
	FieldDividendYield: "dividend_yield",
	FieldEPS:           "eps",
}

func (f Field) String() string {
	if s, ok := fieldNames[f]; ok {
		return s
	}
	return fmt.Sprintf("field(%d)", uint8(f))
}

// ParseField accepts canonical names plus a few spellings seen in feeds and
// query strings.
func ParseField(s string) (Field, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "price", "ltp":
		return FieldPrice, nil
	case "volume", "vol":
		return FieldVolume, nil
	case "rsi":
		return FieldRSI, nil
	case "pe_ratio", "pe", "peratio", "pe ratio":
		return FieldPERatio, nil
	case "dividend_yield", "yield", "dividendyield", "dividend yield":
		return FieldDividendYield, nil
	case "eps":
		return FieldEPS, nil
	}
	return 0, fmt.Errorf("unknown field %q", s)
}

// FieldSet is a bitmask of fields present on a record.
type FieldSet uint8

const AllFields = FieldSet(1<<FieldPrice | 1<<FieldVolume | 1<<FieldRSI |
	1<<FieldPERatio | 1<<FieldDividendYield | 1<<FieldEPS)

func (s FieldSet) Has(f Field) bool      { return s&(1<<f) != 0 }
func (s FieldSet) With(f Field) FieldSet { return s | 1<<f }
func (s FieldSet) Missing(f Field) bool  { return !s.Has(f) }
func (s FieldSet) Complete() bool        { return s&AllFields == AllFields }

// InstrumentRecord is one update for one instrument. Absent fields read as
// zero and are reported as missing by Value.
type InstrumentRecord struct {
	Key           string   `json:"key"`
	Price         float64  `json:"price"`
	Volume        int64    `json:"volume"`
	RSI           float64  `json:"rsi"`
	PERatio       float64  `json:"pe_ratio"`
	DividendYield float64  `json:"dividend_yield"`
	EPS           float64  `json:"eps"`
	Present       FieldSet `json:"-"`
}

// Value returns the numeric value of f and whether the record carries it.
func (r InstrumentRecord) Value(f Field) (float64, bool) {
	if !r.Present.Has(f) {
		return 0, false
	}
	switch f {
	case FieldPrice:
		return r.Price, true
	case FieldVolume:
		return float64(r.Volume), true
	case FieldRSI:
		return r.RSI, true
	case FieldPERatio:
		return r.PERatio, true
	case FieldDividendYield:
		return r.DividendYield, true
	case FieldEPS:
		return r.EPS, true
	}
	return 0, false
}

// Set assigns v to f and marks it present.
func (r *InstrumentRecord) Set(f Field, v float64) {
	switch f {
	case FieldPrice:
		r.Price = v
	case FieldVolume:
		r.Volume = int64(v)
	case FieldRSI:
		r.RSI = v
	case FieldPERatio:
		r.PERatio = v
	case FieldDividendYield:
		r.DividendYield = v
	case FieldEPS:
		r.EPS = v
	default:
		return
	}
	r.Present = r.Present.With(f)
}

// FullRecord builds a record with every field present.
func FullRecord(key string, price float64, volume int64, rsi, pe, dy, eps float64) InstrumentRecord {
	return InstrumentRecord{
		Key:           key,
		Price:         price,
		Volume:        volume,
		RSI:           rsi,
		PERatio:       pe,
		DividendYield: dy,
		EPS:           eps,
		Present:       AllFields,
	}
}

// RecordRow is the JSON shape handed to the dashboard. Missing fields are
// null rather than zero.
type RecordRow struct {
	Key           string   `json:"key"`
	Price         *float64 `json:"price"`
	Volume        *int64   `json:"volume"`
	RSI           *float64 `json:"rsi"`
	PERatio       *float64 `json:"pe_ratio"`
	DividendYield *float64 `json:"dividend_yield"`
	EPS           *float64 `json:"eps"`
}

func toRow(r InstrumentRecord) RecordRow {
	row := RecordRow{Key: r.Key}
	opt := func(f Field) *float64 {
		if v, ok := r.Value(f); ok {
			return &v
		}
		return nil
	}
	row.Price = opt(FieldPrice)
	if r.Present.Has(FieldVolume) {
		v := r.Volume
		row.Volume = &v
	}
	row.RSI = opt(FieldRSI)
	row.PERatio = opt(FieldPERatio)
	row.DividendYield = opt(FieldDividendYield)
	row.EPS = opt(FieldEPS)
	return row
}

func toRows(recs []InstrumentRecord) []RecordRow {
	out := make([]RecordRow, 0, len(recs))
	for _, r := range recs {
		out = append(out, toRow(r))
	}
	return out
}
