package main

import (
	"errors"
	"fmt"
	"math"
	"sync"
)

const (
	DefaultRSIMax    = 35
	DefaultMinVolume = 300_000

	rsiMaxLow  = 10
	rsiMaxHigh = 70
)

var ErrInvalidParams = errors.New("invalid params")

// ParamValues are the user-adjustable screen inputs.
type ParamValues struct {
	RSIMax    float64 `json:"rsi_max"`
	MinVolume int64   `json:"min_volume"`
}

func DefaultParamValues() ParamValues {
	return ParamValues{RSIMax: DefaultRSIMax, MinVolume: DefaultMinVolume}
}

// normalize clamps RSIMax into [10,70] and rejects NaN or a negative volume.
func (v ParamValues) normalize() (ParamValues, error) {
	if math.IsNaN(v.RSIMax) || math.IsInf(v.RSIMax, 0) {
		return v, fmt.Errorf("%w: rsi_max must be a number", ErrInvalidParams)
	}
	if v.MinVolume < 0 {
		return v, fmt.Errorf("%w: min_volume must be >= 0", ErrInvalidParams)
	}
	v.RSIMax = math.Min(math.Max(v.RSIMax, rsiMaxLow), rsiMaxHigh)
	return v, nil
}

// Params holds the current values; the screener reads them once per tick.
type Params struct {
	mu sync.RWMutex
	v  ParamValues
}

func NewParams(v ParamValues) *Params {
	nv, err := v.normalize()
	if err != nil {
		nv = DefaultParamValues()
	}
	return &Params{v: nv}
}

func (p *Params) Get() ParamValues {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.v
}

// Set stores v after normalizing it and returns what was stored.
func (p *Params) Set(v ParamValues) (ParamValues, error) {
	nv, err := v.normalize()
	if err != nil {
		return p.Get(), err
	}
	p.mu.Lock()
	p.v = nv
	p.mu.Unlock()
	return nv, nil
}
