package main

import (
	"time"

	"github.com/google/uuid"
)

// RunContext is computed once at program start and stamped into every view.
type RunContext struct {
	ID    string
	Start time.Time
}

func newRunContext(now time.Time) RunContext {
	return RunContext{
		ID:    uuid.NewString(),
		Start: time.UnixMilli(now.UnixMilli()).In(now.Location()), // ms precision, no monotonic
	}
}
