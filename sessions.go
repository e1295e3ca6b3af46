package main

import "time"

const (
	SessionPreOpen = "PRE"
	SessionOpen    = "OPEN"
	SessionClosed  = "CLOSED"
)

// SessionForPSX reports the PSX session for t, which must already be in
// Asia/Karachi:
// PRE  = 09:15:00 to 09:30:00
// OPEN = 09:30:00 to 15:30:00
// weekends and everything else CLOSED.
func SessionForPSX(t time.Time) string {
	switch t.Weekday() {
	case time.Saturday, time.Sunday:
		return SessionClosed
	}

	h, m, s := t.Clock()
	sec := h*3600 + m*60 + s

	preStart := 9*3600 + 15*60
	openStart := 9*3600 + 30*60
	closeAt := 15*3600 + 30*60

	switch {
	case sec >= preStart && sec < openStart:
		return SessionPreOpen
	case sec >= openStart && sec < closeAt:
		return SessionOpen
	default:
		return SessionClosed
	}
}

func loadKarachi() *time.Location {
	loc, err := time.LoadLocation("Asia/Karachi")
	if err != nil {
		return time.FixedZone("PKT", 5*3600)
	}
	return loc
}
