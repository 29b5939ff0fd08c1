package service

import (
	"fmt"
	"time"

	"github.com/iliyamo/eventhub/internal/model"
)

// Window is the schedule of a session or workshop.
type Window struct {
	StartsAt time.Time
	EndsAt   time.Time
}

// Duration returns the window length in whole seconds.
func (w Window) Duration() int64 { return int64(w.EndsAt.Sub(w.StartsAt) / time.Second) }

// CheckAndCalculateTime validates a window against the event and the
// remaining time budget of the property and returns the signed number of
// seconds to subtract from the budget.  plusTime is the duration the
// caller is giving back (the old duration on update, zero on create).
func CheckAndCalculateTime(event *model.Event, w Window, kind model.PropertyKind, plusTime int64) (int64, error) {
	if w.StartsAt.Before(event.StartsAt) || w.EndsAt.After(event.EndsAt) {
		return 0, fmt.Errorf("cannot schedule %s: %w", kind, ErrOutOfEventDuration)
	}
	duration := w.Duration()
	var remaining int64
	if p := event.Property(kind); p != nil {
		remaining = p.RemainingSeconds
	}
	if duration > remaining+plusTime {
		return 0, fmt.Errorf("cannot schedule %s: %w", kind, ErrNotEnoughTime)
	}
	return duration - plusTime, nil
}

// RestoreSeconds returns the budget after giving back duration seconds,
// capped at the property total.
func RestoreSeconds(p *model.EventProperty, duration int64) int64 {
	r := p.RemainingSeconds + duration
	if r > p.TotalSeconds {
		return p.TotalSeconds
	}
	return r
}
