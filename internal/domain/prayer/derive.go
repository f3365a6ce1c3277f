package prayer

import "fmt"

// Position is the pair of events bracketing a moment in time.
type Position struct {
	Current Event `json:"current"`
	Next    Event `json:"next"`
	// Wrapped is set once every event of the day has passed. Next then reuses
	// today's first event as a stand-in for tomorrow's.
	Wrapped bool `json:"wrapped"`
}

// DeriveCurrentAndNext locates nowMs within schedule. It is pure: identical
// inputs always produce identical output. ok is false only for an empty schedule.
func DeriveCurrentAndNext(schedule DailySchedule, nowMs int64) (Position, bool) {
	events := schedule.Events
	if len(events) == 0 {
		return Position{}, false
	}
	last := events[len(events)-1]
	for i, ev := range events {
		if ev.TimestampMs <= nowMs {
			continue
		}
		if i == 0 {
			return Position{Current: last, Next: ev}, true
		}
		return Position{Current: events[i-1], Next: ev}, true
	}
	return Position{Current: last, Next: events[0], Wrapped: true}, true
}

// FormatRemaining renders a duration in milliseconds as "{h}h {m}m {s}s".
// Negative values are clamped to zero.
func FormatRemaining(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	total := ms / 1000
	return fmt.Sprintf("%dh %dm %ds", total/3600, (total%3600)/60, total%60)
}
