package countdown

import (
	"time"

	"github.com/yanqian/prayer-companion/internal/domain/prayer"
)

// Window ids.
const (
	WindowPreAlert = "pre_alert"
	WindowOnset    = "onset"
)

// Window is a lead time before a prayer at which a threshold event fires.
type Window struct {
	ID   string        `json:"id"`
	Lead time.Duration `json:"lead"`
}

// DefaultWindows returns the pre-alert and onset windows.
func DefaultWindows(preAlert time.Duration) []Window {
	return []Window{
		{ID: WindowPreAlert, Lead: preAlert},
		{ID: WindowOnset, Lead: 0},
	}
}

// Tick is emitted once per interval.
type Tick struct {
	Current     prayer.Event `json:"current"`
	Next        prayer.Event `json:"next"`
	RemainingMs int64        `json:"remainingMs"`
	Formatted   string       `json:"formatted"`
	At          time.Time    `json:"at"`
	// Rederived is set when the wall clock moved backward or the target was
	// already in the past, and the countdown was clamped instead of going negative.
	Rederived bool `json:"rederived"`
}

// Crossing is a threshold event for one prayer occurrence and window.
type Crossing struct {
	Event  prayer.Event `json:"event"`
	Window Window       `json:"window"`
	At     time.Time    `json:"at"`
}

// Key identifies the occurrence and window the crossing belongs to.
func (c Crossing) Key() FiredKey {
	return FiredKey{Name: c.Event.Name, TimestampMs: c.Event.TimestampMs, WindowID: c.Window.ID}
}

// FiredKey identifies a consumed threshold window.
type FiredKey struct {
	Name        prayer.Name
	TimestampMs int64
	WindowID    string
}
