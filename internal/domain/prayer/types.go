package prayer

import (
	"strings"
	"time"
)

// Name identifies one of the six daily prayer timepoints.
type Name string

const (
	Fajr    Name = "Fajr"
	Sunrise Name = "Sunrise"
	Dhuhr   Name = "Dhuhr"
	Asr     Name = "Asr"
	Maghrib Name = "Maghrib"
	Isha    Name = "Isha"
)

// Names lists the daily timepoints in chronological order.
var Names = []Name{Fajr, Sunrise, Dhuhr, Asr, Maghrib, Isha}

// Valid reports whether n is one of the canonical names.
func (n Name) Valid() bool {
	for _, candidate := range Names {
		if candidate == n {
			return true
		}
	}
	return false
}

// Notifiable reports whether n can be the target of an alert or adhan.
// Sunrise is informational only.
func (n Name) Notifiable() bool {
	return n.Valid() && n != Sunrise
}

// ParseName resolves a prayer name case-insensitively.
func ParseName(raw string) (Name, bool) {
	trimmed := strings.TrimSpace(raw)
	for _, candidate := range Names {
		if strings.EqualFold(string(candidate), trimmed) {
			return candidate, true
		}
	}
	return "", false
}

// Method selects the external convention used to compute prayer times.
// The value is passed through to the timing provider untouched.
type Method int

// DefaultMethod is Umm al-Qura, Makkah.
const DefaultMethod Method = 4

// Valid reports whether m is a known provider method id.
func (m Method) Valid() bool {
	return (m >= 0 && m <= 23) || m == 99
}

// Event is a single timepoint of a daily schedule.
type Event struct {
	Name                 Name   `json:"name"`
	TimeOfDay            string `json:"timeOfDay"`
	TimestampMs          int64  `json:"timestampMs"`
	NotificationsEnabled bool   `json:"notificationsEnabled"`
}

// Time converts the event timestamp to a time.Time.
func (e Event) Time() time.Time {
	return time.UnixMilli(e.TimestampMs)
}

// Notifiable reports whether the event can trigger an alert.
func (e Event) Notifiable() bool {
	return e.Name.Notifiable()
}

// DailySchedule holds the six ordered events for one day, coordinate and method.
type DailySchedule struct {
	Date       string     `json:"date"`
	Coordinate Coordinate `json:"coordinate"`
	Method     Method     `json:"method"`
	Events     []Event    `json:"events"`
	Fallback   bool       `json:"fallback"`
}

// Event returns the event with the given name.
func (s DailySchedule) Event(name Name) (Event, bool) {
	for _, ev := range s.Events {
		if ev.Name == name {
			return ev, true
		}
	}
	return Event{}, false
}

// WithNotifications returns a copy with per-name toggles applied.
// Names missing from enabled keep their current flag; Sunrise is always disabled.
func (s DailySchedule) WithNotifications(enabled map[Name]bool) DailySchedule {
	out := s
	out.Events = make([]Event, len(s.Events))
	for i, ev := range s.Events {
		if on, ok := enabled[ev.Name]; ok {
			ev.NotificationsEnabled = on
		}
		if !ev.Notifiable() {
			ev.NotificationsEnabled = false
		}
		out.Events[i] = ev
	}
	return out
}

// Empty reports whether the schedule carries no events.
func (s DailySchedule) Empty() bool {
	return len(s.Events) == 0
}

// Notice is a non-fatal, user facing condition with the recovery actions on offer.
type Notice struct {
	Code    string   `json:"code"`
	Message string   `json:"message"`
	Actions []string `json:"actions,omitempty"`
}

// Recovery actions surfaced alongside notices.
const (
	ActionRetry          = "retry"
	ActionFallbackSource = "fallback_source"
	ActionUpdateLocation = "update_location"
)
