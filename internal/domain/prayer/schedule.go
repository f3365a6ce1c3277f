package prayer

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	apperrors "github.com/yanqian/prayer-companion/pkg/errors"
	"github.com/yanqian/prayer-companion/pkg/util"
)

var timeOfDayPattern = regexp.MustCompile(`^([01][0-9]|2[0-3]):([0-5][0-9])$`)

// fallbackTimes are the fixed illustrative times used when no provider data is available.
var fallbackTimes = map[Name]string{
	Fajr:    "05:00",
	Sunrise: "06:15",
	Dhuhr:   "12:30",
	Asr:     "15:45",
	Maghrib: "18:20",
	Isha:    "19:50",
}

// ParseTimeOfDay parses a strict HH:MM string.
func ParseTimeOfDay(raw string) (hour, minute int, err error) {
	match := timeOfDayPattern.FindStringSubmatch(raw)
	if match == nil {
		return 0, 0, apperrors.Wrap(CodeTimingParseError, fmt.Sprintf("malformed time %q", raw), nil)
	}
	hour, _ = strconv.Atoi(match[1])
	minute, _ = strconv.Atoi(match[2])
	return hour, minute, nil
}

// BuildSchedule maps raw HH:MM strings onto epoch timestamps for day in loc.
// Every canonical name must be present and the resulting timestamps must be strictly increasing.
func BuildSchedule(day time.Time, loc *time.Location, raw map[Name]string, coord Coordinate, method Method) (DailySchedule, error) {
	if loc == nil {
		loc = time.Local
	}
	local := day.In(loc)
	events := make([]Event, 0, len(Names))
	var prev int64
	for i, name := range Names {
		value, ok := raw[name]
		if !ok {
			return DailySchedule{}, apperrors.Wrap(CodeTimingParseError, fmt.Sprintf("missing time for %s", name), nil)
		}
		hour, minute, err := ParseTimeOfDay(value)
		if err != nil {
			return DailySchedule{}, err
		}
		ts := time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, loc).UnixMilli()
		if i > 0 && ts <= prev {
			return DailySchedule{}, apperrors.Wrap(CodeTimingParseError, fmt.Sprintf("%s at %s is not after %s", name, value, Names[i-1]), nil)
		}
		prev = ts
		events = append(events, Event{
			Name:                 name,
			TimeOfDay:            value,
			TimestampMs:          ts,
			NotificationsEnabled: name.Notifiable(),
		})
	}
	return DailySchedule{
		Date:       util.DateKey(local, loc),
		Coordinate: coord,
		Method:     method,
		Events:     events,
	}, nil
}

// FallbackSchedule returns the fixed schedule substituted when the provider fails.
func FallbackSchedule(day time.Time, loc *time.Location, coord Coordinate, method Method) DailySchedule {
	schedule, err := BuildSchedule(day, loc, fallbackTimes, coord, method)
	if err != nil {
		// fallbackTimes is a literal; a failure here is a programming error.
		panic(err)
	}
	schedule.Fallback = true
	return schedule
}
