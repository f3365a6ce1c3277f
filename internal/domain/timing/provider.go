package timing

import (
	"context"
	"time"

	"github.com/yanqian/prayer-companion/internal/domain/prayer"
)

// Provider fetches prayer schedules from an external source.
//
// FetchDay returns an AppError coded timing_unavailable for transport or body
// failures and timing_parse_error for malformed time strings.
type Provider interface {
	FetchDay(ctx context.Context, coord prayer.Coordinate, day time.Time, method prayer.Method) (prayer.DailySchedule, error)
	FetchMonth(ctx context.Context, coord prayer.Coordinate, year int, month time.Month, method prayer.Method) ([]prayer.DailySchedule, error)
}

// Query identifies a single day's schedule.
type Query struct {
	Coordinate prayer.Coordinate
	Date       time.Time
	Method     prayer.Method
}

// Config tunes the timing service.
type Config struct {
	// Location is the zone used for day boundaries and timestamps.
	Location *time.Location
	// Timeout bounds a single provider call; expiry is treated as a provider failure.
	Timeout time.Duration
}
