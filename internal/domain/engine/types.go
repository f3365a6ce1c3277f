package engine

import (
	"context"
	"time"

	"github.com/yanqian/prayer-companion/internal/domain/adhan"
	"github.com/yanqian/prayer-companion/internal/domain/countdown"
	"github.com/yanqian/prayer-companion/internal/domain/location"
	"github.com/yanqian/prayer-companion/internal/domain/prayer"
	"github.com/yanqian/prayer-companion/pkg/metrics"
)

// Refresh reasons.
const (
	ReasonStartup         = "startup"
	ReasonLocationChanged = "location_changed"
	ReasonMethodChanged   = "method_changed"
	ReasonDayRollover     = "day_rollover"
	ReasonManual          = "manual"
)

// Config drives engine behavior.
type Config struct {
	Location       *time.Location
	TickInterval   time.Duration
	PreAlertLead   time.Duration
	AutoPlay       bool
	RefreshTimeout time.Duration
}

// Locator resolves and overrides the scheduling coordinate.
type Locator interface {
	Resolve(ctx context.Context) location.Resolution
	SaveOverride(ctx context.Context, coord prayer.Coordinate) error
	ClearOverride(ctx context.Context) error
}

// ThresholdHandler consumes threshold crossings.
type ThresholdHandler interface {
	OnThresholdCrossed(ctx context.Context, crossing countdown.Crossing) bool
}

// AssetResolver maps a prayer and reciter onto audio addresses.
type AssetResolver interface {
	Resolve(ctx context.Context, name prayer.Name, reciter string) (adhan.Assets, error)
}

// Countdown is the derived time remaining to the next prayer.
type Countdown struct {
	Target      prayer.Name `json:"target"`
	RemainingMs int64       `json:"remainingMs"`
	Formatted   string      `json:"formatted"`
	At          time.Time   `json:"at"`
}

// LocationView describes the coordinate in use.
type LocationView struct {
	Coordinate prayer.Coordinate `json:"coordinate"`
	Source     location.Source   `json:"source"`
}

// Snapshot is a consistent view of the engine state.
type Snapshot struct {
	Schedule    prayer.DailySchedule `json:"schedule"`
	Current     prayer.Event         `json:"current"`
	Next        prayer.Event         `json:"next"`
	Countdown   Countdown            `json:"countdown"`
	Location    LocationView         `json:"location"`
	Notices     []prayer.Notice      `json:"notices"`
	RefreshedAt time.Time            `json:"refreshedAt"`
	Stats       metrics.EngineUsage  `json:"stats"`
}
