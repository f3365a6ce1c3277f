package metrics

import "sync/atomic"

// EngineCounters tracks lifetime totals for the prayer engine.
type EngineCounters struct {
	refreshes         atomic.Int64
	staleFetches      atomic.Int64
	fallbackSchedules atomic.Int64
	notifications     atomic.Int64
	playbackFailures  atomic.Int64
}

// EngineUsage is a point in time copy of EngineCounters.
type EngineUsage struct {
	Refreshes         int64 `json:"refreshes"`
	StaleFetches      int64 `json:"staleFetches"`
	FallbackSchedules int64 `json:"fallbackSchedules"`
	Notifications     int64 `json:"notifications"`
	PlaybackFailures  int64 `json:"playbackFailures"`
}

// NewEngineCounters constructs zeroed counters.
func NewEngineCounters() *EngineCounters {
	return &EngineCounters{}
}

func (c *EngineCounters) IncRefresh() { c.refreshes.Add(1) }
func (c *EngineCounters) IncStaleFetch() { c.staleFetches.Add(1) }
func (c *EngineCounters) IncFallbackSchedule() { c.fallbackSchedules.Add(1) }
func (c *EngineCounters) IncNotification() { c.notifications.Add(1) }
func (c *EngineCounters) IncPlaybackFailure() { c.playbackFailures.Add(1) }

// Snapshot copies the current totals.
func (c *EngineCounters) Snapshot() EngineUsage {
	return EngineUsage{
		Refreshes:         c.refreshes.Load(),
		StaleFetches:      c.staleFetches.Load(),
		FallbackSchedules: c.fallbackSchedules.Load(),
		Notifications:     c.notifications.Load(),
		PlaybackFailures:  c.playbackFailures.Load(),
	}
}

// IsZero reports whether nothing has been recorded yet.
func (u EngineUsage) IsZero() bool {
	return u == EngineUsage{}
}
