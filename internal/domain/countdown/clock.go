package countdown

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/yanqian/prayer-companion/internal/domain/prayer"
)

// ErrClockStopped is returned when Start is called on a clock that was stopped.
var ErrClockStopped = errors.New("countdown clock already stopped")

// ErrClockRunning is returned when Start is called twice.
var ErrClockRunning = errors.New("countdown clock already running")

// Config contains runtime options for Clock.
type Config struct {
	TickInterval time.Duration
	Windows      []Window
}

// Option customises a Clock.
type Option func(*Clock)

// WithNow injects the wall clock.
func WithNow(now func() time.Time) Option {
	return func(c *Clock) {
		c.now = now
	}
}

// Clock drives the countdown for a single schedule. It is single use: once
// stopped it cannot be restarted, and a replaced schedule gets a new Clock.
type Clock struct {
	mu          sync.Mutex
	cfg         Config
	buffer      int64
	schedule    prayer.DailySchedule
	onTick      func(Tick)
	onThreshold func(Crossing)
	fired       map[FiredKey]struct{}
	lastMs      int64
	running     bool
	stopped     bool
	stopCh      chan struct{}
	now         func() time.Time
	logger      *slog.Logger
}

// NewClock creates a Clock. The polling buffer is 1.5 tick intervals so each
// window is observed by at least one tick and at most two.
func NewClock(cfg Config, logger *slog.Logger, opts ...Option) *Clock {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Second
	}
	if len(cfg.Windows) == 0 {
		cfg.Windows = DefaultWindows(5 * time.Minute)
	}
	c := &Clock{
		cfg:    cfg,
		buffer: cfg.TickInterval.Milliseconds() * 3 / 2,
		fired:  make(map[FiredKey]struct{}),
		stopCh: make(chan struct{}),
		now:    time.Now,
		logger: logger.With("component", "countdown.clock"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start begins ticking against schedule. The first tick is evaluated
// immediately on the clock goroutine; callbacks never run on the caller's goroutine.
func (c *Clock) Start(schedule prayer.DailySchedule, onTick func(Tick), onThreshold func(Crossing)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return ErrClockStopped
	}
	if c.running {
		return ErrClockRunning
	}
	if onTick == nil {
		onTick = func(Tick) {}
	}
	if onThreshold == nil {
		onThreshold = func(Crossing) {}
	}
	c.schedule = schedule
	c.onTick = onTick
	c.onThreshold = onThreshold
	c.running = true
	go c.run()
	return nil
}

// Stop halts the clock. It is safe to call repeatedly, before Start, and from
// inside a callback. A callback already executing is allowed to finish.
func (c *Clock) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return
	}
	c.stopped = true
	c.running = false
	close(c.stopCh)
}

// Running reports whether the clock is ticking.
func (c *Clock) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

func (c *Clock) run() {
	ticker := time.NewTicker(c.cfg.TickInterval)
	defer ticker.Stop()

	c.step(c.now())
	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.step(c.now())
		}
	}
}

func (c *Clock) step(now time.Time) {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	nowMs := now.UnixMilli()
	rederived := false
	if c.lastMs != 0 && nowMs < c.lastMs {
		c.logger.Info("wall clock moved backward", "by_ms", c.lastMs-nowMs)
		rederived = true
	}
	c.lastMs = nowMs

	pos, ok := prayer.DeriveCurrentAndNext(c.schedule, nowMs)
	if !ok {
		c.mu.Unlock()
		return
	}
	remaining := pos.Next.TimestampMs - nowMs
	if remaining < 0 {
		remaining = 0
		rederived = true
	}
	crossings := c.crossingsLocked(now)
	c.pruneLocked(nowMs)
	onTick, onThreshold := c.onTick, c.onThreshold
	c.mu.Unlock()

	for _, crossing := range crossings {
		onThreshold(crossing)
	}
	onTick(Tick{
		Current:     pos.Current,
		Next:        pos.Next,
		RemainingMs: remaining,
		Formatted:   prayer.FormatRemaining(remaining),
		At:          now,
		Rederived:   rederived,
	})
}

// crossingsLocked fires every window whose lead lies in (lead-buffer, lead]
// of an event that has not been consumed yet.
func (c *Clock) crossingsLocked(now time.Time) []Crossing {
	nowMs := now.UnixMilli()
	var out []Crossing
	for _, ev := range c.schedule.Events {
		delta := ev.TimestampMs - nowMs
		for _, w := range c.cfg.Windows {
			lead := w.Lead.Milliseconds()
			if delta > lead || delta <= lead-c.buffer {
				continue
			}
			crossing := Crossing{Event: ev, Window: w, At: now}
			key := crossing.Key()
			if _, done := c.fired[key]; done {
				continue
			}
			c.fired[key] = struct{}{}
			out = append(out, crossing)
		}
	}
	return out
}

func (c *Clock) pruneLocked(nowMs int64) {
	horizon := nowMs - (48 * time.Hour).Milliseconds()
	for key := range c.fired {
		if key.TimestampMs < horizon {
			delete(c.fired, key)
		}
	}
}
