package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/yanqian/prayer-companion/internal/domain/adhan"
	"github.com/yanqian/prayer-companion/internal/domain/countdown"
	"github.com/yanqian/prayer-companion/internal/domain/location"
	"github.com/yanqian/prayer-companion/internal/domain/prayer"
	"github.com/yanqian/prayer-companion/internal/domain/prefs"
	"github.com/yanqian/prayer-companion/internal/domain/timing"
	apperrors "github.com/yanqian/prayer-companion/pkg/errors"
	"github.com/yanqian/prayer-companion/pkg/metrics"
	"github.com/yanqian/prayer-companion/pkg/util"
)

// Option customises an Engine.
type Option func(*Engine)

// WithNow injects the wall clock used by the engine and its countdown clocks.
func WithNow(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// Engine owns the current schedule and its countdown clock, and routes
// threshold crossings to notifications and adhan playback.
type Engine struct {
	cfg        Config
	locator    Locator
	timing     timing.Service
	prefs      prefs.Service
	dispatcher ThresholdHandler
	deck       *adhan.Deck
	assets     AssetResolver
	counters   *metrics.EngineCounters
	logger     *slog.Logger
	now        func() time.Time

	mu          sync.Mutex
	baseCtx     context.Context
	seq         uint64
	gen         uint64
	schedule    prayer.DailySchedule
	resolution  location.Resolution
	notices     []prayer.Notice
	refreshedAt time.Time
	clock       *countdown.Clock
	rolloverFor string
	stopped     bool
	subscribers map[int]chan countdown.Tick
	nextSubID   int

	slotMu         sync.Mutex
	slotAssets     map[string]adhan.Assets
	playbackIssues map[string]prayer.Notice
	alertPrayer    prayer.Name
	autoplayed     map[countdown.FiredKey]struct{}
}

// New constructs an Engine. It does nothing until Start.
func New(
	cfg Config,
	locator Locator,
	timingSvc timing.Service,
	prefsSvc prefs.Service,
	dispatcher ThresholdHandler,
	deck *adhan.Deck,
	assets AssetResolver,
	counters *metrics.EngineCounters,
	logger *slog.Logger,
	opts ...Option,
) *Engine {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Second
	}
	if cfg.PreAlertLead <= 0 {
		cfg.PreAlertLead = 5 * time.Minute
	}
	if counters == nil {
		counters = metrics.NewEngineCounters()
	}
	e := &Engine{
		cfg:            cfg,
		locator:        locator,
		timing:         timingSvc,
		prefs:          prefsSvc,
		dispatcher:     dispatcher,
		deck:           deck,
		assets:         assets,
		counters:       counters,
		logger:         logger.With("component", "engine"),
		now:            time.Now,
		baseCtx:        context.Background(),
		subscribers:    make(map[int]chan countdown.Tick),
		slotAssets:     make(map[string]adhan.Assets),
		playbackIssues: make(map[string]prayer.Notice),
		autoplayed:     make(map[countdown.FiredKey]struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start performs the first refresh. ctx bounds background work started by the engine.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	e.baseCtx = ctx
	e.mu.Unlock()
	_, err := e.Refresh(ctx, ReasonStartup)
	return err
}

// Refresh re-resolves the location, fetches the day and replaces the schedule
// and its clock. A refresh overtaken by a newer one is discarded.
func (e *Engine) Refresh(ctx context.Context, reason string) (Snapshot, error) {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return Snapshot{}, apperrors.Wrap("engine_stopped", "engine is stopped", nil)
	}
	e.seq++
	seq := e.seq
	e.mu.Unlock()

	if e.cfg.RefreshTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.RefreshTimeout)
		defer cancel()
	}
	if reason == ReasonManual {
		e.timing.Forget()
	}

	resolution := e.locator.Resolve(ctx)
	method := e.prefs.Method(ctx)
	schedule, notice := e.timing.Day(ctx, timing.Query{
		Coordinate: resolution.Coordinate,
		Date:       e.now().In(e.cfg.Location),
		Method:     method,
	})
	schedule = schedule.WithNotifications(e.prefs.NotificationToggles(ctx))

	var notices []prayer.Notice
	if resolution.Notice != nil {
		notices = append(notices, *resolution.Notice)
	}
	if notice != nil {
		notices = append(notices, *notice)
		e.counters.IncFallbackSchedule()
	}

	e.mu.Lock()
	if seq != e.seq || e.stopped {
		e.mu.Unlock()
		e.counters.IncStaleFetch()
		e.logger.Debug("discarding stale refresh", "reason", reason, "seq", seq)
		return e.Snapshot(), nil
	}
	old := e.clock
	e.gen++
	gen := e.gen
	clock := countdown.NewClock(countdown.Config{
		TickInterval: e.cfg.TickInterval,
		Windows:      countdown.DefaultWindows(e.cfg.PreAlertLead),
	}, e.logger, countdown.WithNow(e.now))
	e.schedule = schedule
	e.resolution = resolution
	e.notices = notices
	e.refreshedAt = e.now()
	e.clock = clock
	e.rolloverFor = ""
	if old != nil {
		old.Stop()
	}
	err := clock.Start(schedule,
		func(t countdown.Tick) { e.handleTick(gen, t) },
		func(c countdown.Crossing) { e.handleCrossing(gen, c) },
	)
	e.mu.Unlock()
	if err != nil {
		return Snapshot{}, err
	}

	e.counters.IncRefresh()
	e.logger.Info("schedule refreshed",
		"reason", reason,
		"date", schedule.Date,
		"method", int(schedule.Method),
		"source", resolution.Source,
		"fallback", schedule.Fallback,
	)
	return e.Snapshot(), nil
}

// Snapshot derives the current view from the schedule and the wall clock.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	schedule := e.schedule
	out := Snapshot{
		Schedule:    schedule,
		Location:    LocationView{Coordinate: e.resolution.Coordinate, Source: e.resolution.Source},
		Notices:     append([]prayer.Notice(nil), e.notices...),
		RefreshedAt: e.refreshedAt,
	}
	e.mu.Unlock()

	e.slotMu.Lock()
	for _, slot := range []string{adhan.SlotCurrent, adhan.SlotNext, adhan.SlotAlert} {
		if n, ok := e.playbackIssues[slot]; ok {
			out.Notices = append(out.Notices, n)
		}
	}
	e.slotMu.Unlock()

	now := e.now()
	if pos, ok := prayer.DeriveCurrentAndNext(schedule, now.UnixMilli()); ok {
		remaining := pos.Next.TimestampMs - now.UnixMilli()
		if remaining < 0 {
			remaining = 0
		}
		out.Current = pos.Current
		out.Next = pos.Next
		out.Countdown = Countdown{
			Target:      pos.Next.Name,
			RemainingMs: remaining,
			Formatted:   prayer.FormatRemaining(remaining),
			At:          now,
		}
	}
	out.Stats = e.counters.Snapshot()
	return out
}

// Ready reports whether a schedule has been installed.
func (e *Engine) Ready() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return !e.schedule.Empty()
}

// Subscribe returns a channel of countdown ticks and a cancel func. Slow
// subscribers miss ticks rather than block the clock.
func (e *Engine) Subscribe(buffer int) (<-chan countdown.Tick, func()) {
	if buffer <= 0 {
		buffer = 1
	}
	ch := make(chan countdown.Tick, buffer)
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := e.nextSubID
	e.nextSubID++
	e.subscribers[id] = ch
	e.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			e.mu.Lock()
			defer e.mu.Unlock()
			if sub, ok := e.subscribers[id]; ok {
				delete(e.subscribers, id)
				close(sub)
			}
		})
	}
}

// Stop tears down the clock, subscriptions and playback. It is idempotent.
func (e *Engine) Stop() {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return
	}
	e.stopped = true
	e.gen++
	clock := e.clock
	e.clock = nil
	subs := e.subscribers
	e.subscribers = make(map[int]chan countdown.Tick)
	e.mu.Unlock()

	if clock != nil {
		clock.Stop()
	}
	for _, ch := range subs {
		close(ch)
	}
	if e.deck != nil {
		e.deck.StopAll()
	}
	e.logger.Info("engine stopped")
}

// Calendar fetches the month for the coordinate and method currently in use.
// Failures here never touch the daily schedule.
func (e *Engine) Calendar(ctx context.Context, year int, month time.Month) ([]prayer.DailySchedule, error) {
	e.mu.Lock()
	coord := e.resolution.Coordinate
	ready := !e.schedule.Empty()
	e.mu.Unlock()
	if !ready {
		coord = e.locator.Resolve(ctx).Coordinate
	}
	return e.timing.Month(ctx, coord, year, month, e.prefs.Method(ctx))
}

func (e *Engine) handleTick(gen uint64, tick countdown.Tick) {
	e.mu.Lock()
	if gen != e.gen {
		e.mu.Unlock()
		return
	}
	date := util.DateKey(tick.At, e.cfg.Location)
	rollover := false
	if date != e.schedule.Date && date != e.rolloverFor {
		e.rolloverFor = date
		rollover = true
	}
	for _, ch := range e.subscribers {
		select {
		case ch <- tick:
		default:
		}
	}
	ctx := e.baseCtx
	e.mu.Unlock()

	if rollover {
		e.logger.Info("local date changed, refreshing", "date", date)
		go func() {
			if _, err := e.Refresh(ctx, ReasonDayRollover); err != nil {
				e.logger.Warn("day rollover refresh failed", "error", err)
			}
		}()
	}
}

func (e *Engine) handleCrossing(gen uint64, crossing countdown.Crossing) {
	e.mu.Lock()
	current := gen == e.gen
	ctx := e.baseCtx
	e.mu.Unlock()
	if !current {
		return
	}
	// Delivery and playback can block on the network, the clock must not.
	go e.routeCrossing(ctx, crossing)
}

func (e *Engine) routeCrossing(ctx context.Context, crossing countdown.Crossing) {
	toggles := e.prefs.NotificationToggles(ctx)
	crossing.Event.NotificationsEnabled = crossing.Event.Notifiable() && toggles[crossing.Event.Name]
	if e.dispatcher != nil && e.dispatcher.OnThresholdCrossed(ctx, crossing) {
		e.counters.IncNotification()
	}

	if !e.cfg.AutoPlay || crossing.Window.ID != countdown.WindowOnset || !crossing.Event.NotificationsEnabled {
		return
	}
	e.mu.Lock()
	stopped := e.stopped
	e.mu.Unlock()
	if stopped || !e.markAutoplayed(crossing.Key()) {
		return
	}
	if _, err := e.playFor(ctx, adhan.SlotAlert, crossing.Event.Name); err != nil {
		e.logger.Warn("adhan autoplay failed", "prayer", crossing.Event.Name, "error", err)
	}
}

// markAutoplayed claims an onset for autoplay and points the alert slot at its
// prayer. It reports false when the onset already played, which happens when a
// refresh installs a clock that fires the same window again.
func (e *Engine) markAutoplayed(key countdown.FiredKey) bool {
	e.slotMu.Lock()
	defer e.slotMu.Unlock()
	if _, seen := e.autoplayed[key]; seen {
		return false
	}
	horizon := e.now().Add(-48 * time.Hour).UnixMilli()
	for played := range e.autoplayed {
		if played.TimestampMs < horizon {
			delete(e.autoplayed, played)
		}
	}
	e.autoplayed[key] = struct{}{}
	e.alertPrayer = key.Name
	return true
}
