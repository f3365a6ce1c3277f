package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yanqian/prayer-companion/internal/domain/countdown"
	"github.com/yanqian/prayer-companion/internal/domain/prayer"
	apperrors "github.com/yanqian/prayer-companion/pkg/errors"
)

// Dispatcher turns threshold crossings into user notifications, at most once per
// prayer occurrence. The first enabled window of an occurrence wins and later
// windows of the same occurrence are dropped, even when clocks are replaced
// mid-window.
type Dispatcher struct {
	sink   Sink
	logger *slog.Logger
	now    func() time.Time

	mu       sync.Mutex
	sent     map[countdown.FiredKey]time.Time
	disabled bool
}

// NewDispatcher constructs a Dispatcher.
func NewDispatcher(sink Sink, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		sink:   sink,
		logger: logger.With("component", "notify.dispatcher"),
		now:    time.Now,
		sent:   make(map[countdown.FiredKey]time.Time),
	}
}

// OnThresholdCrossed emits a notification when the event is enabled and not
// Sunrise. It reports whether a notification was delivered.
func (d *Dispatcher) OnThresholdCrossed(ctx context.Context, crossing countdown.Crossing) bool {
	ev := crossing.Event
	if !ev.Notifiable() || !ev.NotificationsEnabled {
		return false
	}

	key := occurrenceKey(ev)
	d.mu.Lock()
	if d.disabled {
		d.mu.Unlock()
		return false
	}
	if _, seen := d.sent[key]; seen {
		d.mu.Unlock()
		return false
	}
	d.sent[key] = d.now()
	d.pruneLocked()
	d.mu.Unlock()

	n := build(crossing)
	if err := d.sink.Deliver(ctx, n); err != nil {
		if apperrors.IsCode(err, prayer.CodeNotificationPermissionDenied) {
			d.mu.Lock()
			d.disabled = true
			d.mu.Unlock()
			d.logger.Info("notification permission denied, disabling delivery")
			return false
		}
		d.logger.Warn("notification delivery failed", "prayer", ev.Name, "window", crossing.Window.ID, "error", err)
		return false
	}
	d.logger.Info("notification sent", "prayer", ev.Name, "window", crossing.Window.ID, "id", n.ID)
	return true
}

// Enabled reports whether the sink is still accepting notifications.
func (d *Dispatcher) Enabled() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return !d.disabled
}

// occurrenceKey drops the window so every window of one occurrence shares a key.
func occurrenceKey(ev prayer.Event) countdown.FiredKey {
	return countdown.FiredKey{Name: ev.Name, TimestampMs: ev.TimestampMs}
}

func (d *Dispatcher) pruneLocked() {
	horizon := d.now().Add(-48 * time.Hour).UnixMilli()
	for key := range d.sent {
		if key.TimestampMs < horizon {
			delete(d.sent, key)
		}
	}
}

func build(crossing countdown.Crossing) Notification {
	ev := crossing.Event
	title := fmt.Sprintf("Time for %s", ev.Name)
	if crossing.Window.ID != countdown.WindowOnset && crossing.Window.Lead > 0 {
		title = fmt.Sprintf("%s in %d minutes", ev.Name, int(crossing.Window.Lead.Minutes()))
	}
	return Notification{
		ID:        uuid.NewString(),
		Title:     title,
		Body:      fmt.Sprintf("%s at %s", ev.Name, ev.TimeOfDay),
		Prayer:    ev.Name,
		Window:    crossing.Window.ID,
		TimeOfDay: ev.TimeOfDay,
		At:        crossing.At,
	}
}
