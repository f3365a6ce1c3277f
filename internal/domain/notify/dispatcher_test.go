package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/yanqian/prayer-companion/internal/domain/countdown"
	"github.com/yanqian/prayer-companion/internal/domain/prayer"
	apperrors "github.com/yanqian/prayer-companion/pkg/errors"
)

func crossing(name prayer.Name, enabled bool, window countdown.Window) countdown.Crossing {
	ts := time.Now().Add(5 * time.Minute)
	return countdown.Crossing{
		Event: prayer.Event{
			Name:                 name,
			TimeOfDay:            ts.Format("15:04"),
			TimestampMs:          ts.Truncate(time.Minute).UnixMilli(),
			NotificationsEnabled: enabled,
		},
		Window: window,
		At:     time.Now(),
	}
}

var preAlert = countdown.Window{ID: countdown.WindowPreAlert, Lead: 5 * time.Minute}

func TestDispatcher_EmitsOncePerOccurrence(t *testing.T) {
	sink := &stubSink{}
	d := NewDispatcher(sink, newTestLogger())
	c := crossing(prayer.Asr, true, preAlert)

	require.True(t, d.OnThresholdCrossed(context.Background(), c))
	require.False(t, d.OnThresholdCrossed(context.Background(), c))

	require.Len(t, sink.delivered, 1)
	n := sink.delivered[0]
	require.Equal(t, "Asr in 5 minutes", n.Title)
	require.Equal(t, "Asr at "+c.Event.TimeOfDay, n.Body)
	require.NotEmpty(t, n.ID)
}

func TestDispatcher_OneNotificationAcrossWindows(t *testing.T) {
	sink := &stubSink{}
	d := NewDispatcher(sink, newTestLogger())
	c := crossing(prayer.Asr, true, preAlert)

	delivered := 0
	for _, window := range countdown.DefaultWindows(5 * time.Minute) {
		next := c
		next.Window = window
		if d.OnThresholdCrossed(context.Background(), next) {
			delivered++
		}
	}

	require.Equal(t, 1, delivered)
	require.Len(t, sink.delivered, 1)
	require.Equal(t, "Asr in 5 minutes", sink.delivered[0].Title)

	// The next day's occurrence has a new timestamp and notifies again.
	tomorrow := c
	tomorrow.Event.TimestampMs += (24 * time.Hour).Milliseconds()
	tomorrow.Window = countdown.Window{ID: countdown.WindowOnset}
	require.True(t, d.OnThresholdCrossed(context.Background(), tomorrow))
	require.Len(t, sink.delivered, 2)
}

func TestDispatcher_OnsetTitle(t *testing.T) {
	sink := &stubSink{}
	d := NewDispatcher(sink, newTestLogger())

	d.OnThresholdCrossed(context.Background(), crossing(prayer.Maghrib, true, countdown.Window{ID: countdown.WindowOnset}))
	require.Equal(t, "Time for Maghrib", sink.delivered[0].Title)
}

func TestDispatcher_SkipsSunriseAndDisabled(t *testing.T) {
	sink := &stubSink{}
	d := NewDispatcher(sink, newTestLogger())

	require.False(t, d.OnThresholdCrossed(context.Background(), crossing(prayer.Sunrise, true, preAlert)))
	require.False(t, d.OnThresholdCrossed(context.Background(), crossing(prayer.Isha, false, preAlert)))
	require.Empty(t, sink.delivered)
}

func TestDispatcher_DisabledWindowIsNotRetroactive(t *testing.T) {
	sink := &stubSink{}
	d := NewDispatcher(sink, newTestLogger())
	c := crossing(prayer.Dhuhr, false, preAlert)

	require.False(t, d.OnThresholdCrossed(context.Background(), c))

	// Re-enabling only affects windows that have not fired yet.
	onset := c
	onset.Window = countdown.Window{ID: countdown.WindowOnset}
	onset.Event.NotificationsEnabled = true
	require.True(t, d.OnThresholdCrossed(context.Background(), onset))
	require.Len(t, sink.delivered, 1)
	require.Equal(t, countdown.WindowOnset, sink.delivered[0].Window)
}

func TestDispatcher_PermissionDeniedDisablesSilently(t *testing.T) {
	sink := &stubSink{err: apperrors.Wrap(prayer.CodeNotificationPermissionDenied, "no permission", nil)}
	d := NewDispatcher(sink, newTestLogger())

	require.False(t, d.OnThresholdCrossed(context.Background(), crossing(prayer.Fajr, true, preAlert)))
	require.False(t, d.Enabled())

	sink.err = nil
	require.False(t, d.OnThresholdCrossed(context.Background(), crossing(prayer.Isha, true, preAlert)))
	require.Equal(t, 1, sink.calls)
}

func TestDispatcher_DeliveryErrorConsumesWindow(t *testing.T) {
	sink := &stubSink{err: errors.New("broker offline")}
	d := NewDispatcher(sink, newTestLogger())
	c := crossing(prayer.Asr, true, preAlert)

	require.False(t, d.OnThresholdCrossed(context.Background(), c))
	sink.err = nil
	require.False(t, d.OnThresholdCrossed(context.Background(), c))
	require.True(t, d.Enabled())
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubSink struct {
	delivered []Notification
	calls     int
	err       error
}

func (s *stubSink) Deliver(_ context.Context, n Notification) error {
	s.calls++
	if s.err != nil {
		return s.err
	}
	s.delivered = append(s.delivered, n)
	return nil
}
