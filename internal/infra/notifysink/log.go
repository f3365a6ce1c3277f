package notifysink

import (
	"context"
	"log/slog"

	"github.com/yanqian/prayer-companion/internal/domain/notify"
	"github.com/yanqian/prayer-companion/internal/domain/prayer"
	apperrors "github.com/yanqian/prayer-companion/pkg/errors"
)

// LogSink writes notifications to the structured log.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink constructs a LogSink.
func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger.With("component", "notifysink.log")}
}

func (s *LogSink) Deliver(_ context.Context, n notify.Notification) error {
	s.logger.Info(n.Title, "id", n.ID, "prayer", n.Prayer, "window", n.Window, "body", n.Body)
	return nil
}

type unavailable struct{}

// Unavailable returns a sink that has no permission to notify.
func Unavailable() notify.Sink {
	return unavailable{}
}

func (unavailable) Deliver(context.Context, notify.Notification) error {
	return apperrors.Wrap(prayer.CodeNotificationPermissionDenied, "notifications are disabled", nil)
}

var _ notify.Sink = (*LogSink)(nil)
