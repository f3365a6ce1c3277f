package timing

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/yanqian/prayer-companion/internal/domain/prayer"
	apperrors "github.com/yanqian/prayer-companion/pkg/errors"
	"github.com/yanqian/prayer-companion/pkg/util"
)

// Service returns a usable schedule for any query, substituting the fallback
// schedule when the provider fails.
type Service interface {
	Day(ctx context.Context, q Query) (prayer.DailySchedule, *prayer.Notice)
	Month(ctx context.Context, coord prayer.Coordinate, year int, month time.Month, method prayer.Method) ([]prayer.DailySchedule, error)
	Forget()
}

type service struct {
	cfg      Config
	provider Provider
	logger   *slog.Logger

	mu       sync.Mutex
	cacheKey string
	cached   prayer.DailySchedule
}

// NewService constructs a Service instance.
func NewService(cfg Config, provider Provider, logger *slog.Logger) Service {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	return &service{
		cfg:      cfg,
		provider: provider,
		logger:   logger.With("component", "timing.service"),
	}
}

func (s *service) Day(ctx context.Context, q Query) (prayer.DailySchedule, *prayer.Notice) {
	key := cacheKey(q, s.cfg.Location)
	s.mu.Lock()
	if s.cacheKey == key {
		cached := s.cached
		s.mu.Unlock()
		return cached, nil
	}
	s.mu.Unlock()

	fetchCtx := ctx
	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	schedule, err := s.provider.FetchDay(fetchCtx, q.Coordinate, q.Date, q.Method)
	if err != nil {
		return s.fallback(q, err)
	}
	schedule.Coordinate = q.Coordinate

	s.mu.Lock()
	s.cacheKey = key
	s.cached = schedule
	s.mu.Unlock()
	return schedule, nil
}

func (s *service) Month(ctx context.Context, coord prayer.Coordinate, year int, month time.Month, method prayer.Method) ([]prayer.DailySchedule, error) {
	if month < time.January || month > time.December {
		return nil, apperrors.Wrap(prayer.CodeInvalidInput, "month must be between 1 and 12", nil)
	}
	fetchCtx := ctx
	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}
	days, err := s.provider.FetchMonth(fetchCtx, coord, year, month, method)
	if err != nil {
		s.logger.Warn("month fetch failed", "year", year, "month", int(month), "error", err)
		if apperrors.CodeOf(err) == "" {
			return nil, apperrors.Wrap(prayer.CodeTimingUnavailable, "monthly calendar unavailable", err)
		}
		return nil, err
	}
	return days, nil
}

// Forget drops the cached day so the next Day call reaches the provider.
func (s *service) Forget() {
	s.mu.Lock()
	s.cacheKey = ""
	s.cached = prayer.DailySchedule{}
	s.mu.Unlock()
}

func (s *service) fallback(q Query, cause error) (prayer.DailySchedule, *prayer.Notice) {
	code := apperrors.CodeOf(cause)
	if code != prayer.CodeTimingParseError {
		code = prayer.CodeTimingUnavailable
	}
	s.logger.Warn("timing provider failed, using default times", "code", code, "error", cause)
	schedule := prayer.FallbackSchedule(q.Date, s.cfg.Location, q.Coordinate, q.Method)
	return schedule, &prayer.Notice{
		Code:    code,
		Message: "using default times",
		Actions: []string{prayer.ActionRetry, prayer.ActionUpdateLocation},
	}
}

func cacheKey(q Query, loc *time.Location) string {
	return fmt.Sprintf("%s|%s|%d", util.DateKey(q.Date, loc), q.Coordinate.Key(), q.Method)
}
