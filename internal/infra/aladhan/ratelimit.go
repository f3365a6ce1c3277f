package aladhan

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/yanqian/prayer-companion/internal/domain/prayer"
	"github.com/yanqian/prayer-companion/internal/domain/timing"
	apperrors "github.com/yanqian/prayer-companion/pkg/errors"
)

// RateLimitedProvider throttles calls to a timing.Provider.
type RateLimitedProvider struct {
	provider timing.Provider
	limiter  *rate.Limiter
}

// NewRateLimitedProvider wraps provider. rps may be fractional.
func NewRateLimitedProvider(provider timing.Provider, rps float64, burst int) *RateLimitedProvider {
	if burst <= 0 {
		burst = 1
	}
	return &RateLimitedProvider{
		provider: provider,
		limiter:  rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// FetchDay waits for the limiter, then delegates.
func (r *RateLimitedProvider) FetchDay(ctx context.Context, coord prayer.Coordinate, day time.Time, method prayer.Method) (prayer.DailySchedule, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return prayer.DailySchedule{}, apperrors.Wrap(prayer.CodeTimingUnavailable, "rate limit wait canceled", err)
	}
	return r.provider.FetchDay(ctx, coord, day, method)
}

// FetchMonth waits for the limiter, then delegates.
func (r *RateLimitedProvider) FetchMonth(ctx context.Context, coord prayer.Coordinate, year int, month time.Month, method prayer.Method) ([]prayer.DailySchedule, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, apperrors.Wrap(prayer.CodeTimingUnavailable, "rate limit wait canceled", err)
	}
	return r.provider.FetchMonth(ctx, coord, year, month, method)
}

var _ timing.Provider = (*RateLimitedProvider)(nil)
