package engine

import (
	"context"

	"github.com/yanqian/prayer-companion/internal/domain/prayer"
	"github.com/yanqian/prayer-companion/internal/domain/prefs"
	apperrors "github.com/yanqian/prayer-companion/pkg/errors"
)

// AdhanSettings is a partial update of the playback preferences.
type AdhanSettings struct {
	Volume  *int    `json:"volume"`
	Reciter *string `json:"reciter"`
}

// Preferences returns the persisted preference set.
func (e *Engine) Preferences(ctx context.Context) prefs.Preferences {
	return e.prefs.Load(ctx)
}

// SetMethod persists the calculation method and refetches the day.
func (e *Engine) SetMethod(ctx context.Context, method prayer.Method) (Snapshot, error) {
	if err := e.prefs.SetMethod(ctx, method); err != nil {
		return Snapshot{}, err
	}
	return e.Refresh(ctx, ReasonMethodChanged)
}

// SaveLocation persists a manual override and refetches the day.
func (e *Engine) SaveLocation(ctx context.Context, coord prayer.Coordinate) (Snapshot, error) {
	if err := e.locator.SaveOverride(ctx, coord); err != nil {
		return Snapshot{}, err
	}
	return e.Refresh(ctx, ReasonLocationChanged)
}

// ClearLocation removes the override and refetches the day.
func (e *Engine) ClearLocation(ctx context.Context) (Snapshot, error) {
	if err := e.locator.ClearOverride(ctx); err != nil {
		return Snapshot{}, err
	}
	return e.Refresh(ctx, ReasonLocationChanged)
}

// SetNotifications toggles one prayer. The current schedule is restamped in
// place without a refetch.
func (e *Engine) SetNotifications(ctx context.Context, name prayer.Name, enabled bool) (Snapshot, error) {
	if err := e.prefs.SetNotifications(ctx, name, enabled); err != nil {
		return Snapshot{}, err
	}
	toggles := e.prefs.NotificationToggles(ctx)
	toggles[name] = enabled

	e.mu.Lock()
	e.schedule = e.schedule.WithNotifications(toggles)
	e.mu.Unlock()
	return e.Snapshot(), nil
}

// SetAdhanSettings updates volume and reciter. The new volume applies to the next load.
func (e *Engine) SetAdhanSettings(ctx context.Context, settings AdhanSettings) (prefs.Preferences, error) {
	if settings.Volume == nil && settings.Reciter == nil {
		return prefs.Preferences{}, apperrors.Wrap(prayer.CodeInvalidInput, "volume or reciter is required", nil)
	}
	if settings.Volume != nil {
		if err := e.prefs.SetVolume(ctx, *settings.Volume); err != nil {
			return prefs.Preferences{}, err
		}
	}
	if settings.Reciter != nil {
		if err := e.prefs.SetReciter(ctx, *settings.Reciter); err != nil {
			return prefs.Preferences{}, err
		}
	}
	return e.prefs.Load(ctx), nil
}
