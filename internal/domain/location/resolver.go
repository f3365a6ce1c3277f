package location

import (
	"context"
	"log/slog"
	"strings"

	"github.com/yanqian/prayer-companion/internal/domain/prayer"
	apperrors "github.com/yanqian/prayer-companion/pkg/errors"
)

// Source records where a resolved coordinate came from.
type Source string

const (
	SourceOverride Source = "override"
	SourceDevice   Source = "device"
	SourceFallback Source = "fallback"
)

// Fallback is returned whenever no better coordinate is available.
var Fallback = prayer.Coordinate{Latitude: 21.4225, Longitude: 39.8262, DisplayName: "Mecca (Default)"}

// DeviceLocator reports the device position. Implementations return an error when
// the capability is missing or permission is denied.
type DeviceLocator interface {
	Locate(ctx context.Context) (prayer.Coordinate, error)
}

// ReverseGeocoder turns a coordinate into a place name.
type ReverseGeocoder interface {
	Reverse(ctx context.Context, latitude, longitude float64) (string, error)
}

// OverrideStore persists the user entered coordinate.
type OverrideStore interface {
	LoadOverride(ctx context.Context) (prayer.Coordinate, bool, error)
	SaveOverride(ctx context.Context, coord prayer.Coordinate) error
	ClearOverride(ctx context.Context) error
}

// Resolution is the outcome of Resolve. Notice is set when the fallback was used.
type Resolution struct {
	Coordinate prayer.Coordinate `json:"coordinate"`
	Source     Source            `json:"source"`
	Notice     *prayer.Notice    `json:"notice,omitempty"`
}

// Resolver picks the coordinate used for scheduling.
type Resolver struct {
	store    OverrideStore
	device   DeviceLocator
	geocoder ReverseGeocoder
	logger   *slog.Logger
}

// NewResolver constructs a Resolver. device and geocoder may be nil when the
// capability is unavailable.
func NewResolver(store OverrideStore, device DeviceLocator, geocoder ReverseGeocoder, logger *slog.Logger) *Resolver {
	return &Resolver{
		store:    store,
		device:   device,
		geocoder: geocoder,
		logger:   logger.With("component", "location.resolver"),
	}
}

// Resolve never fails: a saved override wins, then the device, then Fallback.
func (r *Resolver) Resolve(ctx context.Context) Resolution {
	if r.store != nil {
		coord, ok, err := r.store.LoadOverride(ctx)
		switch {
		case err != nil:
			r.logger.Warn("load location override failed", "error", err)
		case ok:
			return Resolution{Coordinate: coord, Source: SourceOverride}
		}
	}

	if r.device == nil {
		return r.fallback(nil)
	}
	coord, err := r.device.Locate(ctx)
	if err == nil {
		err = coord.Validate()
	}
	if err != nil {
		return r.fallback(err)
	}

	if r.geocoder != nil && strings.TrimSpace(coord.DisplayName) == "" {
		name, geoErr := r.geocoder.Reverse(ctx, coord.Latitude, coord.Longitude)
		if geoErr != nil {
			r.logger.Debug("reverse geocode failed", "error", geoErr)
		} else {
			coord.DisplayName = strings.TrimSpace(name)
		}
	}
	return Resolution{Coordinate: coord, Source: SourceDevice}
}

// SaveOverride validates and persists a user entered coordinate.
func (r *Resolver) SaveOverride(ctx context.Context, coord prayer.Coordinate) error {
	if err := coord.Validate(); err != nil {
		return err
	}
	coord.DisplayName = strings.TrimSpace(coord.DisplayName)
	if err := r.store.SaveOverride(ctx, coord); err != nil {
		return apperrors.Wrap("storage_error", "failed to save location", err)
	}
	r.logger.Info("location override saved", "lat", coord.Latitude, "lon", coord.Longitude)
	return nil
}

// ClearOverride removes the saved coordinate so device resolution applies again.
func (r *Resolver) ClearOverride(ctx context.Context) error {
	if err := r.store.ClearOverride(ctx); err != nil {
		return apperrors.Wrap("storage_error", "failed to clear location", err)
	}
	return nil
}

func (r *Resolver) fallback(cause error) Resolution {
	message := "device location unavailable, using Mecca"
	if cause != nil {
		r.logger.Warn("device location failed, using fallback", "error", cause)
	} else {
		r.logger.Warn("device location capability missing, using fallback")
	}
	return Resolution{
		Coordinate: Fallback,
		Source:     SourceFallback,
		Notice: &prayer.Notice{
			Code:    prayer.CodeLocationUnavailable,
			Message: message,
			Actions: []string{prayer.ActionUpdateLocation, prayer.ActionRetry},
		},
	}
}
