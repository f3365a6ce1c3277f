package prefs

import "context"

// Store is the opaque key-value persistence behind preferences.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// Keys written by the service.
const (
	KeyMethod           = "calculation_method"
	KeyLocationOverride = "location_override"
	KeyNotifyPrefix     = "notifications:"
	KeyVolume           = "adhan_volume"
	KeyReciter          = "adhan_reciter"
)
