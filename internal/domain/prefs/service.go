package prefs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/yanqian/prayer-companion/internal/domain/prayer"
	apperrors "github.com/yanqian/prayer-companion/pkg/errors"
)

// Defaults are used for keys that were never written.
type Defaults struct {
	Method  prayer.Method
	Volume  int
	Reciter string
}

// Preferences is the full persisted preference set.
type Preferences struct {
	Method        prayer.Method        `json:"method"`
	Notifications map[prayer.Name]bool `json:"notifications"`
	Location      *prayer.Coordinate   `json:"location,omitempty"`
	Volume        int                  `json:"volume"`
	Reciter       string               `json:"reciter"`
}

// Service reads and writes preferences. Reads never fail: a broken store
// degrades to defaults and is logged.
type Service interface {
	Load(ctx context.Context) Preferences
	Method(ctx context.Context) prayer.Method
	SetMethod(ctx context.Context, method prayer.Method) error
	NotificationToggles(ctx context.Context) map[prayer.Name]bool
	SetNotifications(ctx context.Context, name prayer.Name, enabled bool) error
	Volume(ctx context.Context) int
	SetVolume(ctx context.Context, volume int) error
	Reciter(ctx context.Context) string
	SetReciter(ctx context.Context, reciter string) error
	LoadOverride(ctx context.Context) (prayer.Coordinate, bool, error)
	SaveOverride(ctx context.Context, coord prayer.Coordinate) error
	ClearOverride(ctx context.Context) error
}

type service struct {
	store    Store
	defaults Defaults
	logger   *slog.Logger
}

// NewService constructs a Service instance.
func NewService(store Store, defaults Defaults, logger *slog.Logger) Service {
	if defaults.Method == 0 || !defaults.Method.Valid() {
		defaults.Method = prayer.DefaultMethod
	}
	if defaults.Volume <= 0 || defaults.Volume > 100 {
		defaults.Volume = 70
	}
	return &service{
		store:    store,
		defaults: defaults,
		logger:   logger.With("component", "prefs.service"),
	}
}

func (s *service) Load(ctx context.Context) Preferences {
	out := Preferences{
		Method:        s.Method(ctx),
		Notifications: s.NotificationToggles(ctx),
		Volume:        s.Volume(ctx),
		Reciter:       s.Reciter(ctx),
	}
	if coord, ok, err := s.LoadOverride(ctx); err == nil && ok {
		out.Location = &coord
	}
	return out
}

func (s *service) Method(ctx context.Context) prayer.Method {
	raw, ok := s.get(ctx, KeyMethod)
	if !ok {
		return s.defaults.Method
	}
	value, err := strconv.Atoi(raw)
	if err != nil || !prayer.Method(value).Valid() {
		s.logger.Warn("ignoring invalid stored method", "value", raw)
		return s.defaults.Method
	}
	return prayer.Method(value)
}

func (s *service) SetMethod(ctx context.Context, method prayer.Method) error {
	if !method.Valid() {
		return apperrors.Wrap(prayer.CodeInvalidInput, fmt.Sprintf("unknown calculation method %d", method), nil)
	}
	return s.set(ctx, KeyMethod, strconv.Itoa(int(method)))
}

func (s *service) NotificationToggles(ctx context.Context) map[prayer.Name]bool {
	out := make(map[prayer.Name]bool, len(prayer.Names))
	for _, name := range prayer.Names {
		if !name.Notifiable() {
			continue
		}
		out[name] = true
		if raw, ok := s.get(ctx, KeyNotifyPrefix+string(name)); ok {
			if enabled, err := strconv.ParseBool(raw); err == nil {
				out[name] = enabled
			}
		}
	}
	return out
}

func (s *service) SetNotifications(ctx context.Context, name prayer.Name, enabled bool) error {
	if !name.Notifiable() {
		return apperrors.Wrap(prayer.CodeInvalidInput, fmt.Sprintf("%q cannot carry notifications", name), nil)
	}
	return s.set(ctx, KeyNotifyPrefix+string(name), strconv.FormatBool(enabled))
}

func (s *service) Volume(ctx context.Context) int {
	raw, ok := s.get(ctx, KeyVolume)
	if !ok {
		return s.defaults.Volume
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 || value > 100 {
		return s.defaults.Volume
	}
	return value
}

func (s *service) SetVolume(ctx context.Context, volume int) error {
	if volume < 0 || volume > 100 {
		return apperrors.Wrap(prayer.CodeInvalidInput, "volume must be between 0 and 100", nil)
	}
	return s.set(ctx, KeyVolume, strconv.Itoa(volume))
}

func (s *service) Reciter(ctx context.Context) string {
	if raw, ok := s.get(ctx, KeyReciter); ok && strings.TrimSpace(raw) != "" {
		return raw
	}
	return s.defaults.Reciter
}

func (s *service) SetReciter(ctx context.Context, reciter string) error {
	reciter = strings.TrimSpace(reciter)
	if reciter == "" || strings.ContainsAny(reciter, "/\\?#") {
		return apperrors.Wrap(prayer.CodeInvalidInput, "invalid reciter", nil)
	}
	return s.set(ctx, KeyReciter, reciter)
}

func (s *service) LoadOverride(ctx context.Context) (prayer.Coordinate, bool, error) {
	raw, ok, err := s.store.Get(ctx, KeyLocationOverride)
	if err != nil || !ok {
		return prayer.Coordinate{}, false, err
	}
	var coord prayer.Coordinate
	if err := json.Unmarshal([]byte(raw), &coord); err != nil {
		return prayer.Coordinate{}, false, fmt.Errorf("decode location override: %w", err)
	}
	return coord, true, nil
}

func (s *service) SaveOverride(ctx context.Context, coord prayer.Coordinate) error {
	payload, err := json.Marshal(coord)
	if err != nil {
		return err
	}
	return s.store.Set(ctx, KeyLocationOverride, string(payload))
}

func (s *service) ClearOverride(ctx context.Context) error {
	return s.store.Delete(ctx, KeyLocationOverride)
}

func (s *service) get(ctx context.Context, key string) (string, bool) {
	raw, ok, err := s.store.Get(ctx, key)
	if err != nil {
		s.logger.Warn("preference read failed, using default", "key", key, "error", err)
		return "", false
	}
	return raw, ok
}

func (s *service) set(ctx context.Context, key, value string) error {
	if err := s.store.Set(ctx, key, value); err != nil {
		return apperrors.Wrap("storage_error", "failed to save preference", err)
	}
	s.logger.Info("preference updated", "key", key)
	return nil
}
