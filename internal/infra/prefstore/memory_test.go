package prefstore

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yanqian/prayer-companion/internal/domain/prayer"
	"github.com/yanqian/prayer-companion/internal/domain/prefs"
)

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_, ok, err := store.Get(ctx, prefs.KeyMethod)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, store.Set(ctx, prefs.KeyMethod, "2"))
	value, ok, err := store.Get(ctx, prefs.KeyMethod)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "2", value)

	require.NoError(t, store.Delete(ctx, prefs.KeyMethod))
	require.NoError(t, store.Delete(ctx, prefs.KeyMethod))
	_, ok, _ = store.Get(ctx, prefs.KeyMethod)
	require.False(t, ok)
}

func TestMemoryStore_BacksPreferenceService(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := NewMemoryStore()
	ctx := context.Background()

	svc := prefs.NewService(store, prefs.Defaults{Reciter: "makkah"}, logger)
	require.NoError(t, svc.SetMethod(ctx, 3))
	require.NoError(t, svc.SaveOverride(ctx, prayer.Coordinate{Latitude: 51.5, Longitude: -0.12, DisplayName: "London"}))

	loaded := prefs.NewService(store, prefs.Defaults{}, logger).Load(ctx)
	require.Equal(t, prayer.Method(3), loaded.Method)
	require.NotNil(t, loaded.Location)
	require.Equal(t, "London", loaded.Location.DisplayName)
}
