//go:build !vlc

// Package vlcaudio is compiled without libVLC unless the vlc build tag is set.
package vlcaudio

import (
	"context"
	"errors"
	"log/slog"

	"github.com/yanqian/prayer-companion/internal/domain/adhan"
)

// ErrUnsupported is returned when the binary was built without libVLC.
var ErrUnsupported = errors.New("built without libvlc support, rebuild with -tags vlc")

// Backend is unavailable in this build.
type Backend struct{}

// NewBackend always fails in this build.
func NewBackend(*slog.Logger) (*Backend, error) {
	return nil, ErrUnsupported
}

// Load always fails in this build.
func (*Backend) Load(context.Context, string, float64) (adhan.Track, error) {
	return nil, ErrUnsupported
}

// Close is a no-op.
func (*Backend) Close() error { return nil }

var _ adhan.Backend = (*Backend)(nil)
