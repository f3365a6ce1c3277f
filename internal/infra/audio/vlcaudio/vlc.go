//go:build vlc

// Package vlcaudio plays adhan streams through libVLC. Build with -tags vlc.
package vlcaudio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"

	vlc "github.com/adrg/libvlc-go/v3"

	"github.com/yanqian/prayer-companion/internal/domain/adhan"
)

// Backend owns the process-wide libVLC instance.
type Backend struct {
	mu     sync.Mutex
	logger *slog.Logger
}

// NewBackend initialises libVLC for audio only output.
func NewBackend(logger *slog.Logger) (*Backend, error) {
	if err := vlc.Init("--quiet", "--no-video", "--network-caching=1500", "--http-reconnect"); err != nil {
		return nil, fmt.Errorf("libvlc init failed: %w", err)
	}
	return &Backend{logger: logger.With("component", "audio.vlc")}, nil
}

// Load creates a player with the media attached. It does not start playback.
func (b *Backend) Load(_ context.Context, url string, volume float64) (adhan.Track, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	player, err := vlc.NewPlayer()
	if err != nil {
		return nil, fmt.Errorf("new vlc player failed: %w", err)
	}
	media, err := vlc.NewMediaFromURL(url)
	if err != nil {
		player.Release()
		return nil, fmt.Errorf("new media from url failed: %w", err)
	}
	if err := player.SetMedia(media); err != nil {
		media.Release()
		player.Release()
		return nil, fmt.Errorf("set media failed: %w", err)
	}
	_ = player.SetVolume(int(math.Round(volume * 100)))
	return &track{backend: b, player: player, media: media}, nil
}

// Close releases libVLC.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return vlc.Release()
}

type track struct {
	backend *Backend
	player  *vlc.Player
	media   *vlc.Media

	mu      sync.Mutex
	events  []vlc.EventID
	manager *vlc.EventManager
	stopped bool
	done    bool
}

func (t *track) Start(onDone func(error)) error {
	manager, err := t.player.EventManager()
	if err != nil {
		return fmt.Errorf("vlc event manager: %w", err)
	}
	finish := func(playErr error) {
		t.mu.Lock()
		if t.stopped || t.done {
			t.mu.Unlock()
			return
		}
		t.done = true
		t.mu.Unlock()
		// libVLC must not be called back into from its own event thread.
		go func() {
			t.Stop()
			onDone(playErr)
		}()
	}

	endID, err := manager.Attach(vlc.MediaPlayerEndReached, func(vlc.Event, interface{}) { finish(nil) }, nil)
	if err != nil {
		return fmt.Errorf("attach end event: %w", err)
	}
	errID, err := manager.Attach(vlc.MediaPlayerEncounteredError, func(vlc.Event, interface{}) {
		finish(errors.New("libvlc encountered an error"))
	}, nil)
	if err != nil {
		manager.Detach(endID)
		return fmt.Errorf("attach error event: %w", err)
	}

	t.mu.Lock()
	t.manager = manager
	t.events = []vlc.EventID{endID, errID}
	t.mu.Unlock()

	t.backend.mu.Lock()
	defer t.backend.mu.Unlock()
	if err := t.player.Play(); err != nil {
		return fmt.Errorf("play failed: %w", err)
	}
	return nil
}

func (t *track) Stop() {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	t.stopped = true
	manager, events := t.manager, t.events
	t.mu.Unlock()

	if manager != nil {
		manager.Detach(events...)
	}
	t.backend.mu.Lock()
	defer t.backend.mu.Unlock()
	_ = t.player.Stop()
	t.media.Release()
	t.player.Release()
}

var _ adhan.Backend = (*Backend)(nil)
