// Package beepaudio plays mp3 streams on the default sound device.
package beepaudio

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/effects"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/speaker"

	"github.com/yanqian/prayer-companion/internal/domain/adhan"
)

const (
	sampleRate    beep.SampleRate = 44100
	headerTimeout                 = 10 * time.Second
)

// Backend decodes HTTP mp3 streams onto the speaker.
type Backend struct {
	httpClient *http.Client
	logger     *slog.Logger
}

// NewBackend initialises the speaker once for the process.
func NewBackend(logger *slog.Logger) (*Backend, error) {
	if err := speaker.Init(sampleRate, sampleRate.N(time.Second/10)); err != nil {
		return nil, fmt.Errorf("initialize speaker: %w", err)
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = headerTimeout
	return &Backend{
		httpClient: &http.Client{Transport: transport},
		logger:     logger.With("component", "audio.beep"),
	}, nil
}

// Load opens the stream and decodes its header. Playback starts on Track.Start.
// The body outlives ctx: it is read lazily for as long as the track plays and
// is closed by Track.Stop. Only the wait for response headers is bounded.
func (b *Backend) Load(ctx context.Context, url string, volume float64) (adhan.Track, error) {
	req, err := http.NewRequestWithContext(context.WithoutCancel(ctx), http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build asset request: %w", err)
	}
	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch asset: %w", err)
	}
	if resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, fmt.Errorf("fetch asset: status %d", resp.StatusCode)
	}
	streamer, format, err := mp3.Decode(resp.Body)
	if err != nil {
		resp.Body.Close()
		return nil, fmt.Errorf("decode mp3: %w", err)
	}

	var source beep.Streamer = streamer
	if format.SampleRate != sampleRate {
		source = beep.Resample(4, format.SampleRate, sampleRate, streamer)
	}
	return &track{
		streamer: streamer,
		ctrl:     &beep.Ctrl{Streamer: gain(source, volume)},
		logger:   b.logger,
	}, nil
}

// gain maps a linear volume in [0,1] onto beep's logarithmic scale.
func gain(s beep.Streamer, volume float64) beep.Streamer {
	if volume >= 1 {
		return s
	}
	if volume <= 0 {
		return &effects.Volume{Streamer: s, Base: 2, Silent: true}
	}
	return &effects.Volume{Streamer: s, Base: 2, Volume: math.Log2(volume)}
}

type track struct {
	streamer beep.StreamSeekCloser
	ctrl     *beep.Ctrl
	logger   *slog.Logger

	mu      sync.Mutex
	stopped bool
	once    sync.Once
}

func (t *track) Start(onDone func(error)) error {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return fmt.Errorf("track already stopped")
	}
	t.mu.Unlock()

	speaker.Play(beep.Seq(t.ctrl, beep.Callback(func() {
		// Runs on the speaker goroutine while it holds its lock.
		go func() {
			t.mu.Lock()
			stopped := t.stopped
			t.mu.Unlock()
			if stopped {
				return
			}
			err := t.streamer.Err()
			t.Stop()
			onDone(err)
		}()
	})))
	return nil
}

func (t *track) Stop() {
	t.mu.Lock()
	t.stopped = true
	t.mu.Unlock()
	t.once.Do(func() {
		speaker.Lock()
		t.ctrl.Streamer = nil
		speaker.Unlock()
		if err := t.streamer.Close(); err != nil {
			t.logger.Debug("close mp3 stream", "error", err)
		}
	})
}

// Close silences the speaker.
func (b *Backend) Close() error {
	speaker.Clear()
	return nil
}

var _ adhan.Backend = (*Backend)(nil)
