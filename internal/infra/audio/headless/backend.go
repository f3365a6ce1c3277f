// Package headless is an audio backend for hosts without a sound device. It
// verifies that an asset is reachable and then reports playback for a fixed duration.
package headless

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/yanqian/prayer-companion/internal/domain/adhan"
)

const probeBytes = 4 << 10

// Backend implements adhan.Backend without producing sound.
type Backend struct {
	duration   time.Duration
	httpClient *http.Client
}

// NewBackend builds a backend whose tracks last duration.
func NewBackend(duration time.Duration, timeout time.Duration) *Backend {
	if duration <= 0 {
		duration = 3 * time.Minute
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Backend{duration: duration, httpClient: &http.Client{Timeout: timeout}}
}

// Load fetches the head of the asset to prove it exists.
func (b *Backend) Load(ctx context.Context, url string, _ float64) (adhan.Track, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build asset request: %w", err)
	}
	req.Header.Set("Range", fmt.Sprintf("bytes=0-%d", probeBytes-1))
	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch asset: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetch asset: status %d", resp.StatusCode)
	}
	n, err := io.Copy(io.Discard, io.LimitReader(resp.Body, probeBytes))
	if err != nil {
		return nil, fmt.Errorf("read asset: %w", err)
	}
	if n == 0 {
		return nil, fmt.Errorf("asset is empty")
	}
	return &track{duration: b.duration}, nil
}

type track struct {
	duration time.Duration

	mu      sync.Mutex
	timer   *time.Timer
	stopped bool
}

func (t *track) Start(onDone func(error)) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return fmt.Errorf("track already stopped")
	}
	t.timer = time.AfterFunc(t.duration, func() {
		t.mu.Lock()
		if t.stopped {
			t.mu.Unlock()
			return
		}
		t.stopped = true
		t.mu.Unlock()
		onDone(nil)
	})
	return nil
}

func (t *track) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
	if t.timer != nil {
		t.timer.Stop()
	}
}

var _ adhan.Backend = (*Backend)(nil)
