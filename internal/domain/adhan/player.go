package adhan

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yanqian/prayer-companion/internal/domain/prayer"
	apperrors "github.com/yanqian/prayer-companion/pkg/errors"
)

const cacheBustParam = "cb"

// Option customises a Player.
type Option func(*Player)

// WithNow injects the clock used for cache-busting values.
func WithNow(now func() time.Time) Option {
	return func(p *Player) {
		p.now = now
	}
}

// WithVolume supplies the playback volume in percent, read on every load.
func WithVolume(volume func() int) Option {
	return func(p *Player) {
		p.volume = volume
	}
}

// Player is the idle, loading, playing, error state machine for one slot.
type Player struct {
	slot    string
	backend Backend
	output  *Output
	logger  *slog.Logger
	now     func() time.Time
	volume  func() int

	mu       sync.Mutex
	state    State
	source   string
	track    Track
	gen      uint64
	attempts int
}

// NewPlayer constructs an idle Player bound to output.
func NewPlayer(slot string, backend Backend, output *Output, logger *slog.Logger, opts ...Option) *Player {
	p := &Player{
		slot:    slot,
		backend: backend,
		output:  output,
		logger:  logger.With("component", "adhan.player", "slot", slot),
		now:     time.Now,
		volume:  func() int { return 100 },
		state:   State{Slot: slot, Status: StatusIdle},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// State returns a copy of the playback state.
func (p *Player) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Play starts a fresh primary source, stopping any other playback first.
// It clears the fallback gate.
func (p *Player) Play(ctx context.Context, source string) error {
	source = strings.TrimSpace(source)
	if source == "" {
		return apperrors.Wrap(prayer.CodeInvalidInput, "source url is required", nil)
	}
	p.mu.Lock()
	p.state.AttemptedFallback = false
	p.attempts = 0
	p.mu.Unlock()
	return p.load(ctx, source, source)
}

// Stop is legal from every state and always ends in idle.
func (p *Player) Stop() {
	p.halt()
	p.output.release(p)
}

// Retry reloads the failed source with a cache-busting parameter. Only legal from error.
func (p *Player) Retry(ctx context.Context) error {
	p.mu.Lock()
	if p.state.Status != StatusError {
		status := p.state.Status
		p.mu.Unlock()
		return apperrors.Wrap("invalid_state", fmt.Sprintf("retry is only allowed after an error, player is %s", status), nil)
	}
	p.attempts++
	source := p.source
	busted := cacheBust(source, p.attempts, p.now())
	p.mu.Unlock()
	return p.load(ctx, source, busted)
}

// TryFallback swaps to an alternate source. It is offered once per failure
// episode: it returns false without side effects if a fallback was already
// attempted since the last Play, or if the player is not in error.
func (p *Player) TryFallback(ctx context.Context, alternate string) (bool, error) {
	alternate = strings.TrimSpace(alternate)
	if alternate == "" {
		return false, apperrors.Wrap(prayer.CodeInvalidInput, "fallback source is required", nil)
	}
	p.mu.Lock()
	if p.state.AttemptedFallback || p.state.Status != StatusError {
		p.mu.Unlock()
		return false, nil
	}
	p.state.AttemptedFallback = true
	p.attempts = 0
	p.mu.Unlock()
	return true, p.load(ctx, alternate, alternate)
}

func (p *Player) load(ctx context.Context, source, address string) error {
	volume := float64(clampVolume(p.volume())) / 100
	var gen uint64
	// Lock order is Output.mu then Player.mu.
	p.output.claim(p, func() {
		gen = p.begin(source, address)
	})

	track, err := p.backend.Load(ctx, address, volume)

	p.mu.Lock()
	if gen != p.gen {
		p.mu.Unlock()
		// Stopped or preempted while loading.
		if track != nil {
			track.Stop()
		}
		return nil
	}
	if err == nil {
		err = track.Start(func(playErr error) { p.finished(gen, playErr) })
		if err != nil {
			track.Stop()
		}
	}
	if err != nil {
		p.state.Status = StatusError
		p.state.Error = err.Error()
		p.mu.Unlock()
		p.output.release(p)
		p.logger.Warn("adhan playback failed", "source", address, "error", err)
		return apperrors.Wrap(prayer.CodePlaybackFailure, "adhan playback failed", err)
	}
	p.track = track
	p.state.Status = StatusPlaying
	p.mu.Unlock()
	p.logger.Info("adhan playing", "source", address)
	return nil
}

// begin opens a new load generation and moves to loading.
func (p *Player) begin(source, address string) uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.track != nil {
		p.track.Stop()
		p.track = nil
	}
	p.gen++
	p.source = source
	p.state.Status = StatusLoading
	p.state.SourceURL = address
	p.state.SessionID = uuid.NewString()
	p.state.Error = ""
	return p.gen
}

func (p *Player) finished(gen uint64, playErr error) {
	p.mu.Lock()
	if gen != p.gen {
		p.mu.Unlock()
		return
	}
	p.track = nil
	if playErr != nil {
		p.state.Status = StatusError
		p.state.Error = playErr.Error()
		p.logger.Warn("adhan playback interrupted", "error", playErr)
	} else {
		p.state.Status = StatusIdle
		p.state.AttemptedFallback = false
		p.state.Error = ""
	}
	p.mu.Unlock()
	p.output.release(p)
}

// halt stops the track and moves to idle without touching the output.
func (p *Player) halt() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.gen++
	if p.track != nil {
		p.track.Stop()
		p.track = nil
	}
	p.state.Status = StatusIdle
	p.state.Error = ""
}

func cacheBust(source string, attempt int, now time.Time) string {
	value := fmt.Sprintf("%d-%d", attempt, now.UnixMilli())
	parsed, err := url.Parse(source)
	if err != nil {
		sep := "?"
		if strings.Contains(source, "?") {
			sep = "&"
		}
		return source + sep + cacheBustParam + "=" + value
	}
	query := parsed.Query()
	query.Set(cacheBustParam, value)
	parsed.RawQuery = query.Encode()
	return parsed.String()
}

func clampVolume(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
