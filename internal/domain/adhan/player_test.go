package adhan

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/yanqian/prayer-companion/internal/domain/prayer"
	apperrors "github.com/yanqian/prayer-companion/pkg/errors"
)

func TestPlay_Success(t *testing.T) {
	backend := newFakeBackend()
	p := NewPlayer(SlotCurrent, backend, NewOutput(), newTestLogger())

	require.NoError(t, p.Play(context.Background(), "https://cdn.example.com/adhan/makkah.mp3"))

	state := p.State()
	require.Equal(t, StatusPlaying, state.Status)
	require.Equal(t, "https://cdn.example.com/adhan/makkah.mp3", state.SourceURL)
	require.False(t, state.AttemptedFallback)
	require.NotEmpty(t, state.SessionID)
}

func TestPlay_FailureThenRetryCacheBusts(t *testing.T) {
	backend := newFakeBackend()
	backend.fail("https://cdn.example.com/a.mp3", 1)
	now := time.UnixMilli(1_710_000_000_000)
	p := NewPlayer(SlotCurrent, backend, NewOutput(), newTestLogger(), WithNow(func() time.Time { return now }))

	err := p.Play(context.Background(), "https://cdn.example.com/a.mp3")
	require.True(t, apperrors.IsCode(err, prayer.CodePlaybackFailure))
	require.Equal(t, StatusError, p.State().Status)
	require.NotEmpty(t, p.State().Error)

	require.NoError(t, p.Retry(context.Background()))
	state := p.State()
	require.Equal(t, StatusPlaying, state.Status)

	parsed, err := url.Parse(state.SourceURL)
	require.NoError(t, err)
	require.Equal(t, "/a.mp3", parsed.Path)
	require.Equal(t, "1-1710000000000", parsed.Query().Get("cb"))
}

func TestRetry_OnlyFromError(t *testing.T) {
	p := NewPlayer(SlotCurrent, newFakeBackend(), NewOutput(), newTestLogger())
	err := p.Retry(context.Background())
	require.True(t, apperrors.IsCode(err, "invalid_state"))

	require.NoError(t, p.Play(context.Background(), "https://cdn.example.com/a.mp3"))
	err = p.Retry(context.Background())
	require.True(t, apperrors.IsCode(err, "invalid_state"))
}

func TestRetry_SuccessiveAttemptsDiffer(t *testing.T) {
	backend := newFakeBackend()
	backend.fail("https://cdn.example.com/a.mp3?x=1", 3)
	p := NewPlayer(SlotCurrent, backend, NewOutput(), newTestLogger())

	_ = p.Play(context.Background(), "https://cdn.example.com/a.mp3?x=1")
	_ = p.Retry(context.Background())
	first := p.State().SourceURL
	_ = p.Retry(context.Background())
	second := p.State().SourceURL

	require.NotEqual(t, first, second)
	require.Contains(t, first, "x=1")
	require.Contains(t, second, "cb=2-")
}

func TestTryFallback_OfferedOncePerEpisode(t *testing.T) {
	backend := newFakeBackend()
	backend.fail("https://cdn.example.com/a.mp3", 1)
	p := NewPlayer(SlotNext, backend, NewOutput(), newTestLogger())

	require.Error(t, p.Play(context.Background(), "https://cdn.example.com/a.mp3"))

	ok, err := p.TryFallback(context.Background(), "https://cdn.example.com/b.mp3")
	require.NoError(t, err)
	require.True(t, ok)
	state := p.State()
	require.Equal(t, StatusPlaying, state.Status)
	require.True(t, state.AttemptedFallback)
	require.Equal(t, "https://cdn.example.com/b.mp3", state.SourceURL)
	require.Equal(t, []string{"https://cdn.example.com/a.mp3", "https://cdn.example.com/b.mp3"}, backend.loadedURLs())

	ok, err = p.TryFallback(context.Background(), "https://cdn.example.com/c.mp3")
	require.NoError(t, err)
	require.False(t, ok)
	require.Len(t, backend.loadedURLs(), 2)
}

func TestTryFallback_GateHoldsAfterFailedFallback(t *testing.T) {
	backend := newFakeBackend()
	backend.fail("https://cdn.example.com/a.mp3", 1)
	backend.fail("https://cdn.example.com/b.mp3", 1)
	p := NewPlayer(SlotNext, backend, NewOutput(), newTestLogger())

	_ = p.Play(context.Background(), "https://cdn.example.com/a.mp3")
	ok, err := p.TryFallback(context.Background(), "https://cdn.example.com/b.mp3")
	require.True(t, ok)
	require.True(t, apperrors.IsCode(err, prayer.CodePlaybackFailure))

	ok, _ = p.TryFallback(context.Background(), "https://cdn.example.com/c.mp3")
	require.False(t, ok)

	// A fresh primary re-opens the gate.
	backend.fail("https://cdn.example.com/d.mp3", 1)
	_ = p.Play(context.Background(), "https://cdn.example.com/d.mp3")
	require.False(t, p.State().AttemptedFallback)
	ok, err = p.TryFallback(context.Background(), "https://cdn.example.com/c.mp3")
	require.True(t, ok)
	require.NoError(t, err)
}

func TestCompletionReturnsToIdle(t *testing.T) {
	backend := newFakeBackend()
	backend.fail("https://cdn.example.com/a.mp3", 1)
	p := NewPlayer(SlotAlert, backend, NewOutput(), newTestLogger())

	_ = p.Play(context.Background(), "https://cdn.example.com/a.mp3")
	_, _ = p.TryFallback(context.Background(), "https://cdn.example.com/b.mp3")
	require.True(t, p.State().AttemptedFallback)

	backend.lastTrack().finish(nil)
	require.Eventually(t, func() bool { return p.State().Status == StatusIdle }, time.Second, time.Millisecond)
	require.False(t, p.State().AttemptedFallback)
}

func TestStopAlwaysLegal(t *testing.T) {
	backend := newFakeBackend()
	p := NewPlayer(SlotCurrent, backend, NewOutput(), newTestLogger())

	p.Stop()
	require.Equal(t, StatusIdle, p.State().Status)

	require.NoError(t, p.Play(context.Background(), "https://cdn.example.com/a.mp3"))
	track := backend.lastTrack()
	p.Stop()
	p.Stop()
	require.Equal(t, StatusIdle, p.State().Status)
	require.True(t, track.isStopped())

	// A completion racing with Stop is ignored.
	track.finish(errors.New("late"))
	require.Equal(t, StatusIdle, p.State().Status)
}

func TestOutput_SingleActiveSource(t *testing.T) {
	backend := newFakeBackend()
	deck := NewDeck(backend, newTestLogger(), []string{SlotCurrent, SlotNext})
	current, err := deck.Player(SlotCurrent)
	require.NoError(t, err)
	next, err := deck.Player(SlotNext)
	require.NoError(t, err)

	require.NoError(t, current.Play(context.Background(), "https://cdn.example.com/a.mp3"))
	first := backend.lastTrack()
	current.Stop()
	require.NoError(t, current.Play(context.Background(), "https://cdn.example.com/a.mp3"))
	second := backend.lastTrack()
	require.NoError(t, next.Play(context.Background(), "https://cdn.example.com/b.mp3"))

	require.True(t, first.isStopped())
	require.True(t, second.isStopped())
	require.Equal(t, StatusIdle, current.State().Status)
	require.Equal(t, StatusPlaying, next.State().Status)
	require.Equal(t, SlotNext, deck.Active())
	require.Equal(t, 1, backend.playingCount())
}

func TestOutput_ConcurrentClaimsLeaveOnePlaying(t *testing.T) {
	backend := newFakeBackend()
	deck := NewDeck(backend, newTestLogger(), []string{SlotCurrent, SlotNext})
	current, err := deck.Player(SlotCurrent)
	require.NoError(t, err)
	next, err := deck.Player(SlotNext)
	require.NoError(t, err)

	for i := 0; i < 200; i++ {
		var wg sync.WaitGroup
		errs := make(chan error, 2)
		for _, p := range []*Player{current, next} {
			wg.Add(1)
			go func(p *Player) {
				defer wg.Done()
				errs <- p.Play(context.Background(), "https://cdn.example.com/"+p.slot+".mp3")
			}(p)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}

		require.Equal(t, 1, backend.playingCount(), "iteration %d", i)
		playing := ""
		for _, state := range deck.States() {
			if state.Status == StatusPlaying {
				require.Empty(t, playing, "iteration %d", i)
				playing = state.Slot
			}
		}
		require.Equal(t, playing, deck.Active(), "iteration %d", i)
	}
}

func TestStopDuringLoadDiscardsTrack(t *testing.T) {
	backend := newFakeBackend()
	gate := make(chan struct{})
	backend.block = gate
	p := NewPlayer(SlotCurrent, backend, NewOutput(), newTestLogger())

	done := make(chan error, 1)
	go func() { done <- p.Play(context.Background(), "https://cdn.example.com/a.mp3") }()
	require.Eventually(t, func() bool { return p.State().Status == StatusLoading }, time.Second, time.Millisecond)

	p.Stop()
	close(gate)
	require.NoError(t, <-done)
	require.Equal(t, StatusIdle, p.State().Status)
	require.True(t, backend.lastTrack().isStopped())
	require.Equal(t, 0, backend.playingCount())
}

func TestDeck_UnknownSlot(t *testing.T) {
	deck := NewDeck(newFakeBackend(), newTestLogger(), []string{SlotCurrent})
	_, err := deck.Player("kitchen")
	require.True(t, apperrors.IsCode(err, prayer.CodeInvalidInput))
	require.Len(t, deck.States(), 1)
}

func TestCacheBustWithoutScheme(t *testing.T) {
	out := cacheBust("audio/a.mp3", 2, time.UnixMilli(42))
	require.True(t, strings.HasSuffix(out, "cb=2-42"))
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeBackend struct {
	mu       sync.Mutex
	failures map[string]int
	loaded   []string
	tracks   []*fakeTrack
	block    chan struct{}
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{failures: make(map[string]int)}
}

func (b *fakeBackend) fail(address string, times int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures[address] = times
}

func (b *fakeBackend) Load(_ context.Context, address string, _ float64) (Track, error) {
	if b.block != nil {
		<-b.block
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.loaded = append(b.loaded, address)
	key := address
	if parsed, err := url.Parse(address); err == nil {
		q := parsed.Query()
		q.Del(cacheBustParam)
		parsed.RawQuery = q.Encode()
		key = parsed.String()
	}
	if b.failures[key] > 0 {
		b.failures[key]--
		return nil, errors.New("fetch failed")
	}
	track := &fakeTrack{}
	b.tracks = append(b.tracks, track)
	return track, nil
}

func (b *fakeBackend) loadedURLs() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.loaded...)
}

func (b *fakeBackend) lastTrack() *fakeTrack {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.tracks[len(b.tracks)-1]
}

func (b *fakeBackend) playingCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	count := 0
	for _, tr := range b.tracks {
		if tr.isPlaying() {
			count++
		}
	}
	return count
}

type fakeTrack struct {
	mu      sync.Mutex
	started bool
	stopped bool
	onDone  func(error)
}

func (t *fakeTrack) Start(onDone func(error)) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.started = true
	t.onDone = onDone
	return nil
}

func (t *fakeTrack) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
}

func (t *fakeTrack) finish(err error) {
	t.mu.Lock()
	onDone := t.onDone
	t.mu.Unlock()
	if onDone != nil {
		go onDone(err)
	}
}

func (t *fakeTrack) isStopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

func (t *fakeTrack) isPlaying() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.started && !t.stopped
}
