package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/yanqian/prayer-companion/internal/domain/adhan"
	"github.com/yanqian/prayer-companion/internal/domain/auth"
	"github.com/yanqian/prayer-companion/internal/domain/countdown"
	"github.com/yanqian/prayer-companion/internal/domain/engine"
	"github.com/yanqian/prayer-companion/internal/domain/prayer"
	"github.com/yanqian/prayer-companion/internal/domain/prefs"
	"github.com/yanqian/prayer-companion/internal/infra/config"
	apperrors "github.com/yanqian/prayer-companion/pkg/errors"
)

const validToken = "good-token"

func TestRouter_Health(t *testing.T) {
	eng := &stubEngine{readyFn: func() bool { return true }}

	recorder := performRequest(http.MethodGet, "/healthz", "", "", newRouterUnderTest(t, eng, nil))
	require.Equal(t, http.StatusOK, recorder.Code)
	require.JSONEq(t, `{"status":"ok","ready":true}`, recorder.Body.String())
}

func TestRouter_Countdown(t *testing.T) {
	eng := &stubEngine{
		snapshotFn: func() engine.Snapshot {
			return engine.Snapshot{
				Current:   prayer.Event{Name: prayer.Dhuhr},
				Next:      prayer.Event{Name: prayer.Asr},
				Countdown: engine.Countdown{Target: prayer.Asr, RemainingMs: 9_900_000, Formatted: "2h 45m 0s"},
			}
		},
	}

	recorder := performRequest(http.MethodGet, "/api/v1/prayer/countdown", "", "", newRouterUnderTest(t, eng, nil))
	require.Equal(t, http.StatusOK, recorder.Code)

	var body struct {
		Current   prayer.Event     `json:"current"`
		Next      prayer.Event     `json:"next"`
		Countdown engine.Countdown `json:"countdown"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	require.Equal(t, prayer.Dhuhr, body.Current.Name)
	require.Equal(t, prayer.Asr, body.Next.Name)
	require.Equal(t, "2h 45m 0s", body.Countdown.Formatted)
}

func TestRouter_CalendarProviderFailure(t *testing.T) {
	eng := &stubEngine{
		calendarFn: func(ctx context.Context, year int, month time.Month) ([]prayer.DailySchedule, error) {
			require.Equal(t, 2024, year)
			require.Equal(t, time.March, month)
			return nil, apperrors.Wrap(prayer.CodeTimingUnavailable, "monthly calendar unavailable", nil)
		},
	}

	recorder := performRequest(http.MethodGet, "/api/v1/prayer/calendar?year=2024&month=3", "", "", newRouterUnderTest(t, eng, nil))
	require.Equal(t, http.StatusBadGateway, recorder.Code)

	errBody := decodeErrorBody(t, recorder.Body.Bytes())
	require.Equal(t, prayer.CodeTimingUnavailable, errBody["error"]["code"])
	require.Equal(t, "monthly calendar unavailable", errBody["error"]["message"])
}

func TestRouter_CalendarInvalidQuery(t *testing.T) {
	recorder := performRequest(http.MethodGet, "/api/v1/prayer/calendar?year=abc", "", "", newRouterUnderTest(t, &stubEngine{}, nil))
	require.Equal(t, http.StatusBadRequest, recorder.Code)
	require.Equal(t, "invalid_request", decodeErrorBody(t, recorder.Body.Bytes())["error"]["code"])
}

func TestRouter_CalendarRetriesTransientFailure(t *testing.T) {
	calls := 0
	eng := &stubEngine{
		calendarFn: func(ctx context.Context, year int, month time.Month) ([]prayer.DailySchedule, error) {
			calls++
			if calls == 1 {
				return nil, apperrors.Wrap(prayer.CodeTimingUnavailable, "monthly calendar unavailable", nil)
			}
			return []prayer.DailySchedule{{}}, nil
		},
	}
	cfg := newTestConfig()
	cfg.HTTP.Retry = config.RetryConfig{Enabled: true, MaxAttempts: 2, Include: []string{"/api/v1/prayer/calendar"}}

	recorder := performRequest(http.MethodGet, "/api/v1/prayer/calendar?year=2024&month=3", "", "", newRouterWithConfig(t, cfg, eng, nil))
	require.Equal(t, http.StatusOK, recorder.Code)
	require.Equal(t, 2, calls)
}

func TestRouter_MutationsRequireToken(t *testing.T) {
	server := newRouterUnderTest(t, &stubEngine{}, nil)

	recorder := performRequest(http.MethodPost, "/api/v1/prayer/refresh", "", "", server)
	require.Equal(t, http.StatusUnauthorized, recorder.Code)
	require.Equal(t, "unauthorized", decodeErrorBody(t, recorder.Body.Bytes())["error"]["code"])

	recorder = performRequest(http.MethodPost, "/api/v1/adhan/current/play", "", "bogus", server)
	require.Equal(t, http.StatusForbidden, recorder.Code)
	require.Equal(t, "invalid_token", decodeErrorBody(t, recorder.Body.Bytes())["error"]["code"])
}

func TestRouter_SetMethod(t *testing.T) {
	var got prayer.Method
	eng := &stubEngine{
		setMethodFn: func(ctx context.Context, method prayer.Method) (engine.Snapshot, error) {
			got = method
			return engine.Snapshot{Schedule: prayer.DailySchedule{Method: method}}, nil
		},
	}
	server := newRouterUnderTest(t, eng, nil)

	recorder := performRequest(http.MethodPut, "/api/v1/preferences/method", `{"method":2}`, validToken, server)
	require.Equal(t, http.StatusOK, recorder.Code)
	require.Equal(t, prayer.Method(2), got)

	recorder = performRequest(http.MethodPut, "/api/v1/preferences/method", `{}`, validToken, server)
	require.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestRouter_SaveLocationInvalidCoordinate(t *testing.T) {
	eng := &stubEngine{
		saveLocationFn: func(ctx context.Context, coord prayer.Coordinate) (engine.Snapshot, error) {
			return engine.Snapshot{}, coord.Validate()
		},
	}

	recorder := performRequest(http.MethodPut, "/api/v1/preferences/location", `{"latitude":120,"longitude":10}`, validToken, newRouterUnderTest(t, eng, nil))
	require.Equal(t, http.StatusBadRequest, recorder.Code)
	require.Equal(t, prayer.CodeInvalidCoordinate, decodeErrorBody(t, recorder.Body.Bytes())["error"]["code"])
}

func TestRouter_SetNotifications(t *testing.T) {
	var gotName prayer.Name
	var gotEnabled bool
	eng := &stubEngine{
		setNotificationsFn: func(ctx context.Context, name prayer.Name, enabled bool) (engine.Snapshot, error) {
			gotName, gotEnabled = name, enabled
			return engine.Snapshot{}, nil
		},
	}
	server := newRouterUnderTest(t, eng, nil)

	recorder := performRequest(http.MethodPut, "/api/v1/preferences/notifications/maghrib", `{"enabled":false}`, validToken, server)
	require.Equal(t, http.StatusOK, recorder.Code)
	require.Equal(t, prayer.Maghrib, gotName)
	require.False(t, gotEnabled)

	recorder = performRequest(http.MethodPut, "/api/v1/preferences/notifications/tahajjud", `{"enabled":true}`, validToken, server)
	require.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestRouter_AdhanPlaybackFailure(t *testing.T) {
	eng := &stubEngine{
		playAdhanFn: func(ctx context.Context, slot string) (adhan.State, error) {
			require.Equal(t, adhan.SlotNext, slot)
			return adhan.State{Slot: slot, Status: adhan.StatusError}, apperrors.Wrap(prayer.CodePlaybackFailure, "adhan audio could not be played", nil)
		},
	}

	recorder := performRequest(http.MethodPost, "/api/v1/adhan/next/play", "", validToken, newRouterUnderTest(t, eng, nil))
	require.Equal(t, http.StatusBadGateway, recorder.Code)
	require.Equal(t, prayer.CodePlaybackFailure, decodeErrorBody(t, recorder.Body.Bytes())["error"]["code"])
}

func TestRouter_AdhanFallback(t *testing.T) {
	eng := &stubEngine{
		fallbackAdhanFn: func(ctx context.Context, slot string) (adhan.State, bool, error) {
			return adhan.State{Slot: slot, Status: adhan.StatusPlaying, AttemptedFallback: true}, true, nil
		},
	}

	recorder := performRequest(http.MethodPost, "/api/v1/adhan/alert/fallback", "", validToken, newRouterUnderTest(t, eng, nil))
	require.Equal(t, http.StatusOK, recorder.Code)

	var body struct {
		State    adhan.State `json:"state"`
		Switched bool        `json:"switched"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	require.True(t, body.Switched)
	require.True(t, body.State.AttemptedFallback)
	require.Equal(t, adhan.SlotAlert, body.State.Slot)
}

func TestRouter_AdhanStateUnknownSlot(t *testing.T) {
	eng := &stubEngine{
		adhanStateFn: func(slot string) (adhan.State, error) {
			return adhan.State{}, apperrors.Wrap(prayer.CodeInvalidInput, "unknown player slot "+slot, nil)
		},
	}

	recorder := performRequest(http.MethodGet, "/api/v1/adhan/kitchen", "", "", newRouterUnderTest(t, eng, nil))
	require.Equal(t, http.StatusBadRequest, recorder.Code)
	require.Contains(t, decodeErrorBody(t, recorder.Body.Bytes())["error"]["message"], "kitchen")
}

func TestRouter_CountdownStream(t *testing.T) {
	ticks := []countdown.Tick{
		{Next: prayer.Event{Name: prayer.Asr}, RemainingMs: 2000, Formatted: "0h 0m 2s"},
		{Next: prayer.Event{Name: prayer.Asr}, RemainingMs: 1000, Formatted: "0h 0m 1s"},
	}
	cancelled := false
	eng := &stubEngine{
		subscribeFn: func(buffer int) (<-chan countdown.Tick, func()) {
			ch := make(chan countdown.Tick, len(ticks))
			for _, tick := range ticks {
				ch <- tick
			}
			close(ch)
			return ch, func() { cancelled = true }
		},
	}

	recorder := performRequest(http.MethodGet, "/api/v1/prayer/countdown/stream", "", "", newRouterUnderTest(t, eng, nil))
	require.Equal(t, http.StatusOK, recorder.Code)
	require.Equal(t, "text/event-stream", recorder.Header().Get("Content-Type"))
	require.True(t, cancelled)

	frames := strings.Split(strings.TrimSpace(recorder.Body.String()), "\n\n")
	require.Len(t, frames, len(ticks))
	for i, frame := range frames {
		require.True(t, strings.HasPrefix(frame, "data: "))
		var got countdown.Tick
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(frame, "data: ")), &got))
		require.Equal(t, ticks[i].RemainingMs, got.RemainingMs)
		require.Equal(t, ticks[i].Formatted, got.Formatted)
	}
}

func TestRouter_RegisterDuplicateEmail(t *testing.T) {
	authSvc := &stubAuth{
		registerFn: func(ctx context.Context, req auth.RegisterRequest) (auth.MemberView, error) {
			require.Equal(t, "amina@example.com", req.Email)
			return auth.MemberView{}, apperrors.Wrap("email_exists", "email already registered", auth.ErrEmailExists)
		},
	}

	body := `{"email":"amina@example.com","password":"secret123","displayName":"Amina"}`
	recorder := performRequest(http.MethodPost, "/api/v1/auth/register", body, "", newRouterUnderTest(t, &stubEngine{}, authSvc))
	require.Equal(t, http.StatusConflict, recorder.Code)
	require.Equal(t, "email_exists", decodeErrorBody(t, recorder.Body.Bytes())["error"]["code"])
}

func TestRouter_CORSPreflight(t *testing.T) {
	cfg := newTestConfig()
	cfg.HTTP.CORS.AllowedOrigins = []string{"https://home.example"}
	server := newRouterWithConfig(t, cfg, &stubEngine{}, nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/preferences/method", nil)
	req.Header.Set("Origin", "https://home.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPut)
	rec := httptest.NewRecorder()
	server.Handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "https://home.example", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestIPRateLimiter(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	limiter := newIPRateLimiter(config.RateLimitConfig{Enabled: true, RequestsPerMinute: 60, Burst: 2}, func() time.Time { return now })

	require.True(t, limiter.allow("10.0.0.1"))
	require.True(t, limiter.allow("10.0.0.1"))
	require.False(t, limiter.allow("10.0.0.1"))
	require.True(t, limiter.allow("10.0.0.2"))

	now = now.Add(time.Second)
	require.True(t, limiter.allow("10.0.0.1"))

	now = now.Add(10 * time.Minute)
	limiter.allow("10.0.0.3")
	require.Len(t, limiter.visitors, 1)
}

func performRequest(method, path, body, token string, server *http.Server) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	server.Handler.ServeHTTP(rec, req)
	return rec
}

func newTestConfig() *config.Config {
	return &config.Config{
		HTTP: config.HTTPConfig{
			Address:     ":0",
			ReadTimeout: time.Second,
		},
	}
}

func newRouterUnderTest(t *testing.T, eng Engine, authSvc auth.Service) *http.Server {
	t.Helper()
	return newRouterWithConfig(t, newTestConfig(), eng, authSvc)
}

func newRouterWithConfig(t *testing.T, cfg *config.Config, eng Engine, authSvc auth.Service) *http.Server {
	t.Helper()
	if authSvc == nil {
		authSvc = &stubAuth{}
	}
	handler := NewHandler(eng, authSvc, newTestLogger())
	handler.now = func() time.Time { return time.Date(2024, 3, 10, 13, 0, 0, 0, time.UTC) }
	return NewRouter(cfg, handler, authSvc, newTestLogger())
}

func newTestLogger() *slog.Logger {
	handler := slog.NewTextHandler(io.Discard, nil)
	return slog.New(handler)
}

func decodeErrorBody(t *testing.T, raw []byte) map[string]map[string]string {
	t.Helper()
	var body map[string]map[string]string
	require.NoError(t, json.Unmarshal(raw, &body))
	return body
}

type stubEngine struct {
	snapshotFn         func() engine.Snapshot
	readyFn            func() bool
	refreshFn          func(ctx context.Context, reason string) (engine.Snapshot, error)
	subscribeFn        func(buffer int) (<-chan countdown.Tick, func())
	calendarFn         func(ctx context.Context, year int, month time.Month) ([]prayer.DailySchedule, error)
	setMethodFn        func(ctx context.Context, method prayer.Method) (engine.Snapshot, error)
	saveLocationFn     func(ctx context.Context, coord prayer.Coordinate) (engine.Snapshot, error)
	setNotificationsFn func(ctx context.Context, name prayer.Name, enabled bool) (engine.Snapshot, error)
	playAdhanFn        func(ctx context.Context, slot string) (adhan.State, error)
	fallbackAdhanFn    func(ctx context.Context, slot string) (adhan.State, bool, error)
	adhanStateFn       func(slot string) (adhan.State, error)
}

func (s *stubEngine) Snapshot() engine.Snapshot {
	if s.snapshotFn != nil {
		return s.snapshotFn()
	}
	return engine.Snapshot{}
}

func (s *stubEngine) Ready() bool {
	if s.readyFn != nil {
		return s.readyFn()
	}
	return false
}

func (s *stubEngine) Refresh(ctx context.Context, reason string) (engine.Snapshot, error) {
	if s.refreshFn != nil {
		return s.refreshFn(ctx, reason)
	}
	return engine.Snapshot{}, nil
}

func (s *stubEngine) Subscribe(buffer int) (<-chan countdown.Tick, func()) {
	if s.subscribeFn != nil {
		return s.subscribeFn(buffer)
	}
	ch := make(chan countdown.Tick)
	close(ch)
	return ch, func() {}
}

func (s *stubEngine) Calendar(ctx context.Context, year int, month time.Month) ([]prayer.DailySchedule, error) {
	if s.calendarFn != nil {
		return s.calendarFn(ctx, year, month)
	}
	return nil, nil
}

func (s *stubEngine) Preferences(ctx context.Context) prefs.Preferences {
	return prefs.Preferences{Method: prayer.DefaultMethod}
}

func (s *stubEngine) SetMethod(ctx context.Context, method prayer.Method) (engine.Snapshot, error) {
	if s.setMethodFn != nil {
		return s.setMethodFn(ctx, method)
	}
	return engine.Snapshot{}, nil
}

func (s *stubEngine) SaveLocation(ctx context.Context, coord prayer.Coordinate) (engine.Snapshot, error) {
	if s.saveLocationFn != nil {
		return s.saveLocationFn(ctx, coord)
	}
	return engine.Snapshot{}, nil
}

func (s *stubEngine) ClearLocation(ctx context.Context) (engine.Snapshot, error) {
	return engine.Snapshot{}, nil
}

func (s *stubEngine) SetNotifications(ctx context.Context, name prayer.Name, enabled bool) (engine.Snapshot, error) {
	if s.setNotificationsFn != nil {
		return s.setNotificationsFn(ctx, name, enabled)
	}
	return engine.Snapshot{}, nil
}

func (s *stubEngine) SetAdhanSettings(ctx context.Context, settings engine.AdhanSettings) (prefs.Preferences, error) {
	return prefs.Preferences{}, nil
}

func (s *stubEngine) PlayAdhan(ctx context.Context, slot string) (adhan.State, error) {
	if s.playAdhanFn != nil {
		return s.playAdhanFn(ctx, slot)
	}
	return adhan.State{Slot: slot}, nil
}

func (s *stubEngine) StopAdhan(slot string) (adhan.State, error) {
	return adhan.State{Slot: slot, Status: adhan.StatusIdle}, nil
}

func (s *stubEngine) RetryAdhan(ctx context.Context, slot string) (adhan.State, error) {
	return adhan.State{Slot: slot}, nil
}

func (s *stubEngine) FallbackAdhan(ctx context.Context, slot string) (adhan.State, bool, error) {
	if s.fallbackAdhanFn != nil {
		return s.fallbackAdhanFn(ctx, slot)
	}
	return adhan.State{Slot: slot}, false, nil
}

func (s *stubEngine) AdhanState(slot string) (adhan.State, error) {
	if s.adhanStateFn != nil {
		return s.adhanStateFn(slot)
	}
	return adhan.State{Slot: slot, Status: adhan.StatusIdle}, nil
}

type stubAuth struct {
	registerFn func(ctx context.Context, req auth.RegisterRequest) (auth.MemberView, error)
}

func (s *stubAuth) Register(ctx context.Context, req auth.RegisterRequest) (auth.MemberView, error) {
	if s.registerFn != nil {
		return s.registerFn(ctx, req)
	}
	return auth.MemberView{}, nil
}

func (s *stubAuth) Login(ctx context.Context, req auth.LoginRequest) (auth.Session, error) {
	return auth.Session{}, nil
}

func (s *stubAuth) Refresh(ctx context.Context, refreshToken string) (auth.Session, error) {
	return auth.Session{}, nil
}

func (s *stubAuth) ValidateToken(ctx context.Context, token string) (auth.Claims, error) {
	if token != validToken {
		return auth.Claims{}, apperrors.Wrap("invalid_token", "token is invalid", nil)
	}
	return auth.Claims{MemberID: 1, Email: "amina@example.com", TokenType: "access"}, nil
}

func (s *stubAuth) Profile(ctx context.Context, memberID int64) (auth.MemberView, error) {
	return auth.MemberView{ID: memberID}, nil
}
