package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yanqian/prayer-companion/internal/domain/adhan"
	"github.com/yanqian/prayer-companion/internal/domain/auth"
	"github.com/yanqian/prayer-companion/internal/domain/countdown"
	"github.com/yanqian/prayer-companion/internal/domain/engine"
	"github.com/yanqian/prayer-companion/internal/domain/prayer"
	"github.com/yanqian/prayer-companion/internal/domain/prefs"
)

// Engine is the scheduling surface the transport depends on.
type Engine interface {
	Snapshot() engine.Snapshot
	Ready() bool
	Refresh(ctx context.Context, reason string) (engine.Snapshot, error)
	Subscribe(buffer int) (<-chan countdown.Tick, func())
	Calendar(ctx context.Context, year int, month time.Month) ([]prayer.DailySchedule, error)

	Preferences(ctx context.Context) prefs.Preferences
	SetMethod(ctx context.Context, method prayer.Method) (engine.Snapshot, error)
	SaveLocation(ctx context.Context, coord prayer.Coordinate) (engine.Snapshot, error)
	ClearLocation(ctx context.Context) (engine.Snapshot, error)
	SetNotifications(ctx context.Context, name prayer.Name, enabled bool) (engine.Snapshot, error)
	SetAdhanSettings(ctx context.Context, settings engine.AdhanSettings) (prefs.Preferences, error)

	PlayAdhan(ctx context.Context, slot string) (adhan.State, error)
	StopAdhan(slot string) (adhan.State, error)
	RetryAdhan(ctx context.Context, slot string) (adhan.State, error)
	FallbackAdhan(ctx context.Context, slot string) (adhan.State, bool, error)
	AdhanState(slot string) (adhan.State, error)
}

// Handler wires the HTTP transport to the engine and the account service.
type Handler struct {
	engine  Engine
	authSvc auth.Service
	logger  *slog.Logger
	now     func() time.Time
}

// NewHandler constructs the root HTTP handler.
func NewHandler(eng Engine, authSvc auth.Service, logger *slog.Logger) *Handler {
	return &Handler{
		engine:  eng,
		authSvc: authSvc,
		logger:  logger.With("component", "http.handler"),
		now:     time.Now,
	}
}

// Health reports liveness and whether a schedule is loaded.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "ready": h.engine.Ready()})
}

var _ Engine = (*engine.Engine)(nil)
