package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/yanqian/prayer-companion/internal/domain/engine"
	"github.com/yanqian/prayer-companion/internal/infra/config"
)

// rolloverAt is a few seconds past local midnight so the provider already serves the new day.
const (
	rolloverAt  = "00:00:05"
	rolloverTag = "day_rollover"
)

// Engine is the lifecycle surface of the scheduling engine.
type Engine interface {
	Start(ctx context.Context) error
	Refresh(ctx context.Context, reason string) (engine.Snapshot, error)
	Stop()
}

// App encapsulates the engine, the rollover job and the HTTP server lifecycle.
type App struct {
	cfg       *config.Config
	logger    *slog.Logger
	server    *http.Server
	engine    Engine
	scheduler *gocron.Scheduler
}

// NewApp is used by Wire to build the runnable app.
func NewApp(cfg *config.Config, logger *slog.Logger, server *http.Server, eng *engine.Engine, scheduler *gocron.Scheduler) *App {
	return newApp(cfg, logger, server, eng, scheduler)
}

func newApp(cfg *config.Config, logger *slog.Logger, server *http.Server, eng Engine, scheduler *gocron.Scheduler) *App {
	return &App{
		cfg:       cfg,
		logger:    logger.With("component", "bootstrap"),
		server:    server,
		engine:    eng,
		scheduler: scheduler,
	}
}

// Run starts the engine, the rollover job and the HTTP server, and blocks until shutdown.
func (a *App) Run(ctx context.Context) error {
	if err := a.engine.Start(ctx); err != nil {
		return fmt.Errorf("start engine: %w", err)
	}
	if err := a.scheduleRollover(ctx); err != nil {
		a.engine.Stop()
		return err
	}
	a.scheduler.StartAsync()

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("http server starting", "address", a.cfg.HTTP.Address)
		if err := a.server.ListenAndServe(); err != nil {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
		return a.shutdown()
	case err := <-errCh:
		a.scheduler.Stop()
		a.engine.Stop()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (a *App) scheduleRollover(ctx context.Context) error {
	_, err := a.scheduler.Every(1).Day().At(rolloverAt).Tag(rolloverTag).Do(func() {
		if _, err := a.engine.Refresh(ctx, engine.ReasonDayRollover); err != nil {
			a.logger.Warn("day rollover refresh failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("schedule day rollover: %w", err)
	}
	return nil
}

func (a *App) shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := a.server.Shutdown(shutdownCtx)
	a.scheduler.Stop()
	a.engine.Stop()
	return err
}

var _ Engine = (*engine.Engine)(nil)
