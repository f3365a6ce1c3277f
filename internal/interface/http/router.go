package http

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/yanqian/prayer-companion/internal/domain/auth"
	"github.com/yanqian/prayer-companion/internal/infra/config"
)

// NewRouter wires up the HTTP handlers and returns a configured server.
func NewRouter(cfg *config.Config, handler *Handler, authSvc auth.Service, logger *slog.Logger) *http.Server {
	gin.SetMode(gin.ReleaseMode)
	logger = logger.With("component", "http.router")

	router := gin.New()
	router.Use(
		gin.Recovery(),
		requestLogger(logger),
		corsMiddleware(cfg.HTTP.CORS.AllowedOrigins),
		errorHandlingMiddleware(logger),
		rateLimitMiddleware(cfg.HTTP.RateLimit, logger),
	)

	router.GET("/healthz", handler.Health)

	requireAuth := authMiddleware(authSvc)
	api := router.Group("/api/v1")
	{
		authGroup := api.Group("/auth")
		authGroup.POST("/register", handler.Register)
		authGroup.POST("/login", handler.Login)
		authGroup.POST("/refresh", handler.RefreshSession)
		authGroup.GET("/me", requireAuth, handler.Me)

		prayerGroup := api.Group("/prayer")
		prayerGroup.GET("/schedule", handler.Schedule)
		prayerGroup.GET("/countdown", handler.Countdown)
		prayerGroup.GET("/countdown/stream", handler.CountdownStream)
		prayerGroup.GET("/calendar", handler.Calendar)
		prayerGroup.POST("/refresh", requireAuth, handler.Refresh)

		prefsGroup := api.Group("/preferences")
		prefsGroup.GET("", handler.Preferences)
		prefsGroup.PUT("/method", requireAuth, handler.SetMethod)
		prefsGroup.PUT("/location", requireAuth, handler.SaveLocation)
		prefsGroup.DELETE("/location", requireAuth, handler.ClearLocation)
		prefsGroup.PUT("/notifications/:prayer", requireAuth, handler.SetNotifications)
		prefsGroup.PUT("/adhan", requireAuth, handler.SetAdhanSettings)

		adhanGroup := api.Group("/adhan")
		adhanGroup.GET("/:slot", handler.AdhanState)
		adhanGroup.POST("/:slot/play", requireAuth, handler.PlayAdhan)
		adhanGroup.POST("/:slot/stop", requireAuth, handler.StopAdhan)
		adhanGroup.POST("/:slot/retry", requireAuth, handler.RetryAdhan)
		adhanGroup.POST("/:slot/fallback", requireAuth, handler.FallbackAdhan)
	}

	return &http.Server{
		Addr:           cfg.HTTP.Address,
		Handler:        withRetry(router, cfg.HTTP.Retry, logger),
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		MaxHeaderBytes: 1 << 20,
	}
}

func corsMiddleware(allowed []string) gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOriginFunc: func(origin string) bool {
			if len(allowed) == 0 {
				return true
			}
			for _, candidate := range allowed {
				if candidate == "*" || strings.EqualFold(candidate, origin) {
					return true
				}
			}
			return false
		},
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	})
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		attrs := []any{"method", c.Request.Method, "path", c.Request.URL.Path, "status", c.Writer.Status(), "latency_ms", latency.Milliseconds()}
		if member := requestMember(c); member != 0 {
			attrs = append(attrs, "member_id", member)
		}
		logger.Info("http request", attrs...)
	}
}
