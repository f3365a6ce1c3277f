package main

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/valkey-io/valkey-go"

	"github.com/yanqian/prayer-companion/internal/domain/adhan"
	"github.com/yanqian/prayer-companion/internal/domain/auth"
	"github.com/yanqian/prayer-companion/internal/domain/engine"
	"github.com/yanqian/prayer-companion/internal/domain/location"
	"github.com/yanqian/prayer-companion/internal/domain/notify"
	"github.com/yanqian/prayer-companion/internal/domain/prayer"
	"github.com/yanqian/prayer-companion/internal/domain/prefs"
	"github.com/yanqian/prayer-companion/internal/domain/timing"
	"github.com/yanqian/prayer-companion/internal/infra/aladhan"
	"github.com/yanqian/prayer-companion/internal/infra/audio/beepaudio"
	"github.com/yanqian/prayer-companion/internal/infra/audio/headless"
	"github.com/yanqian/prayer-companion/internal/infra/audio/vlcaudio"
	"github.com/yanqian/prayer-companion/internal/infra/audioasset"
	"github.com/yanqian/prayer-companion/internal/infra/config"
	"github.com/yanqian/prayer-companion/internal/infra/geo"
	"github.com/yanqian/prayer-companion/internal/infra/memberrepo"
	"github.com/yanqian/prayer-companion/internal/infra/notifysink"
	"github.com/yanqian/prayer-companion/internal/infra/prefstore"
	"github.com/yanqian/prayer-companion/pkg/metrics"
)

func provideTimeLocation(cfg *config.Config) (*time.Location, error) {
	return cfg.Timing.LoadLocation()
}

func provideEngineCounters() *metrics.EngineCounters {
	return metrics.NewEngineCounters()
}

func provideAuthConfig(cfg *config.Config) auth.Config {
	return auth.Config{
		Secret:          cfg.Auth.Secret,
		TokenTTL:        cfg.Auth.TokenTTL,
		RefreshTokenTTL: cfg.Auth.RefreshTokenTTL,
	}
}

// providePostgresPool returns nil when no DSN is configured or the database is unreachable.
func providePostgresPool(cfg *config.Config, logger *slog.Logger) (*pgxpool.Pool, func()) {
	dsn := strings.TrimSpace(cfg.Preferences.Postgres.DSN)
	if dsn == "" {
		return nil, func() {}
	}
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		logger.Error("invalid postgres dsn, using memory stores", "error", err)
		return nil, func() {}
	}
	if cfg.Preferences.Postgres.MaxConns > 0 {
		poolConfig.MaxConns = cfg.Preferences.Postgres.MaxConns
	}
	if cfg.Preferences.Postgres.MinConns > 0 {
		poolConfig.MinConns = cfg.Preferences.Postgres.MinConns
	}
	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		logger.Error("failed to initialize postgres pool, using memory stores", "error", err)
		return nil, func() {}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctx); err != nil {
		logger.Error("postgres ping failed, using memory stores", "error", err)
		pool.Close()
		return nil, func() {}
	}
	logger.Info("postgres pool ready")
	return pool, pool.Close
}

// provideValkeyClient returns nil unless the valkey preference backend is selected and reachable.
func provideValkeyClient(cfg *config.Config, logger *slog.Logger) (valkey.Client, func()) {
	if cfg.Preferences.Backend != config.BackendValkey {
		return nil, func() {}
	}
	opt, err := buildValkeyOptions(cfg.Preferences.Valkey.Addr)
	if err != nil {
		logger.Error("invalid valkey configuration, falling back to memory store", "error", err)
		return nil, func() {}
	}
	client, err := valkey.NewClient(opt)
	if err != nil {
		logger.Error("failed to create valkey client, falling back to memory store", "error", err)
		return nil, func() {}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		logger.Error("valkey ping failed, falling back to memory store", "error", err)
		client.Close()
		return nil, func() {}
	}
	return client, client.Close
}

func buildValkeyOptions(addr string) (valkey.ClientOption, error) {
	if strings.Contains(addr, "://") {
		return valkey.ParseURL(addr)
	}
	return valkey.ClientOption{InitAddress: []string{addr}}, nil
}

func providePreferenceStore(cfg *config.Config, pool *pgxpool.Pool, client valkey.Client, logger *slog.Logger) prefs.Store {
	switch cfg.Preferences.Backend {
	case config.BackendValkey:
		if client != nil {
			logger.Info("valkey preference store enabled", "addr", cfg.Preferences.Valkey.Addr)
			return prefstore.NewValkeyStore(client, cfg.Preferences.Valkey.Prefix)
		}
	case config.BackendPostgres:
		if pool != nil {
			store := prefstore.NewPostgresStore(pool)
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := store.Migrate(ctx); err != nil {
				logger.Error("preferences migration failed, using memory store", "error", err)
				break
			}
			logger.Info("postgres preference store enabled")
			return store
		}
	}
	logger.Info("using in-memory preference store", "backend", cfg.Preferences.Backend)
	return prefstore.NewMemoryStore()
}

func providePreferenceDefaults(cfg *config.Config) prefs.Defaults {
	return prefs.Defaults{
		Method:  prayer.Method(cfg.Timing.Method),
		Reciter: cfg.Adhan.Reciter,
	}
}

func provideMemberRepository(pool *pgxpool.Pool, logger *slog.Logger) auth.Repository {
	if pool == nil {
		logger.Info("postgres not configured, using in-memory member repository")
		return memberrepo.NewMemoryRepository()
	}
	repo := memberrepo.NewPostgresRepository(pool)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := repo.Migrate(ctx); err != nil {
		logger.Error("members migration failed, using in-memory member repository", "error", err)
		return memberrepo.NewMemoryRepository()
	}
	return repo
}

func provideTimingConfig(cfg *config.Config, loc *time.Location) timing.Config {
	return timing.Config{Location: loc, Timeout: cfg.Timing.Timeout}
}

func provideTimingProvider(cfg *config.Config, loc *time.Location) timing.Provider {
	client := aladhan.NewClient(cfg.Timing.BaseURL, loc, cfg.Timing.Timeout)
	if cfg.Timing.RequestsPerSecond <= 0 {
		return client
	}
	return aladhan.NewRateLimitedProvider(client, cfg.Timing.RequestsPerSecond, cfg.Timing.Burst)
}

func provideLocator(cfg *config.Config, prefsSvc prefs.Service, logger *slog.Logger) *location.Resolver {
	var device location.DeviceLocator
	if cfg.Location.DeviceLookup && cfg.Location.GeoIPURL != "" {
		device = geo.NewIPLocator(cfg.Location.GeoIPURL, cfg.Location.Timeout)
	}
	var geocoder location.ReverseGeocoder
	if cfg.Location.ReverseGeocodeURL != "" {
		geocoder = geo.NewNominatimGeocoder(cfg.Location.ReverseGeocodeURL, cfg.Location.UserAgent, cfg.Location.Timeout)
	}
	return location.NewResolver(prefsSvc, device, geocoder, logger)
}

func provideNotificationSink(cfg *config.Config, logger *slog.Logger) (notify.Sink, func()) {
	if !cfg.Notifications.Enabled {
		logger.Info("notifications disabled")
		return notifysink.Unavailable(), func() {}
	}
	mqttCfg := cfg.Notifications.MQTT
	if mqttCfg.Broker == "" {
		return notifysink.NewLogSink(logger), func() {}
	}
	sink, err := notifysink.NewMQTTSink(notifysink.MQTTConfig{
		Broker:      mqttCfg.Broker,
		ClientID:    mqttCfg.ClientID,
		Username:    mqttCfg.Username,
		Password:    mqttCfg.Password,
		TopicPrefix: mqttCfg.TopicPrefix,
	}, logger)
	if err != nil {
		logger.Error("mqtt sink unavailable, logging notifications instead", "error", err)
		return notifysink.NewLogSink(logger), func() {}
	}
	return sink, func() { _ = sink.Close() }
}

func provideAudioBackend(cfg *config.Config, logger *slog.Logger) (adhan.Backend, func()) {
	fallback := headless.NewBackend(cfg.Adhan.HeadlessDuration, cfg.Timing.Timeout)
	switch cfg.Adhan.Backend {
	case config.AudioBeep:
		backend, err := beepaudio.NewBackend(logger)
		if err != nil {
			logger.Error("speaker output unavailable, using headless playback", "error", err)
			return fallback, func() {}
		}
		return backend, func() { _ = backend.Close() }
	case config.AudioVLC:
		backend, err := vlcaudio.NewBackend(logger)
		if err != nil {
			logger.Error("libvlc unavailable, using headless playback", "error", err)
			return fallback, func() {}
		}
		return backend, func() { _ = backend.Close() }
	}
	return fallback, func() {}
}

func provideAssetResolver(cfg *config.Config, logger *slog.Logger) engine.AssetResolver {
	bucket := cfg.Adhan.Bucket
	if bucket.Enabled() {
		resolver, err := audioasset.NewBucketResolver(audioasset.BucketConfig{
			Endpoint:   bucket.Endpoint,
			AccessKey:  bucket.AccessKey,
			SecretKey:  bucket.SecretKey,
			Bucket:     bucket.Name,
			UseSSL:     bucket.UseSSL,
			PresignTTL: bucket.PresignTTL,
		}, cfg.Adhan.FallbackReciters, logger)
		if err == nil {
			return resolver
		}
		logger.Error("asset bucket unavailable, using static asset urls", "error", err)
	}
	return audioasset.NewStaticResolver(cfg.Adhan.AssetBaseURL, cfg.Adhan.FallbackReciters)
}

func provideDeck(backend adhan.Backend, prefsSvc prefs.Service, logger *slog.Logger) *adhan.Deck {
	volume := func() int {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		return prefsSvc.Volume(ctx)
	}
	slots := []string{adhan.SlotCurrent, adhan.SlotNext, adhan.SlotAlert}
	return adhan.NewDeck(backend, logger, slots, adhan.WithVolume(volume))
}

func provideEngineConfig(cfg *config.Config, loc *time.Location) engine.Config {
	return engine.Config{
		Location:       loc,
		TickInterval:   cfg.Countdown.TickInterval,
		PreAlertLead:   cfg.Countdown.PreAlertLead,
		AutoPlay:       cfg.Adhan.AutoPlay,
		RefreshTimeout: cfg.Timing.Timeout,
	}
}

func provideEngine(
	cfg engine.Config,
	locator *location.Resolver,
	timingSvc timing.Service,
	prefsSvc prefs.Service,
	dispatcher *notify.Dispatcher,
	deck *adhan.Deck,
	assets engine.AssetResolver,
	counters *metrics.EngineCounters,
	logger *slog.Logger,
) *engine.Engine {
	return engine.New(cfg, locator, timingSvc, prefsSvc, dispatcher, deck, assets, counters, logger)
}

func provideScheduler(loc *time.Location) *gocron.Scheduler {
	return gocron.NewScheduler(loc)
}
