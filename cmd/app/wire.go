//go:build wireinject
// +build wireinject

package main

import (
	"github.com/google/wire"

	"github.com/yanqian/prayer-companion/internal/bootstrap"
	"github.com/yanqian/prayer-companion/internal/domain/auth"
	"github.com/yanqian/prayer-companion/internal/domain/engine"
	"github.com/yanqian/prayer-companion/internal/domain/notify"
	"github.com/yanqian/prayer-companion/internal/domain/prefs"
	"github.com/yanqian/prayer-companion/internal/domain/timing"
	"github.com/yanqian/prayer-companion/internal/infra/config"
	httpiface "github.com/yanqian/prayer-companion/internal/interface/http"
	"github.com/yanqian/prayer-companion/pkg/logger"
)

func initializeApp() (*bootstrap.App, func(), error) {
	wire.Build(
		config.Load,
		logger.New,
		provideTimeLocation,
		provideEngineCounters,
		provideAuthConfig,
		providePostgresPool,
		provideValkeyClient,
		providePreferenceStore,
		providePreferenceDefaults,
		provideMemberRepository,
		provideTimingConfig,
		provideTimingProvider,
		provideLocator,
		provideNotificationSink,
		provideAudioBackend,
		provideAssetResolver,
		provideDeck,
		provideEngineConfig,
		provideEngine,
		provideScheduler,
		prefs.NewService,
		timing.NewService,
		notify.NewDispatcher,
		auth.NewService,
		wire.Bind(new(httpiface.Engine), new(*engine.Engine)),
		httpiface.NewHandler,
		httpiface.NewRouter,
		bootstrap.NewApp,
	)
	return nil, nil, nil
}
