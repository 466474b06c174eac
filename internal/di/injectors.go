//go:build wireinject
// +build wireinject

package di

import (
	wire "github.com/google/wire"

	"widgetd/internal"
	"widgetd/internal/controllers"
	"widgetd/internal/providers"
	"widgetd/internal/services"
	"widgetd/internal/snapshot"
	"widgetd/internal/storage"
	"widgetd/internal/structures"
)

func InitApp(cfg *structures.CliFlags) (*internal.App, error) {

	wire.Build(
		providers.NewConfigProvider,
		providers.NewLogProvider,
		providers.NewMetricsProvider,
		providers.NewInstrumentedCacheProvider,

		storage.NewStore,
		services.NewWidgetService,

		snapshot.NewZstdCompressor,
		snapshot.NewFileManager,
		snapshot.NewScheduler,

		controllers.NewApiController,
		controllers.NewHealthController,
		internal.InitRoutes,
		internal.NewApp,
	)

	return nil, nil
}
