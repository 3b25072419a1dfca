//go:build wireinject
// +build wireinject

package di

import (
	"FinCast/pkg/config"
	"FinCast/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Observability
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideRedisClient,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,

		// Repositories
		ProvideTickStorage,
		ProvideTickPublisher,
		ProvidePerformanceStore,
		ProvideVersionRegistry,
		ProvideAlertStore,
		ProvideForecastLedger,
		ProvideArtifactStore,
		ProvideMarketStream,

		// Forecasting core
		ProvideForecasters,
		ProvideRetrainPolicy,
		ProvideMonitor,
		ProvideOrchestrator,
		ProvideEvaluationSweep,
		ProvideRetrainQueue,

		// Ingest path
		ProvideKafkaTicksHandler,
		ProvideTickProcessor,
		ProvideTickCollector,
		ProvideHistoryBackfill,

		// HTTP surface
		ProvideHTTPHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
