//go:build wireinject
// +build wireinject

package di

import (
	"MeanRev/pkg/config"
	applogger "MeanRev/pkg/logger"
	"MeanRev/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config, l *applogger.Logger) (*server.App, error) {
	wire.Build(
		// Metrics
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideRedisCache,
		ProvideCacheService,
		ProvideResponseCache,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,

		// Repositories
		ProvideBarStore,
		ProvidePriceCache,
		ProvideDecisionPublisher,

		// Domain services
		ProvideEngine,
		ProvideClassifier,
		ProvideNewsGate,
		ProvideNewsFetcher,
		ProvideEstimator,
		ProvideEdgeGate,
		ProvideSizer,
		ProvideMonitor,
		ProvideSession,
		ProvideBarSource,

		// Use cases and workers
		ProvideDispatcher,
		ProvideBacktestJob,
		ProvideJobQueue,
		ProvideKafkaBarsHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
