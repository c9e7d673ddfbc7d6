package di

import (
	"context"
	"fmt"
	"time"

	"MeanRev/internal/domain/models"
	domrepo "MeanRev/internal/domain/repository"
	domsvc "MeanRev/internal/domain/service"
	"MeanRev/internal/handler/api"
	mid "MeanRev/internal/middleware"
	internalrepo "MeanRev/internal/repository"
	icache "MeanRev/internal/service/cache"
	"MeanRev/internal/service/simulator"
	"MeanRev/internal/services/drift"
	"MeanRev/internal/services/edge"
	"MeanRev/internal/services/features"
	"MeanRev/internal/services/news"
	"MeanRev/internal/services/regime"
	"MeanRev/internal/services/risk"
	"MeanRev/internal/usecase"
	pkgcache "MeanRev/pkg/cache"
	pkgch "MeanRev/pkg/clickhouse"
	"MeanRev/pkg/config"
	pkgkafka "MeanRev/pkg/kafka"
	applogger "MeanRev/pkg/logger"
	"MeanRev/pkg/metrics"
	"MeanRev/pkg/queue"
	"MeanRev/pkg/server"
)

// ProvideClickHouseClient creates the ClickHouse client. The bar store
// owns schema initialization, so this only opens the connection pool.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, nil
}

// ProvideRedisCache creates the Redis cache service shared by the price
// cache, the backtest status store and the job queue.
func ProvideRedisCache(cfg *config.Config) (*pkgcache.RedisCache, error) {
	prefix := cfg.Redis.Prefix
	if prefix == "" {
		prefix = "meanrev"
	}
	rc, err := pkgcache.NewRedisCache(
		pkgcache.WithRedisHost(cfg.Redis.Host),
		pkgcache.WithRedisPort(cfg.Redis.Port),
		pkgcache.WithRedisPassword(cfg.Redis.Password),
		pkgcache.WithRedisDB(cfg.Redis.DB),
		pkgcache.WithRedisPrefix(prefix),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return rc, nil
}

// ProvideCacheService fronts Redis with an in-process layer so hot
// reads of small keys skip the network hop.
func ProvideCacheService(rc *pkgcache.RedisCache) pkgcache.Service {
	return pkgcache.NewLayeredCache(rc)
}

// ProvideResponseCache picks the history response cache. With Redis
// enabled the cached payloads survive restarts; otherwise responses
// live in process memory.
func ProvideResponseCache(cfg *config.Config, rc *pkgcache.RedisCache) icache.BytesCache {
	if cfg.Redis.Enabled {
		return icache.NewRedisBytes(rc.Client(), "responses")
	}
	return icache.NewTTLCache()
}

// kafkaLogPublisher adapts the Kafka producer to the log collector's
// publisher contract.
type kafkaLogPublisher struct {
	producer *pkgkafka.Producer
}

func (p kafkaLogPublisher) PublishMessage(ctx context.Context, topic string, payload interface{}) error {
	return p.producer.Publish(ctx, topic, nil, payload)
}

// ProvideKafkaProducer creates the decision topic producer and hooks
// the log aggregation ring onto it. Returns nil when Kafka is disabled;
// the dispatcher treats a nil publisher as broadcast-only.
func ProvideKafkaProducer(cfg *config.Config, l *applogger.Logger) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}

	l.AddCollector(&applogger.CollectionConfig{
		TimeInterval:   30 * time.Second,
		CountThreshold: 100,
		Topic:          cfg.Kafka.TopicPrefix + ".logs",
		Publisher:      kafkaLogPublisher{producer: producer},
	})
	return producer, nil
}

// ProvideMetrics creates the Prometheus metrics recorder.
func ProvideMetrics() domrepo.Metrics {
	return metrics.New()
}

// ProvideBarStore creates the ClickHouse bar store and initializes its
// schema up front so the first insert does not race table creation.
func ProvideBarStore(chClient *pkgch.Client, cfg *config.Config, l *applogger.Logger) (domrepo.BarStore, error) {
	store := internalrepo.NewClickHouseBarStore(chClient, cfg.ClickHouse.Table)
	store.SetLogger(l)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.Init(ctx); err != nil {
		return nil, fmt.Errorf("bar store schema: %w", err)
	}
	return store, nil
}

// ProvidePriceCache creates the Redis-backed price and decision cache.
func ProvidePriceCache(svc pkgcache.Service) domrepo.PriceCache {
	return internalrepo.NewCachePriceStore(svc)
}

// ProvideDecisionPublisher creates the Kafka decision publisher, or nil
// when no producer is configured.
func ProvideDecisionPublisher(producer *pkgkafka.Producer, cfg *config.Config) domrepo.Publisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaDecisionPublisher(producer, cfg.Kafka.TopicPrefix)
}

// ProvideEngine creates the feature engine on the configured schema.
func ProvideEngine(cfg *config.Config) *features.Engine {
	schema := models.SchemaLegacy
	if cfg.Pipeline.Schema == string(models.SchemaNPLR) {
		schema = models.SchemaNPLR
	}
	return features.NewEngine(schema, cfg.Pipeline.Lookback)
}

// ProvideClassifier loads the regime artifact; a missing artifact is a
// warning, the classifier stays in no-verdict mode.
func ProvideClassifier(cfg *config.Config, l *applogger.Logger) *regime.Classifier {
	return regime.NewClassifier(
		cfg.Regime.ArtifactPath,
		cfg.Regime.StableThreshold,
		cfg.Regime.EntropyThreshold,
		l,
	)
}

// ProvideNewsGate loads the economic calendar file into the gate. A
// missing or malformed calendar starts the gate empty.
func ProvideNewsGate(cfg *config.Config, l *applogger.Logger) *news.Gate {
	var events []models.NewsEvent
	if cfg.News.CalendarPath != "" {
		loaded, err := news.LoadCalendarFile(cfg.News.CalendarPath)
		if err != nil {
			l.Warn("news calendar unavailable",
				applogger.String("path", cfg.News.CalendarPath),
				applogger.Error(err),
			)
		} else {
			events = loaded
		}
	}
	return news.NewGate(events, l)
}

// ProvideNewsFetcher creates the periodic calendar refresher, or nil
// when no fetch URL is configured.
func ProvideNewsFetcher(cfg *config.Config, gate *news.Gate, l *applogger.Logger) *news.Fetcher {
	if cfg.News.FetchURL == "" {
		return nil
	}
	return news.NewFetcher(cfg.News.FetchURL, cfg.News.FetchTimeout, cfg.News.FetchInterval, gate, l)
}

// ProvideEstimator selects the edge estimator variant from config.
func ProvideEstimator(cfg *config.Config, l *applogger.Logger) domsvc.SignalEstimator {
	return edge.NewEstimator(cfg.Edge.ArtifactPath, cfg.Edge.AllowMock, cfg.Edge.MockSeed, l)
}

// ProvideEdgeGate creates the signal gate over the estimator.
func ProvideEdgeGate(cfg *config.Config, estimator domsvc.SignalEstimator) *edge.Gate {
	return edge.NewGate(edge.GateConfig{
		Cost:         cfg.Edge.Cost,
		SafetyFactor: cfg.Edge.SafetyFactor,
		MinWinProb:   cfg.Edge.MinWinProb,
		MaxCVaR:      cfg.Edge.MaxCVaR,
	}, estimator)
}

// ProvideSizer creates the vol-target position sizer with the
// configured drawdown throttle breakpoints.
func ProvideSizer(cfg *config.Config, l *applogger.Logger) *risk.Sizer {
	return risk.NewSizer(risk.Config{
		InitialEquity: cfg.Risk.InitialEquity,
		VolTarget:     cfg.Risk.VolTarget,
		ThrottleSoft:  cfg.Risk.ThrottleSoft,
		ThrottleHard:  cfg.Risk.ThrottleHard,
		SoftModifier:  cfg.Risk.SoftModifier,
		HardModifier:  cfg.Risk.HardModifier,
	}, l)
}

// ProvideMonitor creates the drift monitor.
func ProvideMonitor(cfg *config.Config) *drift.Monitor {
	mcfg := drift.Config{
		Window:         cfg.Drift.Window,
		AlertSamples:   cfg.Drift.AlertSamples,
		ICReduce:       cfg.Drift.ICReduce,
		EntropySuspend: cfg.Drift.EntropySuspend,
	}
	if cfg.Drift.ICDecommission != nil {
		mcfg.ICDecommission = *cfg.Drift.ICDecommission
	}
	return drift.NewMonitor(mcfg)
}

// ProvideSession creates the per-instrument session.
func ProvideSession(cfg *config.Config, engine *features.Engine, sizer *risk.Sizer, monitor *drift.Monitor) *usecase.Session {
	return usecase.NewSession(cfg.Pipeline.Pair, cfg.Pipeline.WindowBars, engine, sizer, monitor)
}

// ProvideBarSource creates the synthetic bar source seeded at the
// configured pair's reference price.
func ProvideBarSource(cfg *config.Config) domrepo.BarSource {
	src := simulator.New(cfg.Pipeline.SimulatorSeed)
	src.Reset(cfg.Pipeline.Pair, usecase.SeedPrice(cfg.Pipeline.Pair))
	return src
}

// ProvideDispatcher creates the outbound dispatcher. The WebSocket hub
// is attached later, once the pipeline it depends on exists.
func ProvideDispatcher(
	store domrepo.BarStore,
	cache domrepo.PriceCache,
	publisher domrepo.Publisher,
	metrics domrepo.Metrics,
	l *applogger.Logger,
) *mid.Dispatcher {
	return mid.NewDispatcher(store, cache, publisher, metrics, l)
}

// ProvideBacktestJob creates the backtest job worker.
func ProvideBacktestJob(
	store domrepo.BarStore,
	svc pkgcache.Service,
	engine *features.Engine,
	l *applogger.Logger,
) *usecase.BacktestJob {
	return usecase.NewBacktestJob(store, svc, engine, l)
}

// ProvideJobQueue creates the Redis job queue with the backtest worker
// registered.
func ProvideJobQueue(
	cfg *config.Config,
	rc *pkgcache.RedisCache,
	job *usecase.BacktestJob,
	l *applogger.Logger,
) *queue.RedisQueue {
	q := queue.NewRedisQueue(l, &queue.QueueConfig{
		Workers:    cfg.Queue.Workers,
		RetryLimit: cfg.Queue.RetryLimit,
		RetryDelay: cfg.Queue.RetryDelay,
	}, rc.Client(), queue.WithKeyPrefix("meanrev:queue"))
	q.RegisterJob(job)
	return q
}

// ProvideKafkaConsumer creates the inbound bar consumer, or nil when
// the consumer side is disabled.
func ProvideKafkaConsumer(cfg *config.Config, l *applogger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled || !cfg.Kafka.Consumer.Enabled {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(l,
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideKafkaBarsHandler creates the handler for the inbound bars
// topic.
func ProvideKafkaBarsHandler(
	cfg *config.Config,
	store domrepo.BarStore,
	cache domrepo.PriceCache,
	metrics domrepo.Metrics,
) *usecase.KafkaBarsHandler {
	return usecase.NewKafkaBarsHandler(cfg.Kafka.BarsTopic, store, cache, metrics)
}

// ProvideApp assembles the pipeline, the WebSocket hub and the HTTP
// handler, then wires the optional workers onto the application. The
// hub is attached to the dispatcher here because it needs the pipeline,
// which needs the dispatcher.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	session *usecase.Session,
	source domrepo.BarSource,
	classifier *regime.Classifier,
	gate *news.Gate,
	edgeGate *edge.Gate,
	dispatcher *mid.Dispatcher,
	metrics domrepo.Metrics,
	store domrepo.BarStore,
	prices domrepo.PriceCache,
	svc pkgcache.Service,
	jobQueue *queue.RedisQueue,
	responses icache.BytesCache,
	fetcher *news.Fetcher,
	consumer *pkgkafka.Consumer,
	kh *usecase.KafkaBarsHandler,
	chClient *pkgch.Client,
) *server.App {
	pipeline := usecase.NewPipeline(
		session,
		source,
		classifier,
		gate,
		edgeGate,
		dispatcher,
		metrics,
		classifier.Baseline(),
		l,
	)

	hub := api.NewHub(pipeline, l)
	dispatcher.SetBroadcaster(hub)

	handler := api.NewDecisionsEchoHandler(pipeline, prices, store, gate, jobQueue, svc, l)
	handler.SetCache(responses)

	app := server.New(cfg, l, pipeline, dispatcher, hub, handler, chClient)
	app.SetJobQueue(jobQueue)
	if fetcher != nil {
		app.SetNewsRunner(fetcher)
	}
	if consumer != nil {
		app.SetConsumer(consumer, kh)
	}
	return app
}
