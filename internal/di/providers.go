package di

import (
	"context"
	"fmt"
	"time"

	"FinCast/internal/domain/repository"
	"FinCast/internal/domain/service"
	"FinCast/internal/handler/api"
	mid "FinCast/internal/middleware"
	icache "FinCast/internal/service/cache"
	internalrepo "FinCast/internal/repository"
	"FinCast/internal/service/marketdata"
	"FinCast/internal/services/forecast"
	"FinCast/internal/usecase"
	pkgch "FinCast/pkg/clickhouse"
	"FinCast/pkg/config"
	xhttp "FinCast/pkg/http"
	pkgkafka "FinCast/pkg/kafka"
	applogger "FinCast/pkg/logger"
	"FinCast/pkg/metrics"
	"FinCast/pkg/queue"
	"FinCast/pkg/server"

	"github.com/redis/go-redis/v9"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	level := "info"
	format := "json"
	if cfg.Environment == "development" {
		level = "debug"
		format = "console"
	}
	return applogger.New(&applogger.Config{Level: level, Format: format, Output: "stdout"})
}

// ProvideClickHouseClient creates a ClickHouse client.
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

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := client.InitSchema(ctx, []string{
		"CREATE DATABASE IF NOT EXISTS " + cfg.ClickHouse.Database,
	}); err != nil {
		_ = client.Close() // cannot log here (DI layer no logger); propagate error
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}

	return client, nil
}

// ProvideRedisClient creates the shared Redis client.
func ProvideRedisClient(cfg *config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}

// ProvideKafkaProducer creates a Kafka producer.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
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

	return producer, nil
}

// ProvideKafkaConsumer creates a Kafka consumer configured from YAML.
func ProvideKafkaConsumer(cfg *config.Config) (*pkgkafka.Consumer, error) {
	consumer, err := pkgkafka.NewConsumer(
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

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideTickStorage creates ClickHouse tick storage and its schema.
func ProvideTickStorage(chClient *pkgch.Client, cfg *config.Config) (repository.TickStorage, error) {
	storage := internalrepo.NewClickHouseTickStorage(chClient.DB(), cfg.ClickHouse.Database+".price_ticks")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := storage.Init(ctx); err != nil {
		return nil, fmt.Errorf("tick schema: %w", err)
	}
	return storage, nil
}

// ProvideTickPublisher creates the Kafka tick publisher.
func ProvideTickPublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.TickPublisher {
	return internalrepo.NewKafkaTickPublisher(producer, cfg.Kafka.Topic)
}

// ProvidePerformanceStore creates the ClickHouse evaluation log and its schema.
func ProvidePerformanceStore(chClient *pkgch.Client, l *applogger.Logger) (repository.PerformanceStore, error) {
	store := internalrepo.NewCHPerformanceStore(chClient)
	store.SetLogger(l)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.Init(ctx); err != nil {
		return nil, fmt.Errorf("performance schema: %w", err)
	}
	return store, nil
}

// ProvideVersionRegistry creates the Redis model version registry.
func ProvideVersionRegistry(client *redis.Client, l *applogger.Logger) repository.VersionRegistry {
	return internalrepo.NewRedisVersionRegistry(client, l)
}

// ProvideAlertStore creates the Redis alert store.
func ProvideAlertStore(client *redis.Client, l *applogger.Logger) repository.AlertStore {
	return internalrepo.NewRedisAlertStore(client, l)
}

// ProvideForecastLedger creates the Redis pending-forecast ledger.
func ProvideForecastLedger(client *redis.Client) repository.ForecastLedger {
	return internalrepo.NewRedisForecastLedger(client)
}

// ProvideArtifactStore creates filesystem artifact storage.
func ProvideArtifactStore(cfg *config.Config) (repository.ArtifactStore, error) {
	store, err := internalrepo.NewFSArtifactStore(cfg.Artifacts.Dir)
	if err != nil {
		return nil, fmt.Errorf("artifact store: %w", err)
	}
	return store, nil
}

// ProvideForecasters assembles the full strategy set.
func ProvideForecasters(
	registry repository.VersionRegistry,
	artifacts repository.ArtifactStore,
	store repository.PerformanceStore,
	cfg *config.Config,
	l *applogger.Logger,
) []service.Forecaster {
	seqCfg := forecast.SequenceConfig{
		Lookback:        cfg.Forecast.Sequence.Lookback,
		HiddenUnits:     cfg.Forecast.Sequence.HiddenUnits,
		TrainEpochs:     cfg.Forecast.Sequence.TrainEpochs,
		RetrainEpochs:   cfg.Forecast.Sequence.RetrainEpochs,
		FineTuneEpochs:  cfg.Forecast.Sequence.FineTuneEpochs,
		ValidationSplit: cfg.Forecast.Sequence.ValidationSplit,
	}
	return []service.Forecaster{
		forecast.NewStatisticalForecaster(l),
		forecast.NewSequenceForecaster(registry, artifacts, seqCfg, l),
		forecast.NewRollingForecaster(store, l),
		forecast.NewContextForecaster(store, l),
	}
}

// ProvideRetrainPolicy creates the retraining policy.
func ProvideRetrainPolicy(
	registry repository.VersionRegistry,
	store repository.PerformanceStore,
	cfg *config.Config,
	l *applogger.Logger,
) *usecase.RetrainPolicy {
	pc := usecase.PolicyConfig{
		IntervalDays: cfg.Forecast.Retrain.IntervalDays,
		RMSESlope:    cfg.Forecast.Retrain.RMSESlope,
		BiasSlope:    cfg.Forecast.Retrain.BiasSlope,
		LookbackDays: cfg.Forecast.Retrain.LookbackDays,
		MinRecords:   cfg.Forecast.Retrain.MinRecords,
		EvalHistoryN: usecase.DefaultPolicyConfig().EvalHistoryN,
	}
	return usecase.NewRetrainPolicy(registry, store, pc, l)
}

// ProvideMonitor creates the performance monitor.
func ProvideMonitor(
	store repository.PerformanceStore,
	alerts repository.AlertStore,
	m repository.Metrics,
	cfg *config.Config,
	l *applogger.Logger,
) *usecase.Monitor {
	mc := usecase.MonitorConfig{
		AlertRMSE: cfg.Forecast.Alerts.RMSE,
		AlertMAPE: cfg.Forecast.Alerts.MAPE,
		AlertBias: cfg.Forecast.Alerts.Bias,
	}
	return usecase.NewMonitor(store, alerts, m, mc, l)
}

// ProvideOrchestrator creates the ensemble orchestrator.
func ProvideOrchestrator(
	forecasters []service.Forecaster,
	policy *usecase.RetrainPolicy,
	store repository.PerformanceStore,
	ledger repository.ForecastLedger,
	m repository.Metrics,
	cfg *config.Config,
	l *applogger.Logger,
) *usecase.Orchestrator {
	oc := usecase.OrchestratorConfig{
		Ensemble:         cfg.Forecast.Ensemble,
		WeightWindowDays: cfg.Forecast.WeightWindowDays,
		WeightSmoothing:  cfg.Forecast.WeightSmoothing,
		MinRetrainPoints: cfg.Forecast.MinRetrainPoints,
	}
	return usecase.NewOrchestrator(forecasters, policy, store, ledger, m, oc, l)
}

// ProvideEvaluationSweep creates the ground-truth evaluation sweep.
func ProvideEvaluationSweep(
	ledger repository.ForecastLedger,
	ticks repository.TickStorage,
	monitor *usecase.Monitor,
	cfg *config.Config,
	l *applogger.Logger,
) *usecase.EvaluationSweep {
	return usecase.NewEvaluationSweep(ledger, ticks, monitor, cfg.Forecast.SweepInterval, l)
}

// ProvideRetrainQueue creates the Redis-backed retrain worker queue.
func ProvideRetrainQueue(
	cfg *config.Config,
	client *redis.Client,
	forecasters []service.Forecaster,
	policy *usecase.RetrainPolicy,
	ticks repository.TickStorage,
	m repository.Metrics,
	l *applogger.Logger,
) *queue.RedisQueue {
	job := usecase.NewRetrainJob(forecasters, policy, ticks, m, l)
	return queue.NewRedisConsumer(l, &queue.QueueConfig{
		Workers:    cfg.Queue.Workers,
		RetryLimit: cfg.Queue.RetryLimit,
		RetryDelay: cfg.Queue.RetryDelay,
	}, client, []queue.Job{job}, queue.WithKeyPrefix("fincast:queue"))
}

// ProvideKafkaTicksHandler registers handler for ticks topic.
func ProvideKafkaTicksHandler(store repository.TickStorage, m repository.Metrics, cfg *config.Config) *usecase.KafkaTicksHandler {
	return usecase.NewKafkaTicksHandler(cfg.Kafka.Topic, store, m)
}

// ProvideMarketStream creates the market-data WebSocket stream.
func ProvideMarketStream(cfg *config.Config, l *applogger.Logger) repository.TickStream {
	return marketdata.New(
		cfg.MarketData.APIKey,
		cfg.MarketData.WebSocketURL,
		cfg.MarketData.Symbols,
		cfg.MarketData.ReconnectDelay,
		cfg.MarketData.PingInterval,
		l,
	)
}

// ProvideHistoryBackfill creates the candle-history seeder. Without a REST
// endpoint configured it produces a no-op backfill.
func ProvideHistoryBackfill(
	store repository.TickStorage,
	cfg *config.Config,
	l *applogger.Logger,
) *usecase.HistoryBackfill {
	var fetcher repository.HistoryFetcher
	if cfg.MarketData.RESTURL != "" {
		fetcher = marketdata.NewHistoryClient(
			cfg.MarketData.RESTURL,
			cfg.MarketData.APIKey,
			cfg.MarketData.HistoryTimeout,
			l,
		)
	}
	return usecase.NewHistoryBackfill(fetcher, store, cfg.MarketData.Symbols, cfg.MarketData.HistoryLookback, l)
}

// ProvideTickProcessor creates the tick processor use case.
func ProvideTickProcessor(
	pub repository.TickPublisher,
	store repository.TickStorage,
	m repository.Metrics,
	cfg *config.Config,
) *usecase.TickProcessor {
	return usecase.NewTickProcessor(pub, store, m, cfg.Backend.Type)
}

// ProvideTickCollector creates the tick collector use case.
func ProvideTickCollector(
	stream repository.TickStream,
	processor *usecase.TickProcessor,
	m repository.Metrics,
) *usecase.TickCollector {
	// Throttling pipeline between WebSocket and the backend
	pipe := mid.NewIngestPipeline(processor, m,
		mid.WithMaxRPS(50),
		mid.WithBufferSize(2000),
	)
	return usecase.NewTickCollector(stream, processor, m, pipe)
}

// ProvideHTTPHandler creates the forecast API handler. Summaries are cached
// in Redis when available, in-process otherwise.
func ProvideHTTPHandler(
	cfg *config.Config,
	l *applogger.Logger,
	orchestrator *usecase.Orchestrator,
	monitor *usecase.Monitor,
	registry repository.VersionRegistry,
	ticks repository.TickStorage,
) xhttp.Handler {
	h := api.NewForecastEchoHandler(l, orchestrator, monitor, registry, ticks)
	if cfg.Redis.Addr != "" {
		h.SetCache(icache.NewRedisCache(icache.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}))
	}
	return h
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	collector *usecase.TickCollector,
	consumer *pkgkafka.Consumer,
	kh *usecase.KafkaTicksHandler,
	chClient *pkgch.Client,
	retrainQ *queue.RedisQueue,
	sweep *usecase.EvaluationSweep,
	backfill *usecase.HistoryBackfill,
	handler xhttp.Handler,
) *server.App {
	if consumer != nil {
		consumer.WithConsumerHook(pkgkafka.NoopHook{})
	}
	app := server.New(cfg, collector, consumer, kh, chClient, retrainQ, sweep, backfill)
	app.SetHTTPHandler(handler)
	if collector != nil {
		app.TickProc = collector.Processor()
	}
	return app
}
