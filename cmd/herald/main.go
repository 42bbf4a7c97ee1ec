package main

import (
	"context"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/JerryGgzm/SEO-TOOL/internal/analytics"
	"github.com/JerryGgzm/SEO-TOOL/internal/handlers"
	"github.com/JerryGgzm/SEO-TOOL/internal/publisher"
	"github.com/JerryGgzm/SEO-TOOL/internal/queue"
	"github.com/JerryGgzm/SEO-TOOL/internal/rules"
	"github.com/JerryGgzm/SEO-TOOL/internal/service"
	"github.com/JerryGgzm/SEO-TOOL/internal/store"
	"github.com/JerryGgzm/SEO-TOOL/pkg/config"
	"github.com/JerryGgzm/SEO-TOOL/pkg/database"
	"github.com/JerryGgzm/SEO-TOOL/pkg/kafka"
	"github.com/JerryGgzm/SEO-TOOL/pkg/logging"
	"github.com/JerryGgzm/SEO-TOOL/pkg/monitoring"
	"github.com/JerryGgzm/SEO-TOOL/pkg/secrets"
	"github.com/JerryGgzm/SEO-TOOL/pkg/server"
	"github.com/JerryGgzm/SEO-TOOL/pkg/version"
)

func main() {
	// Setup logger
	logger := logging.NewLoggerWithService("herald")

	// Load environment variables
	config.LoadEnv(logger)

	logger.Info("Starting Herald (Scheduling & Posting Engine)")

	// Connect to database
	dbConfig := database.DefaultConfig()
	dbConfig.URL = config.GetEnv("DATABASE_URL", "")
	db := database.MustConnect(dbConfig, logger)
	defer db.Close()

	contentStore := store.NewContentStore(db, logger)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := contentStore.EnsureSchema(ctx); err != nil {
		logger.WithError(err).Fatal("Failed to apply database schema")
	}

	// Policy defaults, overridable per founder in the database
	policyDefaults, err := config.LoadPolicyDefaults(config.GetEnv("POLICY_DEFAULTS_FILE", "policy_defaults.yaml"))
	if err != nil {
		logger.WithError(err).Fatal("Failed to load policy defaults")
	}

	// Setup monitoring
	healthChecker := monitoring.NewHealthChecker("herald", version.Version)
	metricsCollector := monitoring.NewMetricsCollector("herald", version.Version, version.GitCommit)
	publishingMetrics := metricsCollector.CreatePublishingMetrics()

	healthChecker.AddCheck("database", monitoring.DatabaseHealthCheck(db))
	healthChecker.AddCheck("config", monitoring.ConfigurationHealthCheck(map[string]string{
		"DATABASE_URL": config.GetEnv("DATABASE_URL", ""),
		"JWT_SECRET":   config.GetEnv("JWT_SECRET", ""),
	}))

	// Token storage: Redis when configured, in-memory otherwise
	var secretStore secrets.Store
	if redisAddr := config.GetEnv("REDIS_ADDR", ""); redisAddr != "" {
		redisStore, err := secrets.NewRedisStore(ctx, secrets.RedisConfig{
			Addr:     redisAddr,
			Username: config.GetEnv("REDIS_USERNAME", ""),
			Password: config.GetEnv("REDIS_PASSWORD", ""),
			DB:       config.GetEnvInt("REDIS_DB", 0),
			Prefix:   "herald:secrets:",
		})
		if err != nil {
			logger.WithError(err).Fatal("Failed to connect to Redis")
		}
		secretStore = redisStore
	} else {
		logger.Warn("REDIS_ADDR not set, storing tokens in memory")
		secretStore = secrets.NewMemoryStore(time.Minute)
	}
	defer secretStore.Close()

	// Analytics events go to Kafka when brokers are configured
	var recorder analytics.Recorder = analytics.NopRecorder{}
	if brokers := config.GetEnv("KAFKA_BROKERS", ""); brokers != "" {
		producer, err := kafka.NewProducer(strings.Split(brokers, ","), config.GetEnv("KAFKA_CLUSTER_ID", "herald"), logger)
		if err != nil {
			logger.WithError(err).Fatal("Failed to create Kafka producer")
		}
		defer producer.Close()
		recorder = analytics.NewKafkaRecorder(producer, "herald", logger)
		healthChecker.AddCheck("kafka", monitoring.KafkaProducerHealthCheck(producer.GetClient()))
	} else {
		logger.Warn("KAFKA_BROKERS not set, posting events will not be recorded")
	}

	// Publishing adapter
	tokens := publisher.NewSecretsTokenSource(secretStore, "twitter")
	adapter := publisher.NewTwitterAdapter(tokens, publisher.TwitterConfig{
		BaseURL:        config.GetEnv("TWITTER_API_URL", ""),
		AttemptTimeout: config.GetEnvDuration("TWITTER_ATTEMPT_TIMEOUT", 15*time.Second),
	}, logger)

	// Dispatch queue
	dispatcher := queue.NewDispatcher(contentStore, adapter, recorder, publishingMetrics, queue.Config{
		PollInterval:   config.GetEnvDuration("DISPATCH_POLL_INTERVAL", 5*time.Second),
		BatchSize:      config.GetEnvInt("DISPATCH_BATCH_SIZE", 50),
		WorkerCount:    config.GetEnvInt("DISPATCH_WORKERS", 4),
		BaseRetryDelay: config.GetEnvDuration("RETRY_BASE_DELAY", time.Minute),
		MaxRetryDelay:  config.GetEnvDuration("RETRY_MAX_DELAY", 24*time.Hour),
		ClaimLease:     config.GetEnvDuration("CLAIM_LEASE", 5*time.Minute),
	}, logger)
	go dispatcher.Run(ctx)

	// Scheduling facade
	checker := rules.NewChecker(contentStore, policyDefaults, logger)
	scheduler := service.NewScheduler(contentStore, checker, recorder, dispatcher, logger)

	// Initialize handlers
	handlers.Init(scheduler, logger)
	handlers.InitTokens(secretStore)
	handlers.InitOps(dispatcher)

	// Setup router with unified monitoring
	router := server.SetupServiceRouter(logger, "herald", healthChecker, metricsCollector)
	handlers.SetupRoutes(router, []byte(config.RequireEnv("JWT_SECRET")), config.GetEnv("SERVICE_TOKEN", ""))

	// Start server with graceful shutdown
	serverConfig := server.DefaultConfig("herald", "18040")
	if err := server.Start(serverConfig, router, logger); err != nil {
		logger.WithError(err).Fatal("Server startup failed")
	}
}
