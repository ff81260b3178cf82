package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/safeart/postercheck/internal/blobstore"
	"github.com/safeart/postercheck/internal/config"
	"github.com/safeart/postercheck/internal/coordinator"
	"github.com/safeart/postercheck/internal/crawler"
	"github.com/safeart/postercheck/internal/job"
	"github.com/safeart/postercheck/internal/jobstore"
	"github.com/safeart/postercheck/internal/workqueue"
	"github.com/safeart/postercheck/shared/logger"
	"github.com/safeart/postercheck/shared/postgresql"
	"github.com/safeart/postercheck/shared/rabbitmq"
	"github.com/safeart/postercheck/shared/redis"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables or flags")
	}

	// Parse command-line flags
	defaultConfigPath := os.Getenv("CRAWLER_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/crawler/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if err := cfg.ValidateCrawler(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// Initialize logger
	appLogger, err := initLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	appLogger.Info("Starting crawler",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("platform", cfg.Crawler.Platform),
	)

	// Initialize PostgreSQL client
	dbClient, err := initPostgreSQL(&cfg.Database, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer dbClient.Close()

	// Initialize RabbitMQ client
	rabbitClient, err := initRabbitMQ(&cfg.RabbitMQ, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize RabbitMQ: %w", err)
	}
	defer rabbitClient.Close()

	// Initialize Redis client
	redisClient, err := initRedis(&cfg.Redis, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize Redis: %w", err)
	}
	defer redisClient.Close()

	// Wire the submission pipeline; the crawler submits through the
	// coordinator in process, so crawled posters follow the exact same
	// dedup and caching path as API submissions.
	store := jobstore.NewPostgres(dbClient.GetDB(), cfg.Database.JobsTable, appLogger.Logger)
	queue := workqueue.NewRabbit(rabbitClient, cfg.RabbitMQ.Consumer.PrefetchCount, appLogger.Logger)
	blobs := blobstore.NewRedis(redisClient.GetClient(), cfg.Blob.Bucket, cfg.Blob.TTL, appLogger.Logger)

	coord := coordinator.New(&coordinator.Config{
		Store:   store,
		Queue:   queue,
		Blobs:   blobs,
		Fetcher: coordinator.NewHTTPFetcher(cfg.Submission.FetchTimeout, cfg.Submission.MaxImageBytes),
		Logger:  appLogger.Logger,
	})

	source, err := sourceFor(&cfg.Crawler)
	if err != nil {
		return err
	}

	c := crawler.New(&crawler.Config{
		Source:     source,
		Submitter:  coord,
		Logger:     appLogger.Logger,
		MaxTitles:  cfg.Crawler.MaxTitles,
		SubmitRate: cfg.Crawler.SubmitRate,
		Burst:      cfg.Crawler.Burst,
	})

	// One crawl cycle per invocation; scheduling is external (cron or a
	// systemd timer).
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	results, err := c.Run(ctx)
	if err != nil {
		return fmt.Errorf("crawl failed: %w", err)
	}

	appLogger.Info("Crawler finished",
		slog.Int("discovered", results.Discovered),
		slog.Int("submitted", results.Submitted),
		slog.Int("cached", results.Cached),
		slog.Int("skipped", results.Skipped),
		slog.Int("errors", results.Errors),
	)
	return nil
}

// sourceFor picks the discovery source for the configured platform.
func sourceFor(cfg *config.CrawlerConfig) (crawler.Source, error) {
	platform := job.Platform(cfg.Platform)
	if !platform.Valid() {
		return nil, fmt.Errorf("unknown platform: %s", cfg.Platform)
	}

	switch platform {
	case job.PlatformNetflix:
		return crawler.NewNetflixSource(cfg.CatalogPages, cfg.PageTimeout), nil
	default:
		return nil, fmt.Errorf("no discovery source implemented for platform %s", platform)
	}
}

// initLogger initializes and configures the application logger
func initLogger(cfg *config.LoggingConfig) (*logger.Logger, error) {
	loggerCfg := &logger.Config{
		Level:        cfg.Level,
		Format:       cfg.Format,
		Output:       cfg.Output,
		EnableSource: cfg.EnableCaller,
		TimeFormat:   time.RFC3339,
	}

	return logger.New(loggerCfg)
}

// initPostgreSQL initializes the PostgreSQL database client
func initPostgreSQL(cfg *config.DatabaseConfig, logger *slog.Logger) (*postgresql.Client, error) {
	dbConfig := &postgresql.Config{
		Host:            cfg.Host,
		Port:            cfg.Port,
		User:            cfg.User,
		Password:        cfg.Password,
		Database:        cfg.Database,
		SSLMode:         cfg.SSLMode,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
	}

	return postgresql.NewClient(dbConfig, logger)
}

// initRabbitMQ initializes the RabbitMQ client
func initRabbitMQ(cfg *config.RabbitMQConfig, logger *slog.Logger) (*rabbitmq.Client, error) {
	rabbitConfig := &rabbitmq.Config{
		Host:               cfg.Host,
		Port:               cfg.Port,
		User:               cfg.User,
		Password:           cfg.Password,
		VHost:              cfg.VHost,
		ExchangeName:       cfg.Exchange.Name,
		ExchangeType:       cfg.Exchange.Type,
		ExchangeDurable:    cfg.Exchange.Durable,
		ExchangeAutoDelete: cfg.Exchange.AutoDelete,
		QueueName:          cfg.Queue.Name,
		RoutingKey:         cfg.RoutingKey,
		DeadLetterExchange: cfg.Queue.DeadLetterExchange,
		DeadLetterQueue:    cfg.Queue.DeadLetterQueue,
		MaxReceiveCount:    cfg.Queue.MaxReceiveCount,
		RetryAttempts:      cfg.Connection.RetryAttempts,
		RetryInterval:      cfg.Connection.RetryInterval,
		Heartbeat:          cfg.Connection.Heartbeat,
		ConnectionTimeout:  cfg.Connection.ConnectionTimeout,
		PublishRetries:     cfg.Publish.RetryAttempts,
		PublishRetryDelay:  cfg.Publish.RetryInterval,
		PublishBackoffMult: cfg.Publish.BackoffMultiplier,
	}

	return rabbitmq.NewClient(rabbitConfig, logger)
}

// initRedis initializes the Redis client used for blob staging
func initRedis(cfg *config.RedisConfig, logger *slog.Logger) (*redis.Client, error) {
	redisConfig := &redis.Config{
		Host:         cfg.Host,
		Port:         cfg.Port,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return redis.NewClient(redisConfig, logger)
}
