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

	"github.com/insightlab/analytics-engine/internal/config"
	"github.com/insightlab/analytics-engine/internal/jobs"
	"github.com/insightlab/analytics-engine/internal/notify"
	"github.com/insightlab/analytics-engine/internal/queue"
	"github.com/insightlab/analytics-engine/internal/scheduler"
	"github.com/insightlab/analytics-engine/internal/storage"
	"github.com/insightlab/analytics-engine/internal/worker"
	"github.com/insightlab/analytics-engine/shared/logger"
	"github.com/insightlab/analytics-engine/shared/postgresql"
	"github.com/insightlab/analytics-engine/shared/rabbitmq"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
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

	defaultConfigPath := os.Getenv("WORKER_SERVICE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/worker-service/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.ValidateWorkerConfig(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	appLogger, err := initLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	appLogger.Info("Starting worker service",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
	)

	dbClient, err := initPostgreSQL(&cfg.Database, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	appLogger.Info("Database connection established")

	store := storage.New(dbClient, appLogger.Logger)
	sink := notify.NewSink(store, appLogger.Logger)

	registry := jobs.NewRegistry()
	handlers := jobs.NewHandlers(store, engineConfig(&cfg.Engine), appLogger.Logger)
	handlers.RegisterAll(registry)
	executor := jobs.NewExecutor(registry, store, sink, appLogger.Logger, jobs.ExecutorConfig{
		JobTimeout:        cfg.Worker.JobTimeout,
		HeartbeatInterval: cfg.Worker.HeartbeatInterval,
	})

	// The worker service exists to drain the broker queue, so it prefers
	// the durable path. Immediate mode still runs the scheduler, executing
	// each periodic job inline as it fires.
	adapter, rabbitClient, err := selectAdapter(cfg, store, executor, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to select queue adapter: %w", err)
	}

	appLogger.Info("Queue adapter selected",
		slog.String("mode", string(adapter.Mode())),
	)

	var workerInstance *worker.Worker
	if rabbitClient != nil {
		workerInstance = worker.NewWorker(&worker.Config{
			Logger:         appLogger.Logger,
			RabbitClient:   rabbitClient,
			Store:          store,
			Executor:       executor,
			Concurrency:    cfg.Worker.Concurrency,
			PrefetchCount:  cfg.Worker.PrefetchCount,
			BackoffBase:    cfg.Worker.BackoffBase,
			BackoffCap:     cfg.Worker.BackoffCap,
			ReaperInterval: cfg.Worker.ReaperInterval,
			StaleAfter:     cfg.Worker.StaleAfter,
		})
	}

	sched := scheduler.New(adapter, store, appLogger.Logger, scheduler.Config{
		BriefingSpec: cfg.Scheduler.BriefingSpec,
		InsightSpec:  cfg.Scheduler.InsightSpec,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)

	if workerInstance != nil {
		g.Go(func() error {
			return workerInstance.Start(gctx)
		})
	}

	g.Go(func() error {
		if err := sched.Start(gctx); err != nil {
			return err
		}
		<-gctx.Done()
		sched.Stop()
		return nil
	})

	appLogger.Info("Worker service started successfully")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		errChan <- g.Wait()
	}()

	select {
	case sig := <-quit:
		appLogger.Info("Received signal, shutting down gracefully",
			slog.String("signal", sig.String()),
		)
	case err := <-errChan:
		if err != nil {
			appLogger.Error("Worker error",
				slog.Any("error", err),
			)
			return err
		}
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Worker.ShutdownTimeout)
	defer shutdownCancel()

	done := make(chan struct{})
	go func() {
		if workerInstance != nil {
			workerInstance.Stop()
		}
		_ = g.Wait()
		close(done)
	}()

	select {
	case <-done:
		appLogger.Info("Worker stopped gracefully")
	case <-shutdownCtx.Done():
		appLogger.Warn("Worker shutdown timeout exceeded, forcing exit")
	}

	if dbClient != nil {
		dbClient.Close()
	}
	if rabbitClient != nil {
		rabbitClient.Close()
	}

	appLogger.Info("Worker service shutdown complete")
	return nil
}

// selectAdapter picks the submission strategy once at startup.
func selectAdapter(cfg *config.Config, store *storage.Storage, executor *jobs.Executor, logger *slog.Logger) (queue.Adapter, *rabbitmq.Client, error) {
	mode := cfg.Queue.Mode
	if mode == "" {
		mode = config.QueueModeAuto
	}

	if mode == config.QueueModeImmediate {
		return queue.NewImmediate(store, executor, logger), nil, nil
	}

	rabbitConfig := brokerConfig(&cfg.RabbitMQ)

	if mode == config.QueueModeAuto {
		if err := rabbitmq.Probe(rabbitConfig, logger); err != nil {
			logger.Warn("Broker unreachable, falling back to immediate queue mode",
				slog.Any("error", err),
			)
			return queue.NewImmediate(store, executor, logger), nil, nil
		}
	}

	rabbitClient, err := rabbitmq.NewClient(rabbitConfig, logger)
	if err != nil {
		if mode == config.QueueModeDurable {
			return nil, nil, err
		}
		logger.Warn("Broker connection failed, falling back to immediate queue mode",
			slog.Any("error", err),
		)
		return queue.NewImmediate(store, executor, logger), nil, nil
	}

	return queue.NewDurable(store, rabbitClient, logger), rabbitClient, nil
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

func brokerConfig(cfg *config.RabbitMQConfig) *rabbitmq.Config {
	return &rabbitmq.Config{
		Host:               cfg.Host,
		Port:               cfg.Port,
		User:               cfg.User,
		Password:           cfg.Password,
		VHost:              cfg.VHost,
		ExchangeName:       cfg.Exchange,
		QueueName:          cfg.QueueName,
		RoutingKey:         cfg.RoutingKey,
		RetryAttempts:      cfg.Connection.RetryAttempts,
		RetryInterval:      cfg.Connection.RetryInterval,
		Heartbeat:          cfg.Connection.Heartbeat,
		ConnectionTimeout:  cfg.Connection.ConnectionTimeout,
		PublishRetries:     cfg.Publish.RetryAttempts,
		PublishRetryDelay:  cfg.Publish.RetryInterval,
		PublishBackoffMult: cfg.Publish.BackoffMultiplier,
	}
}

func engineConfig(cfg *config.EngineConfig) jobs.EngineConfig {
	return jobs.EngineConfig{
		Alpha:             cfg.Alpha,
		TargetDaysOfCover: float64(cfg.TargetDaysOfCover),
		AnomalyWindowDays: cfg.AnomalyWindowDays,
		AnomalyTopK:       cfg.AnomalyTopK,
		ForecastWindow:    cfg.ForecastWindow,
	}
}
