package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/insightlab/analytics-engine/internal/api/handler"
	"github.com/insightlab/analytics-engine/internal/api/router"
	"github.com/insightlab/analytics-engine/internal/bus"
	"github.com/insightlab/analytics-engine/internal/config"
	"github.com/insightlab/analytics-engine/internal/jobs"
	"github.com/insightlab/analytics-engine/internal/notify"
	"github.com/insightlab/analytics-engine/internal/queue"
	"github.com/insightlab/analytics-engine/internal/storage"
	"github.com/insightlab/analytics-engine/shared/logger"
	"github.com/insightlab/analytics-engine/shared/postgresql"
	"github.com/insightlab/analytics-engine/shared/rabbitmq"
	"github.com/joho/godotenv"
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

	defaultConfigPath := os.Getenv("API_SERVICE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/api-service/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.ValidateAPIConfig(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	appLogger, err := initLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	appLogger.Info("Starting API service",
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

	// An executor backs the immediate adapter so a broker outage degrades
	// submission to synchronous execution instead of failing it.
	registry := jobs.NewRegistry()
	handlers := jobs.NewHandlers(store, engineConfig(&cfg.Engine), appLogger.Logger)
	handlers.RegisterAll(registry)
	executor := jobs.NewExecutor(registry, store, sink, appLogger.Logger, jobs.ExecutorConfig{
		JobTimeout:        cfg.Worker.JobTimeout,
		HeartbeatInterval: cfg.Worker.HeartbeatInterval,
	})

	adapter, rabbitClient, err := selectAdapter(cfg, store, executor, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to select queue adapter: %w", err)
	}

	appLogger.Info("Queue adapter selected",
		slog.String("mode", string(adapter.Mode())),
	)

	eventBus := bus.New(appLogger.Logger)
	jobs.WireSubscriptions(eventBus, adapter, appLogger.Logger)

	r := initRouter(cfg, appLogger.Logger, dbClient, store, sink, eventBus, adapter)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Error("Server failed to start",
				slog.Any("error", err),
			)
			os.Exit(1)
		}
	}()

	appLogger.Info("API service is running",
		slog.String("address", addr),
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	cleanup := func() {
		cancel()
		if dbClient != nil {
			dbClient.Close()
		}
		if rabbitClient != nil {
			rabbitClient.Close()
		}
	}
	defer cleanup()

	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Error("Server forced to shutdown",
			slog.Any("error", err),
		)
		return err
	}

	appLogger.Info("Server shutdown complete")
	return nil
}

// selectAdapter picks the submission strategy once at startup. Durable wins
// when the broker answers; anything else runs jobs inline.
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

// initRouter initializes the Gin router with all routes and middleware
func initRouter(cfg *config.Config, logger *slog.Logger, dbClient *postgresql.Client, store *storage.Storage, sink *notify.Sink, eventBus *bus.Bus, adapter queue.Adapter) *gin.Engine {
	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	handlerDeps := &handler.Dependencies{
		Logger:   logger,
		DBClient: dbClient,
		Storage:  store,
		Sink:     sink,
		Bus:      eventBus,
		Adapter:  adapter,
		AppName:  cfg.App.Name,
	}

	return router.SetupRouter(handlerDeps)
}
