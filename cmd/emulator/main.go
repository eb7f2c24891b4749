package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/playgames-bridge/internal/config"
	"github.com/playgames-bridge/internal/emulator"
	"github.com/playgames-bridge/internal/handler"
	"github.com/playgames-bridge/internal/kafka"
	"github.com/playgames-bridge/internal/metrics"
	"github.com/playgames-bridge/internal/postgres"
	"github.com/playgames-bridge/internal/redis"
	"github.com/playgames-bridge/internal/websocket"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	loadErr := err
	if err != nil {
		cfg = config.DefaultConfig()
	}

	// Setup structured logging
	logger := cfg.Log.NewLogger(os.Stdout)
	slog.SetDefault(logger)
	if loadErr != nil {
		logger.Warn("failed to load config file, using defaults", "error", loadErr)
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stores := emulator.MemoryStores()
	var checks []namedCheck

	// Score store
	if cfg.Emulator.ScoreStore == config.StoreRedis {
		logger.Info("connecting to Redis", "addr", cfg.Redis.Addr)
		scoreStore, err := redis.NewScoreStore(&cfg.Redis, logger)
		if err != nil {
			logger.Error("failed to connect to Redis", "error", err)
			os.Exit(1)
		}
		defer scoreStore.Close()
		stores.Scores = scoreStore
		checks = append(checks, namedCheck{"redis", scoreStore.Ping})
		logger.Info("connected to Redis")
	}

	// Save and achievement store
	if cfg.Emulator.SaveStore == config.StorePostgres {
		logger.Info("connecting to PostgreSQL", "host", cfg.Postgres.Host, "database", cfg.Postgres.Database)
		repo, err := postgres.NewRepository(&cfg.Postgres, logger)
		if err != nil {
			logger.Error("failed to connect to PostgreSQL", "error", err)
			os.Exit(1)
		}
		defer repo.Close()

		// Run database migrations
		if err := repo.RunMigrations(ctx); err != nil {
			logger.Error("failed to run migrations", "error", err)
			os.Exit(1)
		}
		stores.Saves = repo
		stores.Achievements = repo
		checks = append(checks, namedCheck{"postgres", repo.Ping})
		logger.Info("connected to PostgreSQL")
	}

	emu := emulator.New(stores, &cfg.Emulator, logger)

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	callMetrics := metrics.New(registry)
	emu.SetObserver(callMetrics)

	// Kafka pipeline for fire-and-forget score submissions
	var (
		producer *kafka.Producer
		consumer *kafka.Consumer
	)
	if cfg.Kafka.Enabled {
		logger.Info("initializing Kafka pipeline",
			"brokers", cfg.Kafka.Brokers,
			"topic", cfg.Kafka.Topic,
		)
		consumer, err = kafka.NewConsumer(&cfg.Kafka, emu, logger)
		if err == nil {
			err = consumer.Start()
		}
		if err != nil {
			logger.Warn("failed to start Kafka consumer, continuing without Kafka", "error", err)
			consumer = nil
		} else {
			producer, err = kafka.NewProducer(&cfg.Kafka, logger)
			if err != nil {
				logger.Warn("failed to create Kafka producer, scores apply locally", "error", err)
				producer = nil
			} else {
				emu.SetPublisher(producer)
				logger.Info("Kafka pipeline started")
			}
		}
	}

	// Initialize WebSocket hub
	wsHub := websocket.NewHub(emu, cfg.Emulator.OperationLimit, logger)
	go wsHub.Run()
	callMetrics.TrackConnections(wsHub.GetTotalConnections)
	logger.Info("WebSocket hub initialized")

	// Initialize HTTP handler with WebSocket hub
	httpHandler := handler.NewHandler(emu, wsHub, logger)
	httpHandler.SetMetricsHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	for _, c := range checks {
		httpHandler.AddReadinessCheck(c.name, c.check)
	}

	// Create HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      httpHandler.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		logger.Info("starting HTTP server", "port", cfg.Server.Port)
		logger.Info("bridge endpoint available at /ws")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Shutdown HTTP server
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown server", "error", err)
	}

	// Stop WebSocket hub
	wsHub.Stop()

	// Drain score submissions before the consumer goes away
	emu.Close()
	if producer != nil {
		if err := producer.Close(); err != nil {
			logger.Error("failed to close Kafka producer", "error", err)
		}
	}
	if consumer != nil {
		if err := consumer.Stop(); err != nil {
			logger.Error("failed to stop Kafka consumer", "error", err)
		}
	}

	logger.Info("server stopped")
}

type namedCheck struct {
	name  string
	check handler.ReadinessCheck
}
