package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/richd0tcom/heartline/core/server"
	"github.com/richd0tcom/heartline/internal/config"
	"github.com/richd0tcom/heartline/internal/metrics"
)

func main() {
	configPath := flag.String("config", os.Getenv("HEARTLINE_CONFIG"), "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Log)
	slog.SetDefault(logger)

	loc, _ := cfg.Location()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	options := []server.ConfigOption{
		server.WithLogger(logger),
		server.WithMetrics(metrics.New(prometheus.DefaultRegisterer), prometheus.DefaultGatherer),
		server.WithLocation(loc),
		server.WithMongoDB(ctx, cfg.Mongo.URI, cfg.Mongo.Database),
		server.WithWorkerConfig(cfg.Worker.Count, cfg.Worker.BatchSize, cfg.Worker.FlushInterval),
		server.WithIngestWindow(cfg.Ingest.LateAfter, cfg.Ingest.MaxSkew),
		server.WithPort(cfg.Server.Port),
	}

	switch cfg.Queue.Type {
	case config.QueueKafka:
		options = append(options, server.WithKafka(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.GroupID))
	case config.QueueRedis:
		options = append(options, server.WithRedis(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.Key))
	case config.QueueChannel:
		options = append(options, server.WithChannelQueue(cfg.Queue.Size))
	}

	if cfg.MQTT.Enabled {
		options = append(options, server.WithMQTT(cfg.MQTT.Broker, cfg.MQTT.ClientID, cfg.MQTT.Topic))
	}

	srv, err := server.NewServer(options...)
	if err != nil {
		logger.Error("failed to create server", "err", err)
		os.Exit(1)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("shutdown signal received")
		cancel()
	}()

	if err := srv.Start(ctx); err != nil {
		logger.Error("server error", "err", err)
	}

	if err := srv.Close(); err != nil {
		logger.Warn("close", "err", err)
	}
	logger.Info("server shutdown complete")
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if strings.ToLower(cfg.Format) == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
