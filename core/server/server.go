package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/richd0tcom/heartline/core/consumer"
	"github.com/richd0tcom/heartline/internal/broker"
	"github.com/richd0tcom/heartline/internal/ingest"
	"github.com/richd0tcom/heartline/internal/metrics"
	"github.com/richd0tcom/heartline/internal/mqttbridge"
	"github.com/richd0tcom/heartline/internal/worker"
)

const requestTimeout = 30 * time.Second

type Server struct {
	config    *ServerConfig
	worker    *worker.Worker
	validator *ingest.Validator
	bridge    *mqttbridge.Bridge
	router    *gin.Engine
}

func NewServer(options ...ConfigOption) (*Server, error) {
	config := &ServerConfig{
		WorkerCount:   4,
		BatchSize:     100,
		FlushInterval: 5 * time.Second,
		Port:          "8080",
		Location:      time.Local,
		Now:           time.Now,
	}

	for _, option := range options {
		if err := option(config); err != nil {
			return nil, err
		}
	}

	if config.DataStore == nil || config.Devices == nil || config.Assignments == nil {
		return nil, errors.New("server: data store and registry are required")
	}
	if config.Metrics == nil {
		reg := prometheus.NewRegistry()
		config.Metrics = metrics.New(reg)
		config.Gatherer = reg
	}
	if config.MessageQueue == nil {
		config.MessageQueue = broker.NewChannelQueue(1024, config.logger())
	}
	if config.Consumer == nil {
		config.Consumer = consumer.NewBandConsumer(config.logger(), config.Metrics)
	}

	config.Ingest.Location = config.Location
	config.Ingest.Now = config.Now
	validator := ingest.NewValidator(config.Devices, config.Ingest)

	processor := worker.NewWorker(config.DataStore, config.Consumer, config.WorkerCount, config.BatchSize,
		config.FlushInterval, config.logger(), config.Metrics)

	server := &Server{
		config:    config,
		worker:    processor,
		validator: validator,
		router:    gin.New(),
	}

	if config.MQTT != nil {
		server.bridge = mqttbridge.New(config.MQTT.Broker, config.MQTT.ClientID, config.MQTT.Topic,
			validator, config.MessageQueue, config.logger(), config.Metrics)
	}

	server.setupRoutes()
	return server, nil
}

func (s *Server) setupRoutes() {
	s.router.Use(gin.Recovery(), s.requestLogger(), s.instrument())

	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.config.Gatherer, promhttp.HandlerOpts{})))

	api := s.router.Group("/api/v1")
	{
		api.POST("/ingest", s.handleIngest)

		subjects := api.Group("/subjects/:subjectId", s.requireSubjectAccess())
		{
			subjects.GET("/summary/daily", s.handleWindowSummary(dailyWindow))
			subjects.GET("/summary/weekly", s.handleWindowSummary(weeklyWindow))
			subjects.GET("/summary/monthly", s.handleWindowSummary(monthlyWindow))
			subjects.GET("/summary/date/:date", s.handleDateSummary)
			subjects.GET("/chart/weekly", s.handleWeeklyChart)
		}
	}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start(ctx context.Context) error {
	go func() {
		if err := s.worker.Start(ctx, s.config.MessageQueue); err != nil {
			s.config.logger().Error("batch processor error", "err", err)
		}
	}()

	if s.bridge != nil {
		go func() {
			if err := s.bridge.Run(ctx); err != nil {
				s.config.logger().Error("mqtt bridge error", "err", err)
			}
		}()
	}

	server := &http.Server{
		Addr:              ":" + s.config.Port,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	s.config.logger().Info("server starting", "port", s.config.Port)
	if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen: %w", err)
	}

	return nil
}

func (s *Server) Close() error {
	var errs []error
	if s.config.MessageQueue != nil {
		errs = append(errs, s.config.MessageQueue.Close())
	}
	if s.config.DataStore != nil {
		errs = append(errs, s.config.DataStore.Close())
	}
	return errors.Join(errs...)
}
