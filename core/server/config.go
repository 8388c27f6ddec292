package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/richd0tcom/heartline/internal/broker"
	"github.com/richd0tcom/heartline/internal/db"
	"github.com/richd0tcom/heartline/internal/domain"
	"github.com/richd0tcom/heartline/internal/ingest"
	"github.com/richd0tcom/heartline/internal/metrics"
)

type MQTTSettings struct {
	Broker   string
	ClientID string
	Topic    string
}

type ServerConfig struct {
	MessageQueue  broker.MessageQueue
	DataStore     domain.DataStore
	Devices       domain.DeviceRegistry
	Assignments   domain.AssignmentStore
	Consumer      domain.ReadingConsumer
	WorkerCount   int
	BatchSize     int
	FlushInterval time.Duration
	Port          string
	Location      *time.Location
	Ingest        ingest.Options
	MQTT          *MQTTSettings
	Logger        *slog.Logger
	Metrics       *metrics.Metrics
	Gatherer      prometheus.Gatherer
	Now           func() time.Time
}

type ConfigOption func(*ServerConfig) error

func (c *ServerConfig) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.Default()
	}
	return c.Logger
}

// WithLogger should come first so later options log through it.
func WithLogger(logger *slog.Logger) ConfigOption {
	return func(config *ServerConfig) error {
		config.Logger = logger
		return nil
	}
}

func WithMetrics(m *metrics.Metrics, gatherer prometheus.Gatherer) ConfigOption {
	return func(config *ServerConfig) error {
		config.Metrics = m
		config.Gatherer = gatherer
		return nil
	}
}

func WithKafka(brokers, topic, groupID string) ConfigOption {
	return func(config *ServerConfig) error {
		mq, err := broker.NewKafkaQueue(brokers, topic, groupID, config.logger())
		if err != nil {
			return err
		}
		config.MessageQueue = mq
		return nil
	}
}

func WithRedis(addr, password string, database int, key string) ConfigOption {
	return func(config *ServerConfig) error {
		client := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       database,
		})
		config.MessageQueue = broker.NewRedisQueue(client, key, config.logger())
		return nil
	}
}

func WithChannelQueue(size int) ConfigOption {
	return func(config *ServerConfig) error {
		config.MessageQueue = broker.NewChannelQueue(size, config.logger())
		return nil
	}
}

// WithMongoDB connects to MongoDB and uses it for readings, devices and
// physician assignments. Location must already be set.
func WithMongoDB(ctx context.Context, uri, database string) ConfigOption {
	return func(config *ServerConfig) error {
		client, err := db.NewMongoConnection(ctx, uri)
		if err != nil {
			return err
		}

		store, err := db.NewMongoTimeSeriesStore(ctx, client, database, config.Location)
		if err != nil {
			_ = client.Disconnect(context.Background())
			return err
		}

		registry, err := db.NewMongoRegistry(ctx, store.Database())
		if err != nil {
			_ = store.Close()
			return err
		}

		config.DataStore = store
		config.Devices = registry
		config.Assignments = registry
		return nil
	}
}

func WithDataStore(store domain.DataStore) ConfigOption {
	return func(config *ServerConfig) error {
		config.DataStore = store
		return nil
	}
}

func WithRegistry(devices domain.DeviceRegistry, assignments domain.AssignmentStore) ConfigOption {
	return func(config *ServerConfig) error {
		config.Devices = devices
		config.Assignments = assignments
		return nil
	}
}

func WithConsumer(consumer domain.ReadingConsumer) ConfigOption {
	return func(config *ServerConfig) error {
		config.Consumer = consumer
		return nil
	}
}

func WithWorkerConfig(workerCount, batchSize int, flushInterval time.Duration) ConfigOption {
	return func(config *ServerConfig) error {
		config.WorkerCount = workerCount
		config.BatchSize = batchSize
		config.FlushInterval = flushInterval
		return nil
	}
}

func WithIngestWindow(lateAfter, maxSkew time.Duration) ConfigOption {
	return func(config *ServerConfig) error {
		config.Ingest.LateAfter = lateAfter
		config.Ingest.MaxSkew = maxSkew
		return nil
	}
}

func WithMQTT(brokerAddr, clientID, topic string) ConfigOption {
	return func(config *ServerConfig) error {
		config.MQTT = &MQTTSettings{Broker: brokerAddr, ClientID: clientID, Topic: topic}
		return nil
	}
}

func WithPort(port string) ConfigOption {
	return func(config *ServerConfig) error {
		config.Port = port
		return nil
	}
}

func WithLocation(loc *time.Location) ConfigOption {
	return func(config *ServerConfig) error {
		config.Location = loc
		return nil
	}
}

func WithClock(now func() time.Time) ConfigOption {
	return func(config *ServerConfig) error {
		config.Now = now
		return nil
	}
}
