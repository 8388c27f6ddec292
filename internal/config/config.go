package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	QueueKafka   = "kafka"
	QueueRedis   = "redis"
	QueueChannel = "channel"
)

type Config struct {
	Server ServerConfig `yaml:"server"`
	Log    LogConfig    `yaml:"log"`
	Mongo  MongoConfig  `yaml:"mongo"`
	Queue  QueueConfig  `yaml:"queue"`
	Kafka  KafkaConfig  `yaml:"kafka"`
	Redis  RedisConfig  `yaml:"redis"`
	MQTT   MQTTConfig   `yaml:"mqtt"`
	Worker WorkerConfig `yaml:"worker"`
	Ingest IngestConfig `yaml:"ingest"`
}

type ServerConfig struct {
	Port     string `yaml:"port"`
	// Location names the IANA zone used for calendar-day windows. Empty
	// means the process's local zone.
	Location string `yaml:"location"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type MongoConfig struct {
	URI      string `yaml:"uri"`
	Database string `yaml:"database"`
}

type QueueConfig struct {
	Type string `yaml:"type"`
	Size int    `yaml:"size"`
}

type KafkaConfig struct {
	Brokers string `yaml:"brokers"`
	Topic   string `yaml:"topic"`
	GroupID string `yaml:"group_id"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Key      string `yaml:"key"`
}

type MQTTConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Broker   string `yaml:"broker"`
	Topic    string `yaml:"topic"`
	ClientID string `yaml:"client_id"`
}

type WorkerConfig struct {
	Count         int           `yaml:"count"`
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
}

type IngestConfig struct {
	LateAfter time.Duration `yaml:"late_after"`
	MaxSkew   time.Duration `yaml:"max_skew"`
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{Port: "8080"},
		Log:    LogConfig{Level: "info", Format: "text"},
		Mongo:  MongoConfig{URI: "mongodb://localhost:27017", Database: "heartline"},
		Queue:  QueueConfig{Type: QueueKafka, Size: 1024},
		Kafka:  KafkaConfig{Brokers: "localhost:9092", Topic: "readings", GroupID: "heartline-ingest"},
		Redis:  RedisConfig{Addr: "localhost:6379", Key: "heartline:readings"},
		MQTT:   MQTTConfig{Broker: "tcp://localhost:1883", Topic: "heartline/measurements", ClientID: "heartline-bridge"},
		Worker: WorkerConfig{Count: 4, BatchSize: 100, FlushInterval: 5 * time.Second},
		Ingest: IngestConfig{LateAfter: 10 * time.Minute, MaxSkew: 5 * time.Minute},
	}
}

// Load reads the YAML file at path on top of the defaults, then applies
// environment overrides. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Server.Port = getEnv("PORT", c.Server.Port)
	c.Server.Location = getEnv("TZ_LOCATION", c.Server.Location)
	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("LOG_FORMAT", c.Log.Format)
	c.Mongo.URI = getEnv("MONGO_URI", c.Mongo.URI)
	c.Mongo.Database = getEnv("MONGO_DATABASE", c.Mongo.Database)
	c.Queue.Type = getEnv("MESSAGE_QUEUE_TYPE", c.Queue.Type)
	c.Kafka.Brokers = getEnv("KAFKA_BROKERS", c.Kafka.Brokers)
	c.Kafka.Topic = getEnv("KAFKA_TOPIC", c.Kafka.Topic)
	c.Redis.Addr = getEnv("REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = getEnv("REDIS_PASSWORD", c.Redis.Password)
	c.Redis.DB = getEnvInt("REDIS_DB", c.Redis.DB)
	c.MQTT.Broker = getEnv("MQTT_BROKER", c.MQTT.Broker)
	c.MQTT.Enabled = getEnvBool("MQTT_ENABLED", c.MQTT.Enabled)
	c.Worker.Count = getEnvInt("WORKER_COUNT", c.Worker.Count)
	c.Worker.BatchSize = getEnvInt("WORKER_BATCH_SIZE", c.Worker.BatchSize)
}

func (c *Config) Validate() error {
	var errs []error

	switch c.Queue.Type {
	case QueueKafka, QueueRedis, QueueChannel:
	default:
		errs = append(errs, fmt.Errorf("unknown queue type %q", c.Queue.Type))
	}
	if c.Worker.Count <= 0 {
		errs = append(errs, fmt.Errorf("worker.count must be positive, got %d", c.Worker.Count))
	}
	if c.Worker.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("worker.batch_size must be positive, got %d", c.Worker.BatchSize))
	}
	if c.Mongo.URI == "" || c.Mongo.Database == "" {
		errs = append(errs, errors.New("mongo.uri and mongo.database are required"))
	}
	if _, err := c.Location(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

func (c *Config) Location() (*time.Location, error) {
	if c.Server.Location == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Server.Location)
	if err != nil {
		return nil, fmt.Errorf("server.location: %w", err)
	}
	return loc, nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
