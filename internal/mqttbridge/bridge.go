// Package mqttbridge forwards device measurements published over MQTT into
// the ingestion queue.
package mqttbridge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/richd0tcom/heartline/internal/broker"
	"github.com/richd0tcom/heartline/internal/domain"
	"github.com/richd0tcom/heartline/internal/ingest"
	"github.com/richd0tcom/heartline/internal/metrics"
)

const (
	source         = "mqtt"
	qosAtLeastOnce = 1
	handleTimeout  = 10 * time.Second
)

type Bridge struct {
	client    mqtt.Client
	topic     string
	validator *ingest.Validator
	queue     broker.MessageQueue
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

func New(brokerAddr, clientID, topic string, validator *ingest.Validator, queue broker.MessageQueue, logger *slog.Logger, m *metrics.Metrics) *Bridge {
	opts := mqtt.NewClientOptions().
		AddBroker(brokerAddr).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetCleanSession(false)

	b := &Bridge{
		topic:     topic,
		validator: validator,
		queue:     queue,
		logger:    logger,
		metrics:   m,
	}
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warn("mqtt connection lost", "err", err)
	})
	b.client = mqtt.NewClient(opts)
	return b
}

// Run connects, subscribes and blocks until ctx is cancelled.
func (b *Bridge) Run(ctx context.Context) error {
	if token := b.client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("mqtt connect: %w", token.Error())
	}
	defer b.client.Disconnect(250)

	token := b.client.Subscribe(b.topic, qosAtLeastOnce, func(_ mqtt.Client, msg mqtt.Message) {
		hctx, cancel := context.WithTimeout(ctx, handleTimeout)
		defer cancel()
		b.Handle(hctx, msg.Payload())
	})
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("mqtt subscribe %s: %w", b.topic, token.Error())
	}

	b.logger.Info("mqtt bridge subscribed", "topic", b.topic)
	<-ctx.Done()
	return nil
}

// Handle validates one device payload and publishes the resulting reading.
// Failures are logged and counted; MQTT has no channel back to the device.
func (b *Bridge) Handle(ctx context.Context, payload []byte) {
	var msg domain.DeviceMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		b.metrics.ReadingsRejected.WithLabelValues(source, "decode").Inc()
		b.logger.Warn("dropping undecodable mqtt payload", "err", err)
		return
	}

	reading, err := b.validator.Validate(ctx, msg)
	if err != nil {
		b.metrics.ReadingsRejected.WithLabelValues(source, ingest.Reason(err)).Inc()
		b.logger.Warn("rejected mqtt measurement", "device", msg.DeviceID, "err", err)
		return
	}

	data, err := json.Marshal(domain.BulkReadings{Data: []domain.Reading{reading}})
	if err != nil {
		b.logger.Error("failed to serialize reading", "err", err)
		return
	}
	if err := b.queue.Publish(ctx, data); err != nil {
		b.metrics.ReadingsRejected.WithLabelValues(source, "publish").Inc()
		b.logger.Error("failed to publish reading", "device", msg.DeviceID, "err", err)
		return
	}
	b.metrics.ReadingsIngested.WithLabelValues(source).Inc()
}
