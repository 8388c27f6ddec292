package mqttbridge

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/richd0tcom/heartline/internal/broker"
	"github.com/richd0tcom/heartline/internal/domain"
	"github.com/richd0tcom/heartline/internal/ingest"
	"github.com/richd0tcom/heartline/internal/metrics"
)

type staticRegistry struct{}

func (staticRegistry) DeviceByAPIKey(_ context.Context, key string) (domain.Device, error) {
	if key != "key-1" {
		return domain.Device{}, domain.ErrNotFound
	}
	return domain.Device{DeviceID: "dev-1", SubjectID: "patient-1"}, nil
}

func newTestBridge() (*Bridge, *broker.ChannelQueue, *metrics.Metrics) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	q := broker.NewChannelQueue(4, logger)
	m := metrics.New(prometheus.NewRegistry())
	v := ingest.NewValidator(staticRegistry{}, ingest.Options{Location: time.UTC})
	return New("tcp://localhost:1883", "test", "heartline/measurements", v, q, logger, m), q, m
}

func TestHandlePublishesValidMeasurement(t *testing.T) {
	b, q, m := newTestBridge()
	defer q.Close()

	payload := `{"api_key":"key-1","device_id":"dev-1","heart_rate":64.6,"spo2":98,"valid":true,"reading_count":4}`
	b.Handle(context.Background(), []byte(payload))

	if v := testutil.ToFloat64(m.ReadingsIngested.WithLabelValues(source)); v != 1 {
		t.Fatalf("expected 1 ingested reading, got %v", v)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	got := make(chan domain.BulkReadings, 1)
	go q.Consume(ctx, func(data []byte) error {
		var bulk domain.BulkReadings
		if err := json.Unmarshal(data, &bulk); err != nil {
			return err
		}
		got <- bulk
		return nil
	})

	select {
	case bulk := <-got:
		if len(bulk.Data) != 1 || bulk.Data[0].SubjectID != "patient-1" || bulk.Data[0].HeartRate != 65 {
			t.Fatalf("unexpected bulk %+v", bulk)
		}
	case <-ctx.Done():
		t.Fatal("reading was not published")
	}
}

func TestHandleCountsRejections(t *testing.T) {
	b, q, m := newTestBridge()
	defer q.Close()

	b.Handle(context.Background(), []byte("not json"))
	b.Handle(context.Background(), []byte(`{"api_key":"key-1","valid":false,"error":"Insufficient stable readings"}`))
	b.Handle(context.Background(), []byte(`{"api_key":"bogus","heart_rate":70,"spo2":97,"valid":true}`))

	for reason, want := range map[string]float64{"decode": 1, "invalid": 1, "unknown_device": 1} {
		if v := testutil.ToFloat64(m.ReadingsRejected.WithLabelValues(source, reason)); v != want {
			t.Fatalf("reason %s: expected %v, got %v", reason, want, v)
		}
	}
	if v := testutil.ToFloat64(m.ReadingsIngested.WithLabelValues(source)); v != 0 {
		t.Fatalf("expected nothing ingested, got %v", v)
	}
}
