package consumer

import (
	"log/slog"
	"time"

	"github.com/richd0tcom/heartline/internal/domain"
	"github.com/richd0tcom/heartline/internal/metrics"
)

// Fixed vital bands. These flag readings for follow up; they carry no
// clinical interpretation.
const (
	HeartRateLow   = 50
	HeartRateHigh  = 120
	BloodOxygenLow = 90
)

const (
	BandLow  = "low"
	BandHigh = "high"
)

type BandAlert struct {
	Metric string
	Band   string
	Value  int
}

// Classify returns the bands a reading falls outside of.
func Classify(r domain.Reading) []BandAlert {
	var alerts []BandAlert
	switch {
	case r.HeartRate < HeartRateLow:
		alerts = append(alerts, BandAlert{Metric: "heartRate", Band: BandLow, Value: r.HeartRate})
	case r.HeartRate > HeartRateHigh:
		alerts = append(alerts, BandAlert{Metric: "heartRate", Band: BandHigh, Value: r.HeartRate})
	}
	if r.BloodOxygen < BloodOxygenLow {
		alerts = append(alerts, BandAlert{Metric: "bloodOxygen", Band: BandLow, Value: r.BloodOxygen})
	}
	return alerts
}

type BandConsumer struct {
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewBandConsumer(logger *slog.Logger, m *metrics.Metrics) *BandConsumer {
	return &BandConsumer{logger: logger, metrics: m}
}

func (b *BandConsumer) Process(data []domain.Reading) error {
	for _, r := range data {
		for _, a := range Classify(r) {
			b.metrics.BandAlerts.WithLabelValues(a.Metric, a.Band).Inc()
			b.logger.Warn("reading outside band",
				"subject", r.SubjectID,
				"source", r.SourceID,
				"metric", a.Metric,
				"band", a.Band,
				"value", a.Value,
				"time", r.Timestamp.Format(time.RFC3339))
		}
	}
	return nil
}
