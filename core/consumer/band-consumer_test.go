package consumer

import (
	"io"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/richd0tcom/heartline/internal/domain"
	"github.com/richd0tcom/heartline/internal/metrics"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		hr, o2 int
		want   []BandAlert
	}{
		{hr: 72, o2: 97, want: nil},
		{hr: 50, o2: 90, want: nil},
		{hr: 120, o2: 100, want: nil},
		{hr: 49, o2: 97, want: []BandAlert{{Metric: "heartRate", Band: BandLow, Value: 49}}},
		{hr: 121, o2: 97, want: []BandAlert{{Metric: "heartRate", Band: BandHigh, Value: 121}}},
		{hr: 72, o2: 89, want: []BandAlert{{Metric: "bloodOxygen", Band: BandLow, Value: 89}}},
		{hr: 140, o2: 85, want: []BandAlert{
			{Metric: "heartRate", Band: BandHigh, Value: 140},
			{Metric: "bloodOxygen", Band: BandLow, Value: 85},
		}},
	}

	for _, tc := range cases {
		got := Classify(domain.Reading{HeartRate: tc.hr, BloodOxygen: tc.o2})
		if len(got) != len(tc.want) {
			t.Fatalf("hr=%d o2=%d: expected %v, got %v", tc.hr, tc.o2, tc.want, got)
		}
		for i := range got {
			if got[i] != tc.want[i] {
				t.Fatalf("hr=%d o2=%d: expected %v, got %v", tc.hr, tc.o2, tc.want, got)
			}
		}
	}
}

func TestBandConsumerCountsAlerts(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	c := NewBandConsumer(slog.New(slog.NewTextHandler(io.Discard, nil)), m)

	err := c.Process([]domain.Reading{
		{HeartRate: 45, BloodOxygen: 97},
		{HeartRate: 130, BloodOxygen: 88},
		{HeartRate: 70, BloodOxygen: 98},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if v := testutil.ToFloat64(m.BandAlerts.WithLabelValues("heartRate", BandLow)); v != 1 {
		t.Fatalf("expected 1 low heart rate alert, got %v", v)
	}
	if v := testutil.ToFloat64(m.BandAlerts.WithLabelValues("heartRate", BandHigh)); v != 1 {
		t.Fatalf("expected 1 high heart rate alert, got %v", v)
	}
	if v := testutil.ToFloat64(m.BandAlerts.WithLabelValues("bloodOxygen", BandLow)); v != 1 {
		t.Fatalf("expected 1 low oxygen alert, got %v", v)
	}
}
