package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/richd0tcom/heartline/internal/domain"
)

type fakeRegistry map[string]domain.Device

func (f fakeRegistry) DeviceByAPIKey(_ context.Context, key string) (domain.Device, error) {
	d, ok := f[key]
	if !ok {
		return domain.Device{}, domain.ErrNotFound
	}
	return d, nil
}

var clock = time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

func newTestValidator() *Validator {
	reg := fakeRegistry{
		"key-1": {DeviceID: "dev-1", SubjectID: "patient-1", APIKey: "key-1"},
	}
	return NewValidator(reg, Options{
		Location: time.UTC,
		Now:      func() time.Time { return clock },
	})
}

func validMessage() domain.DeviceMessage {
	return domain.DeviceMessage{
		APIKey:       "key-1",
		DeviceID:     "dev-1",
		HeartRate:    72.4,
		SpO2:         97.5,
		Timestamp:    "2024-03-15T11:58:00",
		Valid:        true,
		ReadingCount: 5,
	}
}

func TestValidateAccepts(t *testing.T) {
	r, err := newTestValidator().Validate(context.Background(), validMessage())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.SubjectID != "patient-1" || r.SourceID != "dev-1" {
		t.Fatalf("unexpected identity %q/%q", r.SubjectID, r.SourceID)
	}
	if r.HeartRate != 72 || r.BloodOxygen != 98 {
		t.Fatalf("expected rounded vitals 72/98, got %d/%d", r.HeartRate, r.BloodOxygen)
	}
	if !r.Timestamp.Equal(time.Date(2024, 3, 15, 11, 58, 0, 0, time.UTC)) {
		t.Fatalf("unexpected timestamp %v", r.Timestamp)
	}
	if r.ID == "" {
		t.Fatalf("expected generated id")
	}
	if r.Tags[domain.TagDelivery] != domain.DeliveryOnTime {
		t.Fatalf("expected on-time tag, got %v", r.Tags)
	}
	if r.ReadingCount != 5 {
		t.Fatalf("expected reading count 5, got %d", r.ReadingCount)
	}
}

func TestValidateRejects(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*domain.DeviceMessage)
		want   error
	}{
		{"device invalid", func(m *domain.DeviceMessage) { m.Valid = false; m.Error = "Insufficient stable readings" }, ErrInvalidMeasurement},
		{"heart rate low", func(m *domain.DeviceMessage) { m.HeartRate = 29 }, ErrOutOfRange},
		{"heart rate high", func(m *domain.DeviceMessage) { m.HeartRate = 251 }, ErrOutOfRange},
		{"oxygen low", func(m *domain.DeviceMessage) { m.SpO2 = 69.4 }, ErrOutOfRange},
		{"oxygen high", func(m *domain.DeviceMessage) { m.SpO2 = 100.6 }, ErrOutOfRange},
		{"unknown key", func(m *domain.DeviceMessage) { m.APIKey = "nope" }, ErrUnknownDevice},
		{"mismatched device", func(m *domain.DeviceMessage) { m.DeviceID = "dev-2" }, ErrUnknownDevice},
		{"future", func(m *domain.DeviceMessage) { m.Timestamp = "2024-03-15T12:06:00" }, ErrFutureTimestamp},
		{"garbage timestamp", func(m *domain.DeviceMessage) { m.Timestamp = "yesterday" }, ErrBadTimestamp},
	}

	v := newTestValidator()
	for _, tc := range cases {
		msg := validMessage()
		tc.mutate(&msg)
		if _, err := v.Validate(context.Background(), msg); !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}
}

func TestValidateBandEdges(t *testing.T) {
	v := newTestValidator()
	for _, vitals := range [][2]float64{{30, 70}, {250, 100}} {
		msg := validMessage()
		msg.HeartRate, msg.SpO2 = vitals[0], vitals[1]
		if _, err := v.Validate(context.Background(), msg); err != nil {
			t.Fatalf("%v: unexpected error: %v", vitals, err)
		}
	}
}

func TestValidateTagsLateReadings(t *testing.T) {
	msg := validMessage()
	msg.Timestamp = "2024-03-14T20:00:00"

	r, err := newTestValidator().Validate(context.Background(), msg)
	if err != nil {
		t.Fatalf("late readings must be accepted: %v", err)
	}
	if r.Tags[domain.TagDelivery] != domain.DeliveryLate {
		t.Fatalf("expected late tag, got %v", r.Tags)
	}
}

func TestValidateDefaultsTimestamp(t *testing.T) {
	msg := validMessage()
	msg.Timestamp = ""

	r, err := newTestValidator().Validate(context.Background(), msg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !r.Timestamp.Equal(clock) {
		t.Fatalf("expected receive time, got %v", r.Timestamp)
	}
}

func TestValidateOffsetTimestamp(t *testing.T) {
	msg := validMessage()
	msg.Timestamp = "2024-03-15T13:55:00+02:00"

	r, err := newTestValidator().Validate(context.Background(), msg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !r.Timestamp.Equal(time.Date(2024, 3, 15, 11, 55, 0, 0, time.UTC)) {
		t.Fatalf("unexpected timestamp %v", r.Timestamp)
	}
}
