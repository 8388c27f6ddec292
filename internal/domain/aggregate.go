package domain

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("not found")

// Window is a time interval used to select readings. When EndInclusive is
// set the window is [Start, End], otherwise [Start, End).
type Window struct {
	Start        time.Time
	End          time.Time
	EndInclusive bool
}

func (w Window) Contains(t time.Time) bool {
	if t.Before(w.Start) {
		return false
	}
	if w.EndInclusive {
		return !t.After(w.End)
	}
	return t.Before(w.End)
}

type DataStore interface {
	InsertBatch(ctx context.Context, data []Reading) error
	Readings(ctx context.Context, subjectID string, window Window) ([]Reading, error)
	Close() error
}

type DeviceRegistry interface {
	DeviceByAPIKey(ctx context.Context, apiKey string) (Device, error)
}

type AssignmentStore interface {
	IsAssigned(ctx context.Context, physicianID, patientID string) (bool, error)
}

// Stats holds min/avg/max for both vitals plus the number of readings they
// were computed from. All fields are zero when Count is zero.
type Stats struct {
	AvgHeartRate     int `json:"avgHeartRate"`
	MinHeartRate     int `json:"minHeartRate"`
	MaxHeartRate     int `json:"maxHeartRate"`
	AvgBloodOxygen   int `json:"avgBloodOxygen"`
	MinBloodOxygen   int `json:"minBloodOxygen"`
	MaxBloodOxygen   int `json:"maxBloodOxygen"`
	MeasurementCount int `json:"measurementCount"`
}

type DailyBucket struct {
	Date string `json:"date"`
	Stats
}

type Summary struct {
	Stats
	DailyBreakdown []DailyBucket `json:"dailyBreakdown"`
	StartDate      time.Time     `json:"startDate"`
	EndDate        time.Time     `json:"endDate"`
}

// ChartSeries is a dense per-day series. A nil entry marks a day without
// readings.
type ChartSeries struct {
	Dates       []string `json:"dates"`
	HeartRate   []*int   `json:"heartRate"`
	BloodOxygen []*int   `json:"bloodOxygen"`
}
