// Package ingest turns device payloads into readings ready for storage.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/richd0tcom/heartline/internal/domain"
)

const (
	MinHeartRate   = 30
	MaxHeartRate   = 250
	MinBloodOxygen = 70
	MaxBloodOxygen = 100
)

var (
	ErrInvalidMeasurement = errors.New("device reported an invalid measurement")
	ErrOutOfRange         = errors.New("measurement out of range")
	ErrUnknownDevice      = errors.New("unknown device")
	ErrFutureTimestamp    = errors.New("timestamp is in the future")
	ErrBadTimestamp       = errors.New("unparseable timestamp")
)

// Device firmware sends naive local ISO timestamps, sometimes with an offset.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
}

type Options struct {
	// LateAfter is how old a reading may be on arrival before it is tagged late.
	LateAfter time.Duration
	// MaxSkew is how far in the future a timestamp may be.
	MaxSkew   time.Duration
	Location  *time.Location
	Now       func() time.Time
}

type Validator struct {
	registry domain.DeviceRegistry
	opts     Options
}

func NewValidator(registry domain.DeviceRegistry, opts Options) *Validator {
	if opts.LateAfter <= 0 {
		opts.LateAfter = 10 * time.Minute
	}
	if opts.MaxSkew <= 0 {
		opts.MaxSkew = 5 * time.Minute
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Validator{registry: registry, opts: opts}
}

func (v *Validator) Validate(ctx context.Context, msg domain.DeviceMessage) (domain.Reading, error) {
	if !msg.Valid {
		if msg.Error != "" {
			return domain.Reading{}, fmt.Errorf("%w: %s", ErrInvalidMeasurement, msg.Error)
		}
		return domain.Reading{}, ErrInvalidMeasurement
	}

	hr := int(math.Round(msg.HeartRate))
	o2 := int(math.Round(msg.SpO2))
	if hr < MinHeartRate || hr > MaxHeartRate {
		return domain.Reading{}, fmt.Errorf("%w: heart rate %d not in [%d, %d]", ErrOutOfRange, hr, MinHeartRate, MaxHeartRate)
	}
	if o2 < MinBloodOxygen || o2 > MaxBloodOxygen {
		return domain.Reading{}, fmt.Errorf("%w: blood oxygen %d not in [%d, %d]", ErrOutOfRange, o2, MinBloodOxygen, MaxBloodOxygen)
	}

	device, err := v.registry.DeviceByAPIKey(ctx, msg.APIKey)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Reading{}, ErrUnknownDevice
		}
		return domain.Reading{}, fmt.Errorf("device lookup: %w", err)
	}
	if msg.DeviceID != "" && msg.DeviceID != device.DeviceID {
		return domain.Reading{}, fmt.Errorf("%w: api key does not belong to %q", ErrUnknownDevice, msg.DeviceID)
	}

	received := v.opts.Now().In(v.opts.Location)
	ts := received
	if msg.Timestamp != "" {
		ts, err = v.parseTimestamp(msg.Timestamp)
		if err != nil {
			return domain.Reading{}, err
		}
	}
	if ts.Sub(received) > v.opts.MaxSkew {
		return domain.Reading{}, fmt.Errorf("%w: %s", ErrFutureTimestamp, msg.Timestamp)
	}

	delivery := domain.DeliveryOnTime
	if received.Sub(ts) > v.opts.LateAfter {
		delivery = domain.DeliveryLate
	}

	return domain.Reading{
		ID:           uuid.NewString(),
		SubjectID:    device.SubjectID,
		SourceID:     device.DeviceID,
		HeartRate:    hr,
		BloodOxygen:  o2,
		Timestamp:    ts,
		ReceivedAt:   received,
		ReadingCount: msg.ReadingCount,
		Tags:         map[string]string{domain.TagDelivery: delivery},
	}, nil
}

func (v *Validator) parseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, v.opts.Location); err == nil {
			return t.In(v.opts.Location), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrBadTimestamp, s)
}

// Reason maps a validation error to a short metric label.
func Reason(err error) string {
	switch {
	case errors.Is(err, ErrInvalidMeasurement):
		return "invalid"
	case errors.Is(err, ErrOutOfRange):
		return "out_of_range"
	case errors.Is(err, ErrUnknownDevice):
		return "unknown_device"
	case errors.Is(err, ErrFutureTimestamp):
		return "future"
	case errors.Is(err, ErrBadTimestamp):
		return "bad_timestamp"
	default:
		return "internal"
	}
}
