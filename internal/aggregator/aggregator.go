// Package aggregator turns a subject's readings into summaries and chart
// series. Every function is pure: inputs are never mutated and no I/O is
// performed, so calls are safe from concurrent requests.
package aggregator

import (
	"math"
	"slices"

	"github.com/richd0tcom/heartline/internal/domain"
)

// DateLayout is the calendar-day key used for bucketing.
const DateLayout = "2006-01-02"

type accumulator struct {
	count        int
	hrSum, o2Sum int
	hrMin, hrMax int
	o2Min, o2Max int
}

func (a *accumulator) add(r domain.Reading) {
	if a.count == 0 {
		a.hrMin, a.hrMax = r.HeartRate, r.HeartRate
		a.o2Min, a.o2Max = r.BloodOxygen, r.BloodOxygen
	}
	a.count++
	a.hrSum += r.HeartRate
	a.o2Sum += r.BloodOxygen
	a.hrMin = min(a.hrMin, r.HeartRate)
	a.hrMax = max(a.hrMax, r.HeartRate)
	a.o2Min = min(a.o2Min, r.BloodOxygen)
	a.o2Max = max(a.o2Max, r.BloodOxygen)
}

func (a *accumulator) stats() domain.Stats {
	if a.count == 0 {
		return domain.Stats{}
	}
	return domain.Stats{
		AvgHeartRate:     roundAvg(a.hrSum, a.count),
		MinHeartRate:     a.hrMin,
		MaxHeartRate:     a.hrMax,
		AvgBloodOxygen:   roundAvg(a.o2Sum, a.count),
		MinBloodOxygen:   a.o2Min,
		MaxBloodOxygen:   a.o2Max,
		MeasurementCount: a.count,
	}
}

// roundAvg rounds half away from zero.
func roundAvg(sum, n int) int {
	return int(math.Round(float64(sum) / float64(n)))
}

// Summarize computes overall and per-day statistics for readings that were
// already selected for window. Days without readings are left out of the
// breakdown. An empty input yields zero stats and an empty breakdown; callers
// should check MeasurementCount before reading the averages.
func Summarize(readings []domain.Reading, window domain.Window) domain.Summary {
	var total accumulator
	days := make(map[string]*accumulator)

	for _, r := range readings {
		total.add(r)

		key := r.Timestamp.Format(DateLayout)
		acc, ok := days[key]
		if !ok {
			acc = &accumulator{}
			days[key] = acc
		}
		acc.add(r)
	}

	keys := make([]string, 0, len(days))
	for k := range days {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	breakdown := make([]domain.DailyBucket, 0, len(keys))
	for _, k := range keys {
		breakdown = append(breakdown, domain.DailyBucket{Date: k, Stats: days[k].stats()})
	}

	return domain.Summary{
		Stats:          total.stats(),
		DailyBreakdown: breakdown,
		StartDate:      window.Start,
		EndDate:        window.End,
	}
}
