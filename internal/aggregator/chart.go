package aggregator

import (
	"time"

	"github.com/richd0tcom/heartline/internal/domain"
)

// ChartDays is the fixed length of a weekly chart.
const ChartDays = 7

// BuildWeeklyChart returns one entry per calendar day from referenceDate-6
// through referenceDate, oldest first. Days without readings hold nil so the
// series stay aligned with the date axis. Readings outside those days are
// ignored.
func BuildWeeklyChart(readings []domain.Reading, referenceDate time.Time) domain.ChartSeries {
	y, m, d := referenceDate.Date()
	loc := referenceDate.Location()

	chart := domain.ChartSeries{
		Dates:       make([]string, ChartDays),
		HeartRate:   make([]*int, ChartDays),
		BloodOxygen: make([]*int, ChartDays),
	}

	index := make(map[string]int, ChartDays)
	for i := 0; i < ChartDays; i++ {
		day := time.Date(y, m, d-(ChartDays-1-i), 0, 0, 0, 0, loc)
		key := day.Format(DateLayout)
		chart.Dates[i] = key
		index[key] = i
	}

	accs := make([]accumulator, ChartDays)
	for _, r := range readings {
		i, ok := index[r.Timestamp.Format(DateLayout)]
		if !ok {
			continue
		}
		accs[i].add(r)
	}

	for i := range accs {
		if accs[i].count == 0 {
			continue
		}
		st := accs[i].stats()
		hr, o2 := st.AvgHeartRate, st.AvgBloodOxygen
		chart.HeartRate[i] = &hr
		chart.BloodOxygen[i] = &o2
	}

	return chart
}
