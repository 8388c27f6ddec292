package aggregator

import (
	"errors"
	"fmt"
	"time"

	"github.com/richd0tcom/heartline/internal/domain"
)

var ErrMalformedWindow = errors.New("malformed window")

const (
	weeklyLookbackDays  = 7
	monthlyLookbackDays = 30
)

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func endOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, int(999*time.Millisecond), t.Location())
}

// DailyWindow covers today, [00:00, tomorrow 00:00).
func DailyWindow(now time.Time) domain.Window {
	start := startOfDay(now)
	return domain.Window{Start: start, End: start.AddDate(0, 0, 1)}
}

// WeeklyWindow covers today-7 00:00 through today 23:59:59.999 inclusive.
func WeeklyWindow(now time.Time) domain.Window {
	return lookback(now, weeklyLookbackDays)
}

// MonthlyWindow covers today-30 00:00 through today 23:59:59.999 inclusive.
func MonthlyWindow(now time.Time) domain.Window {
	return lookback(now, monthlyLookbackDays)
}

func lookback(now time.Time, days int) domain.Window {
	return domain.Window{
		Start:        startOfDay(now).AddDate(0, 0, -days),
		End:          endOfDay(now),
		EndInclusive: true,
	}
}

// DateWindow covers the calendar day named by date (YYYY-MM-DD) in loc.
func DateWindow(date string, loc *time.Location) (domain.Window, error) {
	day, err := time.ParseInLocation(DateLayout, date, loc)
	if err != nil {
		return domain.Window{}, fmt.Errorf("%w: %q: %v", ErrMalformedWindow, date, err)
	}
	return domain.Window{Start: day, End: day.AddDate(0, 0, 1)}, nil
}

// ChartWindow covers the seven calendar days ending on referenceDate.
func ChartWindow(referenceDate time.Time) domain.Window {
	return domain.Window{
		Start: startOfDay(referenceDate).AddDate(0, 0, -(ChartDays - 1)),
		End:   startOfDay(referenceDate).AddDate(0, 0, 1),
	}
}
