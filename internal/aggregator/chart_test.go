package aggregator

import (
	"testing"
	"time"

	"github.com/richd0tcom/heartline/internal/domain"
)

func TestBuildWeeklyChartAlwaysSevenEntries(t *testing.T) {
	ref := at(10, 12)
	cases := map[string][]domain.Reading{
		"empty": nil,
		"one":   {reading(70, 97, at(10, 1))},
		"outside window": {
			reading(70, 97, at(1, 1)),
			reading(70, 97, at(11, 1)),
		},
	}
	for name, readings := range cases {
		got := BuildWeeklyChart(readings, ref)
		if len(got.Dates) != ChartDays || len(got.HeartRate) != ChartDays || len(got.BloodOxygen) != ChartDays {
			t.Fatalf("%s: expected %d entries, got %d/%d/%d", name, ChartDays,
				len(got.Dates), len(got.HeartRate), len(got.BloodOxygen))
		}
	}
}

func TestBuildWeeklyChartEmptyIsAllAbsent(t *testing.T) {
	got := BuildWeeklyChart(nil, at(10, 0))
	for i := range got.HeartRate {
		if got.HeartRate[i] != nil || got.BloodOxygen[i] != nil {
			t.Fatalf("expected absence at %d", i)
		}
	}
}

func TestBuildWeeklyChartDateAxis(t *testing.T) {
	got := BuildWeeklyChart(nil, at(3, 15))
	want := []string{
		"2024-02-26", "2024-02-27", "2024-02-28", "2024-02-29",
		"2024-03-01", "2024-03-02", "2024-03-03",
	}
	for i := range want {
		if got.Dates[i] != want[i] {
			t.Fatalf("expected dates %v, got %v", want, got.Dates)
		}
	}
}

func TestBuildWeeklyChartGapFill(t *testing.T) {
	ref := at(7, 18)
	// day 3 and day 6 of the window 2024-03-01 .. 2024-03-07
	readings := []domain.Reading{
		reading(60, 96, at(3, 8)),
		reading(71, 97, at(3, 20)),
		reading(90, 92, at(6, 10)),
	}

	got := BuildWeeklyChart(readings, ref)

	absent := 0
	for i := range got.HeartRate {
		if got.HeartRate[i] == nil {
			absent++
			if got.BloodOxygen[i] != nil {
				t.Fatalf("series disagree on absence at %d", i)
			}
		}
	}
	if absent != 5 {
		t.Fatalf("expected 5 absence markers, got %d", absent)
	}

	if got.HeartRate[2] == nil || *got.HeartRate[2] != 66 {
		t.Fatalf("expected day 3 heart rate 66, got %v", got.HeartRate[2])
	}
	if got.BloodOxygen[2] == nil || *got.BloodOxygen[2] != 97 {
		t.Fatalf("expected day 3 blood oxygen 97, got %v", got.BloodOxygen[2])
	}
	if got.HeartRate[5] == nil || *got.HeartRate[5] != 90 {
		t.Fatalf("expected day 6 heart rate 90, got %v", got.HeartRate[5])
	}
	if got.BloodOxygen[5] == nil || *got.BloodOxygen[5] != 92 {
		t.Fatalf("expected day 6 blood oxygen 92, got %v", got.BloodOxygen[5])
	}
}

func TestBuildWeeklyChartUsesReferenceZone(t *testing.T) {
	loc := time.FixedZone("UTC-8", -8*3600)
	ref := time.Date(2024, 3, 7, 23, 0, 0, 0, loc)
	got := BuildWeeklyChart(nil, ref)
	if got.Dates[ChartDays-1] != "2024-03-07" {
		t.Fatalf("expected last label in reference zone, got %s", got.Dates[ChartDays-1])
	}
}
