package db

import (
	"testing"
	"time"

	"github.com/richd0tcom/heartline/internal/domain"
	"go.mongodb.org/mongo-driver/v2/bson"
)

func TestReadingsFilterBounds(t *testing.T) {
	start := time.Date(2024, 3, 8, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 3, 15, 23, 59, 59, int(999*time.Millisecond), time.UTC)

	cases := []struct {
		inclusive bool
		op        string
	}{
		{inclusive: true, op: "$lte"},
		{inclusive: false, op: "$lt"},
	}

	for _, tc := range cases {
		f := readingsFilter("patient-1", domain.Window{Start: start, End: end, EndInclusive: tc.inclusive})
		if f["subjectId"] != "patient-1" {
			t.Fatalf("expected subject filter, got %v", f["subjectId"])
		}
		ts, ok := f["timestamp"].(bson.M)
		if !ok {
			t.Fatalf("expected timestamp range, got %T", f["timestamp"])
		}
		if len(ts) != 2 {
			t.Fatalf("expected two bounds, got %v", ts)
		}
		if ts["$gte"] != start {
			t.Fatalf("expected $gte %v, got %v", start, ts["$gte"])
		}
		if ts[tc.op] != end {
			t.Fatalf("inclusive=%v: expected %s %v, got %v", tc.inclusive, tc.op, end, ts)
		}
	}
}

func TestInLocationConvertsDecodedTimestamps(t *testing.T) {
	loc := time.FixedZone("UTC+5", 5*3600)
	// 21:00 UTC on the 1st is already the 2nd in UTC+5.
	ts := time.Date(2024, 3, 1, 21, 0, 0, 0, time.UTC)
	received := time.Date(2024, 3, 1, 21, 1, 0, 0, time.UTC)
	readings := []domain.Reading{{SubjectID: "patient-1", Timestamp: ts, ReceivedAt: received}}

	inLocation(readings, loc)

	got := readings[0]
	if got.Timestamp.Location() != loc || got.ReceivedAt.Location() != loc {
		t.Fatalf("expected both timestamps in %v, got %v / %v", loc, got.Timestamp.Location(), got.ReceivedAt.Location())
	}
	if !got.Timestamp.Equal(ts) || !got.ReceivedAt.Equal(received) {
		t.Fatalf("conversion must not change the instant: %v / %v", got.Timestamp, got.ReceivedAt)
	}
	if day := got.Timestamp.Format("2006-01-02"); day != "2024-03-02" {
		t.Fatalf("expected calendar day in configured zone, got %s", day)
	}
}
