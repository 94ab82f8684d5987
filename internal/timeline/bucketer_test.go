package timeline

import (
	"errors"
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestBuildSingleYear(t *testing.T) {
	today := date(2026, time.August, 23)

	intervals, err := Build(today, 1, FrequencyYear)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if len(intervals) != 1 {
		t.Fatalf("Expected 1 interval, got %d", len(intervals))
	}
	if !intervals[0].Start.Equal(date(2025, time.August, 23)) {
		t.Errorf("Expected start 2025-08-23, got %s", intervals[0].Start)
	}
	if !intervals[0].End.Equal(today) {
		t.Errorf("Expected end at today, got %s", intervals[0].End)
	}
	if intervals[0].Label != "2025" {
		t.Errorf("Expected label '2025', got %q", intervals[0].Label)
	}
}

func TestBuildTwoYearsQuarterly(t *testing.T) {
	today := date(2026, time.August, 23)

	intervals, err := Build(today, 2, FrequencyQuarter)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if len(intervals) != 8 {
		t.Fatalf("Expected 8 intervals, got %d", len(intervals))
	}
	if !intervals[0].Start.Equal(date(2024, time.August, 23)) {
		t.Errorf("Expected first start 2024-08-23, got %s", intervals[0].Start)
	}
	if !intervals[7].End.Equal(today) {
		t.Errorf("Expected final end at today, got %s", intervals[7].End)
	}
}

func TestBuildNoGapsNoOverlaps(t *testing.T) {
	today := date(2026, time.January, 31)

	cases := []struct {
		years int
		freq  Frequency
	}{
		{1, FrequencyYear},
		{5, FrequencyYear},
		{2, FrequencyQuarter},
		{3, FrequencyMonth},
		{1, FrequencyMonth},
	}

	for _, tc := range cases {
		intervals, err := Build(today, tc.years, tc.freq)
		if err != nil {
			t.Fatalf("Build(%d, %s) failed: %v", tc.years, tc.freq, err)
		}

		for i := range intervals {
			if !intervals[i].Start.Before(intervals[i].End) {
				t.Errorf("%d/%s: interval %d has start %s >= end %s",
					tc.years, tc.freq, i, intervals[i].Start, intervals[i].End)
			}
			if i > 0 {
				// End of previous must equal start of next: no gap, no overlap.
				if !intervals[i-1].End.Equal(intervals[i].Start) {
					t.Errorf("%d/%s: gap/overlap between interval %d and %d: %s vs %s",
						tc.years, tc.freq, i-1, i, intervals[i-1].End, intervals[i].Start)
				}
				if intervals[i].Start.Before(intervals[i-1].Start) {
					t.Errorf("%d/%s: starts not non-decreasing at %d", tc.years, tc.freq, i)
				}
			}
		}

		last := intervals[len(intervals)-1]
		if !last.End.Equal(today) {
			t.Errorf("%d/%s: final end %s != today %s", tc.years, tc.freq, last.End, today)
		}
	}
}

func TestBuildTruncatesLastInterval(t *testing.T) {
	// Anchoring at a month-end makes the monthly boundaries normalize to the
	// 1st (there is no April 31st), so the final step overshoots today and
	// must be clamped.
	today := date(2026, time.March, 31)

	intervals, err := Build(today, 1, FrequencyMonth)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	last := intervals[len(intervals)-1]
	if !last.End.Equal(today) {
		t.Errorf("Expected truncation at today, got %s", last.End)
	}
	if !last.Start.Before(last.End) {
		t.Errorf("Truncated interval is empty: %s .. %s", last.Start, last.End)
	}
}

func TestBuildInvalidArguments(t *testing.T) {
	today := date(2026, time.August, 23)

	if _, err := Build(today, 0, FrequencyYear); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("Expected ErrInvalidArgument for years=0, got %v", err)
	}
	if _, err := Build(today, -3, FrequencyYear); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("Expected ErrInvalidArgument for years=-3, got %v", err)
	}
	if _, err := Build(today, 1, Frequency("weekly")); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("Expected ErrInvalidArgument for bad frequency, got %v", err)
	}
}

func TestParseFrequency(t *testing.T) {
	for _, valid := range []string{"year", "quarter", "month"} {
		if _, err := ParseFrequency(valid); err != nil {
			t.Errorf("ParseFrequency(%q) failed: %v", valid, err)
		}
	}
	if _, err := ParseFrequency("decade"); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("Expected ErrInvalidArgument, got %v", err)
	}
}

func TestFormatLabel(t *testing.T) {
	cases := []struct {
		start time.Time
		freq  Frequency
		want  string
	}{
		{date(2023, time.January, 1), FrequencyYear, "2023"},
		{date(2023, time.April, 10), FrequencyQuarter, "2023-Q2"},
		{date(2023, time.December, 31), FrequencyQuarter, "2023-Q4"},
		{date(2023, time.April, 10), FrequencyMonth, "2023-04"},
	}
	for _, tc := range cases {
		if got := FormatLabel(tc.start, tc.freq); got != tc.want {
			t.Errorf("FormatLabel(%s, %s) = %q, want %q", tc.start, tc.freq, got, tc.want)
		}
	}
}
