package timeline

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidArgument indicates a bad years/frequency combination. It is
// reported before any network call is made.
var ErrInvalidArgument = errors.New("invalid argument")

// Frequency selects the length of each timelapse interval.
type Frequency string

const (
	FrequencyYear    Frequency = "year"
	FrequencyQuarter Frequency = "quarter"
	FrequencyMonth   Frequency = "month"
)

// ParseFrequency validates a frequency string from the CLI.
func ParseFrequency(s string) (Frequency, error) {
	switch Frequency(s) {
	case FrequencyYear, FrequencyQuarter, FrequencyMonth:
		return Frequency(s), nil
	default:
		return "", fmt.Errorf("%w: unrecognized frequency %q (must be year, quarter, or month)", ErrInvalidArgument, s)
	}
}

// advance returns t moved forward by one frequency unit.
func (f Frequency) advance(t time.Time) time.Time {
	switch f {
	case FrequencyYear:
		return t.AddDate(1, 0, 0)
	case FrequencyQuarter:
		return t.AddDate(0, 3, 0)
	case FrequencyMonth:
		return t.AddDate(0, 1, 0)
	default:
		return t.AddDate(1, 0, 0)
	}
}

// Interval is one time bucket mapped to one output frame.
// The range is half-open: [Start, End).
type Interval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Label string    `json:"label"`
}

// FormatLabel builds the human-readable label burned into each frame,
// derived from the interval start: "2023", "2023-Q2", or "2023-04".
func FormatLabel(start time.Time, freq Frequency) string {
	switch freq {
	case FrequencyQuarter:
		quarter := (int(start.Month())-1)/3 + 1
		return fmt.Sprintf("%d-Q%d", start.Year(), quarter)
	case FrequencyMonth:
		return start.Format("2006-01")
	default:
		return fmt.Sprintf("%d", start.Year())
	}
}

// Build produces the ordered sequence of non-overlapping intervals covering
// [today - years, today]. Intervals are anchored at the span start and
// stepped by the frequency, so years=1 with frequency "year" yields exactly
// one interval. The last interval is truncated at today if it would
// overshoot.
func Build(today time.Time, years int, freq Frequency) ([]Interval, error) {
	if years <= 0 {
		return nil, fmt.Errorf("%w: years must be positive, got %d", ErrInvalidArgument, years)
	}
	if _, err := ParseFrequency(string(freq)); err != nil {
		return nil, err
	}

	start := today.AddDate(-years, 0, 0)
	intervals := make([]Interval, 0, estimateCount(years, freq))

	for cursor := start; cursor.Before(today); {
		next := freq.advance(cursor)
		end := next
		if end.After(today) {
			end = today
		}
		intervals = append(intervals, Interval{
			Start: cursor,
			End:   end,
			Label: FormatLabel(cursor, freq),
		})
		cursor = next
	}

	if len(intervals) == 0 {
		return nil, fmt.Errorf("%w: empty time span", ErrInvalidArgument)
	}
	return intervals, nil
}

// estimateCount pre-sizes the interval slice.
func estimateCount(years int, freq Frequency) int {
	switch freq {
	case FrequencyQuarter:
		return years * 4
	case FrequencyMonth:
		return years * 12
	default:
		return years
	}
}
