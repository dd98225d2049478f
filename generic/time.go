package generic

import (
	"encoding/json"
	"fmt"
	"time"
)

// DateLayout is the wire and storage format of a TimePoint.
const DateLayout = "2006-01-02"

// =============================================================================
// TIME POINT - Calendar day, the only granularity leave is booked at
// =============================================================================

// TimePoint is a calendar day in UTC. The zero value is "no date".
type TimePoint struct {
	Time time.Time
}

func NewTimePoint(year int, month time.Month, day int) TimePoint {
	return TimePoint{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// FromTime truncates t to its calendar day, as seen in t's own location.
func FromTime(t time.Time) TimePoint {
	return NewTimePoint(t.Year(), t.Month(), t.Day())
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (TimePoint, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return TimePoint{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD: %w", s, err)
	}
	return FromTime(t), nil
}

func Today() TimePoint {
	return FromTime(time.Now().UTC())
}

// Comparison
func (tp TimePoint) Before(other TimePoint) bool        { return tp.Time.Before(other.Time) }
func (tp TimePoint) Equal(other TimePoint) bool         { return tp.Time.Equal(other.Time) }
func (tp TimePoint) After(other TimePoint) bool         { return tp.Time.After(other.Time) }
func (tp TimePoint) BeforeOrEqual(other TimePoint) bool { return !tp.After(other) }
func (tp TimePoint) AfterOrEqual(other TimePoint) bool  { return !tp.Before(other) }

// Arithmetic
func (tp TimePoint) AddDays(n int) TimePoint   { return FromTime(tp.Time.AddDate(0, 0, n)) }
func (tp TimePoint) AddMonths(n int) TimePoint { return FromTime(tp.Time.AddDate(0, n, 0)) }
func (tp TimePoint) AddYears(n int) TimePoint  { return FromTime(tp.Time.AddDate(n, 0, 0)) }

// Properties
func (tp TimePoint) Year() int         { return tp.Time.Year() }
func (tp TimePoint) Month() time.Month { return tp.Time.Month() }
func (tp TimePoint) Day() int          { return tp.Time.Day() }
func (tp TimePoint) IsZero() bool      { return tp.Time.IsZero() }

func (tp TimePoint) String() string {
	if tp.IsZero() {
		return ""
	}
	return tp.Time.Format(DateLayout)
}

func (tp TimePoint) MarshalJSON() ([]byte, error) {
	if tp.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(tp.String())
}

func (tp *TimePoint) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*tp = TimePoint{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*tp = parsed
	return nil
}

// =============================================================================
// TIME UTILITIES
// =============================================================================
// Period is defined in period.go

const secondsPerDay = 24 * 60 * 60

// DaysBetween returns the number of calendar days from -> to (to - from).
// It works on Unix seconds, so spans past time.Duration's ~292 years stay exact.
func DaysBetween(from, to TimePoint) int {
	return int((to.Time.Unix() - from.Time.Unix()) / secondsPerDay)
}

// RangesOverlap reports whether the inclusive ranges [aStart, aEnd] and
// [bStart, bEnd] share at least one day: max(starts) <= min(ends).
func RangesOverlap(aStart, aEnd, bStart, bEnd TimePoint) bool {
	return MaxTimePoint(aStart, bStart).BeforeOrEqual(MinTimePoint(aEnd, bEnd))
}

func MaxTimePoint(a, b TimePoint) TimePoint {
	if a.After(b) {
		return a
	}
	return b
}

func MinTimePoint(a, b TimePoint) TimePoint {
	if a.Before(b) {
		return a
	}
	return b
}

func StartOfYear(year int) TimePoint                     { return NewTimePoint(year, time.January, 1) }
func EndOfYear(year int) TimePoint                       { return NewTimePoint(year, time.December, 31) }
func StartOfMonth(year int, month time.Month) TimePoint { return NewTimePoint(year, month, 1) }
func EndOfMonth(year int, month time.Month) TimePoint {
	return StartOfMonth(year, month).AddMonths(1).AddDays(-1)
}
