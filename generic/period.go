package generic

import "time"

// =============================================================================
// PERIOD - The boundary a balance is computed within
// =============================================================================

// Period defines the time boundary for balance calculation.
// Balance is ALWAYS computed for a period, not at a point in time.
//
// Examples:
//   - Calendar year 2025: Jan 1 - Dec 31
//   - Fiscal year 2025: Apr 1 2025 - Mar 31 2026
type Period struct {
	Start TimePoint
	End   TimePoint
}

// Contains returns true if the time point is within the period [Start, End]
func (p Period) Contains(t TimePoint) bool {
	return t.AfterOrEqual(p.Start) && t.BeforeOrEqual(p.End)
}

// Validate fails with ErrInvalidPeriod when End precedes Start.
func (p Period) Validate() error {
	if p.End.Before(p.Start) {
		return ErrInvalidPeriod
	}
	return nil
}

func (p Period) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + "]"
}

// NextPeriod returns the period of equal length following this one.
func (p Period) NextPeriod() Period {
	start := p.End.AddDays(1)
	return Period{Start: start, End: start.AddDays(DaysBetween(p.Start, p.End))}
}

// PreviousPeriod returns the period of equal length before this one.
func (p Period) PreviousPeriod() Period {
	end := p.Start.AddDays(-1)
	return Period{Start: end.AddDays(-DaysBetween(p.Start, p.End)), End: end}
}

// PeriodType defines how periods are calculated
type PeriodType string

const (
	PeriodCalendarYear PeriodType = "calendar_year" // Jan 1 - Dec 31
	PeriodFiscalYear   PeriodType = "fiscal_year"   // Custom start month (e.g., Apr 1)
)

// PeriodConfig defines how to calculate periods for a leave type.
type PeriodConfig struct {
	Type PeriodType

	// For fiscal year: which month starts the fiscal year (1-12)
	FiscalYearStartMonth time.Month
}

// =============================================================================
// PERIOD CALCULATOR - Determines which period a date falls into
// =============================================================================

// PeriodFor returns the period that contains the given date.
// Unknown or incomplete configurations fall back to the calendar year.
func (pc PeriodConfig) PeriodFor(date TimePoint) Period {
	switch pc.Type {
	case PeriodFiscalYear:
		if pc.FiscalYearStartMonth < time.January || pc.FiscalYearStartMonth > time.December {
			break
		}
		return pc.fiscalYearPeriod(date)
	}
	return Period{Start: StartOfYear(date.Year()), End: EndOfYear(date.Year())}
}

func (pc PeriodConfig) fiscalYearPeriod(date TimePoint) Period {
	fiscalStart := NewTimePoint(date.Year(), pc.FiscalYearStartMonth, 1)

	// Before this year's fiscal start means we're still in the previous fiscal year
	if date.Before(fiscalStart) {
		fiscalStart = NewTimePoint(date.Year()-1, pc.FiscalYearStartMonth, 1)
	}

	return Period{Start: fiscalStart, End: fiscalStart.AddYears(1).AddDays(-1)}
}
