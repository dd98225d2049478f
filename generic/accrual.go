package generic

import "github.com/shopspring/decimal"

// =============================================================================
// ACCRUAL SCHEDULE - Interface for how entitlement accumulates
// =============================================================================

// AccrualSchedule generates accrual events for a time range.
type AccrualSchedule interface {
	// GenerateAccruals returns accrual events in [from, to]. Callers pass
	// the period start as from; schedules measure their cadence from it.
	GenerateAccruals(from, to TimePoint) []AccrualEvent

	// IsDeterministic returns true if future accruals can be predicted.
	// Deterministic schedules count the whole period towards entitlement.
	IsDeterministic() bool
}

// AccrualEvent represents a single accrual occurrence.
type AccrualEvent struct {
	At     TimePoint
	Amount decimal.Decimal
	Reason string
}

// Cadence is how an annual entitlement is distributed over its period.
type Cadence string

const (
	CadenceUpfront Cadence = "upfront" // Everything on the first day of the period
	CadenceMonthly Cadence = "monthly" // One twelfth on each period month start
)

// ScheduleFor builds the schedule matching cadence. A zero annual
// amount yields nil so the balance is driven by grants alone.
func ScheduleFor(cadence Cadence, annual decimal.Decimal) AccrualSchedule {
	if annual.IsZero() {
		return nil
	}
	if cadence == CadenceMonthly {
		return MonthlyAccrual{Annual: annual}
	}
	return UpfrontAccrual{Annual: annual}
}

// =============================================================================
// UPFRONT ACCRUAL
// =============================================================================

// UpfrontAccrual grants the full annual amount at the start of the range.
type UpfrontAccrual struct {
	Annual decimal.Decimal
}

func (u UpfrontAccrual) GenerateAccruals(from, to TimePoint) []AccrualEvent {
	if to.Before(from) {
		return nil
	}
	return []AccrualEvent{{At: from, Amount: u.Annual, Reason: "annual entitlement"}}
}

func (u UpfrontAccrual) IsDeterministic() bool { return true }

// =============================================================================
// MONTHLY ACCRUAL
// =============================================================================

// MonthlyAccrual grants one twelfth of Annual on each month boundary
// counted from the range start. Amounts are rounded to two decimals
// cumulatively, so twelve events always sum to exactly Annual.
type MonthlyAccrual struct {
	Annual decimal.Decimal
}

func (m MonthlyAccrual) GenerateAccruals(from, to TimePoint) []AccrualEvent {
	var events []AccrualEvent
	twelve := decimal.NewFromInt(12)
	previous := decimal.Zero

	for k := 1; k <= 12; k++ {
		at := from.AddMonths(k - 1)
		if at.After(to) {
			break
		}
		cumulative := m.Annual.Mul(decimal.NewFromInt(int64(k))).Div(twelve).Round(2)
		events = append(events, AccrualEvent{
			At:     at,
			Amount: cumulative.Sub(previous),
			Reason: "monthly accrual",
		})
		previous = cumulative
	}
	return events
}

func (m MonthlyAccrual) IsDeterministic() bool { return true }
