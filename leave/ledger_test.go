package leave_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/leave"
)

func TestBalanceLedger_DebitAndCreditAreIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ledger := f.svc.Ledger()

	r := f.create(t, leave.TypeAnnual, date(3, 10), date(3, 11))

	require.NoError(t, ledger.Debit(ctx, r, "mgr-1"))
	err := ledger.Debit(ctx, r, "mgr-1")
	assert.ErrorIs(t, err, generic.ErrDuplicateIdempotencyKey)

	require.NoError(t, ledger.Credit(ctx, r, "emp-1"))
	err = ledger.Credit(ctx, r, "emp-1")
	assert.ErrorIs(t, err, generic.ErrDuplicateIdempotencyKey)

	assert.Len(t, f.ledgerEntries(t, "emp-1", leave.TypeAnnual), 2)
	assert.True(t, f.remaining(t, "emp-1", leave.TypeAnnual).Equal(days("12")))
}

func TestBalanceLedger_CreditWithoutDebitFails(t *testing.T) {
	f := newFixture(t)
	r := f.create(t, leave.TypeAnnual, date(3, 10), date(3, 11))

	err := f.svc.Ledger().Credit(context.Background(), r, "emp-1")
	assert.Error(t, err)
	assert.Empty(t, f.ledgerEntries(t, "emp-1", leave.TypeAnnual))
}

func TestBalanceLedger_RequestAttributedToStartPeriod(t *testing.T) {
	// GIVEN: A request from Dec 30 2025 to Jan 2 2026
	// WHEN: It is approved
	// THEN: All 4 days come out of the 2025 balance

	f := newFixture(t)
	ctx := context.Background()

	r := f.create(t, leave.TypeAnnual, generic.NewTimePoint(2025, time.December, 30), generic.NewTimePoint(2026, time.January, 2))
	f.approve(t, r.ID)

	assert.True(t, f.remaining(t, "emp-1", leave.TypeAnnual).Equal(days("8")))

	next, err := f.svc.Ledger().BalanceOn(ctx, "emp-1", leave.TypeAnnual, generic.NewTimePoint(2026, time.March, 1))
	require.NoError(t, err)
	assert.True(t, next.Remaining.Equal(days("12")))
	assert.Equal(t, generic.StartOfYear(2026), next.Period.Start)
}

func TestBalanceLedger_MonthlyUpToAccrued(t *testing.T) {
	// GIVEN: 12 days/year accrued monthly, spendable only once accrued
	// WHEN: It is Mar 15
	// THEN: 3 days are available although the year's entitlement is 12

	monthly := leave.DefaultLeaveTypes()[0]
	monthly.Code = "flex"
	monthly.Name = "Flex Days"
	monthly.Cadence = generic.CadenceMonthly
	monthly.ConsumptionMode = generic.ConsumeUpToAccrued

	f := newFixture(t, monthly)
	f.now = time.Date(2025, time.March, 15, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()

	b, err := f.svc.Ledger().Balance(ctx, "emp-1", "flex", year2025())
	require.NoError(t, err)
	assert.True(t, b.Entitlement.Equal(days("12")))
	assert.True(t, b.AccruedToDate.Equal(days("3")))
	assert.True(t, b.Remaining.Equal(days("12")))
	assert.True(t, b.Available.Equal(days("3")))

	_, err = f.svc.Create(ctx, employee, leave.CreateInput{
		EmployeeID: "emp-1", LeaveType: "flex", StartDate: date(4, 1), EndDate: date(4, 4),
	})
	assert.ErrorIs(t, err, leave.ErrInsufficientBalance)

	_, err = f.svc.Create(ctx, employee, leave.CreateInput{
		EmployeeID: "emp-1", LeaveType: "flex", StartDate: date(4, 1), EndDate: date(4, 3),
	})
	assert.NoError(t, err)
}

func TestBalanceLedger_FiscalYearPeriod(t *testing.T) {
	fiscal := leave.DefaultLeaveTypes()[0]
	fiscal.Code = "fy_annual"
	fiscal.Name = "Annual (fiscal)"
	fiscal.Period = generic.PeriodConfig{Type: generic.PeriodFiscalYear, FiscalYearStartMonth: time.April}

	f := newFixture(t, fiscal)
	ctx := context.Background()

	march := f.create(t, "fy_annual", date(3, 24), date(3, 28))
	f.approve(t, march.ID)
	april := f.create(t, "fy_annual", date(4, 7), date(4, 8))
	f.approve(t, april.ID)

	fy24, err := f.svc.Ledger().BalanceOn(ctx, "emp-1", "fy_annual", date(3, 1))
	require.NoError(t, err)
	assert.Equal(t, generic.NewTimePoint(2024, time.April, 1), fy24.Period.Start)
	assert.True(t, fy24.Remaining.Equal(days("7")))

	fy25, err := f.svc.Ledger().BalanceOn(ctx, "emp-1", "fy_annual", date(12, 1))
	require.NoError(t, err)
	assert.Equal(t, generic.NewTimePoint(2026, time.March, 31), fy25.Period.End)
	assert.True(t, fy25.Remaining.Equal(days("10")))
}

func TestBalanceLedger_UnknownType(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Ledger().Balance(context.Background(), "emp-1", "sabbatical", year2025())
	assert.ErrorIs(t, err, leave.ErrNotFound)
}
