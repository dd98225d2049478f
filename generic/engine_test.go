package generic_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/store/memory"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func newTestLedger() generic.Ledger {
	return generic.NewLedger(memory.New())
}

func year2025() generic.Period {
	return generic.Period{
		Start: generic.NewTimePoint(2025, time.January, 1),
		End:   generic.NewTimePoint(2025, time.December, 31),
	}
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func tx(key string, at generic.TimePoint, typ generic.TransactionType, delta string) generic.Transaction {
	return generic.Transaction{
		ID:             generic.TransactionID(key),
		EntityID:       "emp-1",
		PolicyID:       "annual",
		EffectiveAt:    at,
		Delta:          d(delta),
		Type:           typ,
		IdempotencyKey: key,
	}
}

// =============================================================================
// LEDGER
// =============================================================================

func TestLedger_IdempotencyKeyRejectsDuplicates(t *testing.T) {
	ledger := newTestLedger()
	ctx := context.Background()
	mar10 := generic.NewTimePoint(2025, time.March, 10)

	require.NoError(t, ledger.Append(ctx, tx("req-1:debit", mar10, generic.TxConsumption, "-2")))
	err := ledger.Append(ctx, tx("req-1:debit", mar10, generic.TxConsumption, "-2"))
	assert.ErrorIs(t, err, generic.ErrDuplicateIdempotencyKey)

	txs, err := ledger.Transactions(ctx, "emp-1", "annual")
	require.NoError(t, err)
	assert.Len(t, txs, 1)
}

func TestLedger_AppendBatchIsAllOrNothing(t *testing.T) {
	ledger := newTestLedger()
	ctx := context.Background()
	mar10 := generic.NewTimePoint(2025, time.March, 10)

	require.NoError(t, ledger.Append(ctx, tx("existing", mar10, generic.TxGrant, "1")))

	err := ledger.AppendBatch(ctx, []generic.Transaction{
		tx("fresh", mar10, generic.TxGrant, "1"),
		tx("existing", mar10, generic.TxGrant, "1"),
	})
	assert.ErrorIs(t, err, generic.ErrDuplicateIdempotencyKey)

	err = ledger.AppendBatch(ctx, []generic.Transaction{
		tx("twin", mar10, generic.TxGrant, "1"),
		tx("twin", mar10, generic.TxGrant, "1"),
	})
	assert.ErrorIs(t, err, generic.ErrDuplicateIdempotencyKey, "duplicates within one batch")

	txs, err := ledger.Transactions(ctx, "emp-1", "annual")
	require.NoError(t, err)
	assert.Len(t, txs, 1)
}

func TestLedger_TransactionsOrderedAndNetAt(t *testing.T) {
	ledger := newTestLedger()
	ctx := context.Background()

	require.NoError(t, ledger.Append(ctx, tx("c", generic.NewTimePoint(2025, time.May, 1), generic.TxConsumption, "-3")))
	require.NoError(t, ledger.Append(ctx, tx("a", generic.NewTimePoint(2025, time.January, 1), generic.TxGrant, "10")))
	require.NoError(t, ledger.Append(ctx, tx("b", generic.NewTimePoint(2025, time.March, 1), generic.TxAdjustment, "0.5")))

	txs, err := ledger.Transactions(ctx, "emp-1", "annual")
	require.NoError(t, err)
	require.Len(t, txs, 3)
	assert.Equal(t, generic.TransactionID("a"), txs[0].ID)
	assert.Equal(t, generic.TransactionID("c"), txs[2].ID)

	net, err := ledger.NetAt(ctx, "emp-1", "annual", generic.NewTimePoint(2025, time.April, 1))
	require.NoError(t, err)
	assert.True(t, net.Equal(d("10.5")))

	inRange, err := ledger.TransactionsInRange(ctx, "emp-1", "annual",
		generic.NewTimePoint(2025, time.February, 1), generic.NewTimePoint(2025, time.May, 1))
	require.NoError(t, err)
	assert.Len(t, inRange, 2, "range bounds are inclusive")
}

// =============================================================================
// BALANCE
// =============================================================================

func TestBalanceCalculator_ConsumptionAndReversal(t *testing.T) {
	// GIVEN: 12 days upfront, 5 consumed, 2 of them reversed, +1 adjustment
	// THEN: remaining = 12 - 3 + 1 = 10

	ledger := newTestLedger()
	ctx := context.Background()
	mar := generic.NewTimePoint(2025, time.March, 3)

	require.NoError(t, ledger.Append(ctx, tx("r1", mar, generic.TxConsumption, "-5")))
	require.NoError(t, ledger.Append(ctx, tx("r1-credit", mar, generic.TxReversal, "2")))
	require.NoError(t, ledger.Append(ctx, tx("fix", mar, generic.TxAdjustment, "1")))
	// Outside the period: ignored
	require.NoError(t, ledger.Append(ctx, tx("old", generic.NewTimePoint(2024, time.June, 1), generic.TxConsumption, "-4")))

	calc := generic.BalanceCalculator{Ledger: ledger}
	b, err := calc.CalculateBalance(ctx, "emp-1", "annual", year2025(),
		generic.UpfrontAccrual{Annual: d("12")}, generic.NewTimePoint(2025, time.June, 1))
	require.NoError(t, err)

	assert.True(t, b.Entitlement.Equal(d("12")))
	assert.True(t, b.Consumed.Equal(d("3")))
	assert.True(t, b.Adjustments.Equal(d("1")))
	assert.True(t, b.Remaining().Equal(d("10")))
}

func TestBalanceCalculator_GrantsAddToEntitlement(t *testing.T) {
	ledger := newTestLedger()
	ctx := context.Background()

	require.NoError(t, ledger.Append(ctx, tx("bonus", generic.NewTimePoint(2025, time.July, 1), generic.TxGrant, "2")))

	calc := generic.BalanceCalculator{Ledger: ledger}
	b, err := calc.CalculateBalance(ctx, "emp-1", "annual", year2025(), nil, generic.NewTimePoint(2025, time.March, 1))
	require.NoError(t, err)

	assert.True(t, b.Entitlement.Equal(d("2")))
	assert.True(t, b.AccruedToDate.IsZero(), "grant not effective yet")
	assert.True(t, b.AvailableWithMode(generic.ConsumeAhead).Equal(d("2")))
	assert.True(t, b.AvailableWithMode(generic.ConsumeUpToAccrued).IsZero())
}

func TestBalanceCalculator_InvalidPeriod(t *testing.T) {
	calc := generic.BalanceCalculator{Ledger: newTestLedger()}
	bad := generic.Period{Start: generic.NewTimePoint(2025, time.June, 1), End: generic.NewTimePoint(2025, time.January, 1)}

	_, err := calc.CalculateBalance(context.Background(), "emp-1", "annual", bad, nil, bad.Start)
	assert.ErrorIs(t, err, generic.ErrInvalidPeriod)
}

func TestBalance_CanConsume(t *testing.T) {
	b := generic.Balance{
		Entitlement:   d("12"),
		AccruedToDate: d("3"),
		Consumed:      d("2"),
		Adjustments:   decimal.Zero,
	}

	assert.True(t, b.CanConsume(d("10"), generic.ConsumeAhead, false))
	assert.False(t, b.CanConsume(d("10.5"), generic.ConsumeAhead, false))
	assert.True(t, b.CanConsume(d("1"), generic.ConsumeUpToAccrued, false))
	assert.False(t, b.CanConsume(d("1.5"), generic.ConsumeUpToAccrued, false))
	assert.True(t, b.CanConsume(d("100"), generic.ConsumeUpToAccrued, true))
}

// =============================================================================
// ACCRUAL
// =============================================================================

func TestMonthlyAccrual_SumsToAnnual(t *testing.T) {
	for _, annual := range []string{"12", "14", "20", "7.5"} {
		t.Run(annual, func(t *testing.T) {
			p := year2025()
			events := generic.MonthlyAccrual{Annual: d(annual)}.GenerateAccruals(p.Start, p.End)
			require.Len(t, events, 12)

			total := decimal.Zero
			for _, e := range events {
				total = total.Add(e.Amount)
			}
			assert.True(t, total.Equal(d(annual)), "got %s", total)
			assert.Equal(t, generic.NewTimePoint(2025, time.December, 1), events[11].At)
		})
	}
}

func TestMonthlyAccrual_PartialRange(t *testing.T) {
	p := year2025()
	events := generic.MonthlyAccrual{Annual: d("12")}.GenerateAccruals(p.Start, generic.NewTimePoint(2025, time.March, 31))
	assert.Len(t, events, 3)
}

func TestScheduleFor(t *testing.T) {
	assert.Nil(t, generic.ScheduleFor(generic.CadenceUpfront, decimal.Zero))
	assert.IsType(t, generic.UpfrontAccrual{}, generic.ScheduleFor(generic.CadenceUpfront, d("5")))
	assert.IsType(t, generic.MonthlyAccrual{}, generic.ScheduleFor(generic.CadenceMonthly, d("5")))
}

// =============================================================================
// TIME & PERIODS
// =============================================================================

func TestRangesOverlap(t *testing.T) {
	day := func(n int) generic.TimePoint { return generic.NewTimePoint(2025, time.March, n) }

	assert.True(t, generic.RangesOverlap(day(10), day(12), day(12), day(14)), "shared edge day")
	assert.True(t, generic.RangesOverlap(day(10), day(20), day(12), day(14)), "containment")
	assert.False(t, generic.RangesOverlap(day(10), day(12), day(13), day(14)), "adjacent")
	assert.False(t, generic.RangesOverlap(day(15), day(16), day(10), day(14)))
}

func TestPeriodConfig_PeriodFor(t *testing.T) {
	calendar := generic.PeriodConfig{Type: generic.PeriodCalendarYear}
	p := calendar.PeriodFor(generic.NewTimePoint(2025, time.July, 4))
	assert.Equal(t, generic.StartOfYear(2025), p.Start)
	assert.Equal(t, generic.EndOfYear(2025), p.End)

	fiscal := generic.PeriodConfig{Type: generic.PeriodFiscalYear, FiscalYearStartMonth: time.April}
	p = fiscal.PeriodFor(generic.NewTimePoint(2025, time.March, 31))
	assert.Equal(t, generic.NewTimePoint(2024, time.April, 1), p.Start)
	assert.Equal(t, generic.NewTimePoint(2025, time.March, 31), p.End)

	p = fiscal.PeriodFor(generic.NewTimePoint(2025, time.April, 1))
	assert.Equal(t, generic.NewTimePoint(2025, time.April, 1), p.Start)
	assert.True(t, p.Contains(generic.NewTimePoint(2026, time.February, 28)))
}

func TestPeriod_NextAndPrevious(t *testing.T) {
	p := year2025()
	assert.Equal(t, generic.StartOfYear(2026), p.NextPeriod().Start)
	assert.Equal(t, generic.EndOfYear(2024), p.PreviousPeriod().End)
}

func TestTimePoint_JSONRoundTrip(t *testing.T) {
	tp, err := generic.ParseDate("2025-03-10")
	require.NoError(t, err)

	raw, err := tp.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"2025-03-10"`, string(raw))

	var back generic.TimePoint
	require.NoError(t, back.UnmarshalJSON(raw))
	assert.True(t, back.Equal(tp))

	_, err = generic.ParseDate("10/03/2025")
	assert.Error(t, err)
}

func TestDaysBetween(t *testing.T) {
	tests := []struct {
		name     string
		from, to generic.TimePoint
		want     int
	}{
		{"same day", generic.NewTimePoint(2025, time.March, 10), generic.NewTimePoint(2025, time.March, 10), 0},
		{"leap february", generic.NewTimePoint(2024, time.February, 28), generic.NewTimePoint(2024, time.March, 1), 2},
		{"backwards", generic.NewTimePoint(2025, time.March, 10), generic.NewTimePoint(2025, time.March, 3), -7},
		{"one gregorian cycle", generic.NewTimePoint(1700, time.January, 1), generic.NewTimePoint(2100, time.January, 1), 146097},
		{"past the duration range", generic.NewTimePoint(1, time.January, 1), generic.NewTimePoint(2001, time.January, 1), 730485},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, generic.DaysBetween(tt.from, tt.to))
		})
	}
}
