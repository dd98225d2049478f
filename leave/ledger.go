package leave

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/leave-engine/generic"
)

// =============================================================================
// BALANCE VIEW
// =============================================================================

// Balance is the leave view of a generic balance.
type Balance struct {
	EmployeeID      EmployeeID
	LeaveType       TypeCode
	Period          generic.Period
	Entitlement     decimal.Decimal
	AccruedToDate   decimal.Decimal
	Consumed        decimal.Decimal
	Adjustments     decimal.Decimal
	Remaining       decimal.Decimal
	Available       decimal.Decimal
	ConsumptionMode generic.ConsumptionMode
	AllowNegative   bool
}

// DebitKey and CreditKey are the idempotency keys of a request's ledger
// entries; each request can be debited once and credited once.
func DebitKey(id RequestID) string  { return fmt.Sprintf("leave-request:%d:debit", id) }
func CreditKey(id RequestID) string { return fmt.Sprintf("leave-request:%d:credit", id) }

// =============================================================================
// BALANCE LEDGER
// =============================================================================

// BalanceLedger answers balance questions and writes debits and credits
// for leave requests. Writes for one (employee, leave type) are serialized.
type BalanceLedger struct {
	store   TxStore
	catalog *Catalog
	locks   *keyedMutex
	clock   func() time.Time
	logger  *zap.Logger
}

func NewBalanceLedger(store TxStore, catalog *Catalog, clock func() time.Time, logger ...*zap.Logger) *BalanceLedger {
	l := zap.NewNop()
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0]
	}
	if clock == nil {
		clock = time.Now
	}
	return &BalanceLedger{
		store:   store,
		catalog: catalog,
		locks:   newKeyedMutex(),
		clock:   clock,
		logger:  l.Named("leave.ledger"),
	}
}

// Balance computes the balance of employee for leave type code in period.
func (l *BalanceLedger) Balance(ctx context.Context, employee EmployeeID, code TypeCode, period generic.Period) (Balance, error) {
	lt, err := l.catalog.Get(code)
	if err != nil {
		return Balance{}, err
	}
	return l.balanceIn(ctx, l.store, lt, employee, period)
}

// BalanceOn computes the balance for the period containing date.
func (l *BalanceLedger) BalanceOn(ctx context.Context, employee EmployeeID, code TypeCode, date generic.TimePoint) (Balance, error) {
	lt, err := l.catalog.Get(code)
	if err != nil {
		return Balance{}, err
	}
	return l.balanceIn(ctx, l.store, lt, employee, lt.PeriodFor(date))
}

// Remaining is entitlement - consumed + adjustments. Pending requests
// are not subtracted.
func (l *BalanceLedger) Remaining(ctx context.Context, employee EmployeeID, code TypeCode, period generic.Period) (decimal.Decimal, error) {
	b, err := l.Balance(ctx, employee, code, period)
	if err != nil {
		return decimal.Zero, err
	}
	return b.Remaining, nil
}

// Debit appends the consumption entry for an approved request in its own
// store transaction.
func (l *BalanceLedger) Debit(ctx context.Context, r *Request, actor EmployeeID) error {
	unlock := l.Lock(r.BalanceKey())
	defer unlock()
	return l.store.WithTx(ctx, func(s Store) error {
		return l.debitIn(ctx, s, r, actor)
	})
}

// Credit appends the reversal entry for a cancelled approved request in
// its own store transaction.
func (l *BalanceLedger) Credit(ctx context.Context, r *Request, actor EmployeeID) error {
	unlock := l.Lock(r.BalanceKey())
	defer unlock()
	return l.store.WithTx(ctx, func(s Store) error {
		return l.creditIn(ctx, s, r, actor)
	})
}

// Lock serializes ledger writes for key until the returned func is called.
func (l *BalanceLedger) Lock(key generic.BalanceKey) func() {
	return l.locks.Lock(key)
}

// =============================================================================
// IN-TRANSACTION OPERATIONS
// =============================================================================

func (l *BalanceLedger) balanceIn(ctx context.Context, s generic.Store, lt LeaveType, employee EmployeeID, period generic.Period) (Balance, error) {
	calc := generic.BalanceCalculator{Ledger: generic.NewLedger(s)}
	b, err := calc.CalculateBalance(ctx,
		generic.EntityID(employee), generic.PolicyID(lt.Code),
		period, lt.Schedule(), generic.FromTime(l.clock().UTC()))
	if err != nil {
		return Balance{}, err
	}
	return Balance{
		EmployeeID:      employee,
		LeaveType:       lt.Code,
		Period:          period,
		Entitlement:     b.Entitlement,
		AccruedToDate:   b.AccruedToDate,
		Consumed:        b.Consumed,
		Adjustments:     b.Adjustments,
		Remaining:       b.Remaining(),
		Available:       b.AvailableWithMode(lt.ConsumptionMode),
		ConsumptionMode: lt.ConsumptionMode,
		AllowNegative:   lt.AllowNegative,
	}, nil
}

// ensureAvailable fails with an InsufficientBalanceError when the period
// holding r's start can't cover r.TotalDays.
func (l *BalanceLedger) ensureAvailable(ctx context.Context, s generic.Store, lt LeaveType, r *Request) error {
	if lt.AllowNegative {
		return nil
	}
	period := lt.PeriodFor(r.StartDate)
	b, err := l.balanceIn(ctx, s, lt, r.EmployeeID, period)
	if err != nil {
		return err
	}
	if b.Available.LessThan(r.TotalDays) {
		return &generic.InsufficientBalanceError{
			EntityID:  generic.EntityID(r.EmployeeID),
			PolicyID:  generic.PolicyID(r.LeaveType),
			Period:    period,
			Available: b.Available,
			Requested: r.TotalDays,
		}
	}
	return nil
}

func (l *BalanceLedger) debitIn(ctx context.Context, s generic.Store, r *Request, actor EmployeeID) error {
	tx := l.entry(r, actor, generic.TxConsumption, r.TotalDays.Neg(), DebitKey(r.ID), "leave approved")
	if err := generic.NewLedger(s).Append(ctx, tx); err != nil {
		return fmt.Errorf("debit request %d: %w", r.ID, err)
	}
	l.logger.Debug("debited",
		zap.Int64("request_id", int64(r.ID)),
		zap.String("key", r.BalanceKey().String()),
		zap.String("days", r.TotalDays.String()))
	return nil
}

func (l *BalanceLedger) creditIn(ctx context.Context, s generic.Store, r *Request, actor EmployeeID) error {
	debited, err := s.Exists(ctx, DebitKey(r.ID))
	if err != nil {
		return err
	}
	if !debited {
		return fmt.Errorf("credit request %d: %w", r.ID, errNoDebit)
	}

	tx := l.entry(r, actor, generic.TxReversal, r.TotalDays, CreditKey(r.ID), "approved leave cancelled")
	if err := generic.NewLedger(s).Append(ctx, tx); err != nil {
		return fmt.Errorf("credit request %d: %w", r.ID, err)
	}
	l.logger.Debug("credited",
		zap.Int64("request_id", int64(r.ID)),
		zap.String("key", r.BalanceKey().String()),
		zap.String("days", r.TotalDays.String()))
	return nil
}

var errNoDebit = errors.New("no debit recorded for request")

func (l *BalanceLedger) entry(r *Request, actor EmployeeID, typ generic.TransactionType, delta decimal.Decimal, key, reason string) generic.Transaction {
	return generic.Transaction{
		ID:             generic.TransactionID(uuid.NewString()),
		EntityID:       generic.EntityID(r.EmployeeID),
		PolicyID:       generic.PolicyID(r.LeaveType),
		EffectiveAt:    r.StartDate,
		Delta:          delta,
		Type:           typ,
		ReferenceID:    fmt.Sprint(r.ID),
		Reason:         reason,
		IdempotencyKey: key,
		CreatedBy:      string(actor),
		CreatedAt:      l.clock().UTC(),
	}
}

// =============================================================================
// KEYED MUTEX
// =============================================================================

type keyedMutex struct {
	mu    sync.Mutex
	locks map[generic.BalanceKey]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[generic.BalanceKey]*refMutex)}
}

func (k *keyedMutex) Lock(key generic.BalanceKey) func() {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
