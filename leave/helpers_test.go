package leave_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/store/memory"
)

// =============================================================================
// TEST SETUP
// =============================================================================

// roleOverrides grants the override to anyone holding hr_admin.
type roleOverrides struct{}

func (roleOverrides) CanOverride(a leave.Actor) (bool, error)    { return a.HasRole("hr_admin"), nil }
func (roleOverrides) CanManageTypes(a leave.Actor) (bool, error) { return a.HasRole("hr_admin"), nil }

type fixture struct {
	store *memory.Store
	svc   *leave.RequestService
	now   time.Time
}

var (
	employee      = leave.Actor{EmployeeID: "emp-1", CompanyID: "acme"}
	peer          = leave.Actor{EmployeeID: "emp-2", CompanyID: "acme"}
	manager       = leave.Actor{EmployeeID: "mgr-1", CompanyID: "acme"}
	otherManager  = leave.Actor{EmployeeID: "mgr-2", CompanyID: "acme"}
	hrAdmin       = leave.Actor{EmployeeID: "hr-1", CompanyID: "acme", Roles: []string{"hr_admin"}}
	foreignHR     = leave.Actor{EmployeeID: "hr-9", CompanyID: "globex", Roles: []string{"hr_admin"}}
	globexStaffer = leave.Actor{EmployeeID: "gx-1", CompanyID: "globex"}
)

func ptr[T any](v T) *T { return &v }

func newFixture(t *testing.T, types ...leave.LeaveType) *fixture {
	t.Helper()
	ctx := context.Background()
	st := memory.New()

	for _, e := range []leave.Employee{
		{ID: "mgr-1", CompanyID: "acme", Name: "Maya Manager", Active: true},
		{ID: "mgr-2", CompanyID: "acme", Name: "Omar Other", Active: true},
		{ID: "emp-1", CompanyID: "acme", ManagerID: ptr(leave.EmployeeID("mgr-1")), Name: "Eve Employee", Active: true},
		{ID: "emp-2", CompanyID: "acme", ManagerID: ptr(leave.EmployeeID("mgr-1")), Name: "Pat Peer", Active: true},
		{ID: "emp-3", CompanyID: "acme", ManagerID: ptr(leave.EmployeeID("mgr-2")), Name: "Sam Sideways", Active: true},
		{ID: "hr-1", CompanyID: "acme", Name: "Harriet HR", Active: true},
		{ID: "gone-1", CompanyID: "acme", ManagerID: ptr(leave.EmployeeID("mgr-1")), Name: "Lee Left", Active: false},
		{ID: "gx-1", CompanyID: "globex", Name: "Gus Globex", Active: true},
		{ID: "hr-9", CompanyID: "globex", Name: "Hana Globex HR", Active: true},
	} {
		require.NoError(t, st.PutEmployee(ctx, e))
	}

	catalog := leave.NewDefaultCatalog()
	if len(types) > 0 {
		var err error
		catalog, err = leave.NewCatalog(append(leave.DefaultLeaveTypes(), types...)...)
		require.NoError(t, err)
	}

	f := &fixture{store: st, now: time.Date(2025, time.January, 15, 9, 0, 0, 0, time.UTC)}
	gate := leave.NewGate(st, roleOverrides{})
	f.svc = leave.NewRequestService(st, catalog, st, gate, leave.WithClock(func() time.Time { return f.now }))
	return f
}

func date(month time.Month, day int) generic.TimePoint {
	return generic.NewTimePoint(2025, month, day)
}

func days(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func year2025() generic.Period {
	return generic.Period{Start: generic.StartOfYear(2025), End: generic.EndOfYear(2025)}
}

// create files a full-day request for emp-1 of the given type.
func (f *fixture) create(t *testing.T, code leave.TypeCode, start, end generic.TimePoint) *leave.Request {
	t.Helper()
	r, err := f.svc.Create(context.Background(), employee, leave.CreateInput{
		EmployeeID: employee.EmployeeID,
		LeaveType:  code,
		StartDate:  start,
		EndDate:    end,
	})
	require.NoError(t, err)
	return r
}

func (f *fixture) approve(t *testing.T, id leave.RequestID) *leave.Request {
	t.Helper()
	r, err := f.svc.Approve(context.Background(), id, manager)
	require.NoError(t, err)
	return r
}

func (f *fixture) remaining(t *testing.T, emp leave.EmployeeID, code leave.TypeCode) decimal.Decimal {
	t.Helper()
	rem, err := f.svc.Ledger().Remaining(context.Background(), emp, code, year2025())
	require.NoError(t, err)
	return rem
}

func (f *fixture) ledgerEntries(t *testing.T, emp leave.EmployeeID, code leave.TypeCode) []generic.Transaction {
	t.Helper()
	txs, err := f.store.Load(context.Background(), generic.EntityID(emp), generic.PolicyID(code))
	require.NoError(t, err)
	return txs
}
