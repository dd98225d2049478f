package leave_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/store/memory"
)

func TestDefaultCatalog(t *testing.T) {
	catalog := leave.NewDefaultCatalog()

	codes := make([]leave.TypeCode, 0)
	for _, lt := range catalog.List() {
		codes = append(codes, lt.Code)
	}
	assert.ElementsMatch(t, []leave.TypeCode{
		"annual", "sick", "maternity", "paternity", "marriage",
		"bereavement", "unpaid", "study", "other",
	}, codes)

	annual, err := catalog.Get(leave.TypeAnnual)
	require.NoError(t, err)
	assert.True(t, annual.AnnualEntitlement.Equal(days("12")))
	assert.False(t, annual.AllowNegative)

	unpaid, err := catalog.Get(leave.TypeUnpaid)
	require.NoError(t, err)
	assert.True(t, unpaid.AllowNegative)
	assert.False(t, unpaid.Paid)

	_, err = catalog.Get("sabbatical")
	assert.ErrorIs(t, err, leave.ErrNotFound)
}

func TestCategory_BucketsUnknownCodesAsOther(t *testing.T) {
	assert.Equal(t, leave.TypeSick, leave.Category(leave.TypeSick))
	assert.Equal(t, leave.TypeOther, leave.Category("compassionate"))
	assert.Equal(t, leave.TypeOther, leave.Category(""))
}

func TestNewCatalog_RejectsInvalidTypes(t *testing.T) {
	bad := leave.DefaultLeaveTypes()[0]
	bad.Cadence = "weekly"

	_, err := leave.NewCatalog(bad)
	assert.ErrorIs(t, err, leave.ErrValidation)

	fiscal := leave.DefaultLeaveTypes()[0]
	fiscal.Period = generic.PeriodConfig{Type: generic.PeriodFiscalYear}
	_, err = leave.NewCatalog(fiscal)
	assert.ErrorIs(t, err, leave.ErrValidation, "fiscal year needs a start month")
}

func TestPutLeaveType_ImmutableOnceReferenced(t *testing.T) {
	// GIVEN: A request exists for "annual"
	// WHEN: HR tries to change the entitlement, then only the name
	// THEN: The entitlement change fails; the rename succeeds

	f := newFixture(t)
	ctx := context.Background()
	f.create(t, leave.TypeAnnual, date(3, 10), date(3, 10))

	annual, err := f.svc.Catalog().Get(leave.TypeAnnual)
	require.NoError(t, err)

	changed := annual
	changed.AnnualEntitlement = days("20")
	err = f.svc.PutLeaveType(ctx, hrAdmin, changed)
	assert.ErrorIs(t, err, leave.ErrValidation)

	renamed := annual
	renamed.Name = "Vacation"
	require.NoError(t, f.svc.PutLeaveType(ctx, hrAdmin, renamed))

	got, err := f.svc.Catalog().Get(leave.TypeAnnual)
	require.NoError(t, err)
	assert.Equal(t, "Vacation", got.Name)
	assert.True(t, got.AnnualEntitlement.Equal(days("12")))
}

func TestPutLeaveType_UnreferencedMayChange(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	study, err := f.svc.Catalog().Get(leave.TypeStudy)
	require.NoError(t, err)
	study.AnnualEntitlement = days("10")
	study.Period = generic.PeriodConfig{Type: generic.PeriodFiscalYear, FiscalYearStartMonth: time.April}
	require.NoError(t, f.svc.PutLeaveType(ctx, hrAdmin, study))

	got, err := f.svc.Catalog().Get(leave.TypeStudy)
	require.NoError(t, err)
	assert.True(t, got.AnnualEntitlement.Equal(days("10")))
	assert.Equal(t, generic.PeriodFiscalYear, got.Period.Type)
}

func TestPutLeaveType_RequiresManageCapability(t *testing.T) {
	f := newFixture(t)

	lt := leave.DefaultLeaveTypes()[0]
	lt.Code = "wellness"
	lt.Name = "Wellness Day"

	err := f.svc.PutLeaveType(context.Background(), manager, lt)
	assert.ErrorIs(t, err, leave.ErrNotAuthorized)

	_, err = f.svc.Catalog().Get("wellness")
	assert.ErrorIs(t, err, leave.ErrNotFound)
}

func TestLeaveType_EnabledFor(t *testing.T) {
	lt := leave.DefaultLeaveTypes()[0]
	assert.True(t, lt.EnabledFor("anyone"))

	lt.Companies = []leave.CompanyID{"acme"}
	assert.True(t, lt.EnabledFor("acme"))
	assert.False(t, lt.EnabledFor("globex"))

	lt.Enabled = false
	assert.False(t, lt.EnabledFor("acme"))
}

func TestCatalogHold_BlocksPutUntilDone(t *testing.T) {
	catalog := leave.NewDefaultCatalog()
	entered := make(chan struct{})
	release := make(chan struct{})
	held := make(chan leave.LeaveType, 1)

	go func() {
		_ = catalog.Hold(leave.TypeStudy, func(lt leave.LeaveType) error {
			close(entered)
			<-release
			held <- lt
			return nil
		})
	}()
	<-entered

	study, err := catalog.Get(leave.TypeStudy)
	require.NoError(t, err)
	study.AnnualEntitlement = days("99")

	putDone := make(chan error, 1)
	go func() { putDone <- catalog.Put(context.Background(), study, noRequests{}) }()

	select {
	case <-putDone:
		t.Fatal("Put returned while the type was held")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	assert.False(t, (<-held).AnnualEntitlement.Equal(days("99")))
	require.NoError(t, <-putDone)

	got, err := catalog.Get(leave.TypeStudy)
	require.NoError(t, err)
	assert.True(t, got.AnnualEntitlement.Equal(days("99")))
}

func TestCatalogHold_UnknownType(t *testing.T) {
	called := false
	err := leave.NewDefaultCatalog().Hold("sabbatical", func(leave.LeaveType) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, leave.ErrNotFound)
	assert.False(t, called)
}

type noRequests struct{}

func (noRequests) HasRequestsForType(context.Context, leave.TypeCode) (bool, error) { return false, nil }

// pausedStore stops each transaction at the door until release is closed.
type pausedStore struct {
	*memory.Store
	entered chan struct{}
	release chan struct{}
}

func (p *pausedStore) WithTx(ctx context.Context, fn func(leave.Store) error) error {
	close(p.entered)
	<-p.release
	return p.Store.WithTx(ctx, fn)
}

func TestPutLeaveType_WaitsForInFlightCreate(t *testing.T) {
	// GIVEN: A create for "unpaid" has passed its checks and not yet inserted
	// WHEN: HR tightens the unpaid rules at that moment
	// THEN: The edit waits for the insert and is then refused as referenced

	f := newFixture(t)
	ctx := context.Background()
	paused := &pausedStore{Store: f.store, entered: make(chan struct{}), release: make(chan struct{})}
	svc := leave.NewRequestService(paused, leave.NewDefaultCatalog(), f.store, leave.NewGate(f.store, roleOverrides{}),
		leave.WithClock(func() time.Time { return f.now }))

	created := make(chan error, 1)
	go func() {
		_, err := svc.Create(ctx, employee, leave.CreateInput{
			EmployeeID: "emp-1", LeaveType: leave.TypeUnpaid, StartDate: date(3, 10), EndDate: date(3, 12),
		})
		created <- err
	}()
	<-paused.entered

	unpaid, err := svc.Catalog().Get(leave.TypeUnpaid)
	require.NoError(t, err)
	unpaid.AllowNegative = false

	edited := make(chan error, 1)
	go func() { edited <- svc.PutLeaveType(ctx, hrAdmin, unpaid) }()

	select {
	case err := <-edited:
		t.Fatalf("rule change applied during a create: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	close(paused.release)
	require.NoError(t, <-created)
	assert.ErrorIs(t, <-edited, leave.ErrValidation)

	got, err := svc.Catalog().Get(leave.TypeUnpaid)
	require.NoError(t, err)
	assert.True(t, got.AllowNegative)
}
