package leave

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/warp/leave-engine/generic"
)

// Named categories. Summaries bucket any other code under TypeOther.
const (
	TypeAnnual      TypeCode = "annual"
	TypeSick        TypeCode = "sick"
	TypeMaternity   TypeCode = "maternity"
	TypePaternity   TypeCode = "paternity"
	TypeMarriage    TypeCode = "marriage"
	TypeBereavement TypeCode = "bereavement"
	TypeUnpaid      TypeCode = "unpaid"
	TypeStudy       TypeCode = "study"
	TypeOther       TypeCode = "other"
)

var namedCategories = map[TypeCode]bool{
	TypeAnnual: true, TypeSick: true, TypeMaternity: true, TypePaternity: true,
	TypeMarriage: true, TypeBereavement: true, TypeUnpaid: true, TypeStudy: true,
	TypeOther: true,
}

// Category maps a leave type code onto the fixed reporting categories.
func Category(code TypeCode) TypeCode {
	if namedCategories[code] {
		return code
	}
	return TypeOther
}

// =============================================================================
// LEAVE TYPE
// =============================================================================

type LeaveType struct {
	Code              TypeCode
	Name              string
	AnnualEntitlement decimal.Decimal
	Cadence           generic.Cadence
	ConsumptionMode   generic.ConsumptionMode
	Period            generic.PeriodConfig
	Paid              bool
	AllowNegative     bool
	Enabled           bool

	// Companies restricts the type to these companies. Empty means all.
	Companies []CompanyID
}

// EnabledFor reports whether employees of company may request this type.
func (lt LeaveType) EnabledFor(company CompanyID) bool {
	if !lt.Enabled {
		return false
	}
	if len(lt.Companies) == 0 {
		return true
	}
	for _, c := range lt.Companies {
		if c == company {
			return true
		}
	}
	return false
}

// PeriodFor returns the balance period containing date.
func (lt LeaveType) PeriodFor(date generic.TimePoint) generic.Period {
	return lt.Period.PeriodFor(date)
}

// Schedule returns the accrual schedule backing the entitlement.
func (lt LeaveType) Schedule() generic.AccrualSchedule {
	return generic.ScheduleFor(lt.Cadence, lt.AnnualEntitlement)
}

func (lt LeaveType) Validate() error {
	if strings.TrimSpace(string(lt.Code)) == "" {
		return &ValidationError{Field: "code", Message: "is required"}
	}
	if strings.TrimSpace(lt.Name) == "" {
		return &ValidationError{Field: "name", Message: "is required"}
	}
	if lt.AnnualEntitlement.IsNegative() {
		return &ValidationError{Field: "annual_entitlement", Message: "must not be negative"}
	}
	switch lt.Cadence {
	case generic.CadenceUpfront, generic.CadenceMonthly:
	default:
		return &ValidationError{Field: "cadence", Message: fmt.Sprintf("unknown cadence %q", lt.Cadence)}
	}
	switch lt.ConsumptionMode {
	case generic.ConsumeAhead, generic.ConsumeUpToAccrued:
	default:
		return &ValidationError{Field: "consumption_mode", Message: fmt.Sprintf("unknown consumption mode %q", lt.ConsumptionMode)}
	}
	switch lt.Period.Type {
	case generic.PeriodCalendarYear:
	case generic.PeriodFiscalYear:
		if lt.Period.FiscalYearStartMonth < 1 || lt.Period.FiscalYearStartMonth > 12 {
			return &ValidationError{Field: "fiscal_year_start_month", Message: "must be between 1 and 12"}
		}
	default:
		return &ValidationError{Field: "period", Message: fmt.Sprintf("unknown period type %q", lt.Period.Type)}
	}
	return nil
}

// sameRules reports whether only display metadata differs between a and b.
func (lt LeaveType) sameRules(other LeaveType) bool {
	if len(lt.Companies) != len(other.Companies) {
		return false
	}
	for i := range lt.Companies {
		if lt.Companies[i] != other.Companies[i] {
			return false
		}
	}
	return lt.Code == other.Code &&
		lt.AnnualEntitlement.Equal(other.AnnualEntitlement) &&
		lt.Cadence == other.Cadence &&
		lt.ConsumptionMode == other.ConsumptionMode &&
		lt.Period == other.Period &&
		lt.Paid == other.Paid &&
		lt.AllowNegative == other.AllowNegative &&
		lt.Enabled == other.Enabled
}

func calendarType(code TypeCode, name string, days int64) LeaveType {
	return LeaveType{
		Code:              code,
		Name:              name,
		AnnualEntitlement: decimal.NewFromInt(days),
		Cadence:           generic.CadenceUpfront,
		ConsumptionMode:   generic.ConsumeAhead,
		Period:            generic.PeriodConfig{Type: generic.PeriodCalendarYear},
		Paid:              true,
		Enabled:           true,
	}
}

// DefaultLeaveTypes is the catalog an installation starts with.
func DefaultLeaveTypes() []LeaveType {
	unpaid := calendarType(TypeUnpaid, "Unpaid Leave", 0)
	unpaid.Paid = false
	unpaid.AllowNegative = true

	other := calendarType(TypeOther, "Other", 0)
	other.Paid = false
	other.AllowNegative = true

	return []LeaveType{
		calendarType(TypeAnnual, "Annual Leave", 12),
		calendarType(TypeSick, "Sick Leave", 12),
		calendarType(TypeMaternity, "Maternity Leave", 90),
		calendarType(TypePaternity, "Paternity Leave", 3),
		calendarType(TypeMarriage, "Marriage Leave", 3),
		calendarType(TypeBereavement, "Bereavement Leave", 3),
		unpaid,
		calendarType(TypeStudy, "Study Leave", 5),
		other,
	}
}

// =============================================================================
// CATALOG
// =============================================================================

// ReferenceChecker answers whether any request uses a leave type.
type ReferenceChecker interface {
	HasRequestsForType(ctx context.Context, code TypeCode) (bool, error)
}

// Catalog is the process-wide set of leave types.
type Catalog struct {
	mu    sync.RWMutex
	types map[TypeCode]LeaveType
}

// NewCatalog builds a catalog from types. Later entries with the same
// code replace earlier ones, so overrides can be appended to defaults.
func NewCatalog(types ...LeaveType) (*Catalog, error) {
	c := &Catalog{types: make(map[TypeCode]LeaveType, len(types))}
	for _, lt := range types {
		if err := lt.Validate(); err != nil {
			return nil, fmt.Errorf("leave type %q: %w", lt.Code, err)
		}
		c.types[lt.Code] = lt
	}
	return c, nil
}

// NewDefaultCatalog returns the default catalog.
func NewDefaultCatalog() *Catalog {
	c, _ := NewCatalog(DefaultLeaveTypes()...)
	return c
}

func (c *Catalog) Get(code TypeCode) (LeaveType, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	lt, ok := c.types[code]
	if !ok {
		return LeaveType{}, &NotFoundError{Kind: "leave type", ID: string(code)}
	}
	return lt, nil
}

// Hold runs fn with the definition of code while keeping Put out, so
// rules checked inside fn are the rules in force when fn returns. fn must
// not call back into the catalog.
func (c *Catalog) Hold(code TypeCode, fn func(LeaveType) error) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	lt, ok := c.types[code]
	if !ok {
		return &NotFoundError{Kind: "leave type", ID: string(code)}
	}
	return fn(lt)
}

// List returns every leave type ordered by code.
func (c *Catalog) List() []LeaveType {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]LeaveType, 0, len(c.types))
	for _, lt := range c.types {
		out = append(out, lt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// Put adds or replaces a leave type. Once any request references the
// existing definition only its name may change. The catalog is held in
// memory only: edits last for the life of the process and the configured
// definitions are loaded again on the next start.
func (c *Catalog) Put(ctx context.Context, lt LeaveType, refs ReferenceChecker) error {
	if err := lt.Validate(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.types[lt.Code]; ok && !existing.sameRules(lt) {
		referenced, err := refs.HasRequestsForType(ctx, lt.Code)
		if err != nil {
			return fmt.Errorf("checking references for %q: %w", lt.Code, err)
		}
		if referenced {
			return &ValidationError{Field: "code", Message: fmt.Sprintf("leave type %q is referenced by existing requests; only its name can change", lt.Code)}
		}
	}
	c.types[lt.Code] = lt
	return nil
}
