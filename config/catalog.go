package config

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/leave"
)

// LeaveTypeConfig overrides or adds a catalog entry. Unset fields keep
// the default type's value when Code names a built-in type.
type LeaveTypeConfig struct {
	Code                 string   `mapstructure:"code"`
	Name                 string   `mapstructure:"name"`
	AnnualEntitlement    string   `mapstructure:"annual_entitlement"`
	Cadence              string   `mapstructure:"cadence"`
	ConsumptionMode      string   `mapstructure:"consumption_mode"`
	Period               string   `mapstructure:"period"`
	FiscalYearStartMonth int      `mapstructure:"fiscal_year_start_month"`
	Paid                 *bool    `mapstructure:"paid"`
	AllowNegative        *bool    `mapstructure:"allow_negative"`
	Enabled              *bool    `mapstructure:"enabled"`
	Companies            []string `mapstructure:"companies"`
}

// apply overlays c on base.
func (c LeaveTypeConfig) apply(base leave.LeaveType) (leave.LeaveType, error) {
	lt := base
	lt.Code = leave.TypeCode(c.Code)
	if c.Name != "" {
		lt.Name = c.Name
	}
	if c.AnnualEntitlement != "" {
		days, err := decimal.NewFromString(c.AnnualEntitlement)
		if err != nil {
			return lt, fmt.Errorf("annual_entitlement %q: %w", c.AnnualEntitlement, err)
		}
		lt.AnnualEntitlement = days
	}
	if c.Cadence != "" {
		lt.Cadence = generic.Cadence(c.Cadence)
	}
	if c.ConsumptionMode != "" {
		lt.ConsumptionMode = generic.ConsumptionMode(c.ConsumptionMode)
	}
	if c.Period != "" {
		lt.Period.Type = generic.PeriodType(c.Period)
	}
	if c.FiscalYearStartMonth != 0 {
		lt.Period.FiscalYearStartMonth = time.Month(c.FiscalYearStartMonth)
	}
	if c.Paid != nil {
		lt.Paid = *c.Paid
	}
	if c.AllowNegative != nil {
		lt.AllowNegative = *c.AllowNegative
	}
	if c.Enabled != nil {
		lt.Enabled = *c.Enabled
	}
	if len(c.Companies) > 0 {
		lt.Companies = make([]leave.CompanyID, len(c.Companies))
		for i, company := range c.Companies {
			lt.Companies[i] = leave.CompanyID(company)
		}
	}
	return lt, nil
}

// newTypeBase is what a type unknown to the defaults starts from.
func newTypeBase() leave.LeaveType {
	return leave.LeaveType{
		Cadence:         generic.CadenceUpfront,
		ConsumptionMode: generic.ConsumeAhead,
		Period:          generic.PeriodConfig{Type: generic.PeriodCalendarYear},
		Paid:            true,
		Enabled:         true,
	}
}

// Catalog builds the leave type catalog: the defaults with the
// configured leave_types applied on top.
func (c *Config) Catalog() (*leave.Catalog, error) {
	defaults := leave.DefaultLeaveTypes()
	byCode := make(map[leave.TypeCode]leave.LeaveType, len(defaults))
	for _, lt := range defaults {
		byCode[lt.Code] = lt
	}

	types := defaults
	for _, override := range c.LeaveTypes {
		base, ok := byCode[leave.TypeCode(override.Code)]
		if !ok {
			base = newTypeBase()
		}
		lt, err := override.apply(base)
		if err != nil {
			return nil, fmt.Errorf("leave type %q: %w", override.Code, err)
		}
		byCode[lt.Code] = lt
		types = append(types, lt)
	}

	return leave.NewCatalog(types...)
}
