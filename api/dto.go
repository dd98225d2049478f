/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the leave domain model from the external API contract.

NAMING CONVENTION:
  - *DTO:  Response types returned to clients
  - *Body: Request body types from clients

VALIDATION:
  Body types carry validator/v10 struct tags for shape checks (required
  fields, formats, enums). Business rules (balances, overlaps, who may
  act) stay in the leave package.

DAY AMOUNTS:
  Day counts are decimals serialized as JSON strings ("2.5") so no
  precision is lost in transit.

SEE ALSO:
  - handlers.go: Uses these types
  - leave/types.go: Domain model
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/leave"
)

// =============================================================================
// REQUEST BODIES
// =============================================================================

// CreateRequestBody is the body of POST /api/leave/requests. EmployeeID
// defaults to the caller. ApproverID is only accepted from a manager or
// HR filing for someone else.
type CreateRequestBody struct {
	EmployeeID         string        `json:"employee_id" validate:"omitempty,max=64"`
	LeaveType          string        `json:"leave_type" validate:"required,max=64"`
	StartDate          string        `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate            string        `json:"end_date" validate:"required,datetime=2006-01-02"`
	StartHalfDay       bool          `json:"start_half_day"`
	EndHalfDay         bool          `json:"end_half_day"`
	Reason             string        `json:"reason" validate:"max=2000"`
	IsEmergency        bool          `json:"is_emergency"`
	WorkHandover       string        `json:"work_handover" validate:"max=2000"`
	ContactDuringLeave string        `json:"contact_during_leave" validate:"max=255"`
	Document           *DocumentBody `json:"document" validate:"omitempty"`
	ApproverID         *string       `json:"approver_id" validate:"omitempty,max=64"`
}

type DocumentBody struct {
	Name string `json:"name" validate:"required,max=255"`
	Ref  string `json:"ref" validate:"required,max=1024"`
}

// RejectBody is the body of POST /api/leave/requests/{id}/reject. An
// empty reason is refused by the engine, not here.
type RejectBody struct {
	RejectionReason string `json:"rejection_reason" validate:"max=2000"`
}

// LeaveTypeBody is the body of PUT /api/leave/types/{code}.
type LeaveTypeBody struct {
	Name                 string          `json:"name" validate:"required,max=128"`
	AnnualEntitlement    decimal.Decimal `json:"annual_entitlement"`
	Cadence              string          `json:"cadence" validate:"required,oneof=upfront monthly"`
	ConsumptionMode      string          `json:"consumption_mode" validate:"required,oneof=consume_ahead consume_up_to_accrued"`
	Period               string          `json:"period" validate:"required,oneof=calendar_year fiscal_year"`
	FiscalYearStartMonth int             `json:"fiscal_year_start_month" validate:"omitempty,min=1,max=12"`
	Paid                 bool            `json:"paid"`
	AllowNegative        bool            `json:"allow_negative"`
	Enabled              bool            `json:"enabled"`
	Companies            []string        `json:"companies" validate:"omitempty,dive,required"`
}

func (b LeaveTypeBody) toLeaveType(code leave.TypeCode) leave.LeaveType {
	lt := leave.LeaveType{
		Code:              code,
		Name:              b.Name,
		AnnualEntitlement: b.AnnualEntitlement,
		Cadence:           generic.Cadence(b.Cadence),
		ConsumptionMode:   generic.ConsumptionMode(b.ConsumptionMode),
		Period: generic.PeriodConfig{
			Type:                 generic.PeriodType(b.Period),
			FiscalYearStartMonth: time.Month(b.FiscalYearStartMonth),
		},
		Paid:          b.Paid,
		AllowNegative: b.AllowNegative,
		Enabled:       b.Enabled,
	}
	for _, c := range b.Companies {
		lt.Companies = append(lt.Companies, leave.CompanyID(c))
	}
	return lt
}

// =============================================================================
// RESPONSES
// =============================================================================

// RequestDTO represents a leave request in API responses.
type RequestDTO struct {
	ID                 int64                `json:"id"`
	EmployeeID         string               `json:"employee_id"`
	LeaveType          string               `json:"leave_type"`
	Category           string               `json:"category"`
	ApproverID         *string              `json:"approver_id,omitempty"`
	CreatedBy          string               `json:"created_by"`
	StartDate          generic.TimePoint    `json:"start_date"`
	EndDate            generic.TimePoint    `json:"end_date"`
	StartHalfDay       bool                 `json:"start_half_day"`
	EndHalfDay         bool                 `json:"end_half_day"`
	TotalDays          decimal.Decimal      `json:"total_days"`
	Reason             string               `json:"reason,omitempty"`
	IsEmergency        bool                 `json:"is_emergency"`
	WorkHandover       string               `json:"work_handover,omitempty"`
	ContactDuringLeave string               `json:"contact_during_leave,omitempty"`
	Document           *leave.DocumentRef   `json:"document,omitempty"`
	Status             leave.Status         `json:"status"`
	RejectionReason    string               `json:"rejection_reason,omitempty"`
	CreatedAt          time.Time            `json:"created_at"`
	UpdatedAt          time.Time            `json:"updated_at"`
	ApprovedAt         *time.Time           `json:"approved_at,omitempty"`
	RejectedAt         *time.Time           `json:"rejected_at,omitempty"`
	CancelledAt        *time.Time           `json:"cancelled_at,omitempty"`
	CancelledBy        *string              `json:"cancelled_by,omitempty"`
	Version            int                  `json:"version"`
}

func toRequestDTO(r *leave.Request) RequestDTO {
	return RequestDTO{
		ID:                 int64(r.ID),
		EmployeeID:         string(r.EmployeeID),
		LeaveType:          string(r.LeaveType),
		Category:           string(leave.Category(r.LeaveType)),
		ApproverID:         idString(r.ApproverID),
		CreatedBy:          string(r.CreatedBy),
		StartDate:          r.StartDate,
		EndDate:            r.EndDate,
		StartHalfDay:       r.StartHalfDay,
		EndHalfDay:         r.EndHalfDay,
		TotalDays:          r.TotalDays,
		Reason:             r.Reason,
		IsEmergency:        r.IsEmergency,
		WorkHandover:       r.WorkHandover,
		ContactDuringLeave: r.ContactDuringLeave,
		Document:           r.Document,
		Status:             r.Status,
		RejectionReason:    r.RejectionReason,
		CreatedAt:          r.CreatedAt,
		UpdatedAt:          r.UpdatedAt,
		ApprovedAt:         r.ApprovedAt,
		RejectedAt:         r.RejectedAt,
		CancelledAt:        r.CancelledAt,
		CancelledBy:        idString(r.CancelledBy),
		Version:            r.Version,
	}
}

// BalanceDTO is the balance of one leave type for the period holding
// the requested date.
type BalanceDTO struct {
	EmployeeID      string          `json:"employee_id"`
	LeaveType       string          `json:"leave_type"`
	PeriodStart     string          `json:"period_start"`
	PeriodEnd       string          `json:"period_end"`
	Entitlement     decimal.Decimal `json:"entitlement"`
	AccruedToDate   decimal.Decimal `json:"accrued_to_date"`
	Consumed        decimal.Decimal `json:"consumed"`
	Adjustments     decimal.Decimal `json:"adjustments"`
	Remaining       decimal.Decimal `json:"remaining"`
	Available       decimal.Decimal `json:"available"`
	ConsumptionMode string          `json:"consumption_mode"`
	AllowNegative   bool            `json:"allow_negative"`
}

func toBalanceDTO(b leave.Balance) BalanceDTO {
	return BalanceDTO{
		EmployeeID:      string(b.EmployeeID),
		LeaveType:       string(b.LeaveType),
		PeriodStart:     b.Period.Start.String(),
		PeriodEnd:       b.Period.End.String(),
		Entitlement:     b.Entitlement,
		AccruedToDate:   b.AccruedToDate,
		Consumed:        b.Consumed,
		Adjustments:     b.Adjustments,
		Remaining:       b.Remaining,
		Available:       b.Available,
		ConsumptionMode: string(b.ConsumptionMode),
		AllowNegative:   b.AllowNegative,
	}
}

// LeaveTypeDTO represents a catalog entry.
type LeaveTypeDTO struct {
	Code                 string          `json:"code"`
	Name                 string          `json:"name"`
	AnnualEntitlement    decimal.Decimal `json:"annual_entitlement"`
	Cadence              string          `json:"cadence"`
	ConsumptionMode      string          `json:"consumption_mode"`
	Period               string          `json:"period"`
	FiscalYearStartMonth int             `json:"fiscal_year_start_month,omitempty"`
	Paid                 bool            `json:"paid"`
	AllowNegative        bool            `json:"allow_negative"`
	Enabled              bool            `json:"enabled"`
	Companies            []string        `json:"companies,omitempty"`
}

func toLeaveTypeDTO(lt leave.LeaveType) LeaveTypeDTO {
	dto := LeaveTypeDTO{
		Code:                 string(lt.Code),
		Name:                 lt.Name,
		AnnualEntitlement:    lt.AnnualEntitlement,
		Cadence:              string(lt.Cadence),
		ConsumptionMode:      string(lt.ConsumptionMode),
		Period:               string(lt.Period.Type),
		FiscalYearStartMonth: int(lt.Period.FiscalYearStartMonth),
		Paid:                 lt.Paid,
		AllowNegative:        lt.AllowNegative,
		Enabled:              lt.Enabled,
	}
	for _, c := range lt.Companies {
		dto.Companies = append(dto.Companies, string(c))
	}
	return dto
}

// OnLeaveDTO answers GET /api/leave/on-leave/{employee}.
type OnLeaveDTO struct {
	EmployeeID string            `json:"employee_id"`
	Date       generic.TimePoint `json:"date"`
	OnLeave    bool              `json:"on_leave"`
}

// SummaryDTO answers GET /api/leave/summary.
type SummaryDTO struct {
	EmployeeIDs []string                   `json:"employee_ids"`
	Counts      leave.StatusCounts         `json:"counts"`
	Total       int                        `json:"total"`
	DaysByType  map[string]decimal.Decimal `json:"days_by_type"`
}

// DashboardDTO answers GET /api/leave/dashboard.
type DashboardDTO struct {
	Mode         leave.ViewMode             `json:"mode"`
	Team         []string                   `json:"team"`
	Date         generic.TimePoint          `json:"date"`
	Counts       leave.StatusCounts         `json:"counts"`
	DaysByType   map[string]decimal.Decimal `json:"days_by_type"`
	OnLeaveToday []string                   `json:"on_leave_today"`
}

func toDashboardDTO(d *leave.Dashboard) DashboardDTO {
	return DashboardDTO{
		Mode:         d.Mode,
		Team:         idStrings(d.Team),
		Date:         d.Date,
		Counts:       d.Counts,
		DaysByType:   daysByType(d.DaysByType),
		OnLeaveToday: idStrings(d.OnLeaveToday),
	}
}

func daysByType(in map[leave.TypeCode]decimal.Decimal) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(in))
	for code, days := range in {
		out[string(code)] = days
	}
	return out
}

func idString(id *leave.EmployeeID) *string {
	if id == nil {
		return nil
	}
	s := string(*id)
	return &s
}

func idStrings(ids []leave.EmployeeID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}
