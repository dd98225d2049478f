/*
Package leave implements the leave request lifecycle on top of the
generic ledger.

PURPOSE:
  Employees request leave of a configured type over a date range. A
  request moves through pending -> approved | rejected | cancelled, and
  approved requests debit the employee's balance for that leave type.
  Cancelling an approved request before it starts credits the days back.

KEY CONCEPTS IN THIS FILE (types.go):
  - Request: the leave request entity and its status
  - TotalDays: inclusive day count with half-day deductions
  - Actor / Employee: who is acting and who they are in the org chart

INVARIANTS:
  - Balance = entitlement - consumed + adjustments, derived from the ledger
  - Days only leave the ledger on approval and only return on cancellation
    of an approved request
  - A terminal request never transitions again
  - approved_at and rejected_at are never both set

SEE ALSO:
  - request.go: the state machine and its side effects
  - ledger.go: debit/credit and balance queries
  - gate.go: who may approve, reject or cancel
*/
package leave

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/leave-engine/generic"
)

type (
	EmployeeID string
	CompanyID  string
	TypeCode   string
	RequestID  int64
)

// =============================================================================
// STATUS
// =============================================================================

type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusCancelled Status = "cancelled"
)

// AllStatuses in display order.
var AllStatuses = []Status{StatusPending, StatusApproved, StatusRejected, StatusCancelled}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether no transition may leave s. Approved is not
// terminal because an approved request can still be cancelled.
func (s Status) IsTerminal() bool {
	return s == StatusRejected || s == StatusCancelled
}

// transitions lists the allowed next states. Approved -> cancelled is
// further restricted to requests that haven't started.
var transitions = map[Status][]Status{
	StatusPending:  {StatusApproved, StatusRejected, StatusCancelled},
	StatusApproved: {StatusCancelled},
}

// CanTransition reports whether from -> to is an edge of the state machine.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// =============================================================================
// REQUEST
// =============================================================================

// DocumentRef points at a supporting document such as a medical
// certificate. The file itself lives in document storage.
type DocumentRef struct {
	Name string `json:"name"`
	Ref  string `json:"ref"`
}

type Request struct {
	ID         RequestID
	EmployeeID EmployeeID
	LeaveType  TypeCode
	ApproverID *EmployeeID
	CreatedBy  EmployeeID

	StartDate    generic.TimePoint
	EndDate      generic.TimePoint
	StartHalfDay bool
	EndHalfDay   bool
	TotalDays    decimal.Decimal

	Reason             string
	IsEmergency        bool
	WorkHandover       string
	ContactDuringLeave string
	Document           *DocumentRef

	Status          Status
	RejectionReason string

	CreatedAt   time.Time
	UpdatedAt   time.Time
	ApprovedAt  *time.Time
	RejectedAt  *time.Time
	CancelledAt *time.Time
	CancelledBy *EmployeeID

	// Version increments on every status change; updates are conditioned on it.
	Version int
}

// Overlaps reports whether the request shares a day with [start, end].
func (r *Request) Overlaps(start, end generic.TimePoint) bool {
	return generic.RangesOverlap(r.StartDate, r.EndDate, start, end)
}

// Covers reports whether date falls within the request's range.
func (r *Request) Covers(date generic.TimePoint) bool {
	return r.Overlaps(date, date)
}

// Blocking reports whether the request reserves its dates, which
// pending and approved requests both do.
func (r *Request) Blocking() bool {
	return r.Status == StatusPending || r.Status == StatusApproved
}

func (r *Request) BalanceKey() generic.BalanceKey {
	return generic.BalanceKey{
		EntityID: generic.EntityID(r.EmployeeID),
		PolicyID: generic.PolicyID(r.LeaveType),
	}
}

// TotalDays counts the inclusive calendar days of [start, end] minus half
// a day for each half-day flag. The result is clamped to at least half a
// day so a single half day always costs 0.5.
func TotalDays(start, end generic.TimePoint, startHalf, endHalf bool) (decimal.Decimal, error) {
	if end.Before(start) {
		return decimal.Zero, &ValidationError{Field: "end_date", Message: "end_date must not be before start_date"}
	}

	total := decimal.NewFromInt(int64(generic.DaysBetween(start, end) + 1))
	if startHalf {
		total = total.Sub(generic.HalfDay)
	}
	if endHalf {
		total = total.Sub(generic.HalfDay)
	}
	if total.LessThan(generic.HalfDay) {
		total = generic.HalfDay
	}
	return total, nil
}

// =============================================================================
// PEOPLE
// =============================================================================

// Employee is the directory's view of a person.
type Employee struct {
	ID        EmployeeID
	CompanyID CompanyID
	ManagerID *EmployeeID
	Name      string
	Active    bool
}

// Actor is the authenticated caller of an operation.
type Actor struct {
	EmployeeID EmployeeID
	CompanyID  CompanyID
	Roles      []string
}

func (a Actor) HasRole(role string) bool {
	for _, r := range a.Roles {
		if r == role {
			return true
		}
	}
	return false
}
