package leave

import (
	"context"
	"slices"

	"github.com/warp/leave-engine/generic"
)

// =============================================================================
// PERSISTENCE INTERFACES
// =============================================================================

// RequestFilter selects leave requests. Empty fields don't constrain.
// From/To select requests whose range intersects [From, To].
type RequestFilter struct {
	EmployeeIDs []EmployeeID
	Statuses    []Status
	LeaveTypes  []TypeCode
	From        *generic.TimePoint
	To          *generic.TimePoint
}

// Match applies the filter in memory.
func (f RequestFilter) Match(r *Request) bool {
	if len(f.EmployeeIDs) > 0 && !slices.Contains(f.EmployeeIDs, r.EmployeeID) {
		return false
	}
	if len(f.Statuses) > 0 && !slices.Contains(f.Statuses, r.Status) {
		return false
	}
	if len(f.LeaveTypes) > 0 && !slices.Contains(f.LeaveTypes, r.LeaveType) {
		return false
	}
	if f.From != nil && r.EndDate.Before(*f.From) {
		return false
	}
	if f.To != nil && r.StartDate.After(*f.To) {
		return false
	}
	return true
}

// RequestReader is the read side used by the aggregator and API.
type RequestReader interface {
	GetRequest(ctx context.Context, id RequestID) (*Request, error)
	ListRequests(ctx context.Context, f RequestFilter) ([]Request, error)
	HasRequestsForType(ctx context.Context, code TypeCode) (bool, error)
}

// Store persists requests and the ledger. Every method works both on
// the base store and on the view handed to a WithTx callback.
type Store interface {
	generic.Store
	RequestReader

	// InsertRequest assigns r.ID and persists r.
	InsertRequest(ctx context.Context, r *Request) error

	// UpdateRequest writes r if the stored version equals expectedVersion
	// and fails with generic.ErrConcurrentModification otherwise.
	UpdateRequest(ctx context.Context, r *Request, expectedVersion int) error

	// FindOverlapping returns the employee's pending or approved requests
	// intersecting [start, end].
	FindOverlapping(ctx context.Context, employee EmployeeID, start, end generic.TimePoint) ([]Request, error)
}

// TxStore runs fn atomically: everything fn writes is committed when it
// returns nil and discarded otherwise.
type TxStore interface {
	Store
	WithTx(ctx context.Context, fn func(Store) error) error
}

// Directory is the identity provider's view of the org chart.
type Directory interface {
	Employee(ctx context.Context, id EmployeeID) (Employee, error)
	Reports(ctx context.Context, manager EmployeeID) ([]EmployeeID, error)
	CompanyMembers(ctx context.Context, company CompanyID) ([]EmployeeID, error)
}
