package leave

import (
	"context"
	"errors"
	"fmt"
)

// OverrideChecker resolves an actor's administrative capabilities in
// their own company.
type OverrideChecker interface {
	// CanOverride grants approve/reject/cancel on any request.
	CanOverride(actor Actor) (bool, error)
	// CanManageTypes grants edits to the leave type catalog.
	CanManageTypes(actor Actor) (bool, error)
}

// Gate decides who may approve, reject or cancel someone else's request.
// The actor is always passed explicitly; the org chart is read fresh from
// the directory on every call.
type Gate struct {
	directory Directory
	overrides OverrideChecker
}

func NewGate(directory Directory, overrides OverrideChecker) *Gate {
	return &Gate{directory: directory, overrides: overrides}
}

// CanAct reports whether actor may approve or reject r: the assigned
// approver within the requester's company, the requester's direct
// manager, or an override holder.
func (g *Gate) CanAct(ctx context.Context, actor Actor, r *Request) (bool, error) {
	if actor.EmployeeID == "" {
		return false, nil
	}
	if r.ApproverID != nil && *r.ApproverID == actor.EmployeeID && *r.ApproverID != r.EmployeeID {
		emp, err := g.directory.Employee(ctx, r.EmployeeID)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return false, fmt.Errorf("looking up %s: %w", r.EmployeeID, err)
		}
		if err == nil && emp.CompanyID == actor.CompanyID {
			return true, nil
		}
	}
	return g.CanActFor(ctx, actor, r.EmployeeID)
}

// CanActFor reports whether actor manages employee directly or holds an
// override within employee's company.
func (g *Gate) CanActFor(ctx context.Context, actor Actor, employee EmployeeID) (bool, error) {
	if actor.EmployeeID == "" {
		return false, nil
	}

	emp, err := g.directory.Employee(ctx, employee)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("looking up %s: %w", employee, err)
	}
	if emp.ManagerID != nil && *emp.ManagerID == actor.EmployeeID {
		return true, nil
	}

	if g.overrides == nil || emp.CompanyID != actor.CompanyID {
		return false, nil
	}
	return g.overrides.CanOverride(actor)
}

// CanView reports whether actor may read employee's requests and
// balances: the employee themselves or anyone who may act for them.
func (g *Gate) CanView(ctx context.Context, actor Actor, employee EmployeeID) (bool, error) {
	if actor.EmployeeID != "" && actor.EmployeeID == employee {
		return true, nil
	}
	return g.CanActFor(ctx, actor, employee)
}

// IsAdmin reports whether actor holds the override role in their own company.
func (g *Gate) IsAdmin(actor Actor) (bool, error) {
	if g.overrides == nil || actor.EmployeeID == "" {
		return false, nil
	}
	return g.overrides.CanOverride(actor)
}

// CanManageTypes reports whether actor may edit the leave type catalog.
func (g *Gate) CanManageTypes(actor Actor) (bool, error) {
	if g.overrides == nil || actor.EmployeeID == "" {
		return false, nil
	}
	return g.overrides.CanManageTypes(actor)
}
