// Package rbac resolves administrative capabilities with casbin.
//
// Policies are (role, company, object, action) tuples where company may be
// "*" to apply everywhere. Role inheritance is declared with (role, parent)
// pairs, so a super_admin can inherit everything an hr_admin may do.
package rbac

import (
	"fmt"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"

	"github.com/warp/leave-engine/leave"
)

// Objects and actions checked by the leave engine.
const (
	ObjectLeave     = "leave"
	ObjectLeaveType = "leave_type"

	ActionOverride = "override"
	ActionManage   = "manage"

	AnyCompany = "*"
)

const modelText = `
[request_definition]
r = sub, dom, obj, act

[policy_definition]
p = sub, dom, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && (p.dom == "*" || r.dom == p.dom) && r.obj == p.obj && r.act == p.act
`

type Policy struct {
	Role    string `mapstructure:"role"`
	Company string `mapstructure:"company"`
	Object  string `mapstructure:"object"`
	Action  string `mapstructure:"action"`
}

// Inheritance makes Role hold every permission of Parent.
type Inheritance struct {
	Role   string `mapstructure:"role"`
	Parent string `mapstructure:"parent"`
}

// DefaultPolicies grant hr_admin the leave override and catalog
// management everywhere, and let super_admin inherit them.
func DefaultPolicies() ([]Policy, []Inheritance) {
	return []Policy{
			{Role: "hr_admin", Company: AnyCompany, Object: ObjectLeave, Action: ActionOverride},
			{Role: "hr_admin", Company: AnyCompany, Object: ObjectLeaveType, Action: ActionManage},
		}, []Inheritance{
			{Role: "super_admin", Parent: "hr_admin"},
		}
}

// Enforcer answers capability checks for leave actors.
type Enforcer struct {
	e *casbin.SyncedEnforcer
}

func New(policies []Policy, inheritance []Inheritance) (*Enforcer, error) {
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, fmt.Errorf("rbac model: %w", err)
	}
	e, err := casbin.NewSyncedEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("rbac enforcer: %w", err)
	}

	for _, in := range inheritance {
		if _, err := e.AddGroupingPolicy(in.Role, in.Parent); err != nil {
			return nil, fmt.Errorf("rbac inheritance %s -> %s: %w", in.Role, in.Parent, err)
		}
	}
	for _, p := range policies {
		company := p.Company
		if company == "" {
			company = AnyCompany
		}
		if _, err := e.AddPolicy(p.Role, company, p.Object, p.Action); err != nil {
			return nil, fmt.Errorf("rbac policy %v: %w", p, err)
		}
	}
	return &Enforcer{e: e}, nil
}

// Allowed reports whether any of actor's roles permits action on object
// within actor's company.
func (en *Enforcer) Allowed(actor leave.Actor, object, action string) (bool, error) {
	for _, role := range actor.Roles {
		ok, err := en.e.Enforce(role, string(actor.CompanyID), object, action)
		if err != nil {
			return false, fmt.Errorf("rbac enforce %s: %w", role, err)
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// CanOverride implements leave.OverrideChecker.
func (en *Enforcer) CanOverride(actor leave.Actor) (bool, error) {
	return en.Allowed(actor, ObjectLeave, ActionOverride)
}

// CanManageTypes implements leave.OverrideChecker.
func (en *Enforcer) CanManageTypes(actor leave.Actor) (bool, error) {
	return en.Allowed(actor, ObjectLeaveType, ActionManage)
}
