package rbac_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/rbac"
)

func newDefaultEnforcer(t *testing.T) *rbac.Enforcer {
	policies, inheritance := rbac.DefaultPolicies()
	en, err := rbac.New(policies, inheritance)
	require.NoError(t, err)
	return en
}

func TestEnforcer_HRAdminCanOverride(t *testing.T) {
	en := newDefaultEnforcer(t)

	ok, err := en.CanOverride(leave.Actor{EmployeeID: "hr-1", CompanyID: "acme", Roles: []string{"hr_admin"}})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEnforcer_InheritedRole(t *testing.T) {
	en := newDefaultEnforcer(t)

	ok, err := en.CanOverride(leave.Actor{EmployeeID: "root", CompanyID: "acme", Roles: []string{"super_admin"}})
	require.NoError(t, err)
	assert.True(t, ok, "super_admin inherits hr_admin")
}

func TestEnforcer_EmployeeCannotOverride(t *testing.T) {
	en := newDefaultEnforcer(t)

	ok, err := en.CanOverride(leave.Actor{EmployeeID: "emp-1", CompanyID: "acme", Roles: []string{"employee"}})
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = en.CanOverride(leave.Actor{EmployeeID: "emp-2", CompanyID: "acme"})
	require.NoError(t, err)
	assert.False(t, ok, "no roles, no override")
}

func TestEnforcer_CompanyScopedPolicy(t *testing.T) {
	en, err := rbac.New([]rbac.Policy{
		{Role: "hr_admin", Company: "acme", Object: rbac.ObjectLeave, Action: rbac.ActionOverride},
	}, nil)
	require.NoError(t, err)

	ok, err := en.CanOverride(leave.Actor{EmployeeID: "hr-1", CompanyID: "acme", Roles: []string{"hr_admin"}})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = en.CanOverride(leave.Actor{EmployeeID: "hr-2", CompanyID: "globex", Roles: []string{"hr_admin"}})
	require.NoError(t, err)
	assert.False(t, ok, "policy is scoped to acme")
}

func TestEnforcer_Allowed_ManageLeaveTypes(t *testing.T) {
	en := newDefaultEnforcer(t)
	actor := leave.Actor{EmployeeID: "hr-1", CompanyID: "acme", Roles: []string{"employee", "hr_admin"}}

	ok, err := en.Allowed(actor, rbac.ObjectLeaveType, rbac.ActionManage)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = en.Allowed(actor, rbac.ObjectLeaveType, "delete")
	require.NoError(t, err)
	assert.False(t, ok)
}
