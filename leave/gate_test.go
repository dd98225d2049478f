package leave_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/leave-engine/leave"
)

func TestGate_CanView(t *testing.T) {
	f := newFixture(t)
	gate := f.svc.Gate()
	ctx := context.Background()

	tests := []struct {
		name   string
		actor  leave.Actor
		target leave.EmployeeID
		want   bool
	}{
		{"self", employee, "emp-1", true},
		{"peer", peer, "emp-1", false},
		{"direct manager", manager, "emp-1", true},
		{"other manager", otherManager, "emp-1", false},
		{"hr in company", hrAdmin, "emp-3", true},
		{"hr of another company", foreignHR, "emp-1", false},
		{"unknown employee", hrAdmin, "ghost", false},
		{"anonymous", leave.Actor{}, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := gate.CanView(ctx, tt.actor, tt.target)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestGate_AdminCapabilities(t *testing.T) {
	gate := newFixture(t).svc.Gate()

	ok, err := gate.IsAdmin(hrAdmin)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = gate.IsAdmin(manager)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = gate.CanManageTypes(hrAdmin)
	require.NoError(t, err)
	assert.True(t, ok)

	noOverrides := leave.NewGate(newFixture(t).store, nil)
	ok, err = noOverrides.CanManageTypes(hrAdmin)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGate_CanActAssignedApprover(t *testing.T) {
	gate := newFixture(t).svc.Gate()
	ctx := context.Background()

	tests := []struct {
		name     string
		actor    leave.Actor
		approver leave.EmployeeID
		want     bool
	}{
		{"assigned in the same company", otherManager, "mgr-2", true},
		{"assigned from another company", globexStaffer, "gx-1", false},
		{"assigned requester", employee, "emp-1", false},
		{"not the assigned approver", peer, "mgr-2", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &leave.Request{EmployeeID: "emp-1", ApproverID: ptr(tt.approver)}
			ok, err := gate.CanAct(ctx, tt.actor, r)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}
}
