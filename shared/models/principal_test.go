package models

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestPrincipal_CanAccessTenant(t *testing.T) {
	tenantA := uuid.New()
	tenantB := uuid.New()

	tests := []struct {
		name      string
		principal Principal
		tenant    uuid.UUID
		want      bool
	}{
		{name: "super admin crosses tenants", principal: Principal{Role: RoleSuperAdmin}, tenant: tenantB, want: true},
		{name: "tenant admin own tenant", principal: Principal{Role: RoleTenantAdmin, TenantID: &tenantA}, tenant: tenantA, want: true},
		{name: "tenant admin other tenant", principal: Principal{Role: RoleTenantAdmin, TenantID: &tenantA}, tenant: tenantB, want: false},
		{name: "user without tenant", principal: Principal{Role: RoleUser}, tenant: tenantA, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.principal.CanAccessTenant(tt.tenant))
		})
	}
}

func TestPrincipal_CanModifyTask(t *testing.T) {
	tenant := uuid.New()
	other := uuid.New()
	caller := uuid.New()
	someoneElse := uuid.New()

	user := Principal{UserID: caller, TenantID: &tenant, Role: RoleUser}
	admin := Principal{UserID: uuid.New(), TenantID: &tenant, Role: RoleTenantAdmin}

	tests := []struct {
		name      string
		principal Principal
		task      Task
		want      bool
	}{
		{name: "user created it", principal: user, task: Task{TenantID: tenant, CreatedBy: &caller}, want: true},
		{name: "user assigned to it", principal: user, task: Task{TenantID: tenant, AssignedTo: &caller}, want: true},
		{name: "user neither created nor assigned", principal: user, task: Task{TenantID: tenant, CreatedBy: &someoneElse}, want: false},
		{name: "tenant admin any task in tenant", principal: admin, task: Task{TenantID: tenant, CreatedBy: &someoneElse}, want: true},
		{name: "tenant admin other tenant", principal: admin, task: Task{TenantID: other}, want: false},
		{name: "assigned but other tenant", principal: user, task: Task{TenantID: other, AssignedTo: &caller}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.principal.CanModifyTask(&tt.task))
		})
	}
}

func TestPrincipal_CanModifyProject(t *testing.T) {
	tenant := uuid.New()
	caller := uuid.New()
	user := Principal{UserID: caller, TenantID: &tenant, Role: RoleUser}

	assert.True(t, user.CanModifyProject(&Project{TenantID: tenant, CreatedBy: &caller}))
	assert.False(t, user.CanModifyProject(&Project{TenantID: tenant}))

	super := Principal{UserID: uuid.New(), Role: RoleSuperAdmin}
	assert.True(t, super.CanModifyProject(&Project{TenantID: uuid.New()}))
}

func TestPlanLimits(t *testing.T) {
	assert.Equal(t, PlanLimits{MaxUsers: 5, MaxProjects: 3}, PlanFree.Limits())
	assert.Equal(t, PlanLimits{MaxUsers: 25, MaxProjects: 15}, PlanPro.Limits())
	assert.Equal(t, PlanLimits{MaxUsers: 100, MaxProjects: 50}, PlanEnterprise.Limits())
	assert.Equal(t, PlanFree.Limits(), SubscriptionPlan("gold").Limits())
	assert.False(t, SubscriptionPlan("gold").Valid())
}

func TestTaskPriority_Rank(t *testing.T) {
	assert.Less(t, PriorityHigh.Rank(), PriorityMedium.Rank())
	assert.Less(t, PriorityMedium.Rank(), PriorityLow.Rank())
}
