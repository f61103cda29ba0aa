package policy

import (
	"testing"

	"github.com/platformplatform/account-api/internal/shared/logutil"
	"github.com/platformplatform/account-api/pkg/api/models"
	"github.com/platformplatform/account-api/pkg/api/request"
	"github.com/stretchr/testify/assert"
)

func makeContext(role models.UserRole, state models.TenantState) *request.AuthorizedContext {
	return &request.AuthorizedContext{
		BaseContext: request.BaseContext{Log: logutil.NewStderrLog("test")},
		User:        &models.User{Role: role},
		Tenant:      &models.Tenant{State: state},
	}
}

func TestRequireOwner(t *testing.T) {
	assert.NoError(t, RequireOwner(makeContext(models.UserRoleOwner, models.TenantStateActive), ErrNotOwnerForInvite))

	err := RequireOwner(makeContext(models.UserRoleAdmin, models.TenantStateActive), ErrNotOwnerForSubscriptions)
	if assert.Error(t, err) {
		assert.Equal(t, ErrNotOwnerForSubscriptions, err)
		assert.Equal(t, "Only owners can manage subscriptions.", ErrNotOwnerForSubscriptions.GetMessage())
	}
}

func TestRequireNotSuspended(t *testing.T) {
	assert.NoError(t, RequireNotSuspended(makeContext(models.UserRoleOwner, models.TenantStatePastDue)))
	assert.Equal(t, ErrTenantSuspended, RequireNotSuspended(makeContext(models.UserRoleOwner, models.TenantStateSuspended)))
}
