package policy

import (
	"github.com/platformplatform/account-api/internal/api/apierrors"
	"github.com/platformplatform/account-api/pkg/api/request"
)

// RequireOwner returns err unless the current user is an owner of the tenant.
func RequireOwner(rc *request.AuthorizedContext, err *apierrors.ForbiddenError) error {
	if rc.User.IsOwner() {
		return nil
	}

	rc.Log.Infof("User with role %s isn't allowed: %s", rc.User.Role, err.GetMessage())
	return err
}

func RequireNotSuspended(rc *request.AuthorizedContext) error {
	if rc.Tenant.IsSuspended() {
		return ErrTenantSuspended
	}

	return nil
}
