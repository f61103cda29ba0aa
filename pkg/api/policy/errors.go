package policy

import "github.com/platformplatform/account-api/internal/api/apierrors"

const notOwnerCode = "NOT_OWNER"

var (
	ErrNotOwnerForTenantUpdate  = apierrors.NewForbiddenError(notOwnerCode, "Only owners are allowed to update tenant information.")
	ErrNotOwnerForInvite        = apierrors.NewForbiddenError(notOwnerCode, "Only owners are allowed to invite other users.")
	ErrNotOwnerForRoleChange    = apierrors.NewForbiddenError(notOwnerCode, "Only owners are allowed to change the user role.")
	ErrNotOwnerForUserDelete    = apierrors.NewForbiddenError(notOwnerCode, "Only owners are allowed to delete users.")
	ErrNotOwnerForSubscriptions = apierrors.NewForbiddenError(notOwnerCode, "Only owners can manage subscriptions.")

	ErrTenantSuspended = apierrors.NewNotAcceptableError("TENANT_SUSPENDED").WithMessage("The account is suspended.")
)
