package user

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/platformplatform/account-api/internal/api/apierrors"
	"github.com/platformplatform/account-api/internal/api/mailer"
	"github.com/platformplatform/account-api/internal/api/validation"
	"github.com/platformplatform/account-api/internal/shared/db/gormdb"
	"github.com/platformplatform/account-api/internal/shared/logutil"
	"github.com/platformplatform/account-api/pkg/api/models"
	"github.com/platformplatform/account-api/pkg/api/policy"
	"github.com/platformplatform/account-api/pkg/api/request"
	"github.com/platformplatform/account-api/pkg/api/returntypes"
)

var (
	ErrChangeOwnRole = apierrors.NewNotAcceptableError("CHANGE_OWN_ROLE").WithMessage("You cannot change your own user role.")
	ErrDeleteSelf    = apierrors.NewNotAcceptableError("DELETE_SELF").WithMessage("You cannot delete yourself.")
	errEmailInUse    = apierrors.NewNotAcceptableError("EMAIL_IN_USE")
)

type InvitePayload struct {
	Email string `json:"email"`
}

func (p InvitePayload) FillLogContext(lctx logutil.Context) {
	lctx["invited_email"] = p.Email
}

type ChangeRolePayload struct {
	Role models.UserRole `json:"role"`
}

func (p ChangeRolePayload) FillLogContext(lctx logutil.Context) {
	lctx["new_role"] = p.Role
}

type Service interface {
	//url:/api/account/users
	List(rc *request.AuthorizedContext) (*returntypes.UserList, error)

	//url:/api/account/users/invite method:POST
	Invite(rc *request.AuthorizedContext, payload *InvitePayload) (*returntypes.UserInfo, error)

	//url:/api/account/users/{id}/change-role method:PUT
	ChangeRole(rc *request.AuthorizedContext, reqUser *request.UserID, payload *ChangeRolePayload) (*returntypes.UserInfo, error)

	//url:/api/account/users/{id} method:DELETE
	Delete(rc *request.AuthorizedContext, reqUser *request.UserID) error
}

type BasicService struct {
	Mailer mailer.Mailer
}

func (s BasicService) List(rc *request.AuthorizedContext) (*returntypes.UserList, error) {
	var users []models.User
	if err := rc.DB.Where("tenant_id = ?", rc.Tenant.ID).Order("id").Find(&users).Error; err != nil {
		return nil, errors.Wrap(err, "failed to fetch tenant users")
	}

	ret := &returntypes.UserList{Users: []returntypes.UserInfo{}}
	for i := range users {
		ret.Users = append(ret.Users, returntypes.NewUserInfo(&users[i]))
	}
	return ret, nil
}

func (s BasicService) Invite(rc *request.AuthorizedContext, payload *InvitePayload) (*returntypes.UserInfo, error) {
	if err := policy.RequireOwner(rc, policy.ErrNotOwnerForInvite); err != nil {
		return nil, err
	}
	if err := policy.RequireNotSuspended(rc); err != nil {
		return nil, err
	}

	email := validation.NormalizeEmail(payload.Email)
	v := apierrors.NewValidationError()
	validation.Email(v, "email", email)
	if err := v.OrNil(); err != nil {
		return nil, err
	}

	var count int
	if err := rc.DB.Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return nil, errors.Wrap(err, "failed to check email")
	}
	if count != 0 {
		return nil, errEmailInUse.WithMessage(fmt.Sprintf("The user with '%s' already exists.", email))
	}

	u := models.User{
		TenantID: rc.Tenant.ID,
		Email:    email,
		Role:     models.UserRoleMember,
	}
	if err := rc.DB.Create(&u).Error; err != nil {
		return nil, errors.Wrap(err, "failed to create invited user")
	}

	msg, err := mailer.Invitation(email, rc.Tenant.Name)
	if err != nil {
		return nil, err
	}
	if err = s.Mailer.Send(rc.Ctx, *msg); err != nil {
		// the user exists and can log in anyway
		rc.Log.Warnf("Failed to send invitation: %s", err)
	}

	ret := returntypes.NewUserInfo(&u)
	return &ret, nil
}

func fetchTenantUser(rc *request.AuthorizedContext, id uint) (*models.User, error) {
	var u models.User
	if err := rc.DB.Where("id = ? AND tenant_id = ?", id, rc.Tenant.ID).First(&u).Error; err != nil {
		if gormdb.IsRecordNotFound(err) {
			return nil, errors.Wrapf(apierrors.ErrNotFound, "no user %d in tenant", id)
		}
		return nil, errors.Wrapf(err, "failed to fetch user %d", id)
	}
	return &u, nil
}

func (s BasicService) ChangeRole(rc *request.AuthorizedContext, reqUser *request.UserID,
	payload *ChangeRolePayload) (*returntypes.UserInfo, error) {

	if err := policy.RequireOwner(rc, policy.ErrNotOwnerForRoleChange); err != nil {
		return nil, err
	}

	if reqUser.UserID == rc.User.ID {
		return nil, ErrChangeOwnRole
	}

	if !payload.Role.IsValid() {
		return nil, apierrors.NewValidationError().Add("role", "Role must be Owner, Admin or Member.")
	}

	u, err := fetchTenantUser(rc, reqUser.UserID)
	if err != nil {
		return nil, err
	}

	if err = rc.DB.Model(u).UpdateColumn("role", payload.Role).Error; err != nil {
		return nil, errors.Wrapf(err, "failed to update role of user %d", u.ID)
	}
	u.Role = payload.Role

	ret := returntypes.NewUserInfo(u)
	return &ret, nil
}

func (s BasicService) Delete(rc *request.AuthorizedContext, reqUser *request.UserID) error {
	if err := policy.RequireOwner(rc, policy.ErrNotOwnerForUserDelete); err != nil {
		return err
	}

	if reqUser.UserID == rc.User.ID {
		return ErrDeleteSelf
	}

	u, err := fetchTenantUser(rc, reqUser.UserID)
	if err != nil {
		return err
	}

	if err = rc.DB.Delete(u).Error; err != nil {
		return errors.Wrapf(err, "failed to delete user %d", u.ID)
	}

	return nil
}
