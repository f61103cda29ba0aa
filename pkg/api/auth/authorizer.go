package auth

import (
	"github.com/jinzhu/gorm"
	"github.com/pkg/errors"
	"github.com/platformplatform/account-api/internal/api/apierrors"
	"github.com/platformplatform/account-api/internal/api/session"
	"github.com/platformplatform/account-api/internal/shared/db/gormdb"
	"github.com/platformplatform/account-api/pkg/api/models"
)

const userIDSessKey = "UserID"
const sessType = "s"

type Authorizer struct {
	db  *gorm.DB
	asf *session.Factory
}

func NewAuthorizer(db *gorm.DB, asf *session.Factory) *Authorizer {
	return &Authorizer{
		db:  db,
		asf: asf,
	}
}

type AuthenticatedUser struct {
	AuthSess *session.Session

	User   *models.User
	Tenant *models.Tenant
}

func (a Authorizer) Authorize(sctx *session.RequestContext) (*AuthenticatedUser, error) {
	authSess, err := a.asf.Build(sctx, sessType)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build auth sess")
	}

	userID, err := getUserIDFromSession(authSess)
	if err != nil {
		return nil, err
	}

	var user models.User
	if err := a.db.Where("id = ?", userID).First(&user).Error; err != nil {
		if gormdb.IsRecordNotFound(err) {
			// user was deleted while the session was alive
			return nil, errors.Wrapf(apierrors.ErrNotAuthorized, "no user with id %d", userID)
		}
		return nil, errors.Wrapf(err, "failed to fetch user %d from db", userID)
	}

	var tenant models.Tenant
	if err := a.db.Where("id = ?", user.TenantID).First(&tenant).Error; err != nil {
		return nil, errors.Wrapf(err, "failed to fetch tenant %d of user %d", user.TenantID, user.ID)
	}

	return &AuthenticatedUser{
		AuthSess: authSess,
		User:     &user,
		Tenant:   &tenant,
	}, nil
}

func getUserIDFromSession(authSess *session.Session) (uint, error) {
	if authSess.GetValue(userIDSessKey) == nil {
		return 0, apierrors.ErrNotAuthorized
	}

	userID, ok := authSess.GetUint(userIDSessKey)
	if !ok || userID == 0 {
		return 0, errors.Wrapf(apierrors.ErrNotAuthorized, "invalid user id %#v in session", authSess.GetValue(userIDSessKey))
	}
	return userID, nil
}

func (a Authorizer) CreateAuthorization(sctx *session.RequestContext, user *models.User) error {
	authSess, err := a.asf.Build(sctx, sessType)
	if err != nil {
		return errors.Wrap(err, "failed to build auth sess")
	}

	authSess.Set(userIDSessKey, user.ID)
	return nil
}

func (a Authorizer) Logout(sctx *session.RequestContext) error {
	authSess, err := a.asf.Build(sctx, sessType)
	if err != nil {
		return errors.Wrap(err, "failed to build auth sess")
	}

	authSess.Delete()
	return nil
}
