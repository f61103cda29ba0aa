package tenant

import (
	"github.com/pkg/errors"
	"github.com/platformplatform/account-api/internal/api/apierrors"
	"github.com/platformplatform/account-api/internal/api/validation"
	"github.com/platformplatform/account-api/internal/shared/logutil"
	"github.com/platformplatform/account-api/pkg/api/models"
	"github.com/platformplatform/account-api/pkg/api/policy"
	"github.com/platformplatform/account-api/pkg/api/request"
	"github.com/platformplatform/account-api/pkg/api/returntypes"
)

const maxNameLength = 30

type UpdatePayload struct {
	Name    string `json:"name"`
	Version int    `json:"version"`
}

func (p UpdatePayload) FillLogContext(lctx logutil.Context) {
	lctx["version"] = p.Version
}

func (p UpdatePayload) validate() error {
	v := apierrors.NewValidationError()
	validation.Required(v, "name", p.Name, "Name")
	validation.MaxLength(v, "name", p.Name, "Name", maxNameLength)
	return v.OrNil()
}

type Service interface {
	//url:/api/account/tenants/current
	GetCurrent(rc *request.AuthorizedContext) (*returntypes.TenantInfo, error)

	//url:/api/account/tenants/current method:PUT
	UpdateCurrent(rc *request.AuthorizedContext, payload *UpdatePayload) (*returntypes.TenantInfo, error)
}

type BasicService struct{}

func (s BasicService) GetCurrent(rc *request.AuthorizedContext) (*returntypes.TenantInfo, error) {
	ret := returntypes.NewTenantInfo(rc.Tenant)
	return &ret, nil
}

func (s BasicService) UpdateCurrent(rc *request.AuthorizedContext, payload *UpdatePayload) (*returntypes.TenantInfo, error) {
	if err := policy.RequireOwner(rc, policy.ErrNotOwnerForTenantUpdate); err != nil {
		return nil, err
	}

	if err := payload.validate(); err != nil {
		return nil, err
	}

	err := models.UpdateVersioned(rc.DB, &models.Tenant{}, rc.Tenant.ID, payload.Version, map[string]interface{}{
		"name": payload.Name,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to update tenant")
	}

	var t models.Tenant
	if err = rc.DB.Where("id = ?", rc.Tenant.ID).First(&t).Error; err != nil {
		return nil, errors.Wrap(err, "failed to fetch updated tenant")
	}

	ret := returntypes.NewTenantInfo(&t)
	return &ret, nil
}
