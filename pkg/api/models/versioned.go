package models

import (
	"github.com/jinzhu/gorm"
	"github.com/pkg/errors"
	"github.com/platformplatform/account-api/internal/api/apierrors"
)

// UpdateVersioned updates fields of the row with given id only if its version is still the same,
// then bumps the version.
func UpdateVersioned(db *gorm.DB, model interface{}, id uint, version int, fields map[string]interface{}) error {
	fields["version"] = version + 1
	res := db.Model(model).Where("id = ? AND version = ?", id, version).Updates(fields)
	if res.Error != nil {
		return errors.Wrapf(res.Error, "failed to update row %d", id)
	}

	if res.RowsAffected == 0 {
		return apierrors.NewRaceConditionError("data was changed in parallel request")
	}

	return nil
}

func IsRaceCondition(err error) bool {
	_, ok := errors.Cause(err).(*apierrors.RaceConditionError)
	return ok
}

// All is used by auto migrations in tests.
func All() []interface{} {
	return []interface{}{
		&Tenant{},
		&User{},
		&EmailLogin{},
		&Subscription{},
		&PaymentTransaction{},
		&StripeEvent{},
	}
}
