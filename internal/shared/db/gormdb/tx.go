package gormdb

import (
	"database/sql"

	"github.com/jinzhu/gorm"
	"github.com/pkg/errors"
)

type FinishTxFunc func(err *error)

// StartTx begins transaction; callers must defer the returned finish func
// with their named error result.
func StartTx(db *gorm.DB) (*gorm.DB, FinishTxFunc, error) {
	tx := db.Begin()
	if tx.Error != nil {
		return nil, nil, errors.Wrap(tx.Error, "failed to start transaction")
	}

	finish := func(err *error) {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}

		FinishTx(tx, err)
	}
	return tx, finish, nil
}

func FinishTx(tx *gorm.DB, err *error) {
	if *err != nil {
		if rollbackErr := tx.Rollback().Error; rollbackErr != nil {
			*err = errors.Wrapf(*err, "failed to rollback transaction: %s", rollbackErr)
		}
		return
	}

	if commitErr := tx.Commit().Error; commitErr != nil {
		*err = errors.Wrap(commitErr, "failed to commit transaction")
	}
}

func FinishSQLTx(tx *sql.Tx, err *error) {
	if *err != nil {
		if rollbackErr := tx.Rollback(); rollbackErr != nil {
			*err = errors.Wrapf(*err, "failed to rollback transaction: %s", rollbackErr)
		}
		return
	}

	if commitErr := tx.Commit(); commitErr != nil {
		*err = errors.Wrap(commitErr, "failed to commit transaction")
	}
}

// IsRecordNotFound also sees through wrapped errors
func IsRecordNotFound(err error) bool {
	return gorm.IsRecordNotFoundError(errors.Cause(err))
}
