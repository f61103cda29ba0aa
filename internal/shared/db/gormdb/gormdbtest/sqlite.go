// Package gormdbtest opens in-memory databases for tests.
package gormdbtest

import (
	"testing"

	"github.com/jinzhu/gorm"
	_ "github.com/jinzhu/gorm/dialects/sqlite" // init sqlite driver
	"github.com/stretchr/testify/require"
)

// OpenSQLite returns an in-memory database with tables for given models.
// There is only one connection: a transaction blocks all other queries.
func OpenSQLite(t testing.TB, models ...interface{}) *gorm.DB {
	db, err := gorm.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.DB().SetMaxOpenConns(1)
	db.LogMode(false)

	require.NoError(t, db.AutoMigrate(models...).Error)
	t.Cleanup(func() { db.Close() })

	return db
}
