package gormdb

import (
	"testing"

	"github.com/platformplatform/account-api/internal/shared/config"
	"github.com/platformplatform/account-api/internal/shared/logutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetDBConnString(t *testing.T) {
	base := config.NewEnvConfig(logutil.NewStderrLog("test"))

	s, err := GetDBConnString(config.NewMapConfig(map[string]string{
		"DATABASE_URL": "postgresql://u:p@localhost/accounts",
	}, base))
	require.NoError(t, err)
	assert.Equal(t, "postgres://u:p@localhost/accounts", s)

	s, err = GetDBConnString(config.NewMapConfig(map[string]string{
		"DATABASE_URL":         "",
		"DATABASE_HOST":        "db:5432",
		"DATABASE_USERNAME":    "u",
		"DATABASE_PASSWORD":    "p",
		"DATABASE_NAME":        "accounts",
		"DATABASE_DISABLE_SSL": "true",
	}, base))
	require.NoError(t, err)
	assert.Equal(t, "postgres://u:p@db:5432/accounts?sslmode=disable", s)

	s, err = GetDBConnString(config.NewMapConfig(map[string]string{
		"DATABASE_URL":      "",
		"DATABASE_HOST":     "db",
		"DATABASE_USERNAME": "u",
		"DATABASE_PASSWORD": "p@ss",
		"DATABASE_NAME":     "accounts",
	}, base))
	require.NoError(t, err)
	assert.Equal(t, "postgres://u:p%40ss@db/accounts?sslmode=require", s)

	_, err = GetDBConnString(config.NewMapConfig(map[string]string{
		"DATABASE_URL":  "",
		"DATABASE_HOST": "",
	}, base))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_HOST")
}
