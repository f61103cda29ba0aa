package gormdb

import (
	"net/url"
	"strings"

	"github.com/jinzhu/gorm"
	_ "github.com/jinzhu/gorm/dialects/postgres" // postgres driver
	"github.com/pkg/errors"
	"github.com/platformplatform/account-api/internal/shared/config"
	"github.com/platformplatform/account-api/internal/shared/logutil"
)

// GetDBConnString takes DATABASE_URL or builds the url from DATABASE_* parts.
func GetDBConnString(cfg config.Config) (string, error) {
	if dbURL := cfg.GetString("DATABASE_URL"); dbURL != "" {
		// heroku style urls
		if strings.HasPrefix(dbURL, "postgresql://") {
			dbURL = "postgres://" + strings.TrimPrefix(dbURL, "postgresql://")
		}
		return dbURL, nil
	}

	parts := map[string]string{}
	for _, k := range []string{"HOST", "USERNAME", "PASSWORD", "NAME"} {
		v := cfg.GetString("DATABASE_" + k)
		if v == "" {
			return "", errors.Errorf("no DATABASE_URL and no DATABASE_%s in config", k)
		}
		parts[k] = v
	}

	sslMode := "require"
	if cfg.GetBool("DATABASE_DISABLE_SSL", false) {
		sslMode = "disable"
	}

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(parts["USERNAME"], parts["PASSWORD"]),
		Host:     parts["HOST"],
		Path:     "/" + parts["NAME"],
		RawQuery: url.Values{"sslmode": {sslMode}}.Encode(),
	}
	return u.String(), nil
}

func GetDB(cfg config.Config, log logutil.Log, connString string) (*gorm.DB, error) {
	if connString == "" {
		var err error
		if connString, err = GetDBConnString(cfg); err != nil {
			return nil, err
		}
	}

	dialect := connString
	if i := strings.Index(connString, "://"); i != -1 {
		dialect = connString[:i]
	}

	db, err := gorm.Open(dialect, connString)
	if err != nil {
		return nil, errors.Wrapf(err, "can't open %s db", dialect)
	}

	return Configure(db, cfg, log), nil
}

// Configure sets up logging and the connection pool of an opened db.
func Configure(db *gorm.DB, cfg config.Config, log logutil.Log) *gorm.DB {
	if cfg.GetBool("DEBUG_DB", false) {
		db = db.Debug()
	}
	db.SetLogger(logger{log: log.Child("db")})

	pool := db.DB()
	pool.SetMaxOpenConns(cfg.GetInt("DATABASE_MAX_OPEN_CONNS", 20))
	pool.SetMaxIdleConns(cfg.GetInt("DATABASE_MAX_IDLE_CONNS", 5))
	pool.SetConnMaxLifetime(cfg.GetDuration("DATABASE_CONN_MAX_LIFETIME", 0))

	return db
}
