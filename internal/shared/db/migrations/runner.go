package migrations

import (
	"fmt"
	"path/filepath"

	"github.com/mattes/migrate"
	_ "github.com/mattes/migrate/database/postgres" // postgres:// driver
	_ "github.com/mattes/migrate/source/file"       // file:// source
	"github.com/pkg/errors"
	"github.com/platformplatform/account-api/internal/shared/logutil"
	redsync "gopkg.in/redsync.v1"
)

// Runner applies sql files of <projectRoot>/migrations. A redis lock keeps
// concurrently starting instances from migrating at the same time.
type Runner struct {
	lock         *redsync.Mutex
	log          logutil.Log
	dbConnString string
	sourceURL    string
}

func NewRunner(lock *redsync.Mutex, log logutil.Log, dbConnString, projectRoot string) *Runner {
	return &Runner{
		lock:         lock,
		log:          log,
		dbConnString: dbConnString,
		sourceURL:    "file://" + filepath.Join(projectRoot, "migrations"),
	}
}

type Status struct {
	Version uint
	Dirty   bool
}

func (s Status) String() string {
	if s.Version == 0 {
		return "no migrations applied"
	}
	if s.Dirty {
		return fmt.Sprintf("version %d, dirty: fix the schema and force the version", s.Version)
	}
	return fmt.Sprintf("version %d", s.Version)
}

func (r Runner) locked(f func(m *migrate.Migrate) error) error {
	if err := r.lock.Lock(); err != nil {
		return errors.Wrap(err, "can't acquire migrations lock")
	}
	defer r.lock.Unlock()

	m, err := migrate.New(r.sourceURL, r.dbConnString)
	if err != nil {
		return errors.Wrapf(err, "can't open migrations from %s", r.sourceURL)
	}
	defer m.Close()

	return f(m)
}

func status(m *migrate.Migrate) (Status, error) {
	version, dirty, err := m.Version()
	if err == migrate.ErrNilVersion {
		return Status{}, nil
	}
	if err != nil {
		return Status{}, errors.Wrap(err, "can't get migrations version")
	}
	return Status{Version: version, Dirty: dirty}, nil
}

// Run applies every pending migration.
func (r Runner) Run() error {
	return r.locked(func(m *migrate.Migrate) error {
		err := m.Up()
		if err == migrate.ErrNoChange {
			r.log.Infof("Migrations: nothing to apply")
			return nil
		}
		if err != nil {
			return errors.Wrap(err, "can't apply migrations")
		}

		st, err := status(m)
		if err != nil {
			return err
		}
		r.log.Infof("Migrations applied, %s", st)
		return nil
	})
}

// Rollback reverts the last n applied migrations.
func (r Runner) Rollback(n int) error {
	if n <= 0 {
		return fmt.Errorf("rollback of %d migrations", n)
	}

	return r.locked(func(m *migrate.Migrate) error {
		if err := m.Steps(-n); err != nil {
			return errors.Wrapf(err, "can't roll back %d migrations", n)
		}

		st, err := status(m)
		if err != nil {
			return err
		}
		r.log.Infof("Rolled back %d migrations, %s", n, st)
		return nil
	})
}

func (r Runner) Status() (Status, error) {
	var st Status
	err := r.locked(func(m *migrate.Migrate) error {
		var err error
		st, err = status(m)
		return err
	})
	return st, err
}
