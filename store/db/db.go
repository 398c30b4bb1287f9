package db

import (
	"github.com/pkg/errors"

	"github.com/hrygo/personaflow/internal/profile"
	"github.com/hrygo/personaflow/store"
	"github.com/hrygo/personaflow/store/db/postgres"
	"github.com/hrygo/personaflow/store/db/sqlite"
)

// NewDBDriver creates new db driver based on profile.
//
// PostgreSQL ranks recollections with pgvector inside the database.
// SQLite loads the persona's whole recollection set and ranks it in process,
// which is the graph-style retrieval path and fine for small personas.
func NewDBDriver(profile *profile.Profile) (store.Driver, error) {
	var driver store.Driver
	var err error

	switch profile.Driver {
	case "sqlite":
		driver, err = sqlite.NewDB(profile)
	case "postgres":
		driver, err = postgres.NewDB(profile)
	default:
		return nil, errors.Errorf("unknown db driver %q: only 'postgres' and 'sqlite' are supported", profile.Driver)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to create db driver")
	}
	return driver, nil
}
