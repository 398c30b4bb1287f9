package store

import (
	"context"
	"database/sql"
	"errors"
)

// ErrDuplicateKey is returned by drivers when a create violates a primary key.
var ErrDuplicateKey = errors.New("duplicate key")

// Driver is an interface for store driver.
// It contains all methods that store database driver should implement.
type Driver interface {
	GetDB() *sql.DB
	Close() error

	// Name returns the driver name, which selects the migration directory.
	Name() string
	IsInitialized(ctx context.Context) (bool, error)

	// Recollection model related methods.
	// CreateRecollections is atomic; a taken id fails the whole batch with ErrDuplicateKey.
	CreateRecollections(ctx context.Context, creates []*Recollection) error
	ListRecollections(ctx context.Context, find *FindRecollection) ([]*Recollection, error)
	UpdateRecollection(ctx context.Context, update *UpdateRecollection) (int64, error)
	DeleteRecollections(ctx context.Context, delete *DeleteRecollection) (int64, error)

	// SearchRecollections ranks a persona's recollections by distance to the
	// query vector. Distance is the squared L2 distance between unit vectors.
	SearchRecollections(ctx context.Context, search *SearchRecollection) ([]*RecollectionMatch, error)
}
