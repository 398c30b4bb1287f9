package store

import (
	"context"

	"github.com/hrygo/personaflow/internal/profile"
)

// Store provides database access to all raw objects.
type Store struct {
	profile *profile.Profile
	driver  Driver
}

// New creates a new instance of Store.
func New(driver Driver, profile *profile.Profile) *Store {
	return &Store{
		driver:  driver,
		profile: profile,
	}
}

func (s *Store) GetDriver() Driver {
	return s.driver
}

func (s *Store) Close() error {
	return s.driver.Close()
}

func (s *Store) CreateRecollections(ctx context.Context, creates []*Recollection) error {
	return s.driver.CreateRecollections(ctx, creates)
}

func (s *Store) ListRecollections(ctx context.Context, find *FindRecollection) ([]*Recollection, error) {
	return s.driver.ListRecollections(ctx, find)
}

func (s *Store) GetRecollection(ctx context.Context, personaID, id string) (*Recollection, error) {
	list, err := s.driver.ListRecollections(ctx, &FindRecollection{ID: &id, PersonaID: &personaID, Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

func (s *Store) UpdateRecollection(ctx context.Context, update *UpdateRecollection) (int64, error) {
	return s.driver.UpdateRecollection(ctx, update)
}

func (s *Store) DeleteRecollections(ctx context.Context, delete *DeleteRecollection) (int64, error) {
	return s.driver.DeleteRecollections(ctx, delete)
}

func (s *Store) SearchRecollections(ctx context.Context, search *SearchRecollection) ([]*RecollectionMatch, error) {
	return s.driver.SearchRecollections(ctx, search)
}
