package recollection

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// QueryOptions tunes a similarity query.
type QueryOptions struct {
	// K is the number of nearest candidates to consider.
	K int
	// MinRelevance drops candidates scoring below it.
	MinRelevance float64
}

// Store is the recollection store adapter. Every method is scoped to one
// persona's recollection space; ids are unique within it.
type Store interface {
	// Insert validates and stores one recollection, returning its id.
	// An id already present in the persona's space yields ErrDuplicateID.
	Insert(ctx context.Context, personaID string, r *Recollection) (string, error)
	// InsertBatch validates every record first and stores none if one is invalid.
	InsertBatch(ctx context.Context, personaID string, rs []*Recollection) ([]string, error)
	// Query returns recollections ranked by descending relevance, Relevance set.
	// A persona with no recollections yields an empty list and no error.
	Query(ctx context.Context, personaID, text string, opts QueryOptions) ([]*Recollection, error)
	// Get returns ErrNotFound when id is not in the persona's space.
	Get(ctx context.Context, personaID, id string) (*Recollection, error)
	List(ctx context.Context, personaID string) ([]*Recollection, error)
	// Update replaces an existing recollection; ErrNotFound when missing.
	Update(ctx context.Context, personaID string, r *Recollection) error
	Delete(ctx context.Context, personaID, id string) error
	// DeleteAll drops the persona's space and reports whether anything existed.
	DeleteAll(ctx context.Context, personaID string) (bool, error)
}

// CollectionName returns the per-persona collection name used by document backends.
func CollectionName(personaID string) string {
	return "character_memories_" + personaID
}

// PrepareBatch validates every record and assigns ownership, ids and timestamps.
// Records are modified in place. An id repeated within rs yields ErrDuplicateID.
func PrepareBatch(personaID string, rs []*Recollection) error {
	now := time.Now().Unix()
	seen := make(map[string]struct{}, len(rs))
	for _, r := range rs {
		if err := r.Prepare(); err != nil {
			return err
		}
		r.PersonaID = personaID
		if r.ID == "" {
			r.ID = uuid.NewString()
		}
		if _, dup := seen[r.ID]; dup {
			return fmt.Errorf("%w: %s repeated in batch", ErrDuplicateID, r.ID)
		}
		seen[r.ID] = struct{}{}
		if r.CreatedTs == 0 {
			r.CreatedTs = now
		}
		r.UpdatedTs = now
		r.Relevance = 0
	}
	return nil
}

// Documents returns the embeddable text of each record.
func Documents(rs []*Recollection) []string {
	docs := make([]string, len(rs))
	for i, r := range rs {
		docs[i] = r.Document()
	}
	return docs
}

// IDs returns the id of each record.
func IDs(rs []*Recollection) []string {
	ids := make([]string, len(rs))
	for i, r := range rs {
		ids[i] = r.ID
	}
	return ids
}

// SortByRelevance orders rs by descending relevance, ties broken by id.
func SortByRelevance(rs []*Recollection) {
	sort.SliceStable(rs, func(i, j int) bool {
		if rs[i].Relevance != rs[j].Relevance {
			return rs[i].Relevance > rs[j].Relevance
		}
		return rs[i].ID < rs[j].ID
	})
}
