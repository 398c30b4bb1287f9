// Package chromem implements the recollection store on chromem-go, an
// embedded vector database. Each persona gets its own collection.
package chromem

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	chromem "github.com/philippgille/chromem-go"

	"github.com/hrygo/personaflow/plugin/ai"
	"github.com/hrygo/personaflow/plugin/ai/recollection"
)

const addConcurrency = 4

// Store is a recollection.Store backed by chromem-go.
type Store struct {
	db       *chromem.DB
	embedder ai.EmbeddingService
	// mu serializes writes so the existence check and the write of one call
	// see the same collection.
	mu sync.Mutex
}

var _ recollection.Store = (*Store)(nil)

// New creates an in-memory store.
func New(embedder ai.EmbeddingService) *Store {
	return &Store{db: chromem.NewDB(), embedder: embedder}
}

// NewPersistent creates a store persisted under dir.
func NewPersistent(dir string, embedder ai.EmbeddingService) (*Store, error) {
	db, err := chromem.NewPersistentDB(dir, true)
	if err != nil {
		return nil, fmt.Errorf("open chromem db at %s: %w", dir, err)
	}
	return &Store{db: db, embedder: embedder}, nil
}

func (s *Store) collection(personaID string) (*chromem.Collection, error) {
	col, err := s.db.GetOrCreateCollection(recollection.CollectionName(personaID), map[string]string{"persona_id": personaID}, nil)
	if err != nil {
		return nil, fmt.Errorf("open collection for persona %s: %w", personaID, err)
	}
	return col, nil
}

// existing returns nil when the persona has no collection yet.
func (s *Store) existing(personaID string) *chromem.Collection {
	return s.db.GetCollection(recollection.CollectionName(personaID), nil)
}

func (s *Store) Insert(ctx context.Context, personaID string, r *recollection.Recollection) (string, error) {
	ids, err := s.InsertBatch(ctx, personaID, []*recollection.Recollection{r})
	if err != nil {
		return "", err
	}
	return ids[0], nil
}

func (s *Store) InsertBatch(ctx context.Context, personaID string, rs []*recollection.Recollection) ([]string, error) {
	if len(rs) == 0 {
		return []string{}, nil
	}
	if err := recollection.PrepareBatch(personaID, rs); err != nil {
		return nil, err
	}

	vectors, err := s.embedder.EmbedBatch(ctx, recollection.Documents(rs))
	if err != nil {
		return nil, fmt.Errorf("embed recollections: %w", err)
	}
	if len(vectors) != len(rs) {
		return nil, fmt.Errorf("embed recollections: got %d vectors for %d records", len(vectors), len(rs))
	}

	docs := make([]chromem.Document, len(rs))
	for i, r := range rs {
		doc, err := toDocument(r, vectors[i])
		if err != nil {
			return nil, err
		}
		docs[i] = doc
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	col, err := s.collection(personaID)
	if err != nil {
		return nil, err
	}
	// chromem upserts by id; a taken id must not replace the stored record.
	for _, r := range rs {
		if _, err := col.GetByID(ctx, r.ID); err == nil {
			return nil, fmt.Errorf("%w: %s", recollection.ErrDuplicateID, r.ID)
		}
	}
	if err := col.AddDocuments(ctx, docs, addConcurrency); err != nil {
		return nil, fmt.Errorf("add recollections: %w", err)
	}

	slog.Info("Recollection: batch stored", "backend", "chromem", "persona_id", personaID, "count", len(rs))
	return recollection.IDs(rs), nil
}

func (s *Store) Query(ctx context.Context, personaID, text string, opts recollection.QueryOptions) ([]*recollection.Recollection, error) {
	col := s.existing(personaID)
	if col == nil || opts.K <= 0 {
		return []*recollection.Recollection{}, nil
	}
	// chromem rejects nResults larger than the collection.
	n := min(opts.K, col.Count())
	if n == 0 {
		return []*recollection.Recollection{}, nil
	}

	vector, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	results, err := col.QueryEmbedding(ctx, vector, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem query: %w", err)
	}

	out := make([]*recollection.Recollection, 0, len(results))
	for _, res := range results {
		relevance := recollection.RelevanceFromDistance(recollection.DistanceFromCosine(float64(res.Similarity)))
		if relevance < opts.MinRelevance {
			continue
		}
		r, err := fromContent(res.ID, res.Content)
		if err != nil {
			slog.Warn("Recollection: skipping unreadable document", "persona_id", personaID, "id", res.ID, "error", err)
			continue
		}
		r.Relevance = relevance
		out = append(out, r)
	}
	recollection.SortByRelevance(out)
	return out, nil
}

func (s *Store) Get(ctx context.Context, personaID, id string) (*recollection.Recollection, error) {
	col := s.existing(personaID)
	if col == nil || id == "" {
		return nil, recollection.ErrNotFound
	}
	doc, err := col.GetByID(ctx, id)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			return nil, recollection.ErrNotFound
		}
		return nil, err
	}
	return fromContent(doc.ID, doc.Content)
}

func (s *Store) List(ctx context.Context, personaID string) ([]*recollection.Recollection, error) {
	col := s.existing(personaID)
	if col == nil || col.Count() == 0 {
		return []*recollection.Recollection{}, nil
	}
	// chromem has no scan; every document is reachable by querying the full collection.
	dims := s.embedder.Dimensions()
	if dims < 1 {
		return nil, fmt.Errorf("chromem list: embedder reports %d dimensions", dims)
	}
	probe := make([]float32, dims)
	probe[0] = 1
	results, err := col.QueryEmbedding(ctx, probe, col.Count(), nil, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem list: %w", err)
	}
	out := make([]*recollection.Recollection, 0, len(results))
	for _, res := range results {
		r, err := fromContent(res.ID, res.Content)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	sortByCreated(out)
	return out, nil
}

func (s *Store) Update(ctx context.Context, personaID string, r *recollection.Recollection) error {
	if r.ID == "" {
		return fmt.Errorf("%w: id is required for update", recollection.ErrInvalidRecollection)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.Get(ctx, personaID, r.ID)
	if err != nil {
		return err
	}
	r.CreatedTs = current.CreatedTs
	if err := recollection.PrepareBatch(personaID, []*recollection.Recollection{r}); err != nil {
		return err
	}
	vector, err := s.embedder.Embed(ctx, r.Document())
	if err != nil {
		return fmt.Errorf("embed recollection: %w", err)
	}
	doc, err := toDocument(r, vector)
	if err != nil {
		return err
	}

	// AddDocument replaces by id in one write.
	if err := s.existing(personaID).AddDocument(ctx, doc); err != nil {
		return fmt.Errorf("replace recollection %s: %w", r.ID, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, personaID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.Get(ctx, personaID, id); err != nil {
		return err
	}
	return s.existing(personaID).Delete(ctx, nil, nil, id)
}

func (s *Store) DeleteAll(_ context.Context, personaID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.existing(personaID) == nil {
		return false, nil
	}
	if err := s.db.DeleteCollection(recollection.CollectionName(personaID)); err != nil {
		return false, fmt.Errorf("drop collection for persona %s: %w", personaID, err)
	}
	return true, nil
}

func toDocument(r *recollection.Recollection, vector []float32) (chromem.Document, error) {
	content, err := json.Marshal(r.Persistable())
	if err != nil {
		return chromem.Document{}, fmt.Errorf("encode recollection %s: %w", r.ID, err)
	}
	return chromem.Document{
		ID: r.ID,
		Metadata: map[string]string{
			"persona_id": r.PersonaID,
			"kind":       string(r.Kind),
			"title":      r.Title,
		},
		Embedding: vector,
		Content:   string(content),
	}, nil
}

func fromContent(id, content string) (*recollection.Recollection, error) {
	r := &recollection.Recollection{}
	if err := json.Unmarshal([]byte(content), r); err != nil {
		return nil, fmt.Errorf("decode recollection %s: %w", id, err)
	}
	r.ID = id
	r.Relevance = 0
	return r, nil
}

func sortByCreated(rs []*recollection.Recollection) {
	sort.SliceStable(rs, func(i, j int) bool {
		if rs[i].CreatedTs != rs[j].CreatedTs {
			return rs[i].CreatedTs < rs[j].CreatedTs
		}
		return rs[i].ID < rs[j].ID
	})
}
