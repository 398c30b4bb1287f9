package recollection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hrygo/personaflow/plugin/ai"
	"github.com/hrygo/personaflow/store"
)

const (
	embedChunkSize   = 16
	embedConcurrency = 4
)

// SQLStore implements Store on top of the relational store drivers.
type SQLStore struct {
	store    *store.Store
	embedder ai.EmbeddingService
}

// NewSQLStore creates a Store backed by st, embedding documents with embedder.
func NewSQLStore(st *store.Store, embedder ai.EmbeddingService) *SQLStore {
	return &SQLStore{store: st, embedder: embedder}
}

func (s *SQLStore) Insert(ctx context.Context, personaID string, r *Recollection) (string, error) {
	ids, err := s.InsertBatch(ctx, personaID, []*Recollection{r})
	if err != nil {
		return "", err
	}
	return ids[0], nil
}

func (s *SQLStore) InsertBatch(ctx context.Context, personaID string, rs []*Recollection) ([]string, error) {
	if len(rs) == 0 {
		return []string{}, nil
	}
	if err := PrepareBatch(personaID, rs); err != nil {
		return nil, err
	}

	vectors, err := s.embedAll(ctx, Documents(rs))
	if err != nil {
		return nil, err
	}

	rows := make([]*store.Recollection, len(rs))
	for i, r := range rs {
		row, err := toRow(r, vectors[i])
		if err != nil {
			return nil, err
		}
		rows[i] = row
	}
	if err := s.store.CreateRecollections(ctx, rows); err != nil {
		if errors.Is(err, store.ErrDuplicateKey) {
			return nil, fmt.Errorf("%w: %w", ErrDuplicateID, err)
		}
		return nil, err
	}

	slog.Info("Recollection: batch stored", "persona_id", personaID, "count", len(rs))
	return IDs(rs), nil
}

// embedAll embeds docs in chunks, several chunks at a time.
func (s *SQLStore) embedAll(ctx context.Context, docs []string) ([][]float32, error) {
	vectors := make([][]float32, len(docs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(embedConcurrency)

	for start := 0; start < len(docs); start += embedChunkSize {
		end := min(start+embedChunkSize, len(docs))
		g.Go(func() error {
			chunk, err := s.embedder.EmbedBatch(gctx, docs[start:end])
			if err != nil {
				return fmt.Errorf("embed recollections %d-%d: %w", start, end, err)
			}
			if len(chunk) != end-start {
				return fmt.Errorf("embed recollections %d-%d: got %d vectors", start, end, len(chunk))
			}
			copy(vectors[start:end], chunk)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}

func (s *SQLStore) Query(ctx context.Context, personaID, text string, opts QueryOptions) ([]*Recollection, error) {
	if opts.K <= 0 {
		return []*Recollection{}, nil
	}

	vector, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	matches, err := s.store.SearchRecollections(ctx, &store.SearchRecollection{
		PersonaID: personaID,
		Vector:    vector,
		Limit:     opts.K,
	})
	if err != nil {
		return nil, err
	}

	out := make([]*Recollection, 0, len(matches))
	for _, m := range matches {
		relevance := RelevanceFromDistance(m.Distance)
		if relevance < opts.MinRelevance {
			continue
		}
		r, err := fromRow(m.Recollection)
		if err != nil {
			slog.Warn("Recollection: skipping unreadable row", "persona_id", personaID, "id", m.Recollection.ID, "error", err)
			continue
		}
		r.Relevance = relevance
		out = append(out, r)
	}
	SortByRelevance(out)
	return out, nil
}

func (s *SQLStore) Get(ctx context.Context, personaID, id string) (*Recollection, error) {
	row, err := s.store.GetRecollection(ctx, personaID, id)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, ErrNotFound
	}
	return fromRow(row)
}

func (s *SQLStore) List(ctx context.Context, personaID string) ([]*Recollection, error) {
	rows, err := s.store.ListRecollections(ctx, &store.FindRecollection{PersonaID: &personaID})
	if err != nil {
		return nil, err
	}
	out := make([]*Recollection, 0, len(rows))
	for _, row := range rows {
		r, err := fromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *SQLStore) Update(ctx context.Context, personaID string, r *Recollection) error {
	if r.ID == "" {
		return fmt.Errorf("%w: id is required for update", ErrInvalidRecollection)
	}
	if err := r.Prepare(); err != nil {
		return err
	}
	r.PersonaID = personaID
	r.UpdatedTs = time.Now().Unix()

	vector, err := s.embedder.Embed(ctx, r.Document())
	if err != nil {
		return fmt.Errorf("embed recollection: %w", err)
	}
	row, err := toRow(r, vector)
	if err != nil {
		return err
	}

	affected, err := s.store.UpdateRecollection(ctx, &store.UpdateRecollection{
		ID:        row.ID,
		PersonaID: row.PersonaID,
		Kind:      row.Kind,
		Title:     row.Title,
		Content:   row.Content,
		Payload:   row.Payload,
		Embedding: row.Embedding,
		UpdatedTs: r.UpdatedTs,
	})
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLStore) Delete(ctx context.Context, personaID, id string) error {
	affected, err := s.store.DeleteRecollections(ctx, &store.DeleteRecollection{ID: &id, PersonaID: personaID})
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLStore) DeleteAll(ctx context.Context, personaID string) (bool, error) {
	affected, err := s.store.DeleteRecollections(ctx, &store.DeleteRecollection{PersonaID: personaID})
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func toRow(r *Recollection, vector []float32) (*store.Recollection, error) {
	payload, err := json.Marshal(r.Persistable())
	if err != nil {
		return nil, fmt.Errorf("encode recollection %s: %w", r.ID, err)
	}
	return &store.Recollection{
		ID:        r.ID,
		PersonaID: r.PersonaID,
		Kind:      string(r.Kind),
		Title:     r.Title,
		Content:   r.Content,
		Payload:   string(payload),
		Embedding: vector,
		CreatedTs: r.CreatedTs,
		UpdatedTs: r.UpdatedTs,
	}, nil
}

func fromRow(row *store.Recollection) (*Recollection, error) {
	r := &Recollection{}
	if err := json.Unmarshal([]byte(row.Payload), r); err != nil {
		return nil, fmt.Errorf("decode recollection %s: %w", row.ID, err)
	}
	// Columns are authoritative for identity and timestamps.
	r.ID = row.ID
	r.PersonaID = row.PersonaID
	r.Kind = ParseKind(row.Kind)
	r.Title = row.Title
	r.Content = row.Content
	r.CreatedTs = row.CreatedTs
	r.UpdatedTs = row.UpdatedTs
	r.Relevance = 0
	return r, nil
}
