package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pgvector/pgvector-go"

	"github.com/hrygo/personaflow/store"
)

const recollectionColumns = "id, persona_id, kind, title, content, payload, embedding, created_ts, updated_ts"

func (d *DB) CreateRecollections(ctx context.Context, creates []*store.Recollection) error {
	if len(creates) == 0 {
		return nil
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt := `INSERT INTO recollection (` + recollectionColumns + `) VALUES (` + placeholders(9) + `)`
	prepared, err := tx.PrepareContext(ctx, stmt)
	if err != nil {
		return fmt.Errorf("failed to prepare recollection insert: %w", err)
	}
	defer prepared.Close()

	now := time.Now().Unix()
	for _, create := range creates {
		if create.CreatedTs == 0 {
			create.CreatedTs = now
		}
		if create.UpdatedTs == 0 {
			create.UpdatedTs = create.CreatedTs
		}
		if _, err := prepared.ExecContext(ctx,
			create.ID,
			create.PersonaID,
			create.Kind,
			create.Title,
			create.Content,
			create.Payload,
			pgvector.NewVector(create.Embedding),
			create.CreatedTs,
			create.UpdatedTs,
		); err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("failed to create recollection %s: %w: %w", create.ID, store.ErrDuplicateKey, err)
			}
			return fmt.Errorf("failed to create recollection %s: %w", create.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit recollections: %w", err)
	}
	return nil
}

func (d *DB) ListRecollections(ctx context.Context, find *store.FindRecollection) ([]*store.Recollection, error) {
	if find == nil {
		return nil, fmt.Errorf("find parameter cannot be nil")
	}

	where, args := []string{"1 = 1"}, []any{}
	if find.ID != nil {
		where, args = append(where, "id = "+placeholder(len(args)+1)), append(args, *find.ID)
	}
	if find.PersonaID != nil {
		where, args = append(where, "persona_id = "+placeholder(len(args)+1)), append(args, *find.PersonaID)
	}
	if find.Kind != nil {
		where, args = append(where, "kind = "+placeholder(len(args)+1)), append(args, *find.Kind)
	}

	query := `SELECT ` + recollectionColumns + ` FROM recollection WHERE ` + strings.Join(where, " AND ") + ` ORDER BY created_ts ASC, id ASC`
	if find.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", find.Limit)
	}
	if find.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", find.Offset)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list recollections: %w", err)
	}
	defer rows.Close()

	list := make([]*store.Recollection, 0)
	for rows.Next() {
		r := &store.Recollection{}
		var vector pgvector.Vector
		if err := rows.Scan(&r.ID, &r.PersonaID, &r.Kind, &r.Title, &r.Content, &r.Payload, &vector, &r.CreatedTs, &r.UpdatedTs); err != nil {
			return nil, fmt.Errorf("failed to scan recollection: %w", err)
		}
		r.Embedding = vector.Slice()
		list = append(list, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate recollections: %w", err)
	}

	return list, nil
}

func (d *DB) UpdateRecollection(ctx context.Context, update *store.UpdateRecollection) (int64, error) {
	if update.UpdatedTs == 0 {
		update.UpdatedTs = time.Now().Unix()
	}

	stmt := `UPDATE recollection SET kind = $1, title = $2, content = $3, payload = $4, embedding = $5, updated_ts = $6
		WHERE id = $7 AND persona_id = $8`
	result, err := d.db.ExecContext(ctx, stmt,
		update.Kind,
		update.Title,
		update.Content,
		update.Payload,
		pgvector.NewVector(update.Embedding),
		update.UpdatedTs,
		update.ID,
		update.PersonaID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to update recollection: %w", err)
	}
	return result.RowsAffected()
}

func (d *DB) DeleteRecollections(ctx context.Context, delete *store.DeleteRecollection) (int64, error) {
	if delete == nil || delete.PersonaID == "" {
		return 0, fmt.Errorf("persona_id is required to delete recollections")
	}

	where, args := []string{"persona_id = $1"}, []any{delete.PersonaID}
	if delete.ID != nil {
		where, args = append(where, "id = "+placeholder(len(args)+1)), append(args, *delete.ID)
	}

	result, err := d.db.ExecContext(ctx, `DELETE FROM recollection WHERE `+strings.Join(where, " AND "), args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete recollections: %w", err)
	}
	return result.RowsAffected()
}

// SearchRecollections performs vector similarity search using pgvector.
// The <=> operator computes cosine distance (1 - cosine_similarity); doubling
// it gives the squared L2 distance between unit vectors.
func (d *DB) SearchRecollections(ctx context.Context, search *store.SearchRecollection) ([]*store.RecollectionMatch, error) {
	if search.Limit <= 0 {
		return []*store.RecollectionMatch{}, nil
	}

	query := `SELECT ` + recollectionColumns + `, 2 * (embedding <=> $1) AS distance
		FROM recollection
		WHERE persona_id = $2
		ORDER BY embedding <=> $1, id
		LIMIT $3`

	rows, err := d.db.QueryContext(ctx, query, pgvector.NewVector(search.Vector), search.PersonaID, search.Limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search recollections: %w", err)
	}
	defer rows.Close()

	matches := make([]*store.RecollectionMatch, 0, search.Limit)
	for rows.Next() {
		r := &store.Recollection{}
		var vector pgvector.Vector
		var distance float64
		if err := rows.Scan(&r.ID, &r.PersonaID, &r.Kind, &r.Title, &r.Content, &r.Payload, &vector, &r.CreatedTs, &r.UpdatedTs, &distance); err != nil {
			return nil, fmt.Errorf("failed to scan recollection match: %w", err)
		}
		r.Embedding = vector.Slice()
		matches = append(matches, &store.RecollectionMatch{Recollection: r, Distance: distance})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate recollection matches: %w", err)
	}

	return matches, nil
}
