package sqlite

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

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
	now := time.Now().Unix()
	for _, create := range creates {
		if create.CreatedTs == 0 {
			create.CreatedTs = now
		}
		if create.UpdatedTs == 0 {
			create.UpdatedTs = create.CreatedTs
		}
		if _, err := tx.ExecContext(ctx, stmt,
			create.ID,
			create.PersonaID,
			create.Kind,
			create.Title,
			create.Content,
			create.Payload,
			encodeVector(create.Embedding),
			create.CreatedTs,
			create.UpdatedTs,
		); err != nil {
			if isPrimaryKeyViolation(err) {
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
		where, args = append(where, "id = ?"), append(args, *find.ID)
	}
	if find.PersonaID != nil {
		where, args = append(where, "persona_id = ?"), append(args, *find.PersonaID)
	}
	if find.Kind != nil {
		where, args = append(where, "kind = ?"), append(args, *find.Kind)
	}

	query := `SELECT ` + recollectionColumns + ` FROM recollection WHERE ` + strings.Join(where, " AND ") + ` ORDER BY created_ts ASC, id ASC`
	if find.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", find.Limit)
		if find.Offset > 0 {
			query += fmt.Sprintf(" OFFSET %d", find.Offset)
		}
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list recollections: %w", err)
	}
	defer rows.Close()

	list := make([]*store.Recollection, 0)
	for rows.Next() {
		r := &store.Recollection{}
		var blob []byte
		if err := rows.Scan(&r.ID, &r.PersonaID, &r.Kind, &r.Title, &r.Content, &r.Payload, &blob, &r.CreatedTs, &r.UpdatedTs); err != nil {
			return nil, fmt.Errorf("failed to scan recollection: %w", err)
		}
		if r.Embedding, err = decodeVector(blob); err != nil {
			return nil, fmt.Errorf("recollection %s: %w", r.ID, err)
		}
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

	stmt := `UPDATE recollection SET kind = ?, title = ?, content = ?, payload = ?, embedding = ?, updated_ts = ?
		WHERE id = ? AND persona_id = ?`
	result, err := d.db.ExecContext(ctx, stmt,
		update.Kind,
		update.Title,
		update.Content,
		update.Payload,
		encodeVector(update.Embedding),
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

	where, args := []string{"persona_id = ?"}, []any{delete.PersonaID}
	if delete.ID != nil {
		where, args = append(where, "id = ?"), append(args, *delete.ID)
	}

	result, err := d.db.ExecContext(ctx, `DELETE FROM recollection WHERE `+strings.Join(where, " AND "), args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete recollections: %w", err)
	}
	return result.RowsAffected()
}

// SearchRecollections loads every recollection reachable from the persona and
// ranks them in process. SQLite has no vector index, so this is a full scan
// of one persona's space.
func (d *DB) SearchRecollections(ctx context.Context, search *store.SearchRecollection) ([]*store.RecollectionMatch, error) {
	if search.Limit <= 0 {
		return []*store.RecollectionMatch{}, nil
	}

	personaID := search.PersonaID
	list, err := d.ListRecollections(ctx, &store.FindRecollection{PersonaID: &personaID})
	if err != nil {
		return nil, err
	}

	matches := make([]*store.RecollectionMatch, 0, len(list))
	for _, r := range list {
		matches = append(matches, &store.RecollectionMatch{
			Recollection: r,
			Distance:     squaredDistance(search.Vector, r.Embedding),
		})
	}
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Distance != matches[j].Distance {
			return matches[i].Distance < matches[j].Distance
		}
		return matches[i].Recollection.ID < matches[j].Recollection.ID
	})
	if len(matches) > search.Limit {
		matches = matches[:search.Limit]
	}

	return matches, nil
}
