package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/zimmed/zimmed-core/internal/datamodel"
	"github.com/zimmed/zimmed-core/internal/store"
)

const modelColumns = `kind, id, rules, vals, created_at, updated_at`

// modelRepository implements store.ModelRepository using SQLite.
type modelRepository struct {
	db  *sql.DB
	now func() time.Time
}

func newModelRepository(db *sql.DB) *modelRepository {
	return &modelRepository{db: db, now: time.Now}
}

var _ Repository = (*modelRepository)(nil)

func scanModel(scanner interface{ Scan(...any) error }) (*ModelRow, error) {
	var row ModelRow
	err := scanner.Scan(&row.Kind, &row.ID, &row.Rules, &row.Values, &row.CreatedAt, &row.UpdatedAt)
	return &row, err
}

// Save inserts the document or replaces the rules and values of the row
// already stored under its kind and id.
func (r *modelRepository) Save(ctx context.Context, doc *datamodel.Document) error {
	row, err := toModelRow(doc, r.now())
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO models (`+modelColumns+`) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (kind, id) DO UPDATE SET
			rules = excluded.rules,
			vals = excluded.vals,
			updated_at = excluded.updated_at`,
		row.Kind, row.ID, row.Rules, row.Values, row.CreatedAt, row.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save model %s/%s: %w", doc.Kind, doc.ID, err)
	}
	return nil
}

// Find returns store.ModelNotFoundError if no row matches.
func (r *modelRepository) Find(ctx context.Context, kind, id string) (*datamodel.Document, error) {
	row, err := r.findRow(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	return row.toDocument()
}

func (r *modelRepository) findRow(ctx context.Context, kind, id string) (*ModelRow, error) {
	row, err := scanModel(r.db.QueryRowContext(ctx,
		`SELECT `+modelColumns+` FROM models WHERE kind = ? AND id = ?`, kind, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &store.ModelNotFoundError{Kind: kind, ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find model %s/%s: %w", kind, id, err)
	}
	return row, nil
}

// Delete returns store.ModelNotFoundError if no row matches.
func (r *modelRepository) Delete(ctx context.Context, kind, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM models WHERE kind = ? AND id = ?`, kind, id)
	if err != nil {
		return fmt.Errorf("failed to delete model %s/%s: %w", kind, id, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return &store.ModelNotFoundError{Kind: kind, ID: id}
	}
	return nil
}

// List orders by id within a kind, by kind then id across kinds.
func (r *modelRepository) List(ctx context.Context, kind string) ([]*datamodel.Document, error) {
	query := `SELECT ` + modelColumns + ` FROM models ORDER BY kind, id`
	var args []any
	if kind != "" {
		query = `SELECT ` + modelColumns + ` FROM models WHERE kind = ? ORDER BY id`
		args = append(args, kind)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}
	defer rows.Close()

	var docs []*datamodel.Document
	for rows.Next() {
		row, err := scanModel(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan model: %w", err)
		}
		doc, err := row.toDocument()
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate models: %w", err)
	}
	return docs, nil
}

// Timestamps returns when the model was first and last saved.
func (r *modelRepository) Timestamps(ctx context.Context, kind, id string) (created, updated time.Time, err error) {
	row, err := r.findRow(ctx, kind, id)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return time.Unix(row.CreatedAt, 0), time.Unix(row.UpdatedAt, 0), nil
}
