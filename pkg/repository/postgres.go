//go:build postgres

// This file sketches how a real deployment would back the repository
// interfaces with Postgres via pgx, without pulling in ent codegen.
// It is excluded from the default build (see the "postgres" build tag
// above) because no schema/migration lives in this repo; it exists to
// show the wiring, not to run.
package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/recallhq/engine/pkg/models"
)

// PostgresRecallSetRepository is a pgx-backed RecallSetRepository.
type PostgresRecallSetRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRecallSetRepository wraps an existing pool. Callers own the
// pool's lifecycle (pgxpool.New/Close).
func NewPostgresRecallSetRepository(pool *pgxpool.Pool) *PostgresRecallSetRepository {
	return &PostgresRecallSetRepository{pool: pool}
}

func (r *PostgresRecallSetRepository) FindByID(ctx context.Context, id string) (*models.RecallSet, error) {
	row := r.pool.QueryRow(ctx, `SELECT id, name, description, created_at FROM recall_sets WHERE id = $1`, id)
	var set models.RecallSet
	if err := row.Scan(&set.ID, &set.Name, &set.Description, &set.CreatedAt); err != nil {
		return nil, mapPgError(err)
	}
	return &set, nil
}

func (r *PostgresRecallSetRepository) FindByName(ctx context.Context, name string) (*models.RecallSet, error) {
	row := r.pool.QueryRow(ctx, `SELECT id, name, description, created_at FROM recall_sets WHERE lower(name) = lower($1)`, name)
	var set models.RecallSet
	if err := row.Scan(&set.ID, &set.Name, &set.Description, &set.CreatedAt); err != nil {
		return nil, mapPgError(err)
	}
	return &set, nil
}

func (r *PostgresRecallSetRepository) Create(ctx context.Context, set *models.RecallSet) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO recall_sets (id, name, description, created_at) VALUES ($1, $2, $3, $4)`,
		set.ID, set.Name, set.Description, set.CreatedAt)
	return mapPgError(err)
}

func (r *PostgresRecallSetRepository) Update(ctx context.Context, set *models.RecallSet) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE recall_sets SET name = $2, description = $3 WHERE id = $1`,
		set.ID, set.Name, set.Description)
	if err != nil {
		return mapPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRecallSetRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM recall_sets WHERE id = $1`, id)
	if err != nil {
		return mapPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// mapPgError translates pgx.ErrNoRows into this package's ErrNotFound so
// callers never need to import pgx directly.
func mapPgError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
