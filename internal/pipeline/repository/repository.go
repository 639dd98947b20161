package repository

import (
	"context"
	"errors"
	"fmt"

	"crm_backend/platform/apperr"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// querier is satisfied by both the pool and a transaction, so single-row
// statements can run standalone or as part of a larger write.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository is the Postgres implementation of PipelineRepository.
type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// notFoundOr maps pgx.ErrNoRows to a NotFound error and wraps everything else.
func notFoundOr(err error, entity, op string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound(entity + " not found").WithOp(op)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func collect[T any](rows pgx.Rows, scan func(pgx.Row) (T, error)) ([]T, error) {
	defer rows.Close()

	items := make([]T, 0)
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
