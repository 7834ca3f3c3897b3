package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
)

// First executes the query and returns the first matching record, or nil
// when nothing matches.
func (q *QueryBuilder[T]) First(ctx context.Context) (*T, error) {
	start := time.Now()

	var data T
	err := WithRetry(ctx, func() error {
		return q.buildSelect(&data).Limit(1).Scan(ctx)
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to execute first query: %w (took %v)", err, time.Since(start))
	}

	return &data, nil
}

// Update sets the given columns on every matching record with automatic retry
func (q *QueryBuilder[T]) Update(ctx context.Context, data map[string]any) (int, error) {
	if len(q.wheres) == 0 {
		return 0, errors.New("refusing to update without a WHERE clause")
	}
	if len(data) == 0 {
		return 0, nil
	}

	start := time.Now()

	var rowsAffected int64
	err := WithRetry(ctx, func() error {
		query := q.buildUpdate((*T)(nil))
		for _, column := range sortedKeys(data) {
			query = query.Set("? = ?", bun.Ident(column), data[column])
		}

		res, err := query.Exec(ctx)
		if err != nil {
			return err
		}
		rowsAffected, _ = res.RowsAffected()
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to execute update query: %w (took %v)", err, time.Since(start))
	}

	return int(rowsAffected), nil
}
