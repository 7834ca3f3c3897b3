package database

import (
	"fmt"

	"github.com/uptrace/bun"
)

// QueryBuilder provides a fluent, type-safe API for building single table
// lookups over a bun model.
type QueryBuilder[T any] struct {
	db     bun.IDB
	wheres []*WhereClause
}

// WhereClause represents a WHERE condition
type WhereClause struct {
	Column   string
	Operator string
	Value    any
}

// Query creates a new QueryBuilder instance against a database or transaction
func Query[T any](db bun.IDB) *QueryBuilder[T] {
	return &QueryBuilder[T]{db: db}
}

// Where adds an equality condition
func (q *QueryBuilder[T]) Where(column string, value any) *QueryBuilder[T] {
	return q.WhereOp(column, "=", value)
}

// WhereOp adds a condition with a custom operator
func (q *QueryBuilder[T]) WhereOp(column, operator string, value any) *QueryBuilder[T] {
	q.wheres = append(q.wheres, &WhereClause{Column: column, Operator: operator, Value: value})
	return q
}

// condition renders a structured clause into bun's placeholder syntax.
func (w *WhereClause) condition() (string, []any) {
	return fmt.Sprintf("? %s ?", w.Operator), []any{bun.Ident(w.Column), w.Value}
}

func (q *QueryBuilder[T]) buildSelect(model any) *bun.SelectQuery {
	query := q.db.NewSelect().Model(model)
	for _, where := range q.wheres {
		sql, args := where.condition()
		query = query.Where(sql, args...)
	}
	return query
}

func (q *QueryBuilder[T]) buildUpdate(model any) *bun.UpdateQuery {
	query := q.db.NewUpdate().Model(model)
	for _, where := range q.wheres {
		sql, args := where.condition()
		query = query.Where(sql, args...)
	}
	return query
}
