package database

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// UpsertStatement describes a single INSERT ... ON CONFLICT statement keyed
// by a natural key. With no UpdateColumns the statement behaves as
// get-or-create: an existing row is returned untouched.
type UpsertStatement struct {
	Table           string
	Columns         []string
	Values          []any
	ConflictColumns []string
	UpdateColumns   []string
}

// UpsertResult reports the id of the affected row and whether it was created.
type UpsertResult struct {
	ID       uuid.UUID `bun:"id"`
	Inserted bool      `bun:"inserted"`
}

// Build renders the statement with bun placeholders. Identifiers are passed
// as bun.Ident arguments so they are quoted by the dialect.
func (s UpsertStatement) Build() (string, []any, error) {
	if s.Table == "" {
		return "", nil, errors.New("upsert: table is required")
	}
	if len(s.Columns) == 0 || len(s.Columns) != len(s.Values) {
		return "", nil, fmt.Errorf("upsert %s: %d columns for %d values", s.Table, len(s.Columns), len(s.Values))
	}
	if len(s.ConflictColumns) == 0 {
		return "", nil, fmt.Errorf("upsert %s: conflict columns are required", s.Table)
	}

	args := make([]any, 0, 1+2*len(s.Columns)+len(s.ConflictColumns)+2*len(s.UpdateColumns))
	var sb strings.Builder

	sb.WriteString("INSERT INTO ? (")
	args = append(args, bun.Ident(s.Table))
	sb.WriteString(placeholders(len(s.Columns)))
	for _, col := range s.Columns {
		args = append(args, bun.Ident(col))
	}

	sb.WriteString(") VALUES (")
	sb.WriteString(placeholders(len(s.Values)))
	args = append(args, s.Values...)

	sb.WriteString(") ON CONFLICT (")
	sb.WriteString(placeholders(len(s.ConflictColumns)))
	for _, col := range s.ConflictColumns {
		args = append(args, bun.Ident(col))
	}
	sb.WriteString(") DO UPDATE SET ")

	// A self assignment keeps RETURNING working for rows that already exist.
	updates := s.UpdateColumns
	if len(updates) == 0 {
		updates = s.ConflictColumns[:1]
	}
	for i, col := range updates {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("? = EXCLUDED.?")
		args = append(args, bun.Ident(col), bun.Ident(col))
	}

	sb.WriteString(" RETURNING id, (xmax = 0) AS inserted")
	return sb.String(), args, nil
}

// ExecUpsert runs the statement with the default retry policy. Postgres
// serializes concurrent statements on the same unique key, so no explicit
// locking is needed by callers.
func ExecUpsert(ctx context.Context, db bun.IDB, stmt UpsertStatement) (UpsertResult, error) {
	start := time.Now()
	var res UpsertResult
	err := WithRetry(ctx, func() error {
		var err error
		res, err = ScanUpsert(ctx, db, stmt)
		return err
	})
	if err != nil {
		return UpsertResult{}, fmt.Errorf("failed to upsert into %s: %w (took %v)", stmt.Table, err, time.Since(start))
	}

	return res, nil
}

// ScanUpsert runs the statement once. Inside a transaction a failed statement
// aborts the transaction, so callers retry the whole transaction instead.
func ScanUpsert(ctx context.Context, db bun.IDB, stmt UpsertStatement) (UpsertResult, error) {
	query, args, err := stmt.Build()
	if err != nil {
		return UpsertResult{}, err
	}

	var res UpsertResult
	if err := db.NewRaw(query, args...).Scan(ctx, &res); err != nil {
		return UpsertResult{}, err
	}
	return res, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
