package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

func TestUpsertStatement_Build(t *testing.T) {
	stmt := UpsertStatement{
		Table:           "game_images",
		Columns:         []string{"game_id", "image_type", "url"},
		Values:          []any{"g1", "logo", "https://img/logo.png"},
		ConflictColumns: []string{"game_id", "image_type"},
		UpdateColumns:   []string{"url"},
	}

	query, args, err := stmt.Build()
	require.NoError(t, err)

	assert.Equal(t,
		"INSERT INTO ? (?, ?, ?) VALUES (?, ?, ?) ON CONFLICT (?, ?) DO UPDATE SET ? = EXCLUDED.? RETURNING id, (xmax = 0) AS inserted",
		query,
	)
	assert.Equal(t, []any{
		bun.Ident("game_images"),
		bun.Ident("game_id"), bun.Ident("image_type"), bun.Ident("url"),
		"g1", "logo", "https://img/logo.png",
		bun.Ident("game_id"), bun.Ident("image_type"),
		bun.Ident("url"), bun.Ident("url"),
	}, args)
}

func TestUpsertStatement_BuildGetOrCreate(t *testing.T) {
	stmt := UpsertStatement{
		Table:           "games",
		Columns:         []string{"product_id", "title"},
		Values:          []any{"9NBLGGH4R315", "Halo"},
		ConflictColumns: []string{"product_id"},
	}

	query, args, err := stmt.Build()
	require.NoError(t, err)

	assert.Contains(t, query, "DO UPDATE SET ? = EXCLUDED.? RETURNING")
	assert.Equal(t, bun.Ident("product_id"), args[len(args)-1])
}

func TestUpsertStatement_BuildRejectsInvalidInput(t *testing.T) {
	tests := []struct {
		name string
		stmt UpsertStatement
	}{
		{"no table", UpsertStatement{Columns: []string{"a"}, Values: []any{1}, ConflictColumns: []string{"a"}}},
		{"mismatched values", UpsertStatement{Table: "t", Columns: []string{"a", "b"}, Values: []any{1}, ConflictColumns: []string{"a"}}},
		{"no conflict key", UpsertStatement{Table: "t", Columns: []string{"a"}, Values: []any{1}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := tt.stmt.Build()
			assert.Error(t, err)
		})
	}
}
