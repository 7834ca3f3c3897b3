package database

import (
	"context"
	"diffly_crawler/lib"
	"diffly_crawler/structs/tables"
	"fmt"

	"github.com/uptrace/bun"
)

type compositeIndex struct {
	model   any
	name    string
	columns []string
}

type foreignKey struct {
	expr string
}

// catalogModels lists every table in creation order along with its foreign keys.
func catalogModels() []struct {
	model any
	fks   []foreignKey
} {
	return []struct {
		model any
		fks   []foreignKey
	}{
		{(*tables.Platform)(nil), nil},
		{(*tables.Game)(nil), nil},
		{(*tables.Region)(nil), nil},
		{(*tables.Store)(nil), nil},
		{(*tables.GamePlatform)(nil), []foreignKey{
			{`("game_id") REFERENCES "games" ("id") ON DELETE CASCADE`},
			{`("platform_id") REFERENCES "platforms" ("id") ON DELETE CASCADE`},
		}},
		{(*tables.GameImage)(nil), []foreignKey{
			{`("game_id") REFERENCES "games" ("id") ON DELETE CASCADE`},
		}},
		{(*tables.StorePlatform)(nil), []foreignKey{
			{`("store_id") REFERENCES "stores" ("id") ON DELETE CASCADE`},
			{`("platform_id") REFERENCES "platforms" ("id") ON DELETE CASCADE`},
		}},
		{(*tables.Price)(nil), []foreignKey{
			{`("game_id") REFERENCES "games" ("id") ON DELETE CASCADE`},
			{`("platform_id") REFERENCES "platforms" ("id") ON DELETE CASCADE`},
			{`("region_id") REFERENCES "regions" ("id") ON DELETE CASCADE`},
			{`("store_id") REFERENCES "stores" ("id") ON DELETE CASCADE`},
		}},
	}
}

var compositeIndexes = []compositeIndex{
	{(*tables.GamePlatform)(nil), "game_platforms_platform_game_key", []string{"platform_id", "game_id"}},
	{(*tables.GameImage)(nil), "game_images_game_type_key", []string{"game_id", "image_type"}},
	{(*tables.Price)(nil), "prices_natural_key", []string{"game_id", "platform_id", "region_id", "store_id"}},
}

// Migrate creates the catalog schema if it does not exist and seeds the fixed
// platform and region rows. It is safe to run repeatedly.
func Migrate(ctx context.Context, db bun.IDB, platformName string) error {
	for _, m := range catalogModels() {
		query := db.NewCreateTable().Model(m.model).IfNotExists()
		for _, fk := range m.fks {
			query = query.ForeignKey(fk.expr)
		}
		if _, err := query.Exec(ctx); err != nil {
			return fmt.Errorf("failed to create table for %T: %w", m.model, err)
		}
	}

	for _, idx := range compositeIndexes {
		_, err := db.NewCreateIndex().
			Model(idx.model).
			Index(idx.name).
			Unique().
			IfNotExists().
			Column(idx.columns...).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to create index %s: %w", idx.name, err)
		}
	}

	return Seed(ctx, db, platformName)
}

// Seed inserts the fixed platform and the known regions, leaving existing rows alone.
func Seed(ctx context.Context, db bun.IDB, platformName string) error {
	platform := &tables.Platform{Name: platformName}
	if _, err := db.NewInsert().Model(platform).On("CONFLICT (name) DO NOTHING").Exec(ctx); err != nil {
		return fmt.Errorf("failed to seed platform %q: %w", platformName, err)
	}

	seeds := lib.SeedRegions()
	regions := make([]tables.Region, 0, len(seeds))
	for _, r := range seeds {
		regions = append(regions, tables.Region{
			Name:           r.Name,
			Code:           r.Code,
			CurrencyCode:   r.CurrencyCode,
			CurrencySymbol: r.CurrencySymbol,
		})
	}
	if _, err := db.NewInsert().Model(&regions).On("CONFLICT (code) DO NOTHING").Exec(ctx); err != nil {
		return fmt.Errorf("failed to seed regions: %w", err)
	}

	return nil
}
