package services

import (
	"context"
	"diffly_crawler/database"
	"diffly_crawler/lib"
	"diffly_crawler/structs/tables"
	"fmt"
	"time"

	"github.com/MonkyMars/gecho"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

// GameDetails are the descriptive fields only the primary region may write.
type GameDetails struct {
	Title            string
	Description      string
	ShortDescription string
	DeveloperName    string
	PublisherName    string
	ReleaseDate      *time.Time
}

// PriceInput is one price observation for (game, platform, region, store).
type PriceInput struct {
	GameID       uuid.UUID
	PlatformID   uuid.UUID
	RegionID     uuid.UUID
	StoreID      uuid.UUID
	BasePrice    decimal.Decimal
	CurrentPrice decimal.Decimal
	ObservedAt   time.Time
}

// ImageInput is one image observation for (game, kind).
type ImageInput struct {
	GameID uuid.UUID
	Kind   string
	URL    string
	Width  *int
	Height *int
}

// CatalogStore is the upsert surface the ingestion pipeline writes through.
// Every write is keyed by a natural key and safe to repeat.
type CatalogStore interface {
	GetPlatform(ctx context.Context, name string) (*tables.Platform, error)
	GetOrCreateGame(ctx context.Context, productID string) (uuid.UUID, bool, error)
	UpdateGameDetails(ctx context.Context, gameID uuid.UUID, details GameDetails) error
	EnsureGamePlatform(ctx context.Context, gameID, platformID uuid.UUID) (bool, error)
	GetRegion(ctx context.Context, code string) (*tables.Region, error)
	// GetOrCreateStore links the store to platformID only when it creates it.
	GetOrCreateStore(ctx context.Context, name, baseURL string, platformID uuid.UUID) (*tables.Store, bool, error)
	UpsertPrice(ctx context.Context, in PriceInput) (bool, error)
	UpsertGameImage(ctx context.Context, in ImageInput) (bool, error)
	Close() error
}

// priceRow derives the stored price row, sale fields included.
func priceRow(in PriceInput) tables.Price {
	onSale, pct := lib.ComputeDiscount(in.BasePrice, in.CurrentPrice)
	return tables.Price{
		GameID:             in.GameID,
		PlatformID:         in.PlatformID,
		RegionID:           in.RegionID,
		StoreID:            in.StoreID,
		BasePrice:          in.BasePrice,
		CurrentPrice:       in.CurrentPrice,
		DiscountPercentage: pct,
		IsOnSale:           onSale,
		LastUpdated:        in.ObservedAt,
	}
}

// PostgresCatalogStore writes through bun with single statement upserts.
type PostgresCatalogStore struct {
	logger *gecho.Logger
	db     *database.DB
	cache  *CacheService
}

func NewPostgresCatalogStore(logger *gecho.Logger, db *database.DB, cache *CacheService) *PostgresCatalogStore {
	return &PostgresCatalogStore{
		logger: logger,
		db:     db,
		cache:  cache,
	}
}

func (s *PostgresCatalogStore) GetPlatform(ctx context.Context, name string) (*tables.Platform, error) {
	platform, err := database.Query[tables.Platform](s.db).Where("name", name).First(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to look up platform %q: %w", name, err)
	}
	if platform == nil {
		return nil, fmt.Errorf("%w: %q", lib.ErrPlatformNotFound, name)
	}
	return platform, nil
}

func (s *PostgresCatalogStore) GetOrCreateGame(ctx context.Context, productID string) (uuid.UUID, bool, error) {
	res, err := database.ExecUpsert(ctx, s.db, database.UpsertStatement{
		Table:           "games",
		Columns:         []string{"id", "product_id", "title"},
		Values:          []any{uuid.New(), productID, ""},
		ConflictColumns: []string{"product_id"},
	})
	if err != nil {
		return uuid.Nil, false, lib.MapPgError(err)
	}
	return res.ID, res.Inserted, nil
}

func (s *PostgresCatalogStore) UpdateGameDetails(ctx context.Context, gameID uuid.UUID, details GameDetails) error {
	_, err := database.Query[tables.Game](s.db).Where("id", gameID).Update(ctx, map[string]any{
		"title":             details.Title,
		"description":       details.Description,
		"short_description": details.ShortDescription,
		"developer_name":    details.DeveloperName,
		"publisher_name":    details.PublisherName,
		"release_date":      details.ReleaseDate,
		"updated_at":        time.Now().UTC(),
	})
	return lib.MapPgError(err)
}

func (s *PostgresCatalogStore) EnsureGamePlatform(ctx context.Context, gameID, platformID uuid.UUID) (bool, error) {
	res, err := database.ExecUpsert(ctx, s.db, database.UpsertStatement{
		Table:           "game_platforms",
		Columns:         []string{"id", "platform_id", "game_id"},
		Values:          []any{uuid.New(), platformID, gameID},
		ConflictColumns: []string{"platform_id", "game_id"},
	})
	if err != nil {
		return false, lib.MapPgError(err)
	}
	return res.Inserted, nil
}

func (s *PostgresCatalogStore) GetRegion(ctx context.Context, code string) (*tables.Region, error) {
	if cached, err := s.cache.GetRegion(ctx, code); err == nil && cached != nil {
		return cached, nil
	}

	region, err := database.Query[tables.Region](s.db).Where("code", code).First(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to look up region %q: %w", code, err)
	}
	if region == nil {
		return nil, fmt.Errorf("%w: region %q", lib.ErrNotFound, code)
	}

	if err := s.cache.SetRegion(ctx, region); err != nil {
		s.logger.Debug("Failed to cache region", gecho.Field("code", code), gecho.Field("error", err))
	}
	return region, nil
}

func (s *PostgresCatalogStore) GetOrCreateStore(ctx context.Context, name, baseURL string, platformID uuid.UUID) (*tables.Store, bool, error) {
	if cached, err := s.cache.GetStore(ctx, name); err == nil && cached != nil {
		return cached, false, nil
	}

	res, err := s.createStore(ctx, name, baseURL, platformID)
	if err != nil {
		return nil, false, err
	}

	store := &tables.Store{ID: res.ID, Name: name, BaseURL: baseURL}
	if !res.Inserted {
		stored, err := database.Query[tables.Store](s.db).Where("id", res.ID).First(ctx)
		if err != nil {
			return nil, false, fmt.Errorf("failed to load store %q: %w", name, err)
		}
		if stored != nil {
			store = stored
		}
	}

	if err := s.cache.SetStore(ctx, store); err != nil {
		s.logger.Debug("Failed to cache store", gecho.Field("name", name), gecho.Field("error", err))
	}
	return store, res.Inserted, nil
}

// createStore upserts the store row and, when the row is new, its platform
// link in one transaction. A failed link rolls the store back so a later call
// creates and links it again.
func (s *PostgresCatalogStore) createStore(ctx context.Context, name, baseURL string, platformID uuid.UUID) (database.UpsertResult, error) {
	stmt := database.UpsertStatement{
		Table:           "stores",
		Columns:         []string{"id", "name", "base_url"},
		Values:          []any{uuid.New(), name, baseURL},
		ConflictColumns: []string{"name"},
	}

	var res database.UpsertResult
	err := database.WithRetry(ctx, func() error {
		return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			r, err := database.ScanUpsert(ctx, tx, stmt)
			if err != nil {
				return fmt.Errorf("failed to upsert store: %w", err)
			}
			if r.Inserted {
				link := &tables.StorePlatform{StoreID: r.ID, PlatformID: platformID}
				if _, err := tx.NewInsert().Model(link).On("CONFLICT DO NOTHING").Exec(ctx); err != nil {
					return fmt.Errorf("failed to link store to platform: %w", err)
				}
			}
			res = r
			return nil
		})
	})
	if err != nil {
		return database.UpsertResult{}, fmt.Errorf("store %q: %w", name, lib.MapPgError(err))
	}
	return res, nil
}

func (s *PostgresCatalogStore) UpsertPrice(ctx context.Context, in PriceInput) (bool, error) {
	row := priceRow(in)
	res, err := database.ExecUpsert(ctx, s.db, database.UpsertStatement{
		Table: "prices",
		Columns: []string{
			"id", "game_id", "platform_id", "region_id", "store_id",
			"base_price", "current_price", "discount_percentage", "is_on_sale", "last_updated",
		},
		Values: []any{
			uuid.New(), row.GameID, row.PlatformID, row.RegionID, row.StoreID,
			row.BasePrice, row.CurrentPrice, row.DiscountPercentage, row.IsOnSale, row.LastUpdated,
		},
		ConflictColumns: []string{"game_id", "platform_id", "region_id", "store_id"},
		UpdateColumns:   []string{"base_price", "current_price", "discount_percentage", "is_on_sale", "last_updated"},
	})
	if err != nil {
		return false, lib.MapPgError(err)
	}
	return res.Inserted, nil
}

func (s *PostgresCatalogStore) UpsertGameImage(ctx context.Context, in ImageInput) (bool, error) {
	res, err := database.ExecUpsert(ctx, s.db, database.UpsertStatement{
		Table:           "game_images",
		Columns:         []string{"id", "game_id", "image_type", "url", "width", "height"},
		Values:          []any{uuid.New(), in.GameID, in.Kind, in.URL, in.Width, in.Height},
		ConflictColumns: []string{"game_id", "image_type"},
		UpdateColumns:   []string{"url", "width", "height"},
	})
	if err != nil {
		return false, lib.MapPgError(err)
	}
	return res.Inserted, nil
}

// Close releases the run's database pool once the pipeline has drained. The
// cache outlives a single run and is closed by the service manager.
func (s *PostgresCatalogStore) Close() error {
	return s.db.Close()
}
