package services

import (
	"context"
	"diffly_crawler/api/health"
	"diffly_crawler/lib"
	"diffly_crawler/structs"
	"diffly_crawler/structs/tables"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/MonkyMars/gecho"
	"github.com/google/uuid"
)

// releaseDateHorizon bounds how far in the future a release date may be
// before it is treated as an upstream placeholder.
const releaseDateHorizon = 3

// IngestService turns one normalized catalog item into entity store writes.
// It holds no per-item state and is safe for concurrent use once prepared.
type IngestService struct {
	logger        *gecho.Logger
	store         CatalogStore
	clock         lib.Clock
	primaryRegion string
	platformName  string
	storeBaseURL  string

	platform *tables.Platform
}

func NewIngestService(logger *gecho.Logger, store CatalogStore, clock lib.Clock, cfg *structs.CrawlerConfig) *IngestService {
	if clock == nil {
		clock = lib.NewRealClock()
	}
	svc := &IngestService{
		logger:        logger,
		store:         store,
		clock:         clock,
		primaryRegion: "en-US",
		platformName:  "Xbox",
		storeBaseURL:  "https://www.xbox.com",
	}
	if cfg != nil {
		if cfg.PrimaryRegion != "" {
			svc.primaryRegion = cfg.PrimaryRegion
		}
		if cfg.PlatformName != "" {
			svc.platformName = cfg.PlatformName
		}
		if cfg.BrowseBaseURL != "" {
			svc.storeBaseURL = strings.TrimSuffix(cfg.BrowseBaseURL, "/")
		}
	}
	return svc
}

// Prepare resolves the seeded platform row. A missing platform is a
// precondition failure for the whole run.
func (s *IngestService) Prepare(ctx context.Context) error {
	platform, err := s.store.GetPlatform(ctx, s.platformName)
	if err != nil {
		return fmt.Errorf("failed to resolve platform %q: %w", s.platformName, err)
	}
	s.platform = platform
	return nil
}

// Ingest writes a single item. The returned error covers only the steps that
// fail the item as a whole; image and price failures are logged and skipped.
func (s *IngestService) Ingest(ctx context.Context, item structs.CatalogItem) (ItemOutcome, error) {
	outcome := ItemOutcome{Region: item.Region}

	if s.platform == nil {
		return outcome, lib.ErrPlatformNotFound
	}
	if item.ProductID == "" {
		return outcome, lib.ErrMissingProductID
	}

	code, err := lib.RegionCode(item.Region)
	if err != nil {
		outcome.Rejected = true
		s.logger.Warn("Rejecting item from unknown region",
			gecho.Field("region", item.Region),
			gecho.Field("product_id", item.ProductID),
		)
		health.IngestedItems.WithLabelValues(item.Region, "rejected").Inc()
		return outcome, nil
	}
	outcome.Region = code
	primary := item.Region == s.primaryRegion

	gameID, created, err := s.store.GetOrCreateGame(ctx, item.ProductID)
	if err != nil {
		health.IngestedItems.WithLabelValues(code, "failed").Inc()
		return outcome, fmt.Errorf("failed to upsert game %s: %w", item.ProductID, err)
	}
	outcome.GameCreated = created

	if primary {
		details := GameDetails{
			Title:            item.Title,
			Description:      item.Description,
			ShortDescription: item.ShortDescription,
			DeveloperName:    item.DeveloperName,
			PublisherName:    item.PublisherName,
			ReleaseDate:      s.releaseDate(item),
		}
		if err := s.store.UpdateGameDetails(ctx, gameID, details); err != nil {
			health.IngestedItems.WithLabelValues(code, "failed").Inc()
			return outcome, fmt.Errorf("failed to update game %s: %w", item.ProductID, err)
		}
		outcome.GameUpdated = !created
	}

	if _, err := s.store.EnsureGamePlatform(ctx, gameID, s.platform.ID); err != nil {
		health.IngestedItems.WithLabelValues(code, "failed").Inc()
		return outcome, fmt.Errorf("failed to link game %s to platform: %w", item.ProductID, err)
	}

	if primary && len(item.Images) > 0 {
		outcome.Images = s.saveImages(ctx, item, gameID)
	}

	if item.BasePrice == nil || item.CurrentPrice == nil {
		s.logger.Warn("Item has incomplete price",
			gecho.Field("product_id", item.ProductID),
			gecho.Field("region", item.Region),
			gecho.Field("base_price", item.BasePrice),
			gecho.Field("current_price", item.CurrentPrice),
		)
	}
	if item.HasPrice() {
		saved, isNew, err := s.savePrice(ctx, item, code, gameID)
		if err != nil {
			s.logger.Error("Failed to save price",
				gecho.Field("product_id", item.ProductID),
				gecho.Field("region", code),
				gecho.Field("error", err),
			)
		}
		outcome.PriceSaved = saved
		outcome.PriceNew = isNew
	}

	health.IngestedItems.WithLabelValues(code, "ingested").Inc()
	return outcome, nil
}

// releaseDate parses the upstream timestamp. Unparsable dates and dates
// beyond the horizon are unknown.
func (s *IngestService) releaseDate(item structs.CatalogItem) *time.Time {
	if item.ReleaseDate == "" {
		return nil
	}
	parsed, err := time.Parse(time.RFC3339Nano, item.ReleaseDate)
	if err != nil {
		s.logger.Debug("Ignoring unparsable release date",
			gecho.Field("product_id", item.ProductID),
			gecho.Field("release_date", item.ReleaseDate),
		)
		return nil
	}

	now := s.clock.Now()
	if parsed.After(now.AddDate(releaseDateHorizon, 0, 0)) {
		s.logger.Debug("Discarding far future release date",
			gecho.Field("product_id", item.ProductID),
			gecho.Field("release_date", item.ReleaseDate),
		)
		return nil
	}

	date := time.Date(parsed.Year(), parsed.Month(), parsed.Day(), 0, 0, 0, 0, time.UTC)
	return &date
}

func (s *IngestService) saveImages(ctx context.Context, item structs.CatalogItem, gameID uuid.UUID) int {
	keys := make([]string, 0, len(item.Images))
	for key := range item.Images {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	saved := 0
	for _, key := range keys {
		kind := structs.ParseImageKind(key)
		if !kind.Valid() {
			s.logger.Debug("Skipping unknown image kind",
				gecho.Field("product_id", item.ProductID),
				gecho.Field("kind", key),
			)
			continue
		}

		img := item.Images[key]
		_, err := s.store.UpsertGameImage(ctx, ImageInput{
			GameID: gameID,
			Kind:   kind.String(),
			URL:    img.URL,
			Width:  img.Width,
			Height: img.Height,
		})
		if err != nil {
			s.logger.Error("Failed to save image",
				gecho.Field("product_id", item.ProductID),
				gecho.Field("kind", kind.String()),
				gecho.Field("error", err),
			)
			continue
		}
		saved++
	}
	return saved
}

func (s *IngestService) savePrice(ctx context.Context, item structs.CatalogItem, code string, gameID uuid.UUID) (bool, bool, error) {
	region, err := s.store.GetRegion(ctx, code)
	if err != nil {
		return false, false, fmt.Errorf("failed to resolve region %s: %w", code, err)
	}

	name := fmt.Sprintf("%s Store %s", s.platform.Name, code)
	baseURL := fmt.Sprintf("%s/%s", s.storeBaseURL, item.Region)
	store, _, err := s.store.GetOrCreateStore(ctx, name, baseURL, s.platform.ID)
	if err != nil {
		return false, false, fmt.Errorf("failed to resolve store %q: %w", name, err)
	}

	current := *item.BasePrice
	if item.CurrentPrice != nil {
		current = *item.CurrentPrice
	}

	created, err := s.store.UpsertPrice(ctx, PriceInput{
		GameID:       gameID,
		PlatformID:   s.platform.ID,
		RegionID:     region.ID,
		StoreID:      store.ID,
		BasePrice:    *item.BasePrice,
		CurrentPrice: current,
		ObservedAt:   s.clock.Now().UTC(),
	})
	if err != nil {
		return false, false, fmt.Errorf("failed to upsert price: %w", err)
	}
	return true, created, nil
}

// IsFatal reports whether an ingest error must stop the whole run.
func IsFatal(err error) bool {
	return errors.Is(err, lib.ErrPlatformNotFound)
}
