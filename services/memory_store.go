package services

import (
	"context"
	"diffly_crawler/lib"
	"diffly_crawler/structs/tables"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

type gamePlatformKey struct {
	platformID uuid.UUID
	gameID     uuid.UUID
}

type gameImageKey struct {
	gameID uuid.UUID
	kind   string
}

type priceKey struct {
	gameID     uuid.UUID
	platformID uuid.UUID
	regionID   uuid.UUID
	storeID    uuid.UUID
}

// MemoryCatalogStore keeps the catalog in process memory. A single mutex
// serializes every write, which makes each upsert atomic per key. It backs
// dry runs and tests.
type MemoryCatalogStore struct {
	mu             sync.Mutex
	platforms      map[string]*tables.Platform
	regions        map[string]*tables.Region
	games          map[string]*tables.Game
	gamesByID      map[uuid.UUID]*tables.Game
	gamePlatforms  map[gamePlatformKey]*tables.GamePlatform
	stores         map[string]*tables.Store
	storePlatforms map[uuid.UUID][]uuid.UUID
	prices         map[priceKey]*tables.Price
	images         map[gameImageKey]*tables.GameImage
	closed         int
}

func NewMemoryCatalogStore() *MemoryCatalogStore {
	return &MemoryCatalogStore{
		platforms:      make(map[string]*tables.Platform),
		regions:        make(map[string]*tables.Region),
		games:          make(map[string]*tables.Game),
		gamesByID:      make(map[uuid.UUID]*tables.Game),
		gamePlatforms:  make(map[gamePlatformKey]*tables.GamePlatform),
		stores:         make(map[string]*tables.Store),
		storePlatforms: make(map[uuid.UUID][]uuid.UUID),
		prices:         make(map[priceKey]*tables.Price),
		images:         make(map[gameImageKey]*tables.GameImage),
	}
}

// Seed adds the fixed platform and every known region, like the migrate command.
func (s *MemoryCatalogStore) Seed(platformName string) *MemoryCatalogStore {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.platforms[platformName]; !ok {
		s.platforms[platformName] = &tables.Platform{ID: uuid.New(), Name: platformName, CreatedAt: time.Now().UTC()}
	}
	for _, r := range lib.SeedRegions() {
		if _, ok := s.regions[r.Code]; ok {
			continue
		}
		s.regions[r.Code] = &tables.Region{
			ID:             uuid.New(),
			Name:           r.Name,
			Code:           r.Code,
			CurrencyCode:   r.CurrencyCode,
			CurrencySymbol: r.CurrencySymbol,
		}
	}
	return s
}

func (s *MemoryCatalogStore) GetPlatform(_ context.Context, name string) (*tables.Platform, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.platforms[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", lib.ErrPlatformNotFound, name)
	}
	cp := *p
	return &cp, nil
}

func (s *MemoryCatalogStore) GetOrCreateGame(_ context.Context, productID string) (uuid.UUID, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if g, ok := s.games[productID]; ok {
		return g.ID, false, nil
	}
	now := time.Now().UTC()
	g := &tables.Game{ID: uuid.New(), ProductID: productID, CreatedAt: now, UpdatedAt: now}
	s.games[productID] = g
	s.gamesByID[g.ID] = g
	return g.ID, true, nil
}

func (s *MemoryCatalogStore) UpdateGameDetails(_ context.Context, gameID uuid.UUID, details GameDetails) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.gamesByID[gameID]
	if !ok {
		return fmt.Errorf("%w: game %s", lib.ErrNotFound, gameID)
	}
	g.Title = details.Title
	g.Description = details.Description
	g.ShortDescription = details.ShortDescription
	g.DeveloperName = details.DeveloperName
	g.PublisherName = details.PublisherName
	g.ReleaseDate = details.ReleaseDate
	g.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryCatalogStore) EnsureGamePlatform(_ context.Context, gameID, platformID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := gamePlatformKey{platformID: platformID, gameID: gameID}
	if _, ok := s.gamePlatforms[key]; ok {
		return false, nil
	}
	s.gamePlatforms[key] = &tables.GamePlatform{ID: uuid.New(), GameID: gameID, PlatformID: platformID}
	return true, nil
}

func (s *MemoryCatalogStore) GetRegion(_ context.Context, code string) (*tables.Region, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.regions[code]
	if !ok {
		return nil, fmt.Errorf("%w: region %q", lib.ErrNotFound, code)
	}
	cp := *r
	return &cp, nil
}

func (s *MemoryCatalogStore) GetOrCreateStore(_ context.Context, name, baseURL string, platformID uuid.UUID) (*tables.Store, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if st, ok := s.stores[name]; ok {
		cp := *st
		return &cp, false, nil
	}
	st := &tables.Store{ID: uuid.New(), Name: name, BaseURL: baseURL, CreatedAt: time.Now().UTC()}
	s.stores[name] = st
	s.storePlatforms[st.ID] = append(s.storePlatforms[st.ID], platformID)
	cp := *st
	return &cp, true, nil
}

func (s *MemoryCatalogStore) UpsertPrice(_ context.Context, in PriceInput) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := priceRow(in)
	key := priceKey{gameID: in.GameID, platformID: in.PlatformID, regionID: in.RegionID, storeID: in.StoreID}
	if existing, ok := s.prices[key]; ok {
		row.ID = existing.ID
		row.CreatedAt = existing.CreatedAt
		*existing = row
		return false, nil
	}
	row.ID = uuid.New()
	row.CreatedAt = in.ObservedAt
	s.prices[key] = &row
	return true, nil
}

func (s *MemoryCatalogStore) UpsertGameImage(_ context.Context, in ImageInput) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := gameImageKey{gameID: in.GameID, kind: in.Kind}
	if existing, ok := s.images[key]; ok {
		existing.URL = in.URL
		existing.Width = in.Width
		existing.Height = in.Height
		return false, nil
	}
	s.images[key] = &tables.GameImage{
		ID:        uuid.New(),
		GameID:    in.GameID,
		ImageType: in.Kind,
		URL:       in.URL,
		Width:     in.Width,
		Height:    in.Height,
	}
	return true, nil
}

func (s *MemoryCatalogStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed++
	return nil
}

// Game returns a copy of the game with productID, if any.
func (s *MemoryCatalogStore) Game(productID string) (tables.Game, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.games[productID]
	if !ok {
		return tables.Game{}, false
	}
	return *g, true
}

// Prices returns copies of every stored price row.
func (s *MemoryCatalogStore) Prices() []tables.Price {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]tables.Price, 0, len(s.prices))
	for _, p := range s.prices {
		out = append(out, *p)
	}
	return out
}

// Images returns copies of every stored image for gameID.
func (s *MemoryCatalogStore) Images(gameID uuid.UUID) []tables.GameImage {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []tables.GameImage
	for key, img := range s.images {
		if key.gameID == gameID {
			out = append(out, *img)
		}
	}
	return out
}

// Counts reports the number of rows per table.
func (s *MemoryCatalogStore) Counts() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()

	links := 0
	for _, platforms := range s.storePlatforms {
		links += len(platforms)
	}
	return map[string]int{
		"games":           len(s.games),
		"game_platforms":  len(s.gamePlatforms),
		"game_images":     len(s.images),
		"stores":          len(s.stores),
		"store_platforms": links,
		"prices":          len(s.prices),
	}
}

// CloseCalls reports how many times Close ran.
func (s *MemoryCatalogStore) CloseCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
