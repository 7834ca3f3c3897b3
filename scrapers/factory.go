package scrapers

import (
	"context"
	"diffly_crawler/scrapers/xbox"
	"diffly_crawler/services"
	"diffly_crawler/structs"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/MonkyMars/gecho"
)

var ErrUnknownScraper = errors.New("unknown scraper")

// Scraper runs one crawl for a (platform, content type) pair.
type Scraper interface {
	Run(ctx context.Context, opts structs.ScrapeOptions) (*structs.ScrapeResult, error)
}

// Constructor builds a scraper from the shared services.
type Constructor func(logger *gecho.Logger, cfg *structs.Config, sm *services.ServiceManager) Scraper

type key struct {
	platform    string
	contentType string
}

var registry = map[key]Constructor{
	{xbox.PlatformName, xbox.ContentGames}: func(logger *gecho.Logger, cfg *structs.Config, sm *services.ServiceManager) Scraper {
		return xbox.NewGamesScraper(logger, cfg, sm)
	},
}

// Get returns the constructor for platform and contentType, matched case
// insensitively.
func Get(platform, contentType string) (Constructor, error) {
	k := key{strings.ToLower(strings.TrimSpace(platform)), strings.ToLower(strings.TrimSpace(contentType))}
	ctor, ok := registry[k]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s (available: %s)",
			ErrUnknownScraper, platform, contentType, strings.Join(Available(), ", "))
	}
	return ctor, nil
}

// Available lists the registered pairs as platform/type.
func Available() []string {
	out := make([]string, 0, len(registry))
	for k := range registry {
		out = append(out, k.platform+"/"+k.contentType)
	}
	sort.Strings(out)
	return out
}
