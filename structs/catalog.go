package structs

import (
	"github.com/shopspring/decimal"
)

// CatalogItem is one normalized storefront record for a single region. It is
// produced by a scraper, consumed once by the ingestion pipeline and dropped.
type CatalogItem struct {
	Region           string // locale tag the record was seen in, e.g. en-US
	ProductID        string
	Title            string
	Description      string
	ShortDescription string
	DeveloperName    string
	PublisherName    string
	ReleaseDate      string // upstream timestamp, parsed by the pipeline
	Images           map[string]ImageData
	BasePrice        *decimal.Decimal
	CurrentPrice     *decimal.Decimal
}

// ImageData is a single upstream image keyed by its raw kind.
type ImageData struct {
	URL    string `json:"url"`
	Width  *int   `json:"width,omitempty"`
	Height *int   `json:"height,omitempty"`
}

// HasPrice reports whether the item carries a base price.
func (c *CatalogItem) HasPrice() bool {
	return c.BasePrice != nil
}

// ImageKind is the closed set of image kinds stored for a game.
type ImageKind string

const (
	ImageKindUnknown    ImageKind = ""
	ImageKindBoxArt     ImageKind = "box_art"
	ImageKindPoster     ImageKind = "poster"
	ImageKindHeroArt    ImageKind = "hero_art"
	ImageKindScreenshot ImageKind = "screenshot"
	ImageKindLogo       ImageKind = "logo"
)

var upstreamImageKinds = map[string]ImageKind{
	"boxArt":       ImageKindBoxArt,
	"poster":       ImageKindPoster,
	"superHeroArt": ImageKindHeroArt,
	"screenshot":   ImageKindScreenshot,
	"logo":         ImageKindLogo,
}

// ParseImageKind maps an upstream image key to an ImageKind. Unrecognized
// keys map to ImageKindUnknown and must be dropped by callers.
func ParseImageKind(upstream string) ImageKind {
	if kind, ok := upstreamImageKinds[upstream]; ok {
		return kind
	}
	return ImageKindUnknown
}

func (k ImageKind) Valid() bool {
	switch k {
	case ImageKindBoxArt, ImageKindPoster, ImageKindHeroArt, ImageKindScreenshot, ImageKindLogo:
		return true
	default:
		return false
	}
}

func (k ImageKind) String() string {
	return string(k)
}
