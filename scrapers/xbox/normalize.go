package xbox

import (
	"diffly_crawler/lib"
	"diffly_crawler/structs"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

type rawImage struct {
	URL    string   `json:"url"`
	Width  *float64 `json:"width"`
	Height *float64 `json:"height"`
}

type rawPriceOffer struct {
	ListPrice *decimal.Decimal `json:"listPrice"`
	MSRP      *decimal.Decimal `json:"msrp"`
}

// Normalize maps one raw product summary to a CatalogItem tagged with region.
// Each field group is decoded on its own so a malformed group only blanks
// that group. It fails only when the record is not an object or carries no
// product id.
func Normalize(region string, raw json.RawMessage) (structs.CatalogItem, error) {
	return NormalizeListed(region, "", raw)
}

// NormalizeListed is Normalize for a summary reached through a channel
// listing. listedID is used when the summary has no product id of its own.
func NormalizeListed(region, listedID string, raw json.RawMessage) (structs.CatalogItem, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return structs.CatalogItem{}, fmt.Errorf("product summary is not an object: %w", err)
	}

	item := structs.CatalogItem{
		Region:           region,
		ProductID:        strings.TrimSpace(stringField(fields, "productId")),
		Title:            strings.TrimSpace(stringField(fields, "title")),
		Description:      stringField(fields, "description"),
		ShortDescription: stringField(fields, "shortDescription"),
		DeveloperName:    stringField(fields, "developerName"),
		PublisherName:    stringField(fields, "publisherName"),
		ReleaseDate:      strings.TrimSpace(stringField(fields, "releaseDate")),
		Images:           decodeImages(fields["images"]),
	}
	if item.ProductID == "" {
		item.ProductID = strings.TrimSpace(listedID)
	}
	if item.ProductID == "" {
		return structs.CatalogItem{}, lib.ErrMissingProductID
	}

	item.BasePrice, item.CurrentPrice = decodePrices(fields["specificPrices"])
	return item, nil
}

// stringField returns the string at key, or "" when it is absent, null or
// not a string.
func stringField(fields map[string]json.RawMessage, key string) string {
	raw, ok := fields[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

// decodeImages keeps every entry shaped like {url,width,height}. Entries of
// any other shape, such as the screenshots array, are skipped.
func decodeImages(raw json.RawMessage) map[string]structs.ImageData {
	if len(raw) == 0 {
		return nil
	}
	var entries map[string]json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil
	}

	images := make(map[string]structs.ImageData, len(entries))
	for kind, entry := range entries {
		var img rawImage
		if err := json.Unmarshal(entry, &img); err != nil || img.URL == "" {
			continue
		}
		images[kind] = structs.ImageData{
			URL:    img.URL,
			Width:  dimension(img.Width),
			Height: dimension(img.Height),
		}
	}
	if len(images) == 0 {
		return nil
	}
	return images
}

func dimension(v *float64) *int {
	if v == nil || *v < 0 || *v > math.MaxInt32 {
		return nil
	}
	n := int(*v)
	return &n
}

// decodePrices reads the first purchasable offer: msrp is the base price and
// listPrice the current one.
func decodePrices(raw json.RawMessage) (base, current *decimal.Decimal) {
	if len(raw) == 0 {
		return nil, nil
	}
	var prices struct {
		Purchaseable []json.RawMessage `json:"purchaseable"`
	}
	if err := json.Unmarshal(raw, &prices); err != nil || len(prices.Purchaseable) == 0 {
		return nil, nil
	}

	var offer rawPriceOffer
	if err := json.Unmarshal(prices.Purchaseable[0], &offer); err != nil {
		return nil, nil
	}
	return offer.MSRP, offer.ListPrice
}
