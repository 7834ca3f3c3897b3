package lib

import (
	"fmt"
	"sort"
)

// RegionInfo describes a storefront region keyed by its short code.
type RegionInfo struct {
	Code           string
	Name           string
	CurrencyCode   string
	CurrencySymbol string
}

// localeRegions maps storefront locale tags to region codes.
var localeRegions = map[string]string{
	"en-US": "US",
	"tr-TR": "TR",
	"en-GB": "GB",
	"de-DE": "DE",
	"fr-FR": "FR",
	"ja-JP": "JP",
	"pt-BR": "BR",
	"es-MX": "MX",
	"en-CA": "CA",
	"en-AU": "AU",
}

var knownRegions = map[string]RegionInfo{
	"US": {Code: "US", Name: "United States", CurrencyCode: "USD", CurrencySymbol: "$"},
	"TR": {Code: "TR", Name: "Turkey", CurrencyCode: "TRY", CurrencySymbol: "₺"},
	"GB": {Code: "GB", Name: "United Kingdom", CurrencyCode: "GBP", CurrencySymbol: "£"},
	"DE": {Code: "DE", Name: "Germany", CurrencyCode: "EUR", CurrencySymbol: "€"},
	"FR": {Code: "FR", Name: "France", CurrencyCode: "EUR", CurrencySymbol: "€"},
	"JP": {Code: "JP", Name: "Japan", CurrencyCode: "JPY", CurrencySymbol: "¥"},
	"BR": {Code: "BR", Name: "Brazil", CurrencyCode: "BRL", CurrencySymbol: "R$"},
	"MX": {Code: "MX", Name: "Mexico", CurrencyCode: "MXN", CurrencySymbol: "$"},
	"CA": {Code: "CA", Name: "Canada", CurrencyCode: "CAD", CurrencySymbol: "$"},
	"AU": {Code: "AU", Name: "Australia", CurrencyCode: "AUD", CurrencySymbol: "$"},
}

// RegionCode resolves a locale tag such as "tr-TR" to its region code.
func RegionCode(locale string) (string, error) {
	code, ok := localeRegions[locale]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownRegion, locale)
	}
	return code, nil
}

// SeedRegions returns every known region ordered by code.
func SeedRegions() []RegionInfo {
	regions := make([]RegionInfo, 0, len(knownRegions))
	for _, r := range knownRegions {
		regions = append(regions, r)
	}
	sort.Slice(regions, func(i, j int) bool { return regions[i].Code < regions[j].Code })
	return regions
}
