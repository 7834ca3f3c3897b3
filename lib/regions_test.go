package lib

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegionCode(t *testing.T) {
	code, err := RegionCode("tr-TR")
	require.NoError(t, err)
	assert.Equal(t, "TR", code)

	code, err = RegionCode("en-US")
	require.NoError(t, err)
	assert.Equal(t, "US", code)

	_, err = RegionCode("xx-XX")
	assert.ErrorIs(t, err, ErrUnknownRegion)

	_, err = RegionCode("")
	assert.ErrorIs(t, err, ErrUnknownRegion)
}

func TestSeedRegions_CoverLocaleTable(t *testing.T) {
	seeded := map[string]bool{}
	for _, r := range SeedRegions() {
		seeded[r.Code] = true
		assert.NotEmpty(t, r.CurrencyCode, r.Code)
	}

	for locale, code := range localeRegions {
		assert.True(t, seeded[code], "region for %s is not seeded", locale)
	}
}

func TestMapPgError_PassesThroughOtherErrors(t *testing.T) {
	assert.Nil(t, MapPgError(nil))
	assert.Equal(t, ErrNotFound, MapPgError(ErrNotFound))
}
