package scrapers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGet(t *testing.T) {
	tests := []struct {
		platform    string
		contentType string
		wantErr     bool
	}{
		{"xbox", "games", false},
		{"Xbox", "GAMES", false},
		{" xbox ", "games", false},
		{"xbox", "dlc", true},
		{"playstation", "games", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.platform+"/"+tt.contentType, func(t *testing.T) {
			ctor, err := Get(tt.platform, tt.contentType)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrUnknownScraper)
				assert.Contains(t, err.Error(), "xbox/games")
				assert.Nil(t, ctor)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, ctor)
		})
	}
}

func TestAvailable(t *testing.T) {
	assert.Equal(t, []string{"xbox/games"}, Available())
}
