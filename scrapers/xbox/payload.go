package xbox

import "encoding/json"

// preloadedState is the subset of the storefront's embedded state we read.
type preloadedState struct {
	Core2 struct {
		Products struct {
			ProductSummaries map[string]json.RawMessage `json:"productSummaries"`
		} `json:"products"`
		Channels struct {
			ChannelData map[string]json.RawMessage `json:"channelData"`
		} `json:"channels"`
	} `json:"core2"`
}

type browseChannel struct {
	Data struct {
		Products []struct {
			ProductID string `json:"productId"`
		} `json:"products"`
		EncodedCT string `json:"encodedCT"`
	} `json:"data"`
}

// continuationPage is the API answer to a continuation request.
type continuationPage struct {
	ProductSummaries []json.RawMessage         `json:"productSummaries"`
	Channels         map[string]json.RawMessage `json:"channels"`
}

type continuationChannel struct {
	EncodedCT string `json:"encodedCT"`
}

// continuationBody is posted to the browse API to fetch the next page.
type continuationBody struct {
	Filters                      string `json:"Filters"`
	ReturnFilters                bool   `json:"ReturnFilters"`
	ChannelKeyToBeUsedInResponse string `json:"ChannelKeyToBeUsedInResponse"`
	EncodedCT                    string `json:"EncodedCT"`
	ChannelId                    string `json:"ChannelId"`
}

const (
	channelMarker = "BROWSE_CHANNELID"

	// base64 of {"orderby":{"id":"orderby","choices":[{"id":"Title Asc"}]},"PlayWith":{"id":"PlayWith","choices":[{"id":"XboxSeriesX|S"},{"id":"XboxOne"}]}}
	browseFilters    = "eyJvcmRlcmJ5Ijp7ImlkIjoib3JkZXJieSIsImNob2ljZXMiOlt7ImlkIjoiVGl0bGUgQXNjIn1dfSwiUGxheVdpdGgiOnsiaWQiOiJQbGF5V2l0aCIsImNob2ljZXMiOlt7ImlkIjoiWGJveFNlcmllc1h8UyJ9LHsiaWQiOiJYYm94T25lIn1dfX0="
	browseChannelKey = "BROWSE_CHANNELID=_FILTERS=ORDERBY=TITLE ASC&PLAYWITH=XBOXONE,XBOXSERIESX|S"
	browseQuery      = "orderby=Title+Asc&PlayWith=XboxSeriesX%7CS%2CXboxOne"
)
