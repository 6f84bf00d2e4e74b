// Package locator talks to the Holosun dealer-search endpoint: building
// form payloads from ZIP centroids, detecting anti-automation responses,
// and normalizing the raw dealer records the API returns.
package locator

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"

	"github.com/sells-group/locator-cli/internal/model"
)

// SearchEndpoint is the dealer lookup URL the public where-to-buy page posts to.
const SearchEndpoint = "https://holosun.com/index/dealer/search.html"

// SearchRequest describes a single dealer lookup.
type SearchRequest struct {
	ZipCode  string
	Centroid model.Centroid
	Distance int
	Category string
}

// SearchPayload is the decoded JSON body of a successful lookup. Code 1
// means success; Data.List holds the raw dealer records.
type SearchPayload struct {
	Code int `json:"code"`
	Data struct {
		List []map[string]any `json:"list"`
	} `json:"data"`
}

// SearchResult carries both the raw response (for artifacts and block
// detection) and the decoded payload when the body parsed as JSON.
type SearchResult struct {
	StatusCode  int
	ContentType string
	Body        []byte
	Payload     *SearchPayload
}

// Client performs dealer lookups. The HTTP implementation lives in this
// package; tests substitute fakes.
type Client interface {
	Search(ctx context.Context, req SearchRequest) (*SearchResult, error)
}

// PreparePayload builds the form fields for a lookup. Centroid coordinates
// are required: the endpoint geo-filters on lat/lng, not on the keyword.
func PreparePayload(req SearchRequest) (map[string]string, error) {
	if req.Centroid.Latitude == nil || req.Centroid.Longitude == nil {
		return nil, eris.Errorf("locator: zip %s is missing centroid coordinates", req.ZipCode)
	}
	distance := req.Distance
	if distance <= 0 {
		distance = 100
	}
	category := req.Category
	if category == "" {
		category = "both"
	}
	return map[string]string{
		"keywords": req.ZipCode,
		"distance": fmt.Sprintf("%d", distance),
		"lat":      fmt.Sprintf("%.6f", *req.Centroid.Latitude),
		"lng":      fmt.Sprintf("%.6f", *req.Centroid.Longitude),
		"cate":     category,
	}, nil
}
