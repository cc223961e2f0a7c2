package maps

import (
	"context"
	"fmt"
	"strings"

	"googlemaps.github.io/maps"
)

const (
	defaultLanguage  = "en"
	defaultRegion    = "in"
	defaultMinRating = 4.0
	defaultLimit     = 5
)

// Place represents a simplified location result.
type Place struct {
	Name             string
	Address          string
	Rating           float32
	PlaceID          string
	UserRatingsTotal int
	PriceLevel       int
}

// SearchOptions narrows a text search.
type SearchOptions struct {
	// Type is a Places type filter such as "lodging" or "restaurant".
	Type maps.PlaceType
	// MinRating drops weaker results; zero means 4.0.
	MinRating float32
	// Limit caps the result count; zero means 5.
	Limit int
	// ExcludeKeywords disqualify any result whose name contains them.
	ExcludeKeywords []string
}

// PlacesService handles interactions with Google Places API.
type PlacesService struct {
	client *maps.Client
	region string
}

// NewPlacesService creates a new PlacesService with the given API Key.
// region biases results (ccTLD, e.g. "in").
func NewPlacesService(apiKey, region string) (*PlacesService, error) {
	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	if region == "" {
		region = defaultRegion
	}
	return &PlacesService{client: client, region: region}, nil
}

// TextSearch runs a free-text Places query and returns the best-rated matches.
func (s *PlacesService) TextSearch(ctx context.Context, query string, opts *SearchOptions) ([]Place, error) {
	if opts == nil {
		opts = &SearchOptions{}
	}
	minRating := opts.MinRating
	if minRating == 0 {
		minRating = defaultMinRating
	}
	limit := opts.Limit
	if limit == 0 {
		limit = defaultLimit
	}

	r := &maps.TextSearchRequest{
		Query:    query,
		Language: defaultLanguage,
		Region:   s.region,
		Type:     opts.Type,
	}
	resp, err := s.client.TextSearch(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("places api error: %w", err)
	}
	return filterPlaces(resp.Results, minRating, limit, opts.ExcludeKeywords), nil
}

func filterPlaces(results []maps.PlacesSearchResult, minRating float32, limit int, exclude []string) []Place {
	var out []Place
	for _, result := range results {
		if result.Rating < minRating {
			continue
		}
		if containsAny(result.Name, exclude) {
			continue
		}
		out = append(out, Place{
			Name:             result.Name,
			Address:          result.FormattedAddress,
			Rating:           result.Rating,
			PlaceID:          result.PlaceID,
			UserRatingsTotal: result.UserRatingsTotal,
			PriceLevel:       result.PriceLevel,
		})
		if len(out) >= limit {
			break
		}
	}
	return out
}

func containsAny(s string, keywords []string) bool {
	lower := strings.ToLower(s)
	for _, kw := range keywords {
		if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}
