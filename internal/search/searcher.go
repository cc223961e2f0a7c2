package search

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	gmaps "googlemaps.github.io/maps"

	"tripmate/internal/maps"
)

// QueryAnswerer answers a free-text query from the model's own knowledge.
type QueryAnswerer interface {
	WebSearch(ctx context.Context, query string) (string, error)
}

// CompletionSearcher sends every query to the completion service.
type CompletionSearcher struct {
	answerer QueryAnswerer
}

func NewCompletionSearcher(a QueryAnswerer) *CompletionSearcher {
	return &CompletionSearcher{answerer: a}
}

func (s *CompletionSearcher) Search(ctx context.Context, _ Category, query string) (string, error) {
	return s.answerer.WebSearch(ctx, query)
}

// PlaceFinder is the slice of the Places API used for lookups.
type PlaceFinder interface {
	TextSearch(ctx context.Context, query string, opts *maps.SearchOptions) ([]maps.Place, error)
}

var placeTypes = map[Category]gmaps.PlaceType{
	CategoryHotels:      gmaps.PlaceTypeLodging,
	CategoryActivities:  gmaps.PlaceTypeTouristAttraction,
	CategoryRestaurants: gmaps.PlaceTypeRestaurant,
}

// PlacesSearcher answers hotel, activity and restaurant queries from Google
// Places. Flights, and queries Places has nothing for, go to the fallback.
type PlacesSearcher struct {
	places   PlaceFinder
	fallback WebSearcher
	logger   *slog.Logger
}

func NewPlacesSearcher(places PlaceFinder, fallback WebSearcher, logger *slog.Logger) *PlacesSearcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &PlacesSearcher{places: places, fallback: fallback, logger: logger.With("component", "places_search")}
}

func (s *PlacesSearcher) Search(ctx context.Context, category Category, query string) (string, error) {
	placeType, ok := placeTypes[category]
	if !ok {
		return s.fallback.Search(ctx, category, query)
	}
	places, err := s.places.TextSearch(ctx, query, &maps.SearchOptions{
		Type:            placeType,
		ExcludeKeywords: []string{"closed"},
	})
	if err != nil {
		return "", fmt.Errorf("places search: %w", err)
	}
	if len(places) == 0 {
		s.logger.Debug("no places matched, using fallback", "category", category, "query", query)
		return s.fallback.Search(ctx, category, query)
	}
	return formatPlaces(places), nil
}

func formatPlaces(places []maps.Place) string {
	var b strings.Builder
	for i, p := range places {
		fmt.Fprintf(&b, "%d. %s (rating %.1f", i+1, p.Name, p.Rating)
		if p.UserRatingsTotal > 0 {
			fmt.Fprintf(&b, ", %d reviews", p.UserRatingsTotal)
		}
		if p.PriceLevel > 0 {
			fmt.Fprintf(&b, ", price %s", strings.Repeat("₹", p.PriceLevel))
		}
		b.WriteString(")")
		if p.Address != "" {
			b.WriteString(" - " + p.Address)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
