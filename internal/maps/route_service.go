package maps

import (
	"context"
	"errors"
	"fmt"
	"time"

	"googlemaps.github.io/maps"
)

var ErrNoRoute = errors.New("no route found")

// RouteService estimates road journeys between cities with the Directions API.
type RouteService struct {
	client *maps.Client
	region string
}

func NewRouteService(apiKey, region string) (*RouteService, error) {
	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	if region == "" {
		region = defaultRegion
	}
	return &RouteService{client: client, region: region}, nil
}

// GetTravelEstimate returns the driving time and distance of the quickest
// route Directions offers between origin and destination.
func (s *RouteService) GetTravelEstimate(ctx context.Context, origin, destination string) (time.Duration, string, error) {
	routes, _, err := s.client.Directions(ctx, &maps.DirectionsRequest{
		Origin:       origin,
		Destination:  destination,
		Mode:         maps.TravelModeDriving,
		Alternatives: true,
		Language:     defaultLanguage,
		Region:       s.region,
	})
	if err != nil {
		return 0, "", fmt.Errorf("directions %s -> %s: %w", origin, destination, err)
	}

	d, meters, ok := fastestRoute(routes)
	if !ok {
		return 0, "", ErrNoRoute
	}
	return d, formatDistance(meters), nil
}

// fastestRoute sums each route's legs and keeps the shortest total time.
func fastestRoute(routes []maps.Route) (time.Duration, int, bool) {
	var (
		best   time.Duration
		meters int
		found  bool
	)
	for _, r := range routes {
		if len(r.Legs) == 0 {
			continue
		}
		var d time.Duration
		var m int
		for _, leg := range r.Legs {
			if leg == nil {
				continue
			}
			d += leg.Duration
			m += leg.Distance.Meters
		}
		if !found || d < best {
			best, meters, found = d, m, true
		}
	}
	return best, meters, found
}

func formatDistance(meters int) string {
	if meters < 1000 {
		return fmt.Sprintf("%d m", meters)
	}
	return fmt.Sprintf("%.0f km", float64(meters)/1000)
}
