package maps

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"googlemaps.github.io/maps"
)

func TestFilterPlaces(t *testing.T) {
	results := []maps.PlacesSearchResult{
		{Name: "Taj Exotica", Rating: 4.7, PlaceID: "a", FormattedAddress: "Benaulim"},
		{Name: "Budget Inn", Rating: 3.2, PlaceID: "b"},
		{Name: "Closed Resort", Rating: 4.5, PlaceID: "c"},
		{Name: "Leela", Rating: 4.6, PlaceID: "d"},
		{Name: "Alila", Rating: 4.4, PlaceID: "e"},
	}

	got := filterPlaces(results, 4.0, 2, []string{"closed"})
	assert.Len(t, got, 2)
	assert.Equal(t, "Taj Exotica", got[0].Name)
	assert.Equal(t, "Benaulim", got[0].Address)
	assert.Equal(t, "Leela", got[1].Name)
}

func TestFilterPlacesEmpty(t *testing.T) {
	assert.Empty(t, filterPlaces(nil, 4.0, 5, nil))
}

func TestFastestRoute(t *testing.T) {
	routes := []maps.Route{
		{Legs: []*maps.Leg{
			{Duration: 5 * time.Hour, Distance: maps.Distance{Meters: 400000}},
		}},
		{Legs: []*maps.Leg{
			{Duration: 2 * time.Hour, Distance: maps.Distance{Meters: 150000}},
			{Duration: 2 * time.Hour, Distance: maps.Distance{Meters: 160000}},
		}},
		{},
	}

	d, meters, ok := fastestRoute(routes)
	require.True(t, ok)
	assert.Equal(t, 4*time.Hour, d)
	assert.Equal(t, 310000, meters)

	_, _, ok = fastestRoute([]maps.Route{{}})
	assert.False(t, ok)
}

func TestFormatDistance(t *testing.T) {
	assert.Equal(t, "850 m", formatDistance(850))
	assert.Equal(t, "588 km", formatDistance(587600))
}
