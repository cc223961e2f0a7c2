package search

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tripmate/internal/maps"
	"tripmate/internal/modules/preference"
)

type recordingSearcher struct {
	mu      sync.Mutex
	queries []string
	reply   string
	err     error
}

func (r *recordingSearcher) Search(_ context.Context, _ Category, query string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queries = append(r.queries, query)
	return r.reply, r.err
}

type recordingSummarizer struct {
	prompts []string
	temps   []float32
	err     error
}

func (r *recordingSummarizer) Summarize(_ context.Context, _ string, prompt string, temperature float32) (string, error) {
	r.prompts = append(r.prompts, prompt)
	r.temps = append(r.temps, temperature)
	if r.err != nil {
		return "", r.err
	}
	return "summary", nil
}

func goaTrip() preference.TravelContext {
	return preference.TravelContext{
		Destination: "Goa",
		Origin:      "Mumbai",
		Budget:      40000,
		PeopleCount: 2,
	}
}

func TestFlightsMissingDetailsMakeNoCalls(t *testing.T) {
	web := &recordingSearcher{reply: "raw"}
	sum := &recordingSummarizer{}
	f := NewFacade(web, sum, nil)

	got := f.Flights(context.Background(), preference.TravelContext{Origin: "Mumbai"})
	assert.Equal(t, "I need to know your destination to search for flights. Where would you like to go?", got)

	got = f.Flights(context.Background(), preference.TravelContext{Destination: "Goa"})
	assert.Equal(t, "I need to know your departure city to search for flights. Where will you be flying from?", got)

	assert.Empty(t, web.queries)
	assert.Empty(t, sum.prompts)
}

func TestOtherCategoriesNeedDestination(t *testing.T) {
	web := &recordingSearcher{}
	f := NewFacade(web, &recordingSummarizer{}, nil)
	ctx := context.Background()

	assert.Contains(t, f.Hotels(ctx, preference.TravelContext{}), "Where are you planning to stay?")
	assert.Contains(t, f.Activities(ctx, preference.TravelContext{}), "Where are you planning to visit?")
	assert.Contains(t, f.Restaurants(ctx, preference.TravelContext{}), "Where are you planning to dine?")
	assert.Empty(t, web.queries)
}

func TestFlightsQueryAndSummary(t *testing.T) {
	web := &recordingSearcher{reply: "IndiGo 6E 123"}
	sum := &recordingSummarizer{}
	f := NewFacade(web, sum, nil)

	got := f.Flights(context.Background(), goaTrip())
	assert.Equal(t, "summary", got)
	require.Len(t, web.queries, 1)
	assert.Equal(t, "best flights from Mumbai to Goa in flexible dates under budget 40000 INR", web.queries[0])
	require.Len(t, sum.prompts, 1)
	assert.Contains(t, sum.prompts[0], "for 2 people")
	assert.True(t, strings.HasSuffix(sum.prompts[0], "\n\nSearch results: IndiGo 6E 123"))
	assert.Equal(t, []float32{0.3}, sum.temps)
}

func TestHotelNightlyBudget(t *testing.T) {
	assert.Equal(t, 4000, NightlyHotelBudget(40000))
	assert.Equal(t, 0, NightlyHotelBudget(0))

	web := &recordingSearcher{reply: "raw"}
	f := NewFacade(web, &recordingSummarizer{}, nil)
	f.Hotels(context.Background(), goaTrip())
	f.Hotels(context.Background(), preference.TravelContext{Destination: "Goa"})

	assert.Equal(t, []string{
		"best hotels in Goa under 4000 INR per night with good reviews",
		"best hotels in Goa under flexible budget INR per night with good reviews",
	}, web.queries)
}

func TestActivityAndRestaurantPreferences(t *testing.T) {
	web := &recordingSearcher{reply: "raw"}
	sum := &recordingSummarizer{}
	f := NewFacade(web, sum, nil)
	tc := goaTrip()
	tc.ActivityPreferences = []string{"scuba", "nightlife"}

	f.Activities(context.Background(), tc)
	f.Restaurants(context.Background(), tc)
	tc.DietaryPreferences = []string{"vegan"}
	f.Restaurants(context.Background(), tc)

	assert.Equal(t, []string{
		"top things to do and activities in Goa tourist attractions scuba nightlife",
		"best restaurants in Goa for popular",
		"best restaurants in Goa for vegan",
	}, web.queries)
	assert.Contains(t, sum.prompts[0], "User preferences: scuba, nightlife")
	assert.Contains(t, sum.prompts[1], "Dietary preferences: None specified")
	assert.Equal(t, []float32{0.4, 0.4, 0.4}, sum.temps)
}

func TestFailuresDegradeToApology(t *testing.T) {
	ctx := context.Background()
	failing := NewFacade(&recordingSearcher{err: errors.New("timeout")}, &recordingSummarizer{}, nil)

	assert.Equal(t,
		"Flight search temporarily unavailable. Please try searching manually for flights from Mumbai to Goa.",
		failing.Flights(ctx, goaTrip()))
	assert.Equal(t,
		"Hotel search temporarily unavailable. Please try searching manually for hotels in Goa.",
		failing.Hotels(ctx, goaTrip()))

	summaryFails := NewFacade(&recordingSearcher{reply: "raw"}, &recordingSummarizer{err: errors.New("quota")}, nil)
	assert.Equal(t,
		"Activity search temporarily unavailable. Please try searching manually for activities in Goa.",
		summaryFails.Activities(ctx, goaTrip()))
	assert.Equal(t,
		"Restaurant search temporarily unavailable. Please try searching manually for restaurants in Goa.",
		summaryFails.Restaurants(ctx, goaTrip()))
}

type fixedRoute struct{ err error }

func (r fixedRoute) GetTravelEstimate(context.Context, string, string) (time.Duration, string, error) {
	return 9*time.Hour + 30*time.Minute, "590 km", r.err
}

func TestFlightsIncludeRoadEstimate(t *testing.T) {
	sum := &recordingSummarizer{}
	f := NewFacade(&recordingSearcher{reply: "raw"}, sum, nil, WithRouteEstimator(fixedRoute{}))
	f.Flights(context.Background(), goaTrip())
	require.Len(t, sum.prompts, 1)
	assert.Contains(t, sum.prompts[0], "Road alternative: about 9.5 hours by car (590 km).")

	sum = &recordingSummarizer{}
	f = NewFacade(&recordingSearcher{reply: "raw"}, sum, nil, WithRouteEstimator(fixedRoute{err: maps.ErrNoRoute}))
	assert.Equal(t, "summary", f.Flights(context.Background(), goaTrip()))
	assert.NotContains(t, sum.prompts[0], "Road alternative")
}

func TestSearchDispatch(t *testing.T) {
	web := &recordingSearcher{reply: "raw"}
	f := NewFacade(web, &recordingSummarizer{}, nil)

	got, err := f.Search(context.Background(), CategoryRestaurants, goaTrip())
	require.NoError(t, err)
	assert.Equal(t, "summary", got)

	_, err = f.Search(context.Background(), Category("trains"), goaTrip())
	assert.ErrorIs(t, err, ErrUnknownCategory)

	c, err := ParseCategory(" Hotels ")
	require.NoError(t, err)
	assert.Equal(t, CategoryHotels, c)
	_, err = ParseCategory("cars")
	assert.ErrorIs(t, err, ErrUnknownCategory)
}
