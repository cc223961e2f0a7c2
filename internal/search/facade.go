// README: Search facade; category lookups over a web searcher plus a summarising model.
package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"tripmate/internal/modules/preference"
)

type Category string

const (
	CategoryFlights     Category = "flights"
	CategoryHotels      Category = "hotels"
	CategoryActivities  Category = "activities"
	CategoryRestaurants Category = "restaurants"
)

var ErrUnknownCategory = errors.New("unknown search category")

func ParseCategory(s string) (Category, error) {
	switch c := Category(strings.ToLower(strings.TrimSpace(s))); c {
	case CategoryFlights, CategoryHotels, CategoryActivities, CategoryRestaurants:
		return c, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCategory, s)
}

// WebSearcher fetches raw, unsummarised results for a query.
type WebSearcher interface {
	Search(ctx context.Context, category Category, query string) (string, error)
}

// Summarizer condenses raw results into recommendations.
type Summarizer interface {
	Summarize(ctx context.Context, system, prompt string, temperature float32) (string, error)
}

// RouteEstimator reports driving time and distance between two places.
type RouteEstimator interface {
	GetTravelEstimate(ctx context.Context, origin, destination string) (time.Duration, string, error)
}

const (
	estimatedNights  = 3
	hotelBudgetShare = 0.3

	tempFlights     = 0.3
	tempHotels      = 0.3
	tempActivities  = 0.4
	tempRestaurants = 0.4
)

// Facade runs one category lookup at a time. Every method returns text that
// can be shown to the user: a clarifying question when details are missing
// and an apology when a collaborator fails.
type Facade struct {
	web        WebSearcher
	summarizer Summarizer
	routes     RouteEstimator
	logger     *slog.Logger
}

type Option func(*Facade)

// WithRouteEstimator adds a road-travel estimate to flight results.
func WithRouteEstimator(r RouteEstimator) Option {
	return func(f *Facade) { f.routes = r }
}

func NewFacade(web WebSearcher, summarizer Summarizer, logger *slog.Logger, opts ...Option) *Facade {
	if logger == nil {
		logger = slog.Default()
	}
	f := &Facade{
		web:        web,
		summarizer: summarizer,
		logger:     logger.With("component", "search"),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Search dispatches to the category's lookup.
func (f *Facade) Search(ctx context.Context, category Category, tc preference.TravelContext) (string, error) {
	switch category {
	case CategoryFlights:
		return f.Flights(ctx, tc), nil
	case CategoryHotels:
		return f.Hotels(ctx, tc), nil
	case CategoryActivities:
		return f.Activities(ctx, tc), nil
	case CategoryRestaurants:
		return f.Restaurants(ctx, tc), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCategory, category)
}

func (f *Facade) Flights(ctx context.Context, tc preference.TravelContext) string {
	if tc.Destination == "" {
		return "I need to know your destination to search for flights. Where would you like to go?"
	}
	if tc.Origin == "" {
		return "I need to know your departure city to search for flights. Where will you be flying from?"
	}

	budget := tc.BudgetText()
	query := fmt.Sprintf("best flights from %s to %s in %s under budget %s INR",
		tc.Origin, tc.Destination, orDefault(tc.Dates, "flexible dates"), orDefault(budget, "flexible budget"))

	raw, err := f.web.Search(ctx, CategoryFlights, query)
	if err != nil {
		return f.unavailable(CategoryFlights, err,
			fmt.Sprintf("Flight search temporarily unavailable. Please try searching manually for flights from %s to %s.", tc.Origin, tc.Destination))
	}
	if road := f.roadEstimate(ctx, tc.Origin, tc.Destination); road != "" {
		raw += "\n\n" + road
	}

	prompt := fmt.Sprintf("Find flights from %s to %s for %s people, budget up to ₹%s.\n\n"+
		"Cover airlines, prices, duration, stops, departure times and booking tips.",
		tc.Origin, tc.Destination, peopleText(tc.PeopleCount), orDefault(budget, "flexible"))
	out, err := f.summarizer.Summarize(ctx,
		"You are a flight search assistant. Use the web results to give practical flight options with current prices and booking advice.",
		withResults(prompt, raw), tempFlights)
	if err != nil {
		return f.unavailable(CategoryFlights, err,
			fmt.Sprintf("Flight search temporarily unavailable. Please try searching manually for flights from %s to %s.", tc.Origin, tc.Destination))
	}
	return out
}

func (f *Facade) Hotels(ctx context.Context, tc preference.TravelContext) string {
	if tc.Destination == "" {
		return "I need to know your destination to search for hotels. Where are you planning to stay?"
	}
	apology := fmt.Sprintf("Hotel search temporarily unavailable. Please try searching manually for hotels in %s.", tc.Destination)

	nightly := ""
	if n := NightlyHotelBudget(tc.Budget); n > 0 {
		nightly = fmt.Sprintf("%d", n)
	}
	query := fmt.Sprintf("best hotels in %s under %s INR per night with good reviews",
		tc.Destination, orDefault(nightly, "flexible budget"))

	raw, err := f.web.Search(ctx, CategoryHotels, query)
	if err != nil {
		return f.unavailable(CategoryHotels, err, apology)
	}

	prompt := fmt.Sprintf("Find hotels in %s for %s people, budget ₹%s per night.\n\n"+
		"Cover hotel names, prices, ratings, amenities, location and booking tips.",
		tc.Destination, peopleText(tc.PeopleCount), orDefault(nightly, "flexible"))
	out, err := f.summarizer.Summarize(ctx,
		"You are a hotel search assistant. Use the web results to give practical hotel options with current prices, ratings and booking advice.",
		withResults(prompt, raw), tempHotels)
	if err != nil {
		return f.unavailable(CategoryHotels, err, apology)
	}
	return out
}

func (f *Facade) Activities(ctx context.Context, tc preference.TravelContext) string {
	if tc.Destination == "" {
		return "I need to know your destination to search for activities. Where are you planning to visit?"
	}
	apology := fmt.Sprintf("Activity search temporarily unavailable. Please try searching manually for activities in %s.", tc.Destination)

	query := fmt.Sprintf("top things to do and activities in %s tourist attractions", tc.Destination)
	if len(tc.ActivityPreferences) > 0 {
		query += " " + strings.Join(tc.ActivityPreferences, " ")
	}

	raw, err := f.web.Search(ctx, CategoryActivities, query)
	if err != nil {
		return f.unavailable(CategoryActivities, err, apology)
	}

	prompt := fmt.Sprintf("Find the top activities and attractions in %s for %s people.\n\n"+
		"Cover names, types, duration, prices, ratings, descriptions and booking info.",
		tc.Destination, peopleText(tc.PeopleCount))
	if len(tc.ActivityPreferences) > 0 {
		prompt += "\n\nUser preferences: " + strings.Join(tc.ActivityPreferences, ", ")
	}
	out, err := f.summarizer.Summarize(ctx,
		"You are a travel activities assistant. Use the web results to recommend activities with descriptions, prices and booking information.",
		withResults(prompt, raw), tempActivities)
	if err != nil {
		return f.unavailable(CategoryActivities, err, apology)
	}
	return out
}

func (f *Facade) Restaurants(ctx context.Context, tc preference.TravelContext) string {
	if tc.Destination == "" {
		return "I need to know your destination to search for restaurants. Where are you planning to dine?"
	}
	apology := fmt.Sprintf("Restaurant search temporarily unavailable. Please try searching manually for restaurants in %s.", tc.Destination)

	prefs := "popular"
	dietary := "None specified"
	if len(tc.DietaryPreferences) > 0 {
		prefs = strings.Join(tc.DietaryPreferences, " ")
		dietary = strings.Join(tc.DietaryPreferences, ", ")
	}
	query := fmt.Sprintf("best restaurants in %s for %s", tc.Destination, prefs)

	raw, err := f.web.Search(ctx, CategoryRestaurants, query)
	if err != nil {
		return f.unavailable(CategoryRestaurants, err, apology)
	}

	prompt := fmt.Sprintf("Recommend restaurants in %s. Dietary preferences: %s", tc.Destination, dietary)
	out, err := f.summarizer.Summarize(ctx,
		"You are a restaurant recommendation assistant. Use the web results to suggest restaurants with cuisine, prices and location.",
		withResults(prompt, raw), tempRestaurants)
	if err != nil {
		return f.unavailable(CategoryRestaurants, err, apology)
	}
	return out
}

// NightlyHotelBudget assumes 30% of the trip budget goes to a three night stay.
func NightlyHotelBudget(budget float64) int {
	if budget <= 0 {
		return 0
	}
	return int(budget * hotelBudgetShare / estimatedNights)
}

func (f *Facade) roadEstimate(ctx context.Context, origin, destination string) string {
	if f.routes == nil {
		return ""
	}
	d, distance, err := f.routes.GetTravelEstimate(ctx, origin, destination)
	if err != nil {
		f.logger.Debug("road estimate unavailable", "origin", origin, "destination", destination, "error", err)
		return ""
	}
	return fmt.Sprintf("Road alternative: about %.1f hours by car (%s).", d.Hours(), distance)
}

func (f *Facade) unavailable(category Category, err error, apology string) string {
	f.logger.Error("search failed", "category", category, "error", err)
	return apology
}

func withResults(prompt, raw string) string {
	return prompt + "\n\nSearch results: " + raw
}

func peopleText(n int) string {
	if n <= 0 {
		return "not specified"
	}
	return fmt.Sprintf("%d", n)
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
