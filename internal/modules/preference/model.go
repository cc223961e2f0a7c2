// README: Preference keys and the TravelContext view derived from them.
package preference

import (
	"strconv"

	"tripmate/internal/types"
)

const (
	KeyDestination         = "destination"
	KeyOrigin              = "origin"
	KeyBudget              = "budget"
	KeyDates               = "dates"
	KeyPeopleCount         = "people_count"
	KeyDietaryPreferences  = "dietary_preferences"
	KeyActivityPreferences = "activity_preferences"
	KeyAccommodationType   = "accommodation_type"

	// entityPreferences is the classifier's name for activity preferences.
	entityPreferences = "preferences"

	DefaultOrigin      = "Delhi"
	DefaultPeopleCount = 1
)

var entityKeys = []string{KeyDestination, KeyOrigin, KeyBudget, KeyPeopleCount, KeyDates, entityPreferences}

// TravelContext is the normalised view of a session's preferences used by
// searches. A zero Budget means none was given.
type TravelContext struct {
	Destination         string   `json:"destination,omitempty"`
	Origin              string   `json:"origin,omitempty"`
	Budget              float64  `json:"budget,omitempty"`
	Dates               string   `json:"dates,omitempty"`
	PeopleCount         int      `json:"people_count"`
	DietaryPreferences  []string `json:"dietary_preferences"`
	ActivityPreferences []string `json:"activity_preferences"`
	AccommodationType   string   `json:"accommodation_type,omitempty"`
}

func (tc TravelContext) HasDestination() bool { return tc.Destination != "" }

// BudgetText renders the budget without a fractional part when whole.
func (tc TravelContext) BudgetText() string {
	if tc.Budget <= 0 {
		return ""
	}
	return strconv.FormatFloat(tc.Budget, 'f', -1, 64)
}

// BuildTravelContext fills defaults for origin and group size.
func BuildTravelContext(prefs types.Values, defaultOrigin string) TravelContext {
	if defaultOrigin == "" {
		defaultOrigin = DefaultOrigin
	}
	tc := TravelContext{
		Destination:         prefs[KeyDestination].String(),
		Origin:              prefs[KeyOrigin].String(),
		Dates:               prefs[KeyDates].String(),
		PeopleCount:         DefaultPeopleCount,
		DietaryPreferences:  prefs[KeyDietaryPreferences].Items(),
		ActivityPreferences: prefs[KeyActivityPreferences].Items(),
		AccommodationType:   prefs[KeyAccommodationType].String(),
	}
	if tc.Origin == "" {
		tc.Origin = defaultOrigin
	}
	if b, ok := prefs[KeyBudget].Float(); ok && b > 0 {
		tc.Budget = b
	}
	if n, ok := prefs[KeyPeopleCount].Int(); ok && n > 0 {
		tc.PeopleCount = int(n)
	}
	if tc.DietaryPreferences == nil {
		tc.DietaryPreferences = []string{}
	}
	if tc.ActivityPreferences == nil {
		tc.ActivityPreferences = []string{}
	}
	return tc
}

// FromEntities maps classifier entities to preference keys, keeping only
// present values.
func FromEntities(entities types.Values) types.Values {
	out := types.Values{}
	for _, k := range entityKeys {
		v, ok := entities[k]
		if !ok || v.IsEmpty() {
			continue
		}
		if k == entityPreferences {
			out[KeyActivityPreferences] = v
			continue
		}
		out[k] = v
	}
	return out
}
