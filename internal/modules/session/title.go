package session

import (
	"fmt"
	"strings"
	"time"

	"tripmate/internal/types"
)

var travelKeywords = map[string]struct{}{
	"trip": {}, "travel": {}, "vacation": {}, "holiday": {}, "visit": {}, "tour": {},
}

// DeriveTitle names a session after what it is planning. Without a
// destination it falls back to the latest user message, then the date.
func DeriveTitle(prefs types.Values, latestMessage string, now time.Time) string {
	destination := prefs["destination"].String()
	origin := prefs["origin"].String()
	budget := budgetLabel(prefs["budget"])

	switch {
	case destination != "" && origin != "":
		if budget != "" {
			return fmt.Sprintf("%s to %s Trip (%s)", origin, destination, budget)
		}
		return fmt.Sprintf("%s to %s Trip", origin, destination)
	case destination != "":
		if budget != "" {
			return fmt.Sprintf("%s Trip (%s)", destination, budget)
		}
		return destination + " Travel Plan"
	}

	for _, w := range strings.Fields(strings.ToLower(latestMessage)) {
		if _, ok := travelKeywords[w]; ok {
			return "Travel Planning"
		}
	}
	return "Chat " + now.UTC().Format("Jan 02")
}

// DefaultTitle is used when nothing better is known.
func DefaultTitle(sessionID string) string {
	return "Chat Session " + shortID(sessionID)
}

func budgetLabel(v types.Value) string {
	n, ok := v.Int()
	if !ok || n <= 0 {
		return ""
	}
	return types.Rupees(n).String()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
