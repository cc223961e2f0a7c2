package ai

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"tripmate/internal/types"
)

const (
	tempIntent   = 0.3
	tempExtract  = 0.1
	tempReply    = 0.8
	tempSearch   = 0.3
	noResultText = "No search results available"
)

const intentSystemPrompt = `You analyze messages sent to a travel planning assistant and extract travel details.

Classify the intent as exactly one of:
- travel_request: the user wants to plan or book a trip
- preference_update: the user changes a preference, budget or detail of an existing plan
- clarification: the user asks a question about the plan or travel in general
- general: anything else

Extract these entities when present:
- destination: city or country
- origin: departure city
- dates: travel dates or trip length, as written
- budget: total trip budget in INR as a number
- people_count: number of travellers
- preferences: dietary, accessibility or activity preferences

Respond with a single JSON object and nothing else.`

const intentUserPrompt = `Context: %s

User message: %q

Return JSON shaped like:
{
  "intent": "travel_request|preference_update|clarification|general",
  "entities": {
    "destination": "string or null",
    "origin": "string or null",
    "dates": "string or null",
    "budget": "number or null",
    "people_count": "number or null",
    "preferences": ["strings"]
  },
  "requires_clarification": true,
  "confidence": "high|medium|low"
}`

const extractSystemPrompt = `You maintain the memory of a travel planning assistant.
Read the user's message and pull out preferences worth remembering: budget, destination, dates, group size, dietary needs, accessibility needs, activities and accommodation.
Only include values the user actually stated. Use null for anything not mentioned.
Respond with a single JSON object and nothing else.`

const extractUserPrompt = `User: %q
Context: %s

Return JSON shaped like:
{
  "budget": "number or null",
  "destination": "string or null",
  "dates": "string or null",
  "people_count": "number or null",
  "dietary_preferences": ["strings"],
  "activity_preferences": ["strings"],
  "accommodation_type": "string or null"
}`

const replySystemPrompt = `You are a friendly, professional travel agent. Write natural, conversational replies that:
- acknowledge what the user asked for
- present options clearly and in order
- ask a follow-up question when something is missing
- keep recommendations inside the user's budget
- include practical tips

Be concise. Use emojis sparingly.`

const travelReplyPrompt = `User request: %q

Context: %s

Search results: %s

Write a travel planning reply that presents the options found and asks for anything still needed.`

const confirmationPrompt = `User message: %q

Updated preferences: %s

Previous context: %s

Confirm the change briefly and offer to revise the travel recommendations with it.`

const clarificationPrompt = `User question: %q

Context: %s

Answer the question and keep the trip planning moving forward.`

const generalReplyPrompt = `User message: %q

Context: %s

Reply helpfully. If the user seems interested in travel, invite them to share where and when they want to go.`

const webSearchSystemPrompt = `You are a research assistant with up-to-date travel knowledge. Give accurate, current information with concrete names, prices and practical details.`

func intentRequest(message string, c *Context) Request {
	return Request{
		Purpose: PurposeIntent,
		Messages: []Message{
			{Role: RoleSystem, Content: intentSystemPrompt},
			{Role: RoleUser, Content: fmt.Sprintf(intentUserPrompt, contextJSON(c), message)},
		},
		Temperature: tempIntent,
		JSON:        true,
	}
}

func extractRequest(message string, c *Context) Request {
	return Request{
		Purpose: PurposeExtract,
		Messages: []Message{
			{Role: RoleSystem, Content: extractSystemPrompt},
			{Role: RoleUser, Content: fmt.Sprintf(extractUserPrompt, message, contextJSON(c))},
		},
		Temperature: tempExtract,
		JSON:        true,
	}
}

func replyRequest(purpose Purpose, user string) Request {
	return Request{
		Purpose: purpose,
		Messages: []Message{
			{Role: RoleSystem, Content: replySystemPrompt},
			{Role: RoleUser, Content: user},
		},
		Temperature: tempReply,
	}
}

func webSearchRequest(query string) Request {
	return Request{
		Purpose: PurposeWebSearch,
		Messages: []Message{
			{Role: RoleSystem, Content: webSearchSystemPrompt},
			{Role: RoleUser, Content: fmt.Sprintf("Search the web for: %s\n\nGive comprehensive, current information on this.", query)},
		},
		Temperature: tempSearch,
	}
}

func contextJSON(c *Context) string {
	if c == nil {
		return "{}"
	}
	b, err := json.Marshal(c)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// formatResults renders category results in a stable order.
func formatResults(results map[string]string) string {
	if len(results) == 0 {
		return noResultText
	}
	keys := make([]string, 0, len(results))
	for k := range results {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "## %s\n%s", k, results[k])
	}
	return b.String()
}

func formatUpdates(updates types.Values) string {
	if len(updates) == 0 {
		return "none"
	}
	keys := make([]string, 0, len(updates))
	for k := range updates {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + updates[k].String()
	}
	return strings.Join(parts, ", ")
}

// cleanJSONString removes markdown code blocks if present (e.g. ```json ... ```)
func cleanJSONString(input string) string {
	input = strings.TrimSpace(input)
	input = strings.TrimPrefix(input, "```json")
	input = strings.TrimPrefix(input, "```")
	input = strings.TrimSuffix(input, "```")
	return strings.TrimSpace(input)
}
