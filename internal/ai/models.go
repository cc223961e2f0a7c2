package ai

import (
	"time"

	"tripmate/internal/types"
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Purpose labels a request so logs and test doubles can tell calls apart.
type Purpose string

const (
	PurposeIntent        Purpose = "intent"
	PurposeExtract       Purpose = "extract"
	PurposeTravelReply   Purpose = "travel_reply"
	PurposeConfirmation  Purpose = "confirmation"
	PurposeClarification Purpose = "clarification"
	PurposeGeneralReply  Purpose = "general_reply"
	PurposeWebSearch     Purpose = "web_search"
	PurposeSearchSummary Purpose = "search_summary"
)

type Message struct {
	Role    Role
	Content string
}

type Request struct {
	Purpose     Purpose
	Messages    []Message
	Temperature float32
	// JSON asks the model for a single JSON object.
	JSON      bool
	MaxTokens int
}

type Intent string

const (
	IntentTravelRequest    Intent = "travel_request"
	IntentPreferenceUpdate Intent = "preference_update"
	IntentClarification    Intent = "clarification"
	IntentGeneral          Intent = "general"
)

// Known reports whether i is one of the four routed intents.
func (i Intent) Known() bool {
	switch i {
	case IntentTravelRequest, IntentPreferenceUpdate, IntentClarification, IntentGeneral:
		return true
	}
	return false
}

// IntentResult captures the structured output of intent classification.
type IntentResult struct {
	Intent Intent `json:"intent"`

	// Entities holds destination, origin, dates, budget, people_count and
	// preferences. Missing or null entities are absent.
	Entities types.Values `json:"entities"`

	RequiresClarification bool   `json:"requires_clarification"`
	Confidence            string `json:"confidence"`
}

// FallbackIntent is what classification degrades to when the model output
// cannot be parsed.
func FallbackIntent() *IntentResult {
	return &IntentResult{
		Intent:                IntentGeneral,
		Entities:              types.Values{},
		RequiresClarification: true,
		Confidence:            "low",
	}
}

type ContextMessage struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Context is the running conversation state handed to every prompt.
type Context struct {
	SessionID    string              `json:"session_id"`
	Conversation ConversationHistory `json:"conversation"`
	Preferences  types.Values        `json:"preferences"`
	LastActivity time.Time           `json:"last_activity"`
}

type ConversationHistory struct {
	Messages     []ContextMessage `json:"messages"`
	MessageCount int              `json:"message_count"`
}
