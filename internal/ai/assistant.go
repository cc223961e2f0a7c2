package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"tripmate/internal/types"
)

// Assistant turns conversation state into provider requests and parses the
// structured answers. JSON parsing fails open; provider errors do not.
type Assistant struct {
	provider Provider
	logger   *slog.Logger
}

func NewAssistant(provider Provider, logger *slog.Logger) *Assistant {
	if logger == nil {
		logger = slog.Default()
	}
	return &Assistant{provider: provider, logger: logger.With("component", "assistant")}
}

// AnalyzeIntent classifies message. Unparseable output yields FallbackIntent
// and unknown intent labels are routed as general.
func (a *Assistant) AnalyzeIntent(ctx context.Context, message string, c *Context) (*IntentResult, error) {
	raw, err := a.provider.Complete(ctx, intentRequest(message, c))
	if err != nil {
		return nil, fmt.Errorf("intent analysis failed: %w", err)
	}
	result, err := parseIntent(raw)
	if err != nil {
		a.logger.Warn("unparseable intent analysis", "error", err, "raw", truncate(raw, 200))
		return FallbackIntent(), nil
	}
	return result, nil
}

// ExtractPreferences returns the non-empty preferences stated in message.
// Unparseable output yields an empty set.
func (a *Assistant) ExtractPreferences(ctx context.Context, message string, c *Context) (types.Values, error) {
	raw, err := a.provider.Complete(ctx, extractRequest(message, c))
	if err != nil {
		return nil, fmt.Errorf("preference extraction failed: %w", err)
	}
	values, err := parseValues(raw)
	if err != nil {
		a.logger.Warn("unparseable preference extraction", "error", err, "raw", truncate(raw, 200))
		return types.Values{}, nil
	}
	return values, nil
}

func (a *Assistant) TravelReply(message string, c *Context, results map[string]string) Request {
	return replyRequest(PurposeTravelReply, fmt.Sprintf(travelReplyPrompt, message, contextJSON(c), formatResults(results)))
}

func (a *Assistant) ConfirmationReply(message string, c *Context, updates types.Values) Request {
	return replyRequest(PurposeConfirmation, fmt.Sprintf(confirmationPrompt, message, formatUpdates(updates), contextJSON(c)))
}

func (a *Assistant) ClarificationReply(message string, c *Context) Request {
	return replyRequest(PurposeClarification, fmt.Sprintf(clarificationPrompt, message, contextJSON(c)))
}

func (a *Assistant) GeneralReply(message string, c *Context) Request {
	return replyRequest(PurposeGeneralReply, fmt.Sprintf(generalReplyPrompt, message, contextJSON(c)))
}

// Generate runs a reply request to completion.
func (a *Assistant) Generate(ctx context.Context, req Request) (string, error) {
	out, err := a.provider.Complete(ctx, req)
	if err != nil {
		return "", fmt.Errorf("response generation failed: %w", err)
	}
	return out, nil
}

// Stream runs a reply request in streamed mode.
func (a *Assistant) Stream(ctx context.Context, req Request) (TextStream, error) {
	s, err := a.provider.Stream(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("response streaming failed: %w", err)
	}
	return s, nil
}

// WebSearch asks the model for current information on query.
func (a *Assistant) WebSearch(ctx context.Context, query string) (string, error) {
	out, err := a.provider.Complete(ctx, webSearchRequest(query))
	if err != nil {
		return "", fmt.Errorf("search failed: %w", err)
	}
	return out, nil
}

// Summarize condenses raw search output under a category-specific instruction.
func (a *Assistant) Summarize(ctx context.Context, system, prompt string, temperature float32) (string, error) {
	return a.provider.Complete(ctx, Request{
		Purpose: PurposeSearchSummary,
		Messages: []Message{
			{Role: RoleSystem, Content: system},
			{Role: RoleUser, Content: prompt},
		},
		Temperature: temperature,
	})
}

func parseIntent(raw string) (*IntentResult, error) {
	var wire struct {
		Intent                Intent                     `json:"intent"`
		Entities              map[string]json.RawMessage `json:"entities"`
		RequiresClarification bool                       `json:"requires_clarification"`
		Confidence            string                     `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(cleanJSONString(raw)), &wire); err != nil {
		return nil, err
	}
	if !wire.Intent.Known() {
		wire.Intent = IntentGeneral
	}
	return &IntentResult{
		Intent:                wire.Intent,
		Entities:              decodeLenient(wire.Entities),
		RequiresClarification: wire.RequiresClarification,
		Confidence:            wire.Confidence,
	}, nil
}

func parseValues(raw string) (types.Values, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(cleanJSONString(raw)), &fields); err != nil {
		return nil, err
	}
	return decodeLenient(fields), nil
}

// decodeLenient keeps every field that is a valid, non-empty preference value
// and silently drops the rest.
func decodeLenient(fields map[string]json.RawMessage) types.Values {
	out := types.Values{}
	for k, raw := range fields {
		var v types.Value
		if err := json.Unmarshal(raw, &v); err != nil || v.IsEmpty() {
			continue
		}
		out[k] = v
	}
	return out
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
