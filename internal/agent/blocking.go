package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"tripmate/internal/ai"
	"tripmate/internal/eventbus"
	"tripmate/internal/modules/preference"
	"tripmate/internal/store"
)

// ProcessMessage runs a turn to completion. Progress goes to the session's
// event bus subscribers; the reply is also returned.
func (a *Agent) ProcessMessage(ctx context.Context, sessionID, message string) (*Result, error) {
	if strings.TrimSpace(message) == "" {
		return nil, ErrEmptyMessage
	}
	turnCtx, release, err := a.lockTurn(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer release()

	emit := func(p eventbus.Payload) { a.bus.Publish(sessionID, p) }

	res, err := a.processMessage(turnCtx, sessionID, message, emit)
	if err != nil {
		a.logger.Error("turn failed", "session_id", sessionID, "error", err)
		emit(eventbus.Typing{Typing: false})
		emit(eventbus.Error{Message: blockingErrorText})
		return nil, err
	}
	return res, nil
}

func (a *Agent) processMessage(ctx context.Context, sessionID, message string, emit emitter) (*Result, error) {
	// 1. Log the user turn and load context
	if _, err := a.conversations.Append(ctx, sessionID, store.RoleUser, message, nil); err != nil {
		return nil, err
	}
	emit(eventbus.Typing{Typing: true})

	c, err := a.loadContext(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	// 2. Classify
	emit(eventbus.Action{
		ActionType:  eventbus.ActionAnalyzeIntent,
		Description: "Analyzing your message and understanding your travel needs",
	})
	analysis, err := a.assistant.AnalyzeIntent(ctx, message, c)
	if err != nil {
		return nil, err
	}
	a.logger.Debug("intent classified", "session_id", sessionID, "intent", analysis.Intent, "confidence", analysis.Confidence)

	// 3. Branch
	var reply string
	switch analysis.Intent {
	case ai.IntentTravelRequest:
		reply, err = a.handleTravelRequest(ctx, sessionID, message, analysis, c, emit)
	case ai.IntentPreferenceUpdate:
		reply, err = a.handlePreferenceUpdate(ctx, sessionID, message, c, emit)
	case ai.IntentClarification:
		emit(eventbus.Action{ActionType: eventbus.ActionGenerateResponse, Description: "Answering your question"})
		reply, err = a.assistant.Generate(ctx, a.assistant.ClarificationReply(message, c))
	default:
		emit(eventbus.Action{ActionType: eventbus.ActionGenerateResponse, Description: "Generating response"})
		reply, err = a.assistant.Generate(ctx, a.assistant.GeneralReply(message, c))
	}
	if err != nil {
		return nil, err
	}

	// 4. Persist and deliver
	if err := a.saveReply(ctx, sessionID, reply, analysis.Intent); err != nil {
		return nil, fmt.Errorf("save reply: %w", err)
	}
	emit(eventbus.Response{Content: reply, Metadata: map[string]any{"intent": string(analysis.Intent)}})
	emit(eventbus.Typing{Typing: false})

	a.touchSession(ctx, sessionID, message)

	return &Result{
		Response:  reply,
		Timestamp: a.now().Format(time.RFC3339),
		Intent:    analysis.Intent,
	}, nil
}

func (a *Agent) handleTravelRequest(ctx context.Context, sessionID, message string, analysis *ai.IntentResult, c *ai.Context, emit emitter) (string, error) {
	if _, err := a.applyPreferences(ctx, sessionID, preference.FromEntities(analysis.Entities), emit); err != nil {
		return "", err
	}
	tc, err := a.refresh(ctx, sessionID, c)
	if err != nil {
		return "", err
	}

	var results map[string]string
	if tc.HasDestination() {
		results = a.runSearches(ctx, tc, emit)
	}

	emit(eventbus.Action{ActionType: eventbus.ActionGenerateResponse, Description: "Generating travel recommendations"})
	return a.assistant.Generate(ctx, a.assistant.TravelReply(message, c, results))
}

func (a *Agent) handlePreferenceUpdate(ctx context.Context, sessionID, message string, c *ai.Context, emit emitter) (string, error) {
	extracted, err := a.assistant.ExtractPreferences(ctx, message, c)
	if err != nil {
		return "", err
	}
	applied, err := a.applyPreferences(ctx, sessionID, extracted, emit)
	if err != nil {
		return "", err
	}
	if _, err := a.refresh(ctx, sessionID, c); err != nil {
		return "", err
	}
	return a.assistant.Generate(ctx, a.assistant.ConfirmationReply(message, c, applied))
}
