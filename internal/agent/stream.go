package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"strings"

	"tripmate/internal/ai"
	"tripmate/internal/eventbus"
	"tripmate/internal/modules/preference"
	"tripmate/internal/store"
	"tripmate/internal/types"
)

const streamBuffer = 16

// ProcessMessageStream runs a turn and returns its events. The channel
// always ends with complete or error and is then closed. Cancelling ctx
// stops delivery, not the turn.
func (a *Agent) ProcessMessageStream(ctx context.Context, sessionID, message string) <-chan eventbus.Event {
	out := make(chan eventbus.Event, streamBuffer)

	go func() {
		defer close(out)

		emit := func(p eventbus.Payload) {
			select {
			case out <- eventbus.NewEvent(p):
			case <-ctx.Done():
			}
		}

		if strings.TrimSpace(message) == "" {
			emit(eventbus.Error{Message: streamingErrorText})
			return
		}
		turnCtx, release, err := a.lockTurn(ctx, sessionID)
		if err != nil {
			a.logger.Warn("turn lock not acquired", "session_id", sessionID, "error", err)
			emit(eventbus.Error{Message: streamingErrorText})
			return
		}
		defer release()

		if err := a.processStream(turnCtx, sessionID, message, emit); err != nil {
			a.logger.Error("streaming turn failed", "session_id", sessionID, "error", err)
			emit(eventbus.Error{Message: streamingErrorText})
			return
		}
		emit(eventbus.Complete{})
	}()

	return out
}

func (a *Agent) processStream(ctx context.Context, sessionID, message string, emit emitter) error {
	if _, err := a.conversations.Append(ctx, sessionID, store.RoleUser, message, nil); err != nil {
		return err
	}
	emit(eventbus.Start{Message: "Processing your request..."})

	c, err := a.loadContext(ctx, sessionID)
	if err != nil {
		return err
	}

	emit(eventbus.Action{ActionType: eventbus.ActionAnalyzeIntent, Description: "Analyzing your travel request"})
	analysis, err := a.assistant.AnalyzeIntent(ctx, message, c)
	if err != nil {
		return err
	}

	// Entities first, then whatever the extraction pass finds on top.
	updates := preference.FromEntities(analysis.Entities)
	if extra, err := a.assistant.ExtractPreferences(ctx, message, c); err != nil {
		a.logger.Warn("preference extraction skipped", "session_id", sessionID, "error", err)
	} else {
		maps.Copy(updates, extra)
	}
	applied, err := a.applyPreferences(ctx, sessionID, updates, emit)
	if err != nil {
		return err
	}
	tc, err := a.refresh(ctx, sessionID, c)
	if err != nil {
		return err
	}

	var results map[string]string
	if analysis.Intent == ai.IntentTravelRequest && tc.HasDestination() {
		results = a.runSearches(ctx, tc, emit)
	}

	emit(eventbus.ResponseStart{Message: "Generating your travel recommendations..."})
	reply, err := a.streamReply(ctx, a.replyRequest(message, analysis.Intent, c, results, applied), emit)
	if err != nil {
		return err
	}
	if err := a.saveReply(ctx, sessionID, reply, analysis.Intent); err != nil {
		return fmt.Errorf("save reply: %w", err)
	}
	a.touchSession(ctx, sessionID, message)
	return nil
}

func (a *Agent) replyRequest(message string, intent ai.Intent, c *ai.Context, results map[string]string, applied types.Values) ai.Request {
	switch intent {
	case ai.IntentTravelRequest:
		return a.assistant.TravelReply(message, c, results)
	case ai.IntentPreferenceUpdate:
		return a.assistant.ConfirmationReply(message, c, applied)
	case ai.IntentClarification:
		return a.assistant.ClarificationReply(message, c)
	default:
		return a.assistant.GeneralReply(message, c)
	}
}

// streamReply forwards every fragment as a token event and returns the
// concatenated reply.
func (a *Agent) streamReply(ctx context.Context, req ai.Request, emit emitter) (string, error) {
	stream, err := a.assistant.Stream(ctx, req)
	if err != nil {
		return "", err
	}
	defer stream.Close()

	var sb strings.Builder
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("receive fragment: %w", err)
		}
		sb.WriteString(chunk)
		emit(eventbus.Token{Content: chunk})
	}
	return sb.String(), nil
}
