// README: Conversation orchestrator; runs one chat turn end to end and reports progress events.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"tripmate/internal/ai"
	"tripmate/internal/eventbus"
	"tripmate/internal/modules/conversation"
	"tripmate/internal/modules/preference"
	"tripmate/internal/modules/session"
	"tripmate/internal/store"
	"tripmate/internal/turnlock"
	"tripmate/internal/types"
)

const (
	DefaultContextMessages = 10
	DefaultTurnTimeout     = 3 * time.Minute

	blockingErrorText  = "I apologize, I encountered an error. Please try again."
	streamingErrorText = "Sorry, I encountered an error. Please try again."
)

var ErrEmptyMessage = errors.New("message is empty")

// Searcher runs the per-category lookups of a travel turn.
type Searcher interface {
	Flights(ctx context.Context, tc preference.TravelContext) string
	Hotels(ctx context.Context, tc preference.TravelContext) string
	Activities(ctx context.Context, tc preference.TravelContext) string
}

// Publisher receives the progress events of blocking turns.
type Publisher interface {
	Publish(sessionID string, p eventbus.Payload)
}

type Config struct {
	// ContextMessages is how many recent messages each prompt sees.
	ContextMessages int
	// TurnTimeout bounds a turn once it has started; caller cancellation
	// does not stop it.
	TurnTimeout time.Duration
}

type Deps struct {
	Assistant     *ai.Assistant
	Conversations *conversation.Service
	Preferences   *preference.Service
	Sessions      *session.Service
	Search        Searcher
	Bus           Publisher
	Locker        turnlock.Locker
	Logger        *slog.Logger
	Config        Config
}

// Agent is safe for concurrent use. Turns on one session never overlap.
type Agent struct {
	assistant     *ai.Assistant
	conversations *conversation.Service
	preferences   *preference.Service
	sessions      *session.Service
	search        Searcher
	bus           Publisher
	locker        turnlock.Locker
	logger        *slog.Logger
	cfg           Config
	now           func() time.Time
}

func NewAgent(d Deps) *Agent {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg := d.Config
	if cfg.ContextMessages <= 0 {
		cfg.ContextMessages = DefaultContextMessages
	}
	if cfg.TurnTimeout <= 0 {
		cfg.TurnTimeout = DefaultTurnTimeout
	}
	locker := d.Locker
	if locker == nil {
		locker = turnlock.NewLocalLocker()
	}
	var bus Publisher = discard{}
	if d.Bus != nil {
		bus = d.Bus
	}
	return &Agent{
		assistant:     d.Assistant,
		conversations: d.Conversations,
		preferences:   d.Preferences,
		sessions:      d.Sessions,
		search:        d.Search,
		bus:           bus,
		locker:        locker,
		logger:        logger.With("component", "agent"),
		cfg:           cfg,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

type discard struct{}

func (discard) Publish(string, eventbus.Payload) {}

// Result is the outcome of a blocking turn.
type Result struct {
	Response  string    `json:"response"`
	Timestamp string    `json:"timestamp"`
	Intent    ai.Intent `json:"intent"`
}

// emitter delivers one progress event of a turn.
type emitter func(p eventbus.Payload)

// lockTurn waits for the session's turn lock on the caller's context and
// returns a context for the turn that outlives the caller.
func (a *Agent) lockTurn(ctx context.Context, sessionID string) (context.Context, func(), error) {
	unlock, err := a.locker.Lock(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	turnCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.TurnTimeout)
	return turnCtx, func() {
		cancel()
		unlock()
	}, nil
}

// loadContext builds the prompt context from recent messages and preferences.
func (a *Agent) loadContext(ctx context.Context, sessionID string) (*ai.Context, error) {
	msgs, err := a.conversations.Recent(ctx, sessionID, a.cfg.ContextMessages)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	prefs, err := a.preferences.All(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load preferences: %w", err)
	}
	history := make([]ai.ContextMessage, 0, len(msgs))
	for _, m := range msgs {
		history = append(history, ai.ContextMessage{
			Role:      string(m.Role),
			Content:   m.Content,
			Timestamp: m.Timestamp,
		})
	}
	return &ai.Context{
		SessionID: sessionID,
		Conversation: ai.ConversationHistory{
			Messages:     history,
			MessageCount: len(history),
		},
		Preferences:  prefs,
		LastActivity: a.now(),
	}, nil
}

// applyPreferences merges updates and announces what was written.
func (a *Agent) applyPreferences(ctx context.Context, sessionID string, updates types.Values, emit emitter) (types.Values, error) {
	if len(updates) == 0 {
		return types.Values{}, nil
	}
	applied, err := a.preferences.Merge(ctx, sessionID, updates)
	if err != nil {
		return nil, fmt.Errorf("merge preferences: %w", err)
	}
	if len(applied) > 0 {
		emit(eventbus.Memory{Updates: applied})
		emit(eventbus.Action{
			ActionType:  eventbus.ActionUpdateMemory,
			Description: "Updated preferences: " + strings.Join(preference.SortedKeys(applied), ", "),
		})
	}
	return applied, nil
}

// refresh re-reads preferences after a merge so prompts see current values.
func (a *Agent) refresh(ctx context.Context, sessionID string, c *ai.Context) (preference.TravelContext, error) {
	prefs, tc, err := a.preferences.Snapshot(ctx, sessionID)
	if err != nil {
		return preference.TravelContext{}, fmt.Errorf("load preferences: %w", err)
	}
	c.Preferences = prefs
	return tc, nil
}

// runSearches performs the travel lookups in order, announcing each first.
func (a *Agent) runSearches(ctx context.Context, tc preference.TravelContext, emit emitter) map[string]string {
	results := make(map[string]string, 3)

	emit(eventbus.Action{ActionType: eventbus.ActionSearchFlights, Description: "Searching for flights to " + tc.Destination})
	results["flights"] = a.search.Flights(ctx, tc)

	emit(eventbus.Action{ActionType: eventbus.ActionSearchHotels, Description: "Finding hotels in " + tc.Destination})
	results["hotels"] = a.search.Hotels(ctx, tc)

	emit(eventbus.Action{ActionType: eventbus.ActionSearchActivities, Description: "Discovering activities in " + tc.Destination})
	results["activities"] = a.search.Activities(ctx, tc)

	return results
}

// touchSession keeps session metadata current. Failures only get logged.
func (a *Agent) touchSession(ctx context.Context, sessionID, message string) {
	if a.sessions == nil {
		return
	}
	if err := a.sessions.Touch(ctx, sessionID, message); err != nil {
		a.logger.Warn("session touch failed", "session_id", sessionID, "error", err)
	}
}

func (a *Agent) saveReply(ctx context.Context, sessionID, reply string, intent ai.Intent) error {
	if strings.TrimSpace(reply) == "" {
		return ai.ErrEmptyCompletion
	}
	_, err := a.conversations.Append(ctx, sessionID, store.RoleAssistant, reply, map[string]any{"intent": string(intent)})
	return err
}
