package agent

import (
	"context"

	"tripmate/internal/eventbus"
	"tripmate/internal/modules/session"
	"tripmate/internal/types"
)

// ClearSession wipes a session between turns. A running turn finishes
// first, so none of its writes land after the clear.
func (a *Agent) ClearSession(ctx context.Context, sessionID string) (*session.ClearResult, error) {
	unlock, err := a.locker.Lock(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer unlock()
	return a.sessions.Clear(ctx, sessionID)
}

// UpdatePreferences merges caller-supplied preferences between turns and
// announces what was applied on the session's bus.
func (a *Agent) UpdatePreferences(ctx context.Context, sessionID string, updates types.Values) (types.Values, error) {
	unlock, err := a.locker.Lock(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	applied, err := a.preferences.Merge(ctx, sessionID, updates)
	if err != nil {
		return nil, err
	}
	if len(applied) > 0 {
		a.bus.Publish(sessionID, eventbus.Memory{Updates: applied})
	}
	return applied, nil
}
