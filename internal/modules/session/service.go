// README: Session metadata; derived titles, enriched listing and full clear.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"tripmate/internal/store"
	"tripmate/internal/types"
)

const DefaultListLimit = 50

var (
	ErrNotFound   = errors.New("session not found")
	ErrEmptyTitle = errors.New("title is empty")
)

// Summary is a session row enriched with message count and trip basics.
type Summary struct {
	SessionID    string      `json:"session_id"`
	Title        string      `json:"title"`
	LastMessage  string      `json:"last_message,omitempty"`
	LastUpdated  time.Time   `json:"last_updated"`
	CreatedAt    time.Time   `json:"created_at"`
	MessageCount int         `json:"message_count"`
	Destination  types.Value `json:"destination"`
	Budget       types.Value `json:"budget"`
}

// ClearResult reports what a clear removed.
type ClearResult struct {
	MessagesDeleted    int  `json:"messages_deleted"`
	PreferencesDeleted int  `json:"preferences_deleted"`
	SessionDeleted     bool `json:"session_deleted"`
}

type Service struct {
	store  store.Store
	logger *slog.Logger
	now    func() time.Time
}

func NewService(st store.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  st,
		logger: logger.With("component", "session"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Create registers a session. An empty sessionID gets a fresh UUID and an
// empty title gets the default one.
func (s *Service) Create(ctx context.Context, sessionID, title string) (*store.Session, error) {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	title = strings.TrimSpace(title)
	now := s.now()
	sess := &store.Session{
		SessionID:       sessionID,
		Title:           title,
		TitleOverridden: title != "",
		CreatedAt:       now,
		LastUpdated:     now,
	}
	if title == "" {
		sess.Title = DefaultTitle(sessionID)
	}
	if err := s.store.UpsertSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return sess, nil
}

func (s *Service) Get(ctx context.Context, sessionID string) (*store.Session, error) {
	sess, err := s.store.GetSession(ctx, sessionID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	return sess, err
}

// Touch records a turn. The title is re-derived from current preferences
// unless the caller has overridden it.
func (s *Service) Touch(ctx context.Context, sessionID, lastMessage string) error {
	now := s.now()
	sess, err := s.store.GetSession(ctx, sessionID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		sess = &store.Session{SessionID: sessionID, CreatedAt: now}
	case err != nil:
		return err
	}

	if !sess.TitleOverridden {
		prefs, err := s.preferences(ctx, sessionID)
		if err != nil {
			return err
		}
		sess.Title = DeriveTitle(prefs, lastMessage, now)
	}
	if lastMessage != "" {
		sess.LastMessage = lastMessage
	}
	sess.LastUpdated = now
	return s.store.UpsertSession(ctx, sess)
}

// SetTitle pins an explicit title; later turns keep it until Regenerate.
func (s *Service) SetTitle(ctx context.Context, sessionID, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return ErrEmptyTitle
	}
	now := s.now()
	sess, err := s.store.GetSession(ctx, sessionID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		sess = &store.Session{SessionID: sessionID, CreatedAt: now}
	case err != nil:
		return err
	}
	sess.Title = title
	sess.TitleOverridden = true
	sess.LastUpdated = now
	if err := s.store.UpsertSession(ctx, sess); err != nil {
		return err
	}
	s.logger.Debug("session title set", "session_id", sessionID, "title", title)
	return nil
}

// Regenerate drops any override and derives the title again from the
// preferences and the latest message when it came from the user.
func (s *Service) Regenerate(ctx context.Context, sessionID string) (string, error) {
	sess, err := s.Get(ctx, sessionID)
	if err != nil {
		return "", err
	}
	last, err := s.store.RecentMessages(ctx, sessionID, 1)
	if err != nil {
		return "", err
	}
	var latest string
	if len(last) == 1 && last[0].Role == store.RoleUser {
		latest = last[0].Content
	}
	prefs, err := s.preferences(ctx, sessionID)
	if err != nil {
		return "", err
	}

	now := s.now()
	sess.Title = DeriveTitle(prefs, latest, now)
	sess.TitleOverridden = false
	sess.LastUpdated = now
	if err := s.store.UpsertSession(ctx, sess); err != nil {
		return "", err
	}
	return sess.Title, nil
}

// List returns sessions newest first with per-session metadata.
func (s *Service) List(ctx context.Context, limit int) ([]Summary, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	sessions, err := s.store.ListSessions(ctx, limit)
	if err != nil {
		return nil, err
	}
	out := make([]Summary, 0, len(sessions))
	for _, sess := range sessions {
		count, err := s.store.CountMessages(ctx, sess.SessionID)
		if err != nil {
			return nil, err
		}
		prefs, err := s.preferences(ctx, sess.SessionID)
		if err != nil {
			return nil, err
		}
		updated := sess.LastUpdated
		if updated.IsZero() {
			updated = sess.CreatedAt
		}
		out = append(out, Summary{
			SessionID:    sess.SessionID,
			Title:        sess.Title,
			LastMessage:  sess.LastMessage,
			LastUpdated:  updated,
			CreatedAt:    sess.CreatedAt,
			MessageCount: count,
			Destination:  prefs["destination"],
			Budget:       prefs["budget"],
		})
	}
	return out, nil
}

// Clear removes the session's messages, preferences and metadata. Clearing
// an unknown session succeeds with zero counts.
func (s *Service) Clear(ctx context.Context, sessionID string) (*ClearResult, error) {
	res := &ClearResult{}
	var err error
	if res.MessagesDeleted, err = s.store.DeleteMessages(ctx, sessionID); err != nil {
		return nil, fmt.Errorf("delete messages: %w", err)
	}
	if res.PreferencesDeleted, err = s.store.DeletePreferences(ctx, sessionID); err != nil {
		return nil, fmt.Errorf("delete preferences: %w", err)
	}
	switch err = s.store.DeleteSession(ctx, sessionID); {
	case err == nil:
		res.SessionDeleted = true
	case !errors.Is(err, store.ErrNotFound):
		return nil, fmt.Errorf("delete session: %w", err)
	}
	s.logger.Info("session cleared",
		"session_id", sessionID,
		"messages", res.MessagesDeleted,
		"preferences", res.PreferencesDeleted,
	)
	return res, nil
}

func (s *Service) preferences(ctx context.Context, sessionID string) (types.Values, error) {
	prefs, err := s.store.Preferences(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	out := make(types.Values, len(prefs))
	for _, p := range prefs {
		out[p.Key] = p.Value
	}
	return out, nil
}
