// README: Conversation log; append-only messages with chronological reads and summaries.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"tripmate/internal/store"
)

const (
	DefaultHistoryLimit = 20
	summaryWindow       = 50
)

var ErrEmptyContent = errors.New("message content is empty")

// Summary is a compact description of a session's recent activity.
type Summary struct {
	TotalMessages    int        `json:"total_messages"`
	UserMessages     int        `json:"user_messages"`
	PreferencesCount int        `json:"preferences_count"`
	HasDestination   bool       `json:"has_destination"`
	HasBudget        bool       `json:"has_budget"`
	HasDates         bool       `json:"has_dates"`
	LastUserMessage  string     `json:"last_user_message,omitempty"`
	SessionStart     *time.Time `json:"session_start,omitempty"`
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
		logger: logger.With("component", "conversation"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Append records one message. Messages are never edited afterwards.
func (s *Service) Append(ctx context.Context, sessionID string, role store.Role, content string, metadata map[string]any) (*store.Message, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyContent
	}
	m := &store.Message{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		Timestamp: s.now(),
		Metadata:  metadata,
	}
	if err := s.store.SaveMessage(ctx, m); err != nil {
		return nil, fmt.Errorf("save %s message: %w", role, err)
	}
	return m, nil
}

// Recent returns up to limit of the newest messages, oldest first.
func (s *Service) Recent(ctx context.Context, sessionID string, limit int) ([]store.Message, error) {
	return s.store.RecentMessages(ctx, sessionID, limit)
}

func (s *Service) Count(ctx context.Context, sessionID string) (int, error) {
	return s.store.CountMessages(ctx, sessionID)
}

func (s *Service) Clear(ctx context.Context, sessionID string) (int, error) {
	return s.store.DeleteMessages(ctx, sessionID)
}

// Summary inspects the last 50 messages and the stored preferences.
func (s *Service) Summary(ctx context.Context, sessionID string) (*Summary, error) {
	msgs, err := s.store.RecentMessages(ctx, sessionID, summaryWindow)
	if err != nil {
		return nil, err
	}
	prefs, err := s.store.Preferences(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	sum := &Summary{
		TotalMessages:    len(msgs),
		PreferencesCount: len(prefs),
	}
	for _, p := range prefs {
		switch p.Key {
		case "destination":
			sum.HasDestination = true
		case "budget":
			sum.HasBudget = true
		case "dates":
			sum.HasDates = true
		}
	}
	for _, m := range msgs {
		if m.Role == store.RoleUser {
			sum.UserMessages++
			sum.LastUserMessage = m.Content
		}
	}
	if len(msgs) > 0 {
		start := msgs[0].Timestamp
		sum.SessionStart = &start
	}
	return sum, nil
}
