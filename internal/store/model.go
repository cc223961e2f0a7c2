// README: Persisted conversation, preference and session records plus the Store contract.
package store

import (
	"context"
	"errors"
	"time"

	"tripmate/internal/types"
)

var ErrNotFound = errors.New("not found")

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	ID        string
	SessionID string
	Role      Role
	Content   string
	Timestamp time.Time
	Metadata  map[string]any
}

type Preference struct {
	SessionID string
	Key       string
	Value     types.Value
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Session struct {
	SessionID string
	Title     string
	// TitleOverridden marks a caller-supplied title; turn touches keep it.
	TitleOverridden bool
	CreatedAt       time.Time
	LastUpdated     time.Time
	LastMessage     string
}

// Store is the persistence contract shared by every backend. Reads of
// messages always come back oldest first.
type Store interface {
	SaveMessage(ctx context.Context, m *Message) error
	// RecentMessages returns the newest limit messages in chronological order.
	// limit <= 0 means all.
	RecentMessages(ctx context.Context, sessionID string, limit int) ([]Message, error)
	CountMessages(ctx context.Context, sessionID string) (int, error)
	DeleteMessages(ctx context.Context, sessionID string) (int, error)

	// UpsertPreference keeps CreatedAt of an existing row.
	UpsertPreference(ctx context.Context, p *Preference) error
	Preferences(ctx context.Context, sessionID string) ([]Preference, error)
	DeletePreference(ctx context.Context, sessionID, key string) error
	DeletePreferences(ctx context.Context, sessionID string) (int, error)

	// UpsertSession keeps CreatedAt of an existing row.
	UpsertSession(ctx context.Context, s *Session) error
	GetSession(ctx context.Context, sessionID string) (*Session, error)
	// ListSessions orders by LastUpdated, newest first.
	ListSessions(ctx context.Context, limit int) ([]Session, error)
	DeleteSession(ctx context.Context, sessionID string) error

	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}
