// README: Store backed by PostgreSQL; preference values and message metadata live in JSONB.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tripmate/internal/types"
)

type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore wraps an open pool and creates the schema if missing.
func NewPostgresStore(ctx context.Context, db *pgxpool.Pool) (*PostgresStore, error) {
	s := &PostgresStore{db: db}
	if err := s.migrate(ctx); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS conversations (
			id TEXT PRIMARY KEY,
			seq BIGSERIAL,
			session_id TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			ts TIMESTAMPTZ NOT NULL,
			metadata JSONB
		)`,
		`CREATE INDEX IF NOT EXISTS idx_conversations_session_ts ON conversations (session_id, ts DESC, seq DESC)`,
		`CREATE TABLE IF NOT EXISTS preferences (
			session_id TEXT NOT NULL,
			key TEXT NOT NULL,
			value JSONB,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (session_id, key)
		)`,
		`CREATE TABLE IF NOT EXISTS sessions (
			session_id TEXT PRIMARY KEY,
			title TEXT NOT NULL DEFAULT '',
			title_overridden BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL,
			last_updated TIMESTAMPTZ NOT NULL,
			last_message TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_last_updated ON sessions (last_updated DESC)`,
	}
	for _, m := range migrations {
		if _, err := s.db.Exec(ctx, m); err != nil {
			return err
		}
	}
	return nil
}

func (s *PostgresStore) SaveMessage(ctx context.Context, m *Message) error {
	var meta []byte
	if m.Metadata != nil {
		b, err := json.Marshal(m.Metadata)
		if err != nil {
			return fmt.Errorf("encode metadata: %w", err)
		}
		meta = b
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO conversations (id, session_id, role, content, ts, metadata)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		m.ID, m.SessionID, string(m.Role), m.Content, m.Timestamp, meta,
	)
	return err
}

func (s *PostgresStore) RecentMessages(ctx context.Context, sessionID string, limit int) ([]Message, error) {
	var lim any
	if limit > 0 {
		lim = limit
	}
	rows, err := s.db.Query(ctx, `
		SELECT id, session_id, role, content, ts, metadata
		FROM conversations
		WHERE session_id = $1
		ORDER BY ts DESC, seq DESC
		LIMIT $2`, sessionID, lim,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var (
			m    Message
			role string
			meta []byte
		)
		if err := rows.Scan(&m.ID, &m.SessionID, &role, &m.Content, &m.Timestamp, &meta); err != nil {
			return nil, err
		}
		m.Role = Role(role)
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &m.Metadata); err != nil {
				return nil, fmt.Errorf("decode metadata: %w", err)
			}
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// newest first from the index, callers want oldest first
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (s *PostgresStore) CountMessages(ctx context.Context, sessionID string) (int, error) {
	var n int
	err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM conversations WHERE session_id = $1`, sessionID).Scan(&n)
	return n, err
}

func (s *PostgresStore) DeleteMessages(ctx context.Context, sessionID string) (int, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM conversations WHERE session_id = $1`, sessionID)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) UpsertPreference(ctx context.Context, p *Preference) error {
	val, err := json.Marshal(p.Value)
	if err != nil {
		return fmt.Errorf("encode preference: %w", err)
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO preferences (session_id, key, value, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (session_id, key)
		DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`,
		p.SessionID, p.Key, val, p.CreatedAt, p.UpdatedAt,
	)
	return err
}

func (s *PostgresStore) Preferences(ctx context.Context, sessionID string) ([]Preference, error) {
	rows, err := s.db.Query(ctx, `
		SELECT session_id, key, value, created_at, updated_at
		FROM preferences
		WHERE session_id = $1
		ORDER BY key`, sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Preference
	for rows.Next() {
		var (
			p   Preference
			raw []byte
		)
		if err := rows.Scan(&p.SessionID, &p.Key, &raw, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		if len(raw) > 0 {
			var v types.Value
			if err := json.Unmarshal(raw, &v); err != nil {
				return nil, fmt.Errorf("decode preference %s: %w", p.Key, err)
			}
			p.Value = v
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *PostgresStore) DeletePreference(ctx context.Context, sessionID, key string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM preferences WHERE session_id = $1 AND key = $2`, sessionID, key)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) DeletePreferences(ctx context.Context, sessionID string) (int, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM preferences WHERE session_id = $1`, sessionID)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) UpsertSession(ctx context.Context, sess *Session) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO sessions (session_id, title, title_overridden, created_at, last_updated, last_message)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (session_id)
		DO UPDATE SET title = EXCLUDED.title,
		              title_overridden = EXCLUDED.title_overridden,
		              last_updated = EXCLUDED.last_updated,
		              last_message = EXCLUDED.last_message`,
		sess.SessionID, sess.Title, sess.TitleOverridden, sess.CreatedAt, sess.LastUpdated, sess.LastMessage,
	)
	return err
}

func (s *PostgresStore) GetSession(ctx context.Context, sessionID string) (*Session, error) {
	var sess Session
	err := s.db.QueryRow(ctx, `
		SELECT session_id, title, title_overridden, created_at, last_updated, last_message
		FROM sessions WHERE session_id = $1`, sessionID,
	).Scan(&sess.SessionID, &sess.Title, &sess.TitleOverridden, &sess.CreatedAt, &sess.LastUpdated, &sess.LastMessage)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

func (s *PostgresStore) ListSessions(ctx context.Context, limit int) ([]Session, error) {
	var lim any
	if limit > 0 {
		lim = limit
	}
	rows, err := s.db.Query(ctx, `
		SELECT session_id, title, title_overridden, created_at, last_updated, last_message
		FROM sessions
		ORDER BY last_updated DESC, session_id
		LIMIT $1`, lim,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		var sess Session
		if err := rows.Scan(&sess.SessionID, &sess.Title, &sess.TitleOverridden, &sess.CreatedAt, &sess.LastUpdated, &sess.LastMessage); err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

func (s *PostgresStore) DeleteSession(ctx context.Context, sessionID string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM sessions WHERE session_id = $1`, sessionID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func (s *PostgresStore) Close(context.Context) error {
	s.db.Close()
	return nil
}
