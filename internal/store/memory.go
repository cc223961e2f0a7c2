// README: In-process Store used for local runs and tests.
package store

import (
	"context"
	"sort"
	"sync"
)

type MemoryStore struct {
	mu       sync.RWMutex
	messages map[string][]Message
	prefs    map[string]map[string]Preference
	sessions map[string]Session
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		messages: make(map[string][]Message),
		prefs:    make(map[string]map[string]Preference),
		sessions: make(map[string]Session),
	}
}

func (s *MemoryStore) SaveMessage(_ context.Context, m *Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *m
	cp.Metadata = cloneMetadata(m.Metadata)
	s.messages[m.SessionID] = append(s.messages[m.SessionID], cp)
	return nil
}

func (s *MemoryStore) RecentMessages(_ context.Context, sessionID string, limit int) ([]Message, error) {
	s.mu.RLock()
	all := make([]Message, len(s.messages[sessionID]))
	copy(all, s.messages[sessionID])
	s.mu.RUnlock()

	// Stable sort keeps insertion order for equal timestamps.
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Timestamp.Before(all[j].Timestamp)
	})
	if limit > 0 && len(all) > limit {
		all = all[len(all)-limit:]
	}
	return all, nil
}

func (s *MemoryStore) CountMessages(_ context.Context, sessionID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages[sessionID]), nil
}

func (s *MemoryStore) DeleteMessages(_ context.Context, sessionID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.messages[sessionID])
	delete(s.messages, sessionID)
	return n, nil
}

func (s *MemoryStore) UpsertPreference(_ context.Context, p *Preference) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byKey, ok := s.prefs[p.SessionID]
	if !ok {
		byKey = make(map[string]Preference)
		s.prefs[p.SessionID] = byKey
	}
	next := *p
	if prev, ok := byKey[p.Key]; ok {
		next.CreatedAt = prev.CreatedAt
	}
	byKey[p.Key] = next
	return nil
}

func (s *MemoryStore) Preferences(_ context.Context, sessionID string) ([]Preference, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Preference, 0, len(s.prefs[sessionID]))
	for _, p := range s.prefs[sessionID] {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (s *MemoryStore) DeletePreference(_ context.Context, sessionID, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.prefs[sessionID][key]; !ok {
		return ErrNotFound
	}
	delete(s.prefs[sessionID], key)
	if len(s.prefs[sessionID]) == 0 {
		delete(s.prefs, sessionID)
	}
	return nil
}

func (s *MemoryStore) DeletePreferences(_ context.Context, sessionID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.prefs[sessionID])
	delete(s.prefs, sessionID)
	return n, nil
}

func (s *MemoryStore) UpsertSession(_ context.Context, sess *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := *sess
	if prev, ok := s.sessions[sess.SessionID]; ok && !prev.CreatedAt.IsZero() {
		next.CreatedAt = prev.CreatedAt
	}
	s.sessions[sess.SessionID] = next
	return nil
}

func (s *MemoryStore) GetSession(_ context.Context, sessionID string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	return &sess, nil
}

func (s *MemoryStore) ListSessions(_ context.Context, limit int) ([]Session, error) {
	s.mu.RLock()
	out := make([]Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].LastUpdated.Equal(out[j].LastUpdated) {
			return out[i].SessionID < out[j].SessionID
		}
		return out[i].LastUpdated.After(out[j].LastUpdated)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) DeleteSession(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sessionID]; !ok {
		return ErrNotFound
	}
	delete(s.sessions, sessionID)
	return nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) Close(context.Context) error { return nil }

func cloneMetadata(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
