// README: Preference service; null-safe merge over the session store.
package preference

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"time"

	"tripmate/internal/store"
	"tripmate/internal/types"
)

var (
	ErrNotFound   = errors.New("preference not found")
	ErrBadRequest = errors.New("bad request")
)

type Service struct {
	store         store.Store
	defaultOrigin string
	logger        *slog.Logger
	now           func() time.Time
}

func NewService(st store.Store, defaultOrigin string, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:         st,
		defaultOrigin: defaultOrigin,
		logger:        logger.With("component", "preference"),
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// Merge writes every present value in updates and returns exactly the
// entries written. Null, blank and empty-list values never overwrite.
func (s *Service) Merge(ctx context.Context, sessionID string, updates types.Values) (types.Values, error) {
	if sessionID == "" {
		return nil, ErrBadRequest
	}
	keys := make([]string, 0, len(updates))
	for k := range updates {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	applied := types.Values{}
	now := s.now()
	for _, k := range keys {
		v := updates[k]
		key := strings.TrimSpace(k)
		if key == "" || v.IsEmpty() {
			continue
		}
		if err := s.store.UpsertPreference(ctx, &store.Preference{
			SessionID: sessionID,
			Key:       key,
			Value:     v,
			CreatedAt: now,
			UpdatedAt: now,
		}); err != nil {
			return applied, err
		}
		applied[key] = v
	}
	if len(applied) > 0 {
		s.logger.Debug("preferences merged", "session_id", sessionID, "keys", SortedKeys(applied))
	}
	return applied, nil
}

func (s *Service) All(ctx context.Context, sessionID string) (types.Values, error) {
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

func (s *Service) Get(ctx context.Context, sessionID, key string) (types.Value, error) {
	all, err := s.All(ctx, sessionID)
	if err != nil {
		return types.Value{}, err
	}
	v, ok := all[key]
	if !ok {
		return types.Value{}, ErrNotFound
	}
	return v, nil
}

func (s *Service) Delete(ctx context.Context, sessionID, key string) error {
	err := s.store.DeletePreference(ctx, sessionID, key)
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

func (s *Service) Clear(ctx context.Context, sessionID string) (int, error) {
	return s.store.DeletePreferences(ctx, sessionID)
}

func (s *Service) TravelContext(ctx context.Context, sessionID string) (TravelContext, error) {
	all, err := s.All(ctx, sessionID)
	if err != nil {
		return TravelContext{}, err
	}
	return BuildTravelContext(all, s.defaultOrigin), nil
}

// Snapshot reads the preferences once and returns both views of them.
func (s *Service) Snapshot(ctx context.Context, sessionID string) (types.Values, TravelContext, error) {
	all, err := s.All(ctx, sessionID)
	if err != nil {
		return nil, TravelContext{}, err
	}
	return all, BuildTravelContext(all, s.defaultOrigin), nil
}

func SortedKeys(v types.Values) []string {
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
