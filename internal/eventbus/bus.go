// README: Per-session fan-out of live events with heartbeats; nothing is buffered for absent subscribers.
package eventbus

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

const DefaultHeartbeatInterval = 30 * time.Second

var (
	errSubscriptionClosed = errors.New("subscription closed")
	errQueueFull          = errors.New("subscriber queue full")
)

type Config struct {
	// HeartbeatInterval is how long a stream waits for an event before
	// emitting a heartbeat. Zero means DefaultHeartbeatInterval.
	HeartbeatInterval time.Duration
	// QueueLimit caps pending events per subscriber; zero is unbounded.
	// A subscriber over the limit is dropped.
	QueueLimit int
}

// Subscription is one live consumer of a session's events.
type Subscription struct {
	ID        string
	SessionID string

	mu     sync.Mutex
	queue  []Event
	notify chan struct{}
	done   chan struct{}
	once   sync.Once
}

func newSubscription(sessionID string) *Subscription {
	return &Subscription{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		notify:    make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
}

func (s *Subscription) push(ev Event, limit int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-s.done:
		return errSubscriptionClosed
	default:
	}
	if limit > 0 && len(s.queue) >= limit {
		return errQueueFull
	}
	s.queue = append(s.queue, ev)
	select {
	case s.notify <- struct{}{}:
	default:
	}
	return nil
}

func (s *Subscription) pop() (Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return Event{}, false
	}
	ev := s.queue[0]
	s.queue[0] = Event{}
	s.queue = s.queue[1:]
	return ev, true
}

// Pending reports queued, undelivered events.
func (s *Subscription) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Done is closed once the subscription is unregistered.
func (s *Subscription) Done() <-chan struct{} { return s.done }

func (s *Subscription) close() {
	s.once.Do(func() {
		close(s.done)
		s.mu.Lock()
		s.queue = nil
		s.mu.Unlock()
	})
}

type Bus struct {
	mu        sync.Mutex
	sessions  map[string]map[string]*Subscription // sessionID -> subID -> sub
	closed    bool
	heartbeat time.Duration
	limit     int
	logger    *slog.Logger
}

// NewBus creates an empty bus. Pass nil logger for default.
func NewBus(cfg Config, logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	hb := cfg.HeartbeatInterval
	if hb <= 0 {
		hb = DefaultHeartbeatInterval
	}
	return &Bus{
		sessions:  make(map[string]map[string]*Subscription),
		heartbeat: hb,
		limit:     cfg.QueueLimit,
		logger:    logger.With("component", "eventbus"),
	}
}

// Register adds a subscriber. On a closed bus the returned subscription is
// already done.
func (b *Bus) Register(sessionID string) *Subscription {
	sub := newSubscription(sessionID)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		sub.close()
		return sub
	}
	subs, ok := b.sessions[sessionID]
	if !ok {
		subs = make(map[string]*Subscription)
		b.sessions[sessionID] = subs
	}
	subs[sub.ID] = sub
	b.mu.Unlock()

	b.logger.Debug("subscriber added", "session_id", sessionID, "sub_id", sub.ID)
	return sub
}

// Unregister is idempotent. The session entry goes away with its last subscriber.
func (b *Bus) Unregister(sub *Subscription) {
	if sub == nil {
		return
	}
	b.mu.Lock()
	removed := false
	if subs, ok := b.sessions[sub.SessionID]; ok {
		if _, exists := subs[sub.ID]; exists {
			delete(subs, sub.ID)
			removed = true
		}
		if len(subs) == 0 {
			delete(b.sessions, sub.SessionID)
		}
	}
	b.mu.Unlock()

	sub.close()
	if removed {
		b.logger.Debug("subscriber removed", "session_id", sub.SessionID, "sub_id", sub.ID)
	}
}

// Publish delivers p to every current subscriber of the session. It never
// blocks; without subscribers the event is discarded.
func (b *Bus) Publish(sessionID string, p Payload) {
	b.PublishEvent(sessionID, NewEvent(p))
}

func (b *Bus) PublishEvent(sessionID string, ev Event) {
	b.mu.Lock()
	subs := b.sessions[sessionID]
	if len(subs) == 0 {
		b.mu.Unlock()
		return
	}
	targets := make([]*Subscription, 0, len(subs))
	for _, sub := range subs {
		targets = append(targets, sub)
	}
	b.mu.Unlock()

	for _, sub := range targets {
		if err := sub.push(ev, b.limit); err != nil {
			b.logger.Warn("dropping subscriber after failed delivery",
				"session_id", sessionID,
				"sub_id", sub.ID,
				"event_type", ev.Type,
				"error", err)
			b.Unregister(sub)
		}
	}
}

// Stream registers a subscriber and returns its events: a connected event
// first, then published events, with a heartbeat after every idle interval.
// The channel closes when ctx ends, the subscriber is dropped or the bus
// closes; the subscriber is always unregistered on the way out.
func (b *Bus) Stream(ctx context.Context, sessionID string) <-chan Event {
	sub := b.Register(sessionID)
	out := make(chan Event)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				b.logger.Error("event stream panic", "session_id", sessionID, "panic", r)
			}
			b.Unregister(sub)
			close(out)
		}()

		send := func(ev Event) bool {
			select {
			case out <- ev:
				return true
			case <-ctx.Done():
				return false
			case <-sub.done:
				return false
			}
		}

		if !send(NewEvent(Connected{SessionID: sessionID})) {
			return
		}

		timer := time.NewTimer(b.heartbeat)
		defer timer.Stop()
		for {
			if ev, ok := sub.pop(); ok {
				if !send(ev) {
					return
				}
				continue
			}

			timer.Reset(b.heartbeat)
			select {
			case <-ctx.Done():
				return
			case <-sub.done:
				return
			case <-sub.notify:
			case <-timer.C:
				if !send(NewEvent(Heartbeat{})) {
					return
				}
			}
		}
	}()

	return out
}

// Subscribers returns the live subscriber count for a session.
func (b *Bus) Subscribers(sessionID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.sessions[sessionID])
}

// Sessions returns how many sessions have at least one subscriber.
func (b *Bus) Sessions() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.sessions)
}

// Close drops every subscriber; open streams end.
func (b *Bus) Close() {
	b.mu.Lock()
	b.closed = true
	var all []*Subscription
	for sessionID, subs := range b.sessions {
		for _, sub := range subs {
			all = append(all, sub)
		}
		delete(b.sessions, sessionID)
	}
	b.mu.Unlock()

	for _, sub := range all {
		sub.close()
	}
	b.logger.Debug("bus closed", "subscribers", len(all))
}
