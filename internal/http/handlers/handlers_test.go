// README: Handler tests; full router over the in-memory store and a scripted model.
package handlers_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tripmate/internal/agent"
	"tripmate/internal/ai"
	"tripmate/internal/ai/aitest"
	"tripmate/internal/eventbus"
	httptransport "tripmate/internal/http"
	"tripmate/internal/modules/conversation"
	"tripmate/internal/modules/preference"
	"tripmate/internal/modules/session"
	"tripmate/internal/search"
	"tripmate/internal/store"
)

const goaIntent = `{"intent":"travel_request","entities":{"destination":"Goa","origin":"Mumbai","budget":40000,"people_count":2},"requires_clarification":false,"confidence":"high"}`

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

type testEnv struct {
	router   *gin.Engine
	provider *aitest.Provider
	store    *store.MemoryStore
	bus      *eventbus.Bus
}

func newEnv(t *testing.T, db stubPinger) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	env := &testEnv{
		provider: aitest.New(),
		store:    store.NewMemoryStore(),
		bus:      eventbus.NewBus(eventbus.Config{HeartbeatInterval: time.Hour}, nil),
	}
	t.Cleanup(env.bus.Close)

	assistant := ai.NewAssistant(env.provider, nil)
	prefs := preference.NewService(env.store, "", nil)
	convs := conversation.NewService(env.store, nil)
	sessions := session.NewService(env.store, nil)
	facade := search.NewFacade(search.NewCompletionSearcher(assistant), assistant, nil)

	a := agent.NewAgent(agent.Deps{
		Assistant:     assistant,
		Conversations: convs,
		Preferences:   prefs,
		Sessions:      sessions,
		Search:        facade,
		Bus:           env.bus,
		Config:        agent.Config{TurnTimeout: 5 * time.Second},
	})

	env.router = httptransport.NewRouter(httptransport.RouterDeps{
		Agent:         a,
		Bus:           env.bus,
		Conversations: convs,
		Preferences:   prefs,
		Sessions:      sessions,
		Search:        facade,
		DB:            db,
		DBType:        "memory",
		Version:       "test",
		CORSOrigins:   []string{"*"},
	})
	return env
}

func (e *testEnv) do(method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

// frames splits an SSE body into decoded events.
func frames(t *testing.T, body string) []eventbus.Event {
	t.Helper()
	var out []eventbus.Event
	for _, line := range strings.Split(body, "\n") {
		data, ok := strings.CutPrefix(line, "data:")
		if !ok {
			continue
		}
		var ev eventbus.Event
		require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(data)), &ev), line)
		out = append(out, ev)
	}
	return out
}

func eventTypes(events []eventbus.Event) []eventbus.Type {
	out := make([]eventbus.Type, len(events))
	for i, ev := range events {
		out[i] = ev.Type
	}
	return out
}

func TestHealth(t *testing.T) {
	env := newEnv(t, stubPinger{})

	w := env.do(http.MethodGet, "/api/v1/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", decode(t, w)["status"])

	w = env.do(http.MethodGet, "/api/v1/health/database", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "connected", decode(t, w)["database"])

	w = env.do(http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "test", decode(t, w)["version"])
}

func TestHealthDatabaseDown(t *testing.T) {
	env := newEnv(t, stubPinger{err: errors.New("connection refused")})

	w := env.do(http.MethodGet, "/api/v1/health/database", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "disconnected", decode(t, w)["database"])

	w = env.do(http.MethodGet, "/api/v1/health/ready", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestSendMessageBlocking(t *testing.T) {
	env := newEnv(t, stubPinger{})
	env.provider.On(ai.PurposeIntent, goaIntent).On(ai.PurposeTravelReply, "Here is your Goa plan")

	w := env.do(http.MethodPost, "/api/v1/chat/message", map[string]any{
		"session_id": "s1",
		"message":    "Plan a Goa trip from Mumbai for 2 people, budget 40000",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, "Here is your Goa plan", body["response"])
	assert.Equal(t, "travel_request", body["intent"])
	assert.NotEmpty(t, body["timestamp"])

	w = env.do(http.MethodGet, "/api/v1/chat/context/s1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	ctxBody := decode(t, w)
	prefs := ctxBody["preferences"].(map[string]any)
	assert.Equal(t, "Goa", prefs["destination"])
	assert.Equal(t, "Mumbai", prefs["origin"])
	assert.EqualValues(t, 40000, prefs["budget"])
	conv := ctxBody["conversation"].(map[string]any)
	assert.EqualValues(t, 2, conv["total_messages"])
	assert.Equal(t, true, conv["has_destination"])

	w = env.do(http.MethodGet, "/api/v1/chat/history/s1?limit=1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	msgs := decode(t, w)["messages"].([]any)
	require.Len(t, msgs, 1)
	last := msgs[0].(map[string]any)
	assert.Equal(t, "assistant", last["role"])
	assert.Equal(t, "travel_request", last["metadata"].(map[string]any)["intent"])
}

func TestSendMessageValidation(t *testing.T) {
	env := newEnv(t, stubPinger{})

	cases := map[string]any{
		"empty message": map[string]any{"session_id": "s1", "message": "   "},
		"bad session":   map[string]any{"session_id": "../etc", "message": "hi"},
		"no session":    map[string]any{"message": "hi"},
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			w := env.do(http.MethodPost, "/api/v1/chat/message", body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
	assert.Empty(t, env.provider.Calls())
}

func TestSendMessageFailure(t *testing.T) {
	env := newEnv(t, stubPinger{})
	env.provider.Fail(ai.PurposeIntent, errors.New("upstream exploded"))

	w := env.do(http.MethodPost, "/api/v1/chat/message", map[string]any{"session_id": "s1", "message": "hello"})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "exploded")
}

func TestStreamMessage(t *testing.T) {
	env := newEnv(t, stubPinger{})
	env.provider.On(ai.PurposeIntent, `{"intent":"general","entities":{},"requires_clarification":false,"confidence":"high"}`).
		On(ai.PurposeGeneralReply, "Hello there traveller")

	for _, path := range []string{"/api/v1/chat/message/stream", "/api/v1/chat/message?stream_response=true"} {
		t.Run(path, func(t *testing.T) {
			w := env.do(http.MethodPost, path, map[string]any{"session_id": "s2", "message": "hi"})
			require.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))

			events := frames(t, w.Body.String())
			require.NotEmpty(t, events)
			assert.Equal(t, eventbus.TypeStart, events[0].Type)
			assert.Equal(t, eventbus.TypeComplete, events[len(events)-1].Type)
			assert.Contains(t, eventTypes(events), eventbus.TypeResponseStart)

			var reply strings.Builder
			for _, ev := range events {
				if tok, ok := ev.Payload.(eventbus.Token); ok {
					reply.WriteString(tok.Content)
				}
			}
			assert.Equal(t, "Hello there traveller", reply.String())
		})
	}
}

func TestEventsStream(t *testing.T) {
	env := newEnv(t, stubPinger{})
	srv := httptest.NewServer(env.router)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/v1/chat/events/s3", nil)
	require.NoError(t, err)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	next := eventReader(t, resp)
	assert.Equal(t, eventbus.TypeConnected, next().Type)

	w := env.do(http.MethodPut, "/api/v1/chat/preferences", map[string]any{
		"session_id": "s3",
		"updates":    map[string]any{"budget": 60000, "destination": nil},
	})
	require.Equal(t, http.StatusOK, w.Code)

	ev := next()
	require.Equal(t, eventbus.TypeMemory, ev.Type)
	mem := ev.Payload.(eventbus.Memory)
	assert.Len(t, mem.Updates, 1)
	assert.Contains(t, mem.Updates, "budget")
}

func eventReader(t *testing.T, resp *http.Response) func() eventbus.Event {
	sc := bufio.NewScanner(resp.Body)
	return func() eventbus.Event {
		t.Helper()
		for sc.Scan() {
			data, ok := strings.CutPrefix(sc.Text(), "data:")
			if !ok {
				continue
			}
			var ev eventbus.Event
			require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(data)), &ev))
			return ev
		}
		t.Fatalf("stream ended: %v", sc.Err())
		return eventbus.Event{}
	}
}

func TestPreferences(t *testing.T) {
	env := newEnv(t, stubPinger{})

	w := env.do(http.MethodPut, "/api/v1/chat/preferences", map[string]any{
		"session_id": "s4",
		"updates":    map[string]any{"destination": "Jaipur", "dates": "", "budget": nil},
	})
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, map[string]any{"destination": "Jaipur"}, body["updates"])

	w = env.do(http.MethodDelete, "/api/v1/chat/preferences/s4/destination", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(http.MethodDelete, "/api/v1/chat/preferences/s4/destination", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(http.MethodPut, "/api/v1/chat/preferences", map[string]any{"session_id": "", "updates": map[string]any{}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSearch(t *testing.T) {
	env := newEnv(t, stubPinger{})
	env.provider.On(ai.PurposeSearchSummary, "Stay at the beach shack")

	w := env.do(http.MethodPost, "/api/v1/chat/search", map[string]any{"session_id": "s5", "category": "hotels"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, decode(t, w)["result"], "destination")

	env.do(http.MethodPut, "/api/v1/chat/preferences", map[string]any{
		"session_id": "s5",
		"updates":    map[string]any{"destination": "Goa"},
	})
	w = env.do(http.MethodPost, "/api/v1/chat/search", map[string]any{"session_id": "s5", "category": "hotels"})
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "hotels", body["category"])
	assert.Equal(t, "Stay at the beach shack", body["result"])

	w = env.do(http.MethodPost, "/api/v1/chat/search", map[string]any{"session_id": "s5", "category": "trains"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSessions(t *testing.T) {
	env := newEnv(t, stubPinger{})

	w := env.do(http.MethodPost, "/api/v1/chat/sessions", nil)
	require.Equal(t, http.StatusCreated, w.Code)
	created := decode(t, w)
	sid := created["session_id"].(string)
	require.NotEmpty(t, sid)
	assert.Equal(t, "Chat Session "+sid[:8], created["title"])

	w = env.do(http.MethodPut, "/api/v1/chat/sessions/"+sid+"/title", map[string]any{"title": "  Honeymoon  "})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Honeymoon", decode(t, w)["title"])

	w = env.do(http.MethodPut, "/api/v1/chat/sessions/"+sid+"/title", map[string]any{"title": ""})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	env.do(http.MethodPut, "/api/v1/chat/preferences", map[string]any{
		"session_id": sid,
		"updates":    map[string]any{"destination": "Goa"},
	})
	w = env.do(http.MethodPost, "/api/v1/chat/sessions/"+sid+"/title/regenerate", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Goa Travel Plan", decode(t, w)["title"])

	w = env.do(http.MethodPost, "/api/v1/chat/sessions/unknown/title/regenerate", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(http.MethodGet, "/api/v1/chat/sessions?limit=10", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode(t, w)
	assert.EqualValues(t, 1, list["total"])

	w = env.do(http.MethodGet, "/api/v1/chat/sessions?limit=abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestClearSession(t *testing.T) {
	env := newEnv(t, stubPinger{})
	env.provider.On(ai.PurposeIntent, goaIntent)
	w := env.do(http.MethodPost, "/api/v1/chat/message", map[string]any{"session_id": "s6", "message": "Goa trip"})
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(http.MethodDelete, "/api/v1/chat/session/s6", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "Session s6 cleared", body["message"])
	assert.EqualValues(t, 2, body["messages_deleted"])
	assert.EqualValues(t, 4, body["preferences_deleted"])

	w = env.do(http.MethodGet, "/api/v1/chat/history/s6", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode(t, w)["messages"])
}
