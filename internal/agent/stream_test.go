package agent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tripmate/internal/ai"
	"tripmate/internal/eventbus"
	"tripmate/internal/modules/conversation"
	"tripmate/internal/store"
)

func collect(ch <-chan eventbus.Event) []eventbus.Event {
	var out []eventbus.Event
	for ev := range ch {
		out = append(out, ev)
	}
	return out
}

func TestStreamTravelRequest(t *testing.T) {
	h := newHarness(t)
	h.provider.On(ai.PurposeIntent, goaIntent)
	h.provider.On(ai.PurposeExtract, `{"dietary_preferences": ["vegetarian"], "budget": null}`)
	h.provider.On(ai.PurposeTravelReply, "Have a great trip")
	ctx := context.Background()

	events := collect(h.agent.ProcessMessageStream(ctx, "s1", "Mumbai to Goa, 2 of us, 40000, vegetarian"))

	assert.Equal(t, []eventbus.Type{
		eventbus.TypeStart,
		eventbus.TypeAction,
		eventbus.TypeMemory,
		eventbus.TypeAction,
		eventbus.TypeAction,
		eventbus.TypeAction,
		eventbus.TypeAction,
		eventbus.TypeResponseStart,
		eventbus.TypeToken,
		eventbus.TypeToken,
		eventbus.TypeToken,
		eventbus.TypeToken,
		eventbus.TypeComplete,
	}, eventTypes(events))
	assert.Equal(t, eventbus.Start{Message: "Processing your request..."}, events[0].Payload)
	assert.Equal(t, []string{
		"Analyzing your travel request",
		"Updated preferences: budget, destination, dietary_preferences, origin, people_count",
		"Searching for flights to Goa",
		"Finding hotels in Goa",
		"Discovering activities in Goa",
	}, actionDescriptions(events))

	var reply string
	for _, ev := range events {
		if tok, ok := ev.Payload.(eventbus.Token); ok {
			reply += tok.Content
		}
	}
	assert.Equal(t, "Have a great trip", reply)

	msgs, err := h.convs.Recent(ctx, "s1", 0)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "Have a great trip", msgs[1].Content)

	prefs, err := h.prefs.All(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "40000", prefs["budget"].String())
	assert.Equal(t, []string{"vegetarian"}, prefs["dietary_preferences"].Items())

	assert.Empty(t, h.bus.snapshot())
}

func TestStreamGeneralSkipsSearchAndMemory(t *testing.T) {
	h := newHarness(t)
	h.provider.On(ai.PurposeGeneralReply, "Hello there")

	events := collect(h.agent.ProcessMessageStream(context.Background(), "s1", "hi"))
	assert.Equal(t, []eventbus.Type{
		eventbus.TypeStart,
		eventbus.TypeAction,
		eventbus.TypeResponseStart,
		eventbus.TypeToken,
		eventbus.TypeToken,
		eventbus.TypeComplete,
	}, eventTypes(events))
	assert.Empty(t, h.search.calls)
}

func TestStreamExtractionFailureIsNotFatal(t *testing.T) {
	h := newHarness(t)
	h.provider.On(ai.PurposeIntent, goaIntent)
	h.provider.Fail(ai.PurposeExtract, errors.New("timeout"))

	events := collect(h.agent.ProcessMessageStream(context.Background(), "s1", "Goa from Mumbai"))
	require.NotEmpty(t, events)
	assert.Equal(t, eventbus.TypeComplete, events[len(events)-1].Type)
	assert.Len(t, h.search.calls, 3)
}

func TestStreamFailureEndsWithError(t *testing.T) {
	h := newHarness(t)
	h.provider.Fail(ai.PurposeIntent, errors.New("unavailable"))
	ctx := context.Background()

	events := collect(h.agent.ProcessMessageStream(ctx, "s1", "hi"))
	assert.Equal(t, []eventbus.Type{
		eventbus.TypeStart,
		eventbus.TypeAction,
		eventbus.TypeError,
	}, eventTypes(events))
	assert.Equal(t, eventbus.Error{Message: "Sorry, I encountered an error. Please try again."}, events[2].Payload)

	msgs, err := h.convs.Recent(ctx, "s1", 0)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, store.RoleUser, msgs[0].Role)
}

func TestStreamEmptyMessage(t *testing.T) {
	h := newHarness(t)
	events := collect(h.agent.ProcessMessageStream(context.Background(), "s1", ""))
	require.Len(t, events, 1)
	assert.Equal(t, eventbus.TypeError, events[0].Type)
	assert.Empty(t, h.provider.Calls())
}

func TestStreamTurnSurvivesDisconnect(t *testing.T) {
	h := newHarness(t)
	h.provider.On(ai.PurposeGeneralReply, "a reply nobody reads")

	ctx, cancel := context.WithCancel(context.Background())
	ch := h.agent.ProcessMessageStream(ctx, "s1", "hi")
	first := <-ch
	require.Equal(t, eventbus.TypeStart, first.Type)
	cancel()
	for range ch {
	}

	msgs, err := h.convs.Recent(context.Background(), "s1", 0)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "a reply nobody reads", msgs[1].Content)
}

type failingLog struct {
	*store.MemoryStore
}

func (failingLog) SaveMessage(context.Context, *store.Message) error {
	return errors.New("disk full")
}

func TestStreamLogFailureSendsOnlyError(t *testing.T) {
	h := newHarness(t)
	broken := failingLog{MemoryStore: h.store}
	a := NewAgent(Deps{
		Assistant:     h.agent.assistant,
		Conversations: conversation.NewService(broken, nil),
		Preferences:   h.prefs,
		Sessions:      h.sessions,
		Search:        h.search,
		Config:        Config{TurnTimeout: 5 * time.Second},
	})

	events := collect(a.ProcessMessageStream(context.Background(), "s1", "hi"))
	require.Len(t, events, 1)
	assert.Equal(t, eventbus.Error{Message: streamingErrorText}, events[0].Payload)
	assert.Empty(t, h.provider.Calls())
}
