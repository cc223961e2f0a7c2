package conversation

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tripmate/internal/store"
	"tripmate/internal/types"
)

func newTestService(st store.Store) *Service {
	svc := NewService(st, nil)
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	n := 0
	svc.now = func() time.Time {
		n++
		return base.Add(time.Duration(n) * time.Second)
	}
	return svc
}

func TestRecentIsChronologicalAndLimited(t *testing.T) {
	svc := newTestService(store.NewMemoryStore())
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_, err := svc.Append(ctx, "s1", store.RoleUser, fmt.Sprintf("m%d", i), nil)
		require.NoError(t, err)
	}

	got, err := svc.Recent(ctx, "s1", 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "m2", got[0].Content)
	assert.Equal(t, "m4", got[2].Content)
	assert.NotEmpty(t, got[0].ID)
}

func TestAppendRejectsBlank(t *testing.T) {
	svc := newTestService(store.NewMemoryStore())
	_, err := svc.Append(context.Background(), "s1", store.RoleUser, "  ", nil)
	assert.ErrorIs(t, err, ErrEmptyContent)
}

func TestSummary(t *testing.T) {
	st := store.NewMemoryStore()
	svc := newTestService(st)
	ctx := context.Background()

	empty, err := svc.Summary(ctx, "s1")
	require.NoError(t, err)
	assert.Zero(t, empty.TotalMessages)
	assert.Nil(t, empty.SessionStart)

	_, err = svc.Append(ctx, "s1", store.RoleUser, "trip to Goa", nil)
	require.NoError(t, err)
	_, err = svc.Append(ctx, "s1", store.RoleAssistant, "sure", nil)
	require.NoError(t, err)
	_, err = svc.Append(ctx, "s1", store.RoleUser, "budget 40000", nil)
	require.NoError(t, err)
	require.NoError(t, st.UpsertPreference(ctx, &store.Preference{SessionID: "s1", Key: "destination", Value: types.Text("Goa")}))
	require.NoError(t, st.UpsertPreference(ctx, &store.Preference{SessionID: "s1", Key: "budget", Value: types.Number(40000)}))

	sum, err := svc.Summary(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 3, sum.TotalMessages)
	assert.Equal(t, 2, sum.UserMessages)
	assert.Equal(t, 2, sum.PreferencesCount)
	assert.True(t, sum.HasDestination)
	assert.True(t, sum.HasBudget)
	assert.False(t, sum.HasDates)
	assert.Equal(t, "budget 40000", sum.LastUserMessage)
	require.NotNil(t, sum.SessionStart)
	assert.Equal(t, 2025, sum.SessionStart.Year())
}

func TestClear(t *testing.T) {
	svc := newTestService(store.NewMemoryStore())
	ctx := context.Background()
	_, err := svc.Append(ctx, "s1", store.RoleUser, "hi", nil)
	require.NoError(t, err)

	n, err := svc.Clear(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	count, err := svc.Count(ctx, "s1")
	require.NoError(t, err)
	assert.Zero(t, count)
}
