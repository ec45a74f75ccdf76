package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemoryRunStoreRoundtrip(t *testing.T) {
	store := NewMemoryRunStore()

	record := &RunRecord{
		RunID:      "run-1",
		PartyIndex: 0,
		Capacity:   8,
		MatchCount: 3,
		Status:     RunCompleted,
		StartedAt:  time.Now().Add(-time.Second),
		FinishedAt: time.Now(),
	}
	require.NoError(t, store.SaveRun(record))

	got, err := store.GetRun("run-1")
	require.NoError(t, err)
	require.Equal(t, record.MatchCount, got.MatchCount)
	require.Equal(t, RunCompleted, got.Status)

	// Returned records are copies, not aliases into the store.
	got.MatchCount = 99
	again, err := store.GetRun("run-1")
	require.NoError(t, err)
	require.Equal(t, 3, again.MatchCount)
}

func TestMemoryRunStoreOverwrite(t *testing.T) {
	store := NewMemoryRunStore()

	require.NoError(t, store.SaveRun(&RunRecord{RunID: "run-1", Status: RunAborted, Error: "transport closed"}))
	require.NoError(t, store.SaveRun(&RunRecord{RunID: "run-1", Status: RunCompleted, MatchCount: 2}))

	got, err := store.GetRun("run-1")
	require.NoError(t, err)
	require.Equal(t, RunCompleted, got.Status)
	require.Equal(t, 2, got.MatchCount)

	runs, err := store.ListRuns()
	require.NoError(t, err)
	require.Len(t, runs, 1)
}

func TestMemoryRunStoreListOrder(t *testing.T) {
	store := NewMemoryRunStore()

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, store.SaveRun(&RunRecord{RunID: id, Status: RunCompleted}))
	}

	runs, err := store.ListRuns()
	require.NoError(t, err)
	require.Len(t, runs, 3)
	require.Equal(t, "a", runs[0].RunID)
	require.Equal(t, "c", runs[2].RunID)
}

func TestMemoryRunStoreMissing(t *testing.T) {
	store := NewMemoryRunStore()

	_, err := store.GetRun("nope")
	require.Error(t, err)

	require.Error(t, store.SaveRun(&RunRecord{}))
}
