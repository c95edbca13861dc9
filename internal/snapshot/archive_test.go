package snapshot

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/handyman-tn/leadsync/internal/model"
)

var testScope = model.Scope{City: "Nashville", Service: "handyman"}

func openTestArchive(t *testing.T) *Archive {
	t.Helper()
	a, err := Open(filepath.Join(t.TempDir(), "snapshots.db"))
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a
}

func TestArchive_SaveAndLatest(t *testing.T) {
	a := openTestArchive(t)
	ctx := context.Background()

	records := []model.Business{
		{Name: "Acme Handyman", Website: "acme.example.com", City: "Nashville", Service: "handyman", State: "TN"},
		{Name: "Other Co", City: "Nashville", Service: "handyman", State: "TN"},
	}
	require.NoError(t, a.Save(ctx, "run-1", testScope, records))

	got, takenAt, err := a.Latest(ctx, testScope)
	require.NoError(t, err)
	assert.Equal(t, records, got)
	assert.WithinDuration(t, time.Now().UTC(), takenAt, time.Minute)
}

func TestArchive_LatestPicksNewest(t *testing.T) {
	a := openTestArchive(t)
	ctx := context.Background()

	first := []model.Business{{Name: "First"}}
	second := []model.Business{{Name: "Second"}}
	require.NoError(t, a.Save(ctx, "run-1", testScope, first))
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, a.Save(ctx, "run-2", testScope, second))

	got, _, err := a.Latest(ctx, testScope)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Second", got[0].Name)
}

func TestArchive_LatestNoSnapshot(t *testing.T) {
	a := openTestArchive(t)

	_, _, err := a.Latest(context.Background(), testScope)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no snapshot")
}

func TestArchive_ListByScope(t *testing.T) {
	a := openTestArchive(t)
	ctx := context.Background()

	require.NoError(t, a.Save(ctx, "run-1", testScope, []model.Business{{Name: "A"}, {Name: "B"}}))
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, a.Save(ctx, "run-2", testScope, nil))
	other := model.Scope{City: "Franklin", Service: "handyman"}
	require.NoError(t, a.Save(ctx, "run-1", other, []model.Business{{Name: "C"}}))

	entries, err := a.ListByScope(ctx, testScope)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	// Newest first.
	assert.Equal(t, "run-2", entries[0].RunID)
	assert.Equal(t, 0, entries[0].Count)
	assert.Equal(t, "run-1", entries[1].RunID)
	assert.Equal(t, 2, entries[1].Count)
	assert.NotEmpty(t, entries[0].ID)
	assert.Equal(t, testScope, entries[0].Scope)
}

func TestArchive_ListByScope_Empty(t *testing.T) {
	a := openTestArchive(t)

	entries, err := a.ListByScope(context.Background(), testScope)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestArchive_SurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "snapshots.db")
	ctx := context.Background()

	a, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, a.Save(ctx, "run-1", testScope, []model.Business{{Name: "A"}}))
	require.NoError(t, a.Close())

	a2, err := Open(path)
	require.NoError(t, err)
	defer a2.Close()

	got, _, err := a2.Latest(ctx, testScope)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "A", got[0].Name)
}
