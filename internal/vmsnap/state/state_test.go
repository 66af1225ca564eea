package state

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jimyag/vmsnap/internal/vmsnap/entity"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(filepath.Join(t.TempDir(), "scheduler.json"))
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	t.Parallel()

	st := newTestStore(t).Load(context.Background())
	require.False(t, st.Enabled)
	require.Equal(t, entity.DefaultIntervalMinutes, st.IntervalMinutes)
	require.Nil(t, st.LastRun)
	require.Nil(t, st.NextRun)
	require.NotNil(t, st.VMLastSnapshot)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	lastRun := time.Date(2026, 8, 25, 2, 0, 0, 0, time.UTC)
	nextRun := lastRun.Add(2 * time.Hour)

	in := &entity.SchedulerState{
		Enabled:         true,
		IntervalMinutes: 120,
		LastRun:         &lastRun,
		NextRun:         &nextRun,
		VMLastSnapshot: map[string]time.Time{
			"ubuntu-dev": lastRun,
			"win11-test": lastRun.Add(-time.Hour),
		},
	}
	require.NoError(t, store.Save(context.Background(), in))

	out := store.Load(context.Background())
	require.True(t, out.Enabled)
	require.Equal(t, 120, out.IntervalMinutes)
	require.NotNil(t, out.LastRun)
	require.True(t, lastRun.Equal(*out.LastRun))
	require.NotNil(t, out.NextRun)
	require.True(t, nextRun.Equal(*out.NextRun))
	require.Len(t, out.VMLastSnapshot, 2)
	require.True(t, lastRun.Equal(out.VMLastSnapshot["ubuntu-dev"]))
}

func TestLoadCorruptedFileReturnsDefaults(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	require.NoError(t, os.WriteFile(store.Path(), []byte("{not json"), 0644))

	st := store.Load(context.Background())
	require.False(t, st.Enabled)
	require.Equal(t, entity.DefaultIntervalMinutes, st.IntervalMinutes)
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	require.NoError(t, os.WriteFile(store.Path(), []byte(`{"enabled": true}`), 0644))

	st := store.Load(context.Background())
	require.True(t, st.Enabled)
	require.Equal(t, entity.DefaultIntervalMinutes, st.IntervalMinutes)
	require.NotNil(t, st.VMLastSnapshot)
}

func TestLoadNormalizesZeroInterval(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	require.NoError(t, os.WriteFile(store.Path(), []byte(`{"enabled": true, "interval_minutes": 0}`), 0644))

	st := store.Load(context.Background())
	require.Equal(t, entity.DefaultIntervalMinutes, st.IntervalMinutes)
}

func TestSaveCreatesDirectory(t *testing.T) {
	t.Parallel()

	store := NewStore(filepath.Join(t.TempDir(), "nested", "dir", "scheduler.json"))
	require.NoError(t, store.Save(context.Background(), entity.DefaultSchedulerState()))

	_, err := os.Stat(store.Path())
	require.NoError(t, err)
}

func TestSaveLeavesNoTempFile(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	require.NoError(t, store.Save(context.Background(), entity.DefaultSchedulerState()))

	_, err := os.Stat(store.Path() + ".tmp")
	require.True(t, os.IsNotExist(err))
}

func TestNullTimestampsSerializedExplicitly(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	require.NoError(t, store.Save(context.Background(), entity.DefaultSchedulerState()))

	data, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	require.Contains(t, string(data), `"last_run": null`)
	require.Contains(t, string(data), `"next_run": null`)
}
