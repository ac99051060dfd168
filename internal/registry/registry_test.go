package registry

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	wingmanErrors "github.com/wingmanhq/wingman/internal/errors"
)

func TestRegister_AssignsIncreasingIDs(t *testing.T) {
	r := New(t.TempDir(), 10)

	var ids []int64
	for i := 0; i < 5; i++ {
		id, err := r.Register(TypeFileCreated, map[string]any{"src_path": "/tmp/a"}, SourceFileWatcher, nil)
		require.NoError(t, err)
		ids = append(ids, id)
	}

	for i := 1; i < len(ids); i++ {
		assert.Greater(t, ids[i], ids[i-1])
	}

	acts := r.Recent(time.Minute)
	require.Len(t, acts, 5)
	for i := 1; i < len(acts); i++ {
		assert.Greater(t, acts[i].ID, acts[i-1].ID)
		assert.GreaterOrEqual(t, acts[i].Timestamp, acts[i-1].Timestamp)
	}
}

func TestRegister_EvictsOldestOverCapacity(t *testing.T) {
	r := New(t.TempDir(), 3)

	for i := 0; i < 3; i++ {
		_, err := r.Register(TypeFileCreated, nil, SourceFileWatcher, nil)
		require.NoError(t, err)
	}
	require.Equal(t, 3, r.Size())

	// Each over-capacity insertion evicts exactly one oldest element.
	_, err := r.Register(TypeFileModified, nil, SourceFileWatcher, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, r.Size())

	all := r.All(0)
	assert.Equal(t, int64(4), all[0].ID)
	assert.Equal(t, int64(2), all[len(all)-1].ID)
}

func TestRecent_Boundaries(t *testing.T) {
	r := New(t.TempDir(), 5)
	for i := 0; i < 8; i++ {
		_, err := r.Register(TypeFileCreated, nil, SourceFileWatcher, nil)
		require.NoError(t, err)
	}

	assert.Empty(t, r.Recent(0))
	assert.LessOrEqual(t, len(r.Recent(24*365*time.Hour)), 5)
}

func TestRegister_DropsObserverEventsWhileAutomationRuns(t *testing.T) {
	r := New(t.TempDir(), 10)
	r.SetAutomationRunning(true)

	_, err := r.Register(TypeFileCreated, nil, SourceFileWatcher, nil)
	assert.ErrorIs(t, err, wingmanErrors.ErrDropped)

	_, err = r.Register(TypeKeySequence, nil, SourceInputMonitor, nil)
	assert.ErrorIs(t, err, wingmanErrors.ErrDropped)

	// App-usage and automation sources are not gated.
	_, err = r.Register(TypeAppFocus, nil, SourceAppTracker, nil)
	assert.NoError(t, err)
	_, err = r.Register(TypeFileCreated, nil, SourceAutomation, nil)
	assert.NoError(t, err)

	assert.Equal(t, int64(2), r.DroppedCount())
	assert.Equal(t, 2, r.Size())

	r.SetAutomationRunning(false)
	_, err = r.Register(TypeFileCreated, nil, SourceFileWatcher, nil)
	assert.NoError(t, err)
}

func TestStats(t *testing.T) {
	r := New(t.TempDir(), 10)
	_, _ = r.Register(TypeFileCreated, nil, SourceFileWatcher, nil)
	_, _ = r.Register(TypeFileCreated, nil, SourceFileWatcher, nil)
	_, _ = r.Register(TypeKeySequence, nil, SourceInputMonitor, nil)

	stats := r.Stats()
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 2, stats.ByType[TypeFileCreated])
	assert.Equal(t, 1, stats.ByType[TypeKeySequence])
	assert.Equal(t, 2, stats.BySource[SourceFileWatcher])
}

func TestPersistAndLoad_ResumesNextID(t *testing.T) {
	dir := t.TempDir()

	r := New(dir, 10)
	for i := 0; i < 4; i++ {
		_, err := r.Register(TypeFileRenamed, map[string]any{"event_type": "renamed"}, SourceFileWatcher, nil)
		require.NoError(t, err)
	}
	require.NoError(t, r.Persist())

	restored := New(dir, 10)
	restored.Load()
	assert.Equal(t, 4, restored.Size())

	id, err := restored.Register(TypeFileCreated, nil, SourceFileWatcher, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(5), id)
}

func TestLoad_CorruptFileYieldsEmptyRegistry(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "action_registry.json"), []byte("{not json"), 0o644))

	r := New(dir, 10)
	r.Load()
	assert.Equal(t, 0, r.Size())

	id, err := r.Register(TypeFileCreated, nil, SourceFileWatcher, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)
}

func TestAll_NewestFirstWithLimit(t *testing.T) {
	r := New(t.TempDir(), 10)
	for i := 0; i < 6; i++ {
		_, _ = r.Register(TypeFileCreated, nil, SourceFileWatcher, nil)
	}

	out := r.All(3)
	require.Len(t, out, 3)
	assert.Equal(t, int64(6), out[0].ID)
	assert.Equal(t, int64(4), out[2].ID)
}
