package fswatch

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wingmanhq/wingman/internal/registry"
)

type recordedAction struct {
	actionType string
	details    map[string]any
}

type fakeSink struct {
	mu      sync.Mutex
	actions []recordedAction
}

func (f *fakeSink) Register(actionType string, details map[string]any, source string, metadata map[string]any) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.actions = append(f.actions, recordedAction{actionType: actionType, details: details})
	return int64(len(f.actions)), nil
}

func (f *fakeSink) byType(actionType string) []recordedAction {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []recordedAction
	for _, a := range f.actions {
		if a.actionType == actionType {
			out = append(out, a)
		}
	}
	return out
}

func waitFor(t *testing.T, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return false
}

func newRunningObserver(t *testing.T, dirs []string) (*Observer, *fakeSink) {
	t.Helper()
	sink := &fakeSink{}
	o := New(sink, dirs, 50*time.Millisecond)
	require.NoError(t, o.Start())
	t.Cleanup(o.Stop)
	return o, sink
}

func TestCreateEmitsFileCreated(t *testing.T) {
	dir := t.TempDir()
	_, sink := newRunningObserver(t, []string{dir})

	path := filepath.Join(dir, "note.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))

	require.True(t, waitFor(t, func() bool { return len(sink.byType(registry.TypeFileCreated)) >= 1 }))

	created := sink.byType(registry.TypeFileCreated)
	assert.Equal(t, path, created[0].details["src_path"])
	assert.Equal(t, ".txt", created[0].details["file_extension"])
}

func TestRenameWithinDirectoryEmitsFileRenamed(t *testing.T) {
	dir := t.TempDir()
	oldPath := filepath.Join(dir, "IMG_001.jpg")
	require.NoError(t, os.WriteFile(oldPath, []byte("img"), 0o644))

	_, sink := newRunningObserver(t, []string{dir})

	newPath := filepath.Join(dir, "vacation_001.jpg")
	require.NoError(t, os.Rename(oldPath, newPath))

	require.True(t, waitFor(t, func() bool { return len(sink.byType(registry.TypeFileRenamed)) >= 1 }))

	renamed := sink.byType(registry.TypeFileRenamed)
	assert.Equal(t, oldPath, renamed[0].details["src_path"])
	assert.Equal(t, newPath, renamed[0].details["dest_path"])
	assert.Equal(t, ".jpg", renamed[0].details["file_extension"])
}

func TestRemoveEmitsFileDeleted(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gone.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	_, sink := newRunningObserver(t, []string{dir})

	require.NoError(t, os.Remove(path))
	require.True(t, waitFor(t, func() bool { return len(sink.byType(registry.TypeFileDeleted)) >= 1 }))
}

func TestInvalidDirectoryIsSkippedNotFatal(t *testing.T) {
	dir := t.TempDir()
	o, _ := newRunningObserver(t, []string{dir, filepath.Join(dir, "does-not-exist")})
	assert.Len(t, o.Dirs(), 2)
}

func TestDuplicateSuppressionWithinCoalesceWindow(t *testing.T) {
	o := New(&fakeSink{}, nil, 50*time.Millisecond)
	o.mu.Lock()
	o.running = true
	o.mu.Unlock()

	assert.False(t, o.duplicate("/tmp/a", "modified"))
	assert.True(t, o.duplicate("/tmp/a", "modified"))

	time.Sleep(60 * time.Millisecond)
	assert.False(t, o.duplicate("/tmp/a", "modified"))
}

func TestCategorize(t *testing.T) {
	tests := []struct {
		eventType string
		path      string
		want      string
	}{
		{"created", "/home/u/file.txt", "file_creation"},
		{"modified", "/home/u/app.py", "content_edit"},
		{"modified", "/home/u/photo.jpg", "file_edit"},
		{"deleted", "/home/u/file.txt", "removal"},
		{"renamed", "/home/u/file.txt", "move"},
		{"created", "/home/u/__pycache__/m.pyc", "system"},
		{"modified", "/home/u/build.log", "system"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, categorize(tt.eventType, tt.path), "%s %s", tt.eventType, tt.path)
	}
}
