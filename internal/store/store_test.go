package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestSaveAndLoadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.json")

	require.NoError(t, SaveJSON(path, sample{Name: "a", Count: 3}))

	var got sample
	ok, err := LoadJSON(path, &got)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, sample{Name: "a", Count: 3}, got)
}

func TestLoadJSON_MissingFile(t *testing.T) {
	var got sample
	ok, err := LoadJSON(filepath.Join(t.TempDir(), "missing.json"), &got)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLoadJSON_EmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.json")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	var got sample
	ok, err := LoadJSON(path, &got)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLoadJSON_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{oops"), 0o644))

	var got sample
	_, err := LoadJSON(path, &got)
	assert.Error(t, err)
}

func TestSaveJSON_AtomicReplace(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.json")
	require.NoError(t, SaveJSON(path, sample{Name: "v1"}))
	require.NoError(t, SaveJSON(path, sample{Name: "v2"}))

	var got sample
	ok, err := LoadJSON(path, &got)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "v2", got.Name)
}

func TestInstanceLock_Exclusive(t *testing.T) {
	dir := t.TempDir()

	lock, err := AcquireInstanceLock(dir)
	require.NoError(t, err)

	_, err = AcquireInstanceLock(dir)
	assert.Error(t, err)

	require.NoError(t, lock.Release())

	again, err := AcquireInstanceLock(dir)
	require.NoError(t, err)
	require.NoError(t, again.Release())
}
