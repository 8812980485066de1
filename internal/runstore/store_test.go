package runstore

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBegin_FirstRun(t *testing.T) {
	root := filepath.Join(t.TempDir(), "sim")
	store, err := Open(root)
	require.NoError(t, err)

	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	run, err := store.Begin(DefaultSettings(), now)
	require.NoError(t, err)

	assert.Equal(t, 0, run.Index)
	assert.Equal(t, filepath.Join(root, "runs", "run-0"), run.Dir)
	assert.NotEqual(t, uuid.Nil, run.ID)
	assert.DirExists(t, run.Dir)

	var written Settings
	data, err := os.ReadFile(filepath.Join(root, "run.json"))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &written))
	assert.Equal(t, DefaultSettings(), written)

	var meta Run
	data, err = os.ReadFile(filepath.Join(run.Dir, "meta.json"))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &meta))
	assert.Equal(t, run.ID, meta.ID)
	assert.True(t, now.Equal(meta.StartedAt))
}

func TestNextIndex(t *testing.T) {
	testCases := []struct {
		name     string
		existing *string
		expected int
	}{
		{name: "no counter", expected: 0},
		{name: "previous run", existing: ptr("4"), expected: 5},
		{name: "trailing newline", existing: ptr("7\n"), expected: 8},
		{name: "garbage", existing: ptr("abc"), expected: 0},
		{name: "negative", existing: ptr("-3"), expected: 0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			store, err := Open(t.TempDir())
			require.NoError(t, err)
			if tc.existing != nil {
				require.NoError(t, os.WriteFile(filepath.Join(store.Root(), "lr.txt"), []byte(*tc.existing), 0o644))
			}

			index, err := store.NextIndex()
			require.NoError(t, err)
			assert.Equal(t, tc.expected, index)

			data, err := os.ReadFile(filepath.Join(store.Root(), "lr.txt"))
			require.NoError(t, err)
			assert.Equal(t, tc.expected, mustAtoi(t, string(data)))
		})
	}
}

func TestBegin_IncrementsAcrossRuns(t *testing.T) {
	store, err := Open(t.TempDir())
	require.NoError(t, err)

	for want := 0; want < 3; want++ {
		run, err := store.Begin(DefaultSettings(), time.Now())
		require.NoError(t, err)
		assert.Equal(t, want, run.Index)
	}
}

func TestLoadSettings_ExistingFileWins(t *testing.T) {
	store, err := Open(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(store.Root(), "run.json"), []byte(`{"maxItt": 2}`), 0o644))

	settings, err := store.LoadSettings(DefaultSettings())
	require.NoError(t, err)
	assert.Equal(t, 2, settings.MaxItt)
	assert.Equal(t, 100, settings.MaxSaveTimeMS, "missing keys keep their defaults")
	assert.Equal(t, 100*time.Millisecond, settings.FlushInterval())
}

func TestLoadSettings_InvalidJSON(t *testing.T) {
	store, err := Open(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(store.Root(), "run.json"), []byte(`{`), 0o644))

	_, err = store.LoadSettings(DefaultSettings())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run.json")
}

func ptr(s string) *string { return &s }

func mustAtoi(t *testing.T, s string) int {
	t.Helper()
	var n int
	require.NoError(t, json.Unmarshal([]byte(s), &n))
	return n
}
