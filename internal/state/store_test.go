package state

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore_MissingFileLoadsFalse(t *testing.T) {
	s := NewFileStore(filepath.Join(t.TempDir(), "autopilot.json"))
	enabled, err := s.LoadAutoPilot()
	require.NoError(t, err)
	assert.False(t, enabled)
}

func TestFileStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "autopilot.json")
	s := NewFileStore(path)

	require.NoError(t, s.SaveAutoPilot(true))
	enabled, err := s.LoadAutoPilot()
	require.NoError(t, err)
	assert.True(t, enabled)

	require.NoError(t, s.SaveAutoPilot(false))
	enabled, err = s.LoadAutoPilot()
	require.NoError(t, err)
	assert.False(t, enabled)
}

func TestFileStore_SurvivesNewInstance(t *testing.T) {
	path := filepath.Join(t.TempDir(), "autopilot.json")
	require.NoError(t, NewFileStore(path).SaveAutoPilot(true))

	enabled, err := NewFileStore(path).LoadAutoPilot()
	require.NoError(t, err)
	assert.True(t, enabled, "flag persists across instances")
}

func TestFileStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "autopilot.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := NewFileStore(path).LoadAutoPilot()
	assert.Error(t, err)
}
