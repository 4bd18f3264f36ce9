package artifact

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Version string    `json:"version"`
	Weights []float64 `json:"weights"`
}

func TestWriteReadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "models", "a.json")

	require.NoError(t, WriteJSON(path, sample{Version: "v1", Weights: []float64{1, 2}}))
	assert.True(t, Exists(path))

	var got sample
	require.NoError(t, ReadJSON(path, &got))
	assert.Equal(t, "v1", got.Version)
	assert.Equal(t, []float64{1, 2}, got.Weights)
}

func TestWriteJSON_ReplacesWithoutLeftovers(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.json")

	require.NoError(t, WriteJSON(path, sample{Version: "v1"}))
	require.NoError(t, WriteJSON(path, sample{Version: "v2"}))

	var got sample
	require.NoError(t, ReadJSON(path, &got))
	assert.Equal(t, "v2", got.Version)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestReadJSON_Missing(t *testing.T) {
	var got sample
	err := ReadJSON(filepath.Join(t.TempDir(), "none.json"), &got)
	assert.ErrorIs(t, err, ErrArtifactMissing)
}

func TestReadJSON_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	var got sample
	err := ReadJSON(path, &got)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrArtifactMissing)
}
