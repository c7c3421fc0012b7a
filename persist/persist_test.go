package persist

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type record struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestWriteReadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.json")

	var got record
	found, err := ReadJSON(path, &got)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, WriteJSON(path, record{Name: "a", Count: 1}))
	require.NoError(t, WriteJSON(path, record{Name: "b", Count: 2}))

	found, err = ReadJSON(path, &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, record{Name: "b", Count: 2}, got)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files must not be left behind")
}

func TestReadJSON_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	var got record
	_, err := ReadJSON(path, &got)
	var perr *Error
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "decode", perr.Op)
	assert.Equal(t, path, perr.Path)
}

func TestRemove(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gone.json")
	require.NoError(t, Remove(path))
	require.NoError(t, WriteFile(path, []byte("{}")))
	require.NoError(t, Remove(path))
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}
