package index

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndexRoundTripThroughFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", FileName)

	idx, err := Open(path)
	require.NoError(t, err)
	assert.Empty(t, idx.TaskIDs())

	idx.Set("b", "ev-2")
	idx.Set("a", "ev-1")
	require.NoError(t, idx.Save())

	loaded, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, loaded.TaskIDs())
	assert.Equal(t, "ev-1", loaded.Get("a"))
	assert.Empty(t, loaded.Get("missing"))
}

func TestIndexSaveSkipsCleanIndex(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	idx, err := Open(path)
	require.NoError(t, err)

	require.NoError(t, idx.Save())
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	idx.Set("a", "ev-1")
	idx.Remove("a")
	idx.Remove("never-there")
	require.NoError(t, idx.Save())
	loaded, err := Open(path)
	require.NoError(t, err)
	assert.Empty(t, loaded.Mappings)
}

func TestIndexInMemory(t *testing.T) {
	idx := New()
	idx.Set("a", "ev-1")
	assert.NoError(t, idx.Save())
	assert.Equal(t, "ev-1", idx.Get("a"))
}

func TestOpenRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))
	_, err := Open(path)
	assert.Error(t, err)
}
