package storage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveAndOpen(t *testing.T) {
	store := NewLocalStore(t.TempDir())

	rel := filepath.Join("content_library", "pdf", "doc.pdf")
	require.NoError(t, store.Save(rel, strings.NewReader("pdf bytes")))

	f, err := store.Open(rel)
	require.NoError(t, err)
	defer f.Close()

	content, err := os.ReadFile(store.Path(rel))
	require.NoError(t, err)
	assert.Equal(t, "pdf bytes", string(content))
}

func TestRemoveMissingFileIsNotError(t *testing.T) {
	store := NewLocalStore(t.TempDir())
	assert.NoError(t, store.Remove("nope/missing.pdf"))
}

func TestSaveOverwrites(t *testing.T) {
	store := NewLocalStore(t.TempDir())

	require.NoError(t, store.Save("a.txt", strings.NewReader("one")))
	require.NoError(t, store.Save("a.txt", strings.NewReader("two")))

	content, err := os.ReadFile(store.Path("a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "two", string(content))
}
