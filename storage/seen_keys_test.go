package storage_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"goofish-watcher/storage"
)

func TestLoadSeenKeysMissingFile(t *testing.T) {
	dir := t.TempDir()

	s, err := storage.LoadSeenKeys(dir, "switch")
	require.NoError(t, err)
	require.Equal(t, 0, s.Len())
	require.False(t, s.Contains("https://www.goofish.com/item?id=1"))
}

func TestSeenKeysRecordIdempotent(t *testing.T) {
	s, err := storage.LoadSeenKeys(t.TempDir(), "switch")
	require.NoError(t, err)

	require.True(t, s.Record("https://www.goofish.com/item?id=1"))
	require.False(t, s.Record("https://www.goofish.com/item?id=1"))
	require.Equal(t, 1, s.Len())
	require.True(t, s.Contains("https://www.goofish.com/item?id=1"))
}

func TestSeenKeysFlushAndReload(t *testing.T) {
	dir := t.TempDir()

	s, err := storage.LoadSeenKeys(dir, "相机")
	require.NoError(t, err)
	s.Record("https://www.goofish.com/item?id=1")
	s.Record("https://www.goofish.com/item?id=2")
	require.NoError(t, s.Flush())

	// A second flush with nothing pending must not duplicate keys.
	require.NoError(t, s.Flush())
	s.Record("https://www.goofish.com/item?id=3")
	require.NoError(t, s.Flush())

	reloaded, err := storage.LoadSeenKeys(dir, "相机")
	require.NoError(t, err)
	require.Equal(t, 3, reloaded.Len())
	require.True(t, reloaded.Contains("https://www.goofish.com/item?id=2"))
}

func TestSeenKeysFlushIsAppendOnly(t *testing.T) {
	dir := t.TempDir()

	s, err := storage.LoadSeenKeys(dir, "kw")
	require.NoError(t, err)
	s.Record("a-key")
	require.NoError(t, s.Flush())

	path := filepath.Join(dir, "kw_seen.txt")
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	s.Record("b-key")
	require.NoError(t, s.Flush())

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, string(before), string(after[:len(before)]),
		"previously flushed content must survive later flushes byte for byte")
}

func TestSeenKeysToleratesBlankLines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kw_seen.txt")
	require.NoError(t, os.WriteFile(path, []byte("key-1\n\n\nkey-2\n   \n"), 0644))

	s, err := storage.LoadSeenKeys(dir, "kw")
	require.NoError(t, err)
	require.Equal(t, 2, s.Len())
	require.True(t, s.Contains("key-1"))
	require.True(t, s.Contains("key-2"))
}

func TestSeenKeysFilterNewIsSetDifference(t *testing.T) {
	s, err := storage.LoadSeenKeys(t.TempDir(), "kw")
	require.NoError(t, err)
	s.Record("https://www.goofish.com/item?id=1")
	s.Record("https://www.goofish.com/item?id=3")

	links := []string{
		"https://www.goofish.com/item?id=2&spm=track",
		"https://www.goofish.com/item?id=1&spm=track", // already seen
		"https://www.goofish.com/item?id=4",
		"https://www.goofish.com/item", // no id: dropped
		"https://www.goofish.com/item?id=3",
	}

	fresh := s.FilterNew(links)
	require.Equal(t, []string{
		"https://www.goofish.com/item?id=2",
		"https://www.goofish.com/item?id=4",
	}, fresh)
}
