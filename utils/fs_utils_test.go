package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestCopyDirectory ensures files are copied, and subdirectories only when copying recursively.
func TestCopyDirectory(t *testing.T) {
	source := filepath.Join(t.TempDir(), "source")
	require.NoError(t, WriteFile(filepath.Join(source, "a.txt"), []byte("a")))
	require.NoError(t, WriteFile(filepath.Join(source, "nested", "b.txt"), []byte("b")))

	shallow := filepath.Join(t.TempDir(), "shallow")
	require.NoError(t, CopyDirectory(source, shallow, false))
	assert.True(t, PathExists(filepath.Join(shallow, "a.txt")))
	assert.False(t, PathExists(filepath.Join(shallow, "nested")))

	deep := filepath.Join(t.TempDir(), "deep")
	require.NoError(t, CopyDirectory(source, deep, true))
	b, err := os.ReadFile(filepath.Join(deep, "nested", "b.txt"))
	require.NoError(t, err)
	assert.Equal(t, "b", string(b))
}

// TestCopyFileRejectsDirectory ensures a directory cannot be copied as a file.
func TestCopyFileRejectsDirectory(t *testing.T) {
	dir := t.TempDir()
	assert.Error(t, CopyFile(dir, filepath.Join(dir, "copy")))
}

// TestDeleteDirectory ensures deletion removes content, tolerates missing paths and refuses files.
func TestDeleteDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "work")
	require.NoError(t, WriteFile(filepath.Join(dir, "file.txt"), []byte("x")))

	assert.Error(t, DeleteDirectory(filepath.Join(dir, "file.txt")))
	require.NoError(t, DeleteDirectory(dir))
	assert.False(t, PathExists(dir))
	assert.NoError(t, DeleteDirectory(dir))
	assert.NoError(t, DeleteFile(filepath.Join(dir, "missing")))
}

// TestMakeDirectoryOverFile ensures creating a directory where a file exists fails.
func TestMakeDirectoryOverFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file")
	require.NoError(t, WriteFile(path, nil))
	assert.Error(t, MakeDirectory(path))
	assert.NoError(t, MakeDirectory(filepath.Join(t.TempDir(), "a", "b")))
}
