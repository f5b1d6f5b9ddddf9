package resolver

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestReadModule ensures the module path is read from go.mod, and a missing go.mod is reported.
func TestReadModule(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "go.mod"), []byte("module example.com/Widgets\n\ngo 1.22\n"), 0644))

	handle, err := ReadModule(dir)
	require.NoError(t, err)
	assert.Equal(t, "example.com/Widgets", handle.Path)
	assert.Equal(t, "example.com/widgets", handle.Name)

	nested := filepath.Join(dir, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0755))
	_, err = ReadModule(nested)
	assert.True(t, errors.Is(err, ErrModuleNotFound))

	root, err := FindModuleRoot(nested)
	require.NoError(t, err)
	assert.Equal(t, handle.Dir, root.Dir)
}

// TestHostModule ensures the module hosting the engine is located from the source tree.
func TestHostModule(t *testing.T) {
	handle, err := HostModule()
	require.NoError(t, err)
	assert.Equal(t, HostModulePath, handle.Path)
	assert.FileExists(t, filepath.Join(handle.Dir, "contract", "contract.go"))
}

// TestDeduplicate ensures the most recently listed module wins a name collision.
func TestDeduplicate(t *testing.T) {
	handles := []ModuleHandle{
		{Path: "example.com/a/errors", Dir: "/old"},
		{Path: "example.com/b", Dir: "/b"},
		{Path: "example.com/A/Errors", Dir: "/new"},
	}
	deduplicated := Deduplicate(handles)
	require.Len(t, deduplicated, 2)
	assert.Equal(t, "/b", deduplicated[0].Dir)
	assert.Equal(t, "/new", deduplicated[1].Dir)
}

// TestDeduplicateKeepsDistinctModules ensures modules sharing a last path element or a major version suffix are
// all kept.
func TestDeduplicateKeepsDistinctModules(t *testing.T) {
	handles := []ModuleHandle{
		{Path: "github.com/go-yaml/yaml/v2", Dir: "/yaml"},
		{Path: "github.com/pion/dtls/v2", Dir: "/dtls"},
		{Path: "github.com/pkg/errors", Dir: "/errors"},
		{Path: "github.com/cockroachdb/errors", Dir: "/cockroach"},
	}
	deduplicated := Deduplicate(handles)
	require.Len(t, deduplicated, 4)
	assert.Equal(t, handles, deduplicated)

	r := NewRegistry()
	for _, handle := range handles {
		assert.True(t, r.Register(handle), handle.Path)
	}
	assert.Equal(t, 4, r.Len())
}

// TestCurrentModules ensures the host module is listed first.
func TestCurrentModules(t *testing.T) {
	modules, err := CurrentModules()
	require.NoError(t, err)
	require.NotEmpty(t, modules)
	assert.Equal(t, HostModulePath, modules[0].Path)
}

// TestModuleCacheDirectory ensures module paths and versions are escaped the way the module cache stores them.
func TestModuleCacheDirectory(t *testing.T) {
	t.Setenv("GOMODCACHE", filepath.Join(string(filepath.Separator), "cache"))
	dir, err := ModuleCacheDirectory("github.com/Masterminds/semver", "v1.5.0")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(string(filepath.Separator), "cache", "github.com", "!masterminds", "semver@v1.5.0"), dir)
}
