package loader

import (
	"testing"
	"testing/fstest"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testFS returns a small in-memory file system of resources.
func testFS() fstest.MapFS {
	return fstest.MapFS{
		"resources/compilers/SimpleObject.go.txt": {Data: []byte("package compilers")},
		"resources/parsers/ClassTemplate.input":   {Data: []byte("<#model# *Model#>")},
		"keys/TestKey.pem":                        {Data: []byte{0x01, 0x02, 0x03}},
	}
}

// TestResolveNameCaseInsensitiveSuffix ensures names are matched by suffix regardless of case.
func TestResolveNameCaseInsensitiveSuffix(t *testing.T) {
	path, err := ResolveName(testFS(), "classtemplate.INPUT")
	require.NoError(t, err)
	assert.Equal(t, "resources/parsers/ClassTemplate.input", path)

	path, err = ResolveName(testFS(), "compilers/simpleobject.go.txt")
	require.NoError(t, err)
	assert.Equal(t, "resources/compilers/SimpleObject.go.txt", path)
}

// TestLoadTextAndBytes ensures resource content is returned for both variants.
func TestLoadTextAndBytes(t *testing.T) {
	text, err := LoadText(testFS(), "ClassTemplate.input")
	require.NoError(t, err)
	assert.Equal(t, "<#model# *Model#>", text)

	b, err := LoadBytes(testFS(), "TestKey.pem")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0x02, 0x03}, b)
}

// TestResourceNotFound ensures a missing resource reports ErrResourceNotFound.
func TestResourceNotFound(t *testing.T) {
	_, err := LoadText(testFS(), "Missing.input")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrResourceNotFound))
}
