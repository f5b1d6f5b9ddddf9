package platforms

import (
	"path/filepath"
	"testing"

	"github.com/crytic/stencil/compilation/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestParseDiagnostics ensures compiler messages are extracted and package headers are skipped.
func TestParseDiagnostics(t *testing.T) {
	root := filepath.Join(string(filepath.Separator), "work", "src")
	output := []byte("# stencilbuild/views\n" +
		"./views/Page.unit.go:4:2: undefined: missing\r\n" +
		"views/Row.unit.go:10: syntax error: unexpected newline\n" +
		"\tcontinuation detail\n" +
		"go: downloading nothing\n")

	diagnostics := ParseDiagnostics(output, root)
	require.Len(t, diagnostics, 2)
	assert.Equal(t, types.Diagnostic{
		File:    filepath.Join(root, "views", "Page.unit.go"),
		Line:    4,
		Column:  2,
		Message: "undefined: missing",
	}, diagnostics[0])
	assert.Equal(t, filepath.Join(root, "views", "Row.unit.go"), diagnostics[1].File)
	assert.Equal(t, 10, diagnostics[1].Line)
	assert.Equal(t, 0, diagnostics[1].Column)
}
