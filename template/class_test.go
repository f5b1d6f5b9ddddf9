package template

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRenderDeterministic ensures rendering the same class twice yields identical sources.
func TestRenderDeterministic(t *testing.T) {
	class, err := Transpile("<#using# fmt#>\n<#model# *Item#>\n<# t.Write(fmt.Sprint(model.ID)) #>", "Row", "views.rows")
	require.NoError(t, err)
	assert.Equal(t, class.Render(), class.Render())
	assert.Equal(t, class.Render(), class.String())
	assert.Equal(t, "views.rows.Row", class.QualifiedName())
	assert.Equal(t, "rows", class.PackageName())
	assert.True(t, strings.Contains(class.Render(), "package rows\n"))
}

// TestImportSpecs ensures imports are quoted, de-duplicated, and aliases are kept verbatim.
func TestImportSpecs(t *testing.T) {
	class, err := Transpile(`<#using# fmt#><#using# strings#><#using# fmt#><#using# str "strings"#>`, "Imports", "gen")
	require.NoError(t, err)
	assert.Equal(t, []string{
		`"strings"`,
		`"github.com/crytic/stencil/contract"`,
		`"fmt"`,
		`str "strings"`,
	}, class.importSpecs())
}

// TestRenderTypedModel ensures a typed model produces a checked assertion and an untyped model does not.
func TestRenderTypedModel(t *testing.T) {
	typed := NewClass("Typed", "gen")
	typed.Model = "*Page"
	source := typed.Render()
	assert.Contains(t, source, "model, ok := modelAsAny.(*Page)")
	assert.Contains(t, source, `contract.NewModelTypeMismatch("*Page", modelAsAny)`)

	untyped := NewClass("Untyped", "gen")
	untyped.Model = UntypedModel
	source = untyped.Render()
	assert.Contains(t, source, "model := modelAsAny")
	assert.NotContains(t, source, "NewModelTypeMismatch")
}

// TestRenderBase ensures the base type is embedded in the generated struct.
func TestRenderBase(t *testing.T) {
	class := NewClass("WithBase", "gen")
	class.Base = "helpers.Base"
	assert.Contains(t, class.Render(), "type WithBase struct {\n\thelpers.Base\n\tcontent strings.Builder\n}")
}
