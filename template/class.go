package template

import (
	"strconv"
	"strings"

	"github.com/crytic/stencil/contract"
)

// UntypedModel is the model type used when a template does not declare one. Execute accepts any model without
// checking its type.
const UntypedModel = "any"

// generatedHeader marks rendered sources as generated code.
const generatedHeader = "// Code generated by stencil. DO NOT EDIT.\n\n"

// DefaultImports returns the imports every generated source starts with. The generated struct and its contract
// assertion use both of them.
func DefaultImports() []string {
	return []string{
		"strings",
		contract.ImportPath,
	}
}

// Class describes the Go type generated from a template.
type Class struct {
	// Name is the name of the generated type.
	Name string

	// Namespace is the dot-separated namespace of the generated type. Its last segment is the package name.
	Namespace string

	// Base is an optional type expression embedded in the generated struct.
	Base string

	// Model is the type expression Execute asserts its model to, or UntypedModel.
	Model string

	// Imports lists the import paths (or full import specs, such as an aliased import) of the generated file.
	Imports []string

	// Body is the source of the Execute method body.
	Body string
}

// NewClass returns a Class with the default imports and no body.
func NewClass(name string, namespace string) *Class {
	return &Class{
		Name:      name,
		Namespace: namespace,
		Imports:   DefaultImports(),
	}
}

// QualifiedName returns the namespace-qualified name of the Class.
func (c *Class) QualifiedName() string {
	return c.Namespace + "." + c.Name
}

// PackageName returns the Go package name of the generated source, the last segment of the namespace.
func (c *Class) PackageName() string {
	return c.Namespace[strings.LastIndex(c.Namespace, ".")+1:]
}

// IsUntyped indicates whether Execute accepts any model.
func (c *Class) IsUntyped() bool {
	return c.Model == "" || c.Model == UntypedModel
}

// importSpecs returns the import specs of the Class, without duplicates. Imports which already contain a quote are
// used verbatim, others are quoted.
func (c *Class) importSpecs() []string {
	seen := make(map[string]struct{}, len(c.Imports))
	specs := make([]string, 0, len(c.Imports))
	for _, imp := range c.Imports {
		imp = strings.TrimSpace(imp)
		if imp == "" {
			continue
		}
		if !strings.Contains(imp, `"`) {
			imp = strconv.Quote(imp)
		}
		if _, ok := seen[imp]; ok {
			continue
		}
		seen[imp] = struct{}{}
		specs = append(specs, imp)
	}
	return specs
}

// Render returns the Go source of the Class. The output is deterministic for a given Class.
func (c *Class) Render() string {
	var b strings.Builder
	receiver := "(t *" + c.Name + ")"

	b.WriteString(generatedHeader)
	b.WriteString("package " + c.PackageName() + "\n\n")

	// Imports
	b.WriteString("import (\n")
	for _, spec := range c.importSpecs() {
		b.WriteString("\t" + spec + "\n")
	}
	b.WriteString(")\n\n")

	// Type declaration and contract assertion
	b.WriteString("// " + c.Name + " is generated from a template.\n")
	b.WriteString("type " + c.Name + " struct {\n")
	if c.Base != "" {
		b.WriteString("\t" + c.Base + "\n")
	}
	b.WriteString("\tcontent strings.Builder\n")
	b.WriteString("}\n\n")
	b.WriteString("var _ contract.Result = (*" + c.Name + ")(nil)\n\n")

	// Output methods
	b.WriteString("// Content returns the text written so far.\n")
	b.WriteString("func " + receiver + " Content() string {\n")
	b.WriteString("\treturn t.content.String()\n")
	b.WriteString("}\n\n")

	b.WriteString("// Write appends text to the content.\n")
	b.WriteString("func " + receiver + " Write(text string) {\n")
	b.WriteString("\tt.content.WriteString(text)\n")
	b.WriteString("}\n\n")

	b.WriteString("// WriteLine appends text and a line terminator to the content.\n")
	b.WriteString("func " + receiver + " WriteLine(text string) {\n")
	b.WriteString("\tt.content.WriteString(text)\n")
	b.WriteString("\tt.content.WriteString(\"\\n\")\n")
	b.WriteString("}\n\n")

	// Execute, with the model assertion followed by the template body
	b.WriteString("// Execute runs the template body against the model.\n")
	b.WriteString("func " + receiver + " Execute(modelAsAny any) error {\n")
	if c.IsUntyped() {
		b.WriteString("\tmodel := modelAsAny\n")
	} else {
		b.WriteString("\tmodel, ok := modelAsAny.(" + c.Model + ")\n")
		b.WriteString("\tif !ok {\n")
		b.WriteString("\t\treturn contract.NewModelTypeMismatch(" + strconv.Quote(c.Model) + ", modelAsAny)\n")
		b.WriteString("\t}\n")
	}
	b.WriteString("\t_ = model\n")
	b.WriteString(c.Body)
	b.WriteString("\n\treturn nil\n")
	b.WriteString("}\n")

	return b.String()
}

// String returns the rendered source of the Class.
func (c *Class) String() string {
	return c.Render()
}
