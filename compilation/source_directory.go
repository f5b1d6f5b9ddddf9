package compilation

import (
	"io/fs"
	"path"
	"strings"

	"github.com/pkg/errors"
)

// TemplateFileExtension is the extension of template source files.
const TemplateFileExtension = ".tmpl"

// AddSourceDirectory adds every template and Go source file of fsys as a unit. Templates are transpiled into a class
// named after the file. Files in a sub-directory are placed in namespace followed by the sub-directory names. Go
// test files are skipped. Returns the qualified names of the added units, in walk order.
func (c *SourceCompiler) AddSourceDirectory(fsys fs.FS, namespace string) ([]string, error) {
	added := make([]string, 0)
	err := fs.WalkDir(fsys, ".", func(filePath string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		fileName := path.Base(filePath)
		unitNamespace := namespace
		if dir := path.Dir(filePath); dir != "." {
			unitNamespace += "." + strings.ReplaceAll(dir, "/", ".")
		}

		var qualifiedName string
		switch {
		case strings.HasSuffix(fileName, TemplateFileExtension):
			text, err := fs.ReadFile(fsys, filePath)
			if err != nil {
				return errors.WithStack(err)
			}
			className := strings.TrimSuffix(fileName, TemplateFileExtension)
			if qualifiedName, err = c.AddTemplate(string(text), className, unitNamespace); err != nil {
				return errors.Wrapf(err, "could not add template '%s'", filePath)
			}
		case strings.HasSuffix(fileName, ".go") && !strings.HasSuffix(fileName, "_test.go"):
			source, err := fs.ReadFile(fsys, filePath)
			if err != nil {
				return errors.WithStack(err)
			}
			unitName := strings.TrimSuffix(strings.TrimSuffix(fileName, ".go"), ".unit")
			if qualifiedName, err = c.AddUnit(unitNamespace, unitName, string(source)); err != nil {
				return errors.Wrapf(err, "could not add unit '%s'", filePath)
			}
		default:
			return nil
		}
		added = append(added, qualifiedName)
		return nil
	})
	return added, err
}
