// Package loader fetches template text and key material by logical name from a file system, such as an embed.FS
// bundled with a host binary or an os.DirFS over a resource directory.
package loader

import (
	"io/fs"
	"strings"

	"github.com/pkg/errors"
)

// ErrResourceNotFound indicates no file in the file system matched the requested logical name.
var ErrResourceNotFound = errors.New("resource not found")

// ResolveName returns the path of the first file in fsys (in lexical walk order) whose path ends with the provided
// logical name, compared case-insensitively. Returns ErrResourceNotFound if no file matches.
func ResolveName(fsys fs.FS, name string) (string, error) {
	wanted := strings.ToLower(name)
	var resolved string

	err := fs.WalkDir(fsys, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if strings.HasSuffix(strings.ToLower(path), wanted) {
			resolved = path
			return fs.SkipAll
		}
		return nil
	})
	if err != nil {
		return "", errors.WithStack(err)
	}

	if resolved == "" {
		return "", errors.Wrapf(ErrResourceNotFound, "no resource matching '%s'", name)
	}
	return resolved, nil
}

// LoadBytes reads the content of the resource matching the provided logical name.
func LoadBytes(fsys fs.FS, name string) ([]byte, error) {
	path, err := ResolveName(fsys, name)
	if err != nil {
		return nil, err
	}

	b, err := fs.ReadFile(fsys, path)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return b, nil
}

// LoadText reads the content of the resource matching the provided logical name as a string.
func LoadText(fsys fs.FS, name string) (string, error) {
	b, err := LoadBytes(fsys, name)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
