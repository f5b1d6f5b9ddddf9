package types

import (
	"go/token"
	"path"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/pkg/errors"
)

// UnitFileSuffix is the suffix of the file name each translation unit is written to.
const UnitFileSuffix = ".unit.go"

// TranslationUnit is one named Go source fragment compiled as part of a build. A TranslationUnit is immutable once
// added to a CompilationDescriptor.
type TranslationUnit struct {
	// Namespace is a dot-separated list of Go identifiers. Its last segment is the Go package name of the unit.
	Namespace string `cbor:"namespace"`

	// Name is the name of the unit within its namespace.
	Name string `cbor:"name"`

	// Source is the Go source text of the unit.
	Source string `cbor:"source"`
}

// QualifiedName returns the namespace-qualified name of the unit.
func (u TranslationUnit) QualifiedName() string {
	return u.Namespace + "." + u.Name
}

// PackageDirectory returns the slash-separated directory, relative to the module root, holding the unit's package.
func (u TranslationUnit) PackageDirectory() string {
	return strings.ReplaceAll(u.Namespace, ".", "/")
}

// FileName returns the slash-separated path, relative to the module root, the unit's source is written to.
func (u TranslationUnit) FileName() string {
	return path.Join(u.PackageDirectory(), u.Name+UnitFileSuffix)
}

// ValidateUnitName verifies that namespace and name can be mapped to a Go package directory and file name. Every
// namespace segment must be a Go identifier and name must be a Go identifier starting with a letter.
func ValidateUnitName(namespace string, name string) error {
	if namespace == "" {
		return errors.Wrapf(ErrInvalidUnitName, "unit '%s' has an empty namespace", name)
	}
	for _, segment := range strings.Split(namespace, ".") {
		if !token.IsIdentifier(segment) {
			return errors.Wrapf(ErrInvalidUnitName, "namespace segment '%s' of '%s' is not a Go identifier", segment, namespace)
		}
	}

	first, _ := utf8.DecodeRuneInString(name)
	if !token.IsIdentifier(name) || !unicode.IsLetter(first) {
		return errors.Wrapf(ErrInvalidUnitName, "unit name '%s' must be a Go identifier starting with a letter", name)
	}
	return nil
}
