package types

import (
	"strings"

	"github.com/fxamacker/cbor"
	"github.com/pkg/errors"
)

// CompilationDescriptor describes everything a single compilation pass needs: the translation units to compile and
// the references they depend on. Units are kept in registration order.
type CompilationDescriptor struct {
	// units maps a lower-cased qualified name to the index of its unit in order.
	units map[string]int

	// order holds the units in registration order.
	order []TranslationUnit

	// references holds the references of the build.
	references *ReferenceSet
}

// encodedDescriptor is the serialized form of a CompilationDescriptor.
type encodedDescriptor struct {
	Units      []TranslationUnit `cbor:"units"`
	References []Reference       `cbor:"references"`
}

// NewCompilationDescriptor returns an empty CompilationDescriptor.
func NewCompilationDescriptor() *CompilationDescriptor {
	return &CompilationDescriptor{
		units:      make(map[string]int),
		order:      make([]TranslationUnit, 0),
		references: NewReferenceSet(),
	}
}

// AddUnit adds a translation unit and returns its qualified name. Returns a DuplicateUnitError if a unit with the
// same qualified name exists, ignoring letter case since units are written to files named after them, or ErrInvalidUnitName if the namespace or name is invalid. The descriptor is left
// unchanged when an error is returned.
func (d *CompilationDescriptor) AddUnit(namespace string, name string, source string) (string, error) {
	if err := ValidateUnitName(namespace, name); err != nil {
		return "", err
	}

	unit := TranslationUnit{Namespace: namespace, Name: name, Source: source}
	qualifiedName := unit.QualifiedName()
	key := strings.ToLower(qualifiedName)
	if _, exists := d.units[key]; exists {
		return "", errors.WithStack(&DuplicateUnitError{QualifiedName: qualifiedName})
	}

	d.units[key] = len(d.order)
	d.order = append(d.order, unit)
	return qualifiedName, nil
}

// AddReference registers a reference by path or identifier. Repeated keys are ignored.
func (d *CompilationDescriptor) AddReference(pathOrIdentifier string) {
	d.references.Add(pathOrIdentifier)
}

// Unit returns the unit with the provided qualified name, if any.
func (d *CompilationDescriptor) Unit(qualifiedName string) (TranslationUnit, bool) {
	index, ok := d.units[strings.ToLower(qualifiedName)]
	if !ok || d.order[index].QualifiedName() != qualifiedName {
		return TranslationUnit{}, false
	}
	return d.order[index], true
}

// Units returns a copy of the units in registration order.
func (d *CompilationDescriptor) Units() []TranslationUnit {
	return append([]TranslationUnit(nil), d.order...)
}

// UnitCount returns the number of units in the descriptor.
func (d *CompilationDescriptor) UnitCount() int {
	return len(d.order)
}

// References returns a copy of the references in registration order.
func (d *CompilationDescriptor) References() []Reference {
	return d.references.Entries()
}

// CopyTo replays every unit and reference of the descriptor into other through its own AddUnit and AddReference.
// Returns the first error other reports.
func (d *CompilationDescriptor) CopyTo(other *CompilationDescriptor) error {
	for _, unit := range d.order {
		if _, err := other.AddUnit(unit.Namespace, unit.Name, unit.Source); err != nil {
			return err
		}
	}
	for _, reference := range d.references.entries {
		other.AddReference(reference.Location)
	}
	return nil
}

// Clone returns an independent copy of the descriptor.
func (d *CompilationDescriptor) Clone() *CompilationDescriptor {
	clone := NewCompilationDescriptor()

	// A fresh descriptor cannot reject units which were valid in this one.
	_ = d.CopyTo(clone)
	return clone
}

// Without returns a new descriptor holding every unit except the ones whose qualified name matches one of the
// provided names, compared case-insensitively. References are carried over. The receiver is not modified.
func (d *CompilationDescriptor) Without(qualifiedNames []string) *CompilationDescriptor {
	reduced := NewCompilationDescriptor()
	for _, unit := range d.order {
		excluded := false
		for _, name := range qualifiedNames {
			if strings.EqualFold(unit.QualifiedName(), name) {
				excluded = true
				break
			}
		}
		if excluded {
			continue
		}
		reduced.units[strings.ToLower(unit.QualifiedName())] = len(reduced.order)
		reduced.order = append(reduced.order, unit)
	}
	for _, reference := range d.references.entries {
		reduced.AddReference(reference.Location)
	}
	return reduced
}

// MarshalCBOR encodes the descriptor into the form which crosses into a sandbox.
func (d *CompilationDescriptor) MarshalCBOR() ([]byte, error) {
	encoded := encodedDescriptor{
		Units:      d.Units(),
		References: d.References(),
	}
	b, err := cbor.Marshal(encoded, cbor.EncOptions{})
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return b, nil
}

// UnmarshalDescriptor decodes a descriptor produced by MarshalCBOR. The descriptor is rebuilt by replaying every
// decoded unit and reference through AddUnit and AddReference.
func UnmarshalDescriptor(data []byte) (*CompilationDescriptor, error) {
	var encoded encodedDescriptor
	if err := cbor.Unmarshal(data, &encoded); err != nil {
		return nil, errors.WithStack(err)
	}

	descriptor := NewCompilationDescriptor()
	for _, unit := range encoded.Units {
		if _, err := descriptor.AddUnit(unit.Namespace, unit.Name, unit.Source); err != nil {
			return nil, err
		}
	}
	for _, reference := range encoded.References {
		descriptor.AddReference(reference.Location)
	}
	return descriptor, nil
}
