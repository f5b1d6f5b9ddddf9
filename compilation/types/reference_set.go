package types

import (
	"path/filepath"
	"strings"

	"golang.org/x/mod/module"
)

// Reference is an external dependency required to compile the units of a build, identified by a normalized key.
type Reference struct {
	// Key is the normalized, file name like identifier of the reference.
	Key string `cbor:"key"`

	// Location is the path or identifier the reference was registered with.
	Location string `cbor:"location"`
}

// ReferenceSet is an ordered set of references keyed by their normalized name. The first registration of a key
// wins; later registrations of the same key are ignored.
type ReferenceSet struct {
	keys    map[string]int
	entries []Reference
}

// NewReferenceSet returns an empty ReferenceSet.
func NewReferenceSet() *ReferenceSet {
	return &ReferenceSet{
		keys:    make(map[string]int),
		entries: make([]Reference, 0),
	}
}

// NormalizeReferenceKey returns the key a path or identifier is registered under. A module path such as
// "github.com/pkg/errors" or "example.com/lib/v2" is keyed by the whole lower-cased path, so distinct modules never
// share a key. Any other path is keyed by the lower-cased last element of the cleaned path. Returns an empty string
// if no key can be derived.
func NormalizeReferenceKey(pathOrIdentifier string) string {
	trimmed := strings.TrimSpace(strings.ReplaceAll(pathOrIdentifier, `\`, "/"))
	if trimmed == "" {
		return ""
	}
	if lowered := strings.ToLower(trimmed); strings.Contains(lowered, "/") && module.CheckPath(lowered) == nil {
		return lowered
	}
	base := filepath.Base(filepath.Clean(filepath.FromSlash(trimmed)))
	if base == "." || base == ".." || base == "/" || base == string(filepath.Separator) {
		return ""
	}
	return strings.ToLower(base)
}

// Add registers the path or identifier. Returns true if it was added, or false if it produced an empty key or its
// key was already registered.
func (s *ReferenceSet) Add(pathOrIdentifier string) bool {
	key := NormalizeReferenceKey(pathOrIdentifier)
	if key == "" {
		return false
	}
	if _, exists := s.keys[key]; exists {
		return false
	}
	s.keys[key] = len(s.entries)
	s.entries = append(s.entries, Reference{Key: key, Location: strings.TrimSpace(pathOrIdentifier)})
	return true
}

// Get returns the reference registered under the normalized form of key, if any.
func (s *ReferenceSet) Get(key string) (Reference, bool) {
	index, ok := s.keys[NormalizeReferenceKey(key)]
	if !ok {
		return Reference{}, false
	}
	return s.entries[index], true
}

// Len returns the number of references in the set.
func (s *ReferenceSet) Len() int {
	return len(s.entries)
}

// Entries returns a copy of the references in registration order.
func (s *ReferenceSet) Entries() []Reference {
	return append([]Reference(nil), s.entries...)
}
