package artifacts

import (
	"fmt"
	"regexp"

	"github.com/Masterminds/semver"
	"github.com/pkg/errors"
)

// UnsignedKeyToken is the key token recorded in the identity of an unsigned artifact.
const UnsignedKeyToken = "null"

// identityPattern matches a formatted Identity.
var identityPattern = regexp.MustCompile(`^(.+), Version=([^,]+), KeyToken=([0-9a-f]+|null)$`)

// Identity is the identity of an artifact: its name, semantic version and, for a signed artifact, the token of the
// key it was signed with.
type Identity struct {
	// Name is the artifact name.
	Name string `json:"name"`

	// Version is the artifact's semantic version.
	Version string `json:"version"`

	// KeyToken is the token of the signing key, or UnsignedKeyToken.
	KeyToken string `json:"keyToken"`
}

// NewIdentity returns the Identity of an artifact. The version is normalized through semantic version parsing and
// an empty key token denotes an unsigned artifact.
func NewIdentity(name string, version string, keyToken string) (Identity, error) {
	v, err := semver.NewVersion(version)
	if err != nil {
		return Identity{}, errors.Wrapf(err, "invalid artifact version '%s'", version)
	}
	if keyToken == "" {
		keyToken = UnsignedKeyToken
	}
	return Identity{Name: name, Version: v.String(), KeyToken: keyToken}, nil
}

// ParseIdentity parses an identity string produced by Identity.String.
func ParseIdentity(text string) (Identity, error) {
	match := identityPattern.FindStringSubmatch(text)
	if match == nil {
		return Identity{}, errors.Errorf("malformed artifact identity '%s'", text)
	}
	return Identity{Name: match[1], Version: match[2], KeyToken: match[3]}, nil
}

// Signed indicates whether the identity carries a key token.
func (i Identity) Signed() bool {
	return i.KeyToken != "" && i.KeyToken != UnsignedKeyToken
}

// String returns the identity in its display form, "<name>, Version=<version>, KeyToken=<token>".
func (i Identity) String() string {
	return fmt.Sprintf("%s, Version=%s, KeyToken=%s", i.Name, i.Version, i.KeyToken)
}
