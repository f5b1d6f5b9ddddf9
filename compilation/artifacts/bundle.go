// Package artifacts implements the artifact a successful build produces: a bundle file holding the compiled package
// archives, the unit sources and a manifest carrying the artifact identity, optionally signed.
package artifacts

import (
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"sort"
	"time"

	"github.com/crytic/stencil/compilation/types"
	"github.com/crytic/stencil/utils"
	"github.com/pkg/errors"
	"go.etcd.io/bbolt"
	"golang.org/x/crypto/sha3"
)

// FileExtension is the file extension of artifact bundles.
const FileExtension = ".stencil"

var (
	metadataBucket = []byte("metadata")
	archivesBucket = []byte("archives")
	sourcesBucket  = []byte("sources")

	manifestKey  = []byte("manifest")
	signatureKey = []byte("signature")
	publicKeyKey = []byte("publicKey")
)

// ErrInvalidSignature indicates a signed bundle whose signature does not match its manifest.
var ErrInvalidSignature = errors.New("invalid artifact signature")

// Manifest describes the content of a bundle. Digests are hex-encoded SHA3-256 digests of the stored content.
type Manifest struct {
	// Identity is the artifact identity.
	Identity Identity `json:"identity"`

	// Archives maps each package import path to the digest of its compiled archive.
	Archives map[string]string `json:"archives"`

	// Sources maps each unit qualified name to the digest of its source.
	Sources map[string]string `json:"sources"`

	// References holds the references the artifact was compiled against.
	References []types.ResolvedReference `json:"references,omitempty"`

	// Toolchain describes the compiler which produced the archives.
	Toolchain string `json:"toolchain,omitempty"`

	// CreatedAt is the time the bundle was written.
	CreatedAt time.Time `json:"createdAt"`
}

// Bundle is the in-memory form of an artifact bundle.
type Bundle struct {
	// Manifest describes the bundle content.
	Manifest Manifest

	// Archives maps each package import path to its compiled archive.
	Archives map[string][]byte

	// Sources maps each unit qualified name to its source.
	Sources map[string][]byte

	// PublicKey is the key the manifest signature verifies against, or nil for an unsigned bundle.
	PublicKey ed25519.PublicKey

	// Signature is the Ed25519 signature of the encoded manifest, or nil for an unsigned bundle.
	Signature []byte

	// encodedManifest is the manifest as it was signed or read.
	encodedManifest []byte
}

// NewBundle returns an empty bundle with the provided identity.
func NewBundle(identity Identity) *Bundle {
	return &Bundle{
		Manifest: Manifest{
			Identity: identity,
			Archives: make(map[string]string),
			Sources:  make(map[string]string),
		},
		Archives: make(map[string][]byte),
		Sources:  make(map[string][]byte),
	}
}

// digest returns the hex-encoded SHA3-256 digest of data.
func digest(data []byte) string {
	sum := sha3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// AddArchive stores the compiled archive of a package.
func (b *Bundle) AddArchive(importPath string, data []byte) {
	b.Archives[importPath] = data
	b.Manifest.Archives[importPath] = digest(data)
	b.encodedManifest = nil
}

// AddSource stores the source of a unit.
func (b *Bundle) AddSource(qualifiedName string, data []byte) {
	b.Sources[qualifiedName] = data
	b.Manifest.Sources[qualifiedName] = digest(data)
	b.encodedManifest = nil
}

// Packages returns the import paths of the stored archives, sorted.
func (b *Bundle) Packages() []string {
	packages := make([]string, 0, len(b.Archives))
	for importPath := range b.Archives {
		packages = append(packages, importPath)
	}
	sort.Strings(packages)
	return packages
}

// Units returns the qualified names of the stored unit sources, sorted.
func (b *Bundle) Units() []string {
	units := make([]string, 0, len(b.Sources))
	for name := range b.Sources {
		units = append(units, name)
	}
	sort.Strings(units)
	return units
}

// Sign sets the identity key token from the key, then signs the encoded manifest.
func (b *Bundle) Sign(privateKey ed25519.PrivateKey) error {
	publicKey, ok := privateKey.Public().(ed25519.PublicKey)
	if !ok {
		return errors.WithStack(ErrInvalidSigningKey)
	}
	b.Manifest.Identity.KeyToken = KeyToken(publicKey)

	encoded, err := json.Marshal(b.Manifest)
	if err != nil {
		return errors.WithStack(err)
	}
	b.encodedManifest = encoded
	b.PublicKey = publicKey
	b.Signature = ed25519.Sign(privateKey, encoded)
	return nil
}

// manifestBytes returns the manifest as it was signed or read, or its current encoding.
func (b *Bundle) manifestBytes() ([]byte, error) {
	if b.encodedManifest != nil {
		return b.encodedManifest, nil
	}
	encoded, err := json.Marshal(b.Manifest)
	return encoded, errors.WithStack(err)
}

// Verify checks the bundle content against the manifest digests and, for a signed bundle, the manifest against
// the signature and the key token.
func (b *Bundle) Verify() error {
	for importPath, data := range b.Archives {
		if b.Manifest.Archives[importPath] != digest(data) {
			return errors.Errorf("archive of package '%s' does not match the manifest", importPath)
		}
	}
	for name, data := range b.Sources {
		if b.Manifest.Sources[name] != digest(data) {
			return errors.Errorf("source of unit '%s' does not match the manifest", name)
		}
	}

	if !b.Manifest.Identity.Signed() {
		return nil
	}
	if len(b.PublicKey) != ed25519.PublicKeySize || KeyToken(b.PublicKey) != b.Manifest.Identity.KeyToken {
		return errors.Wrap(ErrInvalidSignature, "public key does not match the key token")
	}
	encoded, err := b.manifestBytes()
	if err != nil {
		return err
	}
	if !ed25519.Verify(b.PublicKey, encoded, b.Signature) {
		return errors.WithStack(ErrInvalidSignature)
	}
	return nil
}

// Write stores the bundle at the provided path, replacing any existing file.
func (b *Bundle) Write(path string) error {
	if err := utils.DeleteFile(path); err != nil {
		return err
	}

	encoded, err := b.manifestBytes()
	if err != nil {
		return err
	}

	db, err := bbolt.Open(path, 0644, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return errors.Wrapf(err, "could not create artifact '%s'", path)
	}
	defer db.Close()

	err = db.Update(func(tx *bbolt.Tx) error {
		metadata, err := tx.CreateBucket(metadataBucket)
		if err != nil {
			return err
		}
		if err = metadata.Put(manifestKey, encoded); err != nil {
			return err
		}
		if b.Signature != nil {
			if err = metadata.Put(signatureKey, b.Signature); err != nil {
				return err
			}
			if err = metadata.Put(publicKeyKey, b.PublicKey); err != nil {
				return err
			}
		}

		if err = putAll(tx, archivesBucket, b.Archives); err != nil {
			return err
		}
		return putAll(tx, sourcesBucket, b.Sources)
	})
	return errors.WithStack(err)
}

// putAll creates the named bucket and stores every entry of values in it.
func putAll(tx *bbolt.Tx, name []byte, values map[string][]byte) error {
	bucket, err := tx.CreateBucket(name)
	if err != nil {
		return err
	}
	for key, value := range values {
		if err = bucket.Put([]byte(key), value); err != nil {
			return err
		}
	}
	return nil
}

// ReadBundle loads the bundle stored at the provided path. The bundle is not verified.
func ReadBundle(path string) (*Bundle, error) {
	db, err := bbolt.Open(path, 0644, &bbolt.Options{Timeout: 1 * time.Second, ReadOnly: true})
	if err != nil {
		return nil, errors.Wrapf(err, "could not open artifact '%s'", path)
	}
	defer db.Close()

	bundle := &Bundle{
		Archives: make(map[string][]byte),
		Sources:  make(map[string][]byte),
	}
	err = db.View(func(tx *bbolt.Tx) error {
		metadata := tx.Bucket(metadataBucket)
		if metadata == nil {
			return errors.Errorf("artifact '%s' has no manifest", path)
		}
		bundle.encodedManifest = append([]byte(nil), metadata.Get(manifestKey)...)
		if err := json.Unmarshal(bundle.encodedManifest, &bundle.Manifest); err != nil {
			return err
		}
		if signature := metadata.Get(signatureKey); signature != nil {
			bundle.Signature = append([]byte(nil), signature...)
			bundle.PublicKey = append(ed25519.PublicKey(nil), metadata.Get(publicKeyKey)...)
		}

		if err := getAll(tx, archivesBucket, bundle.Archives); err != nil {
			return err
		}
		return getAll(tx, sourcesBucket, bundle.Sources)
	})
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return bundle, nil
}

// getAll copies every entry of the named bucket into values. Values returned by bbolt are only valid during the
// transaction.
func getAll(tx *bbolt.Tx, name []byte, values map[string][]byte) error {
	bucket := tx.Bucket(name)
	if bucket == nil {
		return nil
	}
	return bucket.ForEach(func(k, v []byte) error {
		values[string(k)] = append([]byte(nil), v...)
		return nil
	})
}

// ReadIdentity returns the identity recorded in the bundle stored at the provided path.
func ReadIdentity(path string) (Identity, error) {
	bundle, err := ReadBundle(path)
	if err != nil {
		return Identity{}, err
	}
	return bundle.Manifest.Identity, nil
}
