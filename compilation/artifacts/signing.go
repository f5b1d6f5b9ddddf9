package artifacts

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"os"

	"github.com/crytic/stencil/utils"
	"github.com/pkg/errors"
	"golang.org/x/crypto/sha3"
)

// KeyFileExtension is the file extension given to generated signing keys.
const KeyFileExtension = ".pem"

// signingKeyPEMType is the PEM block type signing keys are stored under.
const signingKeyPEMType = "PRIVATE KEY"

// keyTokenLength is the number of bytes of the public key digest kept in a key token.
const keyTokenLength = 8

// ErrInvalidSigningKey indicates a key file which does not hold a PKCS #8 encoded Ed25519 private key.
var ErrInvalidSigningKey = errors.New("invalid signing key")

// KeyToken derives the short, hex-encoded token identifying a public key: the leading bytes of its SHA3-256 digest.
func KeyToken(publicKey ed25519.PublicKey) string {
	digest := sha3.Sum256(publicKey)
	return hex.EncodeToString(digest[:keyTokenLength])
}

// ParseSigningKey parses a PEM encoded PKCS #8 Ed25519 private key.
func ParseSigningKey(data []byte) (ed25519.PrivateKey, error) {
	block, _ := pem.Decode(data)
	if block == nil || block.Type != signingKeyPEMType {
		return nil, errors.Wrap(ErrInvalidSigningKey, "no PEM encoded private key found")
	}

	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidSigningKey, err.Error())
	}
	privateKey, ok := key.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.Wrapf(ErrInvalidSigningKey, "expected an Ed25519 key, got %T", key)
	}
	return privateKey, nil
}

// LoadSigningKey reads and parses the signing key at the provided path.
func LoadSigningKey(path string) (ed25519.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return ParseSigningKey(data)
}

// EncodeSigningKey encodes a private key in the PEM encoded PKCS #8 form read by ParseSigningKey.
func EncodeSigningKey(privateKey ed25519.PrivateKey) ([]byte, error) {
	der, err := x509.MarshalPKCS8PrivateKey(privateKey)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: signingKeyPEMType, Bytes: der}), nil
}

// GenerateSigningKey creates a new Ed25519 key, writes it to the provided path and returns it.
func GenerateSigningKey(path string) (ed25519.PrivateKey, error) {
	_, privateKey, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	data, err := EncodeSigningKey(privateKey)
	if err != nil {
		return nil, err
	}
	if err = utils.WriteFile(path, data); err != nil {
		return nil, err
	}
	return privateKey, nil
}
