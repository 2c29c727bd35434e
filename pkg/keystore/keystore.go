// pkg/keystore/keystore.go
//
// Encryption provider. A single 32-byte key lives in data/.keystore and is
// created on first use; values are sealed with XChaCha20-Poly1305 and
// carry their nonce as a prefix.

package keystore

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"os"
	"path/filepath"

	"github.com/CodeMonkeyCybersecurity/agms/pkg/shared"
	cerr "github.com/cockroachdb/errors"
	"golang.org/x/crypto/chacha20poly1305"
)

// ErrCorrupt is returned when the key file exists but cannot be used.
var ErrCorrupt = cerr.New("keystore is corrupt")

type Keystore struct {
	path string
	aead cipher.AEAD
}

// Open loads the key at path, generating it when the file does not exist.
// The second return value reports whether a key was generated.
func Open(path string) (*Keystore, bool, error) {
	key, err := os.ReadFile(path)
	created := false
	switch {
	case os.IsNotExist(err):
		key, err = generate(path)
		if err != nil {
			return nil, false, err
		}
		created = true
	case err != nil:
		return nil, false, cerr.Wrapf(err, "read keystore %s", path)
	}

	if len(key) != chacha20poly1305.KeySize {
		return nil, false, cerr.Wrapf(ErrCorrupt, "%s holds %d bytes, want %d", path, len(key), chacha20poly1305.KeySize)
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, false, cerr.Wrap(err, "init cipher")
	}
	return &Keystore{path: path, aead: aead}, created, nil
}

func generate(path string) ([]byte, error) {
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, cerr.Wrap(err, "generate key")
	}
	if err := os.MkdirAll(filepath.Dir(path), shared.FilePermOwnerRWX); err != nil {
		return nil, cerr.Wrap(err, "create keystore directory")
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, shared.FilePermOwnerReadWrite)
	if err != nil {
		return nil, cerr.Wrapf(err, "create keystore %s", path)
	}
	defer func() { _ = f.Close() }()
	if _, err := f.Write(key); err != nil {
		return nil, cerr.Wrap(err, "write keystore")
	}
	return key, nil
}

// Path is the key file location.
func (k *Keystore) Path() string { return k.path }

// Seal encrypts plaintext. additional is authenticated but not encrypted.
func (k *Keystore) Seal(plaintext, additional []byte) ([]byte, error) {
	nonce := make([]byte, k.aead.NonceSize(), k.aead.NonceSize()+len(plaintext)+k.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, cerr.Wrap(err, "generate nonce")
	}
	return k.aead.Seal(nonce, nonce, plaintext, additional), nil
}

// Open decrypts a value produced by Seal with the same additional data.
func (k *Keystore) Open(sealed, additional []byte) ([]byte, error) {
	if len(sealed) < k.aead.NonceSize()+k.aead.Overhead() {
		return nil, cerr.New("sealed value too short")
	}
	nonce, ct := sealed[:k.aead.NonceSize()], sealed[k.aead.NonceSize():]
	plain, err := k.aead.Open(nil, nonce, ct, additional)
	if err != nil {
		return nil, cerr.Wrap(err, "decrypt")
	}
	return plain, nil
}

// EncryptString seals s and returns it base64 encoded.
func (k *Keystore) EncryptString(s string) (string, error) {
	sealed, err := k.Seal([]byte(s), nil)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// DecryptString reverses EncryptString.
func (k *Keystore) DecryptString(s string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return "", cerr.Wrap(err, "decode")
	}
	plain, err := k.Open(raw, nil)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}
