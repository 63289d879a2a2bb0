package itemcache

import (
	"bytes"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	apperrors "github.com/avoiney/oppy/pkg/errors"
)

var magic = []byte("oppy1")

const hkdfInfo = "oppy item cache v1"

func deriveKey(secret string) ([]byte, error) {
	if secret == "" {
		return nil, errors.New("empty cache secret")
	}
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(hkdfInfo)), key); err != nil {
		return nil, fmt.Errorf("deriving cache key: %w", err)
	}
	return key, nil
}

// seal encrypts plaintext under a key derived from secret. name is bound as
// associated data so a payload only opens under the name it was saved as.
func seal(secret, name string, plaintext []byte) ([]byte, error) {
	key, err := deriveKey(secret)
	if err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}
	out := make([]byte, len(magic)+aead.NonceSize(), len(magic)+aead.NonceSize()+len(plaintext)+aead.Overhead())
	copy(out, magic)
	nonce := out[len(magic):]
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generating nonce: %w", err)
	}
	return aead.Seal(out, nonce, plaintext, []byte(name)), nil
}

// open reverses seal. Any mismatch (wrong secret, wrong name, tampering or
// truncation) is reported as errors.ErrCacheCorrupt.
func open(secret, name string, sealed []byte) ([]byte, error) {
	key, err := deriveKey(secret)
	if err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}
	if !bytes.HasPrefix(sealed, magic) || len(sealed) < len(magic)+aead.NonceSize()+aead.Overhead() {
		return nil, fmt.Errorf("%w: bad header", apperrors.ErrCacheCorrupt)
	}
	body := sealed[len(magic):]
	nonce, ciphertext := body[:aead.NonceSize()], body[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, []byte(name))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrCacheCorrupt, err)
	}
	return plaintext, nil
}
