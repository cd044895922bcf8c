// Package crypto seals mailbox OAuth credentials at rest with AES-256-GCM.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// Sealed values look like "v1.<base64url(nonce|ciphertext|tag)>". The version
// is also bound as associated data, so a value cannot be relabeled.
const (
	formatVersion = "v1"
	keySize       = 32
)

var (
	ErrInvalidKey = errors.New("encryption key must be 32 bytes")
	ErrMalformed  = errors.New("malformed sealed value")
	ErrDecrypt    = errors.New("sealed value failed authentication")
)

type Encryptor struct {
	aead cipher.AEAD
	aad  []byte
}

func NewEncryptor(key string) (*Encryptor, error) {
	if len(key) != keySize {
		return nil, ErrInvalidKey
	}
	block, err := aes.NewCipher([]byte(key))
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return &Encryptor{aead: aead, aad: []byte("chreosis/" + formatVersion)}, nil
}

// Encrypt seals plaintext with a fresh random nonce. Empty stays empty so an
// unset column round-trips.
func (e *Encryptor) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	nonce := make([]byte, e.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	sealed := e.aead.Seal(nonce, nonce, []byte(plaintext), e.aad)
	return formatVersion + "." + base64.RawURLEncoding.EncodeToString(sealed), nil
}

func (e *Encryptor) Decrypt(value string) (string, error) {
	if value == "" {
		return "", nil
	}
	version, payload, ok := strings.Cut(value, ".")
	if !ok || version != formatVersion {
		return "", fmt.Errorf("%w: unknown format", ErrMalformed)
	}
	data, err := base64.RawURLEncoding.DecodeString(payload)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	n := e.aead.NonceSize()
	if len(data) < n+e.aead.Overhead() {
		return "", fmt.Errorf("%w: %d bytes", ErrMalformed, len(data))
	}
	plaintext, err := e.aead.Open(nil, data[:n], data[n:], e.aad)
	if err != nil {
		return "", ErrDecrypt
	}
	return string(plaintext), nil
}
