// Package crypt provides the encryption provider consumed by the
// output sinks for fields flagged sensitive. The pipeline core only
// sees the Provider interface and never raw key material.
package crypt

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
)

// Provider encrypts and decrypts opaque byte strings.
type Provider interface {
	Encrypt(plaintext []byte) ([]byte, error)
	Decrypt(ciphertext []byte) ([]byte, error)
}

// keySize is the AES-256 key length in bytes.
const keySize = 32

// ErrCiphertextTooShort is returned when a ciphertext is shorter than
// its nonce prefix.
var ErrCiphertextTooShort = errors.New("ciphertext shorter than nonce")

// LoadOrCreateKey returns the key stored at path, generating and
// persisting a fresh one (mode 0600) on first use.
func LoadOrCreateKey(path string) ([]byte, error) {
	key, err := os.ReadFile(path)
	if err == nil {
		if len(key) != keySize {
			return nil, fmt.Errorf("key file %s: expected %d bytes, got %d", path, keySize, len(key))
		}
		return key, nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read key file %s: %w", path, err)
	}

	key = make([]byte, keySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	if err := os.WriteFile(path, key, 0o600); err != nil {
		return nil, fmt.Errorf("write key file %s: %w", path, err)
	}
	return key, nil
}

// AESGCM is an AES-256-GCM Provider. Each ciphertext carries its
// random nonce as a prefix.
type AESGCM struct {
	aead cipher.AEAD
}

// NewAESGCM builds a Provider from a 32-byte key.
func NewAESGCM(key []byte) (*AESGCM, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("init gcm: %w", err)
	}
	return &AESGCM{aead: aead}, nil
}

// Encrypt implements Provider.
func (p *AESGCM) Encrypt(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, p.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	return p.aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt implements Provider.
func (p *AESGCM) Decrypt(ciphertext []byte) ([]byte, error) {
	if len(ciphertext) < p.aead.NonceSize() {
		return nil, ErrCiphertextTooShort
	}
	nonce, sealed := ciphertext[:p.aead.NonceSize()], ciphertext[p.aead.NonceSize():]
	plaintext, err := p.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("decrypt: %w", err)
	}
	return plaintext, nil
}

// EncryptString encrypts a string and encodes the result for safe
// embedding in text output (URL-safe base64).
func EncryptString(p Provider, s string) (string, error) {
	out, err := p.Encrypt([]byte(s))
	if err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(out), nil
}

// DecryptString reverses EncryptString.
func DecryptString(p Provider, s string) (string, error) {
	raw, err := base64.URLEncoding.DecodeString(s)
	if err != nil {
		return "", fmt.Errorf("decode ciphertext: %w", err)
	}
	out, err := p.Decrypt(raw)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
