package storage

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

// Sealed archives use: magic(8) + salt(16) + nonce(12) + ciphertext + tag(16).
const (
	sealMagic  = "GCM3NCR0"
	saltLen    = 16
	nonceLen   = 12
	kdfRounds  = 100000
	keyLen     = 32
	sealHeader = len(sealMagic) + saltLen + nonceLen
)

var ErrNotSealed = errors.New("data is not a sealed archive")

func deriveKey(password string, salt []byte) []byte {
	return pbkdf2.Key([]byte(password), salt, kdfRounds, keyLen, sha256.New)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	return cipher.NewGCM(block)
}

// Seal encrypts data with a key derived from password.
func Seal(data []byte, password string) ([]byte, error) {
	salt := make([]byte, saltLen+nonceLen)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("read random: %w", err)
	}
	nonce := salt[saltLen:]
	salt = salt[:saltLen]

	gcm, err := newGCM(deriveKey(password, salt))
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, sealHeader+len(data)+gcm.Overhead())
	out = append(out, sealMagic...)
	out = append(out, salt...)
	out = append(out, nonce...)
	return gcm.Seal(out, nonce, data, nil), nil
}

// Open reverses Seal.
func Open(sealed []byte, password string) ([]byte, error) {
	if len(sealed) < sealHeader+16 || string(sealed[:len(sealMagic)]) != sealMagic {
		return nil, ErrNotSealed
	}
	salt := sealed[len(sealMagic) : len(sealMagic)+saltLen]
	nonce := sealed[len(sealMagic)+saltLen : sealHeader]

	gcm, err := newGCM(deriveKey(password, salt))
	if err != nil {
		return nil, err
	}
	plain, err := gcm.Open(nil, nonce, sealed[sealHeader:], nil)
	if err != nil {
		return nil, fmt.Errorf("GCM decryption failed: %w", err)
	}
	return plain, nil
}
