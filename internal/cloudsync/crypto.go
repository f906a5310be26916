package cloudsync

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"io"

	"github.com/kagent-dev/memoryanchor/internal/apperr"
)

// KeySize is the AES-256 key length in bytes.
const KeySize = 32

// NonceSize is the GCM nonce length in bytes, per §4.L.
const NonceSize = 12

// Encryptor performs AES-256-GCM encryption with a fixed local key,
// ported from original_source/backend/services/data_encryptor.py.
type Encryptor struct {
	aead cipher.AEAD
}

// NewEncryptor builds an Encryptor from a 32-byte key.
func NewEncryptor(key []byte) (*Encryptor, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: expected %d-byte key, got %d", apperr.ErrCrypto, KeySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrCrypto, err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrCrypto, err)
	}
	return &Encryptor{aead: aead}, nil
}

// GenerateKey returns a fresh random 32-byte key.
func GenerateKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrCrypto, err)
	}
	return key, nil
}

// Encrypt returns nonce || ciphertext || tag, per §4.L's exact layout.
func (e *Encryptor) Encrypt(data, associatedData []byte) ([]byte, error) {
	nonce := make([]byte, NonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrCrypto, err)
	}
	sealed := e.aead.Seal(nil, nonce, data, associatedData)
	return append(nonce, sealed...), nil
}

// Decrypt reverses Encrypt. Any failure — wrong key, tampered bytes,
// mismatched associatedData — surfaces as the single apperr.ErrCrypto category.
func (e *Encryptor) Decrypt(encrypted, associatedData []byte) ([]byte, error) {
	if len(encrypted) < NonceSize+e.aead.Overhead() {
		return nil, fmt.Errorf("%w: encrypted payload too short", apperr.ErrCrypto)
	}
	nonce, ciphertext := encrypted[:NonceSize], encrypted[NonceSize:]
	plain, err := e.aead.Open(nil, nonce, ciphertext, associatedData)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrCrypto, err)
	}
	return plain, nil
}
