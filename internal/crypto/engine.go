package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	chat_errors "wedhabesha-chat/pkg/errors"
)

// Token layout: <nonceHex>:<tagHex>:<cipherHex>, three lowercase hex fields.
// Nonce and tag are fixed at 128 bits; the cipher field length follows the
// plaintext length.
const (
	nonceSize = 16
	tagSize   = 16
)

// Engine encrypts and decrypts message content under per-thread keys from a
// KeyStore.
type Engine struct {
	keys *KeyStore
}

func NewEngine(keys *KeyStore) *Engine {
	return &Engine{keys: keys}
}

// Keys exposes the underlying key store for rotation and cache inspection.
func (e *Engine) Keys() *KeyStore {
	return e.keys
}

// Encrypt seals plaintext under the thread's current key with a random
// per-call nonce. Two encryptions of the same plaintext produce different
// tokens that both decrypt to the original.
func (e *Engine) Encrypt(plaintext, threadID string) (string, error) {
	if plaintext == "" {
		return "", fmt.Errorf("plaintext is required: %w", chat_errors.ErrInvalidInput)
	}
	aead, err := e.aeadFor(threadID)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("nonce: %w", err)
	}

	sealed := aead.Seal(nil, nonce, []byte(plaintext), nil)
	ciphertext := sealed[:len(sealed)-tagSize]
	tag := sealed[len(sealed)-tagSize:]

	return hex.EncodeToString(nonce) + ":" + hex.EncodeToString(tag) + ":" + hex.EncodeToString(ciphertext), nil
}

// Decrypt opens a token produced by Encrypt. A malformed token is a format
// error; an authentication failure (tampering or a different thread's key)
// is a decryption error. Success is byte-exact.
func (e *Engine) Decrypt(token, threadID string) (string, error) {
	nonce, tag, ciphertext, err := parseToken(token)
	if err != nil {
		return "", err
	}
	aead, err := e.aeadFor(threadID)
	if err != nil {
		return "", err
	}

	sealed := append(append([]byte{}, ciphertext...), tag...)
	plaintext, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", chat_errors.ErrDecryptionFailed
	}
	return string(plaintext), nil
}

func (e *Engine) aeadFor(threadID string) (cipher.AEAD, error) {
	key, err := e.keys.DeriveThreadKey(threadID)
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCMWithNonceSize(block, nonceSize)
}

func parseToken(token string) (nonce, tag, ciphertext []byte, err error) {
	parts := strings.Split(token, ":")
	if len(parts) != 3 {
		return nil, nil, nil, fmt.Errorf("expected 3 fields, got %d: %w", len(parts), chat_errors.ErrInvalidFormat)
	}

	nonce, err = hex.DecodeString(parts[0])
	if err != nil || len(nonce) != nonceSize {
		return nil, nil, nil, fmt.Errorf("bad nonce field: %w", chat_errors.ErrInvalidFormat)
	}
	tag, err = hex.DecodeString(parts[1])
	if err != nil || len(tag) != tagSize {
		return nil, nil, nil, fmt.Errorf("bad auth tag field: %w", chat_errors.ErrInvalidFormat)
	}
	ciphertext, err = hex.DecodeString(parts[2])
	if err != nil || len(ciphertext) == 0 {
		return nil, nil, nil, fmt.Errorf("bad cipher field: %w", chat_errors.ErrInvalidFormat)
	}
	return nonce, tag, ciphertext, nil
}
