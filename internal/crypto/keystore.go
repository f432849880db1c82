package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	chat_errors "wedhabesha-chat/pkg/errors"

	"golang.org/x/crypto/hkdf"
)

const keySize = 32

type threadKeyEntry struct {
	key     []byte
	salt    []byte
	version int
}

// KeyStore derives and caches per-thread symmetric keys from a master secret.
// It is an explicit component passed by reference; there is no package-level
// singleton. Concurrent derivations for the same thread are idempotent: the
// key is a pure function of (master, threadID, salt), so last write wins and
// the cached value is always correct. The mutex only guards map integrity.
type KeyStore struct {
	master []byte

	mu      sync.RWMutex
	entries map[string]*threadKeyEntry
}

// NewKeyStore builds a key store from a hex-encoded master secret of at least
// 32 bytes.
func NewKeyStore(masterHex string) (*KeyStore, error) {
	master, err := hex.DecodeString(strings.TrimSpace(masterHex))
	if err != nil {
		return nil, fmt.Errorf("master key is not valid hex: %w", chat_errors.ErrInvalidInput)
	}
	if len(master) < keySize {
		return nil, fmt.Errorf("master key must be at least %d bytes: %w", keySize, chat_errors.ErrInvalidInput)
	}
	return &KeyStore{
		master:  master,
		entries: make(map[string]*threadKeyEntry),
	}, nil
}

// DeriveThreadKey returns the current symmetric key for a thread, deriving
// and caching it on first use. Derivation is deterministic until the key is
// rotated; distinct thread ids yield distinct keys.
func (s *KeyStore) DeriveThreadKey(threadID string) ([]byte, error) {
	if strings.TrimSpace(threadID) == "" {
		return nil, fmt.Errorf("thread id is required: %w", chat_errors.ErrInvalidInput)
	}

	s.mu.RLock()
	entry, ok := s.entries[threadID]
	s.mu.RUnlock()
	if ok {
		return entry.key, nil
	}

	salt := initialSalt(threadID)
	key, err := s.derive(threadID, salt)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.entries[threadID]; ok {
		// Lost the race; the other derivation produced the same key.
		return existing.key, nil
	}
	s.entries[threadID] = &threadKeyEntry{key: key, salt: salt, version: 1}
	return key, nil
}

// RotateKey replaces the thread's key with one derived under a fresh random
// salt. Rotation is one-way: messages encrypted under the prior key become
// undecryptable. There is no re-encryption pass.
func (s *KeyStore) RotateKey(threadID string) (time.Time, error) {
	if strings.TrimSpace(threadID) == "" {
		return time.Time{}, fmt.Errorf("thread id is required: %w", chat_errors.ErrInvalidInput)
	}

	salt := make([]byte, keySize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return time.Time{}, fmt.Errorf("rotation salt: %w", err)
	}
	key, err := s.derive(threadID, salt)
	if err != nil {
		return time.Time{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	version := 1
	if existing, ok := s.entries[threadID]; ok {
		version = existing.version + 1
	}
	s.entries[threadID] = &threadKeyEntry{key: key, salt: salt, version: version}
	return time.Now(), nil
}

// Size reports the number of cached thread keys.
func (s *KeyStore) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Clear drops every cached key. Un-rotated keys re-derive to the same value.
func (s *KeyStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]*threadKeyEntry)
}

func (s *KeyStore) derive(threadID string, salt []byte) ([]byte, error) {
	reader := hkdf.New(sha256.New, s.master, salt, []byte("thread:"+threadID))
	key := make([]byte, keySize)
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, fmt.Errorf("derive thread key: %w", err)
	}
	return key, nil
}

func initialSalt(threadID string) []byte {
	sum := sha256.Sum256([]byte("thread-salt:" + threadID))
	return sum[:]
}
