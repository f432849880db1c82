package crypto

import (
	"encoding/hex"
	"strings"
	"testing"

	chat_errors "wedhabesha-chat/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testMasterHex = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	keys, err := NewKeyStore(testMasterHex)
	require.NoError(t, err)
	return NewEngine(keys)
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	engine := newTestEngine(t)

	cases := []string{
		"hello",
		"Can you send the venue floor plan?",
		"ሰላም! የሠርጉ ዝግጅት እንዴት ነው?",
		"emoji 🎉💍 and symbols <>&\"'",
		strings.Repeat("long content ", 500),
	}
	for _, plaintext := range cases {
		token, err := engine.Encrypt(plaintext, "thread-1")
		require.NoError(t, err)

		got, err := engine.Decrypt(token, "thread-1")
		require.NoError(t, err)
		assert.Equal(t, plaintext, got)
	}
}

func TestEncryptRejectsEmptyPlaintext(t *testing.T) {
	engine := newTestEngine(t)

	_, err := engine.Encrypt("", "thread-1")
	assert.ErrorIs(t, err, chat_errors.ErrInvalidInput)
}

func TestEncryptIsNonDeterministic(t *testing.T) {
	engine := newTestEngine(t)

	first, err := engine.Encrypt("same plaintext", "thread-1")
	require.NoError(t, err)
	second, err := engine.Encrypt("same plaintext", "thread-1")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)

	for _, token := range []string{first, second} {
		got, err := engine.Decrypt(token, "thread-1")
		require.NoError(t, err)
		assert.Equal(t, "same plaintext", got)
	}
}

func TestTokenFormat(t *testing.T) {
	engine := newTestEngine(t)

	token, err := engine.Encrypt("check the fields", "thread-1")
	require.NoError(t, err)

	parts := strings.Split(token, ":")
	require.Len(t, parts, 3)

	nonce, err := hex.DecodeString(parts[0])
	require.NoError(t, err)
	assert.Len(t, nonce, 16)

	tag, err := hex.DecodeString(parts[1])
	require.NoError(t, err)
	assert.Len(t, tag, 16)

	ciphertext, err := hex.DecodeString(parts[2])
	require.NoError(t, err)
	assert.Equal(t, len("check the fields"), len(ciphertext))
}

func TestDecryptWithWrongThreadKeyFails(t *testing.T) {
	engine := newTestEngine(t)

	token, err := engine.Encrypt("secret for thread-1", "thread-1")
	require.NoError(t, err)

	_, err = engine.Decrypt(token, "thread-2")
	assert.ErrorIs(t, err, chat_errors.ErrDecryptionFailed)
}

func TestDecryptTamperedFieldsFail(t *testing.T) {
	engine := newTestEngine(t)

	token, err := engine.Encrypt("integrity matters", "thread-1")
	require.NoError(t, err)
	parts := strings.Split(token, ":")
	require.Len(t, parts, 3)

	flip := func(field string) string {
		raw, err := hex.DecodeString(field)
		require.NoError(t, err)
		raw[0] ^= 0x01
		return hex.EncodeToString(raw)
	}

	tampered := []string{
		flip(parts[0]) + ":" + parts[1] + ":" + parts[2],
		parts[0] + ":" + flip(parts[1]) + ":" + parts[2],
		parts[0] + ":" + parts[1] + ":" + flip(parts[2]),
	}
	for _, bad := range tampered {
		_, err := engine.Decrypt(bad, "thread-1")
		assert.ErrorIs(t, err, chat_errors.ErrDecryptionFailed)
	}
}

func TestDecryptMalformedTokens(t *testing.T) {
	engine := newTestEngine(t)

	bad := []string{
		"",
		"not-a-token",
		"aa:bb",
		"aa:bb:cc:dd",
		"zz:" + strings.Repeat("ab", 16) + ":" + strings.Repeat("ab", 4),
		strings.Repeat("ab", 8) + ":" + strings.Repeat("ab", 16) + ":" + strings.Repeat("ab", 4),
		strings.Repeat("ab", 16) + ":" + strings.Repeat("ab", 8) + ":" + strings.Repeat("ab", 4),
		strings.Repeat("ab", 16) + ":" + strings.Repeat("ab", 16) + ":",
	}
	for _, token := range bad {
		_, err := engine.Decrypt(token, "thread-1")
		assert.ErrorIs(t, err, chat_errors.ErrInvalidFormat, "token %q", token)
	}
}

func TestRotationInvalidatesOldTokens(t *testing.T) {
	engine := newTestEngine(t)

	before, err := engine.Encrypt("sealed before rotation", "thread-1")
	require.NoError(t, err)

	_, err = engine.Keys().RotateKey("thread-1")
	require.NoError(t, err)

	_, err = engine.Decrypt(before, "thread-1")
	assert.ErrorIs(t, err, chat_errors.ErrDecryptionFailed)

	after, err := engine.Encrypt("sealed after rotation", "thread-1")
	require.NoError(t, err)
	got, err := engine.Decrypt(after, "thread-1")
	require.NoError(t, err)
	assert.Equal(t, "sealed after rotation", got)
}
