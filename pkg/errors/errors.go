package chat_errors

import "errors"

// Common errors
var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrInvalidFormat      = errors.New("invalid ciphertext format")
	ErrDecryptionFailed   = errors.New("decryption failed")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrNotFound           = errors.New("not found")
	ErrAlreadyExists      = errors.New("already exists")
	ErrConflict           = errors.New("conflict")
	ErrServiceUnavailable = errors.New("service unavailable")
)
