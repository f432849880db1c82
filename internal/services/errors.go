package services

import (
	"errors"

	chat_errors "wedhabesha-chat/pkg/errors"
)

func errorsIsNotFound(err error) bool {
	return errors.Is(err, chat_errors.ErrNotFound)
}

func errorsIsAlreadyExists(err error) bool {
	return errors.Is(err, chat_errors.ErrAlreadyExists)
}
