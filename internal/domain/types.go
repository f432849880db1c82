package domain

import (
	"strings"

	chat_errors "wedhabesha-chat/pkg/errors"
)

// ParticipantType identifies which side of a thread a user belongs to.
// A thread always connects exactly one couple identity and one vendor identity.
type ParticipantType string

const (
	ParticipantCouple ParticipantType = "couple"
	ParticipantVendor ParticipantType = "vendor"
)

// ParseParticipantType normalizes a raw user type case-insensitively.
func ParseParticipantType(raw string) (ParticipantType, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(ParticipantCouple):
		return ParticipantCouple, nil
	case string(ParticipantVendor):
		return ParticipantVendor, nil
	default:
		return "", chat_errors.ErrInvalidInput
	}
}

// MessageType enumerates the supported message payload kinds.
type MessageType string

const (
	MessageText     MessageType = "text"
	MessageImage    MessageType = "image"
	MessageDocument MessageType = "document"
	MessageSystem   MessageType = "system"
)

func ParseMessageType(raw string) (MessageType, error) {
	switch MessageType(strings.ToLower(strings.TrimSpace(raw))) {
	case MessageText:
		return MessageText, nil
	case MessageImage:
		return MessageImage, nil
	case MessageDocument:
		return MessageDocument, nil
	case MessageSystem:
		return MessageSystem, nil
	default:
		return "", chat_errors.ErrInvalidInput
	}
}

// MessageStatus tracks delivery progress of a message.
type MessageStatus string

const (
	StatusSent      MessageStatus = "sent"
	StatusDelivered MessageStatus = "delivered"
	StatusRead      MessageStatus = "read"
)

// Priority levels for messages and the notifications they trigger.
type Priority string

const (
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

func ParsePriority(raw string) Priority {
	switch Priority(strings.ToLower(strings.TrimSpace(raw))) {
	case PriorityHigh:
		return PriorityHigh
	case PriorityUrgent:
		return PriorityUrgent
	default:
		return PriorityNormal
	}
}

// AccessResult classifies an audit trail entry.
type AccessResult string

const (
	AccessGranted AccessResult = "granted"
	AccessDenied  AccessResult = "denied"
	AccessError   AccessResult = "error"
)
