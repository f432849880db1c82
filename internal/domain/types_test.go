package domain

import (
	"testing"

	chat_errors "wedhabesha-chat/pkg/errors"

	"github.com/stretchr/testify/assert"
)

func TestParseParticipantType(t *testing.T) {
	for raw, want := range map[string]ParticipantType{
		"couple":  ParticipantCouple,
		"COUPLE":  ParticipantCouple,
		" vendor": ParticipantVendor,
		"Vendor":  ParticipantVendor,
	} {
		got, err := ParseParticipantType(raw)
		assert.NoError(t, err)
		assert.Equal(t, want, got)
	}

	for _, raw := range []string{"", "admin", "couples", "planner"} {
		_, err := ParseParticipantType(raw)
		assert.ErrorIs(t, err, chat_errors.ErrInvalidInput, "raw %q", raw)
	}
}

func TestParseMessageType(t *testing.T) {
	for raw, want := range map[string]MessageType{
		"text":     MessageText,
		"IMAGE":    MessageImage,
		"document": MessageDocument,
		"system":   MessageSystem,
	} {
		got, err := ParseMessageType(raw)
		assert.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := ParseMessageType("video")
	assert.ErrorIs(t, err, chat_errors.ErrInvalidInput)
}

func TestParsePriorityDefaultsToNormal(t *testing.T) {
	assert.Equal(t, PriorityHigh, ParsePriority("high"))
	assert.Equal(t, PriorityUrgent, ParsePriority("URGENT"))
	assert.Equal(t, PriorityNormal, ParsePriority("normal"))
	assert.Equal(t, PriorityNormal, ParsePriority(""))
	assert.Equal(t, PriorityNormal, ParsePriority("critical"))
}
