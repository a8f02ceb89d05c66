package domain

import (
	"chat-presence/errors"
	"fmt"
	"html"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
)

var (
	validate  = validator.New()
	sanitizer = bluemonday.StrictPolicy()
)

type participantName struct {
	Name string `validate:"required,min=3,max=100"`
}

type chatMessage struct {
	From string      `validate:"required"`
	To   string      `validate:"required"`
	Text string      `validate:"required"`
	Type MessageType `validate:"required,oneof=message private_message status"`
}

// Status notices carry a fixed text, only the addressing is checked.
type statusMessage struct {
	From string      `validate:"required"`
	To   string      `validate:"required"`
	Type MessageType `validate:"required,eq=status"`
}

// NormalizeName removes markup and surrounding whitespace from a participant name.
func NormalizeName(raw string) string {
	return NormalizeText(raw)
}

// NormalizeText removes markup and surrounding whitespace. Entities escaped
// by the sanitizer are restored so "Ana & Bia" survives unchanged.
func NormalizeText(raw string) string {
	return strings.TrimSpace(html.UnescapeString(sanitizer.Sanitize(raw)))
}

// ValidateName checks an already normalized name (3 to 100 characters).
func ValidateName(name string) error {
	if err := validate.Struct(participantName{Name: name}); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrInvalidName, err)
	}
	return nil
}

// ValidateMessage checks the fields required before a message enters the log.
func ValidateMessage(m Message) error {
	var err error
	if m.IsStatus() {
		err = validate.Struct(statusMessage{From: m.From, To: m.To, Type: m.Type})
	} else {
		err = validate.Struct(chatMessage{From: m.From, To: m.To, Text: m.Text, Type: m.Type})
	}
	if err != nil {
		return fmt.Errorf("%w: %v", errors.ErrValidationFailed, err)
	}
	return nil
}

// ValidatePost checks a participant-authored message body.
func ValidatePost(cmd PostMessageCommand) error {
	if err := validate.Struct(cmd); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrValidationFailed, err)
	}
	return nil
}
