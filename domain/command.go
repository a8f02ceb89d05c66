package domain

// PostMessageCommand carries a participant-authored message. Status messages
// are never posted through it.
type PostMessageCommand struct {
	From string
	To   string      `validate:"required"`
	Text string      `validate:"required"`
	Type MessageType `validate:"required,oneof=message private_message"`
}

// Normalize strips markup and surrounding spaces from every field.
func (c PostMessageCommand) Normalize() PostMessageCommand {
	return PostMessageCommand{
		From: NormalizeName(c.From),
		To:   NormalizeName(c.To),
		Text: NormalizeText(c.Text),
		Type: MessageType(NormalizeText(string(c.Type))),
	}
}

func (c PostMessageCommand) Message() Message {
	return Message{From: c.From, To: c.To, Text: c.Text, Type: c.Type}
}

// GetMessagesCommand reads the log as seen by User. A nil Limit returns every
// visible message.
type GetMessagesCommand struct {
	User  string
	Limit *int
}
