package runtime

import (
	"chat-presence/clock"
	"chat-presence/contract"
	"chat-presence/domain"
	"chat-presence/errors"
	"context"
	"log/slog"
)

// MessageLog is the append-only, ordered log of chat and status messages.
type MessageLog struct {
	log        *slog.Logger
	clock      clock.Clock
	repository contract.IMessageRepository
}

func NewMessageLog(log *slog.Logger, clk clock.Clock, repository contract.IMessageRepository) *MessageLog {
	return &MessageLog{log: log, clock: clk, repository: repository}
}

// Append validates the message, stamps it with the current time and appends
// it. Prior entries are never touched.
func (l *MessageLog) Append(ctx context.Context, message domain.Message) (domain.MessageID, error) {
	if err := domain.ValidateMessage(message); err != nil {
		return "", err
	}
	message.Time = domain.FormatTime(l.clock.Now())
	id, err := l.repository.InsertMessage(ctx, message)
	if err != nil {
		return "", err
	}
	l.log.Debug("Message appended", "id", id, "from", message.From, "to", message.To, "type", message.Type)
	return id, nil
}

// Query returns the messages visible to participant, oldest first. With a
// limit only the most recent matches are kept.
func (l *MessageLog) Query(ctx context.Context, participant string, limit *int) ([]domain.Message, error) {
	if limit != nil && *limit <= 0 {
		return nil, errors.ErrInvalidLimit
	}
	return l.repository.FindMessages(ctx, domain.NormalizeName(participant), limit)
}
