package services

import (
	"chat-presence/contract"
	"chat-presence/domain"
	"chat-presence/errors"
	"chat-presence/moderation"
	"chat-presence/observability"
	"context"
	stderrors "errors"
	"log/slog"
)

type IChatService interface {
	RegisterParticipant(ctx context.Context, name string) (domain.Participant, error)
	PostMessage(ctx context.Context, cmd domain.PostMessageCommand) (domain.MessageID, error)
	Heartbeat(ctx context.Context, name string) error
	ListParticipants(ctx context.Context) ([]domain.Participant, error)
	GetMessages(ctx context.Context, cmd domain.GetMessagesCommand) ([]domain.Message, error)
}

// ChatService bridges the participant directory and the message log. It is
// the only place, with the presence sweeper, that writes status notices.
type ChatService struct {
	log        *slog.Logger
	directory  contract.IDirectory
	messageLog contract.IMessageLog
	moderator  *moderation.Moderator
	monitoring *observability.MonitoringManager
}

func NewChatService(
	log *slog.Logger,
	directory contract.IDirectory,
	messageLog contract.IMessageLog,
	moderator *moderation.Moderator,
	monitoring *observability.MonitoringManager,
) *ChatService {
	return &ChatService{
		log:        log,
		directory:  directory,
		messageLog: messageLog,
		moderator:  moderator,
		monitoring: monitoring,
	}
}

// RegisterParticipant adds the participant and announces the arrival. The
// join notice is best effort: a failed append is logged and counted but the
// registration stands.
func (s *ChatService) RegisterParticipant(ctx context.Context, name string) (domain.Participant, error) {
	participant, err := s.directory.Register(ctx, name)
	if err != nil {
		return domain.Participant{}, err
	}
	s.monitoring.IncrJoined()

	if _, err = s.messageLog.Append(ctx, domain.JoinMessage(participant.Name)); err != nil {
		s.monitoring.IncrFailedAnnouncements()
		s.log.Error("Failed to announce arrival", "name", participant.Name, "err", err)
	}
	return participant, nil
}

// PostMessage appends a participant-authored message. Posting counts as a
// heartbeat for the sender. Nothing is written when the sender is unknown or
// the message is invalid. The heartbeat is refreshed before the append, so
// the sender is still registered when the message lands, and it stays
// refreshed when the append itself fails.
func (s *ChatService) PostMessage(ctx context.Context, cmd domain.PostMessageCommand) (domain.MessageID, error) {
	cmd = cmd.Normalize()
	exists, err := s.directory.Exists(ctx, cmd.From)
	if err != nil {
		return "", err
	}
	if !exists {
		return "", errors.ErrSenderNotRegistered
	}
	if err = domain.ValidatePost(cmd); err != nil {
		return "", err
	}

	// The sender may have been swept since the lookup.
	if err = s.directory.Heartbeat(ctx, cmd.From); err != nil {
		if stderrors.Is(err, errors.ErrNotFound) {
			return "", errors.ErrSenderNotRegistered
		}
		return "", err
	}

	message := cmd.Message()
	if censored, words := s.moderator.Censor(message.Text); len(words) > 0 {
		s.log.Info("Message moderated", "from", message.From, "words", len(words))
		message.Text = censored
	}

	id, err := s.messageLog.Append(ctx, message)
	if err != nil {
		return "", err
	}
	s.monitoring.IncrPosted()
	return id, nil
}

func (s *ChatService) Heartbeat(ctx context.Context, name string) error {
	return s.directory.Heartbeat(ctx, name)
}

func (s *ChatService) ListParticipants(ctx context.Context) ([]domain.Participant, error) {
	return s.directory.ListActive(ctx)
}

func (s *ChatService) GetMessages(ctx context.Context, cmd domain.GetMessagesCommand) ([]domain.Message, error) {
	return s.messageLog.Query(ctx, cmd.User, cmd.Limit)
}
