package services

import (
	"chat-presence/domain"
	"chat-presence/errors"
	"chat-presence/mocks"
	"chat-presence/moderation"
	"chat-presence/observability"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

var epoch = time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)

type serviceFixture struct {
	service    *ChatService
	directory  *mocks.MockIDirectory
	messageLog *mocks.MockIMessageLog
	monitoring *observability.MonitoringManager
}

func newServiceFixture(t *testing.T, censoredWords ...string) serviceFixture {
	ctrl := gomock.NewController(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	moderator, err := moderation.NewModerator(censoredWords, '*', log)
	require.NoError(t, err)
	f := serviceFixture{
		directory:  mocks.NewMockIDirectory(ctrl),
		messageLog: mocks.NewMockIMessageLog(ctrl),
		monitoring: observability.NewMonitoringManager(log),
	}
	f.service = NewChatService(log, f.directory, f.messageLog, moderator, f.monitoring)
	return f
}

func TestChatService_RegisterParticipant(t *testing.T) {
	t.Run("should register and announce the arrival", func(t *testing.T) {
		req := require.New(t)
		f := newServiceFixture(t)

		gomock.InOrder(
			f.directory.EXPECT().Register(gomock.Any(), " Ana ").Return(domain.NewParticipant("Ana", epoch), nil),
			f.messageLog.EXPECT().Append(gomock.Any(), domain.JoinMessage("Ana")).Return(domain.MessageID("1"), nil),
		)

		participant, err := f.service.RegisterParticipant(context.Background(), " Ana ")

		req.NoError(err)
		req.Equal("Ana", participant.Name)
		req.Equal(uint64(1), f.monitoring.GetLatest().Joined)
	})

	t.Run("should not announce a taken name", func(t *testing.T) {
		req := require.New(t)
		f := newServiceFixture(t)

		f.directory.EXPECT().Register(gomock.Any(), "Ana").Return(domain.Participant{}, errors.ErrAlreadyExists)
		f.messageLog.EXPECT().Append(gomock.Any(), gomock.Any()).Times(0)

		_, err := f.service.RegisterParticipant(context.Background(), "Ana")
		req.ErrorIs(err, errors.ErrAlreadyExists)
	})

	t.Run("should keep the registration when the join notice fails", func(t *testing.T) {
		req := require.New(t)
		f := newServiceFixture(t)

		f.directory.EXPECT().Register(gomock.Any(), "Ana").Return(domain.NewParticipant("Ana", epoch), nil)
		f.messageLog.EXPECT().Append(gomock.Any(), gomock.Any()).Return(domain.MessageID(""), errors.ErrStoreUnavailable)

		participant, err := f.service.RegisterParticipant(context.Background(), "Ana")
		req.NoError(err)
		req.Equal("Ana", participant.Name)
		req.Equal(uint64(1), f.monitoring.GetLatest().FailedAnnouncements)
	})
}

func TestChatService_PostMessage(t *testing.T) {
	cmd := domain.PostMessageCommand{From: "Ana", To: domain.Broadcast, Text: "oi", Type: domain.MessageTypeMessage}

	t.Run("should refresh the sender and append", func(t *testing.T) {
		req := require.New(t)
		f := newServiceFixture(t)

		gomock.InOrder(
			f.directory.EXPECT().Exists(gomock.Any(), "Ana").Return(true, nil),
			f.directory.EXPECT().Heartbeat(gomock.Any(), "Ana").Return(nil),
			f.messageLog.EXPECT().
				Append(gomock.Any(), domain.Message{From: "Ana", To: domain.Broadcast, Text: "oi", Type: domain.MessageTypeMessage}).
				Return(domain.MessageID("42"), nil),
		)

		id, err := f.service.PostMessage(context.Background(), cmd)
		req.NoError(err)
		req.Equal(domain.MessageID("42"), id)
		req.Equal(uint64(1), f.monitoring.GetLatest().Posted)
	})

	t.Run("should reject an unknown sender without any write", func(t *testing.T) {
		req := require.New(t)
		f := newServiceFixture(t)

		f.directory.EXPECT().Exists(gomock.Any(), "Ana").Return(false, nil)
		f.directory.EXPECT().Heartbeat(gomock.Any(), gomock.Any()).Times(0)
		f.messageLog.EXPECT().Append(gomock.Any(), gomock.Any()).Times(0)

		_, err := f.service.PostMessage(context.Background(), cmd)
		req.ErrorIs(err, errors.ErrSenderNotRegistered)
	})

	t.Run("should reject invalid messages without refreshing the sender", func(t *testing.T) {
		invalid := []domain.PostMessageCommand{
			{From: "Ana", To: "", Text: "oi", Type: domain.MessageTypeMessage},
			{From: "Ana", To: "Bia", Text: "  ", Type: domain.MessageTypePrivate},
			{From: "Ana", To: "Bia", Text: "oi", Type: ""},
			{From: "Ana", To: domain.Broadcast, Text: "oi", Type: domain.MessageTypeStatus},
			{From: "Ana", To: domain.Broadcast, Text: "oi", Type: "shout"},
		}
		for _, c := range invalid {
			f := newServiceFixture(t)
			f.directory.EXPECT().Exists(gomock.Any(), "Ana").Return(true, nil)
			f.directory.EXPECT().Heartbeat(gomock.Any(), gomock.Any()).Times(0)
			f.messageLog.EXPECT().Append(gomock.Any(), gomock.Any()).Times(0)

			_, err := f.service.PostMessage(context.Background(), c)
			require.ErrorIs(t, err, errors.ErrValidationFailed, "%+v", c)
		}
	})

	t.Run("should report a sender swept between lookup and heartbeat", func(t *testing.T) {
		req := require.New(t)
		f := newServiceFixture(t)

		f.directory.EXPECT().Exists(gomock.Any(), "Ana").Return(true, nil)
		f.directory.EXPECT().Heartbeat(gomock.Any(), "Ana").Return(errors.ErrNotFound)
		f.messageLog.EXPECT().Append(gomock.Any(), gomock.Any()).Times(0)

		_, err := f.service.PostMessage(context.Background(), cmd)
		req.ErrorIs(err, errors.ErrSenderNotRegistered)
	})

	t.Run("should keep the refreshed heartbeat when the append fails", func(t *testing.T) {
		req := require.New(t)
		f := newServiceFixture(t)

		gomock.InOrder(
			f.directory.EXPECT().Exists(gomock.Any(), "Ana").Return(true, nil),
			f.directory.EXPECT().Heartbeat(gomock.Any(), "Ana").Return(nil),
			f.messageLog.EXPECT().Append(gomock.Any(), gomock.Any()).Return(domain.MessageID(""), errors.ErrStoreUnavailable),
		)

		_, err := f.service.PostMessage(context.Background(), cmd)

		// The failure is reported, nothing undoes the heartbeat and nothing is counted as posted
		req.ErrorIs(err, errors.ErrStoreUnavailable)
		req.Zero(f.monitoring.GetLatest().Posted)
	})

	t.Run("should surface store failures", func(t *testing.T) {
		req := require.New(t)
		f := newServiceFixture(t)

		f.directory.EXPECT().Exists(gomock.Any(), "Ana").Return(false, errors.ErrStoreUnavailable)

		_, err := f.service.PostMessage(context.Background(), cmd)
		req.ErrorIs(err, errors.ErrStoreUnavailable)
		req.NotErrorIs(err, errors.ErrSenderNotRegistered)
	})

	t.Run("should censor moderated words", func(t *testing.T) {
		req := require.New(t)
		f := newServiceFixture(t, "badger")

		f.directory.EXPECT().Exists(gomock.Any(), "Ana").Return(true, nil)
		f.directory.EXPECT().Heartbeat(gomock.Any(), "Ana").Return(nil)
		f.messageLog.EXPECT().
			Append(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, m domain.Message) (domain.MessageID, error) {
				req.Equal("the ****** bites", m.Text)
				return "7", nil
			})

		_, err := f.service.PostMessage(context.Background(), domain.PostMessageCommand{
			From: "Ana", To: domain.Broadcast, Text: "the badger bites", Type: domain.MessageTypeMessage,
		})
		req.NoError(err)
	})
}

func TestChatService_Heartbeat_And_Reads(t *testing.T) {
	req := require.New(t)
	f := newServiceFixture(t)
	ctx := context.Background()
	limit := 10

	f.directory.EXPECT().Heartbeat(gomock.Any(), "Bia").Return(errors.ErrNotFound)
	f.directory.EXPECT().ListActive(gomock.Any()).Return([]domain.Participant{domain.NewParticipant("Ana", epoch)}, nil)
	f.messageLog.EXPECT().Query(gomock.Any(), "Ana", &limit).Return([]domain.Message{domain.JoinMessage("Ana")}, nil)

	req.ErrorIs(f.service.Heartbeat(ctx, "Bia"), errors.ErrNotFound)

	participants, err := f.service.ListParticipants(ctx)
	req.NoError(err)
	req.Len(participants, 1)

	messages, err := f.service.GetMessages(ctx, domain.GetMessagesCommand{User: "Ana", Limit: &limit})
	req.NoError(err)
	req.Len(messages, 1)
}
