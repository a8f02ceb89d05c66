package runtime

import (
	"chat-presence/clock"
	"chat-presence/domain"
	"chat-presence/errors"
	"chat-presence/mocks"
	"chat-presence/repositories"
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func newMessageLog(t *testing.T) (*MessageLog, *clock.FakeClock) {
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	repository, err := repositories.NewMessageRepository(setupTestDB(t), log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = repository.Close() })
	clk := clock.Fake(epoch)
	return NewMessageLog(log, clk, repository), clk
}

func TestMessageLog_Append_Stamps_Time(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	messageLog, clk := newMessageLog(t)

	clk.Advance(90 * time.Second)
	id, err := messageLog.Append(ctx, domain.Message{
		From: "Ana", To: domain.Broadcast, Text: "oi", Type: domain.MessageTypeMessage,
	})
	req.NoError(err)
	req.NotEmpty(id)

	messages, err := messageLog.Query(ctx, "Ana", nil)
	req.NoError(err)
	req.Len(messages, 1)
	req.Equal(id, messages[0].ID)
	req.Equal("12:01:30", messages[0].Time)
}

func TestMessageLog_Append_Validation(t *testing.T) {
	ctx := context.Background()
	messageLog, _ := newMessageLog(t)

	cases := []struct {
		name    string
		message domain.Message
		valid   bool
	}{
		{"chat message", domain.Message{From: "Ana", To: "Bia", Text: "oi", Type: domain.MessageTypePrivate}, true},
		{"status without text", domain.Message{From: "Ana", To: domain.Broadcast, Type: domain.MessageTypeStatus}, true},
		{"join notice", domain.JoinMessage("Ana"), true},
		{"missing text", domain.Message{From: "Ana", To: "Bia", Type: domain.MessageTypeMessage}, false},
		{"missing recipient", domain.Message{From: "Ana", Text: "oi", Type: domain.MessageTypeMessage}, false},
		{"missing sender", domain.Message{To: "Bia", Text: "oi", Type: domain.MessageTypeMessage}, false},
		{"unknown type", domain.Message{From: "Ana", To: "Bia", Text: "oi", Type: "shout"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := messageLog.Append(ctx, tc.message)
			if tc.valid {
				require.NoError(t, err)
			} else {
				require.ErrorIs(t, err, errors.ErrValidationFailed)
			}
		})
	}

	// Rejected messages never reach the log
	messages, err := messageLog.Query(ctx, "Ana", nil)
	require.NoError(t, err)
	require.Len(t, messages, 3)
}

func TestMessageLog_Query_Limit(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	messageLog, _ := newMessageLog(t)

	for i := 0; i < 6; i++ {
		_, err := messageLog.Append(ctx, domain.Message{
			From: "Ana", To: domain.Broadcast, Text: fmt.Sprintf("m%d", i), Type: domain.MessageTypeMessage,
		})
		req.NoError(err)
	}

	limit := 4
	messages, err := messageLog.Query(ctx, "Bia", &limit)
	req.NoError(err)
	req.LessOrEqual(len(messages), limit)
	req.Equal("m2", messages[0].Text)
	req.Equal("m5", messages[3].Text)

	for _, invalid := range []int{0, -3} {
		_, err = messageLog.Query(ctx, "Bia", &invalid)
		req.ErrorIs(err, errors.ErrInvalidLimit)
		req.ErrorIs(err, errors.ErrValidationFailed)
	}
}

func TestMessageLog_Store_Failure(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	repository := mocks.NewMockIMessageRepository(ctrl)
	messageLog := NewMessageLog(logs.GetLoggerFromLevel(slog.LevelDebug), clock.Fake(epoch), repository)

	repository.EXPECT().
		InsertMessage(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, m domain.Message) (domain.MessageID, error) {
			req.Equal("12:00:00", m.Time)
			return "", errors.ErrStoreUnavailable
		})

	_, err := messageLog.Append(context.Background(), domain.LeaveMessage("Ana"))
	req.ErrorIs(err, errors.ErrStoreUnavailable)
}
