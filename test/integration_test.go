package test

import (
	"chat-presence/clock"
	"chat-presence/domain"
	"chat-presence/errors"
	"chat-presence/moderation"
	"chat-presence/observability"
	"chat-presence/repositories"
	"chat-presence/runtime"
	"chat-presence/runtime/workers"
	"chat-presence/services"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/logs"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
)

const (
	sweepPeriod  = 15 * time.Second
	expiryWindow = 10 * time.Second
)

type system struct {
	service    *services.ChatService
	sweeper    *workers.PresenceSweeper
	messageLog *runtime.MessageLog
	clock      *clock.FakeClock
}

func newSystem(t *testing.T) system {
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	messageRepository, err := repositories.NewMessageRepository(db, log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = messageRepository.Close() })

	clk := clock.Fake(time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC))
	monitoring := observability.NewMonitoringManager(log)
	directory := runtime.NewDirectory(log, clk, repositories.NewParticipantRepository(db, log))
	messageLog := runtime.NewMessageLog(log, clk, messageRepository)
	moderator, err := moderation.NewModerator(nil, '*', log)
	require.NoError(t, err)

	return system{
		service:    services.NewChatService(log, directory, messageLog, moderator, monitoring),
		sweeper:    workers.NewPresenceSweeper(log, clk, directory, messageLog, monitoring, sweepPeriod, expiryWindow),
		messageLog: messageLog,
		clock:      clk,
	}
}

func statusNotices(t *testing.T, s system, text string) []string {
	messages, err := s.messageLog.Query(context.Background(), "", nil)
	require.NoError(t, err)
	return lo.FilterMap(messages, func(m domain.Message, _ int) (string, bool) {
		return m.From, m.IsStatus() && m.Text == text
	})
}

func Test_Ana_Scenario(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	s := newSystem(t)

	// register("Ana") → Created, again → NameTaken
	_, err := s.service.RegisterParticipant(ctx, "Ana")
	req.NoError(err)
	_, err = s.service.RegisterParticipant(ctx, "Ana")
	req.ErrorIs(err, errors.ErrAlreadyExists)

	// Ana posts a broadcast
	_, err = s.service.PostMessage(ctx, domain.PostMessageCommand{
		From: "Ana", To: domain.Broadcast, Text: "oi", Type: domain.MessageTypeMessage,
	})
	req.NoError(err)
	messages, err := s.service.GetMessages(ctx, domain.GetMessagesCommand{User: "Bia"})
	req.NoError(err)
	req.Len(lo.Filter(messages, func(m domain.Message, _ int) bool { return m.From == "Ana" && !m.IsStatus() }), 1)

	// A sweep before the window elapses keeps Ana
	s.clock.Advance(expiryWindow - time.Second)
	removed, err := s.sweeper.Sweep(ctx)
	req.NoError(err)
	req.Empty(removed)

	// The next sweep after the window removes and announces her
	s.clock.Advance(time.Second)
	removed, err = s.sweeper.Sweep(ctx)
	req.NoError(err)
	req.Equal([]string{"Ana"}, removed)

	messages, err = s.service.GetMessages(ctx, domain.GetMessagesCommand{User: "Bia"})
	req.NoError(err)
	last := messages[len(messages)-1]
	req.Equal(domain.LeaveMessage("Ana").Text, last.Text)
	req.Equal("Ana", last.From)
	req.Equal(domain.Broadcast, last.To)
	req.Equal(domain.MessageTypeStatus, last.Type)

	// Ana can no longer post
	_, err = s.service.PostMessage(ctx, domain.PostMessageCommand{
		From: "Ana", To: domain.Broadcast, Text: "oi?", Type: domain.MessageTypeMessage,
	})
	req.ErrorIs(err, errors.ErrSenderNotRegistered)

	// And a second sweep announces nothing more
	removed, err = s.sweeper.Sweep(ctx)
	req.NoError(err)
	req.Empty(removed)
	req.Equal([]string{"Ana"}, statusNotices(t, s, domain.LeaveNotice))
}

func Test_Concurrent_Registration_Is_Unique(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	s := newSystem(t)

	const attempts = 32
	var wg sync.WaitGroup
	results := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.service.RegisterParticipant(ctx, "Ana")
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	created := 0
	for err := range results {
		if err == nil {
			created++
			continue
		}
		req.ErrorIs(err, errors.ErrAlreadyExists)
	}
	req.Equal(1, created)
	req.Equal([]string{"Ana"}, statusNotices(t, s, domain.JoinNotice))
}

func Test_Heartbeat_Extends_Life(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	s := newSystem(t)
	_, err := s.service.RegisterParticipant(ctx, "Ana")
	req.NoError(err)

	// Heartbeats every 8 seconds keep Ana alive across many sweeps
	for i := 0; i < 5; i++ {
		s.clock.Advance(8 * time.Second)
		req.NoError(s.service.Heartbeat(ctx, "Ana"))
		removed, err := s.sweeper.Sweep(ctx)
		req.NoError(err)
		req.Empty(removed)
	}

	participants, err := s.service.ListParticipants(ctx)
	req.NoError(err)
	req.Len(participants, 1)
}

func Test_Join_Leave_Pairing(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	s := newSystem(t)

	names := lo.Times(10, func(i int) string { return fmt.Sprintf("user-%02d", i) })
	for _, name := range names {
		_, err := s.service.RegisterParticipant(ctx, name)
		req.NoError(err)
	}

	// Sweeps racing heartbeats of half the participants
	var wg sync.WaitGroup
	s.clock.Advance(expiryWindow)
	for _, name := range names[:5] {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			_ = s.service.Heartbeat(ctx, name)
		}(name)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = s.sweeper.Sweep(ctx)
	}()
	wg.Wait()

	// Then everyone still silent goes at the next sweep
	s.clock.Advance(expiryWindow)
	_, err := s.sweeper.Sweep(ctx)
	req.NoError(err)

	participants, err := s.service.ListParticipants(ctx)
	req.NoError(err)
	req.Empty(participants)

	joins := statusNotices(t, s, domain.JoinNotice)
	leaves := statusNotices(t, s, domain.LeaveNotice)
	req.ElementsMatch(names, joins)
	req.ElementsMatch(names, leaves)
}
