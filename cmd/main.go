package main

import (
	"chat-presence/clock"
	"chat-presence/contract"
	"chat-presence/infrastructure/api"
	"chat-presence/infrastructure/storage"
	"chat-presence/internal"
	"chat-presence/moderation"
	"chat-presence/observability"
	"chat-presence/repositories"
	"chat-presence/runtime"
	"chat-presence/runtime/workers"
	"chat-presence/services"
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/logs"
)

const (
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	if code, err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(code)
	}
}

// run wires the store, the core and the HTTP server, then blocks until a
// signal or a server failure. Every defer runs before main exits.
func run() (int, error) {
	// 1. Configuration & Logger
	config, err := internal.Load()
	if err != nil {
		return exitConfig, err
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Storage
	participants, messages, closeStore, err := openStore(ctx, config, log)
	if err != nil {
		return exitRuntime, err
	}
	defer closeStore()

	// 3. Core
	clk := clock.Real()
	monitoring := observability.NewMonitoringManager(log)
	directory := runtime.NewDirectory(log, clk, participants)
	messageLog := runtime.NewMessageLog(log, clk, messages)

	censoredChar, err := internal.CharacterRune(config.CharReplacement)
	if err != nil {
		return exitConfig, err
	}
	moderator, err := moderation.NewModerator(config.CensoredWordList(), censoredChar, log)
	if err != nil {
		return exitConfig, fmt.Errorf("moderation setup failed: %w", err)
	}
	service := services.NewChatService(log, directory, messageLog, moderator, monitoring)

	// 4. Supervision
	sweeper := workers.NewPresenceSweeper(log, clk, directory, messageLog, monitoring, config.SweepPeriod, config.ExpiryWindow)
	limiter := api.NewIPRateLimiter(log, clk, config.RateLimitRequests, config.RateLimitWindow,
		api.CleanupOpts{TTL: 3 * time.Minute, Interval: time.Minute})
	sup := workers.NewSupervisor(log, config.RestartInterval)
	supervised := make(chan struct{})
	go func() {
		sup.Add(sweeper, limiter).Run(ctx)
		close(supervised)
	}()

	// 5. HTTP server
	server := &http.Server{
		Addr:              config.Address(),
		Handler:           api.NewRouter(log, api.NewHandler(log, service, monitoring), limiter),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errChan := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", "address", server.Addr, "backend", config.StoreBackend)
		if err := server.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// 6. Wait for Stop or Error
	var serveErr error
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case serveErr = <-errChan:
	}

	// 7. Final Cleanup
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("HTTP server shutdown incomplete", "err", err)
	}
	sup.Stop()
	<-supervised

	if serveErr != nil {
		return exitRuntime, serveErr
	}
	log.Info("Program stopped cleanly")
	return 0, nil
}

// openStore builds the repositories of the configured backend. The returned
// func releases everything the store holds.
func openStore(ctx context.Context, config internal.Config, log *slog.Logger) (
	contract.IParticipantRepository, contract.IMessageRepository, func(), error,
) {
	switch config.StoreBackend {
	case internal.BackendMongo:
		client, err := storage.Connect(ctx, config.MongoURI, log)
		if err != nil {
			return nil, nil, nil, err
		}
		database := client.Database(config.MongoDatabase)
		if err = storage.EnsureIndexes(ctx, database); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, nil, nil, err
		}
		closeStore := func() {
			log.Info("Disconnecting from MongoDB...")
			_ = client.Disconnect(context.Background())
		}
		return storage.NewMongoParticipantRepository(database, log), storage.NewMongoMessageRepository(database, log), closeStore, nil

	default:
		options := badger.DefaultOptions(config.BadgerFilepath).WithLoggingLevel(badger.WARNING)
		if config.BadgerInMemory {
			options = badger.DefaultOptions("").WithInMemory(true).WithLoggingLevel(badger.WARNING)
		}
		db, err := badger.Open(options)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("database opening failed: %w", err)
		}
		messageRepository, err := repositories.NewMessageRepository(db, log)
		if err != nil {
			_ = db.Close()
			return nil, nil, nil, err
		}
		closeStore := func() {
			log.Info("Closing BadgerDB...")
			_ = messageRepository.Close()
			_ = db.Close()
		}
		return repositories.NewParticipantRepository(db, log), messageRepository, closeStore, nil
	}
}
