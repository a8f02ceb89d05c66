package workers

import (
	"chat-presence/clock"
	"chat-presence/contract"
	"chat-presence/domain"
	"chat-presence/observability"
	"context"
	"log/slog"
	"time"
)

// PresenceSweeper evicts participants silent for at least expiryWindow and
// announces each eviction with a leave notice.
type PresenceSweeper struct {
	log          *slog.Logger
	clock        clock.Clock
	directory    contract.IDirectory
	messageLog   contract.IMessageLog
	monitoring   *observability.MonitoringManager
	period       time.Duration
	expiryWindow time.Duration
}

func NewPresenceSweeper(
	log *slog.Logger,
	clk clock.Clock,
	directory contract.IDirectory,
	messageLog contract.IMessageLog,
	monitoring *observability.MonitoringManager,
	period time.Duration,
	expiryWindow time.Duration,
) *PresenceSweeper {
	return &PresenceSweeper{
		log:          log,
		clock:        clk,
		directory:    directory,
		messageLog:   messageLog,
		monitoring:   monitoring,
		period:       period,
		expiryWindow: expiryWindow,
	}
}

// Run sweeps on every tick until ctx is cancelled. A failed sweep is only
// logged, the next tick tries again.
func (w *PresenceSweeper) Run(ctx context.Context) error {
	w.log.Info("Starting presence sweeper", "period", w.period, "expiry_window", w.expiryWindow)
	ticker := w.clock.NewTicker(w.period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping presence sweeper")
			return nil
		case <-ticker.C:
			if _, err := w.Sweep(ctx); err != nil {
				w.log.Warn("Presence sweep failed", "err", err)
			}
		}
	}
}

// Sweep runs a single pass. Expiry is inclusive: a participant silent for
// exactly expiryWindow is removed, hence the cutoff one nanosecond past
// now-expiryWindow against the strict comparison of ExpireOlderThan.
// Names removed before a store error are still announced.
func (w *PresenceSweeper) Sweep(ctx context.Context) ([]string, error) {
	now := w.clock.Now()
	cutoff := now.Add(-w.expiryWindow).Add(time.Nanosecond)

	removed, err := w.directory.ExpireOlderThan(ctx, cutoff)
	w.monitoring.RecordSweep(now, err)
	w.monitoring.IncrExpired(len(removed))

	for _, name := range removed {
		if _, announceErr := w.messageLog.Append(ctx, domain.LeaveMessage(name)); announceErr != nil {
			w.monitoring.IncrFailedAnnouncements()
			w.log.Error("Failed to announce departure", "name", name, "err", announceErr)
			continue
		}
		w.log.Info("Participant expired", "name", name)
	}
	return removed, err
}
