package runtime

import (
	"chat-presence/clock"
	"chat-presence/contract"
	"chat-presence/domain"
	"chat-presence/errors"
	"context"
	stderrors "errors"
	"log/slog"
	"time"
)

// Directory owns the set of active participants. Every mutation is a single
// atomic step of the underlying repository, so Directory itself holds no lock.
type Directory struct {
	log        *slog.Logger
	clock      clock.Clock
	repository contract.IParticipantRepository
}

func NewDirectory(log *slog.Logger, clk clock.Clock, repository contract.IParticipantRepository) *Directory {
	return &Directory{log: log, clock: clk, repository: repository}
}

// Register normalizes and validates the name, then inserts it with the
// current time as first heartbeat.
func (d *Directory) Register(ctx context.Context, name string) (domain.Participant, error) {
	name = domain.NormalizeName(name)
	if err := domain.ValidateName(name); err != nil {
		return domain.Participant{}, err
	}
	participant := domain.NewParticipant(name, d.clock.Now())
	if err := d.repository.InsertParticipant(ctx, participant); err != nil {
		return domain.Participant{}, err
	}
	d.log.Debug("Participant registered", "name", name)
	return participant, nil
}

// Heartbeat refreshes an existing participant. It never recreates one
// removed by a sweep.
func (d *Directory) Heartbeat(ctx context.Context, name string) error {
	touched, err := d.repository.TouchParticipant(ctx, domain.NormalizeName(name), d.clock.Now())
	if err != nil {
		return err
	}
	if touched == 0 {
		return errors.ErrNotFound
	}
	return nil
}

func (d *Directory) Exists(ctx context.Context, name string) (bool, error) {
	_, err := d.repository.FindParticipant(ctx, domain.NormalizeName(name))
	switch {
	case err == nil:
		return true, nil
	case stderrors.Is(err, errors.ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

func (d *Directory) ListActive(ctx context.Context) ([]domain.Participant, error) {
	return d.repository.ListParticipants(ctx)
}

// ExpireOlderThan removes every participant whose last heartbeat is strictly
// before cutoff and returns the removed names. On a store error the names
// already removed are returned along with it.
func (d *Directory) ExpireOlderThan(ctx context.Context, cutoff time.Time) ([]string, error) {
	return d.repository.DeleteParticipantsBefore(ctx, cutoff)
}
