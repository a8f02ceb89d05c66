package repositories

import (
	"chat-presence/domain"
	"chat-presence/errors"
	"context"
	stderrors "errors"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
)

const participantPrefix = "participant:"

type ParticipantRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewParticipantRepository(db *badger.DB, log *slog.Logger) *ParticipantRepository {
	return &ParticipantRepository{db: db, log: log}
}

type diskParticipant struct {
	Name          string `cbor:"name"`
	LastHeartbeat int64  `cbor:"last_heartbeat"` // unix nanoseconds
}

func participantKey(name string) []byte {
	return []byte(participantPrefix + name)
}

func (r *ParticipantRepository) FindParticipant(_ context.Context, name string) (domain.Participant, error) {
	var participant domain.Participant
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(participantKey(name))
		if stderrors.Is(err, badger.ErrKeyNotFound) {
			return errors.ErrNotFound
		}
		if err != nil {
			return err
		}
		participant, err = readParticipant(item)
		return err
	})
	return participant, storeError(err)
}

// InsertParticipant stores the participant unless the name is already taken.
// The lookup and the write share one transaction, so two concurrent inserts
// of the same name conflict and the replayed one sees the winner.
func (r *ParticipantRepository) InsertParticipant(_ context.Context, participant domain.Participant) error {
	key := participantKey(participant.Name)
	data, err := marshal(toDiskParticipant(participant))
	if err != nil {
		return storeError(err)
	}
	err = update(r.db, func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		switch {
		case err == nil:
			return errors.ErrAlreadyExists
		case !stderrors.Is(err, badger.ErrKeyNotFound):
			return err
		}
		return txn.Set(key, data)
	})
	return storeError(err)
}

// TouchParticipant refreshes the heartbeat of an existing participant only.
// A record deleted by a sweep is never recreated.
func (r *ParticipantRepository) TouchParticipant(_ context.Context, name string, at time.Time) (int, error) {
	var touched int
	err := update(r.db, func(txn *badger.Txn) error {
		touched = 0
		key := participantKey(name)
		item, err := txn.Get(key)
		if stderrors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		participant, err := readParticipant(item)
		if err != nil {
			return err
		}
		participant.LastHeartbeat = at
		data, err := marshal(toDiskParticipant(participant))
		if err != nil {
			return err
		}
		if err = txn.Set(key, data); err != nil {
			return err
		}
		touched = 1
		return nil
	})
	return touched, storeError(err)
}

// DeleteParticipantsBefore scans and deletes in a single transaction. A
// heartbeat committed during the scan makes the transaction conflict and
// the scan is replayed against the refreshed record.
func (r *ParticipantRepository) DeleteParticipantsBefore(_ context.Context, cutoff time.Time) ([]string, error) {
	var removed []string
	err := update(r.db, func(txn *badger.Txn) error {
		removed = nil
		var keys [][]byte
		err := iterateParticipants(txn, func(key []byte, participant domain.Participant) error {
			if participant.LastHeartbeat.Before(cutoff) {
				keys = append(keys, key)
				removed = append(removed, participant.Name)
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, key := range keys {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, storeError(err)
	}
	if len(removed) > 0 {
		r.log.Debug("Participants deleted", "count", len(removed), "cutoff", cutoff)
	}
	return removed, nil
}

func (r *ParticipantRepository) ListParticipants(_ context.Context) ([]domain.Participant, error) {
	participants, err := DumpParticipants(r.db)
	if err != nil {
		return nil, err
	}
	return participants, nil
}

// iterateParticipants walks the participant keys in name order. The key
// handed to fn is a copy and stays valid after the iteration.
func iterateParticipants(txn *badger.Txn, fn func(key []byte, participant domain.Participant) error) error {
	prefix := []byte(participantPrefix)
	options := badger.DefaultIteratorOptions
	options.Prefix = prefix
	it := txn.NewIterator(options)
	defer it.Close()

	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		item := it.Item()
		participant, err := readParticipant(item)
		if err != nil {
			return err
		}
		if err = fn(item.KeyCopy(nil), participant); err != nil {
			return err
		}
	}
	return nil
}

func readParticipant(item *badger.Item) (domain.Participant, error) {
	var dp diskParticipant
	err := item.Value(func(val []byte) error {
		return unmarshal(val, &dp)
	})
	return fromDiskParticipant(dp), err
}

func toDiskParticipant(p domain.Participant) diskParticipant {
	return diskParticipant{Name: p.Name, LastHeartbeat: p.LastHeartbeat.UnixNano()}
}

func fromDiskParticipant(dp diskParticipant) domain.Participant {
	return domain.Participant{Name: dp.Name, LastHeartbeat: time.Unix(0, dp.LastHeartbeat).UTC()}
}

// DumpParticipants lists every participant of db, which may be opened read-only.
func DumpParticipants(db *badger.DB) ([]domain.Participant, error) {
	var participants []domain.Participant
	err := db.View(func(txn *badger.Txn) error {
		return iterateParticipants(txn, func(_ []byte, participant domain.Participant) error {
			participants = append(participants, participant)
			return nil
		})
	})
	return participants, storeError(err)
}
