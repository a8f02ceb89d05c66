package repositories

import (
	"chat-presence/domain"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

const (
	messagePrefix      = "msg:"
	messageSequenceKey = "seq:msg"
	sequenceBandwidth  = 128
)

type MessageRepository struct {
	db       *badger.DB
	log      *slog.Logger
	sequence *badger.Sequence
	// appendMu covers sequence assignment and commit, so a reader never sees
	// a position filled after a later one.
	appendMu sync.Mutex
}

// NewMessageRepository leases a badger sequence that orders the log. Close
// releases the unused part of the lease.
func NewMessageRepository(db *badger.DB, log *slog.Logger) (*MessageRepository, error) {
	sequence, err := db.GetSequence([]byte(messageSequenceKey), sequenceBandwidth)
	if err != nil {
		return nil, fmt.Errorf("message sequence lease failed: %w", err)
	}
	return &MessageRepository{db: db, log: log, sequence: sequence}, nil
}

func (m *MessageRepository) Close() error {
	return m.sequence.Release()
}

type diskMessage struct {
	ID   string `cbor:"id"`
	From string `cbor:"from"`
	To   string `cbor:"to"`
	Text string `cbor:"text"`
	Type string `cbor:"type"`
	Time string `cbor:"time"`
}

// InsertMessage appends a message under "msg:{sequence}:{uuid}". The 20-digit
// zero padded sequence keeps the lexicographic key order equal to the append
// order, whatever the clock says. Appends are serialized: each one is
// committed before the next position is handed out.
func (m *MessageRepository) InsertMessage(_ context.Context, message domain.Message) (domain.MessageID, error) {
	m.appendMu.Lock()
	defer m.appendMu.Unlock()

	position, err := m.sequence.Next()
	if err != nil {
		return "", storeError(err)
	}
	id := uuid.New()
	message.ID = domain.MessageID(id.String())
	key := fmt.Sprintf("%s%020d:%s", messagePrefix, position, id)

	data, err := marshal(toDiskMessage(message))
	if err != nil {
		return "", storeError(err)
	}
	err = m.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
	if err != nil {
		return "", storeError(err)
	}
	return message.ID, nil
}

// FindMessages filters the log for participant. Without a limit the whole log
// is scanned forward. With a limit the scan runs backwards from the newest
// message and stops once enough matches are collected, then the result is
// flipped back to oldest first.
func (m *MessageRepository) FindMessages(_ context.Context, participant string, limit *int) ([]domain.Message, error) {
	var messages []domain.Message
	reverse := limit != nil
	if reverse && *limit <= 0 {
		return nil, nil
	}
	err := m.db.View(func(txn *badger.Txn) error {
		return scanMessages(txn, reverse, func(message domain.Message) bool {
			if message.VisibleTo(participant) {
				messages = append(messages, message)
			}
			return !reverse || len(messages) < *limit
		})
	})
	if err != nil {
		return nil, storeError(err)
	}
	if reverse {
		slices.Reverse(messages)
	}
	return messages, nil
}

// DumpMessages returns the whole log without leasing a sequence, so it works
// on a database opened read-only.
func DumpMessages(db *badger.DB) ([]domain.Message, error) {
	var messages []domain.Message
	err := db.View(func(txn *badger.Txn) error {
		return scanMessages(txn, false, func(message domain.Message) bool {
			messages = append(messages, message)
			return true
		})
	})
	return messages, storeError(err)
}

// scanMessages walks the log in key order, or newest first when reverse is
// set, until fn returns false.
func scanMessages(txn *badger.Txn, reverse bool, fn func(domain.Message) bool) error {
	prefix := []byte(messagePrefix)
	options := badger.DefaultIteratorOptions
	options.Prefix = prefix
	options.Reverse = reverse
	it := txn.NewIterator(options)
	defer it.Close()

	seekKey := prefix
	if reverse {
		// 0xFF sorts after every digit, so the seek lands on the newest key.
		seekKey = append([]byte(messagePrefix), 0xFF)
	}

	for it.Seek(seekKey); it.ValidForPrefix(prefix); it.Next() {
		var dm diskMessage
		err := it.Item().Value(func(val []byte) error {
			return unmarshal(val, &dm)
		})
		if err != nil {
			return err
		}
		if !fn(fromDiskMessage(dm)) {
			return nil
		}
	}
	return nil
}

func toDiskMessage(message domain.Message) diskMessage {
	return diskMessage{
		ID:   string(message.ID),
		From: message.From,
		To:   message.To,
		Text: message.Text,
		Type: string(message.Type),
		Time: message.Time,
	}
}

func fromDiskMessage(dm diskMessage) domain.Message {
	return domain.Message{
		ID:   domain.MessageID(dm.ID),
		From: dm.From,
		To:   dm.To,
		Text: dm.Text,
		Type: domain.MessageType(dm.Type),
		Time: dm.Time,
	}
}
