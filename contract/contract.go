//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"chat-presence/domain"
	"context"
	"reflect"
	"time"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// Worker runs until ctx is cancelled. Returning nil means it finished for good,
// an error or a panic makes the supervisor restart it.
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker
// for logging during supervision.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// IParticipantRepository is the participants collection of the store.
// Implementations return errors.ErrAlreadyExists and errors.ErrNotFound as is
// and wrap every engine failure in errors.ErrStoreUnavailable.
type IParticipantRepository interface {
	FindParticipant(ctx context.Context, name string) (domain.Participant, error)
	// InsertParticipant checks and inserts in one atomic step.
	InsertParticipant(ctx context.Context, participant domain.Participant) error
	// TouchParticipant returns the number of updated records (0 or 1).
	TouchParticipant(ctx context.Context, name string, at time.Time) (int, error)
	// DeleteParticipantsBefore removes every participant with a heartbeat
	// strictly before cutoff and returns their names. Names are returned
	// only for records this call actually removed, even alongside an error.
	DeleteParticipantsBefore(ctx context.Context, cutoff time.Time) ([]string, error)
	ListParticipants(ctx context.Context) ([]domain.Participant, error)
}

// IMessageRepository is the append-only messages collection of the store.
type IMessageRepository interface {
	InsertMessage(ctx context.Context, message domain.Message) (domain.MessageID, error)
	// FindMessages returns the messages visible to participant, oldest first.
	// With a limit, only the most recent limit messages are kept.
	FindMessages(ctx context.Context, participant string, limit *int) ([]domain.Message, error)
}

type IDirectory interface {
	Register(ctx context.Context, name string) (domain.Participant, error)
	Heartbeat(ctx context.Context, name string) error
	Exists(ctx context.Context, name string) (bool, error)
	ListActive(ctx context.Context) ([]domain.Participant, error)
	ExpireOlderThan(ctx context.Context, cutoff time.Time) ([]string, error)
}

type IMessageLog interface {
	Append(ctx context.Context, message domain.Message) (domain.MessageID, error)
	Query(ctx context.Context, participant string, limit *int) ([]domain.Message, error)
}
