package storage

import (
	"chat-presence/domain"
	"chat-presence/errors"
	"context"
	stderrors "errors"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

type participantDocument struct {
	Name       string `bson:"name"`
	LastStatus int64  `bson:"lastStatus"` // unix nanoseconds
}

type MongoParticipantRepository struct {
	collection *mongo.Collection
	log        *slog.Logger
}

func NewMongoParticipantRepository(database *mongo.Database, log *slog.Logger) *MongoParticipantRepository {
	return &MongoParticipantRepository{collection: database.Collection(participantsCollection), log: log}
}

func (r *MongoParticipantRepository) FindParticipant(ctx context.Context, name string) (domain.Participant, error) {
	var doc participantDocument
	err := r.collection.FindOne(ctx, bson.M{"name": name}).Decode(&doc)
	if stderrors.Is(err, mongo.ErrNoDocuments) {
		return domain.Participant{}, errors.ErrNotFound
	}
	if err != nil {
		return domain.Participant{}, storeError(err)
	}
	return doc.participant(), nil
}

// InsertParticipant relies on the unique name index: the losing insert of a
// concurrent pair gets a duplicate key error.
func (r *MongoParticipantRepository) InsertParticipant(ctx context.Context, participant domain.Participant) error {
	_, err := r.collection.InsertOne(ctx, participantDocument{
		Name:       participant.Name,
		LastStatus: participant.LastHeartbeat.UnixNano(),
	})
	if mongo.IsDuplicateKeyError(err) {
		return errors.ErrAlreadyExists
	}
	if err != nil {
		return storeError(err)
	}
	return nil
}

func (r *MongoParticipantRepository) TouchParticipant(ctx context.Context, name string, at time.Time) (int, error) {
	result, err := r.collection.UpdateOne(ctx,
		bson.M{"name": name},
		bson.M{"$set": bson.M{"lastStatus": at.UnixNano()}},
	)
	if err != nil {
		return 0, storeError(err)
	}
	return int(result.MatchedCount), nil
}

// DeleteParticipantsBefore deletes candidates one by one, repeating the
// cutoff condition in each delete. A heartbeat landing between the find and
// the delete keeps the participant, and only names actually deleted are
// reported.
func (r *MongoParticipantRepository) DeleteParticipantsBefore(ctx context.Context, cutoff time.Time) ([]string, error) {
	stale := bson.M{"$lt": cutoff.UnixNano()}
	cursor, err := r.collection.Find(ctx, bson.M{"lastStatus": stale})
	if err != nil {
		return nil, storeError(err)
	}
	var candidates []participantDocument
	if err = cursor.All(ctx, &candidates); err != nil {
		return nil, storeError(err)
	}

	var removed []string
	for _, candidate := range candidates {
		result, err := r.collection.DeleteOne(ctx, bson.M{"name": candidate.Name, "lastStatus": stale})
		if err != nil {
			return removed, storeError(err)
		}
		if result.DeletedCount == 1 {
			removed = append(removed, candidate.Name)
		}
	}
	if len(removed) > 0 {
		r.log.Debug("Participants deleted", "count", len(removed), "cutoff", cutoff)
	}
	return removed, nil
}

func (r *MongoParticipantRepository) ListParticipants(ctx context.Context) ([]domain.Participant, error) {
	cursor, err := r.collection.Find(ctx, bson.M{})
	if err != nil {
		return nil, storeError(err)
	}
	var docs []participantDocument
	if err = cursor.All(ctx, &docs); err != nil {
		return nil, storeError(err)
	}
	participants := make([]domain.Participant, 0, len(docs))
	for _, doc := range docs {
		participants = append(participants, doc.participant())
	}
	return participants, nil
}

func (d participantDocument) participant() domain.Participant {
	return domain.Participant{Name: d.Name, LastHeartbeat: time.Unix(0, d.LastStatus).UTC()}
}
