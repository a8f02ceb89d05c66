package storage

import (
	"chat-presence/domain"
	"context"
	"log/slog"
	"slices"
	"sync"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

type messageDocument struct {
	ID   bson.ObjectID `bson:"_id,omitempty"`
	From string        `bson:"from"`
	To   string        `bson:"to"`
	Text string        `bson:"text"`
	Type string        `bson:"type"`
	Time string        `bson:"time"`
}

// MongoMessageRepository orders the log by ObjectID, which the driver
// generates with a per-process increasing counter. Ids are generated and
// inserted under appendMu, so they reach the collection in increasing order.
type MongoMessageRepository struct {
	collection *mongo.Collection
	log        *slog.Logger
	appendMu   sync.Mutex
}

func NewMongoMessageRepository(database *mongo.Database, log *slog.Logger) *MongoMessageRepository {
	return &MongoMessageRepository{collection: database.Collection(messagesCollection), log: log}
}

func (r *MongoMessageRepository) InsertMessage(ctx context.Context, message domain.Message) (domain.MessageID, error) {
	r.appendMu.Lock()
	defer r.appendMu.Unlock()

	doc := messageDocument{
		ID:   bson.NewObjectID(),
		From: message.From,
		To:   message.To,
		Text: message.Text,
		Type: string(message.Type),
		Time: message.Time,
	}
	if _, err := r.collection.InsertOne(ctx, doc); err != nil {
		return "", storeError(err)
	}
	return domain.MessageID(doc.ID.Hex()), nil
}

func (r *MongoMessageRepository) FindMessages(ctx context.Context, participant string, limit *int) ([]domain.Message, error) {
	filter := bson.M{"$or": bson.A{
		bson.M{"to": domain.Broadcast},
		bson.M{"to": participant},
		bson.M{"from": participant},
	}}
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	if limit != nil {
		if *limit <= 0 {
			return nil, nil
		}
		opts = options.Find().SetSort(bson.D{{Key: "_id", Value: -1}}).SetLimit(int64(*limit))
	}

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, storeError(err)
	}
	var docs []messageDocument
	if err = cursor.All(ctx, &docs); err != nil {
		return nil, storeError(err)
	}

	messages := make([]domain.Message, 0, len(docs))
	for _, doc := range docs {
		messages = append(messages, domain.Message{
			ID:   domain.MessageID(doc.ID.Hex()),
			From: doc.From,
			To:   doc.To,
			Text: doc.Text,
			Type: domain.MessageType(doc.Type),
			Time: doc.Time,
		})
	}
	if limit != nil {
		slices.Reverse(messages)
	}
	return messages, nil
}
