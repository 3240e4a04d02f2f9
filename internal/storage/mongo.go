package storage

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const catalogDocID = "catalog"

// MongoBackend keeps the whole catalog as one document, the same JSON the file backend
// writes, so both backends stay interchangeable.
type MongoBackend struct {
	client *mongo.Client
	col    *mongo.Collection
}

type catalogDoc struct {
	ID        string    `bson:"_id"`
	Payload   string    `bson:"payload"`
	UpdatedAt time.Time `bson:"updated_at"`
}

func NewMongo(ctx context.Context, uri string) (*MongoBackend, error) {
	if uri == "" {
		return nil, errors.New("MONGODB_URI is empty")
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	col := client.Database("catalogbot").Collection("catalog")
	return &MongoBackend{client: client, col: col}, nil
}

func (m *MongoBackend) Read(ctx context.Context) ([]byte, error) {
	var doc catalogDoc
	err := m.col.FindOne(ctx, bson.M{"_id": catalogDocID}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return []byte(doc.Payload), nil
}

func (m *MongoBackend) Write(ctx context.Context, data []byte) error {
	_, err := m.col.ReplaceOne(ctx,
		bson.M{"_id": catalogDocID},
		catalogDoc{ID: catalogDocID, Payload: string(data), UpdatedAt: time.Now()},
		options.Replace().SetUpsert(true),
	)
	return err
}

func (m *MongoBackend) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}
