package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

// MongoStore implements [DocumentStore] with one MongoDB collection per document collection.
//
// Document ids are stored as _id.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
}

// NewMongoStore connects to uri and verifies the primary is reachable.
func NewMongoStore(ctx context.Context, uri, database string) (*MongoStore, error) {
	opts := options.Client().ApplyURI(uri).SetConnectTimeout(10 * time.Second)

	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	return &MongoStore{client: client, db: client.Database(database)}, nil
}

func byID(id string) bson.D {
	return bson.D{{Key: "_id", Value: id}}
}

// Get finds a document by _id and decodes it into dst.
func (m *MongoStore) Get(ctx context.Context, collection, id string, dst any) error {
	err := m.db.Collection(collection).FindOne(ctx, byID(id)).Decode(dst)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return fmt.Errorf("%w: %s/%s", ErrNotFound, collection, id)
	}
	if err != nil {
		return fmt.Errorf("failed to find document: %w", err)
	}
	return nil
}

// Create inserts doc with the given _id.
func (m *MongoStore) Create(ctx context.Context, collection, id string, doc any) error {
	withID, err := withDocumentID(id, doc)
	if err != nil {
		return err
	}

	if _, err := m.db.Collection(collection).InsertOne(ctx, withID); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: %s/%s", ErrAlreadyExists, collection, id)
		}
		return fmt.Errorf("failed to insert document: %w", err)
	}
	return nil
}

// Set replaces the document, inserting it when absent.
func (m *MongoStore) Set(ctx context.Context, collection, id string, doc any) error {
	opts := options.Replace().SetUpsert(true)
	if _, err := m.db.Collection(collection).ReplaceOne(ctx, byID(id), doc, opts); err != nil {
		return fmt.Errorf("failed to replace document: %w", err)
	}
	return nil
}

// Update applies fields with $set, leaving every other field untouched.
func (m *MongoStore) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	if err := validateFields(fields); err != nil {
		return err
	}

	set := bson.D{}
	for name, value := range fields {
		set = append(set, bson.E{Key: name, Value: value})
	}

	result, err := m.db.Collection(collection).UpdateOne(ctx, byID(id), bson.D{{Key: "$set", Value: set}})
	if err != nil {
		return fmt.Errorf("failed to update document: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("%w: %s/%s", ErrNotFound, collection, id)
	}
	return nil
}

func (m *MongoStore) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, readpref.Primary())
}

func (m *MongoStore) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

// withDocumentID re-encodes doc as a bson.D with _id first.
func withDocumentID(id string, doc any) (bson.D, error) {
	raw, err := bson.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}

	var fields bson.D
	if err := bson.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}

	out := bson.D{{Key: "_id", Value: id}}
	for _, f := range fields {
		if f.Key != "_id" {
			out = append(out, f)
		}
	}
	return out, nil
}
