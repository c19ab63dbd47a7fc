package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"carbon-scribe/credit-registry-backend/internal/ids"
)

// mongoDoc wraps an entity so the store owns _id and version while the
// entity body keeps its own field layout.
type mongoDoc struct {
	ID        string    `bson:"_id"`
	Version   int64     `bson:"version"`
	CreatedAt time.Time `bson:"created_at"`
	Body      bson.Raw  `bson:"body"`
}

// ConnectMongo dials the cluster and verifies the connection.
func ConnectMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}
	return client, nil
}

// MongoCollection stores one entity kind in a collection of the same name.
type MongoCollection[T any, P Record[T]] struct {
	coll *mongo.Collection
	kind Kind
}

func NewMongo[T any, P Record[T]](db *mongo.Database, kind Kind) *MongoCollection[T, P] {
	return &MongoCollection[T, P]{coll: db.Collection(kind.Name), kind: kind}
}

func (c *MongoCollection[T, P]) Kind() Kind { return c.kind }

func (c *MongoCollection[T, P]) Insert(ctx context.Context, rec *T) (string, error) {
	p := P(rec)
	meta := prepareInsert[T, P](c.kind, p, ids.New)

	doc, err := c.encode(p)
	if err != nil {
		return "", err
	}
	if _, err := c.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return "", fmt.Errorf("%s %s: %w", c.kind.Name, meta.ID, ErrDuplicate)
		}
		return "", fmt.Errorf("failed to insert %s: %w", c.kind.Name, err)
	}
	return meta.ID, nil
}

func (c *MongoCollection[T, P]) Get(ctx context.Context, id string) (*T, error) {
	var doc mongoDoc
	err := c.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", c.kind.Name, err)
	}
	return c.decode(&doc)
}

func (c *MongoCollection[T, P]) List(ctx context.Context, match func(*T) bool) ([]*T, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := c.coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", c.kind.Name, err)
	}
	defer cursor.Close(ctx)

	var out []*T
	for cursor.Next(ctx) {
		var doc mongoDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", c.kind.Name, err)
		}
		rec, err := c.decode(&doc)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate %s: %w", c.kind.Name, err)
	}
	return matchAll(match, out), nil
}

func (c *MongoCollection[T, P]) Update(ctx context.Context, id string, mutate func(*T) error) (*T, error) {
	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		rec, err := c.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		prev, err := applyMutation[T, P](P(rec), mutate)
		if err != nil {
			return nil, err
		}
		doc, err := c.encode(P(rec))
		if err != nil {
			return nil, err
		}
		res, err := c.coll.ReplaceOne(ctx, bson.M{"_id": id, "version": prev}, doc)
		if err != nil {
			return nil, fmt.Errorf("failed to update %s: %w", c.kind.Name, err)
		}
		if res.MatchedCount == 1 {
			return rec, nil
		}
	}
	return nil, ErrConflict
}

func (c *MongoCollection[T, P]) Delete(ctx context.Context, id string) error {
	res, err := c.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", c.kind.Name, err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (c *MongoCollection[T, P]) encode(rec P) (*mongoDoc, error) {
	body, err := bson.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s: %w", c.kind.Name, err)
	}
	meta := rec.RecordMeta()
	return &mongoDoc{
		ID:        meta.ID,
		Version:   meta.Version,
		CreatedAt: meta.CreatedAt,
		Body:      body,
	}, nil
}

func (c *MongoCollection[T, P]) decode(doc *mongoDoc) (*T, error) {
	rec := new(T)
	if err := bson.Unmarshal(doc.Body, rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s %s: %w", c.kind.Name, doc.ID, err)
	}
	P(rec).RecordMeta().Version = doc.Version
	return rec, nil
}
