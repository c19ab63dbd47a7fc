// Package store provides the keyed record collections every registry service
// reads and writes. A Collection is backed by memory, PostgreSQL, MongoDB or
// DynamoDB; services only ever see the Collection interface.
package store

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("record already exists")
	ErrConflict  = errors.New("record was modified concurrently")
)

// maxUpdateAttempts bounds the compare-and-swap retry loop of the remote backends.
const maxUpdateAttempts = 3

// Meta is embedded by every stored entity.
type Meta struct {
	ID        string    `json:"id" bson:"id" dynamodbav:"id"`
	Version   int64     `json:"version" bson:"version" dynamodbav:"version"`
	CreatedAt time.Time `json:"created_at" bson:"created_at" dynamodbav:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at" dynamodbav:"updated_at"`
}

// RecordMeta exposes the embedded metadata to the store.
func (m *Meta) RecordMeta() *Meta { return m }

// Record is satisfied by a pointer to any struct embedding Meta.
type Record[T any] interface {
	*T
	RecordMeta() *Meta
}

// Kind names a collection and the id prefix used for its records.
type Kind struct {
	Name   string
	Prefix string
}

// Collection is a keyed set of records of one entity type.
type Collection[T any] interface {
	Kind() Kind
	// Insert stores rec, assigning an id when rec has none, and returns the id.
	Insert(ctx context.Context, rec *T) (string, error)
	Get(ctx context.Context, id string) (*T, error)
	// List returns the records for which match reports true, oldest first.
	// A nil match returns every record.
	List(ctx context.Context, match func(*T) bool) ([]*T, error)
	// Update applies mutate to the current record and stores the result
	// only if nobody else changed the record in between. An error returned
	// by mutate aborts the update and is returned unchanged.
	Update(ctx context.Context, id string, mutate func(*T) error) (*T, error)
	Delete(ctx context.Context, id string) error
}

// prepareInsert fills in id, version and timestamps for a new record.
func prepareInsert[T any, P Record[T]](kind Kind, rec P, newID func(prefix string) string) *Meta {
	meta := rec.RecordMeta()
	if meta.ID == "" {
		meta.ID = newID(kind.Prefix)
	}
	now := time.Now().UTC()
	meta.Version = 1
	meta.CreatedAt = now
	meta.UpdatedAt = now
	return meta
}

// applyMutation runs mutate against rec and, on success, advances its
// version and update time while pinning the immutable fields.
func applyMutation[T any, P Record[T]](rec P, mutate func(*T) error) (int64, error) {
	before := *rec.RecordMeta()
	if err := mutate((*T)(rec)); err != nil {
		return 0, err
	}
	meta := rec.RecordMeta()
	meta.ID = before.ID
	meta.CreatedAt = before.CreatedAt
	meta.Version = before.Version + 1
	meta.UpdatedAt = time.Now().UTC()
	return before.Version, nil
}

func matchAll[T any](match func(*T) bool, recs []*T) []*T {
	if match == nil {
		return recs
	}
	out := make([]*T, 0, len(recs))
	for _, r := range recs {
		if match(r) {
			out = append(out, r)
		}
	}
	return out
}
