package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"carbon-scribe/credit-registry-backend/internal/ids"
)

// MemoryCollection keeps records in a map guarded by a mutex. Records are
// deep-copied on the way in and out so callers never share state with the
// store.
type MemoryCollection[T any, P Record[T]] struct {
	kind Kind
	mu   sync.RWMutex
	data map[string]P
}

// NewMemory creates an empty in-memory collection.
func NewMemory[T any, P Record[T]](kind Kind) *MemoryCollection[T, P] {
	return &MemoryCollection[T, P]{
		kind: kind,
		data: make(map[string]P),
	}
}

func (c *MemoryCollection[T, P]) Kind() Kind { return c.kind }

func (c *MemoryCollection[T, P]) Insert(ctx context.Context, rec *T) (string, error) {
	p := P(rec)

	c.mu.Lock()
	defer c.mu.Unlock()

	meta := prepareInsert[T, P](c.kind, p, ids.New)
	if _, exists := c.data[meta.ID]; exists {
		return "", fmt.Errorf("%s %s: %w", c.kind.Name, meta.ID, ErrDuplicate)
	}
	cp, err := clone[T, P](p)
	if err != nil {
		return "", err
	}
	c.data[meta.ID] = cp
	return meta.ID, nil
}

func (c *MemoryCollection[T, P]) Get(ctx context.Context, id string) (*T, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	rec, ok := c.data[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp, err := clone[T, P](rec)
	if err != nil {
		return nil, err
	}
	return (*T)(cp), nil
}

func (c *MemoryCollection[T, P]) List(ctx context.Context, match func(*T) bool) ([]*T, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]*T, 0, len(c.data))
	for _, rec := range c.data {
		cp, err := clone[T, P](rec)
		if err != nil {
			return nil, err
		}
		out = append(out, (*T)(cp))
	}
	sortByCreation[T, P](out)
	return matchAll(match, out), nil
}

func (c *MemoryCollection[T, P]) Update(ctx context.Context, id string, mutate func(*T) error) (*T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	current, ok := c.data[id]
	if !ok {
		return nil, ErrNotFound
	}
	working, err := clone[T, P](current)
	if err != nil {
		return nil, err
	}
	if _, err := applyMutation[T, P](working, mutate); err != nil {
		return nil, err
	}
	stored, err := clone[T, P](working)
	if err != nil {
		return nil, err
	}
	c.data[id] = stored
	return (*T)(working), nil
}

func (c *MemoryCollection[T, P]) Delete(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.data[id]; !ok {
		return ErrNotFound
	}
	delete(c.data, id)
	return nil
}

func clone[T any, P Record[T]](rec P) (P, error) {
	raw, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to copy record: %w", err)
	}
	out := P(new(T))
	if err := json.Unmarshal(raw, out); err != nil {
		return nil, fmt.Errorf("failed to copy record: %w", err)
	}
	return out, nil
}

func sortByCreation[T any, P Record[T]](recs []*T) {
	sort.SliceStable(recs, func(i, j int) bool {
		a, b := P(recs[i]).RecordMeta(), P(recs[j]).RecordMeta()
		if a.CreatedAt.Equal(b.CreatedAt) {
			return a.ID < b.ID
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
}
