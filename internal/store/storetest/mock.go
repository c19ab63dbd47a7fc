// Package storetest provides a testify mock of store.Collection.
package storetest

import (
	"context"

	"github.com/stretchr/testify/mock"

	"carbon-scribe/credit-registry-backend/internal/store"
)

// MockCollection is a mock implementation of store.Collection.
type MockCollection[T any] struct {
	mock.Mock
	kind store.Kind
}

func NewMockCollection[T any](kind store.Kind) *MockCollection[T] {
	return &MockCollection[T]{kind: kind}
}

func (m *MockCollection[T]) Kind() store.Kind { return m.kind }

func (m *MockCollection[T]) Insert(ctx context.Context, rec *T) (string, error) {
	args := m.Called(ctx, rec)
	return args.String(0), args.Error(1)
}

func (m *MockCollection[T]) Get(ctx context.Context, id string) (*T, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*T), args.Error(1)
}

func (m *MockCollection[T]) List(ctx context.Context, match func(*T) bool) ([]*T, error) {
	args := m.Called(ctx, match)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*T), args.Error(1)
}

// Update runs mutate against the record returned by the expectation so
// tests observe the mutation the caller asked for.
func (m *MockCollection[T]) Update(ctx context.Context, id string, mutate func(*T) error) (*T, error) {
	args := m.Called(ctx, id, mutate)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	rec := args.Get(0).(*T)
	if err := args.Error(1); err != nil {
		return nil, err
	}
	if err := mutate(rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (m *MockCollection[T]) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

var _ store.Collection[struct{}] = (*MockCollection[struct{}])(nil)
