package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"carbon-scribe/credit-registry-backend/internal/store"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"validation", Validation("name is required"), KindValidation},
		{"wrapped not found", fmt.Errorf("lookup: %w", NotFound("project", "PRJ-1")), KindNotFound},
		{"store not found", store.ErrNotFound, KindNotFound},
		{"store conflict", fmt.Errorf("update: %w", store.ErrConflict), KindConflict},
		{"state conflict", StateConflict("valid approved verification required"), KindStateConflict},
		{"plain error", errors.New("boom"), KindInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, KindValidation.HTTPStatus())
	assert.Equal(t, http.StatusBadRequest, KindStateConflict.HTTPStatus())
	assert.Equal(t, http.StatusNotFound, KindNotFound.HTTPStatus())
	assert.Equal(t, http.StatusConflict, KindConflict.HTTPStatus())
	assert.Equal(t, http.StatusInternalServerError, KindInternal.HTTPStatus())
}

func TestFromStore(t *testing.T) {
	assert.NoError(t, FromStore(nil, "project", "PRJ-1"))

	err := FromStore(store.ErrNotFound, "project", "PRJ-1")
	assert.True(t, Is(err, KindNotFound))
	assert.Equal(t, "project PRJ-1 not found", err.Error())
	assert.ErrorIs(t, err, store.ErrNotFound)

	classified := Validation("bad")
	assert.Same(t, classified, FromStore(classified, "project", "PRJ-1"))

	internal := FromStore(errors.New("connection reset"), "credit", "CRD-1")
	assert.True(t, Is(internal, KindInternal))
}

func TestField(t *testing.T) {
	err := Field("price", "must be greater than 0")
	assert.Equal(t, KindValidation, err.Kind)
	assert.Equal(t, map[string]string{"price": "must be greater than 0"}, err.Fields)
}
