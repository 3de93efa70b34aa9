package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"caixinha/internal/core"
)

func TestJSONResponseBuilder(t *testing.T) {
	w := httptest.NewRecorder()
	NewJSONResponse().
		Status(http.StatusCreated).
		Header("X-Cache", "MISS").
		Body(map[string]int{"id": 1}).
		Write(w)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Equal(t, "MISS", w.Header().Get("X-Cache"))
	assert.Equal(t, "{\"id\":1}\n", w.Body.String())
}

func TestJSONResponseBuilder_NoBody(t *testing.T) {
	w := httptest.NewRecorder()
	NewJSONResponse().Status(http.StatusNoContent).Write(w)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Body.String())
	assert.Empty(t, w.Header().Get("Content-Type"))
}

func TestJSONResponseBuilder_EncodeFailure(t *testing.T) {
	w := httptest.NewRecorder()
	NewJSONResponse().Body(make(chan int)).Write(w)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestWriteError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		body   string
	}{
		{"validation", core.FieldError("amount", core.ErrInvalidAmount), http.StatusBadRequest, `{"amount":["invalid amount"]}`},
		{"wrapped duplicate", fmt.Errorf("create: %w", core.ErrDuplicateName), http.StatusBadRequest, `"name"`},
		{"not found", fmt.Errorf("get: %w", core.ErrNotFound), http.StatusNotFound, `"Not found."`},
		{"protected", fmt.Errorf("delete category 1: %w", core.ErrProtected), http.StatusConflict, `Outros`},
		{"no owner", core.ErrNoOwner, http.StatusUnauthorized, `detail`},
		{"unexpected", errors.New("disk full"), http.StatusInternalServerError, `Internal server error.`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			writeError(context.Background(), w, tt.err)
			assert.Equal(t, tt.status, w.Code)
			assert.Contains(t, w.Body.String(), tt.body)
		})
	}
}
