// Package http serves the ledger as a JSON API.
//
// This file implements the builder used for every JSON response and the
// mapping from domain errors to status codes.

package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"caixinha/internal/core"
)

// JSONResponseBuilder provides a fluent API for building JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	headers    map[string]string
	payload    any
	hasBody    bool
}

// NewJSONResponse creates a new response builder with default 200 status.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

// Body sets the value encoded as the response body.
func (b *JSONResponseBuilder) Body(v any) *JSONResponseBuilder {
	b.payload = v
	b.hasBody = true
	return b
}

// Write sends the built response to the http.ResponseWriter.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	if !b.hasBody {
		w.WriteHeader(b.statusCode)
		return
	}

	body, err := json.Marshal(b.payload)
	if err != nil {
		slog.Error("Failed to encode JSON response", "error", err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"detail":"Internal server error."}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(b.statusCode)
	_, _ = w.Write(body)
	_, _ = w.Write([]byte("\n"))
}

// Detail builds the {"detail": message} body used for non-field errors.
func Detail(statusCode int, message string) *JSONResponseBuilder {
	return NewJSONResponse().Status(statusCode).Body(map[string]string{"detail": message})
}

// FieldErrors builds a 400 response keyed by input field.
func FieldErrors(errs fieldErrors) *JSONResponseBuilder {
	return NewJSONResponse().Status(http.StatusBadRequest).Body(errs)
}

func NotFound() *JSONResponseBuilder {
	return Detail(http.StatusNotFound, "Not found.")
}

// writeError maps err onto the API's error contract.
func writeError(ctx context.Context, w http.ResponseWriter, err error) {
	var ve *core.ValidationError
	switch {
	case errors.As(err, &ve):
		FieldErrors(fieldErrors{ve.Field: {ve.Err.Error()}}).Write(w)
	case errors.Is(err, core.ErrDuplicateName), errors.Is(err, core.ErrReservedName):
		FieldErrors(fieldErrors{"name": {err.Error()}}).Write(w)
	case errors.Is(err, core.ErrNotFound):
		NotFound().Write(w)
	case errors.Is(err, core.ErrProtected):
		Detail(http.StatusConflict, "The category \""+core.FallbackCategoryName+"\" cannot be deleted or renamed.").Write(w)
	case errors.Is(err, core.ErrNoOwner):
		Detail(http.StatusUnauthorized, "Authentication credentials were not provided.").Write(w)
	default:
		slog.ErrorContext(ctx, "Request failed", "error", err)
		Detail(http.StatusInternalServerError, "Internal server error.").Write(w)
	}
}
