// internal/httpx/httpx.go
package httpx

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"videostore/internal/apperr"
)

// MaxBodyBytes bounds every decoded request body.
const MaxBodyBytes = 1 << 20

// WriteJSON encodes v as the response body with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteMessage answers {"message": msg}.
func WriteMessage(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, map[string]string{"message": msg})
}

// WriteDetails answers {"details": details}.
func WriteDetails(w http.ResponseWriter, status int, details string) {
	WriteJSON(w, status, map[string]string{"details": details})
}

// WriteError maps err to a response. Classified errors are shown to the
// client, anything else is logged and reported as an internal error.
func WriteError(w http.ResponseWriter, r *http.Request, log *zap.Logger, err error) {
	var ae *apperr.Error
	if !errors.As(err, &ae) {
		log.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err),
		)
		WriteMessage(w, http.StatusInternalServerError, "internal error")
		return
	}

	switch ae.Kind {
	case apperr.NotFound:
		WriteMessage(w, http.StatusNotFound, ae.Message)
	default:
		WriteDetails(w, http.StatusBadRequest, ae.Message)
	}
}

// PathID parses the integer route parameter name.
func PathID(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, apperr.New(apperr.InvalidInput, "ID %s must be an integer", raw)
	}
	return id, nil
}

// DecodeJSON decodes the request body into dst.
func DecodeJSON(r *http.Request, dst any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, MaxBodyBytes))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return apperr.New(apperr.InvalidInput, "Invalid data")
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return apperr.New(apperr.InvalidInput, "Invalid data")
	}
	return nil
}

// IntField interprets a raw JSON value as a positive integer id. JSON
// numbers and numeric strings are accepted. An absent or null value and a
// value that is not an integer are reported with different messages.
func IntField(raw json.RawMessage, name string) (int64, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return 0, apperr.New(apperr.InvalidInput, "Invalid data: %s is required", name)
	}

	var text string
	if err := json.Unmarshal(raw, &text); err != nil {
		text = trimmed
	}

	id, err := strconv.ParseInt(strings.TrimSpace(text), 10, 64)
	if err != nil {
		return 0, apperr.New(apperr.InvalidInput, "Invalid data: %s must be an integer", name)
	}
	if id <= 0 {
		return 0, apperr.New(apperr.InvalidInput, "Invalid data: %s must be positive", name)
	}
	return id, nil
}
