// Package api provides HTTP handlers for the dailycase API.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/ashureev/dailycase/internal/generator"
	"github.com/ashureev/dailycase/internal/identity"
	"github.com/ashureev/dailycase/internal/store"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 64 << 10

// Handler provides common handler utilities.
type Handler struct {
	store store.Store
	gen   *generator.Service
	model string
}

// NewHandler creates a new Handler with common dependencies.
func NewHandler(st store.Store, gen *generator.Service, model string) *Handler {
	return &Handler{
		store: st,
		gen:   gen,
		model: model,
	}
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("Failed to encode response", "error", err)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// kv returns the requesting user's namespace, or false when the request
// carries no identity.
func (h *Handler) kv(w http.ResponseWriter, r *http.Request) (store.KV, bool) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return nil, false
	}
	return store.Scope(h.store, userID), true
}

// decode reads a size-capped JSON body into v.
func decode(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return fmt.Errorf("request body exceeds %d bytes", maxBodyBytes)
		}
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}
