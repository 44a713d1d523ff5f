// Package handlers provides the JSON HTTP handlers for the trading
// gateway API.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"tradegate/internal/broker"
	"tradegate/internal/instruments"
)

// respondJSON writes v as the JSON response body.
func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}

// respondError writes a JSON error body.
func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}

// respondMappedError translates domain error types to HTTP statuses.
func respondMappedError(w http.ResponseWriter, err error) {
	var (
		valErr   *broker.ValidationError
		credErr  *broker.CredentialsError
		authErr  *broker.AuthError
		upErr    *broker.UpstreamError
		protoErr *broker.ProtocolError
	)
	switch {
	case errors.As(err, &valErr):
		respondError(w, http.StatusBadRequest, valErr.Error())
	case errors.As(err, &credErr):
		respondError(w, http.StatusUnprocessableEntity, credErr.Error())
	case errors.As(err, &authErr):
		respondError(w, http.StatusBadGateway, authErr.Error())
	case errors.As(err, &upErr):
		respondError(w, http.StatusBadGateway, upErr.Error())
	case errors.As(err, &protoErr):
		respondError(w, http.StatusBadGateway, protoErr.Error())
	case errors.Is(err, instruments.ErrNoAccessClient):
		respondError(w, http.StatusNotFound, err.Error())
	default:
		log.Printf("Internal error: %v", err)
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}

// decodeJSON parses the request body into v.
func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// urlID parses the named chi URL parameter as an int64 id.
func urlID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s", name)
	}
	return id, nil
}

// queryInt64 parses an int64 query parameter, 0 when absent.
func queryInt64(r *http.Request, name string) (int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s", name)
	}
	return v, nil
}
