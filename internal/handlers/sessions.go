package handlers

import (
	"log"
	"net/http"

	"tradegate/internal/broker"
	"tradegate/internal/repository"
)

// SessionHandler handles broker session inspection and invalidation.
type SessionHandler struct {
	sessions   *broker.SessionManager
	clientRepo *repository.ClientRepository
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(sessions *broker.SessionManager, clientRepo *repository.ClientRepository) *SessionHandler {
	return &SessionHandler{sessions: sessions, clientRepo: clientRepo}
}

// Status reports the cached-session state for one client.
func (h *SessionHandler) Status(w http.ResponseWriter, r *http.Request) {
	clientID, err := urlID(r, "clientID")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	status := h.sessions.Status(clientID)
	respondJSON(w, http.StatusOK, map[string]any{"client_id": clientID, "session": status})
}

// Invalidate drops a client's cached session and logs it out upstream
// when possible.
func (h *SessionHandler) Invalidate(w http.ResponseWriter, r *http.Request) {
	clientID, err := urlID(r, "clientID")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	client, err := h.clientRepo.GetByID(clientID)
	if err != nil {
		respondMappedError(w, err)
		return
	}
	if client == nil {
		respondError(w, http.StatusNotFound, "client not found")
		return
	}

	if err := h.sessions.Logout(r.Context(), client); err != nil {
		// The cache entry is already gone; upstream logout failing only
		// means the token dies at the daily cutoff instead.
		log.Printf("Upstream logout failed for client %s: %v", client.ClientCode, err)
	}
	respondJSON(w, http.StatusOK, map[string]any{"client_id": clientID, "invalidated": true})
}
