package handlers

import (
	"net/http"

	"tradegate/internal/engine"
)

// PortfolioHandler handles per-client portfolio routes.
type PortfolioHandler struct {
	engine *engine.Engine
}

// NewPortfolioHandler creates a new PortfolioHandler.
func NewPortfolioHandler(eng *engine.Engine) *PortfolioHandler {
	return &PortfolioHandler{engine: eng}
}

// Dashboard returns the aggregate book across all active clients.
func (h *PortfolioHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	dash, err := h.engine.BuildDashboard(r.Context(), r.URL.Query().Get("segment"))
	if err != nil {
		respondMappedError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, dash)
}

// Summary returns the combined positions, holdings and profile view.
func (h *PortfolioHandler) Summary(w http.ResponseWriter, r *http.Request) {
	clientID, err := urlID(r, "clientID")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	summary, err := h.engine.Portfolio(r.Context(), clientID, r.URL.Query().Get("segment"))
	if err != nil {
		respondMappedError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

// Positions returns just the client's open positions.
func (h *PortfolioHandler) Positions(w http.ResponseWriter, r *http.Request) {
	clientID, err := urlID(r, "clientID")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	positions, err := h.engine.Positions(r.Context(), clientID, r.URL.Query().Get("segment"))
	if err != nil {
		respondMappedError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"client_id": clientID, "positions": positions})
}
