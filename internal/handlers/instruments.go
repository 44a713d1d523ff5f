package handlers

import (
	"net/http"
	"strconv"

	"tradegate/internal/broker"
	"tradegate/internal/instruments"
)

// InstrumentHandler handles instrument catalog routes.
type InstrumentHandler struct {
	cache *instruments.Cache
}

// NewInstrumentHandler creates a new InstrumentHandler.
func NewInstrumentHandler(cache *instruments.Cache) *InstrumentHandler {
	return &InstrumentHandler{cache: cache}
}

// Search looks up instruments by symbol, name or token.
func (h *InstrumentHandler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	exchange := q.Get("exchange")
	if exchange == "" {
		exchange = "NSE"
	}

	limit := 20
	if raw := q.Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	useCache := q.Get("refresh") != "true"

	results, err := h.cache.Search(r.Context(), exchange, q.Get("q"), limit, useCache)
	if err != nil {
		respondMappedError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"exchange": exchange,
		"count":    len(results),
		"results":  results,
	})
}

type refreshRequest struct {
	Exchange string `json:"exchange"`
}

// Refresh forces a catalog fetch for one exchange.
func (h *InstrumentHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	count, err := h.cache.Refresh(r.Context(), req.Exchange)
	if err != nil {
		respondMappedError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"exchange": req.Exchange, "instruments": count})
}

// Exchanges lists the supported exchanges.
func (h *InstrumentHandler) Exchanges(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"exchanges": broker.ValidExchanges})
}
