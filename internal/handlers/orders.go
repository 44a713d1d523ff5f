package handlers

import (
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"tradegate/internal/engine"
	"tradegate/internal/repository"
)

// OrderHandler handles order execution and order book routes.
type OrderHandler struct {
	engine    *engine.Engine
	orderRepo *repository.OrderRepository
	runRepo   *repository.RunRepository
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(eng *engine.Engine, orderRepo *repository.OrderRepository, runRepo *repository.RunRepository) *OrderHandler {
	return &OrderHandler{engine: eng, orderRepo: orderRepo, runRepo: runRepo}
}

// Execute runs a batch of orders across clients.
func (h *OrderHandler) Execute(w http.ResponseWriter, r *http.Request) {
	var req engine.BatchRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.engine.ExecuteBatch(r.Context(), &req)
	if err != nil {
		respondMappedError(w, err)
		return
	}

	log.Printf("Batch %s: %d/%d orders placed (dry_run=%v)", result.RunID, result.Succeeded, result.Total, result.DryRun)
	respondJSON(w, http.StatusOK, result)
}

// Exit flattens positions in one instrument across clients.
func (h *OrderHandler) Exit(w http.ResponseWriter, r *http.Request) {
	var req engine.ExitRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.engine.ExitPositions(r.Context(), &req)
	if err != nil {
		respondMappedError(w, err)
		return
	}

	log.Printf("Exit batch %s: %d/%d orders placed, %d clients skipped", result.RunID, result.Succeeded, result.Total, len(result.Skipped))
	respondJSON(w, http.StatusOK, result)
}

type cancelRequest struct {
	ClientID int64  `json:"client_id"`
	Segment  string `json:"segment,omitempty"`
}

// Cancel cancels one client's open order.
func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")
	var req cancelRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.ClientID <= 0 {
		respondError(w, http.StatusBadRequest, "client_id is required")
		return
	}

	ok, err := h.engine.CancelOrder(r.Context(), req.ClientID, orderID, req.Segment)
	if err != nil {
		respondMappedError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"order_id": orderID, "cancelled": ok})
}

// Status fetches the upstream status of one client's order.
func (h *OrderHandler) Status(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")
	clientID, err := queryInt64(r, "client_id")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if clientID <= 0 {
		respondError(w, http.StatusBadRequest, "client_id is required")
		return
	}

	detail, err := h.engine.OrderStatus(r.Context(), clientID, orderID, r.URL.Query().Get("segment"))
	if err != nil {
		respondMappedError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"order_id": orderID, "detail": detail})
}

// List returns locally recorded orders, optionally scoped to one client.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	clientID, err := queryInt64(r, "client_id")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if clientID > 0 {
		orders, err := h.orderRepo.GetByClientID(clientID)
		if err != nil {
			respondMappedError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, orders)
		return
	}

	q := r.URL.Query()
	perPage, _ := strconv.Atoi(q.Get("limit"))
	var p repository.Pagination
	if q.Has("offset") {
		offset, _ := strconv.Atoi(q.Get("offset"))
		p = repository.NewPagination(perPage, offset)
	} else {
		page, _ := strconv.Atoi(q.Get("page"))
		p = repository.PageToPagination(page, perPage)
	}
	result, err := h.orderRepo.List(p)
	if err != nil {
		respondMappedError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// Runs returns the recent batch and exit execution summaries.
func (h *OrderHandler) Runs(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	runs, err := h.runRepo.ListRecent(limit)
	if err != nil {
		respondMappedError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, runs)
}
