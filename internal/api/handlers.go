package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/example/inventory-ledger/internal/breaker"
	"github.com/example/inventory-ledger/internal/command"
	"github.com/example/inventory-ledger/internal/domain/ledger"
	"github.com/example/inventory-ledger/internal/monitor"
	"github.com/example/inventory-ledger/internal/query"
)

type Handlers struct {
	cmdHandler   *command.Handler
	queryHandler *query.Handler
	ledgerSvc    *ledger.Service
	mon          *monitor.Monitor
}

func NewHandlers(cmdHandler *command.Handler, queryHandler *query.Handler, ledgerSvc *ledger.Service, mon *monitor.Monitor) *Handlers {
	return &Handlers{
		cmdHandler:   cmdHandler,
		queryHandler: queryHandler,
		ledgerSvc:    ledgerSvc,
		mon:          mon,
	}
}

// Command Handlers

func (h *Handlers) Reserve(w http.ResponseWriter, r *http.Request) {
	var cmd command.ReserveStock
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	reservation, err := h.cmdHandler.ReserveStock(r.Context(), cmd)
	if err != nil {
		respondCommandError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, reservation)
}

func (h *Handlers) Release(w http.ResponseWriter, r *http.Request) {
	var cmd command.ReleaseStock
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	released, err := h.cmdHandler.ReleaseStock(r.Context(), cmd)
	if err != nil {
		respondCommandError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]bool{"released": released})
}

func (h *Handlers) Allocate(w http.ResponseWriter, r *http.Request) {
	var cmd command.AllocateStock
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.cmdHandler.AllocateStock(r.Context(), cmd); err != nil {
		respondCommandError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": "Stock allocated"})
}

func (h *Handlers) Replenish(w http.ResponseWriter, r *http.Request) {
	var cmd command.ReplenishStock
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.cmdHandler.ReplenishStock(r.Context(), cmd); err != nil {
		respondCommandError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": "Stock replenished"})
}

func (h *Handlers) Sync(w http.ResponseWriter, r *http.Request) {
	var cmd command.SyncStock
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	result, err := h.cmdHandler.SyncStock(r.Context(), cmd)
	if err != nil {
		respondCommandError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

func (h *Handlers) SyncProduct(w http.ResponseWriter, r *http.Request) {
	var cmd command.SyncProduct
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	results, err := h.cmdHandler.SyncProduct(r.Context(), cmd)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, results)
}

// Query Handlers

func (h *Handlers) GetInventory(w http.ResponseWriter, r *http.Request) {
	if productID := r.URL.Query().Get("product_id"); productID != "" {
		views, err := h.queryHandler.ListByProduct(r.Context(), productID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		respondJSON(w, http.StatusOK, views)
		return
	}

	views, err := h.queryHandler.List(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, views)
}

func (h *Handlers) GetInventoryItem(w http.ResponseWriter, r *http.Request) {
	aggregateID := extractPathParam(r.URL.Path, "/inventory/")

	view, err := h.queryHandler.Get(r.Context(), aggregateID)
	if errors.Is(err, query.ErrNotFound) {
		http.Error(w, "Inventory not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, view)
}

func (h *Handlers) GetAvailability(w http.ResponseWriter, r *http.Request) {
	productID := r.URL.Query().Get("product_id")
	channel := r.URL.Query().Get("channel")
	if productID == "" || channel == "" {
		http.Error(w, "product_id and channel are required", http.StatusBadRequest)
		return
	}

	aggregateID := ledger.AggregateID(productID, channel)
	available, err := h.queryHandler.Available(r.Context(), aggregateID)
	if errors.Is(err, query.ErrNotFound) {
		// Fall back to the write side for aggregates not yet projected.
		available, err = h.ledgerSvc.AvailableQuantity(r.Context(), productID, channel)
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"aggregate_id": aggregateID,
		"available":    available,
	})
}

func (h *Handlers) CanFulfill(w http.ResponseWriter, r *http.Request) {
	productID := r.URL.Query().Get("product_id")
	channel := r.URL.Query().Get("channel")
	amount, err := strconv.Atoi(r.URL.Query().Get("amount"))
	if productID == "" || channel == "" || err != nil {
		http.Error(w, "product_id, channel and amount are required", http.StatusBadRequest)
		return
	}

	check, err := h.ledgerSvc.CanFulfill(r.Context(), productID, channel, amount)
	if err != nil {
		respondCommandError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, check)
}

// Monitoring Handlers

func (h *Handlers) GetStockout(w http.ResponseWriter, r *http.Request) {
	productID := r.URL.Query().Get("product_id")
	channel := r.URL.Query().Get("channel")
	if productID == "" || channel == "" {
		http.Error(w, "product_id and channel are required", http.StatusBadRequest)
		return
	}

	rate := 0.0
	if raw := r.URL.Query().Get("daily_rate"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil || parsed < 0 {
			http.Error(w, "daily_rate must be a non-negative number", http.StatusBadRequest)
			return
		}
		rate = parsed
	}

	l, err := h.ledgerSvc.Load(r.Context(), productID, channel)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	prediction := h.mon.PredictedStockout(r.Context(), l, rate)
	if prediction == nil {
		respondJSON(w, http.StatusOK, map[string]string{"message": "No allocation activity, stockout not predictable"})
		return
	}

	respondJSON(w, http.StatusOK, prediction)
}

func (h *Handlers) GetAnomalies(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.mon.AnomalyScore())
}

func (h *Handlers) GetHealth(w http.ResponseWriter, r *http.Request) {
	report := h.mon.HealthCheck(r.Context())

	status := http.StatusOK
	if !report.Healthy {
		status = http.StatusServiceUnavailable
	}
	respondJSON(w, status, report)
}

// Helper functions

// respondCommandError maps domain errors onto HTTP statuses
func respondCommandError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ledger.ErrInvalidAmount):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ledger.ErrInsufficientAvailability),
		errors.Is(err, ledger.ErrInsufficientReserved):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, ledger.ErrSourceNotAllowed):
		http.Error(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, ledger.ErrConcurrencyConflict):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, command.ErrDuplicateCommand):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, breaker.ErrCircuitOpen):
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func extractPathParam(path, prefix string) string {
	return strings.TrimPrefix(path, prefix)
}
