package api

import (
	"net/http"
	"strconv"

	"github.com/tranmd/whaleaudit/internal/api/response"
	"github.com/tranmd/whaleaudit/internal/audit"
	"github.com/tranmd/whaleaudit/internal/history"
)

// HistoryHandler serves the stored snapshot list and its aggregate stats.
type HistoryHandler struct {
	store *history.Store
}

// NewHistoryHandler creates a history handler.
func NewHistoryHandler(store *history.Store) *HistoryHandler {
	return &HistoryHandler{store: store}
}

// List returns snapshots newest first. An optional ?limit=N trims the tail.
func (h *HistoryHandler) List(w http.ResponseWriter, r *http.Request) {
	list := h.store.All()

	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err == nil && limit >= 0 && limit < len(list) {
			list = list[:limit]
		}
	}

	response.JSON(w, http.StatusOK, map[string]any{
		"snapshots": list,
		"count":     len(list),
	})
}

// GetSnapshot returns one snapshot by id.
func (h *HistoryHandler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := h.store.Get(r.PathValue("id"))
	if err != nil {
		response.Error(w, http.StatusNotFound, err)
		return
	}
	response.JSON(w, http.StatusOK, snap)
}

// Stats returns aggregate win-rate statistics over the stored history.
func (h *HistoryHandler) Stats(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, audit.Summarize(h.store.All()))
}
