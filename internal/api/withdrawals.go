package api

import (
	"fmt"
	"net/http"

	"delayed-pool-go/internal/models"
	"delayed-pool-go/internal/store"

	"github.com/go-chi/chi/v5"
)

func (s *Server) scheduleWithdrawal(w http.ResponseWriter, r *http.Request) {
	depositId, err := uintParam(r, "depositId")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	var req models.ScheduleWithdrawalRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	parts := make([]models.PayoutPart, len(req.Parts))
	for i, p := range req.Parts {
		part, err := p.ToPayoutPart()
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("part %d: %w", i, err))
			return
		}
		parts[i] = part
	}

	itemIds, err := s.pool.ScheduleWithdrawal(r.Context(), caller(r), depositId, parts)
	if err != nil {
		writePoolError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, models.ScheduleWithdrawalResponse{ItemIds: itemIds})
}

func (s *Server) listQueue(w http.ResponseWriter, r *http.Request) {
	limit, err := intQuery(r, "limit", 100)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	offset, err := intQuery(r, "offset", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	state := models.QueueItemState(r.URL.Query().Get("state"))
	switch state {
	case "", models.ItemWaiting, models.ItemReady, models.ItemProcessing, models.ItemCompleted, models.ItemFailed:
	default:
		writeError(w, http.StatusBadRequest, fmt.Errorf("unknown state %q", state))
		return
	}

	items, err := s.pool.ListQueueItems(r.Context(), store.QueueFilter{State: state, Limit: limit, Offset: offset})
	if err != nil {
		writePoolError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) queueSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.pool.QueueSummary(r.Context())
	if err != nil {
		writePoolError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) nextReadyItem(w http.ResponseWriter, r *http.Request) {
	id, ok, err := s.pool.NextReadyItem(r.Context())
	if err != nil {
		writePoolError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, models.NextReadyItemResponse{ItemId: id, Ready: ok})
}

func (s *Server) failedItems(w http.ResponseWriter, r *http.Request) {
	items, err := s.pool.FailedItems(r.Context())
	if err != nil {
		writePoolError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) getQueueItem(w http.ResponseWriter, r *http.Request) {
	id, err := uintParam(r, "itemId")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	item, err := s.pool.QueueItem(r.Context(), id)
	if err != nil {
		writePoolError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// processItem is open to any caller; readiness is the only gate
func (s *Server) processItem(w http.ResponseWriter, r *http.Request) {
	id, err := uintParam(r, "itemId")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	result, err := s.pool.ProcessItem(r.Context(), id)
	if err != nil {
		writePoolError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) resolveTransfer(w http.ResponseWriter, r *http.Request) {
	id, err := uintParam(r, "itemId")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	var req models.SettleRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	result, err := s.pool.ResolveTransfer(r.Context(), caller(r), id, req.Succeeded, req.Reason)
	if err != nil {
		writePoolError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// settleTransfer receives transfer outcome notifications. Only the
// administrator identity may deliver them over HTTP.
func (s *Server) settleTransfer(w http.ResponseWriter, r *http.Request) {
	if !s.isAdmin(w, r) {
		return
	}

	var req models.SettleRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	result, err := s.pool.SettleTransfer(r.Context(), chi.URLParam(r, "transferRef"), req.Succeeded, req.Reason)
	if err != nil {
		writePoolError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
