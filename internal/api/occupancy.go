package api

import (
	"database/sql"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/erazemk/zavetisce/internal/model"
	"github.com/erazemk/zavetisce/internal/store"
)

// OccupancyHandler handles occupancy ledger endpoints.
type OccupancyHandler struct {
	DB *sql.DB
}

type appendEventRequest struct {
	Direction  string `json:"direction"`
	Amount     int    `json:"amount"`
	OccurredOn string `json:"occurred_on"`
	Note       string `json:"note"`
}

// Append handles POST /api/facilities/{id}/occupancy.
func (h *OccupancyHandler) Append(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid facility id")
		return
	}

	var req appendEventRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	event, err := store.AppendOccupancyEvent(r.Context(), h.DB, id, req.Direction, req.Amount, req.OccurredOn, req.Note)
	if err != nil {
		storeError(w, err)
		return
	}

	claims := GetClaims(r.Context())
	slog.Info("occupancy event appended", "user", claims.Username,
		"facility", id, "direction", event.Direction, "amount", event.Amount)
	jsonResponse(w, http.StatusCreated, event)
}

// Snapshot handles GET /api/facilities/{id}/occupancy.
func (h *OccupancyHandler) Snapshot(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid facility id")
		return
	}

	snapshot, err := store.GetOccupancySnapshot(r.Context(), h.DB, id)
	if err != nil {
		storeError(w, err)
		return
	}

	jsonResponse(w, http.StatusOK, snapshot)
}

// History handles GET /api/facilities/{id}/occupancy/history.
func (h *OccupancyHandler) History(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid facility id")
		return
	}

	h.writeSeries(w, r, id)
}

// FleetHistory handles GET /api/occupancy/history.
func (h *OccupancyHandler) FleetHistory(w http.ResponseWriter, r *http.Request) {
	h.writeSeries(w, r, 0)
}

func (h *OccupancyHandler) writeSeries(w http.ResponseWriter, r *http.Request, facilityID int64) {
	from := r.URL.Query().Get("from")
	to := r.URL.Query().Get("to")

	days, err := store.DailyMovement(r.Context(), h.DB, facilityID, from, to)
	if err != nil {
		slog.Error("failed to query daily movement", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to query movement")
		return
	}
	if days == nil {
		days = []model.DailyMovement{}
	}
	jsonResponse(w, http.StatusOK, days)
}

// Events handles GET /api/facilities/{id}/occupancy/events.
func (h *OccupancyHandler) Events(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid facility id")
		return
	}

	events, err := store.ListOccupancyEvents(r.Context(), h.DB, id)
	if err != nil {
		slog.Error("failed to list occupancy events", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to list events")
		return
	}
	if events == nil {
		events = []model.OccupancyEvent{}
	}
	jsonResponse(w, http.StatusOK, events)
}
