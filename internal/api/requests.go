package api

import (
	"database/sql"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/erazemk/zavetisce/internal/model"
	"github.com/erazemk/zavetisce/internal/store"
)

// RequestsHandler handles resource request endpoints.
type RequestsHandler struct {
	DB *sql.DB
}

type createRequestRequest struct {
	FacilityID  int64  `json:"facility_id"`
	ItemName    string `json:"item_name"`
	Category    string `json:"category"`
	Amount      int    `json:"amount"`
	Unit        string `json:"unit"`
	Urgency     string `json:"urgency"`
	SourceHubID *int64 `json:"source_hub_id"`
}

type approveRequest struct {
	Amount *int `json:"amount"`
}

// Create handles POST /api/requests.
func (h *RequestsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createRequestRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.FacilityID <= 0 {
		jsonError(w, http.StatusBadRequest, "facility_id required")
		return
	}
	if req.Unit == "" {
		req.Unit = "pcs"
	}

	request, err := store.CreateRequest(r.Context(), h.DB, req.FacilityID, req.ItemName,
		req.Category, req.Amount, req.Unit, req.Urgency, req.SourceHubID)
	if err != nil {
		storeError(w, err)
		return
	}

	claims := GetClaims(r.Context())
	slog.Info("resource request created", "user", claims.Username,
		"request", request.ID, "facility", request.FacilityName,
		"item", request.ItemName, "amount", request.Amount, "urgency", request.Urgency)
	jsonResponse(w, http.StatusCreated, request)
}

// List handles GET /api/requests.
func (h *RequestsHandler) List(w http.ResponseWriter, r *http.Request) {
	var facilityID int64
	if v := r.URL.Query().Get("facility_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			jsonError(w, http.StatusBadRequest, "invalid facility_id")
			return
		}
		facilityID = id
	}

	requests, err := store.ListRequests(r.Context(), h.DB, facilityID, r.URL.Query().Get("status"))
	if err != nil {
		slog.Error("failed to list requests", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to list requests")
		return
	}
	if requests == nil {
		requests = []model.ResourceRequest{}
	}
	jsonResponse(w, http.StatusOK, requests)
}

// Get handles GET /api/requests/{id}.
func (h *RequestsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request id")
		return
	}

	request, err := store.GetRequest(r.Context(), h.DB, id)
	if err != nil {
		slog.Error("failed to get request", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to get request")
		return
	}
	if request == nil {
		jsonError(w, http.StatusNotFound, "request not found")
		return
	}

	jsonResponse(w, http.StatusOK, request)
}

// Approve handles POST /api/requests/{id}/approve.
func (h *RequestsHandler) Approve(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request id")
		return
	}

	// The body is optional; an empty one approves the requested amount.
	var req approveRequest
	if r.ContentLength > 0 {
		if err := decodeJSON(r, &req); err != nil {
			jsonError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	allocs, err := store.ApproveRequest(r.Context(), h.DB, id, req.Amount)
	if err != nil {
		storeError(w, err)
		return
	}

	claims := GetClaims(r.Context())
	slog.Info("request approved", "user", claims.Username, "request", id, "batches", len(allocs))
	jsonResponse(w, http.StatusOK, map[string]any{
		"status":           model.RequestApproved,
		"consumed_batches": allocs,
	})
}

// Reject handles POST /api/requests/{id}/reject.
func (h *RequestsHandler) Reject(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request id")
		return
	}

	if err := store.RejectRequest(r.Context(), h.DB, id); err != nil {
		storeError(w, err)
		return
	}

	claims := GetClaims(r.Context())
	slog.Info("request rejected", "user", claims.Username, "request", id)
	jsonResponse(w, http.StatusOK, map[string]string{"status": model.RequestRejected})
}

// Receive handles POST /api/requests/{id}/receive.
func (h *RequestsHandler) Receive(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request id")
		return
	}

	if err := store.MarkReceived(r.Context(), h.DB, id); err != nil {
		storeError(w, err)
		return
	}

	claims := GetClaims(r.Context())
	slog.Info("request received", "user", claims.Username, "request", id)
	jsonResponse(w, http.StatusOK, map[string]string{"status": model.RequestReceived})
}

// Disbursements handles GET /api/requests/{id}/disbursements.
func (h *RequestsHandler) Disbursements(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request id")
		return
	}

	allocs, err := store.ListDisbursements(r.Context(), h.DB, id)
	if err != nil {
		slog.Error("failed to list disbursements", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to list disbursements")
		return
	}
	if allocs == nil {
		allocs = []model.BatchAllocation{}
	}
	jsonResponse(w, http.StatusOK, allocs)
}
