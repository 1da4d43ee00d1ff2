package api

import (
	"database/sql"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/erazemk/zavetisce/internal/model"
	"github.com/erazemk/zavetisce/internal/store"
)

// StockHandler handles stock batch endpoints.
type StockHandler struct {
	DB *sql.DB
}

type createBatchRequest struct {
	ItemName  string `json:"item_name"`
	Category  string `json:"category"`
	Quantity  int    `json:"quantity"`
	Unit      string `json:"unit"`
	SourceID  *int64 `json:"source_id"`
	Supplier  string `json:"supplier"`
	ExpiresOn string `json:"expires_on"`
	Notes     string `json:"notes"`
}

type upsertBatchRequest struct {
	ItemName string `json:"item_name"`
	Category string `json:"category"`
	Quantity int    `json:"quantity"`
	Unit     string `json:"unit"`
	SourceID *int64 `json:"source_id"`
}

// List handles GET /api/stock.
func (h *StockHandler) List(w http.ResponseWriter, r *http.Request) {
	var sourceID int64
	if v := r.URL.Query().Get("source_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			jsonError(w, http.StatusBadRequest, "invalid source_id")
			return
		}
		sourceID = id
	}

	batches, err := store.ListStockBatches(r.Context(), h.DB, sourceID,
		r.URL.Query().Get("item"), r.URL.Query().Get("category"))
	if err != nil {
		slog.Error("failed to list stock batches", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to list stock")
		return
	}
	if batches == nil {
		batches = []model.StockBatch{}
	}
	jsonResponse(w, http.StatusOK, batches)
}

// Create handles POST /api/stock.
func (h *StockHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createBatchRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Unit == "" {
		req.Unit = "pcs"
	}

	batch, err := store.CreateStockBatch(r.Context(), h.DB, req.ItemName, req.Category,
		req.Quantity, req.Unit, req.SourceID, req.Supplier, req.ExpiresOn, req.Notes)
	if err != nil {
		storeError(w, err)
		return
	}

	claims := GetClaims(r.Context())
	slog.Info("stock batch created", "user", claims.Username,
		"item", batch.ItemName, "quantity", batch.Quantity, "source", batch.SourceName)
	jsonResponse(w, http.StatusCreated, batch)
}

// Upsert handles POST /api/stock/upsert. The bulk-import subsystem calls
// this per row; merging follows the same item-identity rule as allocation.
func (h *StockHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	var req upsertBatchRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.ItemName == "" || req.Category == "" {
		jsonError(w, http.StatusBadRequest, "item_name and category required")
		return
	}
	if req.Unit == "" {
		req.Unit = "pcs"
	}

	batch, err := store.UpsertStockBatch(r.Context(), h.DB, req.ItemName, req.Category,
		req.Quantity, req.Unit, req.SourceID)
	if err != nil {
		storeError(w, err)
		return
	}

	jsonResponse(w, http.StatusOK, batch)
}

// Get handles GET /api/stock/{id}.
func (h *StockHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid batch id")
		return
	}

	batch, err := store.GetStockBatch(r.Context(), h.DB, id)
	if err != nil {
		slog.Error("failed to get stock batch", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to get batch")
		return
	}
	if batch == nil {
		jsonError(w, http.StatusNotFound, "batch not found")
		return
	}

	jsonResponse(w, http.StatusOK, batch)
}
