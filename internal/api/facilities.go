package api

import (
	"database/sql"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/erazemk/zavetisce/internal/imaging"
	"github.com/erazemk/zavetisce/internal/model"
	"github.com/erazemk/zavetisce/internal/store"
)

// FacilitiesHandler handles shelter/hub registry endpoints.
type FacilitiesHandler struct {
	DB *sql.DB
}

type facilityRequest struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	District string `json:"district"`
	Phone    string `json:"phone"`
	Capacity int    `json:"capacity"`
}

// facilityView decorates a facility with its derived occupancy state so
// list consumers never classify capacity themselves.
type facilityView struct {
	model.Facility
	Occupancy      int    `json:"occupancy"`
	CapacityStatus string `json:"capacity_status"`
}

// List handles GET /api/facilities.
func (h *FacilitiesHandler) List(w http.ResponseWriter, r *http.Request) {
	facilities, err := store.ListFacilities(r.Context(), h.DB, r.URL.Query().Get("type"))
	if err != nil {
		slog.Error("failed to list facilities", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to list facilities")
		return
	}

	views := make([]facilityView, 0, len(facilities))
	for _, f := range facilities {
		current, err := store.CurrentOccupancy(r.Context(), h.DB, f.ID)
		if err != nil {
			slog.Error("failed to derive occupancy", "facility", f.ID, "error", err)
			jsonError(w, http.StatusInternalServerError, "failed to derive occupancy")
			return
		}
		views = append(views, facilityView{
			Facility:       f,
			Occupancy:      current,
			CapacityStatus: model.ClassifyCapacity(current, f.Capacity),
		})
	}
	jsonResponse(w, http.StatusOK, views)
}

// Create handles POST /api/facilities.
func (h *FacilitiesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req facilityRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Name == "" || req.Type == "" {
		jsonError(w, http.StatusBadRequest, "name and type required")
		return
	}

	facility, err := store.CreateFacility(r.Context(), h.DB, req.Name, req.Type, req.District, req.Phone, req.Capacity)
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	jsonResponse(w, http.StatusCreated, facility)
}

// Get handles GET /api/facilities/{id}.
func (h *FacilitiesHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid facility id")
		return
	}

	facility, err := store.GetFacility(r.Context(), h.DB, id)
	if err != nil {
		slog.Error("failed to get facility", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to get facility")
		return
	}
	if facility == nil {
		jsonError(w, http.StatusNotFound, "facility not found")
		return
	}

	jsonResponse(w, http.StatusOK, facility)
}

// Update handles PUT /api/facilities/{id}.
func (h *FacilitiesHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid facility id")
		return
	}

	var req facilityRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Name == "" {
		jsonError(w, http.StatusBadRequest, "name required")
		return
	}

	if err := store.UpdateFacility(r.Context(), h.DB, id, req.Name, req.District, req.Phone, req.Capacity); err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	jsonResponse(w, http.StatusOK, map[string]string{"message": "facility updated"})
}

// Delete handles DELETE /api/facilities/{id}.
func (h *FacilitiesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid facility id")
		return
	}

	if err := store.DeleteFacility(r.Context(), h.DB, id); err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	jsonResponse(w, http.StatusOK, map[string]string{"message": "facility deleted"})
}

// UploadPhoto handles PUT /api/facilities/{id}/photo.
func (h *FacilitiesHandler) UploadPhoto(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid facility id")
		return
	}

	facility, err := store.GetFacility(r.Context(), h.DB, id)
	if err != nil || facility == nil {
		jsonError(w, http.StatusNotFound, "facility not found")
		return
	}

	processed, err := imaging.Process(r.Body)
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := store.SetFacilityPhoto(r.Context(), h.DB, id, processed.Data, processed.MIME); err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to store photo")
		return
	}

	jsonResponse(w, http.StatusOK, map[string]string{"message": "photo uploaded"})
}

// GetPhoto handles GET /api/facilities/{id}/photo.
func (h *FacilitiesHandler) GetPhoto(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid facility id")
		return
	}

	photo, mime, err := store.GetFacilityPhoto(r.Context(), h.DB, id)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to get photo")
		return
	}
	if len(photo) == 0 {
		jsonError(w, http.StatusNotFound, "no photo")
		return
	}

	w.Header().Set("Content-Type", mime)
	w.Write(photo)
}

// GetStock handles GET /api/facilities/{id}/stock.
func (h *FacilitiesHandler) GetStock(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid facility id")
		return
	}

	batches, err := store.ListStockBatches(r.Context(), h.DB, id, "", "")
	if err != nil {
		slog.Error("failed to list facility stock", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to list stock")
		return
	}
	if batches == nil {
		batches = []model.StockBatch{}
	}
	jsonResponse(w, http.StatusOK, batches)
}
