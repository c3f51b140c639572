package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/candleworks/candle/internal/store"
	"github.com/candleworks/candle/internal/types"
	"github.com/candleworks/candle/internal/validation"
)

// Handler implements the API handlers
type Handler struct {
	store   store.Store
	apiKey  string
	version string
}

// NewHandler creates a new Handler with store.Store interface
func NewHandler(s store.Store, apiKey, version string) *Handler {
	return &Handler{
		store:   s,
		apiKey:  apiKey,
		version: version,
	}
}

// Health returns the health status
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.GetStats(r.Context())
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	resp := types.HealthResponse{
		Status:        "healthy",
		Version:       h.version,
		BirthdayCount: stats.BirthdayCount,
		SchemaVersion: stats.SchemaVersion,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// ListBirthdays handles GET /api/v1/owners/{ownerID}/birthdays
func (h *Handler) ListBirthdays(w http.ResponseWriter, r *http.Request) {
	ownerID := MustOwnerFromContext(r.Context())

	records, err := h.store.ListRecords(r.Context(), ownerID)
	if err != nil {
		slog.Error("list failed", "error", err, "owner_id", ownerID)
		MapStoreError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(types.ListResponse{Records: records})
}

// CreateBirthday handles POST /api/v1/owners/{ownerID}/birthdays
func (h *Handler) CreateBirthday(w http.ResponseWriter, r *http.Request) {
	ownerID := MustOwnerFromContext(r.Context())

	var payload types.RecordPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %s", err.Error()))
		return
	}

	if errs := validation.ValidateRecordPayload(payload); len(errs) > 0 {
		WriteProblemWithErrors(w, r, "Request contains invalid fields", errs)
		return
	}

	record, err := h.store.CreateRecord(r.Context(), ownerID, payload)
	if err != nil {
		slog.Error("create failed", "error", err, "owner_id", ownerID)
		MapStoreError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(types.CreateResponse{ID: record.ID})
}

// UpdateBirthday handles PUT /api/v1/owners/{ownerID}/birthdays/{id}
func (h *Handler) UpdateBirthday(w http.ResponseWriter, r *http.Request) {
	ownerID := MustOwnerFromContext(r.Context())
	id := chi.URLParam(r, "id")

	var payload types.RecordPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %s", err.Error()))
		return
	}

	if errs := validation.ValidateRecordPayload(payload); len(errs) > 0 {
		WriteProblemWithErrors(w, r, "Request contains invalid fields", errs)
		return
	}

	record, err := h.store.UpdateRecord(r.Context(), ownerID, id, payload)
	if err != nil {
		MapStoreError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(record)
}

// DeleteBirthday handles DELETE /api/v1/owners/{ownerID}/birthdays/{id}
func (h *Handler) DeleteBirthday(w http.ResponseWriter, r *http.Request) {
	ownerID := MustOwnerFromContext(r.Context())
	id := chi.URLParam(r, "id")

	if err := h.store.DeleteRecord(r.Context(), ownerID, id); err != nil {
		MapStoreError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Changes handles GET /api/v1/owners/{ownerID}/changes?after=N&limit=N
func (h *Handler) Changes(w http.ResponseWriter, r *http.Request) {
	ownerID := MustOwnerFromContext(r.Context())

	after := int64(0)
	if v := r.URL.Query().Get("after"); v != "" {
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil || parsed < 0 {
			WriteProblem(w, r, http.StatusBadRequest, "after must be a non-negative integer")
			return
		}
		after = parsed
	}

	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 || parsed > 1000 {
			WriteProblem(w, r, http.StatusBadRequest, "limit must be between 1 and 1000")
			return
		}
		limit = parsed
	}

	changes, err := h.store.ChangesSince(r.Context(), ownerID, after, limit)
	if err != nil {
		slog.Error("changes query failed", "error", err, "owner_id", ownerID)
		MapStoreError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(struct {
		Changes []store.ChangeLogEntry `json:"changes"`
	}{Changes: changes})
}
