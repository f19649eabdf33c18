package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arborlabs/taxonomy-engine/pkg/auth"
	"github.com/arborlabs/taxonomy-engine/pkg/models"
	"github.com/arborlabs/taxonomy-engine/pkg/services"
)

// ClassificationListResponse for GET /api/classifications
type ClassificationListResponse struct {
	Classifications []*models.Classification `json:"classifications"`
	Total           int                      `json:"total"`
}

// ResolveRequest for POST /api/classifications/{id}/resolve
type ResolveRequest struct {
	Status models.ClassificationStatus `json:"status"`
}

// ClassificationHandler handles classification HTTP requests.
type ClassificationHandler struct {
	classificationService services.ClassificationService
	logger                *zap.Logger
}

// NewClassificationHandler creates a new classification handler.
func NewClassificationHandler(classificationService services.ClassificationService, logger *zap.Logger) *ClassificationHandler {
	return &ClassificationHandler{
		classificationService: classificationService,
		logger:                logger,
	}
}

// RegisterRoutes registers the classification handler's routes on the given mux.
func (h *ClassificationHandler) RegisterRoutes(mux *http.ServeMux) {
	base := "/api/classifications"

	mux.HandleFunc("GET "+base, auth.Middleware(h.ListByEntity))
	mux.HandleFunc("POST "+base, auth.Middleware(h.Assign))
	mux.HandleFunc("POST "+base+"/{id}/resolve", auth.Middleware(h.Resolve))
}

// Assign handles POST /api/classifications
func (h *ClassificationHandler) Assign(w http.ResponseWriter, r *http.Request) {
	var input services.AssignInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	cl, err := h.classificationService.Assign(r.Context(), input)
	if err != nil {
		h.writeServiceError(w, "assign_classification_failed", err)
		return
	}

	if err := WriteJSON(w, http.StatusCreated, cl); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Resolve handles POST /api/classifications/{id}/resolve
func (h *ClassificationHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_id", "Invalid classification id")
		return
	}

	var req ResolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	if err := h.classificationService.Resolve(r.Context(), id, req.Status); err != nil {
		h.writeServiceError(w, "resolve_classification_failed", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListByEntity handles GET /api/classifications?entity_type=...&entity_id=...
func (h *ClassificationHandler) ListByEntity(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	entityType := q.Get("entity_type")
	entityID := q.Get("entity_id")
	if entityType == "" || entityID == "" {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "entity_type and entity_id are required")
		return
	}

	list, err := h.classificationService.ListByEntity(r.Context(), entityType, entityID)
	if err != nil {
		h.writeServiceError(w, "list_classifications_failed", err)
		return
	}

	response := ClassificationListResponse{
		Classifications: list,
		Total:           len(list),
	}

	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

func (h *ClassificationHandler) writeError(w http.ResponseWriter, status int, code, message string) {
	if err := ErrorResponse(w, status, code, message); err != nil {
		h.logger.Error("Failed to write error response", zap.Error(err))
	}
}

func (h *ClassificationHandler) writeServiceError(w http.ResponseWriter, code string, err error) {
	status := StatusFromError(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("Classification operation failed", zap.String("code", code), zap.Error(err))
	}
	h.writeError(w, status, code, err.Error())
}
