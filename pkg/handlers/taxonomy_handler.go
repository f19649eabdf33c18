package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arborlabs/taxonomy-engine/pkg/apperrors"
	"github.com/arborlabs/taxonomy-engine/pkg/auth"
	"github.com/arborlabs/taxonomy-engine/pkg/models"
	"github.com/arborlabs/taxonomy-engine/pkg/repositories"
	"github.com/arborlabs/taxonomy-engine/pkg/services"
)

// TaxonomyListResponse for GET /api/taxonomies
type TaxonomyListResponse struct {
	Taxonomies []*models.Taxonomy `json:"taxonomies"`
	Total      int                `json:"total"`
}

// TreeResponse for GET /api/taxonomies/{id}/tree
type TreeResponse struct {
	TaxonomyID uuid.UUID                  `json:"taxonomy_id"`
	Roots      []*models.CategoryTreeNode `json:"roots"`
	Total      int                        `json:"total"`
}

// CloneRequest for POST /api/taxonomies/{id}/clone
type CloneRequest struct {
	Name      string `json:"name"`
	Namespace string `json:"namespace,omitempty"`
	Slug      string `json:"slug,omitempty"`
}

// BulkRequest for POST /api/taxonomies/bulk
type BulkRequest struct {
	Op  services.BulkOp `json:"op"`
	IDs []uuid.UUID     `json:"ids"`
}

// TaxonomyHandler handles taxonomy HTTP requests.
type TaxonomyHandler struct {
	taxonomyService services.TaxonomyService
	logger          *zap.Logger
}

// NewTaxonomyHandler creates a new taxonomy handler.
func NewTaxonomyHandler(taxonomyService services.TaxonomyService, logger *zap.Logger) *TaxonomyHandler {
	return &TaxonomyHandler{
		taxonomyService: taxonomyService,
		logger:          logger,
	}
}

// RegisterRoutes registers the taxonomy handler's routes on the given mux.
func (h *TaxonomyHandler) RegisterRoutes(mux *http.ServeMux) {
	base := "/api/taxonomies"

	mux.HandleFunc("GET "+base, auth.Middleware(h.List))
	mux.HandleFunc("POST "+base, auth.Middleware(h.Create))
	mux.HandleFunc("POST "+base+"/bulk", auth.Middleware(h.Bulk))
	mux.HandleFunc("GET "+base+"/{id}", auth.Middleware(h.Get))
	mux.HandleFunc("PATCH "+base+"/{id}", auth.Middleware(h.Update))
	mux.HandleFunc("DELETE "+base+"/{id}", auth.Middleware(h.Delete))
	mux.HandleFunc("GET "+base+"/{id}/tree", auth.Middleware(h.Tree))
	mux.HandleFunc("POST "+base+"/{id}/clone", auth.Middleware(h.Clone))
}

// List handles GET /api/taxonomies
func (h *TaxonomyHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	filter := repositories.TaxonomyListFilter{
		Namespace: q.Get("namespace"),
		Status:    models.TaxonomyStatus(q.Get("status")),
		Limit:     limit,
		Offset:    offset,
	}

	taxonomies, err := h.taxonomyService.List(r.Context(), filter)
	if err != nil {
		h.writeServiceError(w, "list_taxonomies_failed", err)
		return
	}

	response := TaxonomyListResponse{
		Taxonomies: taxonomies,
		Total:      len(taxonomies),
	}

	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Create handles POST /api/taxonomies
func (h *TaxonomyHandler) Create(w http.ResponseWriter, r *http.Request) {
	var input services.CreateTaxonomyInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	tax, err := h.taxonomyService.Create(r.Context(), input)
	if err != nil {
		h.writeServiceError(w, "create_taxonomy_failed", err)
		return
	}

	if err := WriteJSON(w, http.StatusCreated, tax); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Get handles GET /api/taxonomies/{id}
func (h *TaxonomyHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	tax, err := h.taxonomyService.Get(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, "get_taxonomy_failed", err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, tax); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Update handles PATCH /api/taxonomies/{id}
func (h *TaxonomyHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	var patch models.TaxonomyPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	tax, err := h.taxonomyService.Update(r.Context(), id, &patch)
	if err != nil {
		h.writeServiceError(w, "update_taxonomy_failed", err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, tax); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Delete handles DELETE /api/taxonomies/{id}
func (h *TaxonomyHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	if err := h.taxonomyService.Remove(r.Context(), id); err != nil {
		h.writeServiceError(w, "delete_taxonomy_failed", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Tree handles GET /api/taxonomies/{id}/tree
func (h *TaxonomyHandler) Tree(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	depth, _ := strconv.Atoi(r.URL.Query().Get("depth"))

	roots, err := h.taxonomyService.GetCategoryTree(r.Context(), id, depth)
	if err != nil {
		h.writeServiceError(w, "get_category_tree_failed", err)
		return
	}

	response := TreeResponse{
		TaxonomyID: id,
		Roots:      roots,
		Total:      services.CountTreeNodes(roots),
	}

	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Clone handles POST /api/taxonomies/{id}/clone
func (h *TaxonomyHandler) Clone(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	var req CloneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	tax, err := h.taxonomyService.Clone(r.Context(), id, services.CloneInput{
		Name:      req.Name,
		Namespace: req.Namespace,
		Slug:      req.Slug,
	})
	if err != nil {
		h.writeServiceError(w, "clone_taxonomy_failed", err)
		return
	}

	if err := WriteJSON(w, http.StatusCreated, tax); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Bulk handles POST /api/taxonomies/bulk
func (h *TaxonomyHandler) Bulk(w http.ResponseWriter, r *http.Request) {
	var req BulkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	result, err := h.taxonomyService.BulkOperation(r.Context(), req.Op, req.IDs)
	if err != nil {
		h.writeServiceError(w, "bulk_operation_failed", err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, result); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

func (h *TaxonomyHandler) parseID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_id", "Invalid taxonomy id")
		return uuid.Nil, false
	}
	return id, true
}

func (h *TaxonomyHandler) writeError(w http.ResponseWriter, status int, code, message string) {
	if err := ErrorResponse(w, status, code, message); err != nil {
		h.logger.Error("Failed to write error response", zap.Error(err))
	}
}

func (h *TaxonomyHandler) writeServiceError(w http.ResponseWriter, code string, err error) {
	status := StatusFromError(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("Taxonomy operation failed", zap.String("code", code), zap.Error(err))
	}
	h.writeError(w, status, code, err.Error())
}

// StatusFromError maps service errors to HTTP status codes.
func StatusFromError(err error) int {
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperrors.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, apperrors.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, apperrors.ErrHasDependencies):
		return http.StatusConflict
	case errors.Is(err, apperrors.ErrValidation):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
