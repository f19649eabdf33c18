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

// CategoryHandler handles category HTTP requests.
type CategoryHandler struct {
	categoryService services.CategoryService
	logger          *zap.Logger
}

// NewCategoryHandler creates a new category handler.
func NewCategoryHandler(categoryService services.CategoryService, logger *zap.Logger) *CategoryHandler {
	return &CategoryHandler{
		categoryService: categoryService,
		logger:          logger,
	}
}

// RegisterRoutes registers the category handler's routes on the given mux.
func (h *CategoryHandler) RegisterRoutes(mux *http.ServeMux) {
	base := "/api/categories"

	mux.HandleFunc("POST "+base, auth.Middleware(h.Create))
	mux.HandleFunc("GET "+base+"/{id}", auth.Middleware(h.Get))
	mux.HandleFunc("PATCH "+base+"/{id}", auth.Middleware(h.Update))
	mux.HandleFunc("DELETE "+base+"/{id}", auth.Middleware(h.Delete))
}

// Create handles POST /api/categories
func (h *CategoryHandler) Create(w http.ResponseWriter, r *http.Request) {
	var input services.CreateCategoryInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	cat, err := h.categoryService.Create(r.Context(), input)
	if err != nil {
		h.writeServiceError(w, "create_category_failed", err)
		return
	}

	if err := WriteJSON(w, http.StatusCreated, cat); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Get handles GET /api/categories/{id}
func (h *CategoryHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	cat, err := h.categoryService.Get(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, "get_category_failed", err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, cat); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Update handles PATCH /api/categories/{id}
func (h *CategoryHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	var patch models.CategoryPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	cat, err := h.categoryService.Update(r.Context(), id, &patch)
	if err != nil {
		h.writeServiceError(w, "update_category_failed", err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, cat); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Delete handles DELETE /api/categories/{id}
func (h *CategoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	if err := h.categoryService.Remove(r.Context(), id); err != nil {
		h.writeServiceError(w, "delete_category_failed", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *CategoryHandler) parseID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_id", "Invalid category id")
		return uuid.Nil, false
	}
	return id, true
}

func (h *CategoryHandler) writeError(w http.ResponseWriter, status int, code, message string) {
	if err := ErrorResponse(w, status, code, message); err != nil {
		h.logger.Error("Failed to write error response", zap.Error(err))
	}
}

func (h *CategoryHandler) writeServiceError(w http.ResponseWriter, code string, err error) {
	status := StatusFromError(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("Category operation failed", zap.String("code", code), zap.Error(err))
	}
	h.writeError(w, status, code, err.Error())
}
