package http

import (
	"net/http"

	"chreosis/internal/domain/category"
)

type CategoryHandler struct {
	categories *category.Service
}

func NewCategoryHandler(categories *category.Service) *CategoryHandler {
	return &CategoryHandler{categories: categories}
}

type CategoryRequest struct {
	Name *string `json:"name"`
	Type *string `json:"type"`
}

// HandleCategories handles GET (list) and POST (create) on /api/categories/
func (h *CategoryHandler) HandleCategories(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodGet:
		categories, err := h.categories.ListCategories(r.Context(), userID)
		if err != nil {
			writeError(w, r, err, "Failed to list categories")
			return
		}
		writeJSON(w, http.StatusOK, categories)

	case http.MethodPost:
		var req CategoryRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		params := category.CreateParams{UserID: userID}
		if req.Name != nil {
			params.Name = *req.Name
		}
		if req.Type != nil {
			params.Type = *req.Type
		}
		c, err := h.categories.CreateCategory(r.Context(), params)
		if err != nil {
			writeError(w, r, err, "Failed to create category")
			return
		}
		writeJSON(w, http.StatusCreated, c)

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleCategoryByID handles GET, PATCH and DELETE on /api/categories/{id}
func (h *CategoryHandler) HandleCategoryByID(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	categoryID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodGet:
		c, err := h.categories.GetCategory(r.Context(), categoryID, userID)
		if err != nil {
			writeError(w, r, err, "Failed to get category")
			return
		}
		writeJSON(w, http.StatusOK, c)

	case http.MethodPatch:
		var req CategoryRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		c, err := h.categories.UpdateCategory(r.Context(), categoryID, userID, category.UpdateParams{
			Name: req.Name,
			Type: req.Type,
		})
		if err != nil {
			writeError(w, r, err, "Failed to update category")
			return
		}
		writeJSON(w, http.StatusOK, c)

	case http.MethodDelete:
		if err := h.categories.DeleteCategory(r.Context(), categoryID, userID); err != nil {
			writeError(w, r, err, "Failed to delete category")
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}
