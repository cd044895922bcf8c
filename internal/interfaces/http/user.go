package http

import (
	"net/http"

	"chreosis/internal/domain/user"
)

type UserHandler struct {
	users *user.Service
}

func NewUserHandler(users *user.Service) *UserHandler {
	return &UserHandler{users: users}
}

type UpdateUserRequest struct {
	Name        *string `json:"name"`
	Email       *string `json:"email"`
	PhoneNumber *string `json:"phoneNumber"`
}

// HandleMe handles GET, PATCH and DELETE for the current user
func (h *UserHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.handleGetMe(w, r, userID)
	case http.MethodPatch:
		h.handleUpdateMe(w, r, userID)
	case http.MethodDelete:
		h.handleDeleteMe(w, r, userID)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *UserHandler) handleGetMe(w http.ResponseWriter, r *http.Request, userID int64) {
	u, err := h.users.GetUser(r.Context(), userID)
	if err != nil {
		writeError(w, r, err, "Failed to get user")
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *UserHandler) handleUpdateMe(w http.ResponseWriter, r *http.Request, userID int64) {
	var req UpdateUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	u, err := h.users.UpdateUser(r.Context(), userID, user.UpdateUserParams{
		Name:        req.Name,
		Email:       req.Email,
		PhoneNumber: req.PhoneNumber,
	})
	if err != nil {
		writeError(w, r, err, "Failed to update user")
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// handleDeleteMe removes the user with everything they own and ends the session.
func (h *UserHandler) handleDeleteMe(w http.ResponseWriter, r *http.Request, userID int64) {
	if err := h.users.DeleteUser(r.Context(), userID); err != nil {
		writeError(w, r, err, "Failed to delete user")
		return
	}
	clearAuthCookie(w, r)
	w.WriteHeader(http.StatusNoContent)
}
