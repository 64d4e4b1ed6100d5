package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"betihari-backend/pkg/middleware"
	"betihari-backend/pkg/models"
	"betihari-backend/pkg/services"
	"betihari-backend/pkg/utils"
)

// UsersHandler manages dashboard accounts.
type UsersHandler struct {
	users *services.UserService
}

func NewUsersHandler(users *services.UserService) *UsersHandler {
	return &UsersHandler{users: users}
}

// List handles GET /api/dashboard/users.
func (h *UsersHandler) List(w http.ResponseWriter, r *http.Request) {
	list := h.users.GetAll(r.Context())
	utils.WriteSuccessResponse(w, map[string]interface{}{"users": list, "total": len(list)})
}

// Get handles GET /api/dashboard/users/{id}.
func (h *UsersHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	if user == nil {
		utils.WriteNotFoundResponse(w, "User not found")
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"user": user})
}

// Create handles POST /api/dashboard/users.
func (h *UsersHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.CreateUserRequest
	if !utils.DecodeAndValidate(w, r, &req) {
		return
	}
	user, err := h.users.Create(r.Context(), req)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteCreatedResponse(w, map[string]interface{}{"user": user})
}

// Update handles PATCH /api/dashboard/users/{id}.
func (h *UsersHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateUserRequest
	if !utils.DecodeAndValidate(w, r, &req) {
		return
	}
	user, err := h.users.Update(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"user": user})
}

// Delete handles DELETE /api/dashboard/users/{id}. Users cannot delete themselves.
func (h *UsersHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if claims, ok := middleware.GetClaimsFromContext(r.Context()); ok && claims.UserID == id {
		utils.WriteBadRequestResponse(w, "You cannot delete your own account")
		return
	}
	if err := h.users.Delete(r.Context(), id); err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"deleted": true, "id": id})
}
