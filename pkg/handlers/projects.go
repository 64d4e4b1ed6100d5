package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"betihari-backend/pkg/models"
	"betihari-backend/pkg/services"
	"betihari-backend/pkg/utils"
)

// ProjectsHandler serves fundraising projects.
type ProjectsHandler struct {
	projects *services.ProjectService
}

func NewProjectsHandler(projects *services.ProjectService) *ProjectsHandler {
	return &ProjectsHandler{projects: projects}
}

// List handles GET /api/projects?status=current|past|completed
func (h *ProjectsHandler) List(w http.ResponseWriter, r *http.Request) {
	var list []models.Project
	if raw := utils.GetQueryParam(r, "status", ""); raw != "" {
		status := models.ProjectStatus(raw)
		if !status.Valid() {
			utils.WriteBadRequestResponse(w, "Unknown project status")
			return
		}
		list = h.projects.GetByStatus(r.Context(), status)
	} else {
		list = h.projects.GetAll(r.Context())
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"projects": list, "total": len(list)})
}

// GetBySlug handles GET /api/projects/{slug}.
func (h *ProjectsHandler) GetBySlug(w http.ResponseWriter, r *http.Request) {
	project, err := h.projects.GetBySlug(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	if project == nil {
		utils.WriteNotFoundResponse(w, "Project not found")
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"project": project})
}

// Get handles GET /api/dashboard/projects/{id}.
func (h *ProjectsHandler) Get(w http.ResponseWriter, r *http.Request) {
	project, err := h.projects.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	if project == nil {
		utils.WriteNotFoundResponse(w, "Project not found")
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"project": project})
}

// Create handles POST /api/dashboard/projects.
func (h *ProjectsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.CreateProjectRequest
	if !utils.DecodeAndValidate(w, r, &req) {
		return
	}
	project, err := h.projects.Create(r.Context(), req)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteCreatedResponse(w, map[string]interface{}{"project": project})
}

// Update handles PATCH /api/dashboard/projects/{id}.
func (h *ProjectsHandler) Update(w http.ResponseWriter, r *http.Request) {
	var patch models.ProjectPatch
	if !utils.DecodeAndValidate(w, r, &patch) {
		return
	}
	project, err := h.projects.Update(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"project": project})
}

// Delete handles DELETE /api/dashboard/projects/{id}.
func (h *ProjectsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.projects.Delete(r.Context(), id); err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"deleted": true, "id": id})
}

// MoveUp handles POST /api/dashboard/projects/{id}/move-up.
func (h *ProjectsHandler) MoveUp(w http.ResponseWriter, r *http.Request) {
	list, err := h.projects.MoveUp(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"projects": list})
}

// MoveDown handles POST /api/dashboard/projects/{id}/move-down.
func (h *ProjectsHandler) MoveDown(w http.ResponseWriter, r *http.Request) {
	list, err := h.projects.MoveDown(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"projects": list})
}

// SetStatus handles PUT /api/dashboard/projects/{id}/status.
func (h *ProjectsHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status models.ProjectStatus `json:"status" validate:"required"`
	}
	if !utils.DecodeAndValidate(w, r, &req) {
		return
	}
	project, err := h.projects.SetStatus(r.Context(), chi.URLParam(r, "id"), req.Status)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"project": project})
}
