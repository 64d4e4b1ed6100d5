package handlers

import (
	"net/http"

	log "github.com/sirupsen/logrus"

	"betihari-backend/pkg/models"
	"betihari-backend/pkg/services"
	"betihari-backend/pkg/utils"
)

// StoriesHandler serves public story pages and the dashboard story editor.
type StoriesHandler struct {
	stories      *services.StoryService
	interactions *services.InteractionService
}

func NewStoriesHandler(stories *services.StoryService, interactions *services.InteractionService) *StoriesHandler {
	return &StoriesHandler{stories: stories, interactions: interactions}
}

// ListPublished handles GET /api/stories?category=
func (h *StoriesHandler) ListPublished(w http.ResponseWriter, r *http.Request) {
	list := h.stories.GetPublished(r.Context())
	if category := models.StoryCategory(r.URL.Query().Get("category")); category != "" {
		filtered := []models.Story{}
		for _, s := range list {
			if s.Category == category {
				filtered = append(filtered, s)
			}
		}
		list = filtered
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"stories": list, "total": len(list)})
}

// Featured handles GET /api/stories/featured?limit=
func (h *StoriesHandler) Featured(w http.ResponseWriter, r *http.Request) {
	list := h.stories.Featured(r.Context(), intQuery(r, "limit", 3, 20))
	utils.WriteSuccessResponse(w, map[string]interface{}{"stories": list})
}

// GetPublished handles GET /api/stories/{id}. Drafts are not visible.
func (h *StoriesHandler) GetPublished(w http.ResponseWriter, r *http.Request) {
	id, ok := storyIDParam(w, r)
	if !ok {
		return
	}
	story := h.stories.GetByID(r.Context(), id)
	if story == nil || !story.Published {
		utils.WriteNotFoundResponse(w, "Story not found")
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"story": story})
}

// ListAll handles GET /api/dashboard/stories.
func (h *StoriesHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	list := h.stories.GetAll(r.Context())
	utils.WriteSuccessResponse(w, map[string]interface{}{
		"stories": list,
		"total":   len(list),
		"pending": h.stories.Dirty(),
	})
}

// SaveAll handles PUT /api/dashboard/stories with the complete collection.
// The last save wins.
func (h *StoriesHandler) SaveAll(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Stories []models.Story `json:"stories" validate:"dive"`
	}
	if !utils.DecodeAndValidate(w, r, &req) {
		return
	}
	if req.Stories == nil {
		req.Stories = []models.Story{}
	}
	synced, err := h.stories.SaveStories(r.Context(), req.Stories)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{
		"stories": h.stories.GetAll(r.Context()),
		"synced":  synced,
	})
}

// Create handles POST /api/dashboard/stories.
func (h *StoriesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var story models.Story
	if !utils.DecodeAndValidate(w, r, &story) {
		return
	}
	created, err := h.stories.Create(r.Context(), story)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteCreatedResponse(w, map[string]interface{}{"story": created})
}

// Get handles GET /api/dashboard/stories/{id}, drafts included.
func (h *StoriesHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := storyIDParam(w, r)
	if !ok {
		return
	}
	story := h.stories.GetByID(r.Context(), id)
	if story == nil {
		utils.WriteNotFoundResponse(w, "Story not found")
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"story": story})
}

// Update handles PATCH /api/dashboard/stories/{id}.
func (h *StoriesHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := storyIDParam(w, r)
	if !ok {
		return
	}
	var patch models.StoryPatch
	if !utils.DecodeAndValidate(w, r, &patch) {
		return
	}
	updated, err := h.stories.Update(r.Context(), id, patch)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"story": updated})
}

// Delete handles DELETE /api/dashboard/stories/{id} and removes the story's
// interaction record as well.
func (h *StoriesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := storyIDParam(w, r)
	if !ok {
		return
	}
	if err := h.stories.Delete(r.Context(), id); err != nil {
		utils.WriteError(w, err)
		return
	}
	if err := h.interactions.Delete(r.Context(), id); err != nil {
		log.WithError(err).WithField("story", id).Warn("failed to delete story interactions")
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"deleted": true, "id": id})
}
