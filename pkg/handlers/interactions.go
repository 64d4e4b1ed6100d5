package handlers

import (
	"net/http"

	"betihari-backend/pkg/middleware"
	"betihari-backend/pkg/models"
	"betihari-backend/pkg/services"
	"betihari-backend/pkg/utils"
)

// InteractionsHandler serves likes, comments, views and shares. Visitors are
// identified by the cookies issued by middleware.Visitor.
type InteractionsHandler struct {
	stories      *services.StoryService
	interactions *services.InteractionService
}

func NewInteractionsHandler(stories *services.StoryService, interactions *services.InteractionService) *InteractionsHandler {
	return &InteractionsHandler{stories: stories, interactions: interactions}
}

// publishedStory resolves {id} to a published story, writing 404 otherwise.
func (h *InteractionsHandler) publishedStory(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, ok := storyIDParam(w, r)
	if !ok {
		return 0, false
	}
	if s := h.stories.GetByID(r.Context(), id); s == nil || !s.Published {
		utils.WriteNotFoundResponse(w, "Story not found")
		return 0, false
	}
	return id, true
}

// Get handles GET /api/stories/{id}/interactions.
func (h *InteractionsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.publishedStory(w, r)
	if !ok {
		return
	}
	summary, err := h.interactions.Get(r.Context(), id, middleware.VisitorKey(r.Context()))
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteSuccessResponse(w, summary)
}

// Like handles POST /api/stories/{id}/like.
func (h *InteractionsHandler) Like(w http.ResponseWriter, r *http.Request) {
	id, ok := h.publishedStory(w, r)
	if !ok {
		return
	}
	summary, err := h.interactions.AddLike(r.Context(), id, middleware.VisitorKey(r.Context()))
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteSuccessResponse(w, summary)
}

// Unlike handles DELETE /api/stories/{id}/like.
func (h *InteractionsHandler) Unlike(w http.ResponseWriter, r *http.Request) {
	id, ok := h.publishedStory(w, r)
	if !ok {
		return
	}
	summary, err := h.interactions.RemoveLike(r.Context(), id, middleware.VisitorKey(r.Context()))
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteSuccessResponse(w, summary)
}

// Comment handles POST /api/stories/{id}/comments.
func (h *InteractionsHandler) Comment(w http.ResponseWriter, r *http.Request) {
	id, ok := h.publishedStory(w, r)
	if !ok {
		return
	}
	var req models.CommentRequest
	if !utils.DecodeAndValidate(w, r, &req) {
		return
	}
	comment, err := h.interactions.AddComment(r.Context(), id, req)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteCreatedResponse(w, map[string]interface{}{"comment": comment})
}

// View handles POST /api/stories/{id}/view. A view counts once per browser session.
func (h *InteractionsHandler) View(w http.ResponseWriter, r *http.Request) {
	id, ok := h.publishedStory(w, r)
	if !ok {
		return
	}
	counted, err := h.interactions.IncrementViews(r.Context(), id, middleware.SessionKey(r.Context()))
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"counted": counted})
}

// Share handles POST /api/stories/{id}/share.
func (h *InteractionsHandler) Share(w http.ResponseWriter, r *http.Request) {
	id, ok := h.publishedStory(w, r)
	if !ok {
		return
	}
	if err := h.interactions.IncrementShares(r.Context(), id); err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"shared": true})
}

// Activity handles GET /api/dashboard/activity?limit=
func (h *InteractionsHandler) Activity(w http.ResponseWriter, r *http.Request) {
	utils.WriteSuccessResponse(w, map[string]interface{}{
		"activity": h.interactions.RecentActivity(r.Context(), intQuery(r, "limit", 20, 200)),
	})
}
