package handlers

import (
	"net/http"

	"betihari-backend/pkg/media"
	"betihari-backend/pkg/utils"
)

// MediaHandler hands out presigned upload URLs for story and project images.
type MediaHandler struct {
	uploader media.Uploader
}

func NewMediaHandler(u media.Uploader) *MediaHandler {
	return &MediaHandler{uploader: u}
}

// Presign handles POST /api/dashboard/media/presign.
func (h *MediaHandler) Presign(w http.ResponseWriter, r *http.Request) {
	var req media.PresignRequest
	if !utils.DecodeAndValidate(w, r, &req) {
		return
	}
	upload, err := h.uploader.Presign(r.Context(), req)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteCreatedResponse(w, upload)
}
