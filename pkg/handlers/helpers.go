package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"betihari-backend/pkg/utils"
)

// storyIDParam parses the {id} URL parameter, writing a 400 on failure.
func storyIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		utils.WriteBadRequestResponse(w, "Invalid story id")
		return 0, false
	}
	return id, true
}

// intQuery reads a positive integer query parameter bounded by max.
func intQuery(r *http.Request, key string, def, max int) int {
	n, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || n <= 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}
