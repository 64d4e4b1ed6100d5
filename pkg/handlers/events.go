package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"betihari-backend/pkg/access"
	"betihari-backend/pkg/events"
	"betihari-backend/pkg/middleware"
	"betihari-backend/pkg/models"
	"betihari-backend/pkg/utils"
)

const (
	sseBuffer    = 16
	sseHeartbeat = 25 * time.Second
)

// topicPaths maps each streamable topic to the dashboard path whose gate it
// shares. An empty path marks a public topic.
var topicPaths = map[string]string{
	events.TopicStoriesChanged:      "",
	events.TopicProjectsChanged:     "",
	events.TopicInteractionsChanged: "",
	events.TopicUsersChanged:        "/dashboard/users",
	events.TopicDonationCompleted:   "/dashboard/donations",
}

// authorizeTopic writes the rejection and returns false when the request may
// not stream topic. The wildcard topic is reserved for Administration.
func authorizeTopic(w http.ResponseWriter, r *http.Request, topic string) bool {
	path, known := topicPaths[topic]
	if !known && topic != events.TopicAll {
		utils.WriteValidationErrorResponse(w, "Unknown topic", topic)
		return false
	}
	if known && path == "" {
		return true
	}
	claims, ok := middleware.GetClaimsFromContext(r.Context())
	if !ok {
		utils.WriteUnauthorizedResponse(w, "Authentication required for this topic")
		return false
	}
	team := models.NormalizeTeam(string(claims.Team))
	allowed := team == models.TeamAdministration
	if topic != events.TopicAll {
		allowed = access.Decide(path, true, string(team)).Allowed
	}
	if !allowed {
		utils.WriteForbiddenResponse(w, "Your team cannot follow this topic")
		return false
	}
	return true
}

// EventsHandler streams bus notifications as server-sent events.
type EventsHandler struct {
	bus events.Broker
}

func NewEventsHandler(bus events.Broker) *EventsHandler {
	return &EventsHandler{bus: bus}
}

// Stream handles GET /api/events?topic=. Content topics are public; the others
// follow the role gate of the matching dashboard page.
func (h *EventsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	topic := utils.GetQueryParam(r, "topic", events.TopicStoriesChanged)
	if !authorizeTopic(w, r, topic) {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.WriteInternalServerErrorResponse(w, "Streaming is not supported")
		return
	}

	ch, cancel := h.bus.Subscribe(topic, sseBuffer)
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	heartbeat := time.NewTicker(sseHeartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case ev, open := <-ch:
			if !open {
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				log.WithError(err).WithField("topic", ev.Topic).Warn("failed to encode event")
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Topic, data)
			flusher.Flush()
		}
	}
}
