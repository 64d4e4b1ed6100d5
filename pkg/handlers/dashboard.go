package handlers

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"betihari-backend/pkg/access"
	"betihari-backend/pkg/middleware"
	"betihari-backend/pkg/models"
	"betihari-backend/pkg/payments"
	"betihari-backend/pkg/services"
	"betihari-backend/pkg/utils"
)

// overviewTimeout bounds the slowest overview section.
const overviewTimeout = 8 * time.Second

// DashboardHandler composes the dashboard landing page.
type DashboardHandler struct {
	stories      *services.StoryService
	projects     *services.ProjectService
	users        *services.UserService
	interactions *services.InteractionService
	analytics    *payments.Analytics
}

func NewDashboardHandler(
	stories *services.StoryService,
	projects *services.ProjectService,
	users *services.UserService,
	interactions *services.InteractionService,
	analytics *payments.Analytics,
) *DashboardHandler {
	return &DashboardHandler{
		stories:      stories,
		projects:     projects,
		users:        users,
		interactions: interactions,
		analytics:    analytics,
	}
}

// section is one overview panel. Error is set when the panel failed or is partial.
type section struct {
	Data  interface{} `json:"data,omitempty"`
	Error string      `json:"error,omitempty"`
}

// Overview handles GET /api/dashboard/overview. Sections load concurrently
// and each one fails on its own.
func (h *DashboardHandler) Overview(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), overviewTimeout)
	defer cancel()

	var team models.Team
	if claims, ok := middleware.GetClaimsFromContext(r.Context()); ok {
		team = claims.Team
	}

	var content, engagement, activity, donations section
	var g errgroup.Group

	g.Go(func() error {
		all := h.stories.GetAll(ctx)
		published := 0
		for _, s := range all {
			if s.Published {
				published++
			}
		}
		content.Data = map[string]int{
			"stories":          len(all),
			"publishedStories": published,
			"projects":         len(h.projects.GetAll(ctx)),
			"users":            len(h.users.GetAll(ctx)),
		}
		return nil
	})
	g.Go(func() error {
		totals, err := h.interactions.Totals(ctx)
		if err != nil {
			engagement.Error = "Engagement totals are unavailable"
			return nil
		}
		engagement.Data = totals
		return nil
	})
	g.Go(func() error {
		activity.Data = h.interactions.RecentActivity(ctx, 10)
		return nil
	})
	if access.Decide("/dashboard/donations", true, string(team)).Allowed {
		g.Go(func() error {
			report := h.analytics.Report(ctx)
			if len(report.Errors) > 0 {
				donations.Error = "Donation totals are incomplete"
			}
			if report.Summary != nil {
				donations.Data = report.Summary
			}
			return nil
		})
	}
	_ = g.Wait()

	payload := map[string]interface{}{
		"content":    content,
		"engagement": engagement,
		"activity":   activity,
	}
	if donations.Data != nil || donations.Error != "" {
		payload["donations"] = donations
	}
	utils.WriteSuccessResponse(w, payload)
}
