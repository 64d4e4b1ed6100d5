// Package access decides which dashboard routes a team may open.
package access

import (
	"strings"

	"betihari-backend/pkg/models"
)

const (
	DashboardRoot = "/dashboard"
	LoginPath     = "/dashboard/login"
)

// Decision is the gate outcome. Redirect is set whenever Allowed is false.
type Decision struct {
	Allowed  bool   `json:"allowed"`
	Redirect string `json:"redirect,omitempty"`
}

type rule struct {
	path   string
	prefix bool
	teams  []models.Team
}

// policy is evaluated in order; the first matching rule wins.
var policy = []rule{
	{path: "/dashboard", teams: nil},
	{path: "/dashboard/stories", prefix: true, teams: []models.Team{models.TeamAdministration, models.TeamCommunications}},
	{path: "/dashboard/projects", prefix: true, teams: []models.Team{models.TeamAdministration, models.TeamCommunications}},
	{path: "/dashboard/donations", teams: []models.Team{models.TeamBoard, models.TeamFinance, models.TeamAdministration}},
	{path: "/dashboard/users", teams: []models.Team{models.TeamAdministration}},
	{path: "/dashboard/emails", teams: nil},
}

func (r rule) matches(path string) bool {
	if path == r.path {
		return true
	}
	return r.prefix && strings.HasPrefix(path, r.path+"/")
}

// allows reports whether team may open the rule's path. A nil team list means
// every authenticated user.
func (r rule) allows(team models.Team) bool {
	if r.teams == nil {
		return true
	}
	for _, t := range r.teams {
		if t == team {
			return true
		}
	}
	return false
}

func cleanPath(path string) string {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
	}
	return path
}

// Decide applies the dashboard policy. Anonymous users are sent to the login
// page, authenticated users without access to the dashboard root.
// Administration may open every dashboard path.
func Decide(path string, authenticated bool, team string) Decision {
	path = cleanPath(path)
	if path == LoginPath {
		return Decision{Allowed: true}
	}
	if path != DashboardRoot && !strings.HasPrefix(path, DashboardRoot+"/") {
		return Decision{Allowed: true}
	}
	if !authenticated {
		return Decision{Redirect: LoginPath}
	}

	canonical := models.NormalizeTeam(team)
	if canonical == models.TeamAdministration {
		return Decision{Allowed: true}
	}

	for _, r := range policy {
		if r.matches(path) {
			if r.allows(canonical) {
				return Decision{Allowed: true}
			}
			return Decision{Redirect: DashboardRoot}
		}
	}
	// unknown dashboard sub-paths are Administration only
	return Decision{Redirect: DashboardRoot}
}

// AllowedPaths lists the policy paths team may open, for building navigation.
func AllowedPaths(team string) []string {
	paths := []string{}
	for _, r := range policy {
		if Decide(r.path, true, team).Allowed {
			paths = append(paths, r.path)
		}
	}
	return paths
}
