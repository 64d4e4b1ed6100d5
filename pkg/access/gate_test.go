package access

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"betihari-backend/pkg/models"
)

func TestDecide_PolicyTable(t *testing.T) {
	board := string(models.TeamBoard)
	finance := string(models.TeamFinance)
	admin := string(models.TeamAdministration)
	comms := string(models.TeamCommunications)

	allowed := map[string][]string{
		"/dashboard":            {board, finance, admin, comms},
		"/dashboard/stories":    {admin, comms},
		"/dashboard/stories/12": {admin, comms},
		"/dashboard/projects":   {admin, comms},
		"/dashboard/donations":  {board, finance, admin},
		"/dashboard/users":      {admin},
		"/dashboard/emails":     {board, finance, admin, comms},
		"/dashboard/unknown":    {admin},
	}

	for path, teams := range allowed {
		for _, team := range []string{board, finance, admin, comms} {
			want := false
			for _, t2 := range teams {
				if t2 == team {
					want = true
				}
			}
			d := Decide(path, true, team)
			assert.Equal(t, want, d.Allowed, "%s as %s", path, team)
			if !want {
				assert.Equal(t, DashboardRoot, d.Redirect, "%s as %s", path, team)
			}
		}
	}
}

func TestDecide_AdministrationAlwaysAllowed(t *testing.T) {
	for _, path := range []string{"/dashboard", "/dashboard/users", "/dashboard/donations", "/dashboard/stories/new", "/dashboard/whatever/deep"} {
		assert.True(t, Decide(path, true, "administration").Allowed, path)
	}
}

func TestDecide_Anonymous(t *testing.T) {
	d := Decide("/dashboard/stories", false, "")
	assert.False(t, d.Allowed)
	assert.Equal(t, LoginPath, d.Redirect)

	assert.True(t, Decide("/dashboard/login", false, "").Allowed)
	assert.True(t, Decide("/stories/3", false, "").Allowed)
}

func TestDecide_NormalizesTeamAndPath(t *testing.T) {
	assert.True(t, Decide("/dashboard/donations/", true, "board of directors").Allowed)
	assert.True(t, Decide("/dashboard/donations?range=30d", true, "BOARD OF DIRECTORS").Allowed)
	assert.False(t, Decide("/dashboard/storiesx", true, string(models.TeamCommunications)).Allowed)
}

func TestAllowedPaths(t *testing.T) {
	assert.Equal(t, []string{"/dashboard", "/dashboard/donations", "/dashboard/emails"}, AllowedPaths(string(models.TeamFinance)))
	assert.Len(t, AllowedPaths(string(models.TeamAdministration)), len(policy))
}
