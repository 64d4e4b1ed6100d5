package models

import "time"

// ProjectStatus places a project in the current or past section.
type ProjectStatus string

const (
	ProjectCurrent   ProjectStatus = "current"
	ProjectPast      ProjectStatus = "past"
	ProjectCompleted ProjectStatus = "completed"
)

// Valid reports whether s is a known status.
func (s ProjectStatus) Valid() bool {
	switch s {
	case ProjectCurrent, ProjectPast, ProjectCompleted:
		return true
	}
	return false
}

// Project is a fundraising campaign.
type Project struct {
	ID               string        `json:"id" db:"id"`
	Title            string        `json:"title" db:"title"`
	Slug             string        `json:"slug" db:"slug"`
	ShortDescription string        `json:"shortDescription" db:"short_description"`
	Story            string        `json:"story" db:"story"`
	TargetFunds      int64         `json:"targetFunds" db:"target_funds"`
	RaisedFunds      int64         `json:"raisedFunds" db:"raised_funds"`
	Status           ProjectStatus `json:"status" db:"status"`
	Order            int           `json:"order" db:"sort_order"`
	Images           []string      `json:"images" db:"images"`
	CreatedAt        time.Time     `json:"createdAt" db:"created_at"`
	UpdatedAt        time.Time     `json:"updatedAt" db:"updated_at"`
}

// CreateProjectRequest is the payload for a new project; Slug is derived from Title when empty.
type CreateProjectRequest struct {
	Title            string        `json:"title" validate:"required"`
	Slug             string        `json:"slug"`
	ShortDescription string        `json:"shortDescription"`
	Story            string        `json:"story"`
	TargetFunds      int64         `json:"targetFunds" validate:"gte=0"`
	RaisedFunds      int64         `json:"raisedFunds" validate:"gte=0"`
	Status           ProjectStatus `json:"status"`
	Images           []string      `json:"images"`
}

// ProjectPatch is a partial project update; nil fields are left untouched.
type ProjectPatch struct {
	Title            *string        `json:"title"`
	Slug             *string        `json:"slug"`
	ShortDescription *string        `json:"shortDescription"`
	Story            *string        `json:"story"`
	TargetFunds      *int64         `json:"targetFunds" validate:"omitempty,gte=0"`
	RaisedFunds      *int64         `json:"raisedFunds" validate:"omitempty,gte=0"`
	Status           *ProjectStatus `json:"status"`
	Images           *[]string      `json:"images"`
}

// Apply merges the present fields of p into project. Slug changes are
// handled by the caller so uniqueness can be checked.
func (p ProjectPatch) Apply(project *Project) {
	if p.Title != nil {
		project.Title = *p.Title
	}
	if p.ShortDescription != nil {
		project.ShortDescription = *p.ShortDescription
	}
	if p.Story != nil {
		project.Story = *p.Story
	}
	if p.TargetFunds != nil {
		project.TargetFunds = *p.TargetFunds
	}
	if p.RaisedFunds != nil {
		project.RaisedFunds = *p.RaisedFunds
	}
	if p.Status != nil {
		project.Status = *p.Status
	}
	if p.Images != nil {
		project.Images = append([]string(nil), (*p.Images)...)
	}
}
