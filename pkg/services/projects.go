package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gosimple/slug"
	log "github.com/sirupsen/logrus"

	"betihari-backend/pkg/database"
	"betihari-backend/pkg/events"
	"betihari-backend/pkg/models"
)

// ProjectService manages fundraising projects and their display order.
type ProjectService struct {
	store   database.ProjectStore
	bus     events.Broker
	timeout time.Duration
}

func NewProjectService(store database.ProjectStore, bus events.Broker, fetchTimeout time.Duration) *ProjectService {
	return &ProjectService{store: store, bus: bus, timeout: fetchTimeout}
}

func (s *ProjectService) publish(payload interface{}) {
	if s.bus != nil {
		s.bus.Publish(events.TopicProjectsChanged, payload)
	}
}

func sortProjects(list []models.Project) {
	sort.SliceStable(list, func(i, j int) bool { return list[i].Order < list[j].Order })
}

// GetAll returns projects sorted by order, or an empty list when the store
// does not answer within the fetch timeout.
func (s *ProjectService) GetAll(ctx context.Context) []models.Project {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	list, err := s.store.ListProjects(ctx)
	if err != nil {
		log.WithError(err).Warn("failed to load projects, serving empty list")
		return []models.Project{}
	}
	sortProjects(list)
	return list
}

// GetByStatus returns the projects of one section in display order.
func (s *ProjectService) GetByStatus(ctx context.Context, status models.ProjectStatus) []models.Project {
	section := []models.Project{}
	for _, p := range s.GetAll(ctx) {
		if p.Status == status {
			section = append(section, p)
		}
	}
	return section
}

// GetByID returns nil, nil when the project does not exist.
func (s *ProjectService) GetByID(ctx context.Context, id string) (*models.Project, error) {
	p, err := s.store.GetProject(ctx, id)
	if errors.Is(err, models.ErrNotFound) {
		return nil, nil
	}
	return p, err
}

// GetBySlug returns nil, nil when no project has the slug.
func (s *ProjectService) GetBySlug(ctx context.Context, projectSlug string) (*models.Project, error) {
	p, err := s.store.GetProjectBySlug(ctx, projectSlug)
	if errors.Is(err, models.ErrNotFound) {
		return nil, nil
	}
	return p, err
}

// uniqueSlug derives a slug from source and appends -2, -3, ... until no other
// project uses it. selfID excludes the project being updated.
func (s *ProjectService) uniqueSlug(ctx context.Context, source, selfID string) (string, error) {
	base := slug.Make(source)
	if base == "" {
		base = "project"
	}
	candidate := base
	for n := 2; ; n++ {
		existing, err := s.store.GetProjectBySlug(ctx, candidate)
		if errors.Is(err, models.ErrNotFound) {
			return candidate, nil
		}
		if err != nil {
			return "", err
		}
		if existing.ID == selfID {
			return candidate, nil
		}
		candidate = base + "-" + strconv.Itoa(n)
	}
}

func nextOrder(list []models.Project) int {
	max := -1
	for _, p := range list {
		if p.Order > max {
			max = p.Order
		}
	}
	return max + 1
}

// Create stores a new project at the end of the display order.
func (s *ProjectService) Create(ctx context.Context, req models.CreateProjectRequest) (*models.Project, error) {
	status := req.Status
	if status == "" {
		status = models.ProjectCurrent
	}
	if !status.Valid() {
		return nil, fmt.Errorf("status %q: %w", status, models.ErrInvalidInput)
	}

	source := req.Slug
	if strings.TrimSpace(source) == "" {
		source = req.Title
	}
	projectSlug, err := s.uniqueSlug(ctx, source, "")
	if err != nil {
		return nil, err
	}

	list, err := s.store.ListProjects(ctx)
	if err != nil {
		return nil, err
	}

	images := req.Images
	if images == nil {
		images = []string{}
	}
	p := &models.Project{
		Title:            strings.TrimSpace(req.Title),
		Slug:             projectSlug,
		ShortDescription: req.ShortDescription,
		Story:            req.Story,
		TargetFunds:      req.TargetFunds,
		RaisedFunds:      req.RaisedFunds,
		Status:           status,
		Order:            nextOrder(list),
		Images:           images,
	}
	if err := s.store.CreateProject(ctx, p); err != nil {
		return nil, err
	}
	s.publish(p.ID)
	return p, nil
}

// Update merges patch into the project. A slug change is re-derived and kept unique.
func (s *ProjectService) Update(ctx context.Context, id string, patch models.ProjectPatch) (*models.Project, error) {
	p, err := s.store.GetProject(ctx, id)
	if err != nil {
		return nil, err
	}
	if patch.Status != nil && !patch.Status.Valid() {
		return nil, fmt.Errorf("status %q: %w", *patch.Status, models.ErrInvalidInput)
	}
	patch.Apply(p)

	if patch.Slug != nil && slug.Make(*patch.Slug) != p.Slug {
		if p.Slug, err = s.uniqueSlug(ctx, *patch.Slug, p.ID); err != nil {
			return nil, err
		}
	}

	if err := s.store.UpdateProject(ctx, p); err != nil {
		return nil, err
	}
	s.publish(p.ID)
	return p, nil
}

func (s *ProjectService) Delete(ctx context.Context, id string) error {
	if err := s.store.DeleteProject(ctx, id); err != nil {
		return err
	}
	s.publish(id)
	return nil
}

// MoveUp swaps the project's order with its predecessor in the same section.
func (s *ProjectService) MoveUp(ctx context.Context, id string) ([]models.Project, error) {
	return s.move(ctx, id, -1)
}

// MoveDown swaps the project's order with its successor in the same section.
func (s *ProjectService) MoveDown(ctx context.Context, id string) ([]models.Project, error) {
	return s.move(ctx, id, 1)
}

// move performs the swap as two independent writes; a failure between them
// leaves duplicated order values until the next move.
func (s *ProjectService) move(ctx context.Context, id string, dir int) ([]models.Project, error) {
	list, err := s.store.ListProjects(ctx)
	if err != nil {
		return nil, err
	}
	sortProjects(list)

	idx := -1
	for i := range list {
		if list[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, models.ErrNotFound
	}

	neighbour := -1
	for j := idx + dir; j >= 0 && j < len(list); j += dir {
		if list[j].Status == list[idx].Status {
			neighbour = j
			break
		}
	}
	if neighbour < 0 {
		return list, nil
	}

	cur, other := list[idx], list[neighbour]
	cur.Order, other.Order = other.Order, cur.Order
	if cur.Order == other.Order {
		cur.Order += dir
	}

	if err := s.store.UpdateProject(ctx, &cur); err != nil {
		return nil, err
	}
	if err := s.store.UpdateProject(ctx, &other); err != nil {
		return nil, err
	}
	list[idx], list[neighbour] = cur, other
	sortProjects(list)
	s.publish(id)
	return list, nil
}

// SetStatus moves the project to another section, placing it last there.
func (s *ProjectService) SetStatus(ctx context.Context, id string, status models.ProjectStatus) (*models.Project, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("status %q: %w", status, models.ErrInvalidInput)
	}
	p, err := s.store.GetProject(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Status == status {
		return p, nil
	}
	list, err := s.store.ListProjects(ctx)
	if err != nil {
		return nil, err
	}
	p.Status = status
	p.Order = nextOrder(list)
	if err := s.store.UpdateProject(ctx, p); err != nil {
		return nil, err
	}
	s.publish(p.ID)
	return p, nil
}

// Subscribe streams projects.changed notifications.
func (s *ProjectService) Subscribe(buffer int) (<-chan events.Event, func(), error) {
	return subscribe(s.bus, events.TopicProjectsChanged, buffer)
}
