package database

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/natefinch/atomic"

	"betihari-backend/pkg/models"
)

const (
	usersFile        = "users.json"
	storiesFile      = "stories.json"
	projectsFile     = "projects.json"
	interactionsFile = "interactions.json"
)

// LocalDatabase is a JSON-file store for development and single-instance deployments.
// Each collection lives in one file and every write replaces the file atomically.
type LocalDatabase struct {
	dataDir string
	mu      sync.Mutex
}

// NewLocalDatabase creates the data directory if needed.
func NewLocalDatabase(dataDir string) (*LocalDatabase, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return &LocalDatabase{dataDir: dataDir}, nil
}

func loadCollection[T any](db *LocalDatabase, name string) ([]T, error) {
	data, err := os.ReadFile(filepath.Join(db.dataDir, name))
	if os.IsNotExist(err) {
		return []T{}, nil
	}
	if err != nil {
		return nil, err
	}
	var items []T
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("corrupt %s: %w", name, err)
	}
	if items == nil {
		items = []T{}
	}
	return items, nil
}

func saveCollection[T any](db *LocalDatabase, name string, items []T) error {
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return err
	}
	return atomic.WriteFile(filepath.Join(db.dataDir, name), bytes.NewReader(data))
}

// ================= Users =================

// storedUser is the on-disk user record. It keeps the password hash that the
// API model hides from JSON.
type storedUser struct {
	models.User
	PasswordHash string `json:"passwordHash"`
}

func (db *LocalDatabase) loadUsers() ([]models.User, error) {
	stored, err := loadCollection[storedUser](db, usersFile)
	if err != nil {
		return nil, err
	}
	users := make([]models.User, len(stored))
	for i, s := range stored {
		users[i] = s.User
		users[i].PasswordHash = s.PasswordHash
	}
	return users, nil
}

func (db *LocalDatabase) saveUsers(users []models.User) error {
	stored := make([]storedUser, len(users))
	for i, u := range users {
		stored[i] = storedUser{User: u, PasswordHash: u.PasswordHash}
	}
	return saveCollection(db, usersFile, stored)
}

func (db *LocalDatabase) ListUsers(ctx context.Context) ([]models.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.loadUsers()
}

func (db *LocalDatabase) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	users, err := db.loadUsers()
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		if u.ID == id {
			return &u, nil
		}
	}
	return nil, models.ErrNotFound
}

func (db *LocalDatabase) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	email = models.NormalizeEmail(email)
	users, err := db.loadUsers()
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, models.ErrNotFound
}

func (db *LocalDatabase) CreateUser(ctx context.Context, user *models.User) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	users, err := db.loadUsers()
	if err != nil {
		return err
	}
	for _, u := range users {
		if u.Email == user.Email {
			return fmt.Errorf("email %s: %w", user.Email, models.ErrConflict)
		}
	}
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now
	return db.saveUsers(append(users, *user))
}

func (db *LocalDatabase) UpdateUser(ctx context.Context, user *models.User) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	users, err := db.loadUsers()
	if err != nil {
		return err
	}
	idx := -1
	for i, u := range users {
		if u.ID == user.ID {
			idx = i
		} else if u.Email == user.Email {
			return fmt.Errorf("email %s: %w", user.Email, models.ErrConflict)
		}
	}
	if idx < 0 {
		return models.ErrNotFound
	}
	user.UpdatedAt = time.Now().UTC()
	users[idx] = *user
	return db.saveUsers(users)
}

func (db *LocalDatabase) DeleteUser(ctx context.Context, id string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	users, err := db.loadUsers()
	if err != nil {
		return err
	}
	for i, u := range users {
		if u.ID == id {
			return db.saveUsers(append(users[:i], users[i+1:]...))
		}
	}
	return models.ErrNotFound
}

func (db *LocalDatabase) RecordLogin(ctx context.Context, id string, at time.Time) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	users, err := db.loadUsers()
	if err != nil {
		return err
	}
	for i := range users {
		if users[i].ID == id {
			at := at.UTC()
			users[i].LastLoginAt = &at
			return db.saveUsers(users)
		}
	}
	return models.ErrNotFound
}

// ================= Stories =================

func (db *LocalDatabase) ListStories(ctx context.Context) ([]models.Story, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return loadCollection[models.Story](db, storiesFile)
}

func (db *LocalDatabase) GetStory(ctx context.Context, id int64) (*models.Story, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	stories, err := loadCollection[models.Story](db, storiesFile)
	if err != nil {
		return nil, err
	}
	for _, s := range stories {
		if s.ID == id {
			return &s, nil
		}
	}
	return nil, models.ErrNotFound
}

func (db *LocalDatabase) CreateStory(ctx context.Context, story *models.Story) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	stories, err := loadCollection[models.Story](db, storiesFile)
	if err != nil {
		return err
	}
	for _, s := range stories {
		if s.ID == story.ID {
			return fmt.Errorf("story %d: %w", story.ID, models.ErrConflict)
		}
	}
	return saveCollection(db, storiesFile, append(stories, *story))
}

func (db *LocalDatabase) UpdateStory(ctx context.Context, story *models.Story) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	stories, err := loadCollection[models.Story](db, storiesFile)
	if err != nil {
		return err
	}
	for i := range stories {
		if stories[i].ID == story.ID {
			stories[i] = *story
			return saveCollection(db, storiesFile, stories)
		}
	}
	return models.ErrNotFound
}

func (db *LocalDatabase) DeleteStory(ctx context.Context, id int64) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	stories, err := loadCollection[models.Story](db, storiesFile)
	if err != nil {
		return err
	}
	for i, s := range stories {
		if s.ID == id {
			return saveCollection(db, storiesFile, append(stories[:i], stories[i+1:]...))
		}
	}
	return models.ErrNotFound
}

func (db *LocalDatabase) ReplaceStories(ctx context.Context, stories []models.Story) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if stories == nil {
		stories = []models.Story{}
	}
	return saveCollection(db, storiesFile, stories)
}

// ================= Projects =================

func (db *LocalDatabase) ListProjects(ctx context.Context) ([]models.Project, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	projects, err := loadCollection[models.Project](db, projectsFile)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(projects, func(i, j int) bool { return projects[i].Order < projects[j].Order })
	return projects, nil
}

func (db *LocalDatabase) GetProject(ctx context.Context, id string) (*models.Project, error) {
	return db.findProject(func(p models.Project) bool { return p.ID == id })
}

func (db *LocalDatabase) GetProjectBySlug(ctx context.Context, slug string) (*models.Project, error) {
	return db.findProject(func(p models.Project) bool { return p.Slug == slug })
}

func (db *LocalDatabase) findProject(match func(models.Project) bool) (*models.Project, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	projects, err := loadCollection[models.Project](db, projectsFile)
	if err != nil {
		return nil, err
	}
	for _, p := range projects {
		if match(p) {
			return &p, nil
		}
	}
	return nil, models.ErrNotFound
}

func (db *LocalDatabase) CreateProject(ctx context.Context, project *models.Project) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	projects, err := loadCollection[models.Project](db, projectsFile)
	if err != nil {
		return err
	}
	for _, p := range projects {
		if p.Slug == project.Slug {
			return fmt.Errorf("slug %s: %w", project.Slug, models.ErrConflict)
		}
	}
	if project.ID == "" {
		project.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	project.CreatedAt = now
	project.UpdatedAt = now
	return saveCollection(db, projectsFile, append(projects, *project))
}

func (db *LocalDatabase) UpdateProject(ctx context.Context, project *models.Project) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	projects, err := loadCollection[models.Project](db, projectsFile)
	if err != nil {
		return err
	}
	idx := -1
	for i, p := range projects {
		if p.ID == project.ID {
			idx = i
		} else if p.Slug == project.Slug {
			return fmt.Errorf("slug %s: %w", project.Slug, models.ErrConflict)
		}
	}
	if idx < 0 {
		return models.ErrNotFound
	}
	project.UpdatedAt = time.Now().UTC()
	projects[idx] = *project
	return saveCollection(db, projectsFile, projects)
}

func (db *LocalDatabase) DeleteProject(ctx context.Context, id string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	projects, err := loadCollection[models.Project](db, projectsFile)
	if err != nil {
		return err
	}
	for i, p := range projects {
		if p.ID == id {
			return saveCollection(db, projectsFile, append(projects[:i], projects[i+1:]...))
		}
	}
	return models.ErrNotFound
}

// ================= Interactions =================

// mutateInteraction loads the aggregate for storyID, applies fn and saves when fn reports a change.
func (db *LocalDatabase) mutateInteraction(storyID int64, fn func(*models.Interaction) bool) (bool, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	items, err := loadCollection[models.Interaction](db, interactionsFile)
	if err != nil {
		return false, err
	}
	for i := range items {
		if items[i].StoryID == storyID {
			if !fn(&items[i]) {
				return false, nil
			}
			return true, saveCollection(db, interactionsFile, items)
		}
	}
	return false, models.ErrNotFound
}

func (db *LocalDatabase) EnsureInteraction(ctx context.Context, storyID int64) (bool, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	items, err := loadCollection[models.Interaction](db, interactionsFile)
	if err != nil {
		return false, err
	}
	for _, it := range items {
		if it.StoryID == storyID {
			return false, nil
		}
	}
	return true, saveCollection(db, interactionsFile, append(items, *models.NewInteraction(storyID)))
}

func (db *LocalDatabase) GetInteraction(ctx context.Context, storyID int64) (*models.Interaction, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	items, err := loadCollection[models.Interaction](db, interactionsFile)
	if err != nil {
		return nil, err
	}
	for _, it := range items {
		if it.StoryID == storyID {
			return &it, nil
		}
	}
	return nil, models.ErrNotFound
}

func (db *LocalDatabase) ListInteractions(ctx context.Context) ([]models.Interaction, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return loadCollection[models.Interaction](db, interactionsFile)
}

func (db *LocalDatabase) AddLike(ctx context.Context, storyID int64, userKey string, ev models.ActivityEvent) (bool, error) {
	return db.mutateInteraction(storyID, func(it *models.Interaction) bool {
		if it.HasLike(userKey) {
			return false
		}
		it.Likes = append(it.Likes, userKey)
		it.ActivityLog = append(it.ActivityLog, ev)
		return true
	})
}

func (db *LocalDatabase) RemoveLike(ctx context.Context, storyID int64, userKey string, ev models.ActivityEvent) (bool, error) {
	return db.mutateInteraction(storyID, func(it *models.Interaction) bool {
		for i, k := range it.Likes {
			if k == userKey {
				it.Likes = append(it.Likes[:i], it.Likes[i+1:]...)
				it.ActivityLog = append(it.ActivityLog, ev)
				return true
			}
		}
		return false
	})
}

func (db *LocalDatabase) AddComment(ctx context.Context, storyID int64, comment models.Comment, ev models.ActivityEvent) error {
	_, err := db.mutateInteraction(storyID, func(it *models.Interaction) bool {
		it.Comments = append(it.Comments, comment)
		it.ActivityLog = append(it.ActivityLog, ev)
		return true
	})
	return err
}

func (db *LocalDatabase) IncrementCounter(ctx context.Context, storyID int64, counter models.Counter, ev models.ActivityEvent) error {
	_, err := db.mutateInteraction(storyID, func(it *models.Interaction) bool {
		switch counter {
		case models.CounterViews:
			it.Views++
		case models.CounterShares:
			it.Shares++
		default:
			return false
		}
		it.ActivityLog = append(it.ActivityLog, ev)
		return true
	})
	return err
}

func (db *LocalDatabase) DeleteInteraction(ctx context.Context, storyID int64) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	items, err := loadCollection[models.Interaction](db, interactionsFile)
	if err != nil {
		return err
	}
	for i, it := range items {
		if it.StoryID == storyID {
			return saveCollection(db, interactionsFile, append(items[:i], items[i+1:]...))
		}
	}
	return nil
}

// HealthCheck verifies the data directory is still writable.
func (db *LocalDatabase) HealthCheck(ctx context.Context) error {
	info, err := os.Stat(db.dataDir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", db.dataDir)
	}
	return nil
}

// Close is a no-op for the file store.
func (db *LocalDatabase) Close() error {
	return nil
}
