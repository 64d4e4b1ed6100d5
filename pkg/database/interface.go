package database

import (
	"context"
	"fmt"
	"os"
	"time"

	log "github.com/sirupsen/logrus"

	"betihari-backend/pkg/models"
)

// UserStore persists dashboard users. Lookups return models.ErrNotFound when absent.
type UserStore interface {
	ListUsers(ctx context.Context) ([]models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	CreateUser(ctx context.Context, user *models.User) error
	UpdateUser(ctx context.Context, user *models.User) error
	DeleteUser(ctx context.Context, id string) error
	// RecordLogin stamps the user's last login time.
	RecordLogin(ctx context.Context, id string, at time.Time) error
}

// StoryStore persists stories.
type StoryStore interface {
	ListStories(ctx context.Context) ([]models.Story, error)
	GetStory(ctx context.Context, id int64) (*models.Story, error)
	CreateStory(ctx context.Context, story *models.Story) error
	UpdateStory(ctx context.Context, story *models.Story) error
	DeleteStory(ctx context.Context, id int64) error
	// ReplaceStories swaps the whole collection for stories.
	ReplaceStories(ctx context.Context, stories []models.Story) error
}

// ProjectStore persists fundraising projects.
type ProjectStore interface {
	ListProjects(ctx context.Context) ([]models.Project, error)
	GetProject(ctx context.Context, id string) (*models.Project, error)
	GetProjectBySlug(ctx context.Context, slug string) (*models.Project, error)
	CreateProject(ctx context.Context, project *models.Project) error
	UpdateProject(ctx context.Context, project *models.Project) error
	DeleteProject(ctx context.Context, id string) error
}

// InteractionStore persists per-story engagement aggregates. Every mutation
// is applied atomically by the backend together with its activity event.
type InteractionStore interface {
	// EnsureInteraction creates the zeroed aggregate if missing and reports whether it did.
	EnsureInteraction(ctx context.Context, storyID int64) (bool, error)
	GetInteraction(ctx context.Context, storyID int64) (*models.Interaction, error)
	ListInteractions(ctx context.Context) ([]models.Interaction, error)
	// AddLike adds userKey to the likes set; false when it was already present.
	AddLike(ctx context.Context, storyID int64, userKey string, ev models.ActivityEvent) (bool, error)
	// RemoveLike removes userKey from the likes set; false when it was absent.
	RemoveLike(ctx context.Context, storyID int64, userKey string, ev models.ActivityEvent) (bool, error)
	AddComment(ctx context.Context, storyID int64, comment models.Comment, ev models.ActivityEvent) error
	IncrementCounter(ctx context.Context, storyID int64, counter models.Counter, ev models.ActivityEvent) error
	DeleteInteraction(ctx context.Context, storyID int64) error
}

// DatabaseInterface is the primary content store.
type DatabaseInterface interface {
	UserStore
	StoryStore
	ProjectStore
	InteractionStore

	HealthCheck(ctx context.Context) error
	Close() error
}

// DatabaseConfig selects and configures the primary store.
type DatabaseConfig struct {
	UseLocalDB   bool
	LocalDataDir string
	PostgresDSN  string
	Debug        bool
}

// NewDatabase picks the store implementation for the configuration.
// PostgreSQL wins whenever a DSN is present.
func NewDatabase(config DatabaseConfig) (DatabaseInterface, error) {
	if config.PostgresDSN != "" {
		log.Info("using PostgreSQL content store")
		return NewPostgresDatabase(config.PostgresDSN)
	}

	if config.UseLocalDB {
		dir := config.LocalDataDir
		if dir == "" {
			dir = "./data"
		}
		if IsServerlessEnvironment() {
			// serverless file systems are read-only outside /tmp
			dir = os.TempDir() + "/betihari-data"
		}
		log.WithField("dir", dir).Info("using local file content store")
		return NewLocalDatabase(dir)
	}

	return nil, fmt.Errorf("no valid database configuration found: set POSTGRES_DSN or USE_LOCAL_DB=true")
}

// IsServerlessEnvironment reports whether the process runs as a serverless function.
func IsServerlessEnvironment() bool {
	return os.Getenv("VERCEL_ENV") != "" || os.Getenv("VERCEL_URL") != "" || os.Getenv("AWS_LAMBDA_FUNCTION_NAME") != ""
}
