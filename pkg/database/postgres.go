package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	log "github.com/sirupsen/logrus"

	"betihari-backend/pkg/models"
)

// uniqueViolation is the PostgreSQL error code for a unique constraint failure.
const uniqueViolation = "23505"

// PostgresDatabase is the PostgreSQL content store.
type PostgresDatabase struct {
	db *sql.DB
}

// NewPostgresDatabase opens a pooled connection. Several DSN variants are tried
// because managed poolers in front of serverless hosts reject some parameters.
func NewPostgresDatabase(dsn string) (*PostgresDatabase, error) {
	dsn = strings.TrimSpace(dsn)
	strategies := []string{
		addConnectionParams(dsn, "connect_timeout=10"),
		addConnectionParams(dsn, "sslmode=require&connect_timeout=10"),
		dsn,
	}

	var lastErr error
	for i, strategy := range strategies {
		db, err := sql.Open("postgres", strategy)
		if err != nil {
			lastErr = err
			log.WithError(err).Warnf("postgres strategy %d failed to open", i+1)
			continue
		}
		configurePool(db)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err = db.PingContext(ctx)
		cancel()
		if err != nil {
			lastErr = err
			log.WithError(err).Warnf("postgres strategy %d failed to ping", i+1)
			db.Close()
			continue
		}

		log.Infof("postgres connection established with strategy %d", i+1)
		return &PostgresDatabase{db: db}, nil
	}

	return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", lastErr)
}

// NewPostgresDatabaseFromDB wraps an existing handle.
func NewPostgresDatabaseFromDB(db *sql.DB) *PostgresDatabase {
	return &PostgresDatabase{db: db}
}

// DB exposes the underlying handle for migrations.
func (p *PostgresDatabase) DB() *sql.DB {
	return p.db
}

func configurePool(db *sql.DB) {
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)
}

func addConnectionParams(dsn, params string) string {
	if params == "" {
		return dsn
	}
	separator := "?"
	if strings.Contains(dsn, "?") {
		separator = "&"
	}
	return dsn + separator + params
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return models.ErrNotFound
	}
	return nil
}

// ================= Users =================

const userColumns = `id, first_name, last_name, email, team, position, password_hash, is_active, last_login_at, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	var u models.User
	var lastLogin sql.NullTime
	if err := row.Scan(&u.ID, &u.FirstName, &u.LastName, &u.Email, &u.Team, &u.Position,
		&u.PasswordHash, &u.IsActive, &lastLogin, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	if lastLogin.Valid {
		t := lastLogin.Time
		u.LastLoginAt = &t
	}
	return &u, nil
}

func (p *PostgresDatabase) ListUsers(ctx context.Context) ([]models.User, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

func (p *PostgresDatabase) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	u, err := scanUser(p.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

func (p *PostgresDatabase) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	u, err := scanUser(p.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, models.NormalizeEmail(email)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return u, nil
}

func (p *PostgresDatabase) CreateUser(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	err := p.db.QueryRowContext(ctx, `
		INSERT INTO users (id, first_name, last_name, email, team, position, password_hash, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
		RETURNING created_at, updated_at`,
		user.ID, user.FirstName, user.LastName, user.Email, user.Team, user.Position, user.PasswordHash, user.IsActive,
	).Scan(&user.CreatedAt, &user.UpdatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("email %s: %w", user.Email, models.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (p *PostgresDatabase) UpdateUser(ctx context.Context, user *models.User) error {
	err := p.db.QueryRowContext(ctx, `
		UPDATE users SET first_name = $2, last_name = $3, email = $4, team = $5, position = $6,
			password_hash = $7, is_active = $8, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		user.ID, user.FirstName, user.LastName, user.Email, user.Team, user.Position, user.PasswordHash, user.IsActive,
	).Scan(&user.UpdatedAt)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return models.ErrNotFound
	case isUniqueViolation(err):
		return fmt.Errorf("email %s: %w", user.Email, models.ErrConflict)
	case err != nil:
		return fmt.Errorf("failed to update user: %w", err)
	}
	return nil
}

func (p *PostgresDatabase) DeleteUser(ctx context.Context, id string) error {
	res, err := p.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return requireRow(res)
}

func (p *PostgresDatabase) RecordLogin(ctx context.Context, id string, at time.Time) error {
	res, err := p.db.ExecContext(ctx, `UPDATE users SET last_login_at = $2 WHERE id = $1`, id, at.UTC())
	if err != nil {
		return fmt.Errorf("failed to record login: %w", err)
	}
	return requireRow(res)
}

// ================= Stories =================

const storyColumns = `id, title, excerpt, content, author, date, location, category, image, featured, published, tags`

func scanStory(row rowScanner) (*models.Story, error) {
	var s models.Story
	if err := row.Scan(&s.ID, &s.Title, &s.Excerpt, &s.Content, &s.Author, &s.Date, &s.Location,
		&s.Category, &s.Image, &s.Featured, &s.Published, pq.Array(&s.Tags)); err != nil {
		return nil, err
	}
	if s.Tags == nil {
		s.Tags = []string{}
	}
	return &s, nil
}

func storyArgs(s *models.Story) []any {
	tags := s.Tags
	if tags == nil {
		tags = []string{}
	}
	return []any{s.ID, s.Title, s.Excerpt, s.Content, s.Author, s.Date, s.Location,
		s.Category, s.Image, s.Featured, s.Published, pq.Array(tags)}
}

const insertStory = `INSERT INTO stories (` + storyColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

func (p *PostgresDatabase) ListStories(ctx context.Context) ([]models.Story, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT `+storyColumns+` FROM stories ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list stories: %w", err)
	}
	defer rows.Close()

	stories := []models.Story{}
	for rows.Next() {
		s, err := scanStory(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan story: %w", err)
		}
		stories = append(stories, *s)
	}
	return stories, rows.Err()
}

func (p *PostgresDatabase) GetStory(ctx context.Context, id int64) (*models.Story, error) {
	s, err := scanStory(p.db.QueryRowContext(ctx, `SELECT `+storyColumns+` FROM stories WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get story: %w", err)
	}
	return s, nil
}

func (p *PostgresDatabase) CreateStory(ctx context.Context, story *models.Story) error {
	_, err := p.db.ExecContext(ctx, insertStory, storyArgs(story)...)
	if isUniqueViolation(err) {
		return fmt.Errorf("story %d: %w", story.ID, models.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("failed to create story: %w", err)
	}
	return nil
}

func (p *PostgresDatabase) UpdateStory(ctx context.Context, story *models.Story) error {
	res, err := p.db.ExecContext(ctx, `
		UPDATE stories SET title = $2, excerpt = $3, content = $4, author = $5, date = $6, location = $7,
			category = $8, image = $9, featured = $10, published = $11, tags = $12
		WHERE id = $1`, storyArgs(story)...)
	if err != nil {
		return fmt.Errorf("failed to update story: %w", err)
	}
	return requireRow(res)
}

func (p *PostgresDatabase) DeleteStory(ctx context.Context, id int64) error {
	res, err := p.db.ExecContext(ctx, `DELETE FROM stories WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete story: %w", err)
	}
	return requireRow(res)
}

// ReplaceStories swaps the whole collection inside one transaction.
func (p *PostgresDatabase) ReplaceStories(ctx context.Context, stories []models.Story) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM stories`); err != nil {
		return fmt.Errorf("failed to clear stories: %w", err)
	}
	for i := range stories {
		if _, err := tx.ExecContext(ctx, insertStory, storyArgs(&stories[i])...); err != nil {
			return fmt.Errorf("failed to insert story %d: %w", stories[i].ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit stories: %w", err)
	}
	return nil
}

// ================= Projects =================

const projectColumns = `id, title, slug, short_description, story, target_funds, raised_funds, status, sort_order, images, created_at, updated_at`

func scanProject(row rowScanner) (*models.Project, error) {
	var pr models.Project
	if err := row.Scan(&pr.ID, &pr.Title, &pr.Slug, &pr.ShortDescription, &pr.Story, &pr.TargetFunds,
		&pr.RaisedFunds, &pr.Status, &pr.Order, pq.Array(&pr.Images), &pr.CreatedAt, &pr.UpdatedAt); err != nil {
		return nil, err
	}
	if pr.Images == nil {
		pr.Images = []string{}
	}
	return &pr, nil
}

func (p *PostgresDatabase) ListProjects(ctx context.Context) ([]models.Project, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT `+projectColumns+` FROM projects ORDER BY sort_order, created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	projects := []models.Project{}
	for rows.Next() {
		pr, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, *pr)
	}
	return projects, rows.Err()
}

func (p *PostgresDatabase) GetProject(ctx context.Context, id string) (*models.Project, error) {
	return p.getProject(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = $1`, id)
}

func (p *PostgresDatabase) GetProjectBySlug(ctx context.Context, slug string) (*models.Project, error) {
	return p.getProject(ctx, `SELECT `+projectColumns+` FROM projects WHERE slug = $1`, slug)
}

func (p *PostgresDatabase) getProject(ctx context.Context, query, arg string) (*models.Project, error) {
	pr, err := scanProject(p.db.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	return pr, nil
}

func (p *PostgresDatabase) CreateProject(ctx context.Context, project *models.Project) error {
	if project.ID == "" {
		project.ID = uuid.New().String()
	}
	images := project.Images
	if images == nil {
		images = []string{}
	}
	err := p.db.QueryRowContext(ctx, `
		INSERT INTO projects (id, title, slug, short_description, story, target_funds, raised_funds, status, sort_order, images, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
		RETURNING created_at, updated_at`,
		project.ID, project.Title, project.Slug, project.ShortDescription, project.Story, project.TargetFunds,
		project.RaisedFunds, project.Status, project.Order, pq.Array(images),
	).Scan(&project.CreatedAt, &project.UpdatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("slug %s: %w", project.Slug, models.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("failed to create project: %w", err)
	}
	return nil
}

func (p *PostgresDatabase) UpdateProject(ctx context.Context, project *models.Project) error {
	images := project.Images
	if images == nil {
		images = []string{}
	}
	err := p.db.QueryRowContext(ctx, `
		UPDATE projects SET title = $2, slug = $3, short_description = $4, story = $5, target_funds = $6,
			raised_funds = $7, status = $8, sort_order = $9, images = $10, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		project.ID, project.Title, project.Slug, project.ShortDescription, project.Story, project.TargetFunds,
		project.RaisedFunds, project.Status, project.Order, pq.Array(images),
	).Scan(&project.UpdatedAt)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return models.ErrNotFound
	case isUniqueViolation(err):
		return fmt.Errorf("slug %s: %w", project.Slug, models.ErrConflict)
	case err != nil:
		return fmt.Errorf("failed to update project: %w", err)
	}
	return nil
}

func (p *PostgresDatabase) DeleteProject(ctx context.Context, id string) error {
	res, err := p.db.ExecContext(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}
	return requireRow(res)
}

// ================= Interactions =================

const interactionColumns = `story_id, likes, comments, views, shares, activity_log`

func scanInteraction(row rowScanner) (*models.Interaction, error) {
	it := models.NewInteraction(0)
	var comments, activity []byte
	if err := row.Scan(&it.StoryID, pq.Array(&it.Likes), &comments, &it.Views, &it.Shares, &activity); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(comments, &it.Comments); err != nil {
		return nil, fmt.Errorf("corrupt comments for story %d: %w", it.StoryID, err)
	}
	if err := json.Unmarshal(activity, &it.ActivityLog); err != nil {
		return nil, fmt.Errorf("corrupt activity log for story %d: %w", it.StoryID, err)
	}
	if it.Likes == nil {
		it.Likes = []string{}
	}
	return it, nil
}

// jsonList encodes v as a one-element JSON array for jsonb concatenation.
func jsonList(v any) (string, error) {
	data, err := json.Marshal([]any{v})
	return string(data), err
}

func (p *PostgresDatabase) EnsureInteraction(ctx context.Context, storyID int64) (bool, error) {
	res, err := p.db.ExecContext(ctx, `INSERT INTO interactions (story_id) VALUES ($1) ON CONFLICT (story_id) DO NOTHING`, storyID)
	if err != nil {
		return false, fmt.Errorf("failed to ensure interaction: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (p *PostgresDatabase) GetInteraction(ctx context.Context, storyID int64) (*models.Interaction, error) {
	it, err := scanInteraction(p.db.QueryRowContext(ctx, `SELECT `+interactionColumns+` FROM interactions WHERE story_id = $1`, storyID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get interaction: %w", err)
	}
	return it, nil
}

func (p *PostgresDatabase) ListInteractions(ctx context.Context) ([]models.Interaction, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT `+interactionColumns+` FROM interactions ORDER BY story_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list interactions: %w", err)
	}
	defer rows.Close()

	items := []models.Interaction{}
	for rows.Next() {
		it, err := scanInteraction(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *it)
	}
	return items, rows.Err()
}

// conditionalUpdate runs an UPDATE guarded by a WHERE condition. Zero affected rows
// means either the guard failed (false, nil) or the aggregate is missing (ErrNotFound).
func (p *PostgresDatabase) conditionalUpdate(ctx context.Context, storyID int64, query string, args ...any) (bool, error) {
	res, err := p.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to update interaction: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n > 0 {
		return true, nil
	}
	var exists bool
	if err := p.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM interactions WHERE story_id = $1)`, storyID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check interaction: %w", err)
	}
	if !exists {
		return false, models.ErrNotFound
	}
	return false, nil
}

func (p *PostgresDatabase) AddLike(ctx context.Context, storyID int64, userKey string, ev models.ActivityEvent) (bool, error) {
	evJSON, err := jsonList(ev)
	if err != nil {
		return false, err
	}
	return p.conditionalUpdate(ctx, storyID, `
		UPDATE interactions SET likes = array_append(likes, $2), activity_log = activity_log || $3::jsonb
		WHERE story_id = $1 AND NOT ($2 = ANY(likes))`, storyID, userKey, evJSON)
}

func (p *PostgresDatabase) RemoveLike(ctx context.Context, storyID int64, userKey string, ev models.ActivityEvent) (bool, error) {
	evJSON, err := jsonList(ev)
	if err != nil {
		return false, err
	}
	return p.conditionalUpdate(ctx, storyID, `
		UPDATE interactions SET likes = array_remove(likes, $2), activity_log = activity_log || $3::jsonb
		WHERE story_id = $1 AND $2 = ANY(likes)`, storyID, userKey, evJSON)
}

func (p *PostgresDatabase) AddComment(ctx context.Context, storyID int64, comment models.Comment, ev models.ActivityEvent) error {
	commentJSON, err := jsonList(comment)
	if err != nil {
		return err
	}
	evJSON, err := jsonList(ev)
	if err != nil {
		return err
	}
	res, err := p.db.ExecContext(ctx, `
		UPDATE interactions SET comments = comments || $2::jsonb, activity_log = activity_log || $3::jsonb
		WHERE story_id = $1`, storyID, commentJSON, evJSON)
	if err != nil {
		return fmt.Errorf("failed to add comment: %w", err)
	}
	return requireRow(res)
}

// counterColumns whitelists the columns IncrementCounter may touch.
var counterColumns = map[models.Counter]string{
	models.CounterViews:  "views",
	models.CounterShares: "shares",
}

func (p *PostgresDatabase) IncrementCounter(ctx context.Context, storyID int64, counter models.Counter, ev models.ActivityEvent) error {
	column, ok := counterColumns[counter]
	if !ok {
		return fmt.Errorf("counter %q: %w", counter, models.ErrInvalidInput)
	}
	evJSON, err := jsonList(ev)
	if err != nil {
		return err
	}
	res, err := p.db.ExecContext(ctx, `
		UPDATE interactions SET `+column+` = `+column+` + 1, activity_log = activity_log || $2::jsonb
		WHERE story_id = $1`, storyID, evJSON)
	if err != nil {
		return fmt.Errorf("failed to increment %s: %w", column, err)
	}
	return requireRow(res)
}

func (p *PostgresDatabase) DeleteInteraction(ctx context.Context, storyID int64) error {
	if _, err := p.db.ExecContext(ctx, `DELETE FROM interactions WHERE story_id = $1`, storyID); err != nil {
		return fmt.Errorf("failed to delete interaction: %w", err)
	}
	return nil
}

func (p *PostgresDatabase) HealthCheck(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

func (p *PostgresDatabase) Close() error {
	return p.db.Close()
}
