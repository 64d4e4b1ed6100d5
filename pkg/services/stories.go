// Package services implements the content services used by the HTTP handlers.
package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	log "github.com/sirupsen/logrus"

	"betihari-backend/pkg/database"
	"betihari-backend/pkg/events"
	"betihari-backend/pkg/models"
)

const (
	storiesCacheKey = "stories"
	// storiesCacheTTL bounds how long a clean copy read from the store is reused.
	storiesCacheTTL = 5 * time.Minute
)

// StoryService fronts the story store with a write-through cache. Admin saves
// land in the cache first and are reconciled to the store by Flush; the last
// save wins and a single editor at a time is assumed.
type StoryService struct {
	store   database.StoryStore
	bus     events.Broker
	timeout time.Duration

	cache *cache.Cache
	mu    sync.Mutex
	dirty bool
}

func NewStoryService(store database.StoryStore, bus events.Broker, fetchTimeout time.Duration) *StoryService {
	return &StoryService{
		store:   store,
		bus:     bus,
		timeout: fetchTimeout,
		cache:   cache.New(storiesCacheTTL, 10*time.Minute),
	}
}

func cloneStories(in []models.Story) []models.Story {
	out := make([]models.Story, len(in))
	for i := range in {
		out[i] = in[i].Clone()
	}
	return out
}

func (s *StoryService) cached() ([]models.Story, bool) {
	v, found := s.cache.Get(storiesCacheKey)
	if !found {
		return nil, false
	}
	list := v.([]models.Story)
	if len(list) == 0 {
		return nil, false
	}
	return cloneStories(list), true
}

// GetAll returns every story. A non-empty cache wins; otherwise the store is
// read under the fetch timeout and any failure degrades to an empty list.
func (s *StoryService) GetAll(ctx context.Context) []models.Story {
	if list, ok := s.cached(); ok {
		return list
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	list, err := s.store.ListStories(ctx)
	if err != nil {
		log.WithError(err).Warn("failed to load stories, serving empty list")
		return []models.Story{}
	}

	s.mu.Lock()
	if !s.dirty {
		s.cache.Set(storiesCacheKey, cloneStories(list), cache.DefaultExpiration)
	}
	s.mu.Unlock()
	return list
}

// GetPublished returns only published stories.
func (s *StoryService) GetPublished(ctx context.Context) []models.Story {
	published := []models.Story{}
	for _, story := range s.GetAll(ctx) {
		if story.Published {
			published = append(published, story)
		}
	}
	return published
}

// GetByID returns nil when the story does not exist.
func (s *StoryService) GetByID(ctx context.Context, id int64) *models.Story {
	for _, story := range s.GetAll(ctx) {
		if story.ID == id {
			return &story
		}
	}
	return nil
}

func validateStory(story *models.Story) error {
	if strings.TrimSpace(story.Title) == "" {
		return fmt.Errorf("story %d has no title: %w", story.ID, models.ErrInvalidInput)
	}
	if story.Category == "" {
		story.Category = models.CategoryCommunity
	}
	if !story.Category.Valid() {
		return fmt.Errorf("category %q: %w", story.Category, models.ErrInvalidInput)
	}
	if story.Tags == nil {
		story.Tags = []string{}
	}
	return nil
}

// SaveStories replaces the whole collection in the cache, notifies subscribers
// and tries to reconcile to the store. synced is false when the store write
// failed; the next Flush retries it.
func (s *StoryService) SaveStories(ctx context.Context, list []models.Story) (synced bool, err error) {
	seen := make(map[int64]bool, len(list))
	saved := cloneStories(list)
	for i := range saved {
		if err := validateStory(&saved[i]); err != nil {
			return false, err
		}
		if seen[saved[i].ID] {
			return false, fmt.Errorf("duplicate story id %d: %w", saved[i].ID, models.ErrInvalidInput)
		}
		seen[saved[i].ID] = true
	}

	s.mu.Lock()
	s.cache.Set(storiesCacheKey, saved, cache.NoExpiration)
	s.dirty = true
	s.mu.Unlock()

	if s.bus != nil {
		s.bus.Publish(events.TopicStoriesChanged, len(saved))
	}

	if err := s.Flush(ctx); err != nil {
		log.WithError(err).Warn("stories saved to cache, store sync pending")
		return false, nil
	}
	return true, nil
}

// Flush writes a dirty cache to the store. It is a no-op when clean.
func (s *StoryService) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.dirty {
		return nil
	}
	v, found := s.cache.Get(storiesCacheKey)
	if !found {
		s.dirty = false
		return nil
	}
	list := v.([]models.Story)

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.store.ReplaceStories(ctx, list); err != nil {
		return fmt.Errorf("failed to sync stories: %w", err)
	}

	s.dirty = false
	s.cache.Set(storiesCacheKey, list, cache.DefaultExpiration)
	log.WithField("count", len(list)).Debug("stories synced to store")
	return nil
}

// Dirty reports whether cached edits are waiting for the store.
func (s *StoryService) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}

func nextStoryID(list []models.Story) int64 {
	var max int64
	for _, story := range list {
		if story.ID > max {
			max = story.ID
		}
	}
	return max + 1
}

// Create assigns the next id and saves the collection.
func (s *StoryService) Create(ctx context.Context, story models.Story) (*models.Story, error) {
	list := s.GetAll(ctx)
	story.ID = nextStoryID(list)
	if err := validateStory(&story); err != nil {
		return nil, err
	}
	if _, err := s.SaveStories(ctx, append(list, story)); err != nil {
		return nil, err
	}
	return &story, nil
}

// Update merges patch into the story with id.
func (s *StoryService) Update(ctx context.Context, id int64, patch models.StoryPatch) (*models.Story, error) {
	list := s.GetAll(ctx)
	for i := range list {
		if list[i].ID != id {
			continue
		}
		patch.Apply(&list[i])
		if err := validateStory(&list[i]); err != nil {
			return nil, err
		}
		updated := list[i].Clone()
		if _, err := s.SaveStories(ctx, list); err != nil {
			return nil, err
		}
		return &updated, nil
	}
	return nil, models.ErrNotFound
}

// Delete removes the story. Its interaction record is the caller's concern.
func (s *StoryService) Delete(ctx context.Context, id int64) error {
	list := s.GetAll(ctx)
	for i := range list {
		if list[i].ID == id {
			_, err := s.SaveStories(ctx, append(list[:i], list[i+1:]...))
			return err
		}
	}
	return models.ErrNotFound
}

// Featured returns published featured stories, newest id first.
func (s *StoryService) Featured(ctx context.Context, limit int) []models.Story {
	featured := []models.Story{}
	for _, story := range s.GetPublished(ctx) {
		if story.Featured {
			featured = append(featured, story)
		}
	}
	sort.Slice(featured, func(i, j int) bool { return featured[i].ID > featured[j].ID })
	if limit > 0 && len(featured) > limit {
		featured = featured[:limit]
	}
	return featured
}

// ErrNoBus is returned by Subscribe when the service runs without an event bus.
var ErrNoBus = errors.New("no event bus configured")

func subscribe(bus events.Broker, topic string, buffer int) (<-chan events.Event, func(), error) {
	if bus == nil {
		return nil, nil, ErrNoBus
	}
	ch, cancel := bus.Subscribe(topic, buffer)
	return ch, cancel, nil
}

// Subscribe streams stories.changed notifications.
func (s *StoryService) Subscribe(buffer int) (<-chan events.Event, func(), error) {
	return subscribe(s.bus, events.TopicStoriesChanged, buffer)
}
