package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	log "github.com/sirupsen/logrus"

	"betihari-backend/pkg/database"
	"betihari-backend/pkg/events"
	"betihari-backend/pkg/metrics"
	"betihari-backend/pkg/models"
)

const (
	// viewMarkerTTL bounds a visitor session for view de-duplication.
	viewMarkerTTL    = 24 * time.Hour
	anonymousAuthor  = "Anonymous"
	defaultActivityN = 20
)

// InteractionTotals sums engagement across every story.
type InteractionTotals struct {
	Stories  int   `json:"stories"`
	Likes    int   `json:"likes"`
	Comments int   `json:"comments"`
	Views    int64 `json:"views"`
	Shares   int64 `json:"shares"`
}

// InteractionService records likes, comments, views and shares per story.
type InteractionService struct {
	store   database.InteractionStore
	bus     events.Broker
	metrics *metrics.Metrics
	timeout time.Duration

	// viewed holds "<session>:<story>" markers for view de-duplication.
	viewed *cache.Cache
	now    func() time.Time
}

func NewInteractionService(store database.InteractionStore, bus events.Broker, m *metrics.Metrics, fetchTimeout time.Duration) *InteractionService {
	return &InteractionService{
		store:   store,
		bus:     bus,
		metrics: m,
		timeout: fetchTimeout,
		viewed:  cache.New(viewMarkerTTL, time.Hour),
		now:     time.Now,
	}
}

func (s *InteractionService) event(t models.ActivityType, storyID int64) models.ActivityEvent {
	return models.ActivityEvent{Type: t, Timestamp: s.now().UTC(), StoryID: storyID}
}

func (s *InteractionService) recorded(ev models.ActivityEvent) {
	s.metrics.Interaction(string(ev.Type))
	if s.bus != nil {
		s.bus.Publish(events.TopicInteractionsChanged, ev)
	}
}

// EnsureInteractionDoc creates the zeroed aggregate for a story on first use.
// Repeated calls are no-ops.
func (s *InteractionService) EnsureInteractionDoc(ctx context.Context, storyID int64) error {
	created, err := s.store.EnsureInteraction(ctx, storyID)
	if err != nil {
		return err
	}
	if created {
		log.WithField("story", storyID).Debug("interaction record created")
	}
	return nil
}

func summarize(it *models.Interaction, userKey string) *models.InteractionSummary {
	comments := it.Comments
	if comments == nil {
		comments = []models.Comment{}
	}
	return &models.InteractionSummary{
		StoryID:  it.StoryID,
		Likes:    len(it.Likes),
		Liked:    userKey != "" && it.HasLike(userKey),
		Comments: comments,
		Views:    it.Views,
		Shares:   it.Shares,
	}
}

// Get returns the public summary; stories without a record read as zero.
func (s *InteractionService) Get(ctx context.Context, storyID int64, userKey string) (*models.InteractionSummary, error) {
	it, err := s.store.GetInteraction(ctx, storyID)
	if errors.Is(err, models.ErrNotFound) {
		return summarize(models.NewInteraction(storyID), userKey), nil
	}
	if err != nil {
		return nil, err
	}
	return summarize(it, userKey), nil
}

func requireKey(userKey string) error {
	if strings.TrimSpace(userKey) == "" {
		return fmt.Errorf("missing visitor key: %w", models.ErrInvalidInput)
	}
	return nil
}

// AddLike likes the story once per visitor key.
func (s *InteractionService) AddLike(ctx context.Context, storyID int64, userKey string) (*models.InteractionSummary, error) {
	if err := requireKey(userKey); err != nil {
		return nil, err
	}
	if err := s.EnsureInteractionDoc(ctx, storyID); err != nil {
		return nil, err
	}
	ev := s.event(models.ActivityLike, storyID)
	ev.UserKey = userKey
	added, err := s.store.AddLike(ctx, storyID, userKey, ev)
	if err != nil {
		return nil, err
	}
	if added {
		s.recorded(ev)
	}
	return s.Get(ctx, storyID, userKey)
}

// RemoveLike withdraws the visitor's like if present.
func (s *InteractionService) RemoveLike(ctx context.Context, storyID int64, userKey string) (*models.InteractionSummary, error) {
	if err := requireKey(userKey); err != nil {
		return nil, err
	}
	if err := s.EnsureInteractionDoc(ctx, storyID); err != nil {
		return nil, err
	}
	ev := s.event(models.ActivityUnlike, storyID)
	ev.UserKey = userKey
	removed, err := s.store.RemoveLike(ctx, storyID, userKey, ev)
	if err != nil {
		return nil, err
	}
	if removed {
		s.recorded(ev)
	}
	return s.Get(ctx, storyID, userKey)
}

// AddComment appends a comment with a timestamp-based id.
func (s *InteractionService) AddComment(ctx context.Context, storyID int64, req models.CommentRequest) (*models.Comment, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, fmt.Errorf("empty comment: %w", models.ErrInvalidInput)
	}
	author := strings.TrimSpace(req.Author)
	if author == "" {
		author = anonymousAuthor
	}
	if err := s.EnsureInteractionDoc(ctx, storyID); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	comment := models.Comment{
		ID:     strconv.FormatInt(now.UnixNano(), 10),
		Text:   text,
		Author: author,
		Date:   now,
	}
	ev := s.event(models.ActivityComment, storyID)
	ev.CommentID = comment.ID
	ev.Author = author
	if err := s.store.AddComment(ctx, storyID, comment, ev); err != nil {
		return nil, err
	}
	s.recorded(ev)
	return &comment, nil
}

// IncrementViews counts a view at most once per visitor session and story.
// It reports whether the view was counted.
func (s *InteractionService) IncrementViews(ctx context.Context, storyID int64, sessionKey string) (bool, error) {
	if err := requireKey(sessionKey); err != nil {
		return false, err
	}
	marker := sessionKey + ":" + strconv.FormatInt(storyID, 10)
	if err := s.viewed.Add(marker, struct{}{}, cache.DefaultExpiration); err != nil {
		return false, nil
	}

	if err := s.EnsureInteractionDoc(ctx, storyID); err != nil {
		s.viewed.Delete(marker)
		return false, err
	}
	ev := s.event(models.ActivityView, storyID)
	if err := s.store.IncrementCounter(ctx, storyID, models.CounterViews, ev); err != nil {
		s.viewed.Delete(marker)
		return false, err
	}
	s.recorded(ev)
	return true, nil
}

// IncrementShares counts every share.
func (s *InteractionService) IncrementShares(ctx context.Context, storyID int64) error {
	if err := s.EnsureInteractionDoc(ctx, storyID); err != nil {
		return err
	}
	ev := s.event(models.ActivityShare, storyID)
	if err := s.store.IncrementCounter(ctx, storyID, models.CounterShares, ev); err != nil {
		return err
	}
	s.recorded(ev)
	return nil
}

// Delete removes the story's interaction record.
func (s *InteractionService) Delete(ctx context.Context, storyID int64) error {
	return s.store.DeleteInteraction(ctx, storyID)
}

func (s *InteractionService) list(ctx context.Context) ([]models.Interaction, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.store.ListInteractions(ctx)
}

// RecentActivity merges every story's activity log, newest first. Store
// failures degrade to an empty list.
func (s *InteractionService) RecentActivity(ctx context.Context, limit int) []models.ActivityEvent {
	if limit <= 0 {
		limit = defaultActivityN
	}
	all, err := s.list(ctx)
	if err != nil {
		log.WithError(err).Warn("failed to load activity, serving empty list")
		return []models.ActivityEvent{}
	}

	merged := []models.ActivityEvent{}
	for _, it := range all {
		for _, ev := range it.ActivityLog {
			if ev.StoryID == 0 {
				ev.StoryID = it.StoryID
			}
			merged = append(merged, ev)
		}
	}
	sort.SliceStable(merged, func(i, j int) bool { return merged[i].Timestamp.After(merged[j].Timestamp) })
	if len(merged) > limit {
		merged = merged[:limit]
	}
	return merged
}

// Totals sums engagement across stories.
func (s *InteractionService) Totals(ctx context.Context) (InteractionTotals, error) {
	all, err := s.list(ctx)
	if err != nil {
		return InteractionTotals{}, err
	}
	var t InteractionTotals
	for _, it := range all {
		t.Stories++
		t.Likes += len(it.Likes)
		t.Comments += len(it.Comments)
		t.Views += it.Views
		t.Shares += it.Shares
	}
	return t, nil
}

// Subscribe streams interactions.changed notifications.
func (s *InteractionService) Subscribe(buffer int) (<-chan events.Event, func(), error) {
	return subscribe(s.bus, events.TopicInteractionsChanged, buffer)
}
