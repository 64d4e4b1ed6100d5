package models

import "time"

// ActivityType names the kind of engagement recorded in an activity log.
type ActivityType string

const (
	ActivityView    ActivityType = "view"
	ActivityLike    ActivityType = "like"
	ActivityUnlike  ActivityType = "unlike"
	ActivityComment ActivityType = "comment"
	ActivityShare   ActivityType = "share"
)

// Counter selects one of the numeric interaction counters.
type Counter string

const (
	CounterViews  Counter = "views"
	CounterShares Counter = "shares"
)

// Comment is a visitor comment on a story.
type Comment struct {
	ID     string    `json:"id" dynamodbav:"id"`
	Text   string    `json:"text" dynamodbav:"text"`
	Author string    `json:"author" dynamodbav:"author"`
	Date   time.Time `json:"date" dynamodbav:"date"`
}

// ActivityEvent is a normalized entry of a story's activity log.
type ActivityEvent struct {
	Type      ActivityType `json:"type" dynamodbav:"type"`
	Timestamp time.Time    `json:"timestamp" dynamodbav:"timestamp"`
	StoryID   int64        `json:"storyId" dynamodbav:"storyId"`
	UserKey   string       `json:"userKey,omitempty" dynamodbav:"userKey,omitempty"`
	CommentID string       `json:"commentId,omitempty" dynamodbav:"commentId,omitempty"`
	Author    string       `json:"author,omitempty" dynamodbav:"author,omitempty"`
}

// Interaction is the per-story engagement aggregate.
type Interaction struct {
	StoryID     int64           `json:"storyId" dynamodbav:"story_id"`
	Likes       []string        `json:"likes" dynamodbav:"likes,stringset,omitempty"`
	Comments    []Comment       `json:"comments" dynamodbav:"comments"`
	Views       int64           `json:"views" dynamodbav:"views"`
	Shares      int64           `json:"shares" dynamodbav:"shares"`
	ActivityLog []ActivityEvent `json:"activityLog" dynamodbav:"activityLog"`
}

// NewInteraction returns the zero-valued aggregate for a story.
func NewInteraction(storyID int64) *Interaction {
	return &Interaction{
		StoryID:     storyID,
		Likes:       []string{},
		Comments:    []Comment{},
		ActivityLog: []ActivityEvent{},
	}
}

// HasLike reports whether userKey already liked the story.
func (i *Interaction) HasLike(userKey string) bool {
	for _, k := range i.Likes {
		if k == userKey {
			return true
		}
	}
	return false
}

// InteractionSummary is the public view of an interaction aggregate.
type InteractionSummary struct {
	StoryID  int64     `json:"storyId"`
	Likes    int       `json:"likes"`
	Liked    bool      `json:"liked"`
	Comments []Comment `json:"comments"`
	Views    int64     `json:"views"`
	Shares   int64     `json:"shares"`
}

// CommentRequest is the payload for posting a comment.
type CommentRequest struct {
	Text   string `json:"text" validate:"required,max=2000"`
	Author string `json:"author" validate:"max=120"`
}
