package jobs

import (
	"context"
)

// Job names.
const (
	FlushStories  = "flush-stories"
	WarmAnalytics = "warm-analytics"
)

// StoryFlusher reconciles cached story edits to the store.
type StoryFlusher interface {
	Flush(ctx context.Context) error
}

// ReportWarmer rebuilds the cached donation report.
type ReportWarmer interface {
	Warm(ctx context.Context) error
}

// Maintenance lists the collaborators of the built-in jobs. Nil fields skip their job.
type Maintenance struct {
	Stories   StoryFlusher
	Analytics ReportWarmer
}

// Register adds the built-in maintenance jobs to s.
func Register(s *Scheduler, m Maintenance) error {
	if m.Stories != nil {
		if err := s.Add(FlushStories, "@every 1m", m.Stories.Flush); err != nil {
			return err
		}
	}
	if m.Analytics != nil {
		if err := s.Add(WarmAnalytics, "@every 60s", m.Analytics.Warm); err != nil {
			return err
		}
	}
	return nil
}
