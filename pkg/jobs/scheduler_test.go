package jobs

import (
	"context"
	"errors"
	"sort"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingFlusher struct{ calls atomic.Int32 }

func (c *countingFlusher) Flush(context.Context) error {
	c.calls.Add(1)
	return nil
}

type failingWarmer struct{ calls atomic.Int32 }

func (f *failingWarmer) Warm(context.Context) error {
	f.calls.Add(1)
	return errors.New("gateway down")
}

func TestRegister_AddsConfiguredJobs(t *testing.T) {
	s := NewScheduler(time.Second)
	defer s.Stop()

	flusher := &countingFlusher{}
	warmer := &failingWarmer{}
	require.NoError(t, Register(s, Maintenance{Stories: flusher, Analytics: warmer}))

	names := s.Names()
	sort.Strings(names)
	assert.Equal(t, []string{FlushStories, WarmAnalytics}, names)

	require.NoError(t, s.RunNow(FlushStories))
	require.NoError(t, s.RunNow(WarmAnalytics))
	assert.Equal(t, int32(1), flusher.calls.Load())
	assert.Equal(t, int32(1), warmer.calls.Load())
}

func TestRegister_SkipsNilCollaborators(t *testing.T) {
	s := NewScheduler(time.Second)
	defer s.Stop()
	require.NoError(t, Register(s, Maintenance{}))
	assert.Empty(t, s.Names())
}

func TestScheduler_AddRejectsDuplicatesAndBadSpecs(t *testing.T) {
	s := NewScheduler(time.Second)
	defer s.Stop()

	noop := func(context.Context) error { return nil }
	require.NoError(t, s.Add("a", "@every 1m", noop))
	assert.Error(t, s.Add("a", "@every 1m", noop))
	assert.Error(t, s.Add("b", "not a schedule", noop))
	assert.Error(t, s.RunNow("missing"))
}

func TestScheduler_RunsDoNotOverlap(t *testing.T) {
	s := NewScheduler(time.Second)
	defer s.Stop()

	started := make(chan struct{})
	release := make(chan struct{})
	var runs atomic.Int32
	require.NoError(t, s.Add("slow", "@every 1h", func(ctx context.Context) error {
		runs.Add(1)
		close(started)
		<-release
		return nil
	}))

	go func() { _ = s.RunNow("slow") }()
	<-started
	require.NoError(t, s.RunNow("slow"))
	close(release)

	assert.Eventually(t, func() bool { return runs.Load() == 1 }, time.Second, 10*time.Millisecond)
}

func TestScheduler_StopCancelsRuns(t *testing.T) {
	s := NewScheduler(time.Minute)
	started := make(chan struct{})
	var cancelled atomic.Bool
	require.NoError(t, s.Add("wait", "@every 1h", func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		cancelled.Store(true)
		return ctx.Err()
	}))
	s.Start()

	go func() { _ = s.RunNow("wait") }()
	<-started
	s.Stop()
	assert.True(t, cancelled.Load())

	// Runs after Stop are skipped.
	require.NoError(t, s.RunNow("wait"))
}
