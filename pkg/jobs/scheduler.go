// Package jobs runs periodic maintenance in long-running processes.
package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron"
	log "github.com/sirupsen/logrus"
)

// Func is one run of a job.
type Func func(ctx context.Context) error

type job struct {
	name string
	spec string
	run  Func
}

// Scheduler runs named jobs on cron schedules. Runs of the same job never overlap.
type Scheduler struct {
	cron    *cron.Cron
	timeout time.Duration

	mu      sync.Mutex
	jobs    map[string]*job
	running map[string]bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewScheduler bounds every run by timeout.
func NewScheduler(timeout time.Duration) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:    cron.New(),
		timeout: timeout,
		jobs:    map[string]*job{},
		running: map[string]bool{},
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Add registers fn under name with a cron spec such as "@every 1m".
func (s *Scheduler) Add(name, spec string, fn Func) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("job %q already registered", name)
	}
	j := &job{name: name, spec: spec, run: fn}
	if err := s.cron.AddFunc(spec, func() { s.execute(j) }); err != nil {
		return fmt.Errorf("invalid schedule %q for job %q: %w", spec, name, err)
	}
	s.jobs[name] = j
	return nil
}

func (s *Scheduler) execute(j *job) {
	s.mu.Lock()
	if s.running[j.name] || s.ctx.Err() != nil {
		s.mu.Unlock()
		return
	}
	s.running[j.name] = true
	s.wg.Add(1)
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.running, j.name)
		s.mu.Unlock()
		s.wg.Done()
	}()

	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()

	started := time.Now()
	entry := log.WithField("job", j.name)
	if err := j.run(ctx); err != nil {
		entry.WithError(err).Warn("job failed")
		return
	}
	entry.WithField("duration", time.Since(started).String()).Debug("job finished")
}

// RunNow runs a registered job immediately in the calling goroutine.
func (s *Scheduler) RunNow(name string) error {
	s.mu.Lock()
	j, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown job %q", name)
	}
	s.execute(j)
	return nil
}

// Names lists the registered jobs.
func (s *Scheduler) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	return names
}

func (s *Scheduler) Start() {
	log.WithField("jobs", len(s.jobs)).Info("starting job scheduler")
	s.cron.Start()
}

// Stop halts scheduling, cancels in-flight runs and waits for them.
func (s *Scheduler) Stop() {
	s.cron.Stop()
	s.cancel()
	s.wg.Wait()
	log.Info("job scheduler stopped")
}
