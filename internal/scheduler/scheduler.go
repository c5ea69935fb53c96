// Package scheduler runs the periodic reminder and summary sweeps on cron
// schedules. A Scheduler owns its cron instance; re-arming replaces the
// previous instance instead of stacking timers.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"contentcal/api/internal/logger"
)

// Job is a named function run on a cron spec.
type Job struct {
	Name string
	Spec string
	Run  func(ctx context.Context) error
}

// Entry describes an armed job.
type Entry struct {
	Name string
	Spec string
	Next time.Time
}

type Scheduler struct {
	mu      sync.Mutex
	log     logger.Logger
	parser  cron.Parser
	cron    *cron.Cron
	jobs    []Job
	entries map[string]cron.EntryID
	ctx     context.Context
	cancel  context.CancelFunc
}

func New(log logger.Logger) *Scheduler {
	if log == nil {
		log = logger.NewNop()
	}
	return &Scheduler{
		log:    log.With(logger.String("component", "scheduler")),
		parser: cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
	}
}

// Rearm validates every spec, stops the running cron if any and starts a
// fresh one with exactly jobs. On a bad spec the running schedule is kept.
func (s *Scheduler) Rearm(jobs ...Job) error {
	for _, job := range jobs {
		if job.Run == nil {
			return fmt.Errorf("job %s has no function", job.Name)
		}
		if _, err := s.parser.Parse(job.Spec); err != nil {
			return fmt.Errorf("job %s: invalid schedule %q: %w", job.Name, job.Spec, err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopLocked()

	ctx, cancel := context.WithCancel(context.Background())
	c := cron.New(cron.WithParser(s.parser), cron.WithChain(cron.Recover(cron.DefaultLogger)))
	entries := make(map[string]cron.EntryID, len(jobs))
	for _, job := range jobs {
		job := job
		id, err := c.AddFunc(job.Spec, func() { s.run(ctx, job) })
		if err != nil {
			cancel()
			return fmt.Errorf("schedule job %s: %w", job.Name, err)
		}
		entries[job.Name] = id
	}
	c.Start()

	s.cron = c
	s.jobs = append([]Job(nil), jobs...)
	s.entries = entries
	s.ctx = ctx
	s.cancel = cancel
	s.log.Info("Scheduler armed", logger.Int("jobs", len(jobs)))
	return nil
}

// Start arms the jobs from the last Rearm call.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	jobs := append([]Job(nil), s.jobs...)
	s.mu.Unlock()
	return s.Rearm(jobs...)
}

// Stop halts the cron and waits for running jobs. Safe to call repeatedly.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

func (s *Scheduler) stopLocked() {
	if s.cron == nil {
		return
	}
	s.cancel()
	<-s.cron.Stop().Done()
	s.cron = nil
	s.entries = nil
	s.log.Info("Scheduler stopped")
}

// Entries lists armed jobs with their next run time.
func (s *Scheduler) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron == nil {
		return nil
	}
	out := make([]Entry, 0, len(s.jobs))
	for _, job := range s.jobs {
		entry := s.cron.Entry(s.entries[job.Name])
		out = append(out, Entry{Name: job.Name, Spec: job.Spec, Next: entry.Next})
	}
	return out
}

// RunNow executes a registered job synchronously.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	s.mu.Lock()
	var found *Job
	for i := range s.jobs {
		if s.jobs[i].Name == name {
			found = &s.jobs[i]
			break
		}
	}
	s.mu.Unlock()
	if found == nil {
		return fmt.Errorf("unknown job %q", name)
	}
	return found.Run(ctx)
}

func (s *Scheduler) run(ctx context.Context, job Job) {
	started := time.Now()
	if err := job.Run(ctx); err != nil {
		s.log.Error("Scheduled job failed", logger.String("job", job.Name), logger.Error(err))
		return
	}
	s.log.Debug("Scheduled job finished", logger.String("job", job.Name), logger.Duration("took", time.Since(started)))
}
