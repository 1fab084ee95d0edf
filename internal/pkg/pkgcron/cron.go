package pkgcron

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"
)

// Scheduler wraps robfig/cron and remembers registered job names.
type Scheduler struct {
	mu      sync.RWMutex
	c       *cron.Cron
	entries map[string]cron.EntryID
}

// New creates a stopped Scheduler. Call Start to activate it.
func New() *Scheduler {
	return &Scheduler{
		c:       cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		entries: make(map[string]cron.EntryID),
	}
}

// AddJob registers fn under name on the given cron expression ("@every 30m",
// "0 * * * *"). Registering an existing name replaces the previous job.
func (s *Scheduler) AddJob(name, expr string, fn func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.entries[name]; ok {
		s.c.Remove(id)
		delete(s.entries, name)
	}

	id, err := s.c.AddFunc(expr, func() {
		defer func() {
			if rvr := recover(); rvr != nil {
				slog.Error("scheduler: job panicked", "job", name, "panic", rvr)
			}
		}()
		fn()
	})
	if err != nil {
		return fmt.Errorf("invalid cron expression %q for job %q: %w", expr, name, err)
	}

	s.entries[name] = id
	slog.Info("scheduler: job added", "job", name, "cron", expr)

	return nil
}

// Jobs returns the names of registered jobs.
func (s *Scheduler) Jobs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.entries))
	for name := range s.entries {
		names = append(names, name)
	}

	return names
}

// Start begins the cron loop.
func (s *Scheduler) Start() {
	s.c.Start()
}

// Stop halts the cron loop and waits for running jobs until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.c.Stop()

	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
