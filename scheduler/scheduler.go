package scheduler

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"

	"keyword-median/utils"
)

// Job is one scheduled unit of work.
type Job func(ctx context.Context) error

// Scheduler runs a refresh job on a cron schedule. A tick is skipped while
// the previous run is still going.
type Scheduler struct {
	cron    *cron.Cron
	logger  *utils.Logger
	mu      sync.Mutex
	started bool
	runs    int
}

// New creates a Scheduler that logs through logger.
func New(logger *utils.Logger) *Scheduler {
	cl := cron.PrintfLogger(logger)
	return &Scheduler{
		cron:   cron.New(cron.WithLogger(cl), cron.WithChain(cron.SkipIfStillRunning(cl))),
		logger: logger,
	}
}

// Schedule registers job under spec, a standard five-field cron expression
// or a descriptor such as "@hourly".
func (s *Scheduler) Schedule(ctx context.Context, spec string, name string, job Job) error {
	_, err := s.cron.AddFunc(spec, func() {
		s.mu.Lock()
		s.runs++
		run := s.runs
		s.mu.Unlock()

		s.logger.Info("[scheduler] %s run #%d starting", name, run)
		if err := job(ctx); err != nil {
			s.logger.Error("[scheduler] %s run #%d failed: %v", name, run, err)
			return
		}
		s.logger.Info("[scheduler] %s run #%d done", name, run)
	})
	if err != nil {
		return fmt.Errorf("scheduler: add %q: %w", spec, err)
	}
	return nil
}

// Start begins the scheduler.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		s.cron.Start()
		s.started = true
	}
}

// Stop halts the scheduler and waits for a running job to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	started := s.started
	s.started = false
	s.mu.Unlock()

	if started {
		<-s.cron.Stop().Done()
	}
}
