package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/robfig/cron/v3"

	"QuoteKeeper/internal/ingest"
	"QuoteKeeper/internal/model"
	"QuoteKeeper/internal/notifier"
)

// Scheduler manages all cron tasks. Tasks never overlap: the store has a
// single writer.
type Scheduler struct {
	Cron     *cron.Cron
	Pipeline *ingest.Pipeline
	Notifier notifier.Notifier
	Ctx      context.Context

	run     sync.Mutex // held by a running task
	tasks   sync.WaitGroup
	mu      sync.Mutex
	last    *model.Report
	stopped bool
}

// NewScheduler creates a new Scheduler.
func NewScheduler(ctx context.Context, p *ingest.Pipeline, n notifier.Notifier) *Scheduler {
	return &Scheduler{
		Cron:     cron.New(cron.WithSeconds()),
		Pipeline: p,
		Notifier: n,
		Ctx:      ctx,
	}
}

// RegisterAll registers the ingest and registry check tasks.
func (s *Scheduler) RegisterAll(ingestCron, registryCron string) error {
	if _, err := s.Cron.AddFunc(ingestCron, s.ingestTask); err != nil {
		return fmt.Errorf("register ingest task: %w", err)
	}
	if _, err := s.Cron.AddFunc(registryCron, s.registryTask); err != nil {
		return fmt.Errorf("register registry task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	log.Println("[INFO] scheduler started")
}

// Stop stops the cron scheduler and waits for running tasks, including the
// ones started by Trigger or a command. No task starts afterwards.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
	s.tasks.Wait()
	log.Println("[INFO] scheduler stopped")
}

// RunNow executes the ingest task immediately (for manual trigger / RUN_ON_START).
func (s *Scheduler) RunNow() {
	s.ingestTask()
}

// Trigger starts the ingest task in the background. It reports false once
// the scheduler is stopped.
func (s *Scheduler) Trigger() bool { return s.spawn(s.ingestTask) }

func (s *Scheduler) spawn(task func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return false
	}
	s.tasks.Add(1)
	go func() {
		defer s.tasks.Done()
		task()
	}()
	return true
}

// Last returns the report of the last ingest run, nil before the first one.
func (s *Scheduler) Last() *model.Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

func (s *Scheduler) ingestTask() {
	s.run.Lock()
	defer s.run.Unlock()

	log.Println("[INFO] running ingest task")
	rep, err := s.Pipeline.Run(s.Ctx)
	if err != nil {
		log.Printf("[ERROR] ingest task: %v", err)
	}
	s.mu.Lock()
	s.last = rep
	s.mu.Unlock()
}

func (s *Scheduler) registryTask() { s.checkRegistry(false) }

// checkRegistry reports registry problems. A clean result is only sent when always is set.
func (s *Scheduler) checkRegistry(always bool) {
	s.run.Lock()
	defer s.run.Unlock()

	log.Println("[INFO] running registry check")
	reg, unknown, err := s.Pipeline.CheckRegistry()
	if err != nil {
		log.Printf("[ERROR] registry check: %v", err)
		s.trySend(notifier.FormatError("registry check", err))
		return
	}
	if !always && !reg.Report().HasErrors() && len(unknown) == 0 {
		return
	}
	s.trySend(notifier.FormatRegistryCheck(reg.Len(), reg.Report(), unknown))
}

// HandleCommand processes a user command and returns a reply.
func (s *Scheduler) HandleCommand(command string) string {
	switch command {
	case "/run":
		// the pipeline notifies on its own
		if !s.Trigger() {
			return "shutting down"
		}
		return "ingest started"
	case "/status":
		if last := s.Last(); last != nil {
			return notifier.FormatReport(last)
		}
		return "no ingest run yet"
	case "/registry":
		if !s.spawn(func() { s.checkRegistry(true) }) {
			return "shutting down"
		}
		return ""
	default:
		return "available commands:\n• /run\n• /status\n• /registry"
	}
}

func (s *Scheduler) trySend(text string) {
	if s.Notifier == nil {
		return
	}
	if err := s.Notifier.Notify(s.Ctx, text); err != nil {
		log.Printf("[ERROR] send notification: %v", err)
	}
}
