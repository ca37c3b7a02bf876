package consolidate

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"engram/internal/domain"
)

// Scheduler runs a Consolidator on a recurring cron or duration schedule,
// in the pack's cron.Cron-wrapped scheduler style.
type Scheduler struct {
	cron         *cron.Cron
	consolidator *Consolidator
	options      domain.ConsolidateOptions
	logger       *slog.Logger

	mu      sync.Mutex
	started bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewScheduler creates a Scheduler that runs consolidator with options on
// the given schedule (a cron expression or a Go duration string).
func NewScheduler(consolidator *Consolidator, options domain.ConsolidateOptions, schedule string, logger *slog.Logger) (*Scheduler, error) {
	parsed, err := parseSchedule(schedule)
	if err != nil {
		return nil, fmt.Errorf("consolidate: invalid schedule %q: %w", schedule, err)
	}

	s := &Scheduler{
		cron:         cron.New(),
		consolidator: consolidator,
		options:      options,
		logger:       logger,
	}
	s.cron.Schedule(parsed, cron.FuncJob(s.runOnce))
	return s, nil
}

func (s *Scheduler) runOnce() {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	if ctx == nil {
		return
	}

	taskCtx, cancel := context.WithTimeout(ctx, 10*time.Minute)
	defer cancel()

	start := time.Now()
	report, err := s.consolidator.Run(taskCtx, s.options)
	if err != nil {
		s.logger.Warn("scheduled consolidation failed", "error", err, "duration", time.Since(start))
		return
	}
	s.logger.Info("scheduled consolidation completed",
		"duplicates_removed", report.DuplicatesRemoved,
		"contradictions_detected", report.ContradictionsDetected,
		"memories_decayed", report.MemoriesDecayed,
		"stale_deleted", report.StaleDeleted,
		"duration_ms", report.DurationMS)
}

// Start begins running the scheduler against ctx.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.cron.Start()
	s.started = true
}

// Stop signals the scheduler to stop and waits for the in-flight run to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return
	}
	if s.cancel != nil {
		s.cancel()
	}
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	s.started = false
}

// parseSchedule accepts a cron expression ("0 * * * *" or "@every 1h") or a
// plain Go duration ("1h30m").
func parseSchedule(schedule string) (cron.Schedule, error) {
	if schedule == "" {
		return nil, fmt.Errorf("empty schedule")
	}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	if sched, err := parser.Parse(schedule); err == nil {
		return sched, nil
	}
	dur, err := time.ParseDuration(schedule)
	if err != nil {
		return nil, fmt.Errorf("not a valid cron expression or duration: %q", schedule)
	}
	if dur <= 0 {
		return nil, fmt.Errorf("duration must be positive: %q", schedule)
	}
	return cron.Every(dur), nil
}
