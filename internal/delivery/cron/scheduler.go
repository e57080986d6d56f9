package cron

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	cron "github.com/robfig/cron/v3"

	"yt_multi_account/config"
	"yt_multi_account/internal/domain"
	"yt_multi_account/internal/logger"
	"yt_multi_account/internal/usecase"
)

// Scheduler fires the batches declared in the schedules section
type Scheduler struct {
	cron    *cron.Cron
	config  *config.Config
	batches *usecase.BatchService

	// busy skips a firing while an earlier one is still running
	busy sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
}

// NewScheduler creates a new cron scheduler
func NewScheduler(cfg *config.Config, batches *usecase.BatchService) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	c := cron.New(
		cron.WithSeconds(),
		cron.WithChain(cron.Recover(cron.PrintfLogger(logger.Error()))),
	)

	return &Scheduler{
		cron:    c,
		config:  cfg,
		batches: batches,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start registers every schedule and starts the cron scheduler
func (s *Scheduler) Start() error {
	for _, sched := range s.config.Schedules {
		sched := sched
		spec := normalizeSchedule(sched.Cron)
		id, err := s.cron.AddFunc(spec, func() { s.runSchedule(sched) })
		if err != nil {
			return fmt.Errorf("failed to schedule %s: %w", sched.Name, err)
		}
		logger.Info().Printf("Scheduled %s batch %q with ID: %d, schedule: %s", sched.Action, sched.Name, id, spec)
	}

	s.cron.Start()
	logger.Info().Printf("Cron scheduler started with %d schedule(s)", len(s.config.Schedules))
	return nil
}

// Stop cancels running batches and waits for jobs to return
func (s *Scheduler) Stop() {
	logger.Info().Println("Stopping cron scheduler...")
	s.cancel()
	<-s.cron.Stop().Done()
	logger.Info().Println("Cron scheduler stopped")
}

func (s *Scheduler) runSchedule(sched config.Schedule) {
	if !s.busy.TryLock() {
		logger.Error().Printf("Schedule %q skipped: another batch is still running", sched.Name)
		return
	}
	defer s.busy.Unlock()

	logger.Info().Printf("Starting scheduled batch %q...", sched.Name)
	startTime := time.Now()

	batches := s.batches.WithPacing(domain.PacingPolicy{
		Delay:  sched.Delay,
		Jitter: s.config.PacingJitter,
	})

	var (
		run *domain.Run
		err error
	)
	switch domain.ActionKind(sched.Action) {
	case domain.ActionComment:
		run, err = batches.CommentBatch(s.ctx, sched.Accounts, sched.Target, sched.Text)
	case domain.ActionLike:
		run, err = batches.LikeBatch(s.ctx, sched.Accounts, sched.Target)
	default:
		err = fmt.Errorf("unknown action %q", sched.Action)
	}
	if err != nil {
		logger.Error().Printf("Scheduled batch %q failed: %v", sched.Name, err)
		return
	}

	logger.Info().Printf("Scheduled batch %q completed in %v: %d/%d succeeded (run %s)",
		sched.Name, time.Since(startTime), run.Succeeded(), len(run.Results), run.ID)
}

// normalizeSchedule ensures cron expressions are compatible with cron.WithSeconds
func normalizeSchedule(expr string) string {
	fields := strings.Fields(expr)
	if len(fields) == 5 {
		return "0 " + expr
	}
	return expr
}
