package investsweep

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sanchay-service/sanchay_service/internal/domain/services/autoinvest"
	"github.com/sanchay-service/sanchay_service/pkg/jobqueue"
)

const jobName = "scheduled-invest-sweep"

// Scheduler runs the periodic pass over SCHEDULED auto-invest rules. The
// sweep evaluates each user's rules independently, so one user's failure
// never stops the pass.
type Scheduler struct {
	jobs        *jobqueue.JobScheduler
	service     *autoinvest.Service
	schedule    string
	concurrency int
	logger      *zap.Logger
}

// NewScheduler creates a new sweep scheduler
func NewScheduler(service *autoinvest.Service, schedule string, concurrency int, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		jobs:        jobqueue.NewJobScheduler(logger),
		service:     service,
		schedule:    schedule,
		concurrency: concurrency,
		logger:      logger,
	}
}

// Start registers the sweep job and starts the cron loop
func (s *Scheduler) Start() error {
	err := s.jobs.AddJob(jobqueue.ScheduledJob{
		Name:     jobName,
		Schedule: s.schedule,
		Timeout:  30 * time.Minute,
		Handler: func(ctx context.Context) error {
			return s.service.EvaluateAllScheduled(ctx, s.concurrency)
		},
	})
	if err != nil {
		return err
	}

	s.jobs.Start()
	s.logger.Info("Invest sweep scheduler started",
		zap.String("schedule", s.schedule),
		zap.Int("concurrency", s.concurrency))
	return nil
}

// Stop drains the cron loop, waiting for a running sweep to finish
func (s *Scheduler) Stop() {
	s.jobs.Stop()
}
