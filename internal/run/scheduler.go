package run

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const runTimeout = 30 * time.Minute

// Scheduler invokes the orchestrator on a cron schedule. The orchestrator's
// single-flight guard handles the case of a run still going when the next
// tick fires.
type Scheduler struct {
	cron   *cron.Cron
	logger *zap.Logger
}

func NewScheduler(spec string, orch *Orchestrator, logger *zap.Logger) (*Scheduler, error) {
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
		defer cancel()

		if _, err := orch.Run(ctx); err != nil {
			if errors.Is(err, ErrRunInProgress) {
				logger.Warn("scheduled run skipped, previous run still in progress")
				return
			}
			logger.Error("scheduled run failed", zap.Error(err))
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid analysis schedule %q: %w", spec, err)
	}
	return &Scheduler{cron: c, logger: logger}, nil
}

// Start begins the cron loop in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("analysis scheduler started")
}

// Stop halts scheduling and waits for a running job to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("analysis scheduler stopped")
}
