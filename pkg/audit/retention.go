package audit

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/gable-pm/gable/pkg/observability"
)

// RetentionSweeper periodically deletes audit records older than the
// configured retention window.
type RetentionSweeper struct {
	store         *Store
	logger        *observability.Logger
	retentionDays int
	schedule      string
	cron          *cron.Cron
}

// NewRetentionSweeper creates a sweeper. retentionDays of zero disables it.
func NewRetentionSweeper(store *Store, logger *observability.Logger, retentionDays int, schedule string) *RetentionSweeper {
	return &RetentionSweeper{
		store:         store,
		logger:        logger,
		retentionDays: retentionDays,
		schedule:      schedule,
	}
}

// Start schedules the sweep. Returns immediately; sweeps run on the cron
// schedule until Stop is called.
func (s *RetentionSweeper) Start() error {
	if s.retentionDays <= 0 {
		s.logger.Info("audit retention sweeper disabled")
		return nil
	}

	s.cron = cron.New()
	_, err := s.cron.AddFunc(s.schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		s.sweep(ctx)
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	s.logger.WithFields(map[string]interface{}{
		"retention_days": s.retentionDays,
		"schedule":       s.schedule,
	}).Info("audit retention sweeper started")
	return nil
}

// Stop halts scheduled sweeps, waiting for a running sweep to finish
func (s *RetentionSweeper) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
}

func (s *RetentionSweeper) sweep(ctx context.Context) {
	cutoff := time.Now().UTC().AddDate(0, 0, -s.retentionDays)

	deleted, err := s.store.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		s.logger.WithError(err).Error("audit retention sweep failed")
		return
	}

	if deleted > 0 {
		s.logger.WithFields(map[string]interface{}{
			"deleted": deleted,
			"cutoff":  cutoff.Format(time.RFC3339),
		}).Info("audit retention sweep completed")
	}
}
