// Package scheduler drives monitoring passes on a fixed cadence. The
// monitoring service holds no timer of its own; this is its only driver
// besides the manual trigger endpoint.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/slanglab/backend/internal/config"
	"github.com/slanglab/backend/internal/monitoring"
)

// Service schedules monitoring passes.
type Service struct {
	config            *config.Config
	monitoringService *monitoring.Service
	cron              *cron.Cron
}

// NewService creates a new scheduler service.
func NewService(cfg *config.Config, monitoringService *monitoring.Service) *Service {
	return &Service{
		config:            cfg,
		monitoringService: monitoringService,
		cron:              cron.New(cron.WithSeconds()),
	}
}

// Start begins the scheduled passes.
func (s *Service) Start() error {
	// Run at minute zero every PassIntervalHours hours.
	cronExpression := fmt.Sprintf("0 0 */%d * * *", s.config.PassIntervalHours)

	_, err := s.cron.AddFunc(cronExpression, func() {
		logrus.Info("Starting scheduled monitoring pass")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
		defer cancel()
		if err := s.monitoringService.RunPass(ctx); err != nil {
			logrus.Errorf("Scheduled monitoring pass failed: %v", err)
		}
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	logrus.Infof("Scheduler started, monitoring pass every %d hours", s.config.PassIntervalHours)
	return nil
}

// Stop stops the scheduler.
func (s *Service) Stop() {
	if s.cron != nil {
		s.cron.Stop()
		logrus.Info("Scheduler stopped")
	}
}
