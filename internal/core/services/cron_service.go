package services

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// CronService runs the console's housekeeping jobs
type CronService struct {
	cron *cron.Cron
	log  *zap.Logger
}

// NewCronService creates a new cron service
func NewCronService(log *zap.Logger) *CronService {
	if log == nil {
		log = zap.NewNop()
	}
	return &CronService{
		cron: cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger), cron.SkipIfStillRunning(cron.DefaultLogger))),
		log:  log,
	}
}

// Every schedules fn at a fixed interval
func (s *CronService) Every(interval time.Duration, name string, fn func()) error {
	if interval <= 0 {
		return fmt.Errorf("cron job %s: interval must be positive", name)
	}
	_, err := s.cron.AddFunc("@every "+interval.String(), func() {
		start := time.Now()
		fn()
		s.log.Debug("cron job finished", zap.String("job", name), zap.Duration("took", time.Since(start)))
	})
	if err != nil {
		return fmt.Errorf("cron job %s: %w", name, err)
	}
	s.log.Info("cron job scheduled", zap.String("job", name), zap.Duration("interval", interval))
	return nil
}

// Jobs returns the number of scheduled jobs
func (s *CronService) Jobs() int {
	return len(s.cron.Entries())
}

// Start runs the scheduler in the background
func (s *CronService) Start() {
	s.cron.Start()
	s.log.Info("cron service started")
}

// Stop stops the scheduler and waits for running jobs
func (s *CronService) Stop() {
	<-s.cron.Stop().Done()
	s.log.Info("cron service stopped")
}
