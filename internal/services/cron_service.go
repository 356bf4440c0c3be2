package services

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// CronConfig holds the schedules of the background jobs
type CronConfig struct {
	ReaperSchedule       string // e.g. "@every 1m"
	AuditCleanupSchedule string // second minute hour day month weekday
	AuditRetention       time.Duration
	JobTimeout           time.Duration
}

// CronService manages scheduled background jobs
type CronService struct {
	cron   *cron.Cron
	reaper *PendingBookingReaper
	audit  *AuditService
	cfg    CronConfig
	logger *logrus.Logger
}

// NewCronService creates a new CronService
func NewCronService(reaper *PendingBookingReaper, audit *AuditService, cfg CronConfig, logger *logrus.Logger) *CronService {
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = time.Minute
	}

	// Seconds precision; descriptors such as "@every 1m" are accepted too
	c := cron.New(cron.WithSeconds(), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))

	return &CronService{
		cron:   c,
		reaper: reaper,
		audit:  audit,
		cfg:    cfg,
		logger: logger,
	}
}

// Start schedules all jobs and starts the scheduler
func (s *CronService) Start() error {
	if _, err := s.cron.AddFunc(s.cfg.ReaperSchedule, s.expirePendingBookingsJob); err != nil {
		return fmt.Errorf("failed to schedule pending booking reaper: %w", err)
	}
	s.logger.WithField("schedule", s.cfg.ReaperSchedule).Info("Scheduled: expire pending bookings")

	if s.audit != nil && s.cfg.AuditRetention > 0 && s.cfg.AuditCleanupSchedule != "" {
		if _, err := s.cron.AddFunc(s.cfg.AuditCleanupSchedule, s.cleanupAuditLogsJob); err != nil {
			return fmt.Errorf("failed to schedule audit cleanup job: %w", err)
		}
		s.logger.WithFields(logrus.Fields{
			"schedule":  s.cfg.AuditCleanupSchedule,
			"retention": s.cfg.AuditRetention.String(),
		}).Info("Scheduled: cleanup old audit logs")
	}

	s.cron.Start()
	s.logger.Info("Cron service started")
	return nil
}

// Stop stops the scheduler and waits for running jobs
func (s *CronService) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("Cron service stopped")
}

func (s *CronService) expirePendingBookingsJob() {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.JobTimeout)
	defer cancel()

	startTime := time.Now()
	result, err := s.reaper.RunOnce(ctx)
	if err != nil {
		s.logger.WithError(err).Error("[CRON] Pending booking reaper failed")
		return
	}
	if result.Scanned == 0 {
		return
	}

	entry := s.logger.WithFields(logrus.Fields{
		"scanned":   result.Scanned,
		"expired":   result.Expired,
		"contended": result.Contended,
		"failed":    result.Failed,
		"duration":  time.Since(startTime).String(),
	})
	if result.Contended > 0 {
		entry.Warn("[CRON] Expired pending bookings, some trips were locked")
		return
	}
	entry.Info("[CRON] Expired pending bookings")
}

func (s *CronService) cleanupAuditLogsJob() {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.JobTimeout)
	defer cancel()

	if _, err := s.audit.CleanupOldAuditLogs(ctx, s.cfg.AuditRetention); err != nil {
		s.logger.WithError(err).Error("[CRON] Audit log cleanup failed")
	}
}

// RunReaperNow runs the reaper immediately
func (s *CronService) RunReaperNow() {
	s.expirePendingBookingsJob()
}

// GetJobStatus returns the status of scheduled jobs
func (s *CronService) GetJobStatus() map[string]interface{} {
	entries := s.cron.Entries()

	jobs := make([]map[string]interface{}, 0, len(entries))
	for _, entry := range entries {
		jobs = append(jobs, map[string]interface{}{
			"id":       entry.ID,
			"next_run": entry.Next,
			"prev_run": entry.Prev,
		})
	}

	return map[string]interface{}{
		"running":   len(entries) > 0,
		"job_count": len(entries),
		"jobs":      jobs,
	}
}
