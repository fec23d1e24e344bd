package cron

import (
	"context"
	"encoding/json"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sahilchouksey/fitcamp-api/model"
	"github.com/sahilchouksey/fitcamp-api/utils/logger"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Job statuses written to cron_job_logs
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// SessionSweeper logs out stale sessions
type SessionSweeper interface {
	CleanupExpiredSessions(ctx context.Context) (int, error)
}

// Config holds the job schedules (seconds precision)
type Config struct {
	SessionSweepSchedule string
	CleanupSchedule      string
	StatisticsSchedule   string
}

// DefaultConfig returns the production schedules
func DefaultConfig() Config {
	return Config{
		SessionSweepSchedule: "0 0 3 * * *", // daily at 3 AM
		CleanupSchedule:      "0 0 2 * * *", // daily at 2 AM
		StatisticsSchedule:   "0 0 * * * *", // hourly
	}
}

// CronManager manages all scheduled cron jobs
type CronManager struct {
	cron     *cron.Cron
	db       *gorm.DB
	sessions SessionSweeper
	config   Config
	now      func() time.Time
}

// NewCronManager creates a new cron manager
func NewCronManager(db *gorm.DB, sessions SessionSweeper, config Config) *CronManager {
	defaults := DefaultConfig()
	if config.SessionSweepSchedule == "" {
		config.SessionSweepSchedule = defaults.SessionSweepSchedule
	}
	if config.CleanupSchedule == "" {
		config.CleanupSchedule = defaults.CleanupSchedule
	}
	if config.StatisticsSchedule == "" {
		config.StatisticsSchedule = defaults.StatisticsSchedule
	}

	// Create cron with seconds precision
	c := cron.New(cron.WithSeconds())

	return &CronManager{
		cron:     c,
		db:       db,
		sessions: sessions,
		config:   config,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Start starts all cron jobs
func (m *CronManager) Start() error {
	logger.Global().Info().Msg("starting cron jobs")

	// Register all jobs
	if err := m.registerJobs(); err != nil {
		return err
	}

	// Start the cron scheduler
	m.cron.Start()

	logger.Global().Info().Int("jobs", len(m.cron.Entries())).Msg("cron jobs started")
	return nil
}

// Stop stops all cron jobs and waits for running ones to finish
func (m *CronManager) Stop() {
	logger.Global().Info().Msg("stopping cron jobs")
	ctx := m.cron.Stop()
	<-ctx.Done()
	logger.Global().Info().Msg("cron jobs stopped")
}

// registerJobs registers all cron jobs with their schedules
func (m *CronManager) registerJobs() error {
	jobs := []struct {
		schedule string
		run      func()
	}{
		{m.config.SessionSweepSchedule, m.SweepStaleSessions},
		{m.config.CleanupSchedule, m.CleanupOldData},
		{m.config.StatisticsSchedule, m.AggregateStatistics},
	}

	for _, job := range jobs {
		if _, err := m.cron.AddFunc(job.schedule, job.run); err != nil {
			return err
		}
	}

	logger.Global().Info().Msg("all cron jobs registered")
	return nil
}

// logJobStart records a running job and returns its log id
func (m *CronManager) logJobStart(jobName string) uint {
	logger.Global().Info().Str("job", jobName).Msg("[CRON] starting job")

	cronLog := model.CronJobLog{
		JobName:   jobName,
		Status:    StatusRunning,
		StartedAt: m.now(),
		Metadata:  datatypes.JSON("{}"),
	}
	if err := m.db.Create(&cronLog).Error; err != nil {
		logger.Global().Warn().Err(err).Str("job", jobName).Msg("[CRON] failed to record job start")
	}
	return cronLog.ID
}

// logJobComplete marks the job log completed; metadata may be nil
func (m *CronManager) logJobComplete(logID uint, jobName, message string, metadata interface{}) {
	logger.Global().Info().Str("job", jobName).Str("result", message).Msg("[CRON] completed job")

	updates := m.finishUpdates(logID, StatusCompleted)
	updates["message"] = message
	if metadata != nil {
		if raw, err := json.Marshal(metadata); err == nil {
			updates["metadata"] = datatypes.JSON(raw)
		}
	}
	m.updateLog(logID, updates)
}

// logJobError marks the job log failed
func (m *CronManager) logJobError(logID uint, jobName string, err error) {
	logger.Global().Error().Err(err).Str("job", jobName).Msg("[CRON] job failed")

	updates := m.finishUpdates(logID, StatusFailed)
	updates["error_msg"] = err.Error()
	m.updateLog(logID, updates)
}

func (m *CronManager) finishUpdates(logID uint, status string) map[string]interface{} {
	now := m.now()
	updates := map[string]interface{}{
		"status":       status,
		"completed_at": now,
	}

	var started model.CronJobLog
	if err := m.db.Select("started_at").First(&started, logID).Error; err == nil {
		updates["duration"] = now.Sub(started.StartedAt).Milliseconds()
	}
	return updates
}

func (m *CronManager) updateLog(logID uint, updates map[string]interface{}) {
	if logID == 0 {
		return
	}
	if err := m.db.Model(&model.CronJobLog{}).Where("id = ?", logID).Updates(updates).Error; err != nil {
		logger.Global().Warn().Err(err).Uint("log_id", logID).Msg("[CRON] failed to update job log")
	}
}
