package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/sahilchouksey/fitcamp-api/model"
	"github.com/sahilchouksey/fitcamp-api/utils/logger"
)

const (
	jobSweepSessions       = "sweep_stale_sessions"
	jobCleanupOldData      = "cleanup_old_data"
	jobAggregateStatistics = "aggregate_statistics"

	// logged out sessions and job logs are kept this long
	historyRetention = 90 * 24 * time.Hour
)

// SweepStaleSessions logs out sessions idle beyond the retention window.
// Runs daily; individual session failures are skipped by the registry.
func (m *CronManager) SweepStaleSessions() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	logID := m.logJobStart(jobSweepSessions)

	cleaned, err := m.sessions.CleanupExpiredSessions(ctx)
	if err != nil {
		m.logJobError(logID, jobSweepSessions, fmt.Errorf("failed to sweep sessions: %w", err))
		return
	}

	m.logJobComplete(logID, jobSweepSessions, fmt.Sprintf("Logged out %d stale sessions", cleaned), map[string]int{
		"sessions_logged_out": cleaned,
	})
}

// CleanupOldData purges logged out sessions and old job logs
func (m *CronManager) CleanupOldData() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	logID := m.logJobStart(jobCleanupOldData)
	db := m.db.WithContext(ctx)
	cutoff := m.now().Add(-historyRetention)

	totalCleaned := 0

	// 1. Logged out sessions
	result := db.Where("is_active = ? AND logout_time < ?", false, cutoff).Delete(&model.UserSession{})
	if result.Error != nil {
		logger.Warn(ctx).Err(result.Error).Msg("[CRON] failed to purge logged out sessions")
	} else {
		totalCleaned += int(result.RowsAffected)
	}

	// 2. Job logs
	result = db.Where("created_at < ?", cutoff).Delete(&model.CronJobLog{})
	if result.Error != nil {
		logger.Warn(ctx).Err(result.Error).Msg("[CRON] failed to purge cron logs")
	} else {
		totalCleaned += int(result.RowsAffected)
	}

	m.logJobComplete(logID, jobCleanupOldData, fmt.Sprintf("Cleaned up %d total records", totalCleaned), nil)
}

// Statistics is the snapshot stored in the aggregate job's metadata
type Statistics struct {
	Users          int64 `json:"users"`
	OnlineUsers    int64 `json:"online_users"`
	ActiveSessions int64 `json:"active_sessions"`
	Activities     int64 `json:"activities"`
	Participations int64 `json:"participations"`
	Favorites      int64 `json:"favorites"`
	Comments       int64 `json:"comments"`
}

// AggregateStatistics snapshots table counts into the job log
func (m *CronManager) AggregateStatistics() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	logID := m.logJobStart(jobAggregateStatistics)

	stats, err := m.collectStatistics(ctx)
	if err != nil {
		m.logJobError(logID, jobAggregateStatistics, err)
		return
	}

	m.logJobComplete(logID, jobAggregateStatistics, fmt.Sprintf("%d users online", stats.OnlineUsers), stats)
}

func (m *CronManager) collectStatistics(ctx context.Context) (*Statistics, error) {
	db := m.db.WithContext(ctx)
	stats := &Statistics{}

	counts := []struct {
		dst   *int64
		model interface{}
		query string
		args  []interface{}
	}{
		{&stats.Users, &model.User{}, "", nil},
		{&stats.OnlineUsers, &model.User{}, "is_online = ?", []interface{}{true}},
		{&stats.ActiveSessions, &model.UserSession{}, "is_active = ?", []interface{}{true}},
		{&stats.Activities, &model.Activity{}, "", nil},
		{&stats.Participations, &model.Participation{}, "", nil},
		{&stats.Favorites, &model.Favorite{}, "", nil},
		{&stats.Comments, &model.Comment{}, "", nil},
	}

	for _, c := range counts {
		q := db.Model(c.model)
		if c.query != "" {
			q = q.Where(c.query, c.args...)
		}
		if err := q.Count(c.dst).Error; err != nil {
			return nil, fmt.Errorf("failed to count %T: %w", c.model, err)
		}
	}
	return stats, nil
}
