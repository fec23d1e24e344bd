package services

import (
	"context"
	"time"

	"github.com/sahilchouksey/fitcamp-api/events"
	"github.com/sahilchouksey/fitcamp-api/model"
	"github.com/sahilchouksey/fitcamp-api/utils/logger"
	"github.com/sahilchouksey/fitcamp-api/utils/metrics"
	"gorm.io/gorm"
)

// SessionRetention is how long a session may stay idle before the sweep logs it out
const SessionRetention = 30 * 24 * time.Hour

// DeviceMeta is the optional client metadata recorded with a session
type DeviceMeta struct {
	DeviceInfo string
	UserAgent  string
	IPAddress  string
}

// OnlineUser is the public projection returned by GetOnlineUsers
type OnlineUser = model.UserSummary

// SessionService tracks the active (user, token) pairs and derives users.is_online from them.
// Every mutation recomputes the flag from a fresh count while holding the user row.
type SessionService struct {
	store
	publisher events.Publisher
	retention time.Duration
	now       func() time.Time
}

// NewSessionService creates a new session registry
func NewSessionService(db *gorm.DB, publisher events.Publisher) *SessionService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &SessionService{
		store:     newStore(db, DefaultLockWait),
		publisher: publisher,
		retention: SessionRetention,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// CreateSession records a newly issued token as an active session and marks the user online
func (s *SessionService) CreateSession(ctx context.Context, userID uint, token string, meta DeviceMeta) (*model.UserSession, error) {
	now := s.now()
	session := &model.UserSession{
		UserID:         userID,
		Token:          token,
		DeviceInfo:     meta.DeviceInfo,
		UserAgent:      meta.UserAgent,
		IPAddress:      meta.IPAddress,
		IsActive:       true,
		LoginTime:      now,
		LastActiveTime: now,
	}

	var wasOnline bool
	err := s.transaction(ctx, func(tx *gorm.DB) error {
		user, err := loadUser(tx, userID, true)
		if err != nil {
			return err
		}
		wasOnline = user.IsOnline

		if err := tx.Omit("User").Create(session).Error; err != nil {
			return err
		}
		_, err = recomputeOnline(tx, userID, &now)
		return err
	})
	if err != nil {
		return nil, wrapStoreErr("failed to create session", err)
	}

	metrics.RecordSessionEvent("created", 1)
	if !wasOnline {
		publish(ctx, s.publisher, events.Event{Type: events.TypeUserOnline, UserID: userID, OccurredAt: now})
	}
	return session, nil
}

// ValidateSession returns the active session for token and refreshes its activity time.
// It fails with ErrNoActiveSession when the token has no active session.
func (s *SessionService) ValidateSession(ctx context.Context, token string) (*model.UserSession, error) {
	now := s.now()

	var session model.UserSession
	err := s.transaction(ctx, func(tx *gorm.DB) error {
		if err := tx.Where("token = ? AND is_active = ?", token, true).First(&session).Error; err != nil {
			if isNotFound(err) {
				return ErrNoActiveSession
			}
			return err
		}

		if err := tx.Model(&model.UserSession{}).
			Where("id = ?", session.ID).
			Update("last_active_time", now).Error; err != nil {
			return err
		}
		return tx.Model(&model.User{}).
			Where("id = ?", session.UserID).
			Update("last_active_time", now).Error
	})
	if err != nil {
		return nil, wrapStoreErr("failed to validate session", err)
	}

	session.LastActiveTime = now
	return &session, nil
}

// LogoutSession deactivates the session for token. Logging out an unknown or
// already inactive token is a no-op.
func (s *SessionService) LogoutSession(ctx context.Context, token string) error {
	now := s.now()

	var (
		userID      uint
		wentOffline bool
	)
	err := s.transaction(ctx, func(tx *gorm.DB) error {
		var session model.UserSession
		if err := tx.Select("id", "user_id", "is_active").Where("token = ?", token).First(&session).Error; err != nil {
			if isNotFound(err) {
				return nil
			}
			return err
		}
		if !session.IsActive {
			return nil
		}

		user, err := loadUser(tx, session.UserID, true)
		if err != nil {
			return err
		}

		res := tx.Model(&model.UserSession{}).
			Where("id = ? AND is_active = ?", session.ID, true).
			Updates(map[string]interface{}{"is_active": false, "logout_time": now})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}

		online, err := recomputeOnline(tx, session.UserID, nil)
		if err != nil {
			return err
		}
		userID = session.UserID
		wentOffline = user.IsOnline && !online
		return nil
	})
	if err != nil {
		return wrapStoreErr("failed to logout session", err)
	}

	if userID != 0 {
		metrics.RecordSessionEvent("logged_out", 1)
	}
	if wentOffline {
		publish(ctx, s.publisher, events.Event{Type: events.TypeUserOffline, UserID: userID, OccurredAt: now})
	}
	return nil
}

// ForceUserOffline deactivates every active session of the user and returns how many were closed
func (s *SessionService) ForceUserOffline(ctx context.Context, userID uint) (int64, error) {
	now := s.now()

	var (
		closed    int64
		wasOnline bool
	)
	err := s.transaction(ctx, func(tx *gorm.DB) error {
		user, err := loadUser(tx, userID, true)
		if err != nil {
			return err
		}
		wasOnline = user.IsOnline

		res := tx.Model(&model.UserSession{}).
			Where("user_id = ? AND is_active = ?", userID, true).
			Updates(map[string]interface{}{"is_active": false, "logout_time": now})
		if res.Error != nil {
			return res.Error
		}
		closed = res.RowsAffected

		_, err = recomputeOnline(tx, userID, nil)
		return err
	})
	if err != nil {
		return 0, wrapStoreErr("failed to force user offline", err)
	}

	metrics.RecordSessionEvent("forced_offline", int(closed))
	if wasOnline {
		publish(ctx, s.publisher, events.Event{Type: events.TypeUserOffline, UserID: userID, OccurredAt: now})
	}
	return closed, nil
}

// GetOnlineUsers lists online users, most recently active first
func (s *SessionService) GetOnlineUsers(ctx context.Context) ([]OnlineUser, error) {
	var users []model.User
	err := s.db.WithContext(ctx).
		Where("is_online = ?", true).
		Order("last_active_time DESC").
		Order("id ASC").
		Find(&users).Error
	if err != nil {
		return nil, wrapStoreErr("failed to list online users", err)
	}

	online := make([]OnlineUser, 0, len(users))
	for _, u := range users {
		online = append(online, u.Summary())
	}
	return online, nil
}

// ListActiveSessions returns the user's active sessions, most recently active first
func (s *SessionService) ListActiveSessions(ctx context.Context, userID uint) ([]model.UserSession, error) {
	var sessions []model.UserSession
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND is_active = ?", userID, true).
		Order("last_active_time DESC").
		Find(&sessions).Error
	if err != nil {
		return nil, wrapStoreErr("failed to list sessions", err)
	}
	return sessions, nil
}

// CleanupExpiredSessions logs out every active session idle for longer than the retention window.
// A session whose last activity is exactly at the cutoff is kept. Failures are logged per session.
func (s *SessionService) CleanupExpiredSessions(ctx context.Context) (int, error) {
	now := s.now()
	cutoff := now.Add(-s.retention)

	var tokens []string
	err := s.db.WithContext(ctx).
		Model(&model.UserSession{}).
		Where("is_active = ? AND last_active_time < ?", true, cutoff).
		Pluck("token", &tokens).Error
	if err != nil {
		return 0, wrapStoreErr("failed to find stale sessions", err)
	}

	cleaned := 0
	for _, token := range tokens {
		if err := s.LogoutSession(ctx, token); err != nil {
			logger.Warn(ctx).Err(err).Msg("failed to logout stale session, skipping")
			continue
		}
		cleaned++
	}

	metrics.RecordSweep(now)
	logger.Info(ctx).Int("found", len(tokens)).Int("cleaned", cleaned).Time("cutoff", cutoff).Msg("stale session sweep finished")
	return cleaned, nil
}

// recomputeOnline derives users.is_online from the active session count.
// When touch is set the user's last_active_time is refreshed too.
func recomputeOnline(tx *gorm.DB, userID uint, touch *time.Time) (bool, error) {
	var active int64
	if err := tx.Model(&model.UserSession{}).
		Where("user_id = ? AND is_active = ?", userID, true).
		Count(&active).Error; err != nil {
		return false, err
	}

	online := active > 0
	updates := map[string]interface{}{"is_online": online}
	if touch != nil {
		updates["last_active_time"] = *touch
	}
	if err := tx.Model(&model.User{}).Where("id = ?", userID).Updates(updates).Error; err != nil {
		return false, err
	}
	return online, nil
}
