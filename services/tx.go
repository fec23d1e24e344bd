package services

import (
	"context"
	"fmt"
	"time"

	"github.com/sahilchouksey/fitcamp-api/events"
	"github.com/sahilchouksey/fitcamp-api/model"
	"github.com/sahilchouksey/fitcamp-api/utils/logger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// store is the transactional base shared by the engines
type store struct {
	db          *gorm.DB
	lockTimeout time.Duration
}

func newStore(db *gorm.DB, lockTimeout time.Duration) store {
	if lockTimeout <= 0 {
		lockTimeout = DefaultLockWait
	}
	return store{db: db, lockTimeout: lockTimeout}
}

// transaction runs fn in one database transaction.
// On PostgreSQL row lock waits are bounded by lockTimeout.
func (s store) transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if isPostgres(tx) {
			stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", s.lockTimeout.Milliseconds())
			if err := tx.Exec(stmt).Error; err != nil {
				return err
			}
		}
		return fn(tx)
	})
}

func isPostgres(tx *gorm.DB) bool {
	return tx.Dialector.Name() == "postgres"
}

// forUpdate takes an exclusive row lock where the dialect supports it.
// SQLite serializes writers on its single connection instead.
func forUpdate(tx *gorm.DB) *gorm.DB {
	if isPostgres(tx) {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}

func forShare(tx *gorm.DB) *gorm.DB {
	if isPostgres(tx) {
		return tx.Clauses(clause.Locking{Strength: "SHARE"})
	}
	return tx
}

// loadUser reads the user row under lock, mapping absence to ErrUserNotFound
func loadUser(tx *gorm.DB, userID uint, exclusive bool) (*model.User, error) {
	q := forShare(tx)
	if exclusive {
		q = forUpdate(tx)
	}

	var user model.User
	if err := q.First(&user, userID).Error; err != nil {
		if isNotFound(err) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// loadActivity reads the activity row under an exclusive lock
func loadActivity(tx *gorm.DB, activityID uint) (*model.Activity, error) {
	var activity model.Activity
	if err := forUpdate(tx).First(&activity, activityID).Error; err != nil {
		if isNotFound(err) {
			return nil, ErrActivityNotFound
		}
		return nil, err
	}
	return &activity, nil
}

// relationExists reports whether the (user, activity) join row exists in the given relation
func relationExists(tx *gorm.DB, relation interface{}, userID, activityID uint) (bool, error) {
	var n int64
	err := tx.Model(relation).
		Where("user_id = ? AND activity_id = ?", userID, activityID).
		Count(&n).Error
	return n > 0, err
}

func countParticipants(tx *gorm.DB, activityID uint) (int64, error) {
	var n int64
	err := tx.Model(&model.Participation{}).Where("activity_id = ?", activityID).Count(&n).Error
	return n, err
}

// publish delivers events after commit; delivery failures are logged, never returned
func publish(ctx context.Context, p events.Publisher, evts ...events.Event) {
	if p == nil || len(evts) == 0 {
		return
	}
	if err := p.Publish(ctx, evts...); err != nil {
		logger.Warn(ctx).Err(err).Str("event_type", evts[0].Type).Int("count", len(evts)).Msg("failed to publish events")
	}
}
