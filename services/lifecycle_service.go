package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sahilchouksey/fitcamp-api/events"
	"github.com/sahilchouksey/fitcamp-api/model"
	"github.com/sahilchouksey/fitcamp-api/utils/logger"
	"github.com/sahilchouksey/fitcamp-api/utils/metrics"
	"gorm.io/gorm"
)

// Stage is a step of a cascading deletion
type Stage string

const (
	StageValidating        Stage = "validating"
	StageClearingRelations Stage = "clearing_relations"
	StageClearingChildren  Stage = "clearing_children"
	StageDeletingRoot      Stage = "deleting_root"
	StageVerified          Stage = "verified"
)

// StageError reports the deletion stage that failed; the whole transaction is rolled back
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// errResidualRows is returned by the Verified stage when references survived the deletion
var errResidualRows = errors.New("post-deletion verification found residual rows")

// unregisterAttempts bounds retries when the user creates an activity while Unregister is queued
const unregisterAttempts = 3

// LifecycleService deletes activities and users together with every row referencing them.
// The store has no implicit cascade: children and join rows go before their parents.
type LifecycleService struct {
	store
	locker    *KeyedLocker
	publisher events.Publisher

	// beforeStage runs at the start of every stage; tests use it to inject failures
	beforeStage func(stage Stage) error
}

// NewLifecycleService creates a new deletion engine
func NewLifecycleService(db *gorm.DB, locker *KeyedLocker, publisher events.Publisher) *LifecycleService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &LifecycleService{
		store:     newStore(db, locker.wait),
		locker:    locker,
		publisher: publisher,
	}
}

// DeleteActivity removes the activity with its comments, participations and favorites
func (s *LifecycleService) DeleteActivity(ctx context.Context, activityID uint) error {
	return s.deleteActivity(ctx, activityID, nil)
}

// DeleteOwnedActivity is DeleteActivity restricted to the activity's creator
func (s *LifecycleService) DeleteOwnedActivity(ctx context.Context, ownerID, activityID uint) error {
	return s.deleteActivity(ctx, activityID, &ownerID)
}

func (s *LifecycleService) deleteActivity(ctx context.Context, activityID uint, ownerID *uint) (err error) {
	defer func() { metrics.RecordDeletion("activity", err) }()

	keys := []string{ActivityKey(activityID)}
	if ownerID != nil {
		keys = []string{UserKey(*ownerID), ActivityKey(activityID)}
	}
	release, err := s.locker.Acquire(ctx, keys...)
	if err != nil {
		return wrapStoreErr("failed to acquire deletion locks", err)
	}
	defer release()

	err = s.transaction(ctx, func(tx *gorm.DB) error {
		if err := s.stage(StageValidating, func() error {
			activity, err := loadActivity(tx, activityID)
			if err != nil {
				return err
			}
			if ownerID != nil && (activity.CreatorID == nil || *activity.CreatorID != *ownerID) {
				return ErrNotOwner
			}
			return nil
		}); err != nil {
			return err
		}

		if err := s.stage(StageClearingRelations, func() error {
			return clearActivityRelations(tx, activityID)
		}); err != nil {
			return err
		}

		if err := s.stage(StageClearingChildren, func() error {
			return clearActivityChildren(tx, activityID)
		}); err != nil {
			return err
		}

		if err := s.stage(StageDeletingRoot, func() error {
			return deleteActivityRoot(tx, activityID)
		}); err != nil {
			return err
		}

		return s.stage(StageVerified, func() error {
			return verifyActivityGone(tx, activityID)
		})
	})
	if err != nil {
		s.logFailure(ctx, "activity", activityID, err)
		return wrapStoreErr("failed to delete activity", err)
	}

	logger.Info(ctx).Uint("activity_id", activityID).Msg("activity deleted")
	publish(ctx, s.publisher, events.Event{Type: events.TypeActivityDeleted, ActivityID: activityID, OccurredAt: time.Now().UTC()})
	return nil
}

// Unregister closes the user's account: relation rows, comments, sessions and created
// activities go first, then the user row itself.
func (s *LifecycleService) Unregister(ctx context.Context, userID uint) (err error) {
	defer func() { metrics.RecordDeletion("user", err) }()

	var created []uint
	for attempt := 1; ; attempt++ {
		var locked []uint
		if err := s.db.WithContext(ctx).Model(&model.Activity{}).Where("creator_id = ?", userID).Pluck("id", &locked).Error; err != nil {
			return wrapStoreErr("failed to list created activities", err)
		}

		keys := append([]string{UserKey(userID)}, ActivityKeys(locked...)...)
		release, err := s.locker.Acquire(ctx, keys...)
		if err != nil {
			return wrapStoreErr("failed to acquire unregister locks", err)
		}

		created, err = s.unregisterTx(ctx, userID, locked)
		release()

		if errors.Is(err, errCreatedSetChanged) && attempt < unregisterAttempts {
			continue
		}
		if errors.Is(err, errCreatedSetChanged) {
			err = ErrBusy
		}
		if err != nil {
			s.logFailure(ctx, "user", userID, err)
			return wrapStoreErr("failed to unregister user", err)
		}
		break
	}

	logger.Info(ctx).Uint("user_id", userID).Int("activities_deleted", len(created)).Msg("user unregistered")

	evts := make([]events.Event, 0, len(created)+1)
	now := time.Now().UTC()
	for _, id := range created {
		evts = append(evts, events.Event{Type: events.TypeActivityDeleted, ActivityID: id, OccurredAt: now})
	}
	evts = append(evts, events.Event{Type: events.TypeUserUnregistered, UserID: userID, OccurredAt: now})
	publish(ctx, s.publisher, evts...)
	return nil
}

// errCreatedSetChanged means an activity was created between listing and locking
var errCreatedSetChanged = errors.New("created activities changed while waiting for locks")

func (s *LifecycleService) unregisterTx(ctx context.Context, userID uint, locked []uint) ([]uint, error) {
	var created []uint

	err := s.transaction(ctx, func(tx *gorm.DB) error {
		if err := s.stage(StageValidating, func() error {
			if _, err := loadUser(tx, userID, true); err != nil {
				return err
			}
			if err := tx.Model(&model.Activity{}).Where("creator_id = ?", userID).Order("id ASC").Pluck("id", &created).Error; err != nil {
				return err
			}
			lockedSet := make(map[uint]struct{}, len(locked))
			for _, id := range locked {
				lockedSet[id] = struct{}{}
			}
			for _, id := range created {
				if _, ok := lockedSet[id]; !ok {
					return errCreatedSetChanged
				}
			}
			return nil
		}); err != nil {
			return err
		}

		// join rows of this user in every activity, created or not
		if err := s.stage(StageClearingRelations, func() error {
			if err := tx.Where("user_id = ?", userID).Delete(&model.Participation{}).Error; err != nil {
				return err
			}
			return tx.Where("user_id = ?", userID).Delete(&model.Favorite{}).Error
		}); err != nil {
			return err
		}

		if err := s.stage(StageClearingChildren, func() error {
			if err := tx.Where("user_id = ?", userID).Delete(&model.Comment{}).Error; err != nil {
				return err
			}
			if err := tx.Where("user_id = ?", userID).Delete(&model.UserSession{}).Error; err != nil {
				return err
			}
			for _, activityID := range created {
				if err := clearActivityRelations(tx, activityID); err != nil {
					return err
				}
				if err := clearActivityChildren(tx, activityID); err != nil {
					return err
				}
				if err := deleteActivityRoot(tx, activityID); err != nil {
					return err
				}
				if err := verifyActivityGone(tx, activityID); err != nil {
					return err
				}
			}
			return nil
		}); err != nil {
			return err
		}

		if err := s.stage(StageDeletingRoot, func() error {
			res := tx.Delete(&model.User{}, userID)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected != 1 {
				return ErrUserNotFound
			}
			return nil
		}); err != nil {
			return err
		}

		return s.stage(StageVerified, func() error {
			return verifyUserGone(tx, userID)
		})
	})
	return created, err
}

// stage runs fn as the named deletion step, tagging any failure with the step
func (s *LifecycleService) stage(stage Stage, fn func() error) error {
	if s.beforeStage != nil {
		if err := s.beforeStage(stage); err != nil {
			return &StageError{Stage: stage, Err: err}
		}
	}
	if err := fn(); err != nil {
		return &StageError{Stage: stage, Err: err}
	}
	return nil
}

func (s *LifecycleService) logFailure(ctx context.Context, entity string, id uint, err error) {
	event := logger.Warn(ctx)
	if KindOf(err) == KindInternal {
		event = logger.Error(ctx)
	}
	var stageErr *StageError
	if errors.As(err, &stageErr) {
		event = event.Str("stage", string(stageErr.Stage))
	}
	event.Err(err).Str("entity", entity).Uint("id", id).Msg("cascading deletion rolled back")
}

func clearActivityRelations(tx *gorm.DB, activityID uint) error {
	if err := tx.Where("activity_id = ?", activityID).Delete(&model.Participation{}).Error; err != nil {
		return err
	}
	return tx.Where("activity_id = ?", activityID).Delete(&model.Favorite{}).Error
}

func clearActivityChildren(tx *gorm.DB, activityID uint) error {
	return tx.Where("activity_id = ?", activityID).Delete(&model.Comment{}).Error
}

// deleteActivityRoot drops the creator back-reference, then the row
func deleteActivityRoot(tx *gorm.DB, activityID uint) error {
	if err := tx.Model(&model.Activity{}).Where("id = ?", activityID).Update("creator_id", nil).Error; err != nil {
		return err
	}
	res := tx.Delete(&model.Activity{}, activityID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected != 1 {
		return ErrActivityNotFound
	}
	return nil
}

func verifyActivityGone(tx *gorm.DB, activityID uint) error {
	checks := []residualCheck{
		{&model.Activity{}, "id = ?"},
		{&model.Participation{}, "activity_id = ?"},
		{&model.Favorite{}, "activity_id = ?"},
		{&model.Comment{}, "activity_id = ?"},
	}
	return verifyNone(tx, activityID, checks)
}

func verifyUserGone(tx *gorm.DB, userID uint) error {
	checks := []residualCheck{
		{&model.User{}, "id = ?"},
		{&model.UserSession{}, "user_id = ?"},
		{&model.Comment{}, "user_id = ?"},
		{&model.Participation{}, "user_id = ?"},
		{&model.Favorite{}, "user_id = ?"},
		{&model.Activity{}, "creator_id = ?"},
	}
	return verifyNone(tx, userID, checks)
}

// residualCheck is a table and the condition that must match no rows after a deletion
type residualCheck struct {
	model interface{}
	query string
}

func verifyNone(tx *gorm.DB, id uint, checks []residualCheck) error {
	for _, check := range checks {
		var n int64
		if err := tx.Model(check.model).Where(check.query, id).Count(&n).Error; err != nil {
			return err
		}
		if n != 0 {
			return fmt.Errorf("%w: %d rows match %T %s", errResidualRows, n, check.model, check.query)
		}
	}
	return nil
}
