package services

import (
	"context"
	"errors"
	"time"

	"github.com/sahilchouksey/fitcamp-api/events"
	"github.com/sahilchouksey/fitcamp-api/model"
	"github.com/sahilchouksey/fitcamp-api/utils/logger"
	"github.com/sahilchouksey/fitcamp-api/utils/metrics"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Enrollment operations, used as metric labels
const (
	opJoin       = "join"
	opLeave      = "leave"
	opFavorite   = "favorite"
	opUnfavorite = "unfavorite"
)

// EnrollmentService mutates the participation and favorite relations.
// Each call holds the user and activity keys for the whole check-then-mutate transaction,
// so concurrent joins on one activity are linearized.
type EnrollmentService struct {
	store
	locker    *KeyedLocker
	publisher events.Publisher
}

// NewEnrollmentService creates a new enrollment engine
func NewEnrollmentService(db *gorm.DB, locker *KeyedLocker, publisher events.Publisher) *EnrollmentService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &EnrollmentService{
		store:     newStore(db, locker.wait),
		locker:    locker,
		publisher: publisher,
	}
}

// Join adds the user to the activity's participants.
// Capacity is strict: the join succeeds only while count < participants_limit.
func (s *EnrollmentService) Join(ctx context.Context, userID, activityID uint) error {
	return s.run(ctx, opJoin, events.TypeActivityJoined, userID, activityID, func(tx *gorm.DB, activity *model.Activity) error {
		joined, err := relationExists(tx, &model.Participation{}, userID, activityID)
		if err != nil {
			return err
		}
		if joined {
			return ErrAlreadyJoined
		}

		count, err := countParticipants(tx, activityID)
		if err != nil {
			return err
		}
		if count >= int64(activity.ParticipantsLimit) {
			return ErrCapacityExceeded
		}

		row := model.Participation{UserID: userID, ActivityID: activityID}
		if err := tx.Omit(clause.Associations).Create(&row).Error; err != nil {
			if isDuplicate(err) {
				return ErrAlreadyJoined
			}
			return err
		}
		return nil
	})
}

// Leave removes the user from the activity's participants
func (s *EnrollmentService) Leave(ctx context.Context, userID, activityID uint) error {
	return s.run(ctx, opLeave, events.TypeActivityLeft, userID, activityID, func(tx *gorm.DB, _ *model.Activity) error {
		return removeRelation(tx, &model.Participation{}, userID, activityID, ErrNotJoined)
	})
}

// Favorite adds the activity to the user's favorites
func (s *EnrollmentService) Favorite(ctx context.Context, userID, activityID uint) error {
	return s.run(ctx, opFavorite, events.TypeActivityFavorited, userID, activityID, func(tx *gorm.DB, _ *model.Activity) error {
		favorited, err := relationExists(tx, &model.Favorite{}, userID, activityID)
		if err != nil {
			return err
		}
		if favorited {
			return ErrAlreadyFavorited
		}

		row := model.Favorite{UserID: userID, ActivityID: activityID}
		if err := tx.Omit(clause.Associations).Create(&row).Error; err != nil {
			if isDuplicate(err) {
				return ErrAlreadyFavorited
			}
			return err
		}
		return nil
	})
}

// Unfavorite removes the activity from the user's favorites
func (s *EnrollmentService) Unfavorite(ctx context.Context, userID, activityID uint) error {
	return s.run(ctx, opUnfavorite, events.TypeActivityUnfavorited, userID, activityID, func(tx *gorm.DB, _ *model.Activity) error {
		return removeRelation(tx, &model.Favorite{}, userID, activityID, ErrNotFavorited)
	})
}

// run takes user:U then activity:A, opens a transaction, validates both rows and applies fn
func (s *EnrollmentService) run(
	ctx context.Context,
	op, eventType string,
	userID, activityID uint,
	fn func(tx *gorm.DB, activity *model.Activity) error,
) (err error) {
	defer func() {
		outcome := metrics.OutcomeSuccess
		if err != nil {
			outcome = AsError(err).Code
		}
		metrics.RecordEnrollment(op, outcome)
	}()

	waitStart := time.Now()
	release, err := s.locker.Acquire(ctx, UserKey(userID), ActivityKey(activityID))
	if err != nil {
		return wrapStoreErr("failed to acquire enrollment locks", err)
	}
	defer release()
	metrics.ObserveLockWait(time.Since(waitStart))

	err = s.transaction(ctx, func(tx *gorm.DB) error {
		if _, err := loadUser(tx, userID, false); err != nil {
			return err
		}
		activity, err := loadActivity(tx, activityID)
		if err != nil {
			return err
		}
		return fn(tx, activity)
	})
	if err != nil {
		var se *Error
		if !errors.As(err, &se) {
			logger.Error(ctx).Err(err).Str("op", op).Uint("user_id", userID).Uint("activity_id", activityID).Msg("enrollment transaction failed")
		}
		return wrapStoreErr("failed to "+op, err)
	}

	publish(ctx, s.publisher, events.Event{
		Type:       eventType,
		UserID:     userID,
		ActivityID: activityID,
		OccurredAt: time.Now().UTC(),
	})
	return nil
}

// removeRelation deletes one join row, failing with missing when it does not exist
func removeRelation(tx *gorm.DB, relation interface{}, userID, activityID uint, missing *Error) error {
	res := tx.Where("user_id = ? AND activity_id = ?", userID, activityID).Delete(relation)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return missing
	}
	return nil
}
