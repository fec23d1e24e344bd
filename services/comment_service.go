package services

import (
	"context"
	"strings"

	"github.com/sahilchouksey/fitcamp-api/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CommentView is a comment with its author's public fields
type CommentView struct {
	model.Comment
	Author *model.UserSummary `json:"author"`
}

// CommentService handles comments on activities
type CommentService struct {
	store
	locker *KeyedLocker
}

// NewCommentService creates a new comment service
func NewCommentService(db *gorm.DB, locker *KeyedLocker) *CommentService {
	return &CommentService{
		store:  newStore(db, locker.wait),
		locker: locker,
	}
}

// Create adds a rated comment to an activity
func (s *CommentService) Create(ctx context.Context, userID, activityID uint, content, picture string, starNumber int) (*model.Comment, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, InvalidInput("content is required")
	}
	if starNumber < 1 || starNumber > 5 {
		return nil, InvalidInput("star_number must be between 1 and 5")
	}

	// the activity key keeps the comment from racing a deletion of its activity
	release, err := s.locker.Acquire(ctx, UserKey(userID), ActivityKey(activityID))
	if err != nil {
		return nil, wrapStoreErr("failed to acquire comment locks", err)
	}
	defer release()

	comment := &model.Comment{
		Content:    content,
		Picture:    picture,
		StarNumber: starNumber,
		UserID:     userID,
		ActivityID: activityID,
	}
	err = s.transaction(ctx, func(tx *gorm.DB) error {
		if _, err := loadUser(tx, userID, false); err != nil {
			return err
		}
		if _, err := loadActivity(tx, activityID); err != nil {
			return err
		}
		return tx.Omit(clause.Associations).Create(comment).Error
	})
	if err != nil {
		return nil, wrapStoreErr("failed to create comment", err)
	}
	return comment, nil
}

// ListByActivity returns the activity's comments, newest first
func (s *CommentService) ListByActivity(ctx context.Context, activityID uint) ([]CommentView, error) {
	db := s.db.WithContext(ctx)

	var n int64
	if err := db.Model(&model.Activity{}).Where("id = ?", activityID).Count(&n).Error; err != nil {
		return nil, wrapStoreErr("failed to load activity", err)
	}
	if n == 0 {
		return nil, ErrActivityNotFound
	}

	views, err := listComments(db, activityID)
	if err != nil {
		return nil, wrapStoreErr("failed to list comments", err)
	}
	return views, nil
}

func listComments(db *gorm.DB, activityID uint) ([]CommentView, error) {
	var comments []model.Comment
	if err := db.Where("activity_id = ?", activityID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&comments).Error; err != nil {
		return nil, err
	}

	authorIDs := make([]uint, 0, len(comments))
	for _, c := range comments {
		authorIDs = append(authorIDs, c.UserID)
	}

	authors := make(map[uint]model.UserSummary, len(authorIDs))
	if len(authorIDs) > 0 {
		var users []model.User
		if err := db.Where("id IN ?", authorIDs).Find(&users).Error; err != nil {
			return nil, err
		}
		for _, u := range users {
			authors[u.ID] = u.Summary()
		}
	}

	views := make([]CommentView, len(comments))
	for i, c := range comments {
		views[i].Comment = c
		if author, ok := authors[c.UserID]; ok {
			views[i].Author = &author
		}
	}
	return views, nil
}
