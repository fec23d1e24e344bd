package services

import (
	"context"
	"strings"
	"time"

	"github.com/sahilchouksey/fitcamp-api/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// ActivityService handles activity creation, updates and the read side
type ActivityService struct {
	store
	locker *KeyedLocker
}

// NewActivityService creates a new activity service
func NewActivityService(db *gorm.DB, locker *KeyedLocker) *ActivityService {
	return &ActivityService{
		store:  newStore(db, locker.wait),
		locker: locker,
	}
}

// ActivityInput holds the fields of a new activity
type ActivityInput struct {
	Title             string
	Profile           string
	Date              time.Time
	Location          string
	OrganizerName     string
	Picture           string
	ParticipantsLimit int
	Fee               float64
	Type              model.ActivityType
}

// ActivityPatch holds the fields to change; nil fields are left untouched
type ActivityPatch struct {
	Title             *string
	Profile           *string
	Date              *time.Time
	Location          *string
	OrganizerName     *string
	Picture           *string
	ParticipantsLimit *int
	Fee               *float64
	Type              *model.ActivityType
}

// ActivityFilter selects and pages activities; Type "" or "all" matches every type
type ActivityFilter struct {
	Type    string
	Keyword string
	Page    int
	Limit   int
}

// ActivityListItem is an activity with its relation counts
type ActivityListItem struct {
	model.Activity
	ParticipantCount int64 `json:"participant_count"`
	FavoriteCount    int64 `json:"favorite_count"`
}

// ActivityPage is one page of List results
type ActivityPage struct {
	Items []ActivityListItem `json:"items"`
	Total int64              `json:"total"`
	Page  int                `json:"page"`
	Limit int                `json:"limit"`
}

// ActivityDetail is an activity with its members and comments
type ActivityDetail struct {
	model.Activity
	Creator          *model.UserSummary  `json:"creator"`
	Participants     []model.UserSummary `json:"participants"`
	Favoriters       []model.UserSummary `json:"favoriters"`
	Comments         []CommentView       `json:"comments"`
	ParticipantCount int                 `json:"participant_count"`
	FavoriteCount    int                 `json:"favorite_count"`
}

// Create stores a new activity owned by creatorID
func (s *ActivityService) Create(ctx context.Context, creatorID uint, input ActivityInput) (*model.Activity, error) {
	if input.Type == "" {
		input.Type = model.ActivityTypeOther
	}
	activity := &model.Activity{
		Title:             strings.TrimSpace(input.Title),
		Profile:           input.Profile,
		Date:              input.Date,
		Location:          input.Location,
		OrganizerName:     input.OrganizerName,
		Picture:           input.Picture,
		ParticipantsLimit: input.ParticipantsLimit,
		Fee:               input.Fee,
		Type:              input.Type,
		CreatorID:         &creatorID,
	}
	if err := validateActivity(activity); err != nil {
		return nil, err
	}

	release, err := s.locker.Acquire(ctx, UserKey(creatorID))
	if err != nil {
		return nil, wrapStoreErr("failed to acquire user lock", err)
	}
	defer release()

	err = s.transaction(ctx, func(tx *gorm.DB) error {
		user, err := loadUser(tx, creatorID, false)
		if err != nil {
			return err
		}
		if activity.OrganizerName == "" {
			activity.OrganizerName = user.Name
		}
		return tx.Omit(clause.Associations).Create(activity).Error
	})
	if err != nil {
		return nil, wrapStoreErr("failed to create activity", err)
	}
	return activity, nil
}

// Update applies patch to an activity; only its creator may change it.
// Lowering participants_limit below the current participant count fails with ErrCapacityExceeded.
func (s *ActivityService) Update(ctx context.Context, actorID, activityID uint, patch ActivityPatch) (*model.Activity, error) {
	release, err := s.locker.Acquire(ctx, UserKey(actorID), ActivityKey(activityID))
	if err != nil {
		return nil, wrapStoreErr("failed to acquire activity locks", err)
	}
	defer release()

	var activity *model.Activity
	err = s.transaction(ctx, func(tx *gorm.DB) error {
		loaded, err := loadActivity(tx, activityID)
		if err != nil {
			return err
		}
		activity = loaded
		if activity.CreatorID == nil || *activity.CreatorID != actorID {
			return ErrNotOwner
		}

		applyPatch(activity, patch)
		if err := validateActivity(activity); err != nil {
			return err
		}

		if patch.ParticipantsLimit != nil {
			count, err := countParticipants(tx, activityID)
			if err != nil {
				return err
			}
			if int64(activity.ParticipantsLimit) < count {
				return ErrCapacityExceeded
			}
		}

		return tx.Omit(clause.Associations).Save(activity).Error
	})
	if err != nil {
		return nil, wrapStoreErr("failed to update activity", err)
	}
	return activity, nil
}

// List returns one page of activities, newest first
func (s *ActivityService) List(ctx context.Context, filter ActivityFilter) (*ActivityPage, error) {
	page, limit := normalizePage(filter.Page, filter.Limit)
	db := s.db.WithContext(ctx)

	query := db.Model(&model.Activity{})
	if t := strings.ToLower(strings.TrimSpace(filter.Type)); t != "" && t != "all" {
		if !model.ActivityType(t).Valid() {
			return nil, InvalidInput("unknown activity type: " + filter.Type)
		}
		query = query.Where("type = ?", t)
	}
	if kw := strings.TrimSpace(filter.Keyword); kw != "" {
		like := "%" + escapeLike(strings.ToLower(kw)) + "%"
		query = query.Where(`(LOWER(title) LIKE ? ESCAPE '\' OR LOWER(profile) LIKE ? ESCAPE '\' OR LOWER(location) LIKE ? ESCAPE '\')`, like, like, like)
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, wrapStoreErr("failed to count activities", err)
	}

	var activities []model.Activity
	if err := query.
		Order("created_at DESC").
		Order("id DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&activities).Error; err != nil {
		return nil, wrapStoreErr("failed to list activities", err)
	}

	items, err := s.withCounts(db, activities)
	if err != nil {
		return nil, err
	}
	return &ActivityPage{Items: items, Total: total, Page: page, Limit: limit}, nil
}

// Search matches keyword against title, description and location
func (s *ActivityService) Search(ctx context.Context, keyword string) ([]ActivityListItem, error) {
	if strings.TrimSpace(keyword) == "" {
		return nil, InvalidInput("keyword is required")
	}
	page, err := s.List(ctx, ActivityFilter{Keyword: keyword, Page: 1, Limit: maxPageSize})
	if err != nil {
		return nil, err
	}
	return page.Items, nil
}

// GetByID returns the activity with its creator, members and comments
func (s *ActivityService) GetByID(ctx context.Context, activityID uint) (*ActivityDetail, error) {
	db := s.db.WithContext(ctx)

	var activity model.Activity
	if err := db.First(&activity, activityID).Error; err != nil {
		if isNotFound(err) {
			return nil, ErrActivityNotFound
		}
		return nil, wrapStoreErr("failed to load activity", err)
	}

	detail := &ActivityDetail{Activity: activity}

	if activity.CreatorID != nil {
		var creator model.User
		err := db.First(&creator, *activity.CreatorID).Error
		if err != nil && !isNotFound(err) {
			return nil, wrapStoreErr("failed to load creator", err)
		}
		if err == nil {
			summary := creator.Summary()
			detail.Creator = &summary
		}
	}

	var err error
	if detail.Participants, err = membersOf(db, "participations", activityID); err != nil {
		return nil, wrapStoreErr("failed to load participants", err)
	}
	if detail.Favoriters, err = membersOf(db, "favorites", activityID); err != nil {
		return nil, wrapStoreErr("failed to load favoriters", err)
	}
	if detail.Comments, err = listComments(db, activityID); err != nil {
		return nil, wrapStoreErr("failed to load comments", err)
	}

	detail.ParticipantCount = len(detail.Participants)
	detail.FavoriteCount = len(detail.Favoriters)
	return detail, nil
}

// withCounts attaches participant and favorite counts to each activity
func (s *ActivityService) withCounts(db *gorm.DB, activities []model.Activity) ([]ActivityListItem, error) {
	items := make([]ActivityListItem, len(activities))
	if len(activities) == 0 {
		return items, nil
	}

	ids := make([]uint, len(activities))
	for i, a := range activities {
		ids[i] = a.ID
		items[i].Activity = a
	}

	participants, err := countByActivity(db, &model.Participation{}, ids)
	if err != nil {
		return nil, wrapStoreErr("failed to count participants", err)
	}
	favorites, err := countByActivity(db, &model.Favorite{}, ids)
	if err != nil {
		return nil, wrapStoreErr("failed to count favorites", err)
	}

	for i := range items {
		items[i].ParticipantCount = participants[items[i].ID]
		items[i].FavoriteCount = favorites[items[i].ID]
	}
	return items, nil
}

func countByActivity(db *gorm.DB, relation interface{}, ids []uint) (map[uint]int64, error) {
	var rows []struct {
		ActivityID uint
		N          int64
	}
	err := db.Model(relation).
		Select("activity_id, COUNT(*) AS n").
		Where("activity_id IN ?", ids).
		Group("activity_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[uint]int64, len(rows))
	for _, r := range rows {
		counts[r.ActivityID] = r.N
	}
	return counts, nil
}

// membersOf lists the users joined to the activity through the given relation table
func membersOf(db *gorm.DB, table string, activityID uint) ([]model.UserSummary, error) {
	var users []model.User
	err := db.Model(&model.User{}).
		Select("users.*").
		Joins("JOIN "+table+" ON "+table+".user_id = users.id").
		Where(table+".activity_id = ?", activityID).
		Order(table + ".created_at ASC").
		Find(&users).Error
	if err != nil {
		return nil, err
	}

	out := make([]model.UserSummary, len(users))
	for i, u := range users {
		out[i] = u.Summary()
	}
	return out, nil
}

func applyPatch(a *model.Activity, p ActivityPatch) {
	if p.Title != nil {
		a.Title = strings.TrimSpace(*p.Title)
	}
	if p.Profile != nil {
		a.Profile = *p.Profile
	}
	if p.Date != nil {
		a.Date = *p.Date
	}
	if p.Location != nil {
		a.Location = *p.Location
	}
	if p.OrganizerName != nil {
		a.OrganizerName = *p.OrganizerName
	}
	if p.Picture != nil {
		a.Picture = *p.Picture
	}
	if p.ParticipantsLimit != nil {
		a.ParticipantsLimit = *p.ParticipantsLimit
	}
	if p.Fee != nil {
		a.Fee = *p.Fee
	}
	if p.Type != nil {
		a.Type = *p.Type
	}
}

func validateActivity(a *model.Activity) error {
	switch {
	case a.Title == "":
		return InvalidInput("title is required")
	case a.ParticipantsLimit < 1:
		return InvalidInput("participants_limit must be at least 1")
	case a.Fee < 0:
		return InvalidInput("fee cannot be negative")
	case !a.Type.Valid():
		return InvalidInput("unknown activity type: " + string(a.Type))
	case a.Date.IsZero():
		return InvalidInput("date is required")
	}
	return nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike makes LIKE wildcards in user input match literally
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	return page, limit
}
