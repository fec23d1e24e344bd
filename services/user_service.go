package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sahilchouksey/fitcamp-api/model"
	"github.com/sahilchouksey/fitcamp-api/utils/auth"
	"gorm.io/gorm"
)

// UserService handles accounts: registration, login, profiles and closure
type UserService struct {
	db         *gorm.DB
	sessions   *SessionService
	lifecycle  *LifecycleService
	jwtManager *auth.JWTManager
	bcryptCost int
}

// NewUserService creates a new account service; bcryptCost 0 means auth.DefaultCost
func NewUserService(db *gorm.DB, sessions *SessionService, lifecycle *LifecycleService, jwtManager *auth.JWTManager, bcryptCost int) *UserService {
	if bcryptCost == 0 {
		bcryptCost = auth.DefaultCost
	}
	return &UserService{
		db:         db,
		sessions:   sessions,
		lifecycle:  lifecycle,
		jwtManager: jwtManager,
		bcryptCost: bcryptCost,
	}
}

// LoginResult is returned on successful login
type LoginResult struct {
	Token     string            `json:"token"`
	SessionID uint              `json:"sessionId"`
	ExpiresIn int64             `json:"expiresIn"` // seconds
	User      model.UserSummary `json:"user"`
}

// Profile is a user with everything they are related to
type Profile struct {
	model.UserSummary
	Profile      string           `json:"profile"`
	RegisteredAt time.Time        `json:"register_time"`
	Joined       []model.Activity `json:"joined_activities"`
	Favorited    []model.Activity `json:"favorite_activities"`
	Created      []model.Activity `json:"created_activities"`
	Comments     []model.Comment  `json:"comments"`
}

// Register creates a new account with a bcrypt hashed password
func (s *UserService) Register(ctx context.Context, account, password, name string) (*model.User, error) {
	account = strings.TrimSpace(account)
	if account == "" {
		return nil, InvalidInput("account is required")
	}
	if !auth.IsPasswordValid(password) {
		return nil, InvalidInput(auth.ErrPasswordTooShort.Error())
	}
	if name = strings.TrimSpace(name); name == "" {
		name = account
	}

	db := s.db.WithContext(ctx)

	var existing int64
	if err := db.Model(&model.User{}).Where("account = ?", account).Count(&existing).Error; err != nil {
		return nil, wrapStoreErr("failed to check account", err)
	}
	if existing > 0 {
		return nil, ErrAccountTaken
	}

	hash, err := auth.HashPasswordWithCost(password, s.bcryptCost)
	if err != nil {
		return nil, Internal("failed to hash password", err)
	}

	user := &model.User{
		Account:      account,
		PasswordHash: hash,
		Name:         name,
		Profile:      model.DefaultProfile,
	}
	if err := db.Create(user).Error; err != nil {
		if isDuplicate(err) {
			return nil, ErrAccountTaken
		}
		return nil, wrapStoreErr("failed to create user", err)
	}
	return user, nil
}

// Login verifies the credentials, issues a token and records it as a new session
func (s *UserService) Login(ctx context.Context, account, password string, meta DeviceMeta) (*LoginResult, error) {
	user, err := s.verifyCredentials(ctx, s.db.WithContext(ctx).Where("account = ?", strings.TrimSpace(account)), password)
	if err != nil {
		return nil, err
	}

	token, _, err := s.jwtManager.GenerateToken(user.ID, user.Account)
	if err != nil {
		return nil, Internal("failed to generate token", err)
	}

	session, err := s.sessions.CreateSession(ctx, user.ID, token, meta)
	if err != nil {
		return nil, err
	}

	user.IsOnline = true
	user.LastActiveTime = &session.LastActiveTime
	return &LoginResult{
		Token:     token,
		SessionID: session.ID,
		ExpiresIn: int64(s.jwtManager.Expiry().Seconds()),
		User:      user.Summary(),
	}, nil
}

// Logout ends the session of token
func (s *UserService) Logout(ctx context.Context, token string) error {
	return s.sessions.LogoutSession(ctx, token)
}

// LogoutAll ends every session of the user and returns how many were closed
func (s *UserService) LogoutAll(ctx context.Context, userID uint) (int64, error) {
	return s.sessions.ForceUserOffline(ctx, userID)
}

// GetProfile returns the user with joined, favorited and created activities and comments
func (s *UserService) GetProfile(ctx context.Context, userID uint) (*Profile, error) {
	db := s.db.WithContext(ctx)

	user, err := s.findUser(db, userID)
	if err != nil {
		return nil, err
	}

	profile := &Profile{
		UserSummary:  user.Summary(),
		Profile:      user.Profile,
		RegisteredAt: user.CreatedAt,
	}

	if profile.Joined, err = activitiesThrough(db, "participations", userID); err != nil {
		return nil, wrapStoreErr("failed to load joined activities", err)
	}
	if profile.Favorited, err = activitiesThrough(db, "favorites", userID); err != nil {
		return nil, wrapStoreErr("failed to load favorite activities", err)
	}
	if err := db.Where("creator_id = ?", userID).Order("created_at DESC").Find(&profile.Created).Error; err != nil {
		return nil, wrapStoreErr("failed to load created activities", err)
	}
	if err := db.Where("user_id = ?", userID).Order("created_at DESC").Find(&profile.Comments).Error; err != nil {
		return nil, wrapStoreErr("failed to load comments", err)
	}
	return profile, nil
}

// UpdateProfile changes the display name and/or profile text
func (s *UserService) UpdateProfile(ctx context.Context, userID uint, name, profile *string) (*model.User, error) {
	updates := map[string]interface{}{}
	if name != nil {
		trimmed := strings.TrimSpace(*name)
		if trimmed == "" {
			return nil, InvalidInput("name cannot be empty")
		}
		updates["name"] = trimmed
	}
	if profile != nil {
		updates["profile"] = *profile
	}
	return s.updateUser(ctx, userID, updates)
}

// UpdateAvatar stores a new avatar reference
func (s *UserService) UpdateAvatar(ctx context.Context, userID uint, avatar string) (*model.User, error) {
	avatar = strings.TrimSpace(avatar)
	if avatar == "" {
		return nil, InvalidInput("avatar is required")
	}
	return s.updateUser(ctx, userID, map[string]interface{}{"avatar": avatar})
}

// Unregister confirms the password, then closes the account through the deletion engine
func (s *UserService) Unregister(ctx context.Context, userID uint, confirmationPassword string) error {
	db := s.db.WithContext(ctx)
	if _, err := s.verifyCredentials(ctx, db.Where("id = ?", userID), confirmationPassword); err != nil {
		if errors.Is(err, ErrWrongPassword) {
			// a missing user reports NOT_FOUND rather than a credential failure
			if _, lookupErr := s.findUser(db, userID); lookupErr != nil {
				return lookupErr
			}
		}
		return err
	}
	return s.lifecycle.Unregister(ctx, userID)
}

func (s *UserService) verifyCredentials(ctx context.Context, query *gorm.DB, password string) (*model.User, error) {
	var user model.User
	if err := query.First(&user).Error; err != nil {
		if isNotFound(err) {
			return nil, ErrWrongPassword
		}
		return nil, wrapStoreErr("failed to load user", err)
	}

	if err := auth.VerifyPassword(user.PasswordHash, password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return nil, ErrWrongPassword
		}
		return nil, Internal("failed to verify password", err)
	}
	return &user, nil
}

func (s *UserService) findUser(db *gorm.DB, userID uint) (*model.User, error) {
	var user model.User
	if err := db.First(&user, userID).Error; err != nil {
		if isNotFound(err) {
			return nil, ErrUserNotFound
		}
		return nil, wrapStoreErr("failed to load user", err)
	}
	return &user, nil
}

func (s *UserService) updateUser(ctx context.Context, userID uint, updates map[string]interface{}) (*model.User, error) {
	db := s.db.WithContext(ctx)
	if len(updates) > 0 {
		res := db.Model(&model.User{}).Where("id = ?", userID).Updates(updates)
		if res.Error != nil {
			return nil, wrapStoreErr("failed to update user", res.Error)
		}
		if res.RowsAffected == 0 {
			return nil, ErrUserNotFound
		}
	}
	return s.findUser(db, userID)
}

// activitiesThrough lists the activities the user is linked to through a relation table
func activitiesThrough(db *gorm.DB, table string, userID uint) ([]model.Activity, error) {
	var activities []model.Activity
	err := db.Model(&model.Activity{}).
		Select("activities.*").
		Joins("JOIN "+table+" ON "+table+".activity_id = activities.id").
		Where(table+".user_id = ?", userID).
		Order(table + ".created_at DESC").
		Find(&activities).Error
	return activities, err
}
