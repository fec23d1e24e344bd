package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/sahilchouksey/fitcamp-api/database/dbtest"
	"github.com/sahilchouksey/fitcamp-api/events"
	"github.com/sahilchouksey/fitcamp-api/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func reloadUser(t *testing.T, db *gorm.DB, id uint) model.User {
	t.Helper()
	var u model.User
	require.NoError(t, db.First(&u, id).Error)
	return u
}

func TestTwoDeviceLogout(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.users.Register(ctx, "alice", "password123", "")
	require.NoError(t, err)

	phone, err := env.users.Login(ctx, "alice", "password123", DeviceMeta{DeviceInfo: "phone"})
	require.NoError(t, err)
	laptop, err := env.users.Login(ctx, "alice", "password123", DeviceMeta{DeviceInfo: "laptop"})
	require.NoError(t, err)
	require.NotEqual(t, phone.Token, laptop.Token)

	userID := phone.User.ID
	assert.True(t, reloadUser(t, env.db, userID).IsOnline)

	require.NoError(t, env.users.Logout(ctx, phone.Token))
	assert.True(t, reloadUser(t, env.db, userID).IsOnline)

	_, err = env.sessions.ValidateSession(ctx, phone.Token)
	require.ErrorIs(t, err, ErrNoActiveSession)
	_, err = env.sessions.ValidateSession(ctx, laptop.Token)
	require.NoError(t, err)

	require.NoError(t, env.users.Logout(ctx, laptop.Token))
	assert.False(t, reloadUser(t, env.db, userID).IsOnline)

	assert.Equal(t, []string{events.TypeUserOnline, events.TypeUserOffline}, env.recorder.Types())
}

func TestLogoutIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	user := dbtest.CreateUser(t, env.db, "bob")
	_, err := env.sessions.CreateSession(ctx, user.ID, "token-1", DeviceMeta{})
	require.NoError(t, err)

	require.NoError(t, env.sessions.LogoutSession(ctx, "token-1"))

	var first model.UserSession
	require.NoError(t, env.db.Where("token = ?", "token-1").First(&first).Error)
	require.NotNil(t, first.LogoutTime)
	firstUser := reloadUser(t, env.db, user.ID)

	require.NoError(t, env.sessions.LogoutSession(ctx, "token-1"))

	var second model.UserSession
	require.NoError(t, env.db.Where("token = ?", "token-1").First(&second).Error)
	secondUser := reloadUser(t, env.db, user.ID)

	assert.Equal(t, first.IsActive, second.IsActive)
	require.NotNil(t, second.LogoutTime)
	assert.True(t, first.LogoutTime.Equal(*second.LogoutTime))
	assert.Equal(t, firstUser.IsOnline, secondUser.IsOnline)

	// unknown tokens are a no-op as well
	require.NoError(t, env.sessions.LogoutSession(ctx, "never-issued"))
}

func TestCreateSessionForUnknownUser(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.sessions.CreateSession(context.Background(), 404, "token", DeviceMeta{})
	require.ErrorIs(t, err, ErrUserNotFound)
	assert.Equal(t, int64(0), dbtest.Count(t, env.db, "user_sessions", ""))
}

func TestForceUserOffline(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	user := dbtest.CreateUser(t, env.db, "carol")
	for i := 0; i < 3; i++ {
		_, err := env.sessions.CreateSession(ctx, user.ID, fmt.Sprintf("token-%d", i), DeviceMeta{})
		require.NoError(t, err)
	}
	require.NoError(t, env.sessions.LogoutSession(ctx, "token-0"))

	closed, err := env.sessions.ForceUserOffline(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), closed)
	assert.False(t, reloadUser(t, env.db, user.ID).IsOnline)

	active, err := env.sessions.ListActiveSessions(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestGetOnlineUsers(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	online := dbtest.CreateUser(t, env.db, "dave")
	later := dbtest.CreateUser(t, env.db, "erin")
	dbtest.CreateUser(t, env.db, "offline")

	env.sessions.now = func() time.Time { return base }
	_, err := env.sessions.CreateSession(ctx, online.ID, "t-dave", DeviceMeta{})
	require.NoError(t, err)

	env.sessions.now = func() time.Time { return base.Add(time.Minute) }
	_, err = env.sessions.CreateSession(ctx, later.ID, "t-erin", DeviceMeta{})
	require.NoError(t, err)

	users, err := env.sessions.GetOnlineUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "erin", users[0].Account)
	assert.Equal(t, "dave", users[1].Account)
	assert.True(t, users[0].IsOnline)
}

func TestCleanupExpiredSessionsBoundary(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	now := time.Date(2026, 4, 30, 12, 0, 0, 0, time.UTC)
	cutoff := now.Add(-SessionRetention)

	stale := dbtest.CreateUser(t, env.db, "stale")
	edge := dbtest.CreateUser(t, env.db, "edge")
	fresh := dbtest.CreateUser(t, env.db, "fresh")

	create := func(userID uint, token string, at time.Time) {
		env.sessions.now = func() time.Time { return at }
		_, err := env.sessions.CreateSession(ctx, userID, token, DeviceMeta{})
		require.NoError(t, err)
	}
	create(stale.ID, "stale", cutoff.Add(-time.Second))
	create(edge.ID, "edge", cutoff)
	create(fresh.ID, "fresh", cutoff.Add(time.Second))

	env.sessions.now = func() time.Time { return now }
	cleaned, err := env.sessions.CleanupExpiredSessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, cleaned)

	assert.False(t, reloadUser(t, env.db, stale.ID).IsOnline)
	assert.True(t, reloadUser(t, env.db, edge.ID).IsOnline)
	assert.True(t, reloadUser(t, env.db, fresh.ID).IsOnline)

	assert.Equal(t, int64(2), dbtest.Count(t, env.db, "user_sessions", "is_active = ?", true))

	// a second sweep finds nothing left to do
	cleaned, err = env.sessions.CleanupExpiredSessions(ctx)
	require.NoError(t, err)
	assert.Zero(t, cleaned)
}

func TestValidateSessionTouchesActivity(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	login := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	user := dbtest.CreateUser(t, env.db, "frank")

	env.sessions.now = func() time.Time { return login }
	_, err := env.sessions.CreateSession(ctx, user.ID, "tok", DeviceMeta{DeviceInfo: "tablet"})
	require.NoError(t, err)

	seen := login.Add(2 * time.Hour)
	env.sessions.now = func() time.Time { return seen }
	session, err := env.sessions.ValidateSession(ctx, "tok")
	require.NoError(t, err)
	assert.Equal(t, user.ID, session.UserID)
	assert.Equal(t, "tablet", session.DeviceInfo)
	assert.True(t, session.LastActiveTime.Equal(seen))

	u := reloadUser(t, env.db, user.ID)
	require.NotNil(t, u.LastActiveTime)
	assert.True(t, u.LastActiveTime.Equal(seen))
}
