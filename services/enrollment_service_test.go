package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/sahilchouksey/fitcamp-api/database/dbtest"
	"github.com/sahilchouksey/fitcamp-api/events"
	"github.com/sahilchouksey/fitcamp-api/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJoinLeaveCapacityScenario(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	alice, err := env.users.Register(ctx, "alice", "password123", "Alice")
	require.NoError(t, err)
	_, err = env.users.Login(ctx, "alice", "password123", DeviceMeta{DeviceInfo: "phone"})
	require.NoError(t, err)

	activity, err := env.activities.Create(ctx, alice.ID, ActivityInput{
		Title:             "Morning run",
		Date:              time.Now().UTC().Add(24 * time.Hour),
		ParticipantsLimit: 1,
		Type:              model.ActivityTypeRunning,
	})
	require.NoError(t, err)

	bob := dbtest.CreateUser(t, env.db, "bob")
	carol := dbtest.CreateUser(t, env.db, "carol")

	require.NoError(t, env.enrollment.Join(ctx, bob.ID, activity.ID))

	err = env.enrollment.Join(ctx, carol.ID, activity.ID)
	require.ErrorIs(t, err, ErrCapacityExceeded)

	require.NoError(t, env.enrollment.Leave(ctx, bob.ID, activity.ID))
	require.NoError(t, env.enrollment.Join(ctx, carol.ID, activity.ID))

	assert.Equal(t, int64(1), dbtest.Count(t, env.db, "participations", "activity_id = ?", activity.ID))
	assert.Equal(t, int64(1), dbtest.Count(t, env.db, "participations", "activity_id = ? AND user_id = ?", activity.ID, carol.ID))
}

// The test database has a single connection, so this covers the capacity
// invariant end to end; the keyed lock itself is covered by the two tests below.
func TestConcurrentJoinsForLastSlot(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	activity := dbtest.CreateActivity(t, env.db, "Pickup basketball", 3, nil)
	for i := 0; i < 2; i++ {
		u := dbtest.CreateUser(t, env.db, fmt.Sprintf("early%d", i))
		require.NoError(t, env.enrollment.Join(ctx, u.ID, activity.ID))
	}

	const n = 10
	joiners := make([]*model.User, n)
	for i := range joiners {
		joiners[i] = dbtest.CreateUser(t, env.db, fmt.Sprintf("late%d", i))
	}

	var (
		wg   sync.WaitGroup
		errs = make([]error, n)
	)
	start := make(chan struct{})
	for i := range joiners {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			errs[i] = env.enrollment.Join(ctx, joiners[i].ID, activity.ID)
		}(i)
	}
	close(start)
	wg.Wait()

	successes, full := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, ErrCapacityExceeded):
			full++
		default:
			t.Errorf("unexpected join error: %v", err)
		}
	}

	assert.Equal(t, 1, successes)
	assert.Equal(t, n-1, full)
	assert.Equal(t, int64(3), dbtest.Count(t, env.db, "participations", "activity_id = ?", activity.ID))
}

func TestJoinWaitsForHeldActivityKey(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	activity := dbtest.CreateActivity(t, env.db, "Track intervals", 2, nil)
	runner := dbtest.CreateUser(t, env.db, "runner")

	release, err := env.locker.Acquire(ctx, ActivityKey(activity.ID))
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		done <- env.enrollment.Join(ctx, runner.ID, activity.ID)
	}()

	select {
	case err := <-done:
		t.Fatalf("join finished while the activity key was held: %v", err)
	case <-time.After(100 * time.Millisecond):
	}
	assert.Zero(t, dbtest.Count(t, env.db, "participations", "activity_id = ?", activity.ID))

	release()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("join did not resume after the key was released")
	}
	assert.Equal(t, int64(1), dbtest.Count(t, env.db, "participations", "activity_id = ?", activity.ID))
}

func TestJoinReportsBusyWhenLockWaitExpires(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	locker := NewKeyedLocker(50 * time.Millisecond)
	enrollment := NewEnrollmentService(env.db, locker, nil)

	activity := dbtest.CreateActivity(t, env.db, "Court booking", 2, nil)
	player := dbtest.CreateUser(t, env.db, "player")

	release, err := locker.Acquire(ctx, ActivityKey(activity.ID))
	require.NoError(t, err)
	defer release()

	err = enrollment.Join(ctx, player.ID, activity.ID)
	require.ErrorIs(t, err, ErrBusy)
	assert.Equal(t, KindBusy, KindOf(err))
	assert.Zero(t, dbtest.Count(t, env.db, "participations", "activity_id = ?", activity.ID))

	// the user key taken before the activity key is released on failure
	userRelease, err := locker.Acquire(ctx, UserKey(player.ID))
	require.NoError(t, err)
	userRelease()
}

func TestConcurrentJoinsNeverExceedLimit(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	const limit, n = 4, 16
	activity := dbtest.CreateActivity(t, env.db, "Yoga", limit, nil)

	users := make([]*model.User, n)
	for i := range users {
		users[i] = dbtest.CreateUser(t, env.db, fmt.Sprintf("user%d", i))
	}

	// every user races itself too; a pair must never be stored twice
	var wg sync.WaitGroup
	for _, u := range users {
		for i := 0; i < 2; i++ {
			wg.Add(1)
			go func(id uint) {
				defer wg.Done()
				_ = env.enrollment.Join(ctx, id, activity.ID)
			}(u.ID)
		}
	}
	wg.Wait()

	assert.Equal(t, int64(limit), dbtest.Count(t, env.db, "participations", "activity_id = ?", activity.ID))

	var duplicates int64
	require.NoError(t, env.db.Raw(
		"SELECT COUNT(*) FROM (SELECT user_id FROM participations GROUP BY user_id, activity_id HAVING COUNT(*) > 1)",
	).Scan(&duplicates).Error)
	assert.Zero(t, duplicates)
}

func TestJoinTwiceIsConflict(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	user := dbtest.CreateUser(t, env.db, "dave")
	activity := dbtest.CreateActivity(t, env.db, "Swim", 5, nil)

	require.NoError(t, env.enrollment.Join(ctx, user.ID, activity.ID))

	err := env.enrollment.Join(ctx, user.ID, activity.ID)
	require.ErrorIs(t, err, ErrAlreadyJoined)
	assert.Equal(t, KindConflict, KindOf(err))
	assert.Equal(t, int64(1), dbtest.Count(t, env.db, "participations", ""))
}

func TestJoinUnknownEntities(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	user := dbtest.CreateUser(t, env.db, "erin")
	activity := dbtest.CreateActivity(t, env.db, "Dance", 5, nil)

	require.ErrorIs(t, env.enrollment.Join(ctx, user.ID, activity.ID+100), ErrActivityNotFound)
	require.ErrorIs(t, env.enrollment.Join(ctx, user.ID+100, activity.ID), ErrUserNotFound)
	assert.Equal(t, int64(0), dbtest.Count(t, env.db, "participations", ""))
}

func TestLeaveWithoutJoining(t *testing.T) {
	env := newTestEnv(t)

	user := dbtest.CreateUser(t, env.db, "frank")
	activity := dbtest.CreateActivity(t, env.db, "Football", 5, nil)

	err := env.enrollment.Leave(context.Background(), user.ID, activity.ID)
	require.ErrorIs(t, err, ErrNotJoined)
	assert.Equal(t, KindPreconditionFailed, KindOf(err))
}

func TestFavoriteLifecycle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	user := dbtest.CreateUser(t, env.db, "gina")
	activity := dbtest.CreateActivity(t, env.db, "Badminton", 1, nil)

	require.NoError(t, env.enrollment.Favorite(ctx, user.ID, activity.ID))
	require.ErrorIs(t, env.enrollment.Favorite(ctx, user.ID, activity.ID), ErrAlreadyFavorited)

	// favorites are not bound by capacity
	other := dbtest.CreateUser(t, env.db, "hank")
	require.NoError(t, env.enrollment.Favorite(ctx, other.ID, activity.ID))
	assert.Equal(t, int64(2), dbtest.Count(t, env.db, "favorites", "activity_id = ?", activity.ID))

	require.NoError(t, env.enrollment.Unfavorite(ctx, user.ID, activity.ID))
	require.ErrorIs(t, env.enrollment.Unfavorite(ctx, user.ID, activity.ID), ErrNotFavorited)
	assert.Equal(t, int64(1), dbtest.Count(t, env.db, "favorites", "activity_id = ?", activity.ID))
}

func TestEnrollmentPublishesEvents(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	user := dbtest.CreateUser(t, env.db, "ivy")
	activity := dbtest.CreateActivity(t, env.db, "Workout", 2, nil)

	require.NoError(t, env.enrollment.Join(ctx, user.ID, activity.ID))
	require.NoError(t, env.enrollment.Favorite(ctx, user.ID, activity.ID))
	require.ErrorIs(t, env.enrollment.Join(ctx, user.ID, activity.ID), ErrAlreadyJoined)
	require.NoError(t, env.enrollment.Unfavorite(ctx, user.ID, activity.ID))
	require.NoError(t, env.enrollment.Leave(ctx, user.ID, activity.ID))

	assert.Equal(t, []string{
		events.TypeActivityJoined,
		events.TypeActivityFavorited,
		events.TypeActivityUnfavorited,
		events.TypeActivityLeft,
	}, env.recorder.Types())

	first := env.recorder.Events()[0]
	assert.Equal(t, user.ID, first.UserID)
	assert.Equal(t, activity.ID, first.ActivityID)
}

func TestCreatorMayJoinOwnActivity(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	owner := dbtest.CreateUser(t, env.db, "jack")
	activity := dbtest.CreateActivity(t, env.db, "Trail run", 1, &owner.ID)

	require.NoError(t, env.enrollment.Join(ctx, owner.ID, activity.ID))

	other := dbtest.CreateUser(t, env.db, "kate")
	require.ErrorIs(t, env.enrollment.Join(ctx, other.ID, activity.ID), ErrCapacityExceeded)
}
