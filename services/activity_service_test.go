package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/sahilchouksey/fitcamp-api/database/dbtest"
	"github.com/sahilchouksey/fitcamp-api/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newInput(title string, limit int, typ model.ActivityType) ActivityInput {
	return ActivityInput{
		Title:             title,
		Profile:           "weekly session",
		Date:              time.Date(2026, 6, 1, 7, 0, 0, 0, time.UTC),
		Location:          "Track",
		ParticipantsLimit: limit,
		Type:              typ,
	}
}

func TestCreateActivity(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	owner := dbtest.CreateUser(t, env.db, "olivia")

	activity, err := env.activities.Create(ctx, owner.ID, newInput("  Sunrise run ", 10, ""))
	require.NoError(t, err)
	assert.NotZero(t, activity.ID)
	assert.Equal(t, "Sunrise run", activity.Title)
	assert.Equal(t, model.ActivityTypeOther, activity.Type)
	assert.Equal(t, "olivia", activity.OrganizerName)
	require.NotNil(t, activity.CreatorID)
	assert.Equal(t, owner.ID, *activity.CreatorID)
}

func TestCreateActivityValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := dbtest.CreateUser(t, env.db, "pat")

	tests := []struct {
		name  string
		input ActivityInput
	}{
		{"empty title", newInput("   ", 5, model.ActivityTypeDance)},
		{"zero limit", newInput("Dance", 0, model.ActivityTypeDance)},
		{"unknown type", newInput("Dance", 5, "chess")},
		{"missing date", ActivityInput{Title: "Dance", ParticipantsLimit: 5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.activities.Create(ctx, owner.ID, tt.input)
			require.Error(t, err)
			assert.Equal(t, KindInvalidInput, KindOf(err))
		})
	}

	_, err := env.activities.Create(ctx, owner.ID+100, newInput("Orphan", 5, model.ActivityTypeDance))
	require.ErrorIs(t, err, ErrUserNotFound)
	assert.Zero(t, dbtest.Count(t, env.db, "activities", ""))
}

func TestUpdateActivity(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	owner := dbtest.CreateUser(t, env.db, "quinn")
	stranger := dbtest.CreateUser(t, env.db, "rita")
	activity, err := env.activities.Create(ctx, owner.ID, newInput("Swim drills", 3, model.ActivityTypeSwimming))
	require.NoError(t, err)

	_, err = env.activities.Update(ctx, stranger.ID, activity.ID, ActivityPatch{Title: ptr("Hijacked")})
	require.ErrorIs(t, err, ErrNotOwner)

	updated, err := env.activities.Update(ctx, owner.ID, activity.ID, ActivityPatch{
		Title: ptr("Swim intervals"),
		Fee:   ptr(4.5),
	})
	require.NoError(t, err)
	assert.Equal(t, "Swim intervals", updated.Title)
	assert.Equal(t, 4.5, updated.Fee)
	assert.Equal(t, 3, updated.ParticipantsLimit)

	_, err = env.activities.Update(ctx, owner.ID, activity.ID+100, ActivityPatch{Title: ptr("x")})
	require.ErrorIs(t, err, ErrActivityNotFound)
}

func TestUpdateActivityCannotDropBelowParticipants(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	owner := dbtest.CreateUser(t, env.db, "sam")
	activity, err := env.activities.Create(ctx, owner.ID, newInput("Football", 3, model.ActivityTypeFootball))
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		u := dbtest.CreateUser(t, env.db, fmt.Sprintf("player%d", i))
		require.NoError(t, env.enrollment.Join(ctx, u.ID, activity.ID))
	}

	_, err = env.activities.Update(ctx, owner.ID, activity.ID, ActivityPatch{ParticipantsLimit: ptr(1)})
	require.ErrorIs(t, err, ErrCapacityExceeded)

	updated, err := env.activities.Update(ctx, owner.ID, activity.ID, ActivityPatch{ParticipantsLimit: ptr(2)})
	require.NoError(t, err)
	assert.Equal(t, 2, updated.ParticipantsLimit)

	extra := dbtest.CreateUser(t, env.db, "extra")
	require.ErrorIs(t, env.enrollment.Join(ctx, extra.ID, activity.ID), ErrCapacityExceeded)
}

func TestListActivities(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	owner := dbtest.CreateUser(t, env.db, "tara")
	member := dbtest.CreateUser(t, env.db, "uma")

	run, err := env.activities.Create(ctx, owner.ID, newInput("Evening run", 5, model.ActivityTypeRunning))
	require.NoError(t, err)
	_, err = env.activities.Create(ctx, owner.ID, newInput("Lake swim", 5, model.ActivityTypeSwimming))
	require.NoError(t, err)
	_, err = env.activities.Create(ctx, owner.ID, newInput("Hill RUN repeats", 5, model.ActivityTypeRunning))
	require.NoError(t, err)

	require.NoError(t, env.enrollment.Join(ctx, member.ID, run.ID))
	require.NoError(t, env.enrollment.Favorite(ctx, member.ID, run.ID))

	all, err := env.activities.List(ctx, ActivityFilter{Type: "all"})
	require.NoError(t, err)
	assert.Equal(t, int64(3), all.Total)
	assert.Equal(t, 1, all.Page)
	assert.Equal(t, 10, all.Limit)
	require.Len(t, all.Items, 3)
	// newest first
	assert.Equal(t, "Hill RUN repeats", all.Items[0].Title)

	running, err := env.activities.List(ctx, ActivityFilter{Type: "running"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), running.Total)

	var evening ActivityListItem
	for _, item := range running.Items {
		if item.ID == run.ID {
			evening = item
		}
	}
	assert.Equal(t, int64(1), evening.ParticipantCount)
	assert.Equal(t, int64(1), evening.FavoriteCount)

	paged, err := env.activities.List(ctx, ActivityFilter{Page: 2, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), paged.Total)
	require.Len(t, paged.Items, 1)
	assert.Equal(t, "Evening run", paged.Items[0].Title)

	_, err = env.activities.List(ctx, ActivityFilter{Type: "chess"})
	assert.Equal(t, KindInvalidInput, KindOf(err))
}

func TestSearchActivities(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	owner := dbtest.CreateUser(t, env.db, "vera")
	_, err := env.activities.Create(ctx, owner.ID, newInput("Evening run", 5, model.ActivityTypeRunning))
	require.NoError(t, err)
	_, err = env.activities.Create(ctx, owner.ID, newInput("Lake swim", 5, model.ActivityTypeSwimming))
	require.NoError(t, err)

	found, err := env.activities.Search(ctx, "RUN")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "Evening run", found[0].Title)

	found, err = env.activities.Search(ctx, "track")
	require.NoError(t, err)
	assert.Len(t, found, 2)

	_, err = env.activities.Search(ctx, "  ")
	assert.Equal(t, KindInvalidInput, KindOf(err))
}

func TestSearchTreatsWildcardsLiterally(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	owner := dbtest.CreateUser(t, env.db, "wanda")
	_, err := env.activities.Create(ctx, owner.ID, newInput("Evening run", 5, model.ActivityTypeRunning))
	require.NoError(t, err)
	_, err = env.activities.Create(ctx, owner.ID, newInput("100% effort_circuit", 5, model.ActivityTypeWorkout))
	require.NoError(t, err)

	for _, kw := range []string{"%", "_", `\`} {
		found, err := env.activities.Search(ctx, kw)
		require.NoError(t, err)
		if kw == `\` {
			assert.Empty(t, found, "keyword %q", kw)
			continue
		}
		require.Len(t, found, 1, "keyword %q", kw)
		assert.Equal(t, "100% effort_circuit", found[0].Title)
	}

	found, err := env.activities.Search(ctx, "g_r")
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestGetActivityDetail(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	owner := dbtest.CreateUser(t, env.db, "walt")
	member := dbtest.CreateUser(t, env.db, "xena")
	activity, err := env.activities.Create(ctx, owner.ID, newInput("Workout", 5, model.ActivityTypeWorkout))
	require.NoError(t, err)

	require.NoError(t, env.enrollment.Join(ctx, member.ID, activity.ID))
	require.NoError(t, env.enrollment.Favorite(ctx, owner.ID, activity.ID))
	_, err = env.comments.Create(ctx, member.ID, activity.ID, "tough but good", "", 4)
	require.NoError(t, err)

	detail, err := env.activities.GetByID(ctx, activity.ID)
	require.NoError(t, err)
	require.NotNil(t, detail.Creator)
	assert.Equal(t, "walt", detail.Creator.Account)
	require.Len(t, detail.Participants, 1)
	assert.Equal(t, "xena", detail.Participants[0].Account)
	require.Len(t, detail.Favoriters, 1)
	assert.Equal(t, "walt", detail.Favoriters[0].Account)
	require.Len(t, detail.Comments, 1)
	require.NotNil(t, detail.Comments[0].Author)
	assert.Equal(t, "xena", detail.Comments[0].Author.Account)
	assert.Equal(t, 1, detail.ParticipantCount)
	assert.Equal(t, 1, detail.FavoriteCount)
}
