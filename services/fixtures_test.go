package services

import (
	"testing"
	"time"

	"github.com/sahilchouksey/fitcamp-api/database/dbtest"
	"github.com/sahilchouksey/fitcamp-api/events"
	"github.com/sahilchouksey/fitcamp-api/utils/auth"
	"gorm.io/gorm"
)

// testEnv wires every service over one in-memory database
type testEnv struct {
	db         *gorm.DB
	recorder   *events.Recorder
	locker     *KeyedLocker
	sessions   *SessionService
	enrollment *EnrollmentService
	lifecycle  *LifecycleService
	activities *ActivityService
	comments   *CommentService
	users      *UserService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := dbtest.Open(t)
	recorder := &events.Recorder{}
	locker := NewKeyedLocker(10 * time.Second)
	jwtManager := auth.NewJWTManager(auth.JWTConfig{
		Secret: "test-secret",
		Expiry: time.Hour,
		Issuer: "fitcamp-test",
	})

	sessions := NewSessionService(db, recorder)
	lifecycle := NewLifecycleService(db, locker, recorder)
	return &testEnv{
		db:         db,
		recorder:   recorder,
		locker:     locker,
		sessions:   sessions,
		enrollment: NewEnrollmentService(db, locker, recorder),
		lifecycle:  lifecycle,
		activities: NewActivityService(db, locker),
		comments:   NewCommentService(db, locker),
		users:      NewUserService(db, sessions, lifecycle, jwtManager, auth.MinCost),
	}
}

func ptr[T any](v T) *T {
	return &v
}
