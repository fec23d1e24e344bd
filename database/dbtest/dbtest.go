// Package dbtest opens isolated in-memory SQLite databases for package tests.
package dbtest

import (
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sahilchouksey/fitcamp-api/database"
	"github.com/sahilchouksey/fitcamp-api/model"
	"github.com/sahilchouksey/fitcamp-api/utils/auth"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var seq atomic.Int64

// Open returns a migrated in-memory database with foreign keys enforced.
// The connection is closed when the test finishes.
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := database.SQLiteDSN(fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, seq.Add(1)))

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, database.NewGORMStore(db).Init())

	t.Cleanup(func() {
		_ = sqlDB.Close()
	})
	return db
}

// CreateUser inserts a user whose password is "password123"
func CreateUser(t testing.TB, db *gorm.DB, account string) *model.User {
	t.Helper()

	hash, err := auth.HashPasswordWithCost("password123", auth.MinCost)
	require.NoError(t, err)

	user := &model.User{
		Account:      account,
		PasswordHash: hash,
		Name:         account,
		Profile:      model.DefaultProfile,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

// CreateActivity inserts an activity with the given capacity, optionally owned by creatorID
func CreateActivity(t testing.TB, db *gorm.DB, title string, limit int, creatorID *uint) *model.Activity {
	t.Helper()

	activity := &model.Activity{
		Title:             title,
		Profile:           title + " description",
		Date:              time.Now().UTC().Add(48 * time.Hour),
		Location:          "Main field",
		ParticipantsLimit: limit,
		Type:              model.ActivityTypeRunning,
		CreatorID:         creatorID,
	}
	require.NoError(t, db.Create(activity).Error)
	return activity
}

// Count returns the number of rows in table matching the optional condition
func Count(t testing.TB, db *gorm.DB, table string, query string, args ...interface{}) int64 {
	t.Helper()

	var n int64
	tx := db.Table(table)
	if query != "" {
		tx = tx.Where(query, args...)
	}
	require.NoError(t, tx.Count(&n).Error)
	return n
}
