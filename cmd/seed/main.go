package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sahilchouksey/fitcamp-api/config"
	"github.com/sahilchouksey/fitcamp-api/database"
	"github.com/sahilchouksey/fitcamp-api/events"
	"github.com/sahilchouksey/fitcamp-api/model"
	"github.com/sahilchouksey/fitcamp-api/services"
	"github.com/sahilchouksey/fitcamp-api/utils/auth"
	"github.com/sahilchouksey/fitcamp-api/utils/logger"
)

type seedUser struct {
	Account string
	Name    string
}

type seedActivity struct {
	Owner    string
	Title    string
	Type     model.ActivityType
	Location string
	Limit    int
	Fee      float64
	InDays   int
}

var users = []seedUser{
	{Account: "coach.lee", Name: "Coach Lee"},
	{Account: "alice", Name: "Alice"},
	{Account: "bob", Name: "Bob"},
}

var activities = []seedActivity{
	{Owner: "coach.lee", Title: "Morning Run Club", Type: model.ActivityTypeRunning, Location: "North Track", Limit: 20, InDays: 1},
	{Owner: "coach.lee", Title: "Beginner Badminton", Type: model.ActivityTypeBadminton, Location: "Gym Court 2", Limit: 8, Fee: 5, InDays: 3},
	{Owner: "alice", Title: "Sunset Circuit", Type: model.ActivityTypeWorkout, Location: "South Lawn", Limit: 15, InDays: 2},
}

func main() {
	if err := run(); err != nil {
		logger.Global().Fatal().Err(err).Msg("seeding failed")
	}
}

func run() error {
	if err := config.LoadENV(); err != nil {
		return err
	}
	cfg, err := config.Get()
	if err != nil {
		return err
	}
	if err := logger.Init(logger.Config{Level: cfg.LogLevel, Format: "console"}); err != nil {
		return err
	}

	store, err := database.StartGORM(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Init(); err != nil {
		return err
	}

	password := os.Getenv("SEED_PASSWORD")
	if password == "" {
		return errors.New("SEED_PASSWORD is required")
	}

	db := store.GetDB()
	locker := services.NewKeyedLocker(cfg.LockWaitTimeout)
	publisher := events.NopPublisher{}
	sessions := services.NewSessionService(db, publisher)
	lifecycle := services.NewLifecycleService(db, locker, publisher)
	jwtManager := auth.NewJWTManager(auth.JWTConfig{
		Secret: cfg.JWTSecret,
		Expiry: cfg.JWTExpiry,
		Issuer: cfg.JWTIssuer,
	})
	userService := services.NewUserService(db, sessions, lifecycle, jwtManager, auth.DefaultCost)
	activityService := services.NewActivityService(db, locker)

	ctx := context.Background()
	separator := strings.Repeat("=", 60)
	fmt.Println(separator)
	fmt.Println("FitCamp - Database Seeding")
	fmt.Println(separator)

	ids := make(map[string]uint, len(users))
	for _, u := range users {
		created, err := userService.Register(ctx, u.Account, password, u.Name)
		switch {
		case errors.Is(err, services.ErrAccountTaken):
			var existing model.User
			if err := db.Where("account = ?", u.Account).First(&existing).Error; err != nil {
				return err
			}
			ids[u.Account] = existing.ID
			fmt.Printf("  = user %s already exists\n", u.Account)
		case err != nil:
			return fmt.Errorf("failed to seed user %s: %w", u.Account, err)
		default:
			ids[u.Account] = created.ID
			fmt.Printf("  + user %s\n", u.Account)
		}
	}

	today := time.Now().UTC().Truncate(24 * time.Hour)
	for _, a := range activities {
		var count int64
		if err := db.Model(&model.Activity{}).Where("title = ?", a.Title).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			fmt.Printf("  = activity %q already exists\n", a.Title)
			continue
		}

		_, err := activityService.Create(ctx, ids[a.Owner], services.ActivityInput{
			Title:             a.Title,
			Date:              today.AddDate(0, 0, a.InDays).Add(7 * time.Hour),
			Location:          a.Location,
			ParticipantsLimit: a.Limit,
			Fee:               a.Fee,
			Type:              a.Type,
		})
		if err != nil {
			return fmt.Errorf("failed to seed activity %q: %w", a.Title, err)
		}
		fmt.Printf("  + activity %q\n", a.Title)
	}

	fmt.Println(separator)
	fmt.Println("Seeding completed")
	fmt.Println(separator)
	return nil
}
