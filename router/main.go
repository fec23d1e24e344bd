package router

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sahilchouksey/fitcamp-api/config"
	"github.com/sahilchouksey/fitcamp-api/database"
	"github.com/sahilchouksey/fitcamp-api/events"
	"github.com/sahilchouksey/fitcamp-api/handlers"
	activity_handlers "github.com/sahilchouksey/fitcamp-api/handlers/activity"
	auth_handlers "github.com/sahilchouksey/fitcamp-api/handlers/auth"
	user_handlers "github.com/sahilchouksey/fitcamp-api/handlers/user"
	"github.com/sahilchouksey/fitcamp-api/services"
	"github.com/sahilchouksey/fitcamp-api/utils"
	"github.com/sahilchouksey/fitcamp-api/utils/auth"
	"github.com/sahilchouksey/fitcamp-api/utils/cache"
	"github.com/sahilchouksey/fitcamp-api/utils/middleware"
)

// Dependencies are the shared resources the routes are built from
type Dependencies struct {
	Store     database.Storage
	Config    *config.Config
	Publisher events.Publisher  // nil drops events
	Cache     *cache.RedisCache // nil disables brute force protection

	// BcryptCost overrides the password hashing cost; zero keeps the default
	BcryptCost int
}

// Services exposes the services built for the routes so bootstrap can share them
type Services struct {
	Sessions   *services.SessionService
	Users      *services.UserService
	Activities *services.ActivityService
	Enrollment *services.EnrollmentService
	Lifecycle  *services.LifecycleService
	Comments   *services.CommentService
}

// PublicRoutes are reachable without a session
var PublicRoutes = []middleware.PublicRoute{
	{Method: fiber.MethodGet, Path: "/ping"},
	{Method: fiber.MethodGet, Path: "/metrics"},
	{Method: fiber.MethodPost, Path: "/api/v1/auth/register"},
	{Method: fiber.MethodPost, Path: "/api/v1/auth/login"},
	{Method: fiber.MethodGet, Path: "/api/v1/activities"},
	{Method: fiber.MethodGet, Path: "/api/v1/activities/search"},
	{Method: fiber.MethodGet, Path: "/api/v1/activities/:id"},
	{Method: fiber.MethodGet, Path: "/api/v1/activities/:id/comments"},
}

func SetupRoutes(app *fiber.App, deps Dependencies) (*Services, error) {
	cfg := deps.Config
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET environment variable is not set")
	}

	// Initialize JWT manager with config
	jwtManager := auth.NewJWTManager(auth.JWTConfig{
		Secret: cfg.JWTSecret,
		Expiry: cfg.JWTExpiry,
		Issuer: cfg.JWTIssuer,
	})

	db := deps.Store.GetDB()

	publisher := deps.Publisher
	if publisher == nil {
		publisher = events.NopPublisher{}
	}

	// One locker shared by every engine so lock ordering holds across them
	locker := services.NewKeyedLocker(cfg.LockWaitTimeout)

	sessionService := services.NewSessionService(db, publisher)
	lifecycleService := services.NewLifecycleService(db, locker, publisher)
	svc := &Services{
		Sessions:   sessionService,
		Users:      services.NewUserService(db, sessionService, lifecycleService, jwtManager, deps.BcryptCost),
		Activities: services.NewActivityService(db, locker),
		Enrollment: services.NewEnrollmentService(db, locker, publisher),
		Lifecycle:  lifecycleService,
		Comments:   services.NewCommentService(db, locker),
	}

	var bruteForceProtection *middleware.BruteForceProtection
	if deps.Cache != nil {
		bruteForceProtection = middleware.NewBruteForceProtection(deps.Cache)
	}

	authMiddleware := middleware.NewAuthMiddleware(jwtManager, sessionService)

	authHandler := auth_handlers.NewAuthHandler(svc.Users, bruteForceProtection)
	userHandler := user_handlers.NewUserHandler(svc.Users, sessionService)
	activityHandler := activity_handlers.NewActivityHandler(svc.Activities, svc.Enrollment, svc.Lifecycle, svc.Comments)

	// Apply security middleware
	middleware.SetupSecurity(app, middleware.SecurityConfig{
		AllowedOrigins:    cfg.AllowedOrigins,
		RateLimitRequests: 100,             // 100 requests
		RateLimitWindow:   1 * time.Minute, // per minute
		DisableAccessLog:  !cfg.AccessLog,
	})

	// Every route below passes the auth gate unless allow-listed
	app.Use(authMiddleware.Gate(PublicRoutes...))

	app.Get("/ping", utils.MakeHTTPHandleFunc(handlers.HandleCheckHealth, deps.Store))
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// API v1 group
	api := app.Group("/api/v1")

	// Auth routes
	authGroup := api.Group("/auth")
	authGroup.Post("/register", authHandler.Register)
	if bruteForceProtection != nil {
		authGroup.Post("/login", bruteForceProtection.CheckAndRecordAttempt(), authHandler.Login)
	} else {
		authGroup.Post("/login", authHandler.Login)
	}
	authGroup.Post("/logout", authHandler.Logout)
	authGroup.Post("/logout-all", authHandler.LogoutAll)

	// User routes
	users := api.Group("/users")
	users.Get("/online", userHandler.OnlineUsers)
	users.Get("/me", userHandler.Me)
	users.Put("/me", userHandler.UpdateMe)
	users.Put("/me/avatar", userHandler.UpdateAvatar)
	users.Get("/me/sessions", userHandler.Sessions)
	users.Delete("/me", userHandler.Unregister)

	// Activity routes
	activities := api.Group("/activities")
	activities.Get("/", activityHandler.ListActivities)
	activities.Get("/search", activityHandler.SearchActivities)
	activities.Get("/:id", activityHandler.GetActivity)
	activities.Post("/", activityHandler.CreateActivity)
	activities.Put("/:id", activityHandler.UpdateActivity)
	activities.Delete("/:id", activityHandler.DeleteActivity)

	// Enrollment
	activities.Post("/:id/join", activityHandler.JoinActivity)
	activities.Post("/:id/leave", activityHandler.LeaveActivity)
	activities.Post("/:id/favorite", activityHandler.FavoriteActivity)
	activities.Post("/:id/unfavorite", activityHandler.UnfavoriteActivity)

	// Comments
	activities.Get("/:id/comments", activityHandler.ListComments)
	activities.Post("/:id/comments", activityHandler.CreateComment)

	return svc, nil
}
