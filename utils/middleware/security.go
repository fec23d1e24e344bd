package middleware

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/sahilchouksey/fitcamp-api/utils/logger"
	"github.com/sahilchouksey/fitcamp-api/utils/response"
)

const accessLogFormat = "${time} | ${status} | ${latency} | ${method} ${path} | ${ip} | ${locals:requestid}\n"

// SecurityConfig holds security middleware configuration
type SecurityConfig struct {
	AllowedOrigins    string // comma separated
	RateLimitRequests int    // 0 disables the limiter
	RateLimitWindow   time.Duration
	DisableAccessLog  bool
}

// SetupSecurity installs the middleware chain that runs before the auth gate.
// Order matters: the request id must exist before anything logs.
func SetupSecurity(app *fiber.App, config SecurityConfig) {
	app.Use(requestid.New())
	app.Use(logger.FiberMiddleware())

	if !config.DisableAccessLog {
		app.Use(fiberlogger.New(fiberlogger.Config{
			Format:     accessLogFormat,
			TimeFormat: time.DateTime,
			TimeZone:   "UTC",
		}))
	}

	app.Use(recover.New(recover.Config{EnableStackTrace: true}))

	app.Use(helmet.New(helmet.Config{
		XSSProtection:      "1; mode=block",
		ContentTypeNosniff: "nosniff",
		XFrameOptions:      "DENY",
		HSTSMaxAge:         31536000,
		ReferrerPolicy:     "no-referrer",
	}))

	// an empty list means any origin, which fiber refuses to combine with credentials
	origins := normalizeOrigins(config.AllowedOrigins)
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     strings.Join([]string{fiber.MethodGet, fiber.MethodPost, fiber.MethodPut, fiber.MethodDelete, fiber.MethodOptions}, ","),
		AllowHeaders:     "Origin,Content-Type,Accept,Authorization",
		AllowCredentials: origins != "",
		MaxAge:           int((24 * time.Hour).Seconds()),
	}))

	if config.RateLimitRequests > 0 {
		app.Use(limiter.New(limiter.Config{
			Max:          config.RateLimitRequests,
			Expiration:   config.RateLimitWindow,
			KeyGenerator: func(c *fiber.Ctx) string { return c.IP() },
			LimitReached: func(c *fiber.Ctx) error {
				return response.TooManyRequests(c, "Too many requests. Please try again later.")
			},
		}))
	}
}

// normalizeOrigins trims the entries of a comma separated origin list and drops empty ones
func normalizeOrigins(list string) string {
	var origins []string
	for _, o := range strings.Split(list, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return strings.Join(origins, ",")
}
