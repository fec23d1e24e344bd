package middleware

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/fitcamp-api/model"
	"github.com/sahilchouksey/fitcamp-api/services"
	"github.com/sahilchouksey/fitcamp-api/utils/auth"
	"github.com/sahilchouksey/fitcamp-api/utils/logger"
	"github.com/sahilchouksey/fitcamp-api/utils/response"
)

// Locals keys set by the auth gate
const (
	LocalUserID    = "user_id"
	LocalSessionID = "session_id"
	LocalToken     = "token"
	LocalClaims    = "claims"
)

// SessionValidator resolves a token to its active session
type SessionValidator interface {
	ValidateSession(ctx context.Context, token string) (*model.UserSession, error)
}

// PublicRoute is a method and path pattern that bypasses the gate.
// Pattern segments starting with ":" match any single segment.
type PublicRoute struct {
	Method string
	Path   string
}

// AuthMiddleware handles JWT authentication backed by the session registry
type AuthMiddleware struct {
	jwtManager *auth.JWTManager
	sessions   SessionValidator
}

// NewAuthMiddleware creates a new auth middleware
func NewAuthMiddleware(jwtManager *auth.JWTManager, sessions SessionValidator) *AuthMiddleware {
	return &AuthMiddleware{
		jwtManager: jwtManager,
		sessions:   sessions,
	}
}

// Gate authenticates every request except the allow-listed routes
func (m *AuthMiddleware) Gate(public ...PublicRoute) fiber.Handler {
	required := m.Required()
	return func(c *fiber.Ctx) error {
		if isPublic(public, c.Method(), c.Path()) {
			return c.Next()
		}
		return required(c)
	}
}

// Required is middleware that requires a valid token with an active session
func (m *AuthMiddleware) Required() fiber.Handler {
	return func(c *fiber.Ctx) error {
		// Get token from Authorization header
		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" {
			return response.Unauthorized(c, string(services.KindUnauthenticated), "Missing authorization token")
		}

		// Extract token from "Bearer <token>"
		parts := strings.Fields(authHeader)
		if len(parts) != 2 || parts[0] != "Bearer" {
			return response.Unauthorized(c, string(services.KindUnauthenticated), "Invalid authorization format")
		}

		tokenString := parts[1]

		// Validate signature and time claims
		claims, err := m.jwtManager.ValidateToken(tokenString)
		if err != nil {
			return response.Unauthorized(c, string(services.KindInvalidCredential), "Invalid credential: "+auth.FailureReason(err))
		}

		// A valid signature is not enough: the session must still be active
		session, err := m.sessions.ValidateSession(c.UserContext(), tokenString)
		if err != nil {
			if errors.Is(err, services.ErrNoActiveSession) {
				return response.Unauthorized(c, string(services.KindSessionExpired), "Session has expired or was logged out")
			}
			logger.Error(c.UserContext()).Err(err).Msg("session validation failed")
			return response.InternalServerError(c, "Failed to check session")
		}
		if session.UserID != claims.UserID {
			return response.Unauthorized(c, string(services.KindSessionExpired), "Session does not belong to this token")
		}

		c.Locals(LocalUserID, claims.UserID)
		c.Locals(LocalSessionID, session.ID)
		c.Locals(LocalToken, tokenString)
		c.Locals(LocalClaims, claims)

		return c.Next()
	}
}

func isPublic(routes []PublicRoute, method, path string) bool {
	path = strings.TrimSuffix(path, "/")
	for _, r := range routes {
		if r.Method == method && matchPath(r.Path, path) {
			return true
		}
	}
	return false
}

func matchPath(pattern, path string) bool {
	ps := strings.Split(strings.Trim(pattern, "/"), "/")
	xs := strings.Split(strings.Trim(path, "/"), "/")
	if len(ps) != len(xs) {
		return false
	}
	for i := range ps {
		if strings.HasPrefix(ps[i], ":") {
			if xs[i] == "" {
				return false
			}
			continue
		}
		if ps[i] != xs[i] {
			return false
		}
	}
	return true
}

// GetUserID extracts user ID from context
func GetUserID(c *fiber.Ctx) (uint, bool) {
	id, ok := c.Locals(LocalUserID).(uint)
	return id, ok
}

// GetSessionID extracts the session ID from context
func GetSessionID(c *fiber.Ctx) (uint, bool) {
	id, ok := c.Locals(LocalSessionID).(uint)
	return id, ok
}

// GetToken extracts the bearer token from context
func GetToken(c *fiber.Ctx) (string, bool) {
	token, ok := c.Locals(LocalToken).(string)
	return token, ok
}

// GetClaims extracts full claims from context
func GetClaims(c *fiber.Ctx) (*auth.Claims, bool) {
	claims, ok := c.Locals(LocalClaims).(*auth.Claims)
	return claims, ok
}
