// Package middleware provides authentication and request instrumentation middleware for the application.
package middleware

import (
	"strings"

	"veritas/internal/config"
	"veritas/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

// UserIDLocal is the fiber.Ctx locals key holding the authenticated user id.
const UserIDLocal = "userID"

var cfg *config.Config

// InitMiddleware initializes authentication middleware with the given config.
func InitMiddleware(c *config.Config) {
	cfg = c
}

// AuthRequired verifies the bearer token issued by the identity provider and
// attaches its subject as the opaque user id. Tokens are never issued here.
func AuthRequired(c *fiber.Ctx) error {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return models.RespondWithError(c, fiber.StatusUnauthorized,
			models.NewUnauthorizedError("Authorization header required"))
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return models.RespondWithError(c, fiber.StatusUnauthorized,
			models.NewUnauthorizedError("Invalid authorization header format"))
	}

	userID, err := ParseSubject(parts[1])
	if err != nil {
		return models.RespondWithError(c, fiber.StatusUnauthorized, err)
	}

	c.Locals(UserIDLocal, userID)
	c.SetUserContext(WithUserID(c.UserContext(), userID))

	return c.Next()
}

// ParseSubject validates an HS256 token and returns its "sub" claim.
func ParseSubject(tokenString string) (string, error) {
	if cfg == nil {
		return "", models.NewUnauthorizedError("Authentication is not configured")
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if cfg.JWTIssuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.JWTIssuer))
	}

	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(_ *jwt.Token) (interface{}, error) {
		return []byte(cfg.JWTSecret), nil
	}, opts...)
	if err != nil || !token.Valid {
		return "", models.NewUnauthorizedError("Invalid or expired token")
	}

	sub, err := claims.GetSubject()
	if err != nil || strings.TrimSpace(sub) == "" {
		return "", models.NewUnauthorizedError("Invalid token structure - missing subject")
	}
	return sub, nil
}

// UserID returns the authenticated user id, or "" when the request is anonymous.
func UserID(c *fiber.Ctx) string {
	uid, _ := c.Locals(UserIDLocal).(string)
	return uid
}
