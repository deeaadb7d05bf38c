package middleware

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"moim/cache"
	"moim/config"
	"moim/models"
	"moim/utils"
)

func tokenFromRequest(c *fiber.Ctx) (string, error) {
	authHeader := c.Get("Authorization")
	if authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			return "", fiber.NewError(fiber.StatusUnauthorized, "Invalid authorization format")
		}
		return parts[1], nil
	}
	// Fall back to cookie if header not present
	token := c.Cookies("access_token")
	if token == "" {
		return "", fiber.NewError(fiber.StatusUnauthorized, "Authorization required")
	}
	return token, nil
}

func unauthorized(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"error":       message,
		"redirect_to": c.OriginalURL(),
	})
}

// Protected guards a route behind a valid access token. The cached session
// snapshot is consulted first; the database is only hit on a cache miss, and
// the resolved identity is written back with a short TTL.
func Protected(sessions *cache.Sessions) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, err := tokenFromRequest(c)
		if err != nil {
			return unauthorized(c, err.Error())
		}

		claims, err := utils.ParseJWTToken(token)
		if err != nil {
			return unauthorized(c, "Invalid or expired token")
		}

		if session, err := sessions.Load(c.Context(), claims.SessionID); err == nil {
			if session.TokenVersion != claims.TokenVersion {
				return unauthorized(c, "Invalid token version")
			}
			c.Locals("userID", session.UserID)
			c.Locals("sessionID", session.SessionID)
			c.Locals("userName", session.Name)
			return c.Next()
		}

		var user models.User
		if err := config.DB.First(&user, claims.UserID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return unauthorized(c, "User not found")
			}
			// Identity could not be resolved either way, ask the
			// client to retry rather than guessing
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"error":     "Could not resolve session",
				"retryable": true,
			})
		}
		if !user.IsActive {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "Account is not active",
			})
		}
		if claims.TokenVersion != user.TokenVersion {
			return unauthorized(c, "Invalid token version")
		}

		// Best effort: a failed write just means the next request hits
		// the database again
		_ = sessions.Save(c.Context(), &cache.Session{
			SessionID:    claims.SessionID,
			UserID:       user.ID,
			Email:        user.Email,
			Name:         user.Name,
			TokenVersion: user.TokenVersion,
		})

		c.Locals("userID", user.ID)
		c.Locals("sessionID", claims.SessionID)
		c.Locals("userName", user.Name)
		return c.Next()
	}
}

// GuestOnly rejects requests that already carry a valid access token, so
// signed-in users cannot re-run the login and register flows.
func GuestOnly() fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, err := tokenFromRequest(c)
		if err != nil {
			return c.Next()
		}
		if _, err := utils.ParseJWTToken(token); err != nil {
			return c.Next()
		}
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error":       "Already signed in",
			"redirect_to": "/",
		})
	}
}
